// Package cache holds read-side snapshots of each date's active bookings.
// Entries are dropped when a feed event names their date, so readers see a
// write no later than the event's delivery.
package cache

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/codr1/Picklepoint/internal/feed"
	"github.com/codr1/Picklepoint/internal/models"
)

const DefaultTTL = 5 * time.Minute

// Loader reads a date's non-cancelled bookings across every court.
type Loader interface {
	ListActiveBookingsForDate(ctx context.Context, date time.Time) ([]models.Booking, error)
}

type entry struct {
	bookings []models.Booking
	loadedAt time.Time
}

// DayBookings is a read-through cache keyed by YYYY-MM-DD. It implements
// feed.Publisher so local writes can invalidate synchronously.
type DayBookings struct {
	loader Loader
	ttl    time.Duration
	now    func() time.Time

	mu      sync.Mutex
	entries map[string]entry
	// generation guards against storing a load that raced an invalidation.
	generation map[string]uint64
}

func NewDayBookings(loader Loader, ttl time.Duration) *DayBookings {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &DayBookings{
		loader:     loader,
		ttl:        ttl,
		now:        time.Now,
		entries:    make(map[string]entry),
		generation: make(map[string]uint64),
	}
}

// ListActiveBookingsForDate returns the cached bookings for date, loading
// them on a miss or after the TTL. Callers must not modify the result.
func (c *DayBookings) ListActiveBookingsForDate(ctx context.Context, date time.Time) ([]models.Booking, error) {
	key := date.Format(models.DateLayout)

	c.mu.Lock()
	if e, ok := c.entries[key]; ok && c.now().Sub(e.loadedAt) < c.ttl {
		c.mu.Unlock()
		return e.bookings, nil
	}
	gen := c.generation[key]
	c.mu.Unlock()

	bookings, err := c.loader.ListActiveBookingsForDate(ctx, date)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	if c.generation[key] == gen {
		c.entries[key] = entry{bookings: bookings, loadedAt: c.now()}
	}
	c.mu.Unlock()
	return bookings, nil
}

// Invalidate drops the given dates.
func (c *DayBookings) Invalidate(dates ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, key := range dates {
		delete(c.entries, key)
		c.generation[key]++
	}
}

// Len reports the number of cached dates.
func (c *DayBookings) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *DayBookings) Publish(_ context.Context, event feed.Event) error {
	c.Invalidate(event.Dates...)
	return nil
}

// Watch invalidates dates named by events from sub until ctx is done. A
// closed subscription clears the whole cache since events may have been
// missed.
func (c *DayBookings) Watch(ctx context.Context, sub feed.Subscriber) error {
	events, err := sub.Subscribe(ctx)
	if err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-events:
			if !ok {
				c.clear()
				if ctx.Err() != nil {
					return nil
				}
				log.Ctx(ctx).Warn().Msg("Booking feed closed, cleared day cache")
				return nil
			}
			c.Invalidate(event.Dates...)
		}
	}
}

func (c *DayBookings) clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key := range c.entries {
		c.generation[key]++
	}
	c.entries = make(map[string]entry)
}
