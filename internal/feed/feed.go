// Package feed carries booking change notifications to anyone holding a
// snapshot of availability. Receivers are expected to re-read the affected
// date; events carry no booking state beyond identifiers.
package feed

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

type EventType string

const (
	BookingCreated     EventType = "booking.created"
	BookingRescheduled EventType = "booking.rescheduled"
	BookingCancelled   EventType = "booking.cancelled"
	BookingUpdated     EventType = "booking.updated"
)

// Event announces a booking insert or update. Dates are YYYY-MM-DD; a
// reschedule touches both the previous and the new date.
type Event struct {
	ID         string    `json:"id"`
	Type       EventType `json:"type"`
	BookingID  int64     `json:"bookingId"`
	CourtID    int64     `json:"courtId"`
	Dates      []string  `json:"dates"`
	OccurredAt time.Time `json:"occurredAt"`
}

// NewEvent stamps an event with a fresh ID.
func NewEvent(eventType EventType, bookingID, courtID int64, occurredAt time.Time, dates ...string) Event {
	return Event{
		ID:         uuid.NewString(),
		Type:       eventType,
		BookingID:  bookingID,
		CourtID:    courtID,
		Dates:      uniqueDates(dates),
		OccurredAt: occurredAt.UTC(),
	}
}

func uniqueDates(dates []string) []string {
	seen := make(map[string]struct{}, len(dates))
	out := make([]string, 0, len(dates))
	for _, date := range dates {
		if date == "" {
			continue
		}
		if _, ok := seen[date]; ok {
			continue
		}
		seen[date] = struct{}{}
		out = append(out, date)
	}
	return out
}

type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// Subscriber delivers events until ctx is done, then closes the channel.
type Subscriber interface {
	Subscribe(ctx context.Context) (<-chan Event, error)
}

// Feed both publishes and delivers events.
type Feed interface {
	Publisher
	Subscriber
}

// Discard is a Publisher that drops every event.
type Discard struct{}

func (Discard) Publish(context.Context, Event) error { return nil }

type multiPublisher []Publisher

// Multi publishes each event to every publisher in order, returning the
// joined errors of those that failed.
func Multi(publishers ...Publisher) Publisher {
	return multiPublisher(publishers)
}

func (m multiPublisher) Publish(ctx context.Context, event Event) error {
	var errs []error
	for _, p := range m {
		if err := p.Publish(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
