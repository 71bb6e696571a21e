// Package booking validates slot selections, writes reservations and moves
// or cancels them. Concurrency between independent callers is resolved by
// the store: every write is checked against a uniqueness constraint and a
// losing writer gets ErrConcurrentConflict. Nothing here locks or retries.
package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/codr1/Picklepoint/internal/availability"
	"github.com/codr1/Picklepoint/internal/feed"
	"github.com/codr1/Picklepoint/internal/models"
	"github.com/codr1/Picklepoint/internal/slots"
)

// Store is the persistence collaborator. Writes that would make two active
// bookings on one court and date share a slot, or an exclusive court's
// booking share a slot with any other court, fail with models.ErrSlotTaken.
// Missing rows are reported as models.ErrNotFound. RescheduleBooking and
// CancelBooking fail with models.ErrStale when the stored booking no longer
// matches the version that was read or is already cancelled.
type Store interface {
	GetCourt(ctx context.Context, courtID int64) (models.Court, error)
	GetBooking(ctx context.Context, bookingID int64) (models.Booking, error)
	// ListActiveBookingsForDate returns non-cancelled bookings on every court
	// for date, with court type joined.
	ListActiveBookingsForDate(ctx context.Context, date time.Time) ([]models.Booking, error)
	InsertBooking(ctx context.Context, b models.Booking) (models.Booking, error)
	RescheduleBooking(ctx context.Context, b models.Booking) (models.Booking, error)
	CancelBooking(ctx context.Context, bookingID int64) (models.Booking, error)
	SetPaymentProof(ctx context.Context, bookingID int64, url string) error
}

// Clock supplies the current time in the venue's timezone.
type Clock interface {
	Now() time.Time
}

type realClock struct {
	loc *time.Location
}

func (c realClock) Now() time.Time { return time.Now().In(c.loc) }

// SystemClock returns a Clock reading wall time in loc.
func SystemClock(loc *time.Location) Clock {
	if loc == nil {
		loc = time.Local
	}
	return realClock{loc: loc}
}

// Notifier tells customers about changes to their booking. Implementations
// must not block the caller and must not fail the operation.
type Notifier interface {
	BookingConfirmed(ctx context.Context, court models.Court, b models.Booking)
	BookingRescheduled(ctx context.Context, court models.Court, b models.Booking, delta Delta)
	BookingCancelled(ctx context.Context, court models.Court, b models.Booking)
}

type noopNotifier struct{}

func (noopNotifier) BookingConfirmed(context.Context, models.Court, models.Booking) {}
func (noopNotifier) BookingRescheduled(context.Context, models.Court, models.Booking, Delta) {}
func (noopNotifier) BookingCancelled(context.Context, models.Court, models.Booking) {}

// DayReader serves availability reads. It may be a cache; writes always
// re-read from the Store.
type DayReader interface {
	ListActiveBookingsForDate(ctx context.Context, date time.Time) ([]models.Booking, error)
}

type Options struct {
	Clock     Clock
	Publisher feed.Publisher
	Notifier  Notifier
	Reader    DayReader
	// PhoneRegion is the default region for national-format phone numbers.
	PhoneRegion string
}

type Service struct {
	store       Store
	clock       Clock
	publisher   feed.Publisher
	notifier    Notifier
	reader      DayReader
	phoneRegion string
}

func NewService(store Store, opts Options) (*Service, error) {
	if store == nil {
		return nil, errors.New("booking service requires a store")
	}
	svc := &Service{
		store:       store,
		clock:       opts.Clock,
		publisher:   opts.Publisher,
		notifier:    opts.Notifier,
		reader:      opts.Reader,
		phoneRegion: opts.PhoneRegion,
	}
	if svc.clock == nil {
		svc.clock = SystemClock(time.Local)
	}
	if svc.publisher == nil {
		svc.publisher = feed.Discard{}
	}
	if svc.notifier == nil {
		svc.notifier = noopNotifier{}
	}
	if svc.reader == nil {
		svc.reader = store
	}
	return svc, nil
}

// Now returns the service clock's current time.
func (s *Service) Now() time.Time {
	return s.clock.Now()
}

// Court loads a court.
func (s *Service) Court(ctx context.Context, courtID int64) (models.Court, error) {
	court, err := s.store.GetCourt(ctx, courtID)
	if err != nil {
		return models.Court{}, s.storeError(err, "load court")
	}
	return court, nil
}

// Booking loads a booking.
func (s *Service) Booking(ctx context.Context, bookingID int64) (models.Booking, error) {
	b, err := s.store.GetBooking(ctx, bookingID)
	if err != nil {
		return models.Booking{}, s.storeError(err, "load booking")
	}
	return b, nil
}

// Availability is a snapshot of one court's blocked slots on a date. It is
// valid until the next booking write for that date.
type Availability struct {
	Court   models.Court
	Date    time.Time
	Blocked slots.Set
}

// Availability reads the date's bookings and computes the court's blocked
// slots.
func (s *Service) Availability(ctx context.Context, courtID int64, date time.Time) (Availability, error) {
	court, err := s.Court(ctx, courtID)
	if err != nil {
		return Availability{}, err
	}
	date = models.DateOnly(date)
	dayBookings, err := s.reader.ListActiveBookingsForDate(ctx, date)
	if err != nil {
		return Availability{}, fmt.Errorf("list bookings for %s: %w", date.Format(models.DateLayout), err)
	}
	return Availability{
		Court:   court,
		Date:    date,
		Blocked: availability.ComputeBlockedSlots(court, date, dayBookings, s.clock.Now(), availability.Options{}),
	}, nil
}

// Quote validates and prices a selection against fresh availability.
func (s *Service) Quote(ctx context.Context, courtID int64, date time.Time, selected []slots.Slot) (ValidatedSelection, error) {
	avail, err := s.Availability(ctx, courtID, date)
	if err != nil {
		return ValidatedSelection{}, err
	}
	if err := s.checkBookable(avail.Court, avail.Date); err != nil {
		return ValidatedSelection{}, err
	}
	return ValidateSelection(selected, avail.Blocked, avail.Court)
}

// Calendar classifies days consecutive dates starting at from for one court.
func (s *Service) Calendar(ctx context.Context, courtID int64, from time.Time, days int) ([]availability.DateSummary, error) {
	court, err := s.Court(ctx, courtID)
	if err != nil {
		return nil, err
	}
	dates := availability.DateRange(models.DateOnly(from), days)
	byDate := make(map[string][]models.Booking, len(dates))
	for _, date := range dates {
		dayBookings, err := s.reader.ListActiveBookingsForDate(ctx, date)
		if err != nil {
			return nil, fmt.Errorf("list bookings for %s: %w", date.Format(models.DateLayout), err)
		}
		byDate[date.Format(models.DateLayout)] = dayBookings
	}
	return availability.ClassifyDates(court, dates, byDate, s.clock.Now()), nil
}

func (s *Service) checkBookable(court models.Court, date time.Time) error {
	if !court.IsActive {
		return ErrCourtInactive
	}
	today := models.DateOnly(s.clock.Now().In(date.Location()))
	if models.DateOnly(date).Before(today) {
		return ErrPastDate
	}
	return nil
}

func (s *Service) publish(ctx context.Context, event feed.Event) {
	if err := s.publisher.Publish(ctx, event); err != nil {
		log.Ctx(ctx).Error().Err(err).
			Str("event_type", string(event.Type)).
			Int64("booking_id", event.BookingID).
			Msg("Failed to publish booking event")
	}
}

func (s *Service) storeError(err error, action string) error {
	if errors.Is(err, models.ErrNotFound) {
		return err
	}
	return fmt.Errorf("%s: %w", action, err)
}
