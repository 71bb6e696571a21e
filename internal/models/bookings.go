// internal/models/bookings.go
package models

import (
	"errors"
	"time"

	"github.com/codr1/Picklepoint/internal/slots"
)

// DateLayout is the wire and storage format of a booking date.
const DateLayout = "2006-01-02"

var (
	// ErrNotFound is returned by stores when a booking or court does not exist.
	ErrNotFound = errors.New("not found")
	// ErrSlotTaken is returned by stores when a write would overlap an
	// existing active booking.
	ErrSlotTaken = errors.New("slot already reserved")
	// ErrStale is returned by stores when a booking was changed or cancelled
	// after the caller read it.
	ErrStale = errors.New("booking changed since it was read")
)

type Status string

const (
	StatusConfirmed   Status = "Confirmed"
	StatusRescheduled Status = "Rescheduled"
	StatusCancelled   Status = "Cancelled"
)

var statusTransitions = map[Status][]Status{
	StatusConfirmed:   {StatusRescheduled, StatusCancelled},
	StatusRescheduled: {StatusRescheduled, StatusCancelled},
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	return s == StatusConfirmed || s == StatusRescheduled || s == StatusCancelled
}

// Active reports whether a booking in this status still holds its slots.
func (s Status) Active() bool {
	return s == StatusConfirmed || s == StatusRescheduled
}

// CanTransition reports whether a booking may move from s to next.
func (s Status) CanTransition(next Status) bool {
	for _, allowed := range statusTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Customer is the contact on a booking.
type Customer struct {
	Name  string `json:"name" validate:"required,max=120"`
	Email string `json:"email" validate:"omitempty,email,max=254"`
	Phone string `json:"phone" validate:"required"`
}

// RescheduleRecord is the state of a booking immediately before its most
// recent reschedule.
type RescheduleRecord struct {
	OriginalDate        time.Time    `json:"originalDate"`
	OriginalBookedTimes []slots.Slot `json:"originalBookedTimes"`
	OriginalStartHour   int          `json:"originalStartHour"`
	OriginalEndHour     int          `json:"originalEndHour"`
	OriginalTotalCents  int64        `json:"originalTotalCents"`
	Reason              string       `json:"reason"`
	RescheduledAt       time.Time    `json:"rescheduledAt"`
}

// Booking is a single reservation of one or more slots on one court and date.
type Booking struct {
	ID          int64        `json:"id"`
	CourtID     int64        `json:"courtId"`
	CourtName   string       `json:"courtName,omitempty"`
	CourtType   string       `json:"courtType,omitempty"`
	BookingDate time.Time    `json:"bookingDate"`
	BookedTimes []slots.Slot `json:"bookedTimes"`
	// StartHour and EndHour summarize BookedTimes for older clients. EndHour
	// is one past the last booked hour, so 24 is midnight of the next day.
	StartHour       int               `json:"startHour"`
	EndHour         int               `json:"endHour"`
	TotalCents      int64             `json:"totalCents"`
	Status          Status            `json:"status"`
	Customer        Customer          `json:"customer"`
	Notes           string            `json:"notes,omitempty"`
	PaymentProofURL string            `json:"paymentProofUrl,omitempty"`
	RescheduledFrom *RescheduleRecord `json:"rescheduledFrom,omitempty"`
	// Version is bumped by every reschedule or cancellation.
	Version         int64             `json:"version"`
	CreatedAt       time.Time         `json:"createdAt"`
	UpdatedAt       time.Time         `json:"updatedAt"`
}

// BookingFilter narrows the staff booking list. Zero fields match everything.
type BookingFilter struct {
	From   time.Time
	To     time.Time
	Status Status
	// Query matches a booking ID exactly, or the customer's name or email as
	// a case-insensitive substring.
	Query string
	Limit int
}

// IsExclusive reports whether the booked court reserves the whole venue.
func (b Booking) IsExclusive() bool {
	return IsExclusiveType(b.CourtType)
}

// OccupiedSlots returns the slots this booking holds. Records without an
// explicit slot list fall back to every whole hour in [StartHour, EndHour).
func (b Booking) OccupiedSlots() []slots.Slot {
	if b.BookedTimes != nil {
		return b.BookedTimes
	}
	if b.StartHour == 0 && b.EndHour == 0 {
		return nil
	}
	return slots.Range(b.StartHour, b.EndHour)
}

// DateKey formats the booking date as YYYY-MM-DD.
func (b Booking) DateKey() string {
	return b.BookingDate.Format(DateLayout)
}

// DateOnly truncates t to midnight in its own location.
func DateOnly(t time.Time) time.Time {
	year, month, day := t.Date()
	return time.Date(year, month, day, 0, 0, 0, 0, t.Location())
}

// SameDate reports whether a and b fall on the same calendar date, reading b
// in a's location.
func SameDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.In(a.Location()).Date()
	return ay == by && am == bm && ad == bd
}
