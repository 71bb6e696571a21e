package booking

import (
	"errors"
	"fmt"

	"github.com/codr1/Picklepoint/internal/models"
	"github.com/codr1/Picklepoint/internal/slots"
)

var (
	ErrEmptySelection = errors.New("select at least one time slot")
	// ErrConcurrentConflict means the store rejected a write because another
	// booking took an overlapping slot after availability was read. Callers
	// re-read availability and ask the customer to choose again.
	ErrConcurrentConflict = errors.New("another customer reserved one of the selected slots first")
	ErrInvalidReason      = errors.New("a reschedule reason is required")
	ErrInvalidTransition  = errors.New("booking cannot change from its current status")
	ErrCourtInactive      = errors.New("court is not accepting bookings")
	ErrPastDate           = errors.New("booking date has already passed")
	ErrInvalidSlot        = errors.New("invalid time slot")
	ErrNotFound           = models.ErrNotFound
	// ErrStale means the booking was rescheduled by another request after it
	// was read. It is reported together with ErrConcurrentConflict.
	ErrStale = models.ErrStale
)

// SlotUnavailableError reports the first selected slot that is blocked.
type SlotUnavailableError struct {
	Slot slots.Slot
}

func (e SlotUnavailableError) Error() string {
	return fmt.Sprintf("time slot %s is no longer available", e.Slot)
}

// CustomerError reports an invalid customer field.
type CustomerError struct {
	Field  string
	Reason string
}

func (e CustomerError) Error() string {
	return fmt.Sprintf("%s %s", e.Field, e.Reason)
}
