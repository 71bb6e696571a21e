package bookings

import (
	"errors"
	"net/http"

	"github.com/codr1/Picklepoint/internal/api/apiutil"
	"github.com/codr1/Picklepoint/internal/booking"
)

const (
	conflictMessage = "Another customer reserved one of the selected slots first. Please refresh availability and choose again."
	staleMessage    = "This booking was changed by another request. Reload it and try again."
)

// classify maps engine errors onto HTTP errors. Unknown errors pass through
// unchanged and are reported as 500 by apiutil.WriteError.
func classify(err error) error {
	var (
		unavailable booking.SlotUnavailableError
		customerErr booking.CustomerError
	)
	switch {
	case errors.As(err, &unavailable):
		return apiutil.HandlerError{Status: http.StatusConflict, Message: unavailable.Error(), Field: "slots", Err: err}
	case errors.Is(err, booking.ErrStale) && errors.Is(err, booking.ErrConcurrentConflict):
		return apiutil.HandlerError{Status: http.StatusConflict, Message: staleMessage, Err: err}
	case errors.Is(err, booking.ErrConcurrentConflict):
		return apiutil.HandlerError{Status: http.StatusConflict, Message: conflictMessage, Err: err}
	case errors.As(err, &customerErr):
		return apiutil.HandlerError{Status: http.StatusBadRequest, Message: customerErr.Error(), Field: customerErr.Field, Err: err}
	case errors.Is(err, booking.ErrEmptySelection), errors.Is(err, booking.ErrInvalidSlot):
		return apiutil.HandlerError{Status: http.StatusBadRequest, Message: err.Error(), Field: "slots", Err: err}
	case errors.Is(err, booking.ErrInvalidReason):
		return apiutil.HandlerError{Status: http.StatusBadRequest, Message: err.Error(), Field: "reason", Err: err}
	case errors.Is(err, booking.ErrNotFound):
		return apiutil.HandlerError{Status: http.StatusNotFound, Message: "Not found", Err: err}
	case errors.Is(err, booking.ErrInvalidTransition),
		errors.Is(err, booking.ErrCourtInactive),
		errors.Is(err, booking.ErrPastDate):
		return apiutil.HandlerError{Status: http.StatusUnprocessableEntity, Message: err.Error(), Err: err}
	}
	return err
}
