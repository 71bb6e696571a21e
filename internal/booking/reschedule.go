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

// RescheduleRequest moves a booking to a new date and slot selection on the
// same court.
type RescheduleRequest struct {
	BookingID int64
	NewDate   time.Time
	Slots     []slots.Slot
	Reason    Reason
}

// RescheduleResult is the updated booking and what the customer is owed or owes.
type RescheduleResult struct {
	Booking models.Booking `json:"booking"`
	Delta   Delta          `json:"delta"`
}

// PlanReschedule computes the rescheduled booking without touching storage.
// dayBookings are the active bookings on newDate across all courts; the
// booking being moved is ignored so it may overlap its own current slots.
// Only the state immediately before this reschedule is kept in
// RescheduledFrom.
func PlanReschedule(existing models.Booking, court models.Court, newDate time.Time, selected []slots.Slot, reason Reason, dayBookings []models.Booking, now time.Time) (RescheduleResult, error) {
	if !existing.Status.CanTransition(models.StatusRescheduled) {
		return RescheduleResult{}, fmt.Errorf("%w: %s booking cannot be rescheduled", ErrInvalidTransition, existing.Status)
	}
	if !court.IsActive {
		return RescheduleResult{}, ErrCourtInactive
	}
	if err := reason.Validate(); err != nil {
		return RescheduleResult{}, err
	}
	newDate = models.DateOnly(newDate)
	if newDate.Before(models.DateOnly(now.In(newDate.Location()))) {
		return RescheduleResult{}, ErrPastDate
	}

	blocked := availability.ComputeBlockedSlots(court, newDate, dayBookings, now, availability.Options{
		ExcludeBookingID: existing.ID,
	})
	selection, err := ValidateSelection(selected, blocked, court)
	if err != nil {
		return RescheduleResult{}, err
	}

	updated := existing
	updated.BookingDate = newDate
	updated.BookedTimes = selection.Slots
	updated.StartHour = selection.StartHour()
	updated.EndHour = selection.EndHour()
	updated.TotalCents = selection.Quote.TotalCents
	updated.Status = models.StatusRescheduled
	updated.RescheduledFrom = &models.RescheduleRecord{
		OriginalDate:        existing.BookingDate,
		OriginalBookedTimes: append([]slots.Slot(nil), existing.OccupiedSlots()...),
		OriginalStartHour:   existing.StartHour,
		OriginalEndHour:     existing.EndHour,
		OriginalTotalCents:  existing.TotalCents,
		Reason:              reason.Text(),
		RescheduledAt:       now.UTC(),
	}

	return RescheduleResult{
		Booking: updated,
		Delta:   NewDelta(existing.TotalCents, selection.Quote.TotalCents),
	}, nil
}

// Reschedule moves a booking after re-reading availability for the new date.
func (s *Service) Reschedule(ctx context.Context, req RescheduleRequest) (RescheduleResult, error) {
	logger := log.Ctx(ctx).With().
		Int64("booking_id", req.BookingID).
		Str("new_date", req.NewDate.Format(models.DateLayout)).
		Logger()

	existing, err := s.store.GetBooking(ctx, req.BookingID)
	if err != nil {
		return RescheduleResult{}, s.storeError(err, "load booking")
	}
	court, err := s.store.GetCourt(ctx, existing.CourtID)
	if err != nil {
		return RescheduleResult{}, s.storeError(err, "load court")
	}

	dayBookings, err := s.store.ListActiveBookingsForDate(ctx, req.NewDate)
	if err != nil {
		return RescheduleResult{}, fmt.Errorf("list bookings for %s: %w", req.NewDate.Format(models.DateLayout), err)
	}

	now := s.clock.Now()
	result, err := PlanReschedule(existing, court, req.NewDate, req.Slots, req.Reason, dayBookings, now)
	if err != nil {
		logger.Warn().Err(err).Msg("Reschedule rejected")
		return RescheduleResult{}, err
	}

	saved, err := s.store.RescheduleBooking(ctx, result.Booking)
	if err != nil {
		if errors.Is(err, models.ErrSlotTaken) {
			logger.Warn().Err(err).Msg("Reschedule lost a race for its slots")
			return RescheduleResult{}, fmt.Errorf("%w: %w", ErrConcurrentConflict, err)
		}
		if errors.Is(err, models.ErrStale) {
			return RescheduleResult{}, s.staleReschedule(ctx, req.BookingID, err)
		}
		return RescheduleResult{}, s.storeError(err, "save rescheduled booking")
	}
	if saved.CourtType == "" {
		saved.CourtType = court.Type
	}
	result.Booking = saved

	logger.Info().
		Strs("slots", slots.Strings(saved.BookedTimes)).
		Int64("total_cents", saved.TotalCents).
		Int64("delta_cents", result.Delta.AmountCents).
		Str("delta_kind", string(result.Delta.Kind)).
		Msg("Booking rescheduled")

	s.publish(ctx, feed.NewEvent(feed.BookingRescheduled, saved.ID, saved.CourtID, now,
		existing.DateKey(), saved.DateKey()))
	s.notifier.BookingRescheduled(ctx, court, saved, result.Delta)

	return result, nil
}

// staleReschedule reports a reschedule whose booking changed underneath it.
// A booking cancelled in the meantime stays cancelled.
func (s *Service) staleReschedule(ctx context.Context, bookingID int64, err error) error {
	logger := log.Ctx(ctx).With().Int64("booking_id", bookingID).Logger()
	current, getErr := s.store.GetBooking(ctx, bookingID)
	if getErr == nil && !current.Status.CanTransition(models.StatusRescheduled) {
		logger.Warn().Str("status", string(current.Status)).Msg("Booking left reschedulable state during reschedule")
		return fmt.Errorf("%w: %s booking cannot be rescheduled", ErrInvalidTransition, current.Status)
	}
	logger.Warn().Err(err).Msg("Reschedule lost a race with another change")
	return fmt.Errorf("%w: %w", ErrConcurrentConflict, err)
}
