package booking

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"

	"github.com/codr1/Picklepoint/internal/availability"
	"github.com/codr1/Picklepoint/internal/contact"
	"github.com/codr1/Picklepoint/internal/feed"
	"github.com/codr1/Picklepoint/internal/models"
	"github.com/codr1/Picklepoint/internal/slots"
)

const maxNotesLength = 1000

var validate = validator.New(validator.WithRequiredStructEnabled())

// ReservationRequest is everything needed to book slots on one court and date.
type ReservationRequest struct {
	CourtID  int64
	Date     time.Time
	Slots    []slots.Slot
	Customer models.Customer
	Notes    string
	// PaymentProofURL is an opaque reference to an uploaded receipt.
	PaymentProofURL string
}

// CreateReservation re-reads availability for the date, validates and quotes
// the selection, then writes one booking covering every selected slot.
func (s *Service) CreateReservation(ctx context.Context, req ReservationRequest) (models.Booking, error) {
	customer, err := s.normalizeCustomer(req.Customer)
	if err != nil {
		return models.Booking{}, err
	}
	notes := strings.TrimSpace(req.Notes)
	if len(notes) > maxNotesLength {
		return models.Booking{}, CustomerError{Field: "notes", Reason: fmt.Sprintf("must be %d characters or fewer", maxNotesLength)}
	}

	court, err := s.Court(ctx, req.CourtID)
	if err != nil {
		return models.Booking{}, err
	}
	date := models.DateOnly(req.Date)
	if err := s.checkBookable(court, date); err != nil {
		return models.Booking{}, err
	}

	dayBookings, err := s.store.ListActiveBookingsForDate(ctx, date)
	if err != nil {
		return models.Booking{}, fmt.Errorf("list bookings for %s: %w", date.Format(models.DateLayout), err)
	}
	blocked := availability.ComputeBlockedSlots(court, date, dayBookings, s.clock.Now(), availability.Options{})
	selection, err := ValidateSelection(req.Slots, blocked, court)
	if err != nil {
		log.Ctx(ctx).Warn().Err(err).
			Int64("court_id", court.ID).
			Str("date", date.Format(models.DateLayout)).
			Msg("Reservation selection rejected")
		return models.Booking{}, err
	}

	return s.WriteReservation(ctx, court, date, selection, customer, notes, req.PaymentProofURL)
}

// WriteReservation persists a validated selection as a Confirmed booking.
// If another writer took an overlapping slot since availability was read,
// the store rejects the insert and ErrConcurrentConflict is returned. The
// payment proof is attached afterwards; failing to attach it is logged and
// does not undo the booking.
func (s *Service) WriteReservation(ctx context.Context, court models.Court, date time.Time, selection ValidatedSelection, customer models.Customer, notes, paymentProofURL string) (models.Booking, error) {
	if len(selection.Slots) == 0 {
		return models.Booking{}, ErrEmptySelection
	}

	logger := log.Ctx(ctx).With().
		Int64("court_id", court.ID).
		Str("date", date.Format(models.DateLayout)).
		Strs("slots", slots.Strings(selection.Slots)).
		Logger()

	created, err := s.store.InsertBooking(ctx, models.Booking{
		CourtID:     court.ID,
		CourtName:   court.Name,
		CourtType:   court.Type,
		BookingDate: models.DateOnly(date),
		BookedTimes: selection.Slots,
		StartHour:   selection.StartHour(),
		EndHour:     selection.EndHour(),
		TotalCents:  selection.Quote.TotalCents,
		Status:      models.StatusConfirmed,
		Customer:    customer,
		Notes:       notes,
	})
	if err != nil {
		if errors.Is(err, models.ErrSlotTaken) {
			logger.Warn().Err(err).Msg("Reservation lost a race for its slots")
			return models.Booking{}, fmt.Errorf("%w: %w", ErrConcurrentConflict, err)
		}
		logger.Error().Err(err).Msg("Failed to create reservation")
		return models.Booking{}, fmt.Errorf("create reservation: %w", err)
	}

	logger.Info().
		Int64("booking_id", created.ID).
		Int64("total_cents", created.TotalCents).
		Msg("Reservation created")

	if url := strings.TrimSpace(paymentProofURL); url != "" {
		if err := s.store.SetPaymentProof(ctx, created.ID, url); err != nil {
			logger.Error().Err(err).Int64("booking_id", created.ID).Msg("Failed to attach payment proof")
		} else {
			created.PaymentProofURL = url
		}
	}

	s.publish(ctx, feed.NewEvent(feed.BookingCreated, created.ID, created.CourtID, s.clock.Now(), created.DateKey()))
	s.notifier.BookingConfirmed(ctx, court, created)

	return created, nil
}

// AttachPaymentProof records a receipt reference on an existing booking.
func (s *Service) AttachPaymentProof(ctx context.Context, bookingID int64, url string) (models.Booking, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return models.Booking{}, CustomerError{Field: "paymentProofUrl", Reason: "is required"}
	}
	if err := validate.Var(url, "url"); err != nil {
		return models.Booking{}, CustomerError{Field: "paymentProofUrl", Reason: "must be a valid URL"}
	}
	if err := s.store.SetPaymentProof(ctx, bookingID, url); err != nil {
		return models.Booking{}, s.storeError(err, "attach payment proof")
	}
	updated, err := s.store.GetBooking(ctx, bookingID)
	if err != nil {
		return models.Booking{}, s.storeError(err, "load booking")
	}
	s.publish(ctx, feed.NewEvent(feed.BookingUpdated, updated.ID, updated.CourtID, s.clock.Now(), updated.DateKey()))
	return updated, nil
}

// Cancel moves a booking to Cancelled and releases its slots.
func (s *Service) Cancel(ctx context.Context, bookingID int64) (models.Booking, error) {
	existing, err := s.store.GetBooking(ctx, bookingID)
	if err != nil {
		return models.Booking{}, s.storeError(err, "load booking")
	}
	if !existing.Status.CanTransition(models.StatusCancelled) {
		return models.Booking{}, fmt.Errorf("%w: %s booking cannot be cancelled", ErrInvalidTransition, existing.Status)
	}

	cancelled, err := s.store.CancelBooking(ctx, bookingID)
	if err != nil {
		if errors.Is(err, models.ErrStale) {
			return models.Booking{}, fmt.Errorf("%w: %w", ErrInvalidTransition, err)
		}
		return models.Booking{}, s.storeError(err, "cancel booking")
	}

	log.Ctx(ctx).Info().
		Int64("booking_id", cancelled.ID).
		Int64("court_id", cancelled.CourtID).
		Str("date", cancelled.DateKey()).
		Msg("Booking cancelled")

	s.publish(ctx, feed.NewEvent(feed.BookingCancelled, cancelled.ID, cancelled.CourtID, s.clock.Now(), cancelled.DateKey()))
	if court, err := s.store.GetCourt(ctx, cancelled.CourtID); err == nil {
		s.notifier.BookingCancelled(ctx, court, cancelled)
	}
	return cancelled, nil
}

func (s *Service) normalizeCustomer(customer models.Customer) (models.Customer, error) {
	customer.Name = strings.TrimSpace(customer.Name)
	customer.Email = strings.TrimSpace(customer.Email)
	customer.Phone = strings.TrimSpace(customer.Phone)

	if err := validate.Struct(customer); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return models.Customer{}, customerFieldError(verrs[0])
		}
		return models.Customer{}, fmt.Errorf("validate customer: %w", err)
	}

	phone, err := contact.NormalizePhone(customer.Phone, s.phoneRegion)
	if err != nil {
		return models.Customer{}, CustomerError{Field: "phone", Reason: "must be a valid phone number"}
	}
	customer.Phone = phone
	return customer, nil
}

func customerFieldError(fe validator.FieldError) CustomerError {
	field := strings.ToLower(fe.Field())
	switch fe.Tag() {
	case "required":
		return CustomerError{Field: field, Reason: "is required"}
	case "email":
		return CustomerError{Field: field, Reason: "must be a valid email address"}
	case "max":
		return CustomerError{Field: field, Reason: fmt.Sprintf("must be %s characters or fewer", fe.Param())}
	default:
		return CustomerError{Field: field, Reason: "is invalid"}
	}
}
