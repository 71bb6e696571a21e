package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/codr1/Picklepoint/internal/models"
	"github.com/codr1/Picklepoint/internal/slots"
)

// Store persists courts and bookings. Booking writes keep booking_slots in
// step with the booking row inside one transaction, so an overlap rejected
// by the slot constraints leaves nothing behind.
type Store struct {
	db  *DB
	loc *time.Location
	now func() time.Time
}

// NewStore returns a Store reading booking dates in loc.
func NewStore(database *DB, loc *time.Location) *Store {
	if loc == nil {
		loc = time.Local
	}
	return &Store{db: database, loc: loc, now: time.Now}
}

// DB exposes the underlying handle.
func (s *Store) DB() *DB {
	return s.db
}

func (s *Store) GetCourt(ctx context.Context, courtID int64) (models.Court, error) {
	row, err := s.db.Queries.GetCourt(ctx, courtID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Court{}, fmt.Errorf("court %d: %w", courtID, models.ErrNotFound)
		}
		return models.Court{}, fmt.Errorf("get court %d: %w", courtID, err)
	}
	return courtFromRow(row)
}

func (s *Store) ListCourts(ctx context.Context, activeOnly bool) ([]models.Court, error) {
	rows, err := s.db.Queries.ListCourts(ctx, activeOnly)
	if err != nil {
		return nil, fmt.Errorf("list courts: %w", err)
	}
	courts := make([]models.Court, 0, len(rows))
	for _, row := range rows {
		court, err := courtFromRow(row)
		if err != nil {
			return nil, err
		}
		courts = append(courts, court)
	}
	return courts, nil
}

// UpsertCourts creates or updates courts by name in one transaction.
func (s *Store) UpsertCourts(ctx context.Context, courts []models.Court) ([]models.Court, error) {
	saved := make([]models.Court, 0, len(courts))
	err := s.db.RunInTx(ctx, func(tx *DB) error {
		now := s.now().UTC()
		for _, court := range courts {
			rules := court.PricingRules
			if rules == nil {
				rules = []models.PricingRule{}
			}
			rulesJSON, err := json.Marshal(rules)
			if err != nil {
				return fmt.Errorf("encode pricing rules for %q: %w", court.Name, err)
			}
			row, err := tx.Queries.UpsertCourt(ctx, UpsertCourtParams{
				Name:           court.Name,
				CourtType:      court.Type,
				BasePriceCents: court.BasePriceCents,
				PricingRules:   string(rulesJSON),
				Capacity:       court.Capacity,
				IsActive:       court.IsActive,
				Now:            now,
			})
			if err != nil {
				return fmt.Errorf("upsert court %q: %w", court.Name, err)
			}
			out, err := courtFromRow(row)
			if err != nil {
				return err
			}
			saved = append(saved, out)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return saved, nil
}

func (s *Store) GetBooking(ctx context.Context, bookingID int64) (models.Booking, error) {
	return s.getBooking(ctx, s.db, bookingID)
}

func (s *Store) getBooking(ctx context.Context, database *DB, bookingID int64) (models.Booking, error) {
	row, err := database.Queries.GetBooking(ctx, bookingID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Booking{}, fmt.Errorf("booking %d: %w", bookingID, models.ErrNotFound)
		}
		return models.Booking{}, fmt.Errorf("get booking %d: %w", bookingID, err)
	}
	return s.bookingFromRow(row)
}

func (s *Store) ListActiveBookingsForDate(ctx context.Context, date time.Time) ([]models.Booking, error) {
	return s.ListActiveBookingsBetween(ctx, date, date)
}

// ListActiveBookingsBetween returns non-cancelled bookings dated from..to
// inclusive.
func (s *Store) ListActiveBookingsBetween(ctx context.Context, from, to time.Time) ([]models.Booking, error) {
	rows, err := s.db.Queries.ListActiveBookingsBetween(ctx, s.dateKey(from), s.dateKey(to))
	if err != nil {
		return nil, fmt.Errorf("list bookings: %w", err)
	}
	return s.bookingsFromRows(rows)
}

const defaultSearchLimit = 100

// SearchBookings lists bookings in any status matching filter, latest date
// first.
func (s *Store) SearchBookings(ctx context.Context, filter models.BookingFilter) ([]models.Booking, error) {
	params := SearchBookingsParams{
		Status: string(filter.Status),
		Term:   strings.ToLower(strings.TrimSpace(filter.Query)),
		Limit:  int64(filter.Limit),
	}
	if !filter.From.IsZero() {
		params.FromDate = s.dateKey(filter.From)
	}
	if !filter.To.IsZero() {
		params.ToDate = s.dateKey(filter.To)
	}
	if params.Limit <= 0 {
		params.Limit = defaultSearchLimit
	}
	rows, err := s.db.Queries.SearchBookings(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("search bookings: %w", err)
	}
	return s.bookingsFromRows(rows)
}

// ListBookingsDueReminder returns active bookings on date with an email
// address that have not been reminded yet.
func (s *Store) ListBookingsDueReminder(ctx context.Context, date time.Time) ([]models.Booking, error) {
	rows, err := s.db.Queries.ListBookingsDueReminder(ctx, s.dateKey(date))
	if err != nil {
		return nil, fmt.Errorf("list bookings due reminder: %w", err)
	}
	return s.bookingsFromRows(rows)
}

func (s *Store) MarkReminderSent(ctx context.Context, bookingID int64) error {
	if err := s.db.Queries.MarkReminderSent(ctx, bookingID, s.now().UTC()); err != nil {
		return fmt.Errorf("mark reminder sent for booking %d: %w", bookingID, err)
	}
	return nil
}

// InsertBooking writes b and one booking_slots row per occupied hour.
func (s *Store) InsertBooking(ctx context.Context, b models.Booking) (models.Booking, error) {
	var created models.Booking
	err := s.db.RunInTx(ctx, func(tx *DB) error {
		court, err := tx.Queries.GetCourt(ctx, b.CourtID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("court %d: %w", b.CourtID, models.ErrNotFound)
			}
			return fmt.Errorf("get court %d: %w", b.CourtID, err)
		}

		bookedTimes, err := encodeBookedTimes(b.BookedTimes)
		if err != nil {
			return err
		}
		now := s.now().UTC()
		id, err := tx.Queries.InsertBooking(ctx, InsertBookingParams{
			CourtID:         b.CourtID,
			BookingDate:     s.dateKey(b.BookingDate),
			BookedTimes:     bookedTimes,
			StartHour:       int64(b.StartHour),
			EndHour:         int64(b.EndHour),
			TotalCents:      b.TotalCents,
			Status:          string(b.Status),
			CustomerName:    b.Customer.Name,
			CustomerEmail:   b.Customer.Email,
			CustomerPhone:   b.Customer.Phone,
			Notes:           b.Notes,
			PaymentProofURL: b.PaymentProofURL,
			Now:             now,
		})
		if err != nil {
			return fmt.Errorf("insert booking: %w", err)
		}

		b.ID = id
		if err := insertSlots(ctx, tx, b, models.IsExclusiveType(court.CourtType), s.dateKey(b.BookingDate)); err != nil {
			return err
		}

		created, err = s.getBooking(ctx, tx, id)
		return err
	})
	if err != nil {
		return models.Booking{}, err
	}
	return created, nil
}

// RescheduleBooking replaces the date, slots, price, status and reschedule
// record of an existing booking. b.Version must be the version that was read;
// if the row has since been rescheduled or cancelled the write fails with
// models.ErrStale. The old slot rows are released before the new ones are
// inserted so the new selection may overlap them.
func (s *Store) RescheduleBooking(ctx context.Context, b models.Booking) (models.Booking, error) {
	var saved models.Booking
	err := s.db.RunInTx(ctx, func(tx *DB) error {
		court, err := tx.Queries.GetCourt(ctx, b.CourtID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("court %d: %w", b.CourtID, models.ErrNotFound)
			}
			return fmt.Errorf("get court %d: %w", b.CourtID, err)
		}

		bookedTimes, err := encodeBookedTimes(b.BookedTimes)
		if err != nil {
			return err
		}
		var from sql.NullString
		if b.RescheduledFrom != nil {
			raw, err := json.Marshal(b.RescheduledFrom)
			if err != nil {
				return fmt.Errorf("encode reschedule record: %w", err)
			}
			from = sql.NullString{String: string(raw), Valid: true}
		}

		affected, err := tx.Queries.UpdateBookingSchedule(ctx, UpdateBookingScheduleParams{
			ID:              b.ID,
			BookingDate:     s.dateKey(b.BookingDate),
			BookedTimes:     bookedTimes,
			StartHour:       int64(b.StartHour),
			EndHour:         int64(b.EndHour),
			TotalCents:      b.TotalCents,
			Status:          string(b.Status),
			RescheduledFrom: from,
			ExpectedVersion: b.Version,
			Now:             s.now().UTC(),
		})
		if err != nil {
			return fmt.Errorf("update booking %d: %w", b.ID, err)
		}
		if affected == 0 {
			return s.missingOrStale(ctx, tx, b.ID)
		}
		if err := tx.Queries.DeleteBookingSlots(ctx, b.ID); err != nil {
			return fmt.Errorf("release booking slots: %w", err)
		}
		if err := insertSlots(ctx, tx, b, models.IsExclusiveType(court.CourtType), s.dateKey(b.BookingDate)); err != nil {
			return err
		}

		saved, err = s.getBooking(ctx, tx, b.ID)
		return err
	})
	if err != nil {
		return models.Booking{}, err
	}
	return saved, nil
}

// CancelBooking marks a booking Cancelled and releases its slots. Cancelling
// an already cancelled booking fails with models.ErrStale.
func (s *Store) CancelBooking(ctx context.Context, bookingID int64) (models.Booking, error) {
	var cancelled models.Booking
	err := s.db.RunInTx(ctx, func(tx *DB) error {
		affected, err := tx.Queries.UpdateBookingStatus(ctx, bookingID, string(models.StatusCancelled), s.now().UTC())
		if err != nil {
			return fmt.Errorf("cancel booking %d: %w", bookingID, err)
		}
		if affected == 0 {
			return s.missingOrStale(ctx, tx, bookingID)
		}
		if err := tx.Queries.DeleteBookingSlots(ctx, bookingID); err != nil {
			return fmt.Errorf("release booking slots: %w", err)
		}
		cancelled, err = s.getBooking(ctx, tx, bookingID)
		return err
	})
	if err != nil {
		return models.Booking{}, err
	}
	return cancelled, nil
}

// missingOrStale explains an update that matched no row.
func (s *Store) missingOrStale(ctx context.Context, tx *DB, bookingID int64) error {
	current, err := s.getBooking(ctx, tx, bookingID)
	if err != nil {
		return err
	}
	return fmt.Errorf("booking %d is %s at version %d: %w", bookingID, current.Status, current.Version, models.ErrStale)
}

func (s *Store) SetPaymentProof(ctx context.Context, bookingID int64, url string) error {
	affected, err := s.db.Queries.SetPaymentProof(ctx, bookingID, url, s.now().UTC())
	if err != nil {
		return fmt.Errorf("set payment proof for booking %d: %w", bookingID, err)
	}
	if affected == 0 {
		return fmt.Errorf("booking %d: %w", bookingID, models.ErrNotFound)
	}
	return nil
}

func insertSlots(ctx context.Context, tx *DB, b models.Booking, exclusive bool, dateKey string) error {
	for _, slot := range b.OccupiedSlots() {
		err := tx.Queries.InsertBookingSlot(ctx, InsertBookingSlotParams{
			BookingID:   b.ID,
			CourtID:     b.CourtID,
			BookingDate: dateKey,
			Hour:        int64(slot.Hour()),
			Exclusive:   exclusive,
		})
		if err != nil {
			if isSlotConflict(err) {
				return fmt.Errorf("court %d %s %s: %w", b.CourtID, dateKey, slot, models.ErrSlotTaken)
			}
			return fmt.Errorf("insert booking slot %s: %w", slot, err)
		}
	}
	return nil
}

// isSlotConflict reports whether err is the unique key or exclusive trigger
// on booking_slots rejecting an overlap.
func isSlotConflict(err error) bool {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) || sqliteErr.Code != sqlite3.ErrConstraint {
		return false
	}
	switch sqliteErr.ExtendedCode {
	case sqlite3.ErrConstraintUnique, sqlite3.ErrConstraintPrimaryKey, sqlite3.ErrConstraintTrigger:
		return true
	}
	return false
}

func (s *Store) dateKey(t time.Time) string {
	return t.Format(models.DateLayout)
}

func encodeBookedTimes(list []slots.Slot) (sql.NullString, error) {
	if list == nil {
		return sql.NullString{}, nil
	}
	hours := make([]int, len(list))
	for i, slot := range list {
		hours[i] = slot.Hour()
	}
	raw, err := json.Marshal(hours)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("encode booked times: %w", err)
	}
	return sql.NullString{String: string(raw), Valid: true}, nil
}

func decodeBookedTimes(raw sql.NullString) ([]slots.Slot, error) {
	if !raw.Valid {
		return nil, nil
	}
	var hours []int
	if err := json.Unmarshal([]byte(raw.String), &hours); err != nil {
		return nil, fmt.Errorf("decode booked times: %w", err)
	}
	list := make([]slots.Slot, len(hours))
	for i, h := range hours {
		list[i] = slots.Slot(h)
	}
	return list, nil
}

func courtFromRow(row CourtRow) (models.Court, error) {
	var rules []models.PricingRule
	if row.PricingRules != "" {
		if err := json.Unmarshal([]byte(row.PricingRules), &rules); err != nil {
			return models.Court{}, fmt.Errorf("decode pricing rules for court %d: %w", row.ID, err)
		}
	}
	return models.Court{
		ID:             row.ID,
		Name:           row.Name,
		Type:           row.CourtType,
		BasePriceCents: row.BasePriceCents,
		PricingRules:   rules,
		Capacity:       row.Capacity,
		IsActive:       row.IsActive,
		CreatedAt:      row.CreatedAt,
		UpdatedAt:      row.UpdatedAt,
	}, nil
}

func (s *Store) bookingFromRow(row BookingRow) (models.Booking, error) {
	date, err := time.ParseInLocation(models.DateLayout, row.BookingDate, s.loc)
	if err != nil {
		return models.Booking{}, fmt.Errorf("parse booking date %q: %w", row.BookingDate, err)
	}
	bookedTimes, err := decodeBookedTimes(row.BookedTimes)
	if err != nil {
		return models.Booking{}, fmt.Errorf("booking %d: %w", row.ID, err)
	}
	var from *models.RescheduleRecord
	if row.RescheduledFrom.Valid && row.RescheduledFrom.String != "" {
		from = &models.RescheduleRecord{}
		if err := json.Unmarshal([]byte(row.RescheduledFrom.String), from); err != nil {
			return models.Booking{}, fmt.Errorf("decode reschedule record for booking %d: %w", row.ID, err)
		}
	}
	return models.Booking{
		ID:          row.ID,
		CourtID:     row.CourtID,
		CourtName:   row.CourtName,
		CourtType:   row.CourtType,
		BookingDate: date,
		BookedTimes: bookedTimes,
		StartHour:   int(row.StartHour),
		EndHour:     int(row.EndHour),
		TotalCents:  row.TotalCents,
		Status:      models.Status(row.Status),
		Customer: models.Customer{
			Name:  row.CustomerName,
			Email: row.CustomerEmail,
			Phone: row.CustomerPhone,
		},
		Notes:           row.Notes,
		PaymentProofURL: row.PaymentProofURL,
		RescheduledFrom: from,
		Version:         row.Version,
		CreatedAt:       row.CreatedAt,
		UpdatedAt:       row.UpdatedAt,
	}, nil
}

func (s *Store) bookingsFromRows(rows []BookingRow) ([]models.Booking, error) {
	out := make([]models.Booking, 0, len(rows))
	for _, row := range rows {
		b, err := s.bookingFromRow(row)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, nil
}
