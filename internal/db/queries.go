package db

import (
	"context"
	"database/sql"
	"time"
)

// DBTX is satisfied by *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

type Queries struct {
	db DBTX
}

func NewQueries(db DBTX) *Queries {
	return &Queries{db: db}
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

type CourtRow struct {
	ID             int64
	Name           string
	CourtType      string
	BasePriceCents int64
	PricingRules   string
	Capacity       int64
	IsActive       bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

const courtColumns = `id, name, court_type, base_price_cents, pricing_rules, capacity, is_active, created_at, updated_at`

func scanCourt(row interface{ Scan(...interface{}) error }) (CourtRow, error) {
	var c CourtRow
	err := row.Scan(
		&c.ID,
		&c.Name,
		&c.CourtType,
		&c.BasePriceCents,
		&c.PricingRules,
		&c.Capacity,
		&c.IsActive,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	return c, err
}

const getCourt = `SELECT ` + courtColumns + ` FROM courts WHERE id = ?`

func (q *Queries) GetCourt(ctx context.Context, id int64) (CourtRow, error) {
	return scanCourt(q.db.QueryRowContext(ctx, getCourt, id))
}

const listCourts = `SELECT ` + courtColumns + ` FROM courts
WHERE (? = 0 OR is_active = 1)
ORDER BY name`

func (q *Queries) ListCourts(ctx context.Context, activeOnly bool) ([]CourtRow, error) {
	rows, err := q.db.QueryContext(ctx, listCourts, activeOnly)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []CourtRow
	for rows.Next() {
		c, err := scanCourt(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, c)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	return items, rows.Err()
}

type UpsertCourtParams struct {
	Name           string
	CourtType      string
	BasePriceCents int64
	PricingRules   string
	Capacity       int64
	IsActive       bool
	Now            time.Time
}

const upsertCourt = `INSERT INTO courts (name, court_type, base_price_cents, pricing_rules, capacity, is_active, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (name) DO UPDATE SET
    court_type = excluded.court_type,
    base_price_cents = excluded.base_price_cents,
    pricing_rules = excluded.pricing_rules,
    capacity = excluded.capacity,
    is_active = excluded.is_active,
    updated_at = excluded.updated_at
RETURNING ` + courtColumns

func (q *Queries) UpsertCourt(ctx context.Context, arg UpsertCourtParams) (CourtRow, error) {
	return scanCourt(q.db.QueryRowContext(ctx, upsertCourt,
		arg.Name,
		arg.CourtType,
		arg.BasePriceCents,
		arg.PricingRules,
		arg.Capacity,
		arg.IsActive,
		arg.Now,
		arg.Now,
	))
}

type BookingRow struct {
	ID              int64
	CourtID         int64
	CourtName       string
	CourtType       string
	BookingDate     string
	BookedTimes     sql.NullString
	StartHour       int64
	EndHour         int64
	TotalCents      int64
	Status          string
	CustomerName    string
	CustomerEmail   string
	CustomerPhone   string
	Notes           string
	PaymentProofURL string
	RescheduledFrom sql.NullString
	ReminderSentAt  sql.NullTime
	Version         int64
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

const bookingSelect = `SELECT b.id, b.court_id, c.name, c.court_type, b.booking_date, b.booked_times,
    b.start_hour, b.end_hour, b.total_cents, b.status,
    b.customer_name, b.customer_email, b.customer_phone, b.notes, b.payment_proof_url,
    b.rescheduled_from, b.reminder_sent_at, b.version, b.created_at, b.updated_at
FROM bookings b
JOIN courts c ON c.id = b.court_id`

func scanBooking(row interface{ Scan(...interface{}) error }) (BookingRow, error) {
	var b BookingRow
	err := row.Scan(
		&b.ID,
		&b.CourtID,
		&b.CourtName,
		&b.CourtType,
		&b.BookingDate,
		&b.BookedTimes,
		&b.StartHour,
		&b.EndHour,
		&b.TotalCents,
		&b.Status,
		&b.CustomerName,
		&b.CustomerEmail,
		&b.CustomerPhone,
		&b.Notes,
		&b.PaymentProofURL,
		&b.RescheduledFrom,
		&b.ReminderSentAt,
		&b.Version,
		&b.CreatedAt,
		&b.UpdatedAt,
	)
	return b, err
}

func (q *Queries) listBookings(ctx context.Context, query string, args ...interface{}) ([]BookingRow, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []BookingRow
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, b)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	return items, rows.Err()
}

const getBooking = bookingSelect + ` WHERE b.id = ?`

func (q *Queries) GetBooking(ctx context.Context, id int64) (BookingRow, error) {
	return scanBooking(q.db.QueryRowContext(ctx, getBooking, id))
}

const listActiveBookingsBetween = bookingSelect + `
WHERE b.booking_date BETWEEN ? AND ?
  AND b.status IN ('Confirmed', 'Rescheduled')
ORDER BY b.booking_date, b.id`

// ListActiveBookingsBetween returns non-cancelled bookings with booking_date
// in [fromDate, toDate], both formatted YYYY-MM-DD.
func (q *Queries) ListActiveBookingsBetween(ctx context.Context, fromDate, toDate string) ([]BookingRow, error) {
	return q.listBookings(ctx, listActiveBookingsBetween, fromDate, toDate)
}

const searchBookings = bookingSelect + `
WHERE (? = '' OR b.booking_date >= ?)
  AND (? = '' OR b.booking_date <= ?)
  AND (? = '' OR b.status = ?)
  AND (? = ''
       OR CAST(b.id AS TEXT) = ?
       OR instr(lower(b.customer_name), ?) > 0
       OR instr(lower(b.customer_email), ?) > 0)
ORDER BY b.booking_date DESC, b.start_hour, b.id
LIMIT ?`

type SearchBookingsParams struct {
	FromDate string
	ToDate   string
	Status   string
	// Term is matched as given; callers lowercase it.
	Term  string
	Limit int64
}

func (q *Queries) SearchBookings(ctx context.Context, arg SearchBookingsParams) ([]BookingRow, error) {
	return q.listBookings(ctx, searchBookings,
		arg.FromDate, arg.FromDate,
		arg.ToDate, arg.ToDate,
		arg.Status, arg.Status,
		arg.Term, arg.Term, arg.Term, arg.Term,
		arg.Limit,
	)
}

const listBookingsDueReminder = bookingSelect + `
WHERE b.booking_date = ?
  AND b.status IN ('Confirmed', 'Rescheduled')
  AND b.customer_email <> ''
  AND b.reminder_sent_at IS NULL
ORDER BY b.id`

func (q *Queries) ListBookingsDueReminder(ctx context.Context, bookingDate string) ([]BookingRow, error) {
	return q.listBookings(ctx, listBookingsDueReminder, bookingDate)
}

type InsertBookingParams struct {
	CourtID         int64
	BookingDate     string
	BookedTimes     sql.NullString
	StartHour       int64
	EndHour         int64
	TotalCents      int64
	Status          string
	CustomerName    string
	CustomerEmail   string
	CustomerPhone   string
	Notes           string
	PaymentProofURL string
	Now             time.Time
}

const insertBooking = `INSERT INTO bookings (
    court_id, booking_date, booked_times, start_hour, end_hour, total_cents, status,
    customer_name, customer_email, customer_phone, notes, payment_proof_url, created_at, updated_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

func (q *Queries) InsertBooking(ctx context.Context, arg InsertBookingParams) (int64, error) {
	res, err := q.db.ExecContext(ctx, insertBooking,
		arg.CourtID,
		arg.BookingDate,
		arg.BookedTimes,
		arg.StartHour,
		arg.EndHour,
		arg.TotalCents,
		arg.Status,
		arg.CustomerName,
		arg.CustomerEmail,
		arg.CustomerPhone,
		arg.Notes,
		arg.PaymentProofURL,
		arg.Now,
		arg.Now,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

type UpdateBookingScheduleParams struct {
	ID              int64
	BookingDate     string
	BookedTimes     sql.NullString
	StartHour       int64
	EndHour         int64
	TotalCents      int64
	Status          string
	RescheduledFrom sql.NullString
	// ExpectedVersion must match the stored version for the update to apply.
	ExpectedVersion int64
	Now             time.Time
}

const updateBookingSchedule = `UPDATE bookings SET
    booking_date = ?,
    booked_times = ?,
    start_hour = ?,
    end_hour = ?,
    total_cents = ?,
    status = ?,
    rescheduled_from = ?,
    reminder_sent_at = NULL,
    version = version + 1,
    updated_at = ?
WHERE id = ?
  AND version = ?
  AND status IN ('Confirmed', 'Rescheduled')`

func (q *Queries) UpdateBookingSchedule(ctx context.Context, arg UpdateBookingScheduleParams) (int64, error) {
	res, err := q.db.ExecContext(ctx, updateBookingSchedule,
		arg.BookingDate,
		arg.BookedTimes,
		arg.StartHour,
		arg.EndHour,
		arg.TotalCents,
		arg.Status,
		arg.RescheduledFrom,
		arg.Now,
		arg.ID,
		arg.ExpectedVersion,
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const updateBookingStatus = `UPDATE bookings SET status = ?, version = version + 1, updated_at = ?
WHERE id = ? AND status <> 'Cancelled'`

func (q *Queries) UpdateBookingStatus(ctx context.Context, id int64, status string, now time.Time) (int64, error) {
	res, err := q.db.ExecContext(ctx, updateBookingStatus, status, now, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const setPaymentProof = `UPDATE bookings SET payment_proof_url = ?, updated_at = ? WHERE id = ?`

func (q *Queries) SetPaymentProof(ctx context.Context, id int64, url string, now time.Time) (int64, error) {
	res, err := q.db.ExecContext(ctx, setPaymentProof, url, now, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const markReminderSent = `UPDATE bookings SET reminder_sent_at = ? WHERE id = ? AND reminder_sent_at IS NULL`

func (q *Queries) MarkReminderSent(ctx context.Context, id int64, now time.Time) error {
	_, err := q.db.ExecContext(ctx, markReminderSent, now, id)
	return err
}

type InsertBookingSlotParams struct {
	BookingID   int64
	CourtID     int64
	BookingDate string
	Hour        int64
	Exclusive   bool
}

const insertBookingSlot = `INSERT INTO booking_slots (booking_id, court_id, booking_date, hour, exclusive)
VALUES (?, ?, ?, ?, ?)`

func (q *Queries) InsertBookingSlot(ctx context.Context, arg InsertBookingSlotParams) error {
	_, err := q.db.ExecContext(ctx, insertBookingSlot,
		arg.BookingID,
		arg.CourtID,
		arg.BookingDate,
		arg.Hour,
		arg.Exclusive,
	)
	return err
}

const deleteBookingSlots = `DELETE FROM booking_slots WHERE booking_id = ?`

func (q *Queries) DeleteBookingSlots(ctx context.Context, bookingID int64) error {
	_, err := q.db.ExecContext(ctx, deleteBookingSlots, bookingID)
	return err
}
