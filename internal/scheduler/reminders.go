package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/rs/zerolog/log"

	"github.com/codr1/Picklepoint/internal/models"
)

const (
	reminderJobName    = "booking_reminders"
	reminderJobTimeout = 2 * time.Minute
)

// ReminderStore is the booking storage the reminder job reads and marks.
type ReminderStore interface {
	GetCourt(ctx context.Context, courtID int64) (models.Court, error)
	ListBookingsDueReminder(ctx context.Context, date time.Time) ([]models.Booking, error)
	MarkReminderSent(ctx context.Context, bookingID int64) error
}

// ReminderSender delivers one reminder and reports whether it went out.
type ReminderSender interface {
	SendReminder(ctx context.Context, court models.Court, b models.Booking) error
}

// Reminders emails customers the day before their booking.
type Reminders struct {
	store  ReminderStore
	sender ReminderSender
	now    func() time.Time
}

func NewReminders(store ReminderStore, sender ReminderSender, now func() time.Time) *Reminders {
	if now == nil {
		now = time.Now
	}
	return &Reminders{store: store, sender: sender, now: now}
}

// Run sends reminders for every unreminded booking dated tomorrow and
// returns how many were sent. A booking whose send fails stays unmarked so
// the next run retries it.
func (r *Reminders) Run(ctx context.Context) (int, error) {
	if r == nil || r.store == nil || r.sender == nil {
		return 0, errors.New("reminder job requires store and sender")
	}
	tomorrow := models.DateOnly(r.now()).AddDate(0, 0, 1)
	logger := log.Ctx(ctx).With().Str("date", tomorrow.Format(time.DateOnly)).Logger()

	due, err := r.store.ListBookingsDueReminder(ctx, tomorrow)
	if err != nil {
		return 0, fmt.Errorf("list bookings due reminder: %w", err)
	}

	courts := make(map[int64]models.Court)
	sent := 0
	var errs []error
	for _, b := range due {
		court, ok := courts[b.CourtID]
		if !ok {
			court, err = r.store.GetCourt(ctx, b.CourtID)
			if err != nil {
				errs = append(errs, fmt.Errorf("load court %d: %w", b.CourtID, err))
				continue
			}
			courts[b.CourtID] = court
		}
		if err := r.sender.SendReminder(ctx, court, b); err != nil {
			logger.Error().Err(err).Int64("booking_id", b.ID).Msg("Failed to send booking reminder")
			errs = append(errs, err)
			continue
		}
		if err := r.store.MarkReminderSent(ctx, b.ID); err != nil {
			errs = append(errs, err)
			continue
		}
		sent++
	}

	logger.Info().Int("due", len(due)).Int("sent", sent).Msg("Booking reminders processed")
	return sent, errors.Join(errs...)
}

// RegisterReminderJob schedules Run on cronExpr.
func RegisterReminderJob(svc *Service, reminders *Reminders, cronExpr string) error {
	if reminders == nil {
		return fmt.Errorf("reminder job requires reminders")
	}
	jobLogger := log.With().
		Str("component", "booking_reminders_job").
		Str("job_name", reminderJobName).
		Str("cron", cronExpr).
		Logger()

	_, err := svc.AddJob(reminderJobName, cronExpr, func() {
		ctx, cancel := context.WithTimeout(context.Background(), reminderJobTimeout)
		defer cancel()
		ctx = jobLogger.WithContext(ctx)

		if _, err := reminders.Run(ctx); err != nil {
			jobLogger.Error().Err(err).Msg("Booking reminder run finished with errors")
		}
	}, gocron.WithSingletonMode(gocron.LimitModeReschedule))
	if err != nil {
		return fmt.Errorf("add booking reminder job: %w", err)
	}
	return nil
}
