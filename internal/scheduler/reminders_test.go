package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/codr1/Picklepoint/internal/models"
	"github.com/codr1/Picklepoint/internal/slots"
)

var pht = time.FixedZone("PHT", 8*3600)

type fakeReminderStore struct {
	courts    map[int64]models.Court
	due       []models.Booking
	askedDate time.Time
	marked    []int64
}

func (f *fakeReminderStore) GetCourt(_ context.Context, courtID int64) (models.Court, error) {
	court, ok := f.courts[courtID]
	if !ok {
		return models.Court{}, models.ErrNotFound
	}
	return court, nil
}

func (f *fakeReminderStore) ListBookingsDueReminder(_ context.Context, date time.Time) ([]models.Booking, error) {
	f.askedDate = date
	return f.due, nil
}

func (f *fakeReminderStore) MarkReminderSent(_ context.Context, bookingID int64) error {
	f.marked = append(f.marked, bookingID)
	return nil
}

type fakeReminderSender struct {
	failFor map[int64]bool
	sent    []int64
}

func (f *fakeReminderSender) SendReminder(_ context.Context, _ models.Court, b models.Booking) error {
	if f.failFor[b.ID] {
		return errors.New("ses throttled")
	}
	f.sent = append(f.sent, b.ID)
	return nil
}

func TestRemindersRun(t *testing.T) {
	tomorrow := time.Date(2026, 1, 21, 0, 0, 0, 0, pht)
	store := &fakeReminderStore{
		courts: map[int64]models.Court{1: {ID: 1, Name: "Court 1"}},
		due: []models.Booking{
			{ID: 10, CourtID: 1, BookingDate: tomorrow, BookedTimes: []slots.Slot{9}},
			{ID: 11, CourtID: 1, BookingDate: tomorrow, BookedTimes: []slots.Slot{10}},
			{ID: 12, CourtID: 99, BookingDate: tomorrow, BookedTimes: []slots.Slot{11}},
		},
	}
	sender := &fakeReminderSender{failFor: map[int64]bool{11: true}}
	now := func() time.Time { return time.Date(2026, 1, 20, 18, 0, 0, 0, pht) }

	sent, err := NewReminders(store, sender, now).Run(context.Background())
	if err == nil {
		t.Fatal("expected joined error for failed send and missing court")
	}
	if sent != 1 {
		t.Fatalf("sent = %d, want 1", sent)
	}
	if !store.askedDate.Equal(tomorrow) {
		t.Fatalf("asked date = %v, want %v", store.askedDate, tomorrow)
	}
	if len(store.marked) != 1 || store.marked[0] != 10 {
		t.Fatalf("marked = %v, want [10]", store.marked)
	}
	if !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("err = %v, want it to wrap ErrNotFound", err)
	}
}

func TestRemindersRunRequiresDependencies(t *testing.T) {
	if _, err := NewReminders(nil, nil, nil).Run(context.Background()); err == nil {
		t.Fatal("expected error without store and sender")
	}
}

func TestNewRejectsFixedZone(t *testing.T) {
	if _, err := New(pht); !errors.Is(err, ErrUnnamedLocation) {
		t.Fatalf("err = %v, want ErrUnnamedLocation", err)
	}
}

func TestServiceAddJob(t *testing.T) {
	manila, err := time.LoadLocation("Asia/Manila")
	if err != nil {
		t.Fatalf("LoadLocation: %v", err)
	}
	svc, err := New(manila)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer svc.Stop()

	tests := []struct {
		name    string
		job     string
		cron    string
		wantErr error
	}{
		{"missing name", " ", "0 18 * * *", ErrEmptyJobName},
		{"missing cron", "reminders", "", ErrEmptyCronExpr},
		{"invalid cron", "reminders", "not a cron", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.AddJob(tt.job, tt.cron, func() {})
			if err == nil {
				t.Fatal("expected error")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
		})
	}

	reminders := NewReminders(&fakeReminderStore{}, &fakeReminderSender{}, nil)
	if err := RegisterReminderJob(svc, reminders, "0 18 * * *"); err != nil {
		t.Fatalf("RegisterReminderJob: %v", err)
	}
	jobs := svc.Jobs()
	if len(jobs) != 1 || jobs[0].Name() != reminderJobName {
		t.Fatalf("jobs = %v", jobs)
	}
}

func TestNilServiceNotInitialized(t *testing.T) {
	var svc *Service
	if _, err := svc.AddJob("x", "* * * * *", func() {}); !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("err = %v, want ErrNotInitialized", err)
	}
}
