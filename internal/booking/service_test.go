package booking

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/codr1/Picklepoint/internal/feed"
	"github.com/codr1/Picklepoint/internal/models"
	"github.com/codr1/Picklepoint/internal/slots"
)

var (
	courtX = models.Court{ID: 1, Name: "Court X", Type: "Indoor", BasePriceCents: 30000, IsActive: true}
	courtY = models.Court{ID: 2, Name: "Court Y", Type: "Outdoor", BasePriceCents: 30000, IsActive: true,
		PricingRules: []models.PricingRule{{StartHour: 18, EndHour: 23, PriceCents: 50000}}}
	venue = models.Court{ID: 3, Name: "Whole Venue", Type: "Whole Venue Exclusive", BasePriceCents: 200000, IsActive: true}
)

var testCustomer = models.Customer{Name: "Ana Reyes", Email: "ana@example.com", Phone: "0917 123 4567"}

type harness struct {
	store     *memoryStore
	publisher *recordingPublisher
	notifier  *recordingNotifier
	svc       *Service
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		store:     newMemoryStore(courtX, courtY, venue),
		publisher: &recordingPublisher{},
		notifier:  &recordingNotifier{},
	}
	svc, err := NewService(h.store, Options{
		Clock:       fixedClock{now: day(2026, 1, 20).Add(9 * time.Hour)},
		Publisher:   h.publisher,
		Notifier:    h.notifier,
		PhoneRegion: "PH",
	})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	h.svc = svc
	return h
}

func TestNewServiceRequiresStore(t *testing.T) {
	if _, err := NewService(nil, Options{}); err == nil {
		t.Fatal("expected error for nil store")
	}
}

func TestCreateReservation_Scenario(t *testing.T) {
	h := newHarness(t)
	date := day(2026, 2, 1)
	h.store.seed(models.Booking{CourtID: courtX.ID, BookingDate: date, BookedTimes: []slots.Slot{10}})

	_, err := h.svc.CreateReservation(context.Background(), ReservationRequest{
		CourtID: courtX.ID, Date: date, Slots: []slots.Slot{9, 10, 11}, Customer: testCustomer,
	})
	var unavailable SlotUnavailableError
	if !errors.As(err, &unavailable) {
		t.Fatalf("err = %v, want SlotUnavailableError", err)
	}
	if unavailable.Slot.String() != "10:00" {
		t.Fatalf("unavailable slot = %s, want 10:00", unavailable.Slot)
	}

	created, err := h.svc.CreateReservation(context.Background(), ReservationRequest{
		CourtID: courtX.ID, Date: date, Slots: []slots.Slot{11, 9}, Customer: testCustomer,
	})
	if err != nil {
		t.Fatalf("CreateReservation: %v", err)
	}
	if created.TotalCents != 60000 {
		t.Fatalf("total = %d, want 60000", created.TotalCents)
	}
	if created.Status != models.StatusConfirmed {
		t.Fatalf("status = %s, want Confirmed", created.Status)
	}
	if !reflect.DeepEqual(created.BookedTimes, []slots.Slot{9, 11}) {
		t.Fatalf("booked times = %v, want [9 11]", created.BookedTimes)
	}
	if created.StartHour != 9 || created.EndHour != 12 {
		t.Fatalf("bounds = %d-%d, want 9-12", created.StartHour, created.EndHour)
	}
	if created.Customer.Phone != "+639171234567" {
		t.Fatalf("phone = %q, want E.164", created.Customer.Phone)
	}
	if got := h.publisher.types(); !reflect.DeepEqual(got, []feed.EventType{feed.BookingCreated}) {
		t.Fatalf("events = %v", got)
	}
	if len(h.notifier.confirmed) != 1 {
		t.Fatalf("confirmations = %d, want 1", len(h.notifier.confirmed))
	}
}

func TestCreateReservation_Rejections(t *testing.T) {
	inactive := models.Court{ID: 9, Name: "Closed", Type: "Indoor", IsActive: false}

	tests := []struct {
		name    string
		req     ReservationRequest
		wantErr error
		field   string
	}{
		{
			name:    "empty selection",
			req:     ReservationRequest{CourtID: courtX.ID, Date: day(2026, 2, 1), Customer: testCustomer},
			wantErr: ErrEmptySelection,
		},
		{
			name:    "past date",
			req:     ReservationRequest{CourtID: courtX.ID, Date: day(2026, 1, 19), Slots: []slots.Slot{9}, Customer: testCustomer},
			wantErr: ErrPastDate,
		},
		{
			name:    "inactive court",
			req:     ReservationRequest{CourtID: inactive.ID, Date: day(2026, 2, 1), Slots: []slots.Slot{9}, Customer: testCustomer},
			wantErr: ErrCourtInactive,
		},
		{
			name:    "unknown court",
			req:     ReservationRequest{CourtID: 404, Date: day(2026, 2, 1), Slots: []slots.Slot{9}, Customer: testCustomer},
			wantErr: ErrNotFound,
		},
		{
			name:    "invalid slot",
			req:     ReservationRequest{CourtID: courtX.ID, Date: day(2026, 2, 1), Slots: []slots.Slot{24}, Customer: testCustomer},
			wantErr: ErrInvalidSlot,
		},
		{
			name:  "missing name",
			req:   ReservationRequest{CourtID: courtX.ID, Date: day(2026, 2, 1), Slots: []slots.Slot{9}, Customer: models.Customer{Phone: "09171234567"}},
			field: "name",
		},
		{
			name:  "bad email",
			req:   ReservationRequest{CourtID: courtX.ID, Date: day(2026, 2, 1), Slots: []slots.Slot{9}, Customer: models.Customer{Name: "A", Email: "nope", Phone: "09171234567"}},
			field: "email",
		},
		{
			name:  "bad phone",
			req:   ReservationRequest{CourtID: courtX.ID, Date: day(2026, 2, 1), Slots: []slots.Slot{9}, Customer: models.Customer{Name: "A", Phone: "12"}},
			field: "phone",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.store.courts[inactive.ID] = inactive

			_, err := h.svc.CreateReservation(context.Background(), tt.req)
			if err == nil {
				t.Fatal("expected error")
			}
			if tt.field != "" {
				var ce CustomerError
				if !errors.As(err, &ce) || ce.Field != tt.field {
					t.Fatalf("err = %v, want CustomerError on %s", err, tt.field)
				}
			} else if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			if len(h.store.bookings) != 0 {
				t.Fatalf("bookings written = %d, want 0", len(h.store.bookings))
			}
		})
	}
}

func TestCreateReservation_ConcurrentConflict(t *testing.T) {
	h := newHarness(t)
	date := day(2026, 2, 1)

	// Another customer books 10:00 after availability was read.
	h.store.beforeWrite = func() {
		h.store.beforeWrite = nil
		h.store.seed(models.Booking{CourtID: courtX.ID, BookingDate: date, BookedTimes: []slots.Slot{10}})
	}

	_, err := h.svc.CreateReservation(context.Background(), ReservationRequest{
		CourtID: courtX.ID, Date: date, Slots: []slots.Slot{10, 11}, Customer: testCustomer,
	})
	if !errors.Is(err, ErrConcurrentConflict) {
		t.Fatalf("err = %v, want ErrConcurrentConflict", err)
	}
	if !errors.Is(err, models.ErrSlotTaken) {
		t.Fatalf("err = %v, want wrapped ErrSlotTaken", err)
	}
	if len(h.publisher.types()) != 0 {
		t.Fatal("no event should be published for a lost race")
	}

	// A fresh read now reports the slot as blocked.
	_, err = h.svc.Quote(context.Background(), courtX.ID, date, []slots.Slot{10})
	var unavailable SlotUnavailableError
	if !errors.As(err, &unavailable) {
		t.Fatalf("quote err = %v, want SlotUnavailableError", err)
	}
}

func TestCreateReservation_PaymentProofFailureKeepsBooking(t *testing.T) {
	h := newHarness(t)
	h.store.proofErr = errProofUpload

	created, err := h.svc.CreateReservation(context.Background(), ReservationRequest{
		CourtID:         courtX.ID,
		Date:            day(2026, 2, 1),
		Slots:           []slots.Slot{8},
		Customer:        testCustomer,
		PaymentProofURL: "https://files.example.com/receipts/1.jpg",
	})
	if err != nil {
		t.Fatalf("CreateReservation: %v", err)
	}
	if created.PaymentProofURL != "" {
		t.Fatalf("proof = %q, want empty after failed attach", created.PaymentProofURL)
	}
	if _, err := h.store.GetBooking(context.Background(), created.ID); err != nil {
		t.Fatalf("booking rolled back: %v", err)
	}
}

func TestCreateReservation_AttachesPaymentProof(t *testing.T) {
	h := newHarness(t)
	url := "https://files.example.com/receipts/2.jpg"

	created, err := h.svc.CreateReservation(context.Background(), ReservationRequest{
		CourtID: courtX.ID, Date: day(2026, 2, 1), Slots: []slots.Slot{8}, Customer: testCustomer, PaymentProofURL: url,
	})
	if err != nil {
		t.Fatalf("CreateReservation: %v", err)
	}
	stored, _ := h.store.GetBooking(context.Background(), created.ID)
	if created.PaymentProofURL != url || stored.PaymentProofURL != url {
		t.Fatalf("proof = %q / %q, want %q", created.PaymentProofURL, stored.PaymentProofURL, url)
	}
}

func TestCreateReservation_ExclusiveCourt(t *testing.T) {
	h := newHarness(t)
	date := day(2026, 2, 1)
	h.store.seed(models.Booking{CourtID: courtY.ID, BookingDate: date, BookedTimes: []slots.Slot{15}})

	_, err := h.svc.CreateReservation(context.Background(), ReservationRequest{
		CourtID: venue.ID, Date: date, Slots: []slots.Slot{14, 15}, Customer: testCustomer,
	})
	var unavailable SlotUnavailableError
	if !errors.As(err, &unavailable) || unavailable.Slot != 15 {
		t.Fatalf("err = %v, want slot 15 unavailable", err)
	}

	if _, err := h.svc.CreateReservation(context.Background(), ReservationRequest{
		CourtID: venue.ID, Date: date, Slots: []slots.Slot{16}, Customer: testCustomer,
	}); err != nil {
		t.Fatalf("venue booking: %v", err)
	}

	avail, err := h.svc.Availability(context.Background(), courtX.ID, date)
	if err != nil {
		t.Fatalf("Availability: %v", err)
	}
	if !avail.Blocked.Has(16) || avail.Blocked.Has(15) {
		t.Fatalf("court X blocked = %v, want 16 only", avail.Blocked.Slots())
	}
}

func TestReservationsStayDisjoint(t *testing.T) {
	h := newHarness(t)
	date := day(2026, 2, 1)
	selections := [][]slots.Slot{
		{9, 10}, {10, 11}, {12}, {8, 9}, {11, 13}, {14, 15, 16}, {16, 17}, {13}, {18, 19}, {6, 7},
	}

	for _, sel := range selections {
		_, err := h.svc.CreateReservation(context.Background(), ReservationRequest{
			CourtID: courtX.ID, Date: date, Slots: sel, Customer: testCustomer,
		})
		var unavailable SlotUnavailableError
		if err != nil && !errors.As(err, &unavailable) {
			t.Fatalf("selection %v: %v", sel, err)
		}
	}

	seen := make(map[slots.Slot]int64)
	active, _ := h.store.ListActiveBookingsForDate(context.Background(), date)
	for _, b := range active {
		for _, s := range b.BookedTimes {
			if other, ok := seen[s]; ok {
				t.Fatalf("slot %s held by bookings %d and %d", s, other, b.ID)
			}
			seen[s] = b.ID
		}
	}
	if len(active) == 0 {
		t.Fatal("expected some reservations to succeed")
	}
}

func TestQuote_Scenario(t *testing.T) {
	h := newHarness(t)
	sel, err := h.svc.Quote(context.Background(), courtY.ID, day(2026, 2, 1), []slots.Slot{23, 18, 20})
	if err != nil {
		t.Fatalf("Quote: %v", err)
	}
	if sel.Quote.TotalCents != 130000 {
		t.Fatalf("total = %d, want 130000", sel.Quote.TotalCents)
	}
	if sel.StartHour() != 18 || sel.EndHour() != 24 {
		t.Fatalf("bounds = %d-%d, want 18-24", sel.StartHour(), sel.EndHour())
	}
}

func TestCancel(t *testing.T) {
	h := newHarness(t)
	date := day(2026, 2, 1)
	created, err := h.svc.CreateReservation(context.Background(), ReservationRequest{
		CourtID: courtX.ID, Date: date, Slots: []slots.Slot{10}, Customer: testCustomer,
	})
	if err != nil {
		t.Fatalf("CreateReservation: %v", err)
	}

	cancelled, err := h.svc.Cancel(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if cancelled.Status != models.StatusCancelled {
		t.Fatalf("status = %s, want Cancelled", cancelled.Status)
	}

	if _, err := h.svc.Cancel(context.Background(), created.ID); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("second cancel err = %v, want ErrInvalidTransition", err)
	}
	if _, err := h.svc.Cancel(context.Background(), 999); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing cancel err = %v, want ErrNotFound", err)
	}

	// The released slot can be booked again.
	if _, err := h.svc.CreateReservation(context.Background(), ReservationRequest{
		CourtID: courtX.ID, Date: date, Slots: []slots.Slot{10}, Customer: testCustomer,
	}); err != nil {
		t.Fatalf("rebook released slot: %v", err)
	}
	if len(h.notifier.cancelled) != 1 {
		t.Fatalf("cancellation notices = %d, want 1", len(h.notifier.cancelled))
	}
}

func TestAttachPaymentProof(t *testing.T) {
	h := newHarness(t)
	b := h.store.seed(models.Booking{CourtID: courtX.ID, BookingDate: day(2026, 2, 1), BookedTimes: []slots.Slot{7}})

	if _, err := h.svc.AttachPaymentProof(context.Background(), b.ID, " "); err == nil {
		t.Fatal("expected error for empty url")
	}
	if _, err := h.svc.AttachPaymentProof(context.Background(), b.ID, "not a url"); err == nil {
		t.Fatal("expected error for invalid url")
	}
	if _, err := h.svc.AttachPaymentProof(context.Background(), 404, "https://x.example.com/r.png"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}

	updated, err := h.svc.AttachPaymentProof(context.Background(), b.ID, "https://x.example.com/r.png")
	if err != nil {
		t.Fatalf("AttachPaymentProof: %v", err)
	}
	if updated.PaymentProofURL != "https://x.example.com/r.png" {
		t.Fatalf("proof = %q", updated.PaymentProofURL)
	}
	if got := h.publisher.types(); !reflect.DeepEqual(got, []feed.EventType{feed.BookingUpdated}) {
		t.Fatalf("events = %v", got)
	}
}

func TestPublishFailureDoesNotFailReservation(t *testing.T) {
	h := newHarness(t)
	h.publisher.err = errors.New("redis down")

	if _, err := h.svc.CreateReservation(context.Background(), ReservationRequest{
		CourtID: courtX.ID, Date: day(2026, 2, 1), Slots: []slots.Slot{9}, Customer: testCustomer,
	}); err != nil {
		t.Fatalf("CreateReservation: %v", err)
	}
}

func TestCalendar(t *testing.T) {
	h := newHarness(t)
	h.store.seed(models.Booking{CourtID: venue.ID, BookingDate: day(2026, 2, 2), BookedTimes: slots.All()})
	h.store.seed(models.Booking{CourtID: courtX.ID, BookingDate: day(2026, 2, 3), BookedTimes: []slots.Slot{9}})

	summaries, err := h.svc.Calendar(context.Background(), courtX.ID, day(2026, 2, 1), 3)
	if err != nil {
		t.Fatalf("Calendar: %v", err)
	}
	if len(summaries) != 3 {
		t.Fatalf("summaries = %d, want 3", len(summaries))
	}
	want := []string{"available", "fully-booked", "partially-booked"}
	for i, s := range summaries {
		if string(s.Status) != want[i] {
			t.Errorf("%s status = %s, want %s", s.Date, s.Status, want[i])
		}
	}
}

func TestBooking(t *testing.T) {
	h := newHarness(t)
	seeded := h.store.seed(models.Booking{CourtID: courtX.ID, BookingDate: day(2026, 2, 1), BookedTimes: []slots.Slot{8, 9}})

	got, err := h.svc.Booking(context.Background(), seeded.ID)
	if err != nil {
		t.Fatalf("Booking: %v", err)
	}
	if got.ID != seeded.ID || !reflect.DeepEqual(got.BookedTimes, []slots.Slot{8, 9}) {
		t.Fatalf("booking = %+v", got)
	}

	if _, err := h.svc.Booking(context.Background(), 999); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}
