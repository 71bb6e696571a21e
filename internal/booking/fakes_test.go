package booking

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/codr1/Picklepoint/internal/feed"
	"github.com/codr1/Picklepoint/internal/models"
)

var manila = time.FixedZone("PHT", 8*3600)

func day(year int, month time.Month, d int) time.Time {
	return time.Date(year, month, d, 0, 0, 0, 0, manila)
}

type fixedClock struct {
	now time.Time
}

func (c fixedClock) Now() time.Time { return c.now }

// memoryStore enforces slot disjointness the way the SQLite store does, so
// the service can be exercised without a database.
type memoryStore struct {
	mu       sync.Mutex
	courts   map[int64]models.Court
	bookings map[int64]models.Booking
	nextID   int64

	proofErr error
	// beforeWrite runs inside InsertBooking before the conflict check.
	beforeWrite func()
}

func newMemoryStore(courts ...models.Court) *memoryStore {
	s := &memoryStore{
		courts:   make(map[int64]models.Court),
		bookings: make(map[int64]models.Booking),
	}
	for _, c := range courts {
		s.courts[c.ID] = c
	}
	return s
}

func (s *memoryStore) GetCourt(_ context.Context, id int64) (models.Court, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.courts[id]
	if !ok {
		return models.Court{}, models.ErrNotFound
	}
	return c, nil
}

func (s *memoryStore) GetBooking(_ context.Context, id int64) (models.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookings[id]
	if !ok {
		return models.Booking{}, models.ErrNotFound
	}
	return b, nil
}

func (s *memoryStore) ListActiveBookingsForDate(_ context.Context, date time.Time) ([]models.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := date.Format(models.DateLayout)
	var out []models.Booking
	for _, b := range s.bookings {
		if b.Status.Active() && b.DateKey() == key {
			out = append(out, b)
		}
	}
	return out, nil
}

func (s *memoryStore) conflicts(candidate models.Booking) bool {
	candidateExclusive := s.courts[candidate.CourtID].IsExclusive()
	for _, b := range s.bookings {
		if b.ID == candidate.ID || !b.Status.Active() || b.DateKey() != candidate.DateKey() {
			continue
		}
		if b.CourtID != candidate.CourtID && !candidateExclusive && !s.courts[b.CourtID].IsExclusive() {
			continue
		}
		for _, x := range b.OccupiedSlots() {
			for _, y := range candidate.OccupiedSlots() {
				if x == y {
					return true
				}
			}
		}
	}
	return false
}

func (s *memoryStore) InsertBooking(_ context.Context, b models.Booking) (models.Booking, error) {
	if s.beforeWrite != nil {
		s.beforeWrite()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conflicts(b) {
		return models.Booking{}, models.ErrSlotTaken
	}
	s.nextID++
	b.ID = s.nextID
	b.Version = 1
	b.CourtType = s.courts[b.CourtID].Type
	s.bookings[b.ID] = b
	return b, nil
}

func (s *memoryStore) RescheduleBooking(_ context.Context, b models.Booking) (models.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.bookings[b.ID]
	if !ok {
		return models.Booking{}, models.ErrNotFound
	}
	if stored.Version != b.Version || !stored.Status.Active() {
		return models.Booking{}, models.ErrStale
	}
	if s.conflicts(b) {
		return models.Booking{}, models.ErrSlotTaken
	}
	b.Version++
	s.bookings[b.ID] = b
	return b, nil
}

func (s *memoryStore) CancelBooking(_ context.Context, id int64) (models.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookings[id]
	if !ok {
		return models.Booking{}, models.ErrNotFound
	}
	if b.Status == models.StatusCancelled {
		return models.Booking{}, models.ErrStale
	}
	b.Status = models.StatusCancelled
	b.Version++
	s.bookings[id] = b
	return b, nil
}

func (s *memoryStore) SetPaymentProof(_ context.Context, id int64, url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.proofErr != nil {
		return s.proofErr
	}
	b, ok := s.bookings[id]
	if !ok {
		return models.ErrNotFound
	}
	b.PaymentProofURL = url
	s.bookings[id] = b
	return nil
}

// seed stores a booking directly, bypassing the conflict check.
func (s *memoryStore) seed(b models.Booking) models.Booking {
	s.mu.Lock()
	defer s.mu.Unlock()
	if b.ID == 0 {
		s.nextID++
		b.ID = s.nextID
	} else if b.ID > s.nextID {
		s.nextID = b.ID
	}
	if b.Status == "" {
		b.Status = models.StatusConfirmed
	}
	if b.Version == 0 {
		b.Version = 1
	}
	b.CourtType = s.courts[b.CourtID].Type
	s.bookings[b.ID] = b
	return b
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []feed.Event
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, e feed.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) types() []feed.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]feed.EventType, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

type recordingNotifier struct {
	mu          sync.Mutex
	confirmed   []models.Booking
	rescheduled []Delta
	cancelled   []models.Booking
}

func (n *recordingNotifier) BookingConfirmed(_ context.Context, _ models.Court, b models.Booking) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.confirmed = append(n.confirmed, b)
}

func (n *recordingNotifier) BookingRescheduled(_ context.Context, _ models.Court, _ models.Booking, d Delta) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.rescheduled = append(n.rescheduled, d)
}

func (n *recordingNotifier) BookingCancelled(_ context.Context, _ models.Court, b models.Booking) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.cancelled = append(n.cancelled, b)
}

var errProofUpload = errors.New("upload store unavailable")
