package feed

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"
)

const defaultSubscriberBuffer = 32

// Broker fans events out to in-process subscribers. A subscriber that falls
// behind loses events rather than blocking publishers; it should treat its
// snapshot as stale and re-read.
type Broker struct {
	mu          sync.RWMutex
	subscribers map[chan Event]struct{}
	buffer      int
}

func NewBroker() *Broker {
	return &Broker{
		subscribers: make(map[chan Event]struct{}),
		buffer:      defaultSubscriberBuffer,
	}
}

func (b *Broker) Publish(ctx context.Context, event Event) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for ch := range b.subscribers {
		select {
		case ch <- event:
		default:
			log.Ctx(ctx).Warn().
				Str("event_id", event.ID).
				Str("event_type", string(event.Type)).
				Msg("Dropped feed event for slow subscriber")
		}
	}
	return nil
}

func (b *Broker) Subscribe(ctx context.Context) (<-chan Event, error) {
	ch := make(chan Event, b.buffer)

	b.mu.Lock()
	b.subscribers[ch] = struct{}{}
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		delete(b.subscribers, ch)
		close(ch)
		b.mu.Unlock()
	}()

	return ch, nil
}

// SubscriberCount reports the number of live subscriptions.
func (b *Broker) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}
