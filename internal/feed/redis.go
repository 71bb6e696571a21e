package feed

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// DefaultChannel is the Redis pub/sub channel booking events travel on.
const DefaultChannel = "picklepoint:bookings"

// RedisFeed relays events between server instances over Redis pub/sub.
type RedisFeed struct {
	client  *redis.Client
	channel string
}

// NewRedisFeed connects to Redis and verifies the connection.
func NewRedisFeed(ctx context.Context, addr, password string, db int, channel string) (*RedisFeed, error) {
	if addr == "" {
		return nil, fmt.Errorf("redis address is required")
	}
	if channel == "" {
		channel = DefaultChannel
	}
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &RedisFeed{client: client, channel: channel}, nil
}

func (f *RedisFeed) Publish(ctx context.Context, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode feed event: %w", err)
	}
	if err := f.client.Publish(ctx, f.channel, payload).Err(); err != nil {
		return fmt.Errorf("publish feed event: %w", err)
	}
	return nil
}

func (f *RedisFeed) Subscribe(ctx context.Context) (<-chan Event, error) {
	pubsub := f.client.Subscribe(ctx, f.channel)
	// Wait for the subscription to be confirmed so no event published after
	// Subscribe returns is missed.
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("subscribe to %s: %w", f.channel, err)
	}

	out := make(chan Event, defaultSubscriberBuffer)
	go func() {
		defer close(out)
		defer pubsub.Close()

		messages := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-messages:
				if !ok {
					return
				}
				var event Event
				if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
					log.Warn().Err(err).Str("channel", f.channel).Msg("Discarding malformed feed event")
					continue
				}
				select {
				case out <- event:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

func (f *RedisFeed) Close() error {
	return f.client.Close()
}
