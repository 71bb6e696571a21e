// Package events streams booking change events to browsers over
// Server-Sent Events so open booking grids re-fetch availability.
package events

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/codr1/Picklepoint/internal/feed"
)

const defaultHeartbeat = 25 * time.Second

type Handler struct {
	sub       feed.Subscriber
	heartbeat time.Duration
}

// NewHandler streams events from sub. A non-positive heartbeat uses the
// default keep-alive interval.
func NewHandler(sub feed.Subscriber, heartbeat time.Duration) *Handler {
	if heartbeat <= 0 {
		heartbeat = defaultHeartbeat
	}
	return &Handler{sub: sub, heartbeat: heartbeat}
}

// GET /api/v1/events
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}
	// The server's WriteTimeout would otherwise cut the stream.
	if err := http.NewResponseController(w).SetWriteDeadline(time.Time{}); err != nil {
		logger.Debug().Err(err).Msg("Could not clear write deadline for event stream")
	}

	events, err := h.sub.Subscribe(r.Context())
	if err != nil {
		logger.Error().Err(err).Msg("Failed to subscribe to booking events")
		http.Error(w, "Failed to subscribe to events", http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, ": connected\n\n")
	flusher.Flush()

	logger.Debug().Msg("Event stream opened")
	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			logger.Debug().Msg("Event stream closed by client")
			return
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case event, ok := <-events:
			if !ok {
				return
			}
			if err := writeEvent(w, event); err != nil {
				logger.Debug().Err(err).Msg("Event stream write failed")
				return
			}
			flusher.Flush()
		}
	}
}

func writeEvent(w http.ResponseWriter, event feed.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "id: %s\nevent: %s\ndata: %s\n\n", event.ID, event.Type, data)
	return err
}
