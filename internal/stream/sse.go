// Fotofable - Contextual Photo Captioning and Duplicate Detection
// Copyright 2026 Marek K. (marekvk)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/marekvk/fotofable

package stream

import (
	"fmt"
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/marekvk/fotofable/internal/logging"
	"github.com/marekvk/fotofable/internal/metrics"
	"github.com/marekvk/fotofable/internal/models"
)

// pollTimeout is the queue wait per reader iteration. Heartbeats fire after
// heartbeatPolls consecutive empty polls (30 s with the 1 s timeout).
const (
	pollTimeout    = time.Second
	heartbeatPolls = 30
)

// FormatSSE renders one event as an SSE frame.
func FormatSSE(ev models.Event) ([]byte, error) {
	data, err := json.Marshal(ev.Payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event payload: %w", err)
	}
	return []byte(fmt.Sprintf("event: %s\ndata: %s\n\n", ev.Type, data)), nil
}

// ServeSSE runs the reader loop over the connection, writing SSE frames
// until a terminal event, a heartbeat failure, or client disconnect. The
// connection is closed and removed from the hub on exit.
func (h *Hub) ServeSSE(w http.ResponseWriter, r *http.Request, conn *Connection) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	metrics.StreamSubscribers.WithLabelValues("sse").Inc()
	defer metrics.StreamSubscribers.WithLabelValues("sse").Dec()
	defer h.CloseConnection(conn.RequestID())

	ctx := r.Context()
	emptyPolls := 0

	for {
		select {
		case <-ctx.Done():
			logging.Debug().Str("request_id", conn.RequestID()).Msg("SSE client disconnected")
			return
		default:
		}

		ev, got := conn.Next(pollTimeout)
		if !got {
			emptyPolls++
			if emptyPolls >= heartbeatPolls {
				emptyPolls = 0
				hb := models.NewHeartbeatEvent(conn.RequestID())
				if err := writeSSE(w, flusher, hb); err != nil {
					logging.Debug().Err(err).Str("request_id", conn.RequestID()).Msg("SSE heartbeat write failed")
					return
				}
			}
			continue
		}
		emptyPolls = 0

		if err := writeSSE(w, flusher, ev); err != nil {
			logging.Debug().Err(err).Str("request_id", conn.RequestID()).Msg("SSE write failed")
			return
		}

		if ev.Type.Terminal() {
			return
		}
	}
}

func writeSSE(w http.ResponseWriter, flusher http.Flusher, ev models.Event) error {
	frame, err := FormatSSE(ev)
	if err != nil {
		return err
	}
	if _, err := w.Write(frame); err != nil {
		return err
	}
	flusher.Flush()
	return nil
}
