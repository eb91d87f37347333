// Fotofable - Contextual Photo Captioning and Duplicate Detection
// Copyright 2026 Marek K. (marekvk)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/marekvk/fotofable

package stream

import (
	"sync"
	"time"

	"github.com/marekvk/fotofable/internal/logging"
	"github.com/marekvk/fotofable/internal/metrics"
	"github.com/marekvk/fotofable/internal/models"
)

// Connection is one request's bounded event queue. Producers are the worker
// goroutine (via Enqueue); the single consumer is the SSE or WebSocket
// reader loop.
type Connection struct {
	requestID string
	queue     chan models.Event

	mu           sync.Mutex
	active       bool
	createdAt    time.Time
	lastActivity time.Time
}

func newConnection(requestID string, queueSize int) *Connection {
	if queueSize <= 0 {
		queueSize = 100
	}
	now := time.Now()
	return &Connection{
		requestID:    requestID,
		queue:        make(chan models.Event, queueSize),
		active:       true,
		createdAt:    now,
		lastActivity: now,
	}
}

// RequestID returns the id this connection serves.
func (c *Connection) RequestID() string {
	return c.requestID
}

// Active reports whether the connection still accepts events.
func (c *Connection) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

// CreatedAt returns the connection creation time.
func (c *Connection) CreatedAt() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.createdAt
}

// LastActivity returns the time of the last enqueue or dequeue.
func (c *Connection) LastActivity() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastActivity
}

func (c *Connection) touch() {
	c.mu.Lock()
	c.lastActivity = time.Now()
	c.mu.Unlock()
}

// Enqueue appends an event to the queue. When the queue is full the oldest
// event is discarded so progress stays fresh and terminal events always fit.
// Returns false when the connection is closed.
func (c *Connection) Enqueue(ev models.Event) bool {
	c.mu.Lock()
	if !c.active {
		c.mu.Unlock()
		return false
	}
	c.lastActivity = time.Now()
	c.mu.Unlock()

	for {
		select {
		case c.queue <- ev:
			metrics.StreamEventsSent.WithLabelValues(string(ev.Type)).Inc()
			return true
		default:
			select {
			case dropped := <-c.queue:
				metrics.StreamEventsDropped.Inc()
				logging.Warn().
					Str("request_id", c.requestID).
					Str("dropped_type", string(dropped.Type)).
					Msg("Stream queue full, dropping oldest event")
			default:
				// Consumer drained between the two selects; retry the send.
			}
		}
	}
}

// Next blocks up to timeout for the next event. ok is false on timeout.
func (c *Connection) Next(timeout time.Duration) (models.Event, bool) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case ev := <-c.queue:
		c.touch()
		return ev, true
	case <-timer.C:
		return models.Event{}, false
	}
}

// close deactivates the connection and drains pending events. Idempotent;
// callers go through the hub so the map entry is removed in the same step.
func (c *Connection) close() {
	c.mu.Lock()
	if !c.active {
		c.mu.Unlock()
		return
	}
	c.active = false
	c.mu.Unlock()

	for {
		select {
		case <-c.queue:
		default:
			return
		}
	}
}
