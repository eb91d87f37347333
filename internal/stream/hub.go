// Fotofable - Contextual Photo Captioning and Duplicate Detection
// Copyright 2026 Marek K. (marekvk)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/marekvk/fotofable

package stream

import (
	"context"
	"sync"
	"time"

	"github.com/marekvk/fotofable/internal/config"
	"github.com/marekvk/fotofable/internal/logging"
	"github.com/marekvk/fotofable/internal/metrics"
	"github.com/marekvk/fotofable/internal/models"
)

// Hub owns the connection map. Insert/lookup/remove run under one mutex;
// each connection's queue is independently concurrency-safe.
type Hub struct {
	mu          sync.Mutex
	connections map[string]*Connection

	queueSize    int
	maxIdle      time.Duration
	reapInterval time.Duration
}

// Stats is the hub snapshot for the stats surface.
type Stats struct {
	ActiveConnections int `json:"active_connections"`
	QueueSize         int `json:"queue_size"`
}

// NewHub builds a hub from the stream configuration.
func NewHub(cfg *config.StreamConfig) *Hub {
	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = 100
	}
	maxIdle := cfg.MaxIdle
	if maxIdle <= 0 {
		maxIdle = 5 * time.Minute
	}
	reapInterval := cfg.ReapInterval
	if reapInterval <= 0 {
		reapInterval = time.Minute
	}

	return &Hub{
		connections:  make(map[string]*Connection),
		queueSize:    queueSize,
		maxIdle:      maxIdle,
		reapInterval: reapInterval,
	}
}

// CreateConnection registers a fresh connection for the id. An existing
// connection for the same id is closed and replaced.
func (h *Hub) CreateConnection(requestID string) *Connection {
	h.mu.Lock()
	old := h.connections[requestID]
	conn := newConnection(requestID, h.queueSize)
	h.connections[requestID] = conn
	h.mu.Unlock()

	if old != nil {
		old.close()
		logging.Debug().Str("request_id", requestID).Msg("Replaced existing stream connection")
	}

	metrics.StreamJobsActive.Set(float64(h.Len()))
	return conn
}

// EnsureConnection returns the existing connection or creates one. Used by
// the reader endpoints so a client arriving before the worker (or after its
// first events) attaches to the same queue.
func (h *Hub) EnsureConnection(requestID string) *Connection {
	h.mu.Lock()
	if conn, ok := h.connections[requestID]; ok && conn.Active() {
		h.mu.Unlock()
		return conn
	}
	conn := newConnection(requestID, h.queueSize)
	h.connections[requestID] = conn
	h.mu.Unlock()

	metrics.StreamJobsActive.Set(float64(h.Len()))
	return conn
}

// Get returns the connection for the id, if any.
func (h *Hub) Get(requestID string) (*Connection, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	conn, ok := h.connections[requestID]
	return conn, ok
}

// Send enqueues an event for the id. Unknown ids are dropped with a warning:
// the worker outliving a reaped connection is a normal exit path.
func (h *Hub) Send(requestID string, ev models.Event) bool {
	conn, ok := h.Get(requestID)
	if !ok {
		logging.Warn().
			Str("request_id", requestID).
			Str("event_type", string(ev.Type)).
			Msg("Dropping event for unknown stream connection")
		return false
	}
	return conn.Enqueue(ev)
}

// CloseConnection deactivates and removes the connection for the id.
func (h *Hub) CloseConnection(requestID string) {
	h.mu.Lock()
	conn, ok := h.connections[requestID]
	if ok {
		delete(h.connections, requestID)
	}
	h.mu.Unlock()

	if ok {
		conn.close()
		metrics.StreamJobsActive.Set(float64(h.Len()))
	}
}

// Reap closes connections whose last activity is older than maxIdle and
// returns how many were removed.
func (h *Hub) Reap(maxIdle time.Duration) int {
	cutoff := time.Now().Add(-maxIdle)

	h.mu.Lock()
	var stale []*Connection
	for id, conn := range h.connections {
		if conn.LastActivity().Before(cutoff) {
			stale = append(stale, conn)
			delete(h.connections, id)
		}
	}
	h.mu.Unlock()

	for _, conn := range stale {
		conn.close()
		metrics.StreamJobsReaped.Inc()
		logging.Info().Str("request_id", conn.RequestID()).Msg("Reaped idle stream connection")
	}

	if len(stale) > 0 {
		metrics.StreamJobsActive.Set(float64(h.Len()))
	}
	return len(stale)
}

// Len returns the number of registered connections.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.connections)
}

// Stats returns the current hub snapshot.
func (h *Hub) Stats() Stats {
	return Stats{
		ActiveConnections: h.Len(),
		QueueSize:         h.queueSize,
	}
}

// RunReaper sweeps idle connections until the context is canceled. Runs as
// a supervised background service.
func (h *Hub) RunReaper(ctx context.Context) error {
	ticker := time.NewTicker(h.reapInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			h.Reap(h.maxIdle)
		}
	}
}
