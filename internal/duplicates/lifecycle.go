// Fotofable - Contextual Photo Captioning and Duplicate Detection
// Copyright 2026 Marek K. (marekvk)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/marekvk/fotofable

package duplicates

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/marekvk/fotofable/internal/logging"
	"github.com/marekvk/fotofable/internal/metrics"
	"github.com/marekvk/fotofable/internal/modelclient"
)

// ModelState is the embedding-model residency state.
type ModelState int

const (
	StateUnavailable ModelState = iota
	StateLoading
	StateLoaded
	StateUnloading
)

func (s ModelState) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateLoaded:
		return "loaded"
	case StateUnloading:
		return "unloading"
	default:
		return "unavailable"
	}
}

// modelManager tracks embedding-model residency on the model host. State
// transitions happen under one mutex; a loaded model is used without
// holding it. Loads are single-flighted so a burst of cold requests issues
// one load call.
type modelManager struct {
	client modelclient.Interface
	model  string

	sf singleflight.Group

	mu      sync.Mutex
	state   ModelState
	lastUse time.Time
}

func newModelManager(client modelclient.Interface, model string) *modelManager {
	return &modelManager{client: client, model: model}
}

// EnsureLoaded brings the model resident. It returns true only to the caller
// whose call performed the cold load; callers that join an in-flight load or
// find the model already resident report warm, so only the initiator emits
// load progress.
func (m *modelManager) EnsureLoaded(ctx context.Context) (bool, error) {
	m.mu.Lock()
	if m.state == StateLoaded {
		m.lastUse = time.Now()
		m.mu.Unlock()
		return false, nil
	}
	m.mu.Unlock()

	// initiated is only written by the goroutine whose closure singleflight
	// executes; joined callers keep their own false.
	initiated := false
	_, err, _ := m.sf.Do("load", func() (any, error) {
		m.mu.Lock()
		if m.state == StateLoaded {
			m.mu.Unlock()
			return nil, nil
		}
		m.state = StateLoading
		m.mu.Unlock()
		initiated = true
		metrics.SetModelResidency(m.model, int(StateLoading))

		start := time.Now()
		err := m.client.LoadModel(ctx, m.model)

		m.mu.Lock()
		defer m.mu.Unlock()
		if err != nil {
			m.state = StateUnavailable
			metrics.SetModelResidency(m.model, int(StateUnavailable))
			return nil, fmt.Errorf("load embedding model %s: %w", m.model, err)
		}
		m.state = StateLoaded
		m.lastUse = time.Now()
		metrics.SetModelResidency(m.model, int(StateLoaded))
		metrics.RecordModelLoad(m.model, time.Since(start))
		logging.Info().Str("model", m.model).Dur("elapsed", time.Since(start)).Msg("Embedding model loaded")
		return nil, nil
	})
	if err != nil {
		return false, err
	}
	return initiated, nil
}

// Touch resets the idle clock after a successful use.
func (m *modelManager) Touch() {
	m.mu.Lock()
	m.lastUse = time.Now()
	m.mu.Unlock()
}

// MarkUnavailable records that the host rejected the model mid-use.
func (m *modelManager) MarkUnavailable() {
	m.mu.Lock()
	m.state = StateUnavailable
	m.mu.Unlock()
	metrics.SetModelResidency(m.model, int(StateUnavailable))
}

// SweepIdle unloads the model when it has been idle longer than the
// threshold. Called from the periodic supervisor loop; there is no
// per-request timer.
func (m *modelManager) SweepIdle(ctx context.Context, idle time.Duration) bool {
	m.mu.Lock()
	if m.state != StateLoaded || time.Since(m.lastUse) < idle {
		m.mu.Unlock()
		return false
	}
	m.state = StateUnloading
	m.mu.Unlock()
	metrics.SetModelResidency(m.model, int(StateUnloading))

	err := m.client.UnloadModel(ctx, m.model)

	m.mu.Lock()
	defer m.mu.Unlock()
	if err != nil {
		// Host still has it resident; keep using it.
		logging.Warn().Err(err).Str("model", m.model).Msg("Embedding model unload failed")
		m.state = StateLoaded
		metrics.SetModelResidency(m.model, int(StateLoaded))
		return false
	}
	m.state = StateUnavailable
	metrics.SetModelResidency(m.model, int(StateUnavailable))
	logging.Info().Str("model", m.model).Msg("Embedding model unloaded after idle period")
	return true
}

// State returns the current state and the time of last use.
func (m *modelManager) State() (ModelState, time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state, m.lastUse
}
