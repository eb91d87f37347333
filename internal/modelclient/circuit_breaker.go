// Fotofable - Contextual Photo Captioning and Duplicate Detection
// Copyright 2026 Marek K. (marekvk)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/marekvk/fotofable

package modelclient

import (
	"context"
	"errors"
	"fmt"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/marekvk/fotofable/internal/logging"
	"github.com/marekvk/fotofable/internal/metrics"
)

// CircuitBreakerClient wraps Client with a circuit breaker so a dead model
// host sheds load fast instead of eating a full retry cycle per request.
//
// The breaker uses real time for its interval and timeout calculations;
// tests should exercise the wrapped client directly.
type CircuitBreakerClient struct {
	client *Client
	cb     *gobreaker.CircuitBreaker[interface{}]
	name   string
}

// NewCircuitBreakerClient creates a model-host client with circuit breaker:
// max 3 concurrent requests half-open, 1 minute measurement window, 2 minute
// open period, trip at >= 60% failures over >= 10 requests.
func NewCircuitBreakerClient(client *Client) *CircuitBreakerClient {
	cbName := "model-host"

	metrics.CircuitBreakerState.WithLabelValues(cbName).Set(0) // 0 = closed

	cb := gobreaker.NewCircuitBreaker[interface{}](gobreaker.Settings{
		Name:        cbName,
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     2 * time.Minute,

		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 10 {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			shouldTrip := failureRatio >= 0.6
			if shouldTrip {
				logging.Warn().
					Uint32("failures", counts.TotalFailures).
					Float64("failure_rate", failureRatio*100).
					Str("breaker", cbName).
					Msg("opening circuit")
			}
			return shouldTrip
		},

		OnStateChange: func(name string, from, to gobreaker.State) {
			fromStr := stateToString(from)
			toStr := stateToString(to)
			logging.Info().Str("breaker", name).Str("from", fromStr).Str("to", toStr).Msg("circuit breaker state transition")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, fromStr, toStr).Inc()
		},
	})

	return &CircuitBreakerClient{client: client, cb: cb, name: cbName}
}

// execute wraps one call with circuit breaker protection.
func (cbc *CircuitBreakerClient) execute(fn func() (interface{}, error)) (interface{}, error) {
	result, err := cbc.cb.Execute(fn)
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			metrics.CircuitBreakerRequests.WithLabelValues(cbc.name, "rejected").Inc()
			// Present an open breaker as host unavailability so callers'
			// fallback paths engage uniformly.
			return nil, fmt.Errorf("circuit open: %w", ErrUnavailable)
		}
		metrics.CircuitBreakerRequests.WithLabelValues(cbc.name, "failure").Inc()
		return nil, err
	}

	metrics.CircuitBreakerRequests.WithLabelValues(cbc.name, "success").Inc()
	return result, nil
}

// castResult safely type-casts the circuit breaker result.
func castResult[T any](result interface{}, err error) (T, error) {
	var zero T
	if err != nil {
		return zero, err
	}
	typed, ok := result.(T)
	if !ok {
		return zero, fmt.Errorf("circuit breaker: unexpected result type %T", result)
	}
	return typed, nil
}

func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

func stateToString(state gobreaker.State) string {
	switch state {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateHalfOpen:
		return "half-open"
	case gobreaker.StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

// GenerateText generates text with circuit breaker protection.
func (cbc *CircuitBreakerClient) GenerateText(ctx context.Context, model, prompt string, params Params) (string, error) {
	return castResult[string](cbc.execute(func() (interface{}, error) {
		return cbc.client.GenerateText(ctx, model, prompt, params)
	}))
}

// GenerateWithImage generates from an image with circuit breaker protection.
func (cbc *CircuitBreakerClient) GenerateWithImage(ctx context.Context, model, prompt string, image []byte, params Params) (string, error) {
	return castResult[string](cbc.execute(func() (interface{}, error) {
		return cbc.client.GenerateWithImage(ctx, model, prompt, image, params)
	}))
}

// Embed computes an embedding with circuit breaker protection.
func (cbc *CircuitBreakerClient) Embed(ctx context.Context, model string, image []byte) ([]float32, error) {
	return castResult[[]float32](cbc.execute(func() (interface{}, error) {
		return cbc.client.Embed(ctx, model, image)
	}))
}

// LoadModel loads a model with circuit breaker protection.
func (cbc *CircuitBreakerClient) LoadModel(ctx context.Context, model string) error {
	_, err := cbc.execute(func() (interface{}, error) {
		return nil, cbc.client.LoadModel(ctx, model)
	})
	return err
}

// UnloadModel unloads a model with circuit breaker protection.
func (cbc *CircuitBreakerClient) UnloadModel(ctx context.Context, model string) error {
	_, err := cbc.execute(func() (interface{}, error) {
		return nil, cbc.client.UnloadModel(ctx, model)
	})
	return err
}

// Ping verifies connectivity with circuit breaker protection.
func (cbc *CircuitBreakerClient) Ping(ctx context.Context) error {
	_, err := cbc.execute(func() (interface{}, error) {
		return nil, cbc.client.Ping(ctx)
	})
	return err
}
