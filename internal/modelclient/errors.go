// Fotofable - Contextual Photo Captioning and Duplicate Detection
// Copyright 2026 Marek K. (marekvk)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/marekvk/fotofable

package modelclient

import (
	"context"
	"errors"
	"net"
)

// Sentinel error kinds. Callers branch on these with errors.Is; the wrapped
// chain keeps the underlying cause for logs.
var (
	// ErrTimeout indicates the model host did not answer within the
	// configured timeout. Retryable.
	ErrTimeout = errors.New("model host timeout")

	// ErrUnavailable indicates the host refused the connection or answered
	// with a server error. Retryable.
	ErrUnavailable = errors.New("model host unavailable")

	// ErrMalformed indicates the host answered with a body that does not
	// parse. Not retryable: the same request would fail the same way.
	ErrMalformed = errors.New("malformed model response")

	// ErrEmpty indicates a well-formed response carrying no generated text.
	// Not retryable.
	ErrEmpty = errors.New("empty model response")
)

// retryable reports whether the error kind warrants another attempt.
func retryable(err error) bool {
	return errors.Is(err, ErrTimeout) || errors.Is(err, ErrUnavailable)
}

// classifyTransportError maps a transport-level failure onto a kind.
func classifyTransportError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrTimeout
	}
	return ErrUnavailable
}
