// Fotofable - Contextual Photo Captioning and Duplicate Detection
// Copyright 2026 Marek K. (marekvk)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/marekvk/fotofable

package services

import (
	"context"
	"fmt"
)

// StreamReaper interface matches the stream hub's reaper loop.
//
// Satisfied by *stream.Hub from internal/stream:
//   - RunReaper(ctx context.Context) error
type StreamReaper interface {
	RunReaper(ctx context.Context) error
}

// StreamReaperService wraps the stream hub reaper as a supervised service.
//
// The reaper closes connections whose readers went away and whose workers
// finished, so abandoned async requests do not pin queue memory forever.
//
// Example usage:
//
//	svc := services.NewStreamReaperService(hub)
//	tree.AddStreamingService(svc)
type StreamReaperService struct {
	reaper StreamReaper
	name   string
}

// NewStreamReaperService creates a new stream reaper service wrapper.
func NewStreamReaperService(reaper StreamReaper) *StreamReaperService {
	return &StreamReaperService{
		reaper: reaper,
		name:   "stream-reaper",
	}
}

// Serve implements suture.Service. RunReaper blocks until the context is
// canceled; any other return is a failure suture should restart.
func (s *StreamReaperService) Serve(ctx context.Context) error {
	if err := s.reaper.RunReaper(ctx); err != nil && ctx.Err() == nil {
		return fmt.Errorf("stream reaper failed: %w", err)
	}
	return ctx.Err()
}

// String implements fmt.Stringer for logging.
func (s *StreamReaperService) String() string {
	return s.name
}
