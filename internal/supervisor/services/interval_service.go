// Fotofable - Contextual Photo Captioning and Duplicate Detection
// Copyright 2026 Marek K. (marekvk)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/marekvk/fotofable

package services

import (
	"context"
	"time"
)

// IntervalService runs a task on a fixed interval as a supervised service.
//
// The maintenance layer is built from these: temp-image reaping, embedding
// model idle sweeps, request-cache expiry and database checkpointing are all
// "call this every N" loops with no state of their own. The task receives a
// context canceled on shutdown; a panicking task crashes the service and
// suture restarts it with backoff.
//
// Example usage:
//
//	svc := services.NewIntervalService("image-reaper", 5*time.Minute, func(context.Context) {
//	    images.Reap(cfg.Images.MaxAge)
//	})
//	tree.AddMaintenanceService(svc)
type IntervalService struct {
	name     string
	interval time.Duration
	task     func(ctx context.Context)
}

// NewIntervalService creates a new interval service wrapper. Intervals at or
// below zero fall back to one minute.
func NewIntervalService(name string, interval time.Duration, task func(ctx context.Context)) *IntervalService {
	if interval <= 0 {
		interval = time.Minute
	}
	return &IntervalService{
		name:     name,
		interval: interval,
		task:     task,
	}
}

// Serve implements suture.Service. The first tick happens one interval after
// start, not immediately; nothing these loops do is urgent at boot.
func (s *IntervalService) Serve(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.task(ctx)
		}
	}
}

// String implements fmt.Stringer for logging.
func (s *IntervalService) String() string {
	return s.name
}
