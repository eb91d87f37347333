// Fotofable - Contextual Photo Captioning and Duplicate Detection
// Copyright 2026 Marek K. (marekvk)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/marekvk/fotofable

package supervisor

import (
	"context"
	"testing"
	"time"

	"github.com/marekvk/fotofable/internal/logging"
)

func TestDefaultTreeConfig(t *testing.T) {
	cfg := DefaultTreeConfig()
	if cfg.FailureThreshold != 5.0 {
		t.Errorf("FailureThreshold = %v", cfg.FailureThreshold)
	}
	if cfg.FailureDecay != 30.0 {
		t.Errorf("FailureDecay = %v", cfg.FailureDecay)
	}
	if cfg.FailureBackoff != 15*time.Second {
		t.Errorf("FailureBackoff = %v", cfg.FailureBackoff)
	}
	if cfg.ShutdownTimeout != 10*time.Second {
		t.Errorf("ShutdownTimeout = %v", cfg.ShutdownTimeout)
	}
}

func TestNewSupervisorTree_ZeroConfigGetsDefaults(t *testing.T) {
	tree, err := NewSupervisorTree(logging.NewSlogLogger(), TreeConfig{})
	if err != nil {
		t.Fatal(err)
	}
	if tree.config.FailureThreshold != 5.0 || tree.config.ShutdownTimeout != 10*time.Second {
		t.Errorf("defaults not applied: %+v", tree.config)
	}
	if tree.Root() == nil {
		t.Error("Root() returned nil")
	}
}

func TestSupervisorTree_ServeAndShutdown(t *testing.T) {
	tree, err := NewSupervisorTree(logging.NewSlogLogger(), DefaultTreeConfig())
	if err != nil {
		t.Fatal(err)
	}

	streaming := NewMockService("streaming-svc")
	maintenance := NewMockService("maintenance-svc")
	api := NewMockService("api-svc")
	tree.AddStreamingService(streaming)
	tree.AddMaintenanceService(maintenance)
	tree.AddAPIService(api)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := tree.ServeBackground(ctx)

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if streaming.StartCount() > 0 && maintenance.StartCount() > 0 && api.StartCount() > 0 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if streaming.StartCount() == 0 || maintenance.StartCount() == 0 || api.StartCount() == 0 {
		t.Fatalf("services not started: %d/%d/%d",
			streaming.StartCount(), maintenance.StartCount(), api.StartCount())
	}

	cancel()
	select {
	case <-errCh:
	case <-time.After(5 * time.Second):
		t.Fatal("tree did not stop after cancel")
	}
}

func TestSupervisorTree_RestartsFailedService(t *testing.T) {
	cfg := DefaultTreeConfig()
	cfg.FailureBackoff = 10 * time.Millisecond
	tree, err := NewSupervisorTree(logging.NewSlogLogger(), cfg)
	if err != nil {
		t.Fatal(err)
	}

	svc := NewMockService("flaky")
	svc.SetFailCount(2)
	tree.AddMaintenanceService(svc)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errCh := tree.ServeBackground(ctx)

	deadline := time.Now().Add(5 * time.Second)
	for svc.StartCount() < 3 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if svc.StartCount() < 3 {
		t.Fatalf("StartCount = %d, want >= 3 (two failures then success)", svc.StartCount())
	}

	cancel()
	select {
	case <-errCh:
	case <-time.After(5 * time.Second):
		t.Fatal("tree did not stop")
	}
}
