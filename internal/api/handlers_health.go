// Fotofable - Contextual Photo Captioning and Duplicate Detection
// Copyright 2026 Marek K. (marekvk)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/marekvk/fotofable

package api

import (
	"context"
	"net/http"
	"time"
)

const readyProbeTimeout = 2 * time.Second

// Health handles GET /api/health.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":         "ok",
		"uptime_seconds": h.uptime(),
	})
}

// HealthLive handles GET /api/health/live: process-up only.
func (h *Handler) HealthLive(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "alive"})
}

// HealthReady handles GET /api/health/ready. The database gates readiness;
// the model host is reported but does not, since every caption stage
// degrades without it.
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readyProbeTimeout)
	defer cancel()

	if h.DB != nil {
		if err := h.DB.Ping(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{
				"status":   "not ready",
				"database": "unreachable",
			})
			return
		}
	}

	modelHost := "ok"
	if h.Client != nil {
		if err := h.Client.Ping(ctx); err != nil {
			modelHost = "unreachable"
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":     "ready",
		"database":   "ok",
		"model_host": modelHost,
	})
}
