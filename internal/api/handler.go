// Fotofable - Contextual Photo Captioning and Duplicate Detection
// Copyright 2026 Marek K. (marekvk)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/marekvk/fotofable

package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/marekvk/fotofable/internal/config"
	"github.com/marekvk/fotofable/internal/database"
	"github.com/marekvk/fotofable/internal/events"
	"github.com/marekvk/fotofable/internal/imagestore"
	"github.com/marekvk/fotofable/internal/importer"
	"github.com/marekvk/fotofable/internal/modelclient"
	"github.com/marekvk/fotofable/internal/models"
	"github.com/marekvk/fotofable/internal/photoproxy"
	"github.com/marekvk/fotofable/internal/pipeline"
	"github.com/marekvk/fotofable/internal/prompts"
	"github.com/marekvk/fotofable/internal/requestcache"
	"github.com/marekvk/fotofable/internal/stream"
)

// Captioner runs the caption pipeline. Satisfied by *pipeline.Orchestrator.
type Captioner interface {
	Generate(ctx context.Context, req pipeline.Request, emit stream.Emitter) *models.CaptionResult
	RegenerateFinal(ctx context.Context, req pipeline.RegenerateRequest) *models.CaptionResult
}

// DuplicateFinder runs duplicate analysis. Satisfied by *duplicates.Detector.
type DuplicateFinder interface {
	FindDuplicates(ctx context.Context, images []models.ImageRef, threshold, timeWindowHours float64, emit stream.Emitter) ([]models.DuplicateGroup, error)
	Status() models.DetectorStatus
	ClearCache()
	MaxSyncAssets() int
}

// ImportManager triggers and reports country imports. Satisfied by
// *importer.Importer.
type ImportManager interface {
	ImportCountry(ctx context.Context, countryCode string, emit stream.Emitter) error
	Status(ctx context.Context) (importer.Status, error)
}

// GeoCache is the resolver's cache surface used by stats and clear-cache.
type GeoCache interface {
	ClearCache()
	CacheStats() requestcache.Stats
}

// Deps are the wired components the handler dispatches to.
type Deps struct {
	Captioner  Captioner
	Duplicates DuplicateFinder
	Importer   ImportManager
	Resolver   GeoCache
	Store      *prompts.Store
	Images     *imagestore.Store
	Hub        *stream.Hub
	Cache      *requestcache.Cache
	Proxy      *photoproxy.Client
	DB         *database.DB
	Client     modelclient.Interface
	Settings   *config.SettingsManager
	Events     *events.Service
}

// Handler owns the HTTP surface. One weighted semaphore admits caption and
// duplicate work; everything else is cheap and unguarded.
type Handler struct {
	cfg *config.Config
	Deps

	sem   *semaphore.Weighted
	start time.Time
}

func NewHandler(cfg *config.Config, deps Deps) *Handler {
	limit := cfg.Server.MaxConcurrentRequests
	if limit <= 0 {
		limit = 5
	}
	return &Handler{
		cfg:   cfg,
		Deps:  deps,
		sem:   semaphore.NewWeighted(int64(limit)),
		start: time.Now(),
	}
}

// admit reserves one admission slot; a false return means the 429 was
// already written.
func (h *Handler) admit(w http.ResponseWriter) bool {
	if !h.sem.TryAcquire(1) {
		writeError(w, http.StatusTooManyRequests,
			"server is at capacity, retry later", CodeTooManyRequests)
		return false
	}
	return true
}

// sseURL builds the absolute stream URL the async responses hand back.
func (h *Handler) sseURL(r *http.Request, path string) string {
	scheme := "http"
	if h.cfg.Server.UseHTTPS {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s%s", scheme, r.Host, path)
}

func (h *Handler) uptime() float64 {
	return time.Since(h.start).Seconds()
}
