// Fotofable - Contextual Photo Captioning and Duplicate Detection
// Copyright 2026 Marek K. (marekvk)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/marekvk/fotofable

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger/v2"

	"github.com/marekvk/fotofable/internal/auth"
	"github.com/marekvk/fotofable/internal/config"
)

// NewRouter assembles the HTTP surface: middleware stack, the /api routes,
// the admin group behind the JWT guard, and the operational endpoints
// (metrics, swagger).
func NewRouter(cfg *config.Config, h *Handler, guard *auth.Guard) http.Handler {
	mw := NewMiddleware(&cfg.API)

	r := chi.NewRouter()
	r.Use(RequestLogging())
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(mw.CORS())

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "not found", CodeNotFound)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed", "METHOD_NOT_ALLOWED")
	})

	r.Route("/api/health", func(r chi.Router) {
		r.Use(mw.RateLimitHealth())
		r.Use(SecurityHeaders())
		r.Get("/", h.Health)
		r.Get("/live", h.HealthLive)
		r.Get("/ready", h.HealthReady)
	})

	r.Route("/api/ai", func(r chi.Router) {
		r.Use(mw.RateLimit())
		r.Use(SecurityHeaders())
		r.Use(PrometheusMetrics())
		r.Post("/generate-caption", h.GenerateCaption)
		r.Post("/generate-caption-async", h.GenerateCaptionAsync)
		r.Get("/generate-caption-stream/{requestID}", h.CaptionStream)
		r.Post("/regenerate-final", h.RegenerateFinal)
		r.Get("/config", h.AIConfig)
		r.Get("/stats", h.AIStats)
		r.Post("/clear-cache", h.ClearCache)
		r.Post("/reload-config", h.ReloadConfig)
	})

	r.Route("/api/duplicates", func(r chi.Router) {
		r.Use(mw.RateLimit())
		r.Use(SecurityHeaders())
		r.Use(PrometheusMetrics())
		r.Get("/status", h.DuplicatesStatus)
		r.Post("/find-similar", h.FindSimilar)
		r.Post("/find-similar-async", h.FindSimilarAsync)
		r.Get("/find-similar-stream/{requestID}", h.FindSimilarStream)
		r.Post("/analyze-album/{albumID}", h.AnalyzeAlbum)
	})

	r.Route("/api/stream", func(r chi.Router) {
		r.Use(mw.RateLimit())
		r.Get("/ws/{requestID}", h.StreamWS)
	})

	r.Route("/api/admin", func(r chi.Router) {
		r.Use(mw.RateLimit())
		r.Use(SecurityHeaders())
		r.Use(PrometheusMetrics())
		r.Use(guard.Middleware)
		r.Get("/imports", h.AdminListImports)
		r.Post("/imports/{countryCode}", h.AdminTriggerImport)
		r.Delete("/imports/{countryCode}", h.AdminDeleteImport)
		r.Put("/settings/photo-proxy", h.AdminSetPhotoProxy)
		r.Get("/settings", h.AdminGetSettings)
	})

	r.Handle("/metrics", promhttp.Handler())
	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	return r
}
