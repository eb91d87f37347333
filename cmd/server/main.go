// Fotofable - Contextual Photo Captioning and Duplicate Detection
// Copyright 2026 Marek K. (marekvk)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/marekvk/fotofable

// Package main is the entry point for the Fotofable server.
//
// Fotofable generates contextual photo captions through a staged AI pipeline
// (vision, travel, cultural, caption, hashtags) against an Ollama-compatible
// model host, resolves geographic context from a DuckDB spatial store with
// lazy first-sight country imports, and detects near-duplicate photos via
// embedding similarity with quality-ranked grouping.
//
// # Application Architecture
//
// The server initializes components in the following order:
//
//  1. Configuration: environment variables and optional config.yaml (Koanf v2)
//  2. Database: DuckDB spatial store (geonames, UNESCO, cultural sites, POIs)
//  3. Runtime settings: encrypted photo-proxy credentials, admin-mutable
//  4. Model host client with circuit breaker
//  5. Prompt store, request cache, temp image store
//  6. Geo stack: Nominatim/Overpass clients, country importer, resolver
//  7. Caption pipeline and duplicate detector
//  8. Stream hub (SSE/WebSocket) and optional NATS JetStream events
//  9. HTTP server under a suture supervisor tree
//
// # Signal Handling
//
// The server shuts down gracefully on SIGINT and SIGTERM: the HTTP server
// drains in-flight requests, maintenance loops stop, and the detector,
// event service and database close in dependency order.
package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/marekvk/fotofable/docs" // generated swagger docs
	"github.com/marekvk/fotofable/internal/api"
	"github.com/marekvk/fotofable/internal/auth"
	"github.com/marekvk/fotofable/internal/config"
	"github.com/marekvk/fotofable/internal/database"
	"github.com/marekvk/fotofable/internal/duplicates"
	"github.com/marekvk/fotofable/internal/events"
	"github.com/marekvk/fotofable/internal/geo"
	"github.com/marekvk/fotofable/internal/geoapi"
	"github.com/marekvk/fotofable/internal/imagestore"
	"github.com/marekvk/fotofable/internal/importer"
	"github.com/marekvk/fotofable/internal/logging"
	"github.com/marekvk/fotofable/internal/modelclient"
	"github.com/marekvk/fotofable/internal/photoproxy"
	"github.com/marekvk/fotofable/internal/pipeline"
	"github.com/marekvk/fotofable/internal/prompts"
	"github.com/marekvk/fotofable/internal/requestcache"
	"github.com/marekvk/fotofable/internal/stream"
	"github.com/marekvk/fotofable/internal/supervisor"
	"github.com/marekvk/fotofable/internal/supervisor/services"
)

//nolint:gocyclo // Main initialization function with sequential setup steps
func main() {
	// Load configuration first to get logging settings
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().
		Str("addr", cfg.Server.Addr()).
		Str("db_path", cfg.Database.Path).
		Bool("admin_enabled", cfg.Server.AdminSecret != "").
		Bool("events_enabled", cfg.Events.Enabled).
		Msg("Starting Fotofable")

	db, err := database.New(&cfg.Database)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer func() {
		if err := db.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing database")
		}
	}()
	logging.Info().Msg("Database initialized successfully")

	// Runtime settings: the photo-proxy credentials are admin-mutable and
	// encrypted at rest when an admin secret is configured.
	var encryptor *config.CredentialEncryptor
	if cfg.Server.AdminSecret != "" {
		encryptor, err = config.NewCredentialEncryptor(cfg.Server.AdminSecret)
		if err != nil {
			logging.Fatal().Err(err).Msg("Failed to initialize settings encryption")
		}
	} else {
		logging.Warn().Msg("SERVER_ADMIN_SECRET not set: admin API disabled, settings stored unencrypted")
	}
	settings, err := config.NewSettingsManager("", encryptor)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load runtime settings")
	}

	proxy := photoproxy.New(settings, &cfg.PhotoProxy)
	if proxy.Configured() {
		if err := proxy.Ping(context.Background()); err != nil {
			logging.Warn().Err(err).Msg("Photo proxy unreachable (will retry per request)")
		} else {
			logging.Info().Msg("Connected to photo proxy")
		}
	} else {
		logging.Info().Msg("Photo proxy not configured: album analysis and asset download disabled")
	}

	// Model host client behind a circuit breaker so a down Ollama host fails
	// fast instead of stacking up timeouts.
	client := modelclient.NewCircuitBreakerClient(modelclient.New(&cfg.ModelHost))
	if err := client.Ping(context.Background()); err != nil {
		logging.Warn().Err(err).Str("url", cfg.ModelHost.URL).
			Msg("Model host unreachable at startup (captions will degrade until it returns)")
	} else {
		logging.Info().Str("url", cfg.ModelHost.URL).Msg("Connected to model host")
	}

	store, err := prompts.Load(cfg.Prompts.Path)
	if err != nil {
		logging.Fatal().Err(err).Str("path", cfg.Prompts.Path).Msg("Failed to load prompt configuration")
	}

	cache := requestcache.New(cfg.Cache.Capacity, cfg.Cache.TTL)

	images, err := imagestore.New(&cfg.Images, proxy)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize image store")
	}

	// Geo stack: one shared pacer keeps the public Nominatim/Overpass usage
	// policies honored across the resolver and the importer.
	pacer := geoapi.NewPacer(cfg.Geo.NominatimInterval)
	nominatim := geoapi.NewNominatim(&cfg.Geo, pacer)
	overpass := geoapi.NewOverpass(&cfg.Geo, pacer)

	imp := importer.New(&cfg.Importer, db, nominatim, overpass)
	resolver := geo.NewResolver(&cfg.Geo, db, imp, nominatim, overpass)

	orchestrator := pipeline.NewOrchestrator(pipeline.NewStages(client, store), resolver, store)

	detector, err := duplicates.NewDetector(client, &cfg.Duplicates)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize duplicate detector")
	}
	defer func() {
		if err := detector.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing duplicate detector")
		}
	}()

	hub := stream.NewHub(&cfg.Stream)

	eventService, err := events.New(&cfg.Events)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize event publishing")
	}
	defer eventService.Close()

	guard := auth.NewGuard(cfg.Server.AdminSecret)

	handler := api.NewHandler(cfg, api.Deps{
		Captioner:  orchestrator,
		Duplicates: detector,
		Importer:   imp,
		Resolver:   resolver,
		Store:      store,
		Images:     images,
		Hub:        hub,
		Cache:      cache,
		Proxy:      proxy,
		DB:         db,
		Client:     client,
		Settings:   settings,
		Events:     eventService,
	})
	router := api.NewRouter(cfg, handler, guard)

	// Supervisor tree: streaming, maintenance and API layers with
	// independent restart backoff. Suture events log through sutureslog
	// into the zerolog output.
	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create supervisor tree")
	}

	tree.AddStreamingService(services.NewStreamReaperService(hub))

	tree.AddMaintenanceService(services.NewIntervalService("image-reaper", 5*time.Minute, func(context.Context) {
		if removed := images.Reap(cfg.Images.MaxAge); removed > 0 {
			logging.Debug().Int("removed", removed).Msg("Reaped aged temp images")
		}
	}))
	tree.AddMaintenanceService(services.NewIntervalService("model-idle-sweep", time.Minute, func(ctx context.Context) {
		detector.SweepIdle(ctx)
	}))
	tree.AddMaintenanceService(services.NewIntervalService("request-cache-expiry", 5*time.Minute, func(context.Context) {
		cache.CleanupExpired()
	}))
	tree.AddMaintenanceService(services.NewIntervalService("db-checkpoint", 30*time.Minute, func(ctx context.Context) {
		if err := db.Checkpoint(ctx); err != nil {
			logging.Warn().Err(err).Msg("Database checkpoint failed")
		}
	}))

	server := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Server.Timeout,
		WriteTimeout:      0, // SSE connections outlive any fixed write deadline
		IdleTimeout:       120 * time.Second,
	}
	tree.AddAPIService(services.NewHTTPServerService(server, 10*time.Second))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logging.Info().Str("addr", cfg.Server.Addr()).Msg("Fotofable ready")
	if err := tree.Serve(ctx); err != nil && ctx.Err() == nil {
		logging.Fatal().Err(err).Msg("Supervisor tree failed")
	}
	logging.Info().Msg("Shutdown complete")
}
