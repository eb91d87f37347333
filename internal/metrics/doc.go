// Fotofable - Contextual Photo Captioning and Duplicate Detection
// Copyright 2026 Marek K. (marekvk)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/marekvk/fotofable

/*
Package metrics provides Prometheus metrics collection and export for observability.

This package instruments the application using the Prometheus client library,
exposing metrics for monitoring performance, errors, and system health.

# Overview

The package provides metrics for:
  - API endpoint latency and throughput
  - Database query performance (DuckDB)
  - Caption pipeline stages, durations, and confidence
  - Geographic resolution and external provider calls
  - Embedding model residency and duplicate analysis
  - Reference data imports
  - Cache hit/miss rates and stream delivery

# Metrics Endpoint

Metrics are exposed at the /metrics endpoint in Prometheus text format:

	curl http://localhost:8000/metrics

# Available Metrics

API Metrics:
  - api_requests_total: Total API requests (counter)
    Labels: method, endpoint, status_code
  - api_request_duration_seconds: Request latency (histogram)
    Labels: method, endpoint
  - api_active_requests: Active requests (gauge)
  - api_rate_limit_hits_total: Rate limit rejections (counter)

Caption Pipeline Metrics:
  - caption_requests_total: Caption generations (counter)
    Labels: style, status (success, fallback, error)
  - caption_duration_seconds: End-to-end pipeline duration (histogram)
  - caption_stage_duration_seconds: Per-stage duration (histogram)
    Labels: stage (vision, geo, travel, cultural, caption, hashtags)
  - caption_confidence: Composite confidence distribution (histogram)
  - caption_requests_in_flight: Admitted generations (gauge)
  - caption_admission_rejections_total: 429 rejections (counter)

Geographic Metrics:
  - geo_resolve_duration_seconds: Full context resolution time (histogram)
  - geo_resolve_fallbacks_total: Degraded minimal-context resolutions (counter)
  - geo_api_call_duration_seconds: External provider latency (histogram)
    Labels: provider (nominatim, overpass)

Model and Duplicate Metrics:
  - model_residency_state: Residency (gauge)
    Values: 0=unavailable, 1=loading, 2=loaded, 3=unloading
  - model_load_duration_seconds: Load time (histogram)
  - embedding_duration_seconds: Per-image embedding time (histogram)
  - duplicate_analysis_duration_seconds: Detection run time (histogram)
  - duplicate_groups_found: Groups per analysis (histogram)

Import Metrics:
  - import_duration_seconds: Dataset import time (histogram)
    Labels: dataset (geonames, unesco, osm_pois)
  - import_records_processed_total: Imported records (counter)
  - import_errors_total: Import failures (counter)
    Labels: dataset, error_type
  - import_last_success_timestamp: Last successful country import (gauge)

Circuit Breaker Metrics:
  - circuit_breaker_state: Current state (gauge)
    Labels: name
    Values: 0=closed, 1=half-open, 2=open
  - circuit_breaker_requests_total: Requests by result (counter)
  - circuit_breaker_state_transitions_total: Transitions (counter)

# Usage Example

Basic setup in main.go:

	import (
	    "github.com/prometheus/client_golang/prometheus/promhttp"
	)

	mux.Handle("/metrics", promhttp.Handler())

Recording from application code:

	start := time.Now()
	result, err := db.NearbyCities(ctx, lat, lon, radius)
	metrics.RecordDBQuery("SELECT", "geonames", time.Since(start), err)

All metrics register against the default Prometheus registry via promauto at
package initialization; no explicit Init call is required.
*/
package metrics
