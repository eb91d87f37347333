// Fotofable - Contextual Photo Captioning and Duplicate Detection
// Copyright 2026 Marek K. (marekvk)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/marekvk/fotofable

package metrics

import (
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus instrumentation for:
// - Database query performance (DuckDB)
// - API endpoint latency and throughput
// - Caption pipeline stages and confidence
// - Geographic resolution and external API calls
// - Embedding model residency and duplicate analysis
// - Reference data imports
// - Cache efficiency and stream delivery

var (
	// Database Metrics
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "duckdb_query_duration_seconds",
			Help:    "Duration of DuckDB queries in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation", "table"},
	)

	DBQueryErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "duckdb_query_errors_total",
			Help: "Total number of DuckDB query errors",
		},
		[]string{"operation", "table", "error_type"},
	)

	DBConnectionPoolSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "duckdb_connection_pool_size",
			Help: "Current number of database connections in use",
		},
	)

	DBSpatialLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "duckdb_spatial_lookups_total",
			Help: "Total number of radius queries against reference datasets",
		},
		[]string{"dataset"}, // "geonames", "unesco", "cultural", "osm_pois"
	)

	// API Endpoint Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "api_active_requests",
			Help: "Current number of active API requests",
		},
	)

	APIRateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_rate_limit_hits_total",
			Help: "Total number of rate limit rejections",
		},
		[]string{"endpoint"},
	)

	// Caption Pipeline Metrics
	CaptionRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "caption_requests_total",
			Help: "Total number of caption generations",
		},
		[]string{"style", "status"}, // status: "success", "fallback", "error"
	)

	CaptionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "caption_duration_seconds",
			Help:    "End-to-end caption pipeline duration in seconds",
			Buckets: []float64{1, 2.5, 5, 10, 20, 30, 60, 120, 300}, // Vision inference dominates
		},
		[]string{"style"},
	)

	CaptionStageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "caption_stage_duration_seconds",
			Help:    "Per-stage caption pipeline duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"stage"}, // "vision", "geo", "travel", "cultural", "caption", "hashtags"
	)

	CaptionConfidence = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "caption_confidence",
			Help:    "Composite confidence of generated captions",
			Buckets: prometheus.LinearBuckets(0.1, 0.1, 10),
		},
	)

	CaptionsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "caption_requests_in_flight",
			Help: "Caption generations currently admitted",
		},
	)

	CaptionAdmissionRejections = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "caption_admission_rejections_total",
			Help: "Caption requests rejected because the in-flight limit was reached",
		},
	)

	// Geographic Resolution Metrics
	GeoResolveDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "geo_resolve_duration_seconds",
			Help:    "Duration of full geographic context resolution",
			Buckets: prometheus.DefBuckets,
		},
	)

	GeoResolveFallbacks = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "geo_resolve_fallbacks_total",
			Help: "Resolutions that degraded to the minimal coordinate-only context",
		},
	)

	GeoAPICallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "geo_api_call_duration_seconds",
			Help:    "Duration of external geo provider calls",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"provider"}, // "nominatim", "overpass"
	)

	GeoAPICallErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "geo_api_call_errors_total",
			Help: "Total number of failed external geo provider calls",
		},
		[]string{"provider"},
	)

	// Cache Metrics (General)
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_hits_total",
			Help: "Total number of cache hits",
		},
		[]string{"cache_type"}, // "request", "geo_cell", "embedding_memory", "embedding_disk"
	)

	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_misses_total",
			Help: "Total number of cache misses",
		},
		[]string{"cache_type"},
	)

	CacheSize = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "cache_entries",
			Help: "Current number of cached entries",
		},
		[]string{"cache_type"},
	)

	CacheEvictions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_evictions_total",
			Help: "Total number of cache evictions (TTL expiry or LRU pressure)",
		},
		[]string{"cache_type"},
	)

	// Stream Delivery Metrics
	StreamSubscribers = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "stream_subscribers",
			Help: "Current number of progress stream subscribers",
		},
		[]string{"transport"}, // "sse", "websocket"
	)

	StreamEventsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stream_events_sent_total",
			Help: "Total number of progress events delivered",
		},
		[]string{"event_type"},
	)

	StreamEventsDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "stream_events_dropped_total",
			Help: "Progress events dropped because a subscriber queue was full",
		},
	)

	StreamJobsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "stream_jobs_active",
			Help: "Async caption jobs currently registered",
		},
	)

	StreamJobsReaped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "stream_jobs_reaped_total",
			Help: "Async caption jobs removed by the idle reaper",
		},
	)

	// Circuit Breaker Metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Total number of requests through circuit breaker",
		},
		[]string{"name", "result"}, // result: "success", "failure", "rejected"
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_state_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from_state", "to_state"},
	)

	// Embedding Model Metrics
	ModelResidency = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "model_residency_state",
			Help: "Embedding model residency (0=unavailable, 1=loading, 2=loaded, 3=unloading)",
		},
		[]string{"model"},
	)

	ModelLoadDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "model_load_duration_seconds",
			Help:    "Duration of embedding model load operations",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 20, 30, 60, 120},
		},
		[]string{"model"},
	)

	EmbeddingDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "embedding_duration_seconds",
			Help:    "Duration of single image embedding computations",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
	)

	EmbeddingsComputed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "embeddings_computed_total",
			Help: "Total number of image embeddings computed (cache misses)",
		},
	)

	// Duplicate Analysis Metrics
	DuplicateAnalysisDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "duplicate_analysis_duration_seconds",
			Help:    "Duration of duplicate detection runs",
			Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		},
	)

	DuplicateGroupsFound = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "duplicate_groups_found",
			Help:    "Number of duplicate groups found per analysis",
			Buckets: []float64{1, 2, 5, 10, 25, 50, 100},
		},
	)

	DuplicatePairsCompared = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "duplicate_pairs_compared_total",
			Help: "Total number of pairwise similarity comparisons",
		},
	)

	// Reference Data Import Metrics
	ImportDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "import_duration_seconds",
			Help:    "Duration of reference dataset imports",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600}, // Country imports can take minutes
		},
		[]string{"dataset"},
	)

	ImportRecordsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "import_records_processed_total",
			Help: "Total number of reference records imported",
		},
		[]string{"dataset"},
	)

	ImportErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "import_errors_total",
			Help: "Total number of import errors",
		},
		[]string{"dataset", "error_type"}, // "download", "parse", "database", "other"
	)

	ImportLastSuccess = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "import_last_success_timestamp",
			Help: "Unix timestamp of last successful country import",
		},
	)

	ImportBatchSize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "import_batch_size",
			Help:    "Number of records in import batches",
			Buckets: []float64{10, 50, 100, 250, 500, 1000, 5000, 10000},
		},
	)

	// Event Publishing Metrics
	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "events_published_total",
			Help: "Total number of lifecycle events published to NATS",
		},
		[]string{"subject"},
	)

	EventPublishErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "event_publish_errors_total",
			Help: "Total number of failed event publishes",
		},
		[]string{"subject"},
	)

	// System Metrics
	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "app_info",
			Help: "Application version and build information",
		},
		[]string{"version", "go_version"},
	)

	AppUptime = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "app_uptime_seconds",
			Help: "Application uptime in seconds",
		},
	)
)

// RecordDBQuery records a database query metric
func RecordDBQuery(operation, table string, duration time.Duration, err error) {
	DBQueryDuration.WithLabelValues(operation, table).Observe(duration.Seconds())
	if err != nil {
		errorType := err.Error()
		// Truncate long error messages
		if len(errorType) > 50 {
			errorType = errorType[:50]
		}
		DBQueryErrors.WithLabelValues(operation, table, errorType).Inc()
	}
}

// RecordAPIRequest records an API request metric
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// TrackActiveRequest tracks active API requests
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}

// RecordCaption records a completed caption generation.
// Status is "success", "fallback", or "error".
func RecordCaption(style, status string, duration time.Duration, confidence float64) {
	CaptionRequestsTotal.WithLabelValues(style, status).Inc()
	CaptionDuration.WithLabelValues(style).Observe(duration.Seconds())
	if status != "error" {
		CaptionConfidence.Observe(confidence)
	}
}

// RecordStage records a single pipeline stage duration.
func RecordStage(stage string, duration time.Duration) {
	CaptionStageDuration.WithLabelValues(stage).Observe(duration.Seconds())
}

// RecordGeoAPICall records an external geo provider call.
func RecordGeoAPICall(provider string, duration time.Duration, err error) {
	GeoAPICallDuration.WithLabelValues(provider).Observe(duration.Seconds())
	if err != nil {
		GeoAPICallErrors.WithLabelValues(provider).Inc()
	}
}

// RecordImport records a dataset import and categorizes any error.
func RecordImport(dataset string, duration time.Duration, records int, err error) {
	ImportDuration.WithLabelValues(dataset).Observe(duration.Seconds())
	ImportRecordsProcessed.WithLabelValues(dataset).Add(float64(records))
	if err != nil {
		errorType := "other"
		errorMsg := err.Error()
		switch {
		case strings.Contains(errorMsg, "download"), strings.Contains(errorMsg, "fetch"):
			errorType = "download"
		case strings.Contains(errorMsg, "parse"), strings.Contains(errorMsg, "decode"):
			errorType = "parse"
		case strings.Contains(errorMsg, "database"), strings.Contains(errorMsg, "insert"):
			errorType = "database"
		}
		ImportErrors.WithLabelValues(dataset, errorType).Inc()
	}
}

// RecordImportSuccess updates the last successful country import timestamp.
func RecordImportSuccess() {
	ImportLastSuccess.Set(float64(time.Now().Unix()))
}

// SetModelResidency updates the model residency gauge.
// State values: 0=unavailable, 1=loading, 2=loaded, 3=unloading.
func SetModelResidency(model string, state int) {
	ModelResidency.WithLabelValues(model).Set(float64(state))
}

// RecordModelLoad records an embedding model load attempt.
func RecordModelLoad(model string, duration time.Duration) {
	ModelLoadDuration.WithLabelValues(model).Observe(duration.Seconds())
}

// RecordEmbedding records a computed embedding.
func RecordEmbedding(duration time.Duration) {
	EmbeddingDuration.Observe(duration.Seconds())
	EmbeddingsComputed.Inc()
}

// RecordDuplicateAnalysis records a completed duplicate detection run.
func RecordDuplicateAnalysis(duration time.Duration, groups, pairs int) {
	DuplicateAnalysisDuration.Observe(duration.Seconds())
	DuplicateGroupsFound.Observe(float64(groups))
	DuplicatePairsCompared.Add(float64(pairs))
}

// RecordEventPublish records an event publish attempt.
func RecordEventPublish(subject string, err error) {
	if err != nil {
		EventPublishErrors.WithLabelValues(subject).Inc()
		return
	}
	EventsPublished.WithLabelValues(subject).Inc()
}

// RecordCacheHit records a hit for the named cache.
func RecordCacheHit(cacheType string) {
	CacheHits.WithLabelValues(cacheType).Inc()
}

// RecordCacheMiss records a miss for the named cache.
func RecordCacheMiss(cacheType string) {
	CacheMisses.WithLabelValues(cacheType).Inc()
}
