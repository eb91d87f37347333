// Fotofable - Contextual Photo Captioning and Duplicate Detection
// Copyright 2026 Marek K. (marekvk)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/marekvk/fotofable

package config

import (
	"time"
)

// Config holds all application configuration loaded from environment variables
// and an optional YAML config file.
//
// Configuration Loading Order (Koanf v2):
//  1. Defaults: Built-in sensible defaults for all optional settings
//  2. Config File: Optional YAML config file (config.yaml) for persistent settings
//  3. Environment Variables: Override any setting via environment variables
//
// Thread Safety: Config is immutable after Load() and safe for concurrent read
// access from multiple goroutines. Runtime-mutable settings (the photo-proxy
// credentials) live in the Settings manager, not here.
type Config struct {
	Server     ServerConfig     `koanf:"server"`
	Database   DatabaseConfig   `koanf:"database"`
	ModelHost  ModelHostConfig  `koanf:"model_host"`
	PhotoProxy PhotoProxyConfig `koanf:"photo_proxy"`
	Prompts    PromptsConfig    `koanf:"prompts"`
	Cache      CacheConfig      `koanf:"cache"`
	Images     ImagesConfig     `koanf:"images"`
	Geo        GeoConfig        `koanf:"geo"`
	Importer   ImporterConfig   `koanf:"importer"`
	Duplicates DuplicatesConfig `koanf:"duplicates"`
	Stream     StreamConfig     `koanf:"stream"`
	Events     EventsConfig     `koanf:"events"`
	API        APIConfig        `koanf:"api"`
	Logging    LoggingConfig    `koanf:"logging"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host    string        `koanf:"host"`
	Port    int           `koanf:"port"`
	Debug   bool          `koanf:"debug"`
	Timeout time.Duration `koanf:"timeout"`

	// UseHTTPS controls the scheme of self-referencing URLs (sse_url in
	// async responses). TLS termination itself is a proxy concern.
	UseHTTPS bool `koanf:"use_https"`

	// MaxConcurrentRequests is the admission ceiling for in-flight caption
	// and duplicate requests. Requests over the ceiling get 429.
	MaxConcurrentRequests int `koanf:"max_concurrent_requests"`

	// AdminSecret enables the /api/admin surface when non-empty. It signs
	// the admin bearer tokens and derives the settings encryption key.
	AdminSecret string `koanf:"admin_secret"`

	Environment string `koanf:"environment"`
}

// DatabaseConfig holds DuckDB spatial-store configuration.
type DatabaseConfig struct {
	Path      string `koanf:"path"`
	Name      string `koanf:"name"`
	MaxMemory string `koanf:"max_memory"`
	Threads   int    `koanf:"threads"` // 0 = runtime.NumCPU()
}

// ModelHostConfig holds the Ollama-compatible model host configuration.
type ModelHostConfig struct {
	URL        string        `koanf:"url"`
	Timeout    time.Duration `koanf:"timeout"`
	MaxRetries int           `koanf:"max_retries"`
	RetryDelay time.Duration `koanf:"retry_delay"`
}

// PhotoProxyConfig holds the photo-library proxy configuration. Both fields
// may also be set at runtime through the admin settings endpoint; the
// Settings manager takes precedence when it holds a value.
type PhotoProxyConfig struct {
	URL     string        `koanf:"url"`
	APIKey  string        `koanf:"api_key"`
	Timeout time.Duration `koanf:"timeout"`
}

// PromptsConfig locates the human-editable prompt/model configuration file.
type PromptsConfig struct {
	Path string `koanf:"path"`
}

// CacheConfig holds request-cache tuning.
type CacheConfig struct {
	TTL      time.Duration `koanf:"ttl"`
	Capacity int           `koanf:"capacity"`
}

// ImagesConfig holds temp-file and validation settings for image payloads.
type ImagesConfig struct {
	TempDir     string        `koanf:"temp_dir"`
	MaxSize     int64         `koanf:"max_size"`
	MaxAge      time.Duration `koanf:"max_age"`
	DownscalePx int           `koanf:"downscale_px"` // longest side; 0 disables
}

// GeoConfig holds geographic-resolver settings.
type GeoConfig struct {
	NominatimURL string `koanf:"nominatim_url"`
	OverpassURL  string `koanf:"overpass_url"`

	// NominatimInterval is the minimum gap between reverse-geocoding calls
	// process-wide. Nominatim's usage policy asks for at most ~1 req/s.
	NominatimInterval time.Duration `koanf:"nominatim_interval"`

	DefaultRadiusKm float64       `koanf:"default_radius_km"`
	CacheTTL        time.Duration `koanf:"cache_ttl"`
	CacheCapacity   int           `koanf:"cache_capacity"`

	// H3Resolution indexes lookup-cache entries by H3 cell so adjacent
	// coordinates share an entry. Resolution 7 cells average ~5 km across.
	H3Resolution int `koanf:"h3_resolution"`
}

// ImporterConfig holds country bulk-import settings.
type ImporterConfig struct {
	GeonamesBaseURL string        `koanf:"geonames_base_url"`
	UnescoURL       string        `koanf:"unesco_url"`
	BatchSize       int           `koanf:"batch_size"`
	Timeout         time.Duration `koanf:"timeout"`
}

// DuplicatesConfig holds duplicate-detector settings.
type DuplicatesConfig struct {
	EmbeddingModel string        `koanf:"embedding_model"`
	IdleUnload     time.Duration `koanf:"idle_unload"`
	CacheDir       string        `koanf:"cache_dir"`
	Threshold      float64       `koanf:"threshold"`
	MaxSyncAssets  int           `koanf:"max_sync_assets"`
}

// StreamConfig holds stream-hub tuning.
type StreamConfig struct {
	QueueSize         int           `koanf:"queue_size"`
	HeartbeatInterval time.Duration `koanf:"heartbeat_interval"`
	MaxIdle           time.Duration `koanf:"max_idle"`
	ReapInterval      time.Duration `koanf:"reap_interval"`
}

// EventsConfig holds the optional NATS JetStream event-publishing settings.
type EventsConfig struct {
	Enabled        bool   `koanf:"enabled"`
	URL            string `koanf:"url"`
	EmbeddedServer bool   `koanf:"embedded_server"`
	StoreDir       string `koanf:"store_dir"`
	SubjectPrefix  string `koanf:"subject_prefix"`
}

// APIConfig holds rate-limit and CORS settings for the HTTP surface.
type APIConfig struct {
	RateLimitReqs     int           `koanf:"rate_limit_reqs"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`
	CORSOrigins       []string      `koanf:"cors_origins"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// Load loads configuration using the Koanf layered loader. Kept as the
// single public entry point so callers do not depend on the loading
// mechanics.
func Load() (*Config, error) {
	return LoadWithKoanf()
}

/// Addr returns the host:port the HTTP server binds to.
func (c *ServerConfig) Addr() string {
	host := c.Host
	if host == "" {
		host = "0.0.0.0"
	}
	return joinHostPort(host, c.Port)
}

// Scheme returns the scheme for self-referencing URLs.
func (c *ServerConfig) Scheme() string {
	if c.UseHTTPS {
		return "https"
	}
	return "http"
}
