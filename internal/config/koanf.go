// Fotofable - Contextual Photo Captioning and Duplicate Detection
// Copyright 2026 Marek K. (marekvk)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/marekvk/fotofable

package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in order
// of priority. The first file found wins.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/fotofable/config.yaml",
	"/etc/fotofable/config.yml",
}

// ConfigPathEnvVar overrides the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// defaultConfig returns a Config with all defaults applied. Defaults come
// first, then the config file, then environment variables.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:                  "0.0.0.0",
			Port:                  8087,
			Debug:                 false,
			Timeout:               30 * time.Second,
			UseHTTPS:              false,
			MaxConcurrentRequests: 5,
			AdminSecret:           "",
			Environment:           "development",
		},
		Database: DatabaseConfig{
			Path:      "/data/fotofable.duckdb",
			Name:      "",
			MaxMemory: "2GB",
			Threads:   0, // 0 = runtime.NumCPU()
		},
		ModelHost: ModelHostConfig{
			URL:        "http://127.0.0.1:11434",
			Timeout:    120 * time.Second,
			MaxRetries: 2,
			RetryDelay: time.Second,
		},
		PhotoProxy: PhotoProxyConfig{
			URL:     "",
			APIKey:  "",
			Timeout: 30 * time.Second,
		},
		Prompts: PromptsConfig{
			Path: "prompts.yaml",
		},
		Cache: CacheConfig{
			TTL:      time.Hour,
			Capacity: 1000,
		},
		Images: ImagesConfig{
			TempDir:     "/tmp/fotofable",
			MaxSize:     10 << 20, // 10 MiB
			MaxAge:      24 * time.Hour,
			DownscalePx: 2048,
		},
		Geo: GeoConfig{
			NominatimURL:      "https://nominatim.openstreetmap.org",
			OverpassURL:       "https://overpass-api.de/api/interpreter",
			NominatimInterval: 1100 * time.Millisecond,
			DefaultRadiusKm:   10,
			CacheTTL:          time.Hour,
			CacheCapacity:     500,
			H3Resolution:      7,
		},
		Importer: ImporterConfig{
			GeonamesBaseURL: "https://download.geonames.org/export/dump",
			UnescoURL:       "https://whc.unesco.org/en/list/xml/",
			BatchSize:       1000,
			Timeout:         10 * time.Minute,
		},
		Duplicates: DuplicatesConfig{
			EmbeddingModel: "clip-vit-base-patch32",
			IdleUnload:     5 * time.Minute,
			CacheDir:       "/data/embeddings",
			Threshold:      0.85,
			MaxSyncAssets:  10,
		},
		Stream: StreamConfig{
			QueueSize:         256,
			HeartbeatInterval: 30 * time.Second,
			MaxIdle:           5 * time.Minute,
			ReapInterval:      time.Minute,
		},
		Events: EventsConfig{
			Enabled:        false,
			URL:            "nats://127.0.0.1:4222",
			EmbeddedServer: true,
			StoreDir:       "/data/nats/jetstream",
			SubjectPrefix:  "fotofable",
		},
		API: APIConfig{
			RateLimitReqs:     100,
			RateLimitWindow:   time.Minute,
			RateLimitDisabled: false,
			CORSOrigins:       []string{"*"},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// LoadWithKoanf loads configuration using Koanf v2 with layered sources:
//  1. Defaults: Built-in sensible defaults
//  2. Config File: Optional YAML config file (if exists)
//  3. Environment Variables: Override any setting
func LoadWithKoanf() (*Config, error) {
	k := koanf.New(".")

	defaults := defaultConfig()
	if err := k.Load(structs.Provider(defaults, "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	configPath := findConfigFile()
	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// Environment variables are mapped through an explicit allow-list so
	// random variables cannot pollute the configuration.
	envProvider := env.Provider("", ".", envTransformFunc)
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	applyDerivedFields(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// applyDerivedFields fills fields computed from other settings. DB_NAME is
// the legacy flat variable naming the database; when set it derives the
// DuckDB file path unless an explicit path was also given.
func applyDerivedFields(cfg *Config) {
	if cfg.Database.Name != "" && os.Getenv("DB_PATH") == "" && !fileConfigSetsDBPath() {
		cfg.Database.Path = "/data/" + cfg.Database.Name + ".duckdb"
	}
}

// fileConfigSetsDBPath reports whether the active config file carries an
// explicit database.path, in which case DB_NAME does not override it.
func fileConfigSetsDBPath() bool {
	configPath := findConfigFile()
	if configPath == "" {
		return false
	}
	k := koanf.New(".")
	if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
		return false
	}
	return k.Exists("database.path")
}

// findConfigFile searches for a config file in the default paths. Returns
// the path of the first file found, or empty string.
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// sliceConfigPaths defines which config paths are parsed as comma-separated
// slices when supplied through the environment.
var sliceConfigPaths = []string{
	"api.cors_origins",
}

// processSliceFields converts comma-separated string values to slices for
// known slice fields. Env vars arrive as strings but the config expects
// slices.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		val := k.Get(path)
		if val == nil {
			continue
		}
		if _, ok := val.([]interface{}); ok {
			continue
		}
		if _, ok := val.([]string); ok {
			continue
		}
		if strVal, ok := val.(string); ok {
			if strVal == "" {
				continue
			}
			parts := strings.Split(strVal, ",")
			trimmed := make([]string, 0, len(parts))
			for _, p := range parts {
				p = strings.TrimSpace(p)
				if p != "" {
					trimmed = append(trimmed, p)
				}
			}
			if len(trimmed) > 0 {
				if err := k.Set(path, trimmed); err != nil {
					return fmt.Errorf("failed to set %s: %w", path, err)
				}
			}
		}
	}
	return nil
}

// envTransformFunc maps environment variable names to koanf config paths.
// Unmapped variables return "" and are skipped.
//
// The flat legacy names (DB_NAME, PHOTO_PROXY_URL, SERVER_PORT, USE_HTTPS,
// CACHE_TTL, ...) are the deployment surface the original system shipped
// with; the structured names cover everything added since.
func envTransformFunc(key string) string {
	key = strings.ToLower(key)

	envMappings := map[string]string{
		// Server mappings
		"server_host":             "server.host",
		"server_port":             "server.port",
		"server_debug":            "server.debug",
		"server_timeout":          "server.timeout",
		"use_https":               "server.use_https",
		"max_concurrent_requests": "server.max_concurrent_requests",
		"server_admin_secret":     "server.admin_secret",
		"environment":             "server.environment",

		// Database mappings. DB_HOST/DB_USER/DB_PASSWORD from the legacy
		// deployment have no meaning for an embedded store and are
		// intentionally unmapped.
		"db_name":            "database.name",
		"db_path":            "database.path",
		"duckdb_path":        "database.path",
		"duckdb_max_memory":  "database.max_memory",
		"duckdb_threads":     "database.threads",

		// Model host mappings
		"model_host_url":     "model_host.url",
		"model_host_timeout": "model_host.timeout",
		"model_max_retries":  "model_host.max_retries",
		"model_retry_delay":  "model_host.retry_delay",
		"ollama_url":         "model_host.url",

		// Photo proxy mappings
		"photo_proxy_url":     "photo_proxy.url",
		"photo_api_key":       "photo_proxy.api_key",
		"photo_proxy_timeout": "photo_proxy.timeout",

		// Prompt file mapping
		"prompts_path": "prompts.path",

		// Cache mappings
		"cache_ttl":      "cache.ttl",
		"cache_capacity": "cache.capacity",

		// Image store mappings
		"image_temp_dir":     "images.temp_dir",
		"max_image_size":     "images.max_size",
		"temp_file_max_age":  "images.max_age",
		"image_downscale_px": "images.downscale_px",

		// Geo mappings
		"nominatim_url":      "geo.nominatim_url",
		"overpass_url":       "geo.overpass_url",
		"nominatim_interval": "geo.nominatim_interval",
		"geo_radius_km":      "geo.default_radius_km",
		"geo_cache_ttl":      "geo.cache_ttl",
		"geo_cache_capacity": "geo.cache_capacity",
		"geo_h3_resolution":  "geo.h3_resolution",

		// Importer mappings
		"geonames_base_url":  "importer.geonames_base_url",
		"unesco_url":         "importer.unesco_url",
		"import_batch_size":  "importer.batch_size",
		"import_timeout":     "importer.timeout",

		// Duplicate detector mappings
		"embedding_model":       "duplicates.embedding_model",
		"model_idle_unload":     "duplicates.idle_unload",
		"embedding_cache_dir":   "duplicates.cache_dir",
		"duplicate_threshold":   "duplicates.threshold",
		"duplicate_max_sync":    "duplicates.max_sync_assets",

		// Stream mappings
		"stream_queue_size":         "stream.queue_size",
		"stream_heartbeat_interval": "stream.heartbeat_interval",
		"stream_max_idle":           "stream.max_idle",
		"stream_reap_interval":      "stream.reap_interval",

		// Events mappings
		"events_enabled":  "events.enabled",
		"nats_url":        "events.url",
		"nats_embedded":   "events.embedded_server",
		"nats_store_dir":  "events.store_dir",
		"events_subjects": "events.subject_prefix",

		// API mappings
		"rate_limit_requests": "api.rate_limit_reqs",
		"rate_limit_window":   "api.rate_limit_window",
		"disable_rate_limit":  "api.rate_limit_disabled",
		"cors_origins":        "api.cors_origins",

		// Logging mappings
		"log_level":  "logging.level",
		"log_format": "logging.format",
		"log_caller": "logging.caller",
	}

	if mapped, ok := envMappings[key]; ok {
		return mapped
	}

	// Unmapped keys are skipped so random environment variables cannot
	// pollute the configuration.
	return ""
}

/// joinHostPort formats host:port handling IPv6 literals.
func joinHostPort(host string, port int) string {
	return net.JoinHostPort(host, strconv.Itoa(port))
}
