// Fotofable - Contextual Photo Captioning and Duplicate Detection
// Copyright 2026 Marek K. (marekvk)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/marekvk/fotofable

package config

import (
	"fmt"
	"net/url"
	"strings"
)

// Validate checks that required configuration is present and valid.
func (c *Config) Validate() error {
	if err := c.validateServer(); err != nil {
		return err
	}
	if err := c.validateModelHost(); err != nil {
		return err
	}
	if err := c.validatePhotoProxy(); err != nil {
		return err
	}
	if err := c.validateGeo(); err != nil {
		return err
	}
	if err := c.validateImages(); err != nil {
		return err
	}
	if err := c.validateDuplicates(); err != nil {
		return err
	}
	if err := c.validateStream(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("SERVER_PORT must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Server.MaxConcurrentRequests < 1 {
		return fmt.Errorf("MAX_CONCURRENT_REQUESTS must be at least 1, got %d", c.Server.MaxConcurrentRequests)
	}
	if c.Server.Timeout <= 0 {
		return fmt.Errorf("SERVER_TIMEOUT must be positive")
	}
	return nil
}

func (c *Config) validateModelHost() error {
	if c.ModelHost.URL == "" {
		return fmt.Errorf("MODEL_HOST_URL is required")
	}
	if err := validateHTTPURL(c.ModelHost.URL, "MODEL_HOST_URL"); err != nil {
		return err
	}
	if c.ModelHost.MaxRetries < 0 {
		return fmt.Errorf("MODEL_MAX_RETRIES must not be negative")
	}
	return nil
}

// validatePhotoProxy validates the proxy URL only when configured; the
// proxy is optional (inline base64 payloads work without it).
func (c *Config) validatePhotoProxy() error {
	if c.PhotoProxy.URL == "" {
		return nil
	}
	return validateHTTPURL(c.PhotoProxy.URL, "PHOTO_PROXY_URL")
}

func (c *Config) validateGeo() error {
	if err := validateHTTPURL(c.Geo.NominatimURL, "NOMINATIM_URL"); err != nil {
		return err
	}
	if err := validateHTTPURL(c.Geo.OverpassURL, "OVERPASS_URL"); err != nil {
		return err
	}
	if c.Geo.DefaultRadiusKm <= 0 || c.Geo.DefaultRadiusKm > 500 {
		return fmt.Errorf("GEO_RADIUS_KM must be between 0 and 500, got %g", c.Geo.DefaultRadiusKm)
	}
	if c.Geo.H3Resolution < 0 || c.Geo.H3Resolution > 15 {
		return fmt.Errorf("GEO_H3_RESOLUTION must be between 0 and 15, got %d", c.Geo.H3Resolution)
	}
	return nil
}

func (c *Config) validateImages() error {
	if c.Images.MaxSize <= 0 {
		return fmt.Errorf("MAX_IMAGE_SIZE must be positive")
	}
	if c.Images.TempDir == "" {
		return fmt.Errorf("IMAGE_TEMP_DIR must not be empty")
	}
	return nil
}

func (c *Config) validateDuplicates() error {
	if c.Duplicates.Threshold <= 0 || c.Duplicates.Threshold > 1 {
		return fmt.Errorf("DUPLICATE_THRESHOLD must be in (0,1], got %g", c.Duplicates.Threshold)
	}
	if c.Duplicates.MaxSyncAssets < 2 {
		return fmt.Errorf("DUPLICATE_MAX_SYNC must be at least 2, got %d", c.Duplicates.MaxSyncAssets)
	}
	return nil
}

func (c *Config) validateStream() error {
	if c.Stream.QueueSize < 1 {
		return fmt.Errorf("STREAM_QUEUE_SIZE must be at least 1, got %d", c.Stream.QueueSize)
	}
	if c.Stream.HeartbeatInterval <= 0 {
		return fmt.Errorf("STREAM_HEARTBEAT_INTERVAL must be positive")
	}
	if c.Stream.MaxIdle <= 0 {
		return fmt.Errorf("STREAM_MAX_IDLE must be positive")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch strings.ToLower(c.Logging.Level) {
	case "trace", "debug", "info", "warn", "error", "fatal", "panic":
	default:
		return fmt.Errorf("LOG_LEVEL must be one of trace, debug, info, warn, error, fatal, panic; got %q", c.Logging.Level)
	}
	switch strings.ToLower(c.Logging.Format) {
	case "json", "console":
	default:
		return fmt.Errorf("LOG_FORMAT must be json or console, got %q", c.Logging.Format)
	}
	return nil
}

// validateHTTPURL checks that a value parses as an absolute http(s) URL.
func validateHTTPURL(raw, name string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s is invalid: %w", name, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%s must use http or https scheme, got %q", name, u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("%s is missing a host", name)
	}
	return nil
}
