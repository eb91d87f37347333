// Fotofable - Contextual Photo Captioning and Duplicate Detection
// Copyright 2026 Marek K. (marekvk)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/marekvk/fotofable

// Package imagestore owns the scoped temp-file lifecycle for image payloads:
// base64 decoding with data-URL and padding repair, format validation against
// the JPEG/PNG/GIF/BMP/WebP allow-list, size enforcement, optional downscale,
// and the age-based reaper.
package imagestore

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/marekvk/fotofable/internal/config"
	"github.com/marekvk/fotofable/internal/logging"
	"github.com/marekvk/fotofable/internal/photoproxy"
)

// Sentinel error kinds surfaced to the dispatcher as IMAGE_PROCESSING_ERROR.
var (
	ErrTooLarge  = errors.New("image exceeds maximum size")
	ErrBadFormat = errors.New("unsupported image format")
	ErrNoSource  = errors.New("no inline bytes and no photo proxy configured")
)

// Store materializes image payloads as temp files under one scoped
// directory.
type Store struct {
	dir         string
	maxSize     int64
	downscalePx int
	proxy       *photoproxy.Client
}

// New prepares the temp directory and returns a ready store. proxy may be
// nil; Materialize then requires inline bytes.
func New(cfg *config.ImagesConfig, proxy *photoproxy.Client) (*Store, error) {
	dir := cfg.TempDir
	if dir == "" {
		dir = filepath.Join(os.TempDir(), "fotofable")
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create temp directory %s: %w", dir, err)
	}

	maxSize := cfg.MaxSize
	if maxSize <= 0 {
		maxSize = 10 << 20
	}

	return &Store{
		dir:         dir,
		maxSize:     maxSize,
		downscalePx: cfg.DownscalePx,
		proxy:       proxy,
	}, nil
}

// Dir returns the scoped temp directory.
func (s *Store) Dir() string {
	return s.dir
}

// Materialize writes the image for assetID to a unique temp file and returns
// its path. Inline base64 wins over the proxy; with neither available the
// request cannot proceed.
func (s *Store) Materialize(ctx context.Context, assetID, imageBase64 string) (string, error) {
	var data []byte
	var err error

	switch {
	case imageBase64 != "":
		data, err = DecodeBase64(imageBase64)
		if err != nil {
			return "", err
		}
	case s.proxy != nil && s.proxy.Configured():
		data, err = s.proxy.DownloadAsset(ctx, assetID)
		if err != nil {
			return "", fmt.Errorf("failed to fetch asset %s: %w", assetID, err)
		}
	default:
		return "", ErrNoSource
	}

	return s.Write(assetID, data)
}

// Write validates raw bytes and persists them under the scoped directory.
func (s *Store) Write(assetID string, data []byte) (string, error) {
	if int64(len(data)) > s.maxSize {
		return "", fmt.Errorf("%w: %d bytes (max %d)", ErrTooLarge, len(data), s.maxSize)
	}

	format, err := SniffFormat(data)
	if err != nil {
		return "", err
	}

	if s.downscalePx > 0 {
		if scaled, ok := downscale(data, format, s.downscalePx); ok {
			data = scaled
			format = "jpeg"
		}
	}

	name := fmt.Sprintf("%s_%d.%s", sanitizeAssetID(assetID), time.Now().UnixNano(), format)
	path := filepath.Join(s.dir, name)

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", fmt.Errorf("failed to write image file: %w", err)
	}
	return path, nil
}

// Release deletes a materialized file. Safe to call with a path that is
// already gone.
func (s *Store) Release(path string) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		logging.Warn().Err(err).Str("path", path).Msg("Failed to release temp image")
	}
}

// Reap deletes files older than maxAge and returns the number removed.
func (s *Store) Reap(maxAge time.Duration) int {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		logging.Warn().Err(err).Str("dir", s.dir).Msg("Failed to read temp directory")
		return 0
	}

	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			if err := os.Remove(filepath.Join(s.dir, e.Name())); err == nil {
				removed++
			}
		}
	}

	if removed > 0 {
		logging.Info().Int("removed", removed).Msg("Reaped stale temp images")
	}
	return removed
}

// Clear removes every materialized file regardless of age.
func (s *Store) Clear() int {
	return s.Reap(0)
}

// DecodeBase64 decodes an inline payload, stripping the optional data-URL
// prefix and repairing missing padding.
func DecodeBase64(payload string) ([]byte, error) {
	if idx := strings.Index(payload, ";base64,"); idx >= 0 {
		payload = payload[idx+len(";base64,"):]
	}
	payload = strings.TrimSpace(payload)

	if m := len(payload) % 4; m != 0 {
		payload += strings.Repeat("=", 4-m)
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid base64: %v", ErrBadFormat, err)
	}
	return data, nil
}

// sanitizeAssetID keeps temp filenames free of path separators and other
// hostile characters in externally supplied ids.
func sanitizeAssetID(assetID string) string {
	var b strings.Builder
	for _, r := range assetID {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	if b.Len() == 0 {
		return "asset"
	}
	return b.String()
}
