// Fotofable - Contextual Photo Captioning and Duplicate Detection
// Copyright 2026 Marek K. (marekvk)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/marekvk/fotofable

package imagestore

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"image"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/marekvk/fotofable/internal/config"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(&config.ImagesConfig{
		TempDir: t.TempDir(),
		MaxSize: 1 << 20,
	}, nil)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	return s
}

// tinyPNG renders a 2x2 image so the payload passes real decoding.
func tinyPNG(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 2, 2))); err != nil {
		t.Fatalf("failed to encode png: %v", err)
	}
	return buf.Bytes()
}

func TestMaterializeInlineBase64(t *testing.T) {
	s := newTestStore(t)
	payload := base64.StdEncoding.EncodeToString(tinyPNG(t))

	path, err := s.Materialize(context.Background(), "asset-1", payload)
	if err != nil {
		t.Fatalf("materialize failed: %v", err)
	}
	defer s.Release(path)

	if !strings.HasSuffix(path, ".png") {
		t.Errorf("path %q does not carry the sniffed extension", path)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("materialized file missing: %v", err)
	}
}

func TestMaterializeDataURLAndPaddingRepair(t *testing.T) {
	s := newTestStore(t)
	raw := base64.StdEncoding.EncodeToString(tinyPNG(t))
	payload := "data:image/png;base64," + strings.TrimRight(raw, "=")

	path, err := s.Materialize(context.Background(), "asset-2", payload)
	if err != nil {
		t.Fatalf("materialize with data URL failed: %v", err)
	}
	s.Release(path)
}

func TestMaterializeRejectsOversized(t *testing.T) {
	s, err := New(&config.ImagesConfig{TempDir: t.TempDir(), MaxSize: 64}, nil)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	payload := base64.StdEncoding.EncodeToString(tinyPNG(t))
	if _, err := s.Materialize(context.Background(), "big", payload); !errors.Is(err, ErrTooLarge) {
		t.Errorf("err = %v, want ErrTooLarge", err)
	}
}

func TestMaterializeRejectsBadFormat(t *testing.T) {
	s := newTestStore(t)
	payload := base64.StdEncoding.EncodeToString([]byte("definitely not an image"))

	if _, err := s.Materialize(context.Background(), "bad", payload); !errors.Is(err, ErrBadFormat) {
		t.Errorf("err = %v, want ErrBadFormat", err)
	}
}

func TestMaterializeNoSource(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.Materialize(context.Background(), "asset-3", ""); !errors.Is(err, ErrNoSource) {
		t.Errorf("err = %v, want ErrNoSource", err)
	}
}

func TestSniffFormat(t *testing.T) {
	tests := []struct {
		name   string
		data   []byte
		format string
		wantOK bool
	}{
		{"jpeg", []byte{0xFF, 0xD8, 0xFF, 0xE0, 0, 0}, "jpeg", true},
		{"png", []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A, 0}, "png", true},
		{"gif87", []byte("GIF87a...."), "gif", true},
		{"gif89", []byte("GIF89a...."), "gif", true},
		{"bmp", []byte("BM......"), "bmp", true},
		{"webp", []byte("RIFF\x00\x00\x00\x00WEBPVP8 "), "webp", true},
		{"tiff", []byte("II*\x00data"), "", false},
		{"empty", nil, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			format, err := SniffFormat(tt.data)
			if tt.wantOK {
				if err != nil {
					t.Fatalf("SniffFormat failed: %v", err)
				}
				if format != tt.format {
					t.Errorf("format = %q, want %q", format, tt.format)
				}
			} else if !errors.Is(err, ErrBadFormat) {
				t.Errorf("err = %v, want ErrBadFormat", err)
			}
		})
	}
}

func TestDownscaleOversizedImage(t *testing.T) {
	s, err := New(&config.ImagesConfig{
		TempDir:     t.TempDir(),
		MaxSize:     10 << 20,
		DownscalePx: 64,
	}, nil)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 200, 100)), nil); err != nil {
		t.Fatalf("failed to encode source: %v", err)
	}

	path, err := s.Write("wide", buf.Bytes())
	if err != nil {
		t.Fatalf("write failed: %v", err)
	}
	defer s.Release(path)

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("failed to open output: %v", err)
	}
	defer f.Close()

	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		t.Fatalf("failed to decode output config: %v", err)
	}
	if cfg.Width != 64 || cfg.Height != 32 {
		t.Errorf("downscaled to %dx%d, want 64x32", cfg.Width, cfg.Height)
	}
}

func TestReleaseAndReap(t *testing.T) {
	s := newTestStore(t)
	payload := base64.StdEncoding.EncodeToString(tinyPNG(t))

	path, err := s.Materialize(context.Background(), "reap-me", payload)
	if err != nil {
		t.Fatalf("materialize failed: %v", err)
	}

	// Release is idempotent.
	s.Release(path)
	s.Release(path)
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("file still present after release")
	}

	// Reap removes only files older than maxAge.
	oldPath := filepath.Join(s.Dir(), "old_1.png")
	if err := os.WriteFile(oldPath, tinyPNG(t), 0o600); err != nil {
		t.Fatalf("failed to plant old file: %v", err)
	}
	oldTime := time.Now().Add(-48 * time.Hour)
	if err := os.Chtimes(oldPath, oldTime, oldTime); err != nil {
		t.Fatalf("failed to age file: %v", err)
	}

	freshPath, err := s.Materialize(context.Background(), "fresh", payload)
	if err != nil {
		t.Fatalf("materialize fresh failed: %v", err)
	}
	defer s.Release(freshPath)

	if removed := s.Reap(24 * time.Hour); removed != 1 {
		t.Errorf("reaped %d files, want 1", removed)
	}
	if _, err := os.Stat(freshPath); err != nil {
		t.Error("fresh file reaped")
	}
}

func TestSanitizeAssetID(t *testing.T) {
	tests := []struct{ in, want string }{
		{"abc-123_X", "abc-123_X"},
		{"../../etc/passwd", "_________etc_passwd"},
		{"", "asset"},
	}
	for _, tt := range tests {
		if got := sanitizeAssetID(tt.in); got != tt.want {
			t.Errorf("sanitizeAssetID(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestDecodeBase64Invalid(t *testing.T) {
	if _, err := DecodeBase64("!!!not base64!!!"); !errors.Is(err, ErrBadFormat) {
		t.Errorf("err = %v, want ErrBadFormat", err)
	}
}
