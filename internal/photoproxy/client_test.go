// Fotofable - Contextual Photo Captioning and Duplicate Detection
// Copyright 2026 Marek K. (marekvk)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/marekvk/fotofable

package photoproxy

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/marekvk/fotofable/internal/config"
)

func newTestProxy(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c := New(nil, &config.PhotoProxyConfig{
		URL:     srv.URL,
		APIKey:  "test-key",
		Timeout: 5 * time.Second,
	})
	c.retryBase = 5 * time.Millisecond
	return c
}

func TestDownloadAssetSendsAPIKey(t *testing.T) {
	c := newTestProxy(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/assets/abc123/original" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("X-API-Key"); got != "test-key" {
			t.Errorf("missing API key header, got %q", got)
		}
		w.Write([]byte{0xFF, 0xD8, 0xFF})
	})

	body, err := c.DownloadAsset(context.Background(), "abc123")
	if err != nil {
		t.Fatalf("DownloadAsset failed: %v", err)
	}
	if len(body) != 3 || body[0] != 0xFF {
		t.Errorf("unexpected body %v", body)
	}
}

func TestDownloadAssetNotFound(t *testing.T) {
	c := newTestProxy(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no such asset", http.StatusNotFound)
	})

	_, err := c.DownloadAsset(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRetryHonorsRetryAfter(t *testing.T) {
	var calls atomic.Int32
	start := time.Now()
	c := newTestProxy(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Retry-After", "1")
			http.Error(w, "busy", http.StatusTooManyRequests)
			return
		}
		w.Write([]byte("ok"))
	})

	body, err := c.DownloadAsset(context.Background(), "a")
	if err != nil {
		t.Fatalf("expected recovery, got %v", err)
	}
	if string(body) != "ok" {
		t.Errorf("got %q", body)
	}
	if elapsed := time.Since(start); elapsed < time.Second {
		t.Errorf("Retry-After not honored, recovered after %v", elapsed)
	}
}

func TestUnavailableAfterRetries(t *testing.T) {
	var calls atomic.Int32
	c := newTestProxy(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "down", http.StatusBadGateway)
	})

	_, err := c.DownloadAsset(context.Background(), "a")
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	if got := calls.Load(); got != 4 {
		t.Errorf("expected 4 attempts (1 + 3 retries), got %d", got)
	}
}

func TestNotConfigured(t *testing.T) {
	c := New(nil, &config.PhotoProxyConfig{})
	if c.Configured() {
		t.Error("client with no URL reports configured")
	}
	if _, err := c.DownloadAsset(context.Background(), "a"); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("expected ErrNotConfigured, got %v", err)
	}
}

func TestRuntimeSettingsOverrideBootConfig(t *testing.T) {
	var gotKey atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey.Store(r.Header.Get("X-API-Key"))
		w.Write([]byte("ok"))
	}))
	t.Cleanup(srv.Close)

	settings, err := config.NewSettingsManager(t.TempDir()+"/settings.json", nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := settings.SetPhotoProxy(srv.URL, "runtime-key"); err != nil {
		t.Fatal(err)
	}

	c := New(settings, &config.PhotoProxyConfig{URL: "http://boot:1", APIKey: "boot-key"})
	if _, err := c.DownloadAsset(context.Background(), "a"); err != nil {
		t.Fatalf("DownloadAsset failed: %v", err)
	}
	if gotKey.Load() != "runtime-key" {
		t.Errorf("expected runtime key, got %v", gotKey.Load())
	}
}

func TestAssetMetadata(t *testing.T) {
	c := newTestProxy(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{
			"id": "abc",
			"originalFileName": "IMG_0042.jpg",
			"originalPath": "/photos/IMG_0042.jpg",
			"fileCreatedAt": "2024-07-14T10:30:00Z",
			"exifInfo": {"fileSizeInByte": 2048000}
		}`))
	})

	meta, err := c.AssetMetadata(context.Background(), "abc")
	if err != nil {
		t.Fatalf("AssetMetadata failed: %v", err)
	}
	if meta.Filename != "IMG_0042.jpg" || meta.ExifInfo.FileSizeInByte != 2048000 {
		t.Errorf("unexpected metadata %+v", meta)
	}
}

func TestAlbumAssetIDs(t *testing.T) {
	c := newTestProxy(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/albums/summer-2024" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Write([]byte(`{"id": "summer-2024", "assets": [{"id": "a1"}, {"id": "a2"}, {"id": ""}]}`))
	})

	ids, err := c.AlbumAssetIDs(context.Background(), "summer-2024")
	if err != nil {
		t.Fatalf("AlbumAssetIDs failed: %v", err)
	}
	if len(ids) != 2 || ids[0] != "a1" || ids[1] != "a2" {
		t.Errorf("unexpected ids %v", ids)
	}
}
