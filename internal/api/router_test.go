// Fotofable - Contextual Photo Captioning and Duplicate Detection
// Copyright 2026 Marek K. (marekvk)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/marekvk/fotofable

package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/marekvk/fotofable/internal/auth"
	"github.com/marekvk/fotofable/internal/config"
	"github.com/marekvk/fotofable/internal/models"
)

func routedHarness(t *testing.T, adminSecret string) (*harness, http.Handler) {
	t.Helper()
	h := newHarness(t)
	cfg := &config.Config{}
	cfg.API.RateLimitDisabled = true
	return h, NewRouter(cfg, h.handler, auth.NewGuard(adminSecret))
}

func TestRouterNotFound(t *testing.T) {
	_, router := routedHarness(t, "")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/nope", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rec.Code)
	}
	out := map[string]any{}
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("not JSON: %v", err)
	}
	if out["success"] != false || out["code"] != CodeNotFound {
		t.Errorf("body = %v", out)
	}
}

func TestRouterHealth(t *testing.T) {
	_, router := routedHarness(t, "")
	for _, path := range []string{"/api/health", "/api/health/live", "/api/health/ready"} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusOK {
			t.Errorf("%s status = %d", path, rec.Code)
		}
	}
}

func TestRouterOperationalEndpoints(t *testing.T) {
	_, router := routedHarness(t, "")

	tests := []struct {
		method, path string
		wantKey      string
	}{
		{http.MethodGet, "/api/ai/config", "languages"},
		{http.MethodGet, "/api/ai/stats", "uptime_seconds"},
		{http.MethodPost, "/api/ai/clear-cache", "caption_cache_cleared"},
		{http.MethodPost, "/api/ai/reload-config", "message"},
		{http.MethodGet, "/api/duplicates/status", "model_state"},
	}
	for _, tt := range tests {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, nil))
		if rec.Code != http.StatusOK {
			t.Errorf("%s %s status = %d: %s", tt.method, tt.path, rec.Code, rec.Body.String())
			continue
		}
		if !strings.Contains(rec.Body.String(), tt.wantKey) {
			t.Errorf("%s body missing %q: %s", tt.path, tt.wantKey, rec.Body.String())
		}
	}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("/metrics status = %d", rec.Code)
	}
}

func TestRouterAdminGuardDisabled(t *testing.T) {
	_, router := routedHarness(t, "")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/admin/imports", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404 when no admin secret is set", rec.Code)
	}
}

func TestRouterAdminGuardEnabled(t *testing.T) {
	h, router := routedHarness(t, "test-admin-secret")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/admin/imports", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("no token status = %d, want 401", rec.Code)
	}

	guard := auth.NewGuard("test-admin-secret")
	token, err := guard.GenerateToken("ops", time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	authed := func(method, path string, body string) *httptest.ResponseRecorder {
		var req *http.Request
		if body != "" {
			req = httptest.NewRequest(method, path, strings.NewReader(body))
		} else {
			req = httptest.NewRequest(method, path, nil)
		}
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec
	}

	rec = authed(http.MethodGet, "/api/admin/imports", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("list imports status = %d: %s", rec.Code, rec.Body.String())
	}

	rec = authed(http.MethodPost, "/api/admin/imports/kh", "")
	if rec.Code != http.StatusAccepted {
		t.Fatalf("trigger import status = %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "import-KH") {
		t.Errorf("trigger body = %s", rec.Body.String())
	}

	rec = authed(http.MethodPost, "/api/admin/imports/khm", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad country code status = %d", rec.Code)
	}

	rec = authed(http.MethodPut, "/api/admin/settings/photo-proxy",
		`{"url":"https://photos.example.org","api_key":"k-123"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("set photo proxy status = %d: %s", rec.Code, rec.Body.String())
	}

	rec = authed(http.MethodPut, "/api/admin/settings/photo-proxy",
		`{"url":"ftp://photos.example.org"}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("ftp url status = %d, want 400", rec.Code)
	}

	rec = authed(http.MethodGet, "/api/admin/settings", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("get settings status = %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "k-123") {
		t.Error("settings response leaked the raw API key")
	}

	// Wait for the triggered import worker before the temp dirs go away.
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		h.importer.mu.Lock()
		n := len(h.importer.triggered)
		h.importer.mu.Unlock()
		if n > 0 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Error("import worker never ran")
}

func TestRouterStreamEndpoint(t *testing.T) {
	h, router := routedHarness(t, "")
	h.handler.Hub.CreateConnection("req-stream")

	srv := httptest.NewServer(router)
	defer srv.Close()

	go func() {
		time.Sleep(50 * time.Millisecond)
		h.handler.Hub.Send("req-stream",
			models.NewCompleteEvent("req-stream", map[string]any{"success": true}))
	}()

	resp, err := http.Get(srv.URL + "/api/ai/generate-caption-stream/req-stream")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); !strings.Contains(ct, "text/event-stream") {
		t.Errorf("Content-Type = %q", ct)
	}
	buf := make([]byte, 4096)
	var body strings.Builder
	for {
		n, err := resp.Body.Read(buf)
		body.Write(buf[:n])
		if err != nil {
			break
		}
		if strings.Contains(body.String(), "complete") {
			break
		}
	}
	if !strings.Contains(body.String(), "complete") {
		t.Errorf("stream body = %q", body.String())
	}
}
