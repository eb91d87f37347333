// Fotofable - Contextual Photo Captioning and Duplicate Detection
// Copyright 2026 Marek K. (marekvk)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/marekvk/fotofable

package api

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/marekvk/fotofable/internal/config"
	"github.com/marekvk/fotofable/internal/imagestore"
	"github.com/marekvk/fotofable/internal/importer"
	"github.com/marekvk/fotofable/internal/models"
	"github.com/marekvk/fotofable/internal/photoproxy"
	"github.com/marekvk/fotofable/internal/pipeline"
	"github.com/marekvk/fotofable/internal/prompts"
	"github.com/marekvk/fotofable/internal/requestcache"
	"github.com/marekvk/fotofable/internal/stream"
)

const handlerPromptYAML = `
models:
  vision: llava:13b
  caption: mistral:7b
languages:
  - code: fr
    name: French
    aliases: [french]
styles: [creative, poetic]
`

type fakeCaptioner struct {
	mu        sync.Mutex
	generates int
	done      chan struct{}
	block     chan struct{}
	result    *models.CaptionResult
}

func (f *fakeCaptioner) Generate(_ context.Context, req pipeline.Request, emit stream.Emitter) *models.CaptionResult {
	f.mu.Lock()
	f.generates++
	f.mu.Unlock()
	if f.block != nil {
		<-f.block
	}
	emit.Connected("Caption generation started")
	emit.Complete(map[string]any{"success": true, "caption": f.result.Caption})
	if f.done != nil {
		f.done <- struct{}{}
	}
	out := *f.result
	out.AssetID = req.AssetID
	return &out
}

func (f *fakeCaptioner) RegenerateFinal(_ context.Context, _ pipeline.RegenerateRequest) *models.CaptionResult {
	out := *f.result
	return &out
}

func (f *fakeCaptioner) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.generates
}

type fakeFinder struct {
	groups []models.DuplicateGroup
	err    error
	status models.DetectorStatus
}

func (f *fakeFinder) FindDuplicates(_ context.Context, _ []models.ImageRef, _, _ float64, emit stream.Emitter) ([]models.DuplicateGroup, error) {
	if f.err != nil {
		emit.Warning("embedding model unavailable", models.WarnModelUnavailable)
		emit.Complete(map[string]any{"success": true, "group_count": 0, "warning": "embedding model unavailable"})
		return nil, f.err
	}
	emit.Complete(map[string]any{"success": true, "group_count": len(f.groups)})
	return f.groups, nil
}

func (f *fakeFinder) Status() models.DetectorStatus { return f.status }
func (f *fakeFinder) ClearCache()                   {}
func (f *fakeFinder) MaxSyncAssets() int            { return 10 }

type fakeImporter struct {
	mu        sync.Mutex
	triggered []string
}

func (f *fakeImporter) ImportCountry(_ context.Context, code string, emit stream.Emitter) error {
	f.mu.Lock()
	f.triggered = append(f.triggered, code)
	f.mu.Unlock()
	emit.Complete(map[string]any{"success": true, "country_code": code})
	return nil
}

func (f *fakeImporter) Status(context.Context) (importer.Status, error) {
	return importer.Status{Running: []string{}, History: []models.CountryImport{}}, nil
}

type fakeGeoCache struct{}

func (fakeGeoCache) ClearCache()                    {}
func (fakeGeoCache) CacheStats() requestcache.Stats { return requestcache.Stats{} }

// proxyServer fakes the photo library: thumbnails, metadata and one album.
func proxyServer(t *testing.T, pngData []byte) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/thumbnail"):
			w.Write(pngData)
		case strings.HasPrefix(r.URL.Path, "/api/albums/"):
			fmt.Fprint(w, `{"assets":[{"id":"al-1"},{"id":"al-2"},{"id":"al-3"}]}`)
		case strings.HasPrefix(r.URL.Path, "/api/assets/"):
			fmt.Fprint(w, `{"id":"a","originalFileName":"a.png","fileCreatedAt":"2026-03-15T10:00:00Z","exifInfo":{"fileSizeInByte":512}}`)
		default:
			http.NotFound(w, r)
		}
	}))
}

func testPNG(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewGray(image.Rect(0, 0, 8, 8))); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

type harness struct {
	handler   *Handler
	captioner *fakeCaptioner
	finder    *fakeFinder
	importer  *fakeImporter
	png       []byte
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	dir := t.TempDir()

	promptPath := filepath.Join(dir, "prompts.yaml")
	if err := os.WriteFile(promptPath, []byte(handlerPromptYAML), 0o600); err != nil {
		t.Fatal(err)
	}
	store, err := prompts.Load(promptPath)
	if err != nil {
		t.Fatalf("prompt store: %v", err)
	}

	pngData := testPNG(t)
	proxy := proxyServer(t, pngData)
	t.Cleanup(proxy.Close)

	settings, err := config.NewSettingsManager(filepath.Join(dir, "settings.json"), nil)
	if err != nil {
		t.Fatal(err)
	}
	proxyClient := photoproxy.New(settings, &config.PhotoProxyConfig{URL: proxy.URL, APIKey: "test-key"})

	images, err := imagestore.New(&config.ImagesConfig{
		TempDir: filepath.Join(dir, "tmp"),
		MaxSize: 10 << 20,
		MaxAge:  time.Hour,
	}, proxyClient)
	if err != nil {
		t.Fatal(err)
	}

	cfg := &config.Config{}
	cfg.Server.MaxConcurrentRequests = 2
	cfg.Stream.QueueSize = 64

	captioner := &fakeCaptioner{result: &models.CaptionResult{
		Caption:         "Un temple au lever du soleil.",
		Language:        "fr",
		Style:           "creative",
		ConfidenceScore: 0.9,
	}}
	finder := &fakeFinder{
		groups: []models.DuplicateGroup{{GroupID: "grp_1", Size: 2}},
		status: models.DetectorStatus{ModelName: "clip", ModelState: "unavailable"},
	}
	imp := &fakeImporter{}

	h := NewHandler(cfg, Deps{
		Captioner:  captioner,
		Duplicates: finder,
		Importer:   imp,
		Resolver:   fakeGeoCache{},
		Store:      store,
		Images:     images,
		Hub:        stream.NewHub(&cfg.Stream),
		Cache:      requestcache.New(16, time.Hour),
		Proxy:      proxyClient,
		Settings:   settings,
	})
	return &harness{handler: h, captioner: captioner, finder: finder, importer: imp, png: pngData}
}

func (h *harness) post(path string, body any) *httptest.ResponseRecorder {
	data, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	return h.dispatch(req, path)
}

func (h *harness) dispatch(req *http.Request, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	switch {
	case path == "/api/ai/generate-caption":
		h.handler.GenerateCaption(rec, req)
	case path == "/api/ai/generate-caption-async":
		h.handler.GenerateCaptionAsync(rec, req)
	case path == "/api/ai/regenerate-final":
		h.handler.RegenerateFinal(rec, req)
	case path == "/api/duplicates/find-similar":
		h.handler.FindSimilar(rec, req)
	default:
		panic("unknown path " + path)
	}
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("response not JSON: %v: %s", err, rec.Body.String())
	}
	return out
}

func captionBody(h *harness) map[string]any {
	return map[string]any{
		"asset_id":     "asset-1",
		"image_base64": base64.StdEncoding.EncodeToString(h.png),
		"latitude":     13.4125,
		"longitude":    103.8667,
		"language":     "french",
		"style":        "creative",
	}
}

func TestGenerateCaptionSync(t *testing.T) {
	h := newHarness(t)
	rec := h.post("/api/ai/generate-caption", captionBody(h))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	out := decodeBody(t, rec)
	if out["caption"] != "Un temple au lever du soleil." {
		t.Errorf("body = %v", out)
	}

	// Identical request: served from the cache, no second pipeline run.
	rec = h.post("/api/ai/generate-caption", captionBody(h))
	if rec.Code != http.StatusOK {
		t.Fatalf("cached status = %d", rec.Code)
	}
	if h.captioner.calls() != 1 {
		t.Errorf("generate calls = %d, want 1 (cache hit)", h.captioner.calls())
	}
}

func TestGenerateCaptionValidation(t *testing.T) {
	h := newHarness(t)
	tests := []struct {
		name     string
		body     string
		wantCode string
	}{
		{"invalid json", `{not json`, CodeInvalidJSON},
		{"missing asset id", `{"image_base64":"aGk="}`, "MISSING_ASSET_ID"},
		{"lat without lon", `{"asset_id":"a","image_base64":"aGk=","latitude":10}`, CodeInvalidCoordinates},
		{"lat out of range", `{"asset_id":"a","latitude":91,"longitude":0}`, CodeInvalidCoordinates},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/ai/generate-caption", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			h.handler.GenerateCaption(rec, req)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d", rec.Code)
			}
			if out := decodeBody(t, rec); out["code"] != tt.wantCode {
				t.Errorf("code = %v, want %s", out["code"], tt.wantCode)
			}
		})
	}
}

func TestGenerateCaptionAdmission(t *testing.T) {
	h := newHarness(t)
	// Occupy both admission slots.
	h.handler.sem.TryAcquire(1)
	h.handler.sem.TryAcquire(1)
	defer h.handler.sem.Release(2)

	rec := h.post("/api/ai/generate-caption", captionBody(h))
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rec.Code)
	}
	if out := decodeBody(t, rec); out["code"] != CodeTooManyRequests {
		t.Errorf("code = %v", out["code"])
	}
}

func TestGenerateCaptionAsync(t *testing.T) {
	h := newHarness(t)
	h.captioner.done = make(chan struct{}, 1)

	rec := h.post("/api/ai/generate-caption-async", captionBody(h))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	out := decodeBody(t, rec)
	requestID, _ := out["request_id"].(string)
	sseURL, _ := out["sse_url"].(string)
	if requestID == "" || !strings.Contains(sseURL, "/api/ai/generate-caption-stream/"+requestID) {
		t.Fatalf("accepted = %v", out)
	}

	select {
	case <-h.captioner.done:
	case <-time.After(5 * time.Second):
		t.Fatal("worker did not run")
	}

	// The worker streamed into the hub; the terminal event is queued.
	conn, ok := h.handler.Hub.Get(requestID)
	if !ok {
		t.Fatal("hub connection missing")
	}
	var sawComplete bool
	for {
		ev, ok := conn.Next(100 * time.Millisecond)
		if !ok {
			break
		}
		if ev.Type == models.EventComplete {
			sawComplete = true
			break
		}
	}
	if !sawComplete {
		t.Error("no complete event queued")
	}
}

func TestGenerateCaptionAsyncCacheHit(t *testing.T) {
	h := newHarness(t)
	h.captioner.done = make(chan struct{}, 2)

	first := captionBody(h)
	first["request_id"] = "req-a"
	rec := h.post("/api/ai/generate-caption-async", first)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	select {
	case <-h.captioner.done:
	case <-time.After(5 * time.Second):
		t.Fatal("worker did not run")
	}
	// The worker caches after the pipeline returns; wait for the entry.
	deadline := time.Now().Add(5 * time.Second)
	for h.handler.Cache.Len() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if h.handler.Cache.Len() != 1 {
		t.Fatal("first result never entered the request cache")
	}

	second := captionBody(h)
	second["request_id"] = "req-b"
	rec = h.post("/api/ai/generate-caption-async", second)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}

	conn, ok := h.handler.Hub.Get("req-b")
	if !ok {
		t.Fatal("hub connection missing")
	}
	var complete map[string]any
	for {
		ev, ok := conn.Next(time.Second)
		if !ok {
			break
		}
		if ev.Type == models.EventComplete {
			complete = ev.Payload
			break
		}
	}
	if complete == nil {
		t.Fatal("no complete event for the repeated request")
	}
	if complete["cached"] != true {
		t.Errorf("complete payload = %v, want cached:true", complete)
	}
	if h.captioner.calls() != 1 {
		t.Errorf("generate calls = %d, want 1 (repeat served from cache)", h.captioner.calls())
	}
}

func TestGenerateCaptionSyncCoalesced(t *testing.T) {
	h := newHarness(t)
	h.captioner.block = make(chan struct{})

	recs := make(chan int, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rec := h.post("/api/ai/generate-caption", captionBody(h))
			recs <- rec.Code
		}()
	}

	// Hold the single pipeline run open long enough for the second caller
	// to coalesce onto it, then release.
	deadline := time.Now().Add(5 * time.Second)
	for h.captioner.calls() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	time.Sleep(50 * time.Millisecond)
	close(h.captioner.block)
	wg.Wait()
	close(recs)

	for code := range recs {
		if code != http.StatusOK {
			t.Errorf("status = %d, want 200", code)
		}
	}
	if h.captioner.calls() != 1 {
		t.Errorf("generate calls = %d, want 1 (identical requests coalesce)", h.captioner.calls())
	}
}

func TestRegenerateFinal(t *testing.T) {
	h := newHarness(t)
	rec := h.post("/api/ai/regenerate-final", map[string]any{
		"image_description": "Un temple khmer.",
		"geo_context":       "Siem Reap",
		"language":          "fr",
		"style":             "poetic",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}

	rec = h.post("/api/ai/regenerate-final", map[string]any{"geo_context": "x"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400 for missing description", rec.Code)
	}
	if out := decodeBody(t, rec); out["code"] != "MISSING_IMAGE_DESCRIPTION" {
		t.Errorf("code = %v", out["code"])
	}
}

func TestFindSimilarSync(t *testing.T) {
	h := newHarness(t)
	rec := h.post("/api/duplicates/find-similar", map[string]any{
		"asset_ids": []string{"a1", "a2", "a3"},
		"threshold": 0.9,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	out := decodeBody(t, rec)
	if out["group_count"] != float64(1) || out["total_images"] != float64(3) {
		t.Errorf("body = %v", out)
	}
}

func TestFindSimilarSyncLimits(t *testing.T) {
	h := newHarness(t)

	ids := make([]string, 11)
	for i := range ids {
		ids[i] = fmt.Sprintf("a%d", i)
	}
	rec := h.post("/api/duplicates/find-similar", map[string]any{"asset_ids": ids})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400 for oversized sync batch", rec.Code)
	}
	if out := decodeBody(t, rec); out["code"] != CodeInvalidAssetCount {
		t.Errorf("code = %v", out["code"])
	}

	rec = h.post("/api/duplicates/find-similar", map[string]any{"asset_ids": []string{"only-one"}})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400 for single asset", rec.Code)
	}
}

func TestFindSimilarSyncModelUnavailable(t *testing.T) {
	h := newHarness(t)
	h.finder.err = fmt.Errorf("load embedding model: host down")

	rec := h.post("/api/duplicates/find-similar", map[string]any{
		"asset_ids": []string{"a1", "a2"},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want degraded 200", rec.Code)
	}
	out := decodeBody(t, rec)
	if out["success"] != true || out["group_count"] != float64(0) || out["warning"] == nil {
		t.Errorf("body = %v", out)
	}
}
