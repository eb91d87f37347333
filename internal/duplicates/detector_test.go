// Fotofable - Contextual Photo Captioning and Duplicate Detection
// Copyright 2026 Marek K. (marekvk)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/marekvk/fotofable

package duplicates

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/marekvk/fotofable/internal/config"
	"github.com/marekvk/fotofable/internal/modelclient"
	"github.com/marekvk/fotofable/internal/models"
	"github.com/marekvk/fotofable/internal/stream"
)

// fakeModel serves embeddings from a queue, in request order.
type fakeModel struct {
	mu          sync.Mutex
	loadCalls   int
	unloadCalls int
	embedCalls  int
	loadErr     error
	unloadErr   error
	embedErr    error
	queue       [][]float32
}

func (f *fakeModel) GenerateText(context.Context, string, string, modelclient.Params) (string, error) {
	return "", errors.New("not implemented")
}

func (f *fakeModel) GenerateWithImage(context.Context, string, string, []byte, modelclient.Params) (string, error) {
	return "", errors.New("not implemented")
}

func (f *fakeModel) Embed(_ context.Context, _ string, _ []byte) ([]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.embedCalls++
	if f.embedErr != nil {
		return nil, f.embedErr
	}
	if len(f.queue) == 0 {
		return nil, modelclient.ErrEmpty
	}
	vec := f.queue[0]
	f.queue = f.queue[1:]
	return vec, nil
}

func (f *fakeModel) LoadModel(context.Context, string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loadCalls++
	return f.loadErr
}

func (f *fakeModel) UnloadModel(context.Context, string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unloadCalls++
	return f.unloadErr
}

func (f *fakeModel) Ping(context.Context) error { return nil }

func (f *fakeModel) counts() (load, unload, embed int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.loadCalls, f.unloadCalls, f.embedCalls
}

func newTestDetector(t *testing.T, client modelclient.Interface) *Detector {
	t.Helper()
	d, err := NewDetector(client, &config.DuplicatesConfig{
		EmbeddingModel: "clip-vit-base-patch32",
		IdleUnload:     5 * time.Minute,
		CacheDir:       filepath.Join(t.TempDir(), "embeddings"),
		Threshold:      0.9,
		MaxSyncAssets:  10,
	})
	if err != nil {
		t.Fatalf("NewDetector: %v", err)
	}
	t.Cleanup(func() { d.Close() })
	return d
}

func TestModelLifecycle(t *testing.T) {
	client := &fakeModel{}
	m := newModelManager(client, "clip")

	if state, _ := m.State(); state != StateUnavailable {
		t.Fatalf("initial state = %s", state)
	}

	cold, err := m.EnsureLoaded(context.Background())
	if err != nil || !cold {
		t.Fatalf("first load: cold=%v err=%v", cold, err)
	}
	cold, err = m.EnsureLoaded(context.Background())
	if err != nil || cold {
		t.Fatalf("second load: cold=%v err=%v", cold, err)
	}
	if load, _, _ := client.counts(); load != 1 {
		t.Errorf("load calls = %d, want 1", load)
	}
	if state, _ := m.State(); state != StateLoaded {
		t.Errorf("state = %s, want loaded", state)
	}

	// Not idle yet: sweep is a no-op.
	if m.SweepIdle(context.Background(), time.Hour) {
		t.Error("sweep must not unload a recently used model")
	}

	m.mu.Lock()
	m.lastUse = time.Now().Add(-2 * time.Hour)
	m.mu.Unlock()
	if !m.SweepIdle(context.Background(), time.Hour) {
		t.Error("sweep should unload after the idle period")
	}
	if state, _ := m.State(); state != StateUnavailable {
		t.Errorf("state after unload = %s", state)
	}
}

func TestModelLifecycleLoadFailure(t *testing.T) {
	client := &fakeModel{loadErr: errors.New("host down")}
	m := newModelManager(client, "clip")

	if _, err := m.EnsureLoaded(context.Background()); err == nil {
		t.Fatal("expected load error")
	}
	if state, _ := m.State(); state != StateUnavailable {
		t.Errorf("state = %s, want unavailable", state)
	}
}

func TestModelLifecycleUnloadFailureKeepsLoaded(t *testing.T) {
	client := &fakeModel{unloadErr: errors.New("busy")}
	m := newModelManager(client, "clip")
	if _, err := m.EnsureLoaded(context.Background()); err != nil {
		t.Fatal(err)
	}

	m.mu.Lock()
	m.lastUse = time.Now().Add(-2 * time.Hour)
	m.mu.Unlock()
	if m.SweepIdle(context.Background(), time.Hour) {
		t.Error("failed unload must not report success")
	}
	// The host still has the model resident.
	if state, _ := m.State(); state != StateLoaded {
		t.Errorf("state = %s, want loaded after failed unload", state)
	}
}

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{1, 0}, []float32{1, 0}, 1},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, -1},
		{"scaled", []float32{2, 0}, []float32{5, 0}, 1},
		{"zero vector", []float32{0, 0}, []float32{1, 0}, 0},
		{"length mismatch", []float32{1}, []float32{1, 0}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := cosineSimilarity(tt.a, tt.b)
			if got < tt.want-1e-9 || got > tt.want+1e-9 {
				t.Errorf("cosine = %f, want %f", got, tt.want)
			}
		})
	}
}

func TestGroupIndices(t *testing.T) {
	base := time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)
	refs := func(ts ...time.Time) []models.ImageRef {
		out := make([]models.ImageRef, len(ts))
		for i, t := range ts {
			out[i] = models.ImageRef{AssetID: string(rune('a' + i)), Timestamp: t}
		}
		return out
	}
	// 0-1 and 0-2 similar, 3 distinct.
	sim := [][]float64{
		{1.00, 0.95, 0.92, 0.10},
		{0.95, 1.00, 0.91, 0.10},
		{0.92, 0.91, 1.00, 0.10},
		{0.10, 0.10, 0.10, 1.00},
	}

	t.Run("no window", func(t *testing.T) {
		clusters := groupIndices(refs(base, base, base, base), sim, 0.9, 0)
		if len(clusters) != 1 || len(clusters[0]) != 3 {
			t.Fatalf("clusters = %v", clusters)
		}
	})

	t.Run("window excludes distant capture", func(t *testing.T) {
		images := refs(base, base.Add(5*time.Minute), base.Add(48*time.Hour), base)
		clusters := groupIndices(images, sim, 0.9, 1)
		if len(clusters) != 1 || len(clusters[0]) != 2 {
			t.Fatalf("clusters = %v", clusters)
		}
	})

	t.Run("window excludes malformed timestamps", func(t *testing.T) {
		images := refs(base, time.Time{}, base.Add(time.Minute), base)
		clusters := groupIndices(images, sim, 0.9, 1)
		if len(clusters) != 1 || len(clusters[0]) != 2 {
			t.Fatalf("clusters = %v", clusters)
		}
		for _, idx := range clusters[0] {
			if images[idx].Timestamp.IsZero() {
				t.Error("zero-timestamp image grouped under a window constraint")
			}
		}
	})

	t.Run("singletons dropped", func(t *testing.T) {
		clusters := groupIndices(refs(base, base, base, base), sim, 0.99, 0)
		if len(clusters) != 0 {
			t.Fatalf("clusters = %v, want none", clusters)
		}
	})
}

func TestFindDuplicates(t *testing.T) {
	dir := t.TempDir()
	images := []models.ImageRef{
		{AssetID: "a1", Filename: "a1.png", Path: writePNG(t, dir, "a1.png", "sharp"),
			Timestamp: time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC), FileSize: 1024},
		{AssetID: "a2", Filename: "a2.png", Path: writePNG(t, dir, "a2.png", "flat"),
			Timestamp: time.Date(2026, 3, 15, 10, 2, 0, 0, time.UTC), FileSize: 900},
		{AssetID: "b1", Filename: "b1.png", Path: writePNG(t, dir, "b1.png", "flat"),
			Timestamp: time.Date(2026, 3, 15, 11, 0, 0, 0, time.UTC), FileSize: 800},
	}
	client := &fakeModel{queue: [][]float32{
		{1, 0, 0},
		{0.99, 0.14, 0},
		{0, 0, 1},
	}}
	d := newTestDetector(t, client)

	collect := &stream.CollectEmitter{}
	groups, err := d.FindDuplicates(context.Background(), images, 0, 0, collect)
	if err != nil {
		t.Fatalf("FindDuplicates: %v", err)
	}
	if len(groups) != 1 {
		t.Fatalf("groups = %+v", groups)
	}

	g := groups[0]
	if g.Size != 2 || len(g.Members) != 2 {
		t.Fatalf("group = %+v", g)
	}
	// a1 is the checkerboard: far sharper, so it is primary.
	if g.PrimaryAssetID != "a1" || !g.Members[0].IsPrimary || g.Members[0].AssetID != "a1" {
		t.Errorf("primary = %q, members = %+v", g.PrimaryAssetID, g.Members)
	}
	if g.Members[0].SimilarityToPrimary != 1 {
		t.Errorf("primary similarity = %f", g.Members[0].SimilarityToPrimary)
	}
	if g.AvgSimilarity < 0.98 || g.AvgSimilarity > 1 {
		t.Errorf("avg similarity = %f", g.AvgSimilarity)
	}
	if g.Members[1].Quality == nil || g.Members[1].Resolution != "64x64" {
		t.Errorf("member quality = %+v", g.Members[1])
	}
	if g.Members[0].Timestamp != "2026-03-15T10:00:00Z" {
		t.Errorf("timestamp = %q", g.Members[0].Timestamp)
	}

	events := collect.Events()
	if len(events) == 0 || events[0].Type != models.EventConnected {
		t.Fatalf("first event = %+v", events)
	}
	last := events[len(events)-1]
	if last.Type != models.EventComplete || last.Payload["group_count"] != 1 {
		t.Errorf("last event = %+v", last)
	}
	sawModelLoading := false
	for _, ev := range events {
		if ev.Type == models.EventProgress && ev.Payload["step"] == models.StepModelLoading {
			sawModelLoading = true
		}
	}
	if !sawModelLoading {
		t.Error("cold run must report model_loading progress")
	}

	st := d.Status()
	if !st.Available || st.ModelState != "loaded" || st.EmbeddingDim != 3 {
		t.Errorf("status = %+v", st)
	}
	if st.CacheEntries != 3 {
		t.Errorf("cache entries = %d, want 3", st.CacheEntries)
	}

	// Second run: every embedding comes from the cache.
	if _, err := d.FindDuplicates(context.Background(), images, 0, 0, stream.NopEmitter{}); err != nil {
		t.Fatalf("second run: %v", err)
	}
	if _, _, embeds := client.counts(); embeds != 3 {
		t.Errorf("embed calls = %d, want 3 (cache must serve the rerun)", embeds)
	}
}

func TestFindDuplicatesEmbedFailure(t *testing.T) {
	dir := t.TempDir()
	images := []models.ImageRef{
		{AssetID: "a1", Path: writePNG(t, dir, "a1.png", "sharp")},
	}
	client := &fakeModel{embedErr: modelclient.ErrUnavailable}
	d := newTestDetector(t, client)

	collect := &stream.CollectEmitter{}
	if _, err := d.FindDuplicates(context.Background(), images, 0, 0, collect); err == nil {
		t.Fatal("expected error")
	}
	events := collect.Events()
	if last := events[len(events)-1]; last.Type != models.EventError {
		t.Errorf("last event = %+v, want error", last)
	}
	if state, _ := d.model.State(); state != StateUnavailable {
		t.Errorf("state = %s, want unavailable after embed failure", state)
	}
}

func TestFindDuplicatesLoadFailure(t *testing.T) {
	client := &fakeModel{loadErr: errors.New("no such model")}
	d := newTestDetector(t, client)

	collect := &stream.CollectEmitter{}
	_, err := d.FindDuplicates(context.Background(), nil, 0, 0, collect)
	if !errors.Is(err, ErrModelUnavailable) {
		t.Fatalf("err = %v, want ErrModelUnavailable", err)
	}

	// An absent model is a degradation, not a failure: the stream ends with
	// a successful empty result carrying the warning.
	events := collect.Events()
	last := events[len(events)-1]
	if last.Type != models.EventComplete || last.Payload["success"] != true || last.Payload["group_count"] != 0 {
		t.Errorf("last event = %+v, want degraded complete", last)
	}
	sawWarning := false
	for _, ev := range events {
		if ev.Type == models.EventWarning {
			sawWarning = true
		}
		if ev.Type == models.EventError {
			t.Errorf("unexpected error event: %+v", ev)
		}
	}
	if !sawWarning {
		t.Error("missing model-unavailable warning event")
	}
}

// gatedLoadModel blocks LoadModel until the gate closes, so tests can hold a
// load in flight.
type gatedLoadModel struct {
	fakeModel
	gate chan struct{}
}

func (g *gatedLoadModel) LoadModel(ctx context.Context, model string) error {
	<-g.gate
	return g.fakeModel.LoadModel(ctx, model)
}

func TestModelLifecycleConcurrentLoadSingleCold(t *testing.T) {
	client := &gatedLoadModel{gate: make(chan struct{})}
	m := newModelManager(client, "clip")

	results := make(chan bool, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			cold, err := m.EnsureLoaded(context.Background())
			if err != nil {
				t.Errorf("EnsureLoaded: %v", err)
			}
			results <- cold
		}()
	}

	// Give the second caller time to join the in-flight load.
	time.Sleep(50 * time.Millisecond)
	close(client.gate)
	wg.Wait()
	close(results)

	coldCount := 0
	for cold := range results {
		if cold {
			coldCount++
		}
	}
	if coldCount != 1 {
		t.Errorf("cold loads reported = %d, want exactly 1", coldCount)
	}
	if load, _, _ := client.counts(); load != 1 {
		t.Errorf("load calls = %d, want 1", load)
	}
}
