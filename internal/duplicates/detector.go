// Fotofable - Contextual Photo Captioning and Duplicate Detection
// Copyright 2026 Marek K. (marekvk)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/marekvk/fotofable

package duplicates

import (
	"context"
	"errors"
	"fmt"
	"image"
	"math"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/marekvk/fotofable/internal/config"
	"github.com/marekvk/fotofable/internal/logging"
	"github.com/marekvk/fotofable/internal/metrics"
	"github.com/marekvk/fotofable/internal/modelclient"
	"github.com/marekvk/fotofable/internal/models"
	"github.com/marekvk/fotofable/internal/stream"
)

// ErrModelUnavailable reports that the embedding model could not be brought
// resident; analysis degrades to an empty result instead of failing.
var ErrModelUnavailable = errors.New("embedding model unavailable")

// Detector finds groups of near-duplicate images by comparing perceptual
// embeddings from the configured embedding model. Embeddings are cached by
// file identity; the model is loaded lazily and unloaded by the idle sweep.
type Detector struct {
	cfg    *config.DuplicatesConfig
	client modelclient.Interface
	model  *modelManager
	cache  *embeddingCache

	mu  sync.Mutex
	dim int
}

func NewDetector(client modelclient.Interface, cfg *config.DuplicatesConfig) (*Detector, error) {
	cache, err := newEmbeddingCache(cfg.CacheDir)
	if err != nil {
		return nil, err
	}
	return &Detector{
		cfg:    cfg,
		client: client,
		model:  newModelManager(client, cfg.EmbeddingModel),
		cache:  cache,
	}, nil
}

// FindDuplicates runs the full analysis: ensure the model is resident, embed
// every image (cache-first), build the pairwise similarity matrix, group
// above-threshold pairs, then rank each group by quality. Progress is
// reported on emit throughout.
//
// threshold <= 0 falls back to the configured default. timeWindowHours > 0
// restricts groups to images captured within that window of the group seed;
// images without a usable capture time are then excluded from grouping.
func (d *Detector) FindDuplicates(ctx context.Context, images []models.ImageRef, threshold, timeWindowHours float64, emit stream.Emitter) ([]models.DuplicateGroup, error) {
	start := time.Now()
	if threshold <= 0 {
		threshold = d.cfg.Threshold
	}

	emit.Connected("Duplicate analysis started")

	cold, err := d.model.EnsureLoaded(ctx)
	if err != nil {
		// An absent model degrades to an empty result rather than failing:
		// callers get a successful terminal event carrying the warning.
		logging.Warn().Err(err).Msg("Embedding model unavailable, returning empty result")
		emit.Warning("embedding model unavailable", models.WarnModelUnavailable)
		emit.Complete(map[string]any{
			"success":      true,
			"groups":       []models.DuplicateGroup{},
			"group_count":  0,
			"total_images": len(images),
			"threshold":    threshold,
			"warning":      "embedding model unavailable",
		})
		return nil, fmt.Errorf("%w: %v", ErrModelUnavailable, err)
	}
	if cold {
		emit.Progress(models.StepModelLoading, 5, "Embedding model loaded")
	}

	vectors, err := d.embedAll(ctx, images, emit)
	if err != nil {
		emit.Error(err.Error(), models.ErrTypeGeneration, models.StepEncoding)
		return nil, err
	}

	emit.Progress(models.StepSimilarity, 70, "Computing similarity matrix")
	sim, pairs := similarityMatrix(vectors, threshold)

	emit.Progress(models.StepGrouping, 80, "Grouping similar images")
	clusters := groupIndices(images, sim, threshold, timeWindowHours)

	emit.Progress(models.StepQuality, 90, "Ranking group members by quality")
	groups := make([]models.DuplicateGroup, 0, len(clusters))
	for _, cluster := range clusters {
		groups = append(groups, buildGroup(images, cluster, sim))
	}

	d.model.Touch()
	elapsed := time.Since(start)
	metrics.RecordDuplicateAnalysis(elapsed, len(groups), pairs)
	logging.Info().
		Int("images", len(images)).
		Int("groups", len(groups)).
		Int("similar_pairs", pairs).
		Dur("elapsed", elapsed).
		Msg("Duplicate analysis finished")

	emit.Complete(map[string]any{
		"success":         true,
		"groups":          groups,
		"group_count":     len(groups),
		"total_images":    len(images),
		"threshold":       threshold,
		"processing_time": elapsed.Seconds(),
	})
	return groups, nil
}

// embedAll returns one embedding per image, reading the cache first. A single
// failed embed aborts the run; partial similarity matrices produce misleading
// groups.
func (d *Detector) embedAll(ctx context.Context, images []models.ImageRef, emit stream.Emitter) ([][]float32, error) {
	vectors := make([][]float32, len(images))
	for i, img := range images {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		pct := 10 + 55*i/maxInt(len(images), 1)
		emit.Progress(models.StepEncoding, pct, fmt.Sprintf("Encoding image %d/%d", i+1, len(images)))

		key := CacheKey(img.AssetID, img.Path)
		if vec, ok := d.cache.Get(key); ok {
			vectors[i] = vec
			continue
		}

		data, err := os.ReadFile(img.Path)
		if err != nil {
			return nil, fmt.Errorf("read image %s: %w", img.AssetID, err)
		}
		embedStart := time.Now()
		vec, err := d.client.Embed(ctx, d.cfg.EmbeddingModel, data)
		if err != nil {
			d.model.MarkUnavailable()
			return nil, fmt.Errorf("embed image %s: %w", img.AssetID, err)
		}
		metrics.RecordEmbedding(time.Since(embedStart))
		d.model.Touch()
		d.setDim(len(vec))
		d.cache.Put(key, vec)
		vectors[i] = vec
	}
	return vectors, nil
}

// Status reports model residency and cache health for the status endpoint.
func (d *Detector) Status() models.DetectorStatus {
	state, lastUse := d.model.State()
	entries, hitRate := d.cache.Stats()

	st := models.DetectorStatus{
		Available:     state == StateLoaded,
		ModelName:     d.cfg.EmbeddingModel,
		ModelState:    state.String(),
		EmbeddingDim:  d.getDim(),
		CacheEntries:  entries,
		CacheHitRate:  hitRate,
		IdleUnloadSec: int(d.cfg.IdleUnload.Seconds()),
	}
	if !lastUse.IsZero() {
		st.LastUsedSecs = time.Since(lastUse).Seconds()
	}
	return st
}

// MaxSyncAssets is the ceiling for synchronous requests; larger batches must
// go through the async path.
func (d *Detector) MaxSyncAssets() int {
	return d.cfg.MaxSyncAssets
}

// ClearCache drops the in-memory embedding tier.
func (d *Detector) ClearCache() {
	d.cache.Clear()
	logging.Info().Msg("Embedding memory cache cleared")
}

// SweepIdle unloads the embedding model when idle; called periodically by the
// supervisor service.
func (d *Detector) SweepIdle(ctx context.Context) {
	d.model.SweepIdle(ctx, d.cfg.IdleUnload)
}

func (d *Detector) Close() error {
	return d.cache.Close()
}

func (d *Detector) setDim(n int) {
	d.mu.Lock()
	d.dim = n
	d.mu.Unlock()
}

func (d *Detector) getDim() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dim
}

// similarityMatrix computes pairwise cosine similarity and counts the pairs
// at or above the threshold.
func similarityMatrix(vectors [][]float32, threshold float64) ([][]float64, int) {
	n := len(vectors)
	sim := make([][]float64, n)
	for i := range sim {
		sim[i] = make([]float64, n)
		sim[i][i] = 1
	}
	pairs := 0
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			s := cosineSimilarity(vectors[i], vectors[j])
			sim[i][j] = s
			sim[j][i] = s
			if s >= threshold {
				pairs++
			}
		}
	}
	return sim, pairs
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// groupIndices clusters image indices: each unvisited image seeds a group and
// pulls in every later unvisited image whose similarity to the seed clears
// the threshold and whose capture time fits the window. Only clusters of two
// or more survive.
func groupIndices(images []models.ImageRef, sim [][]float64, threshold, timeWindowHours float64) [][]int {
	window := time.Duration(timeWindowHours * float64(time.Hour))
	visited := make([]bool, len(images))
	var clusters [][]int

	for i := range images {
		if visited[i] {
			continue
		}
		if window > 0 && images[i].Timestamp.IsZero() {
			// No usable capture time: cannot satisfy a window constraint.
			continue
		}
		cluster := []int{i}
		for j := i + 1; j < len(images); j++ {
			if visited[j] || sim[i][j] < threshold {
				continue
			}
			if window > 0 {
				if images[j].Timestamp.IsZero() {
					continue
				}
				delta := images[j].Timestamp.Sub(images[i].Timestamp)
				if delta < 0 {
					delta = -delta
				}
				if delta > window {
					continue
				}
			}
			cluster = append(cluster, j)
		}
		if len(cluster) < 2 {
			continue
		}
		for _, idx := range cluster {
			visited[idx] = true
		}
		clusters = append(clusters, cluster)
	}
	return clusters
}

// buildGroup scores each member, picks the best-quality image as primary and
// computes similarity of every member to it.
func buildGroup(images []models.ImageRef, cluster []int, sim [][]float64) models.DuplicateGroup {
	type scored struct {
		idx     int
		quality models.QualityMetrics
		ok      bool
	}
	members := make([]scored, len(cluster))
	for i, idx := range cluster {
		q, ok := AnalyzeQuality(images[idx].Path)
		members[i] = scored{idx: idx, quality: q, ok: ok}
	}

	sort.SliceStable(members, func(a, b int) bool {
		if members[a].quality.OverallScore != members[b].quality.OverallScore {
			return members[a].quality.OverallScore > members[b].quality.OverallScore
		}
		return members[a].quality.Sharpness > members[b].quality.Sharpness
	})

	primary := members[0].idx
	group := models.DuplicateGroup{
		GroupID:        "grp_" + uuid.NewString()[:8],
		PrimaryAssetID: images[primary].AssetID,
		Size:           len(members),
	}

	var simSum float64
	for rank, m := range members {
		img := images[m.idx]
		member := models.DuplicateMember{
			AssetID:             img.AssetID,
			Filename:            img.Filename,
			SimilarityToPrimary: sim[m.idx][primary],
			IsPrimary:           rank == 0,
			QualityScore:        m.quality.OverallScore,
			BlurScore:           100 - m.quality.Sharpness,
			FileSize:            img.FileSize,
		}
		if !img.Timestamp.IsZero() {
			member.Timestamp = img.Timestamp.UTC().Format(time.RFC3339)
		}
		if m.ok {
			q := m.quality
			member.Quality = &q
			member.Resolution = imageResolution(img.Path)
		}
		if rank == 0 {
			member.SimilarityToPrimary = 1
		} else {
			simSum += member.SimilarityToPrimary
		}
		group.Members = append(group.Members, member)
	}
	if len(members) > 1 {
		group.AvgSimilarity = simSum / float64(len(members)-1)
	}
	return group
}

// imageResolution reads only the header, no full decode.
func imageResolution(path string) string {
	f, err := os.Open(path)
	if err != nil {
		return ""
	}
	defer f.Close()
	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return ""
	}
	return fmt.Sprintf("%dx%d", cfg.Width, cfg.Height)
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
