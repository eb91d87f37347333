// Fotofable - Contextual Photo Captioning and Duplicate Detection
// Copyright 2026 Marek K. (marekvk)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/marekvk/fotofable

package models

import "time"

// ImageRef identifies one image submitted for duplicate analysis. Path points
// at the materialized temp file; Timestamp is the capture time when known.
type ImageRef struct {
	AssetID   string    `json:"asset_id"`
	Filename  string    `json:"filename,omitempty"`
	Path      string    `json:"-"`
	Timestamp time.Time `json:"timestamp,omitempty"`
	FileSize  int64     `json:"file_size,omitempty"`
}

// QualityMetrics are the per-image scores used to rank duplicate-group
// members. All values are normalized to 0..100 except OverallScore (0..1
// weighted combination scaled to 0..100 for the wire).
type QualityMetrics struct {
	Sharpness    float64 `json:"sharpness"`
	Exposure     float64 `json:"exposure"`
	Contrast     float64 `json:"contrast"`
	Resolution   float64 `json:"resolution"`
	OverallScore float64 `json:"overall_score"`
}

// DuplicateMember is one image inside a duplicate group.
type DuplicateMember struct {
	AssetID             string          `json:"asset_id"`
	Filename            string          `json:"filename,omitempty"`
	Timestamp           string          `json:"timestamp,omitempty"`
	SimilarityToPrimary float64         `json:"similarity_to_primary"`
	IsPrimary           bool            `json:"is_primary"`
	QualityScore        float64         `json:"quality_score"`
	BlurScore           float64         `json:"blur_score"`
	FileSize            int64           `json:"file_size,omitempty"`
	Resolution          string          `json:"resolution,omitempty"`
	Quality             *QualityMetrics `json:"quality,omitempty"`
}

// DuplicateGroup is one cluster of near-duplicate images. Exactly one member
// is primary, and it carries the group's highest quality score.
type DuplicateGroup struct {
	GroupID        string            `json:"group_id"`
	Members        []DuplicateMember `json:"members"`
	PrimaryAssetID string            `json:"primary_asset_id"`
	AvgSimilarity  float64           `json:"avg_similarity"`
	Size           int               `json:"size"`
}

// DetectorStatus reports the embedding-model lifecycle state for the
// duplicates status endpoint.
type DetectorStatus struct {
	Available     bool    `json:"available"`
	ModelName     string  `json:"model_name"`
	ModelState    string  `json:"model_state"`
	EmbeddingDim  int     `json:"embedding_dim,omitempty"`
	CacheEntries  int     `json:"cache_entries"`
	CacheHitRate  float64 `json:"cache_hit_rate"`
	LastUsedSecs  float64 `json:"last_used_seconds_ago,omitempty"`
	IdleUnloadSec int     `json:"idle_unload_seconds"`
}
