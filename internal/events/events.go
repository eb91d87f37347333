// Fotofable - Contextual Photo Captioning and Duplicate Detection
// Copyright 2026 Marek K. (marekvk)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/marekvk/fotofable

package events

import (
	"time"

	"github.com/goccy/go-json"
)

// Subject suffixes under the configured prefix.
const (
	SubjectCaptions   = "captions.completed"
	SubjectDuplicates = "duplicates.completed"
	SubjectImports    = "imports.completed"
)

// CaptionCompleted is published after a caption run finishes, degraded or not.
type CaptionCompleted struct {
	RequestID       string    `json:"request_id"`
	AssetID         string    `json:"asset_id,omitempty"`
	Language        string    `json:"language"`
	Style           string    `json:"style"`
	ConfidenceScore float64   `json:"confidence_score"`
	Degraded        bool      `json:"degraded"`
	ProcessingSecs  float64   `json:"processing_seconds"`
	Timestamp       time.Time `json:"timestamp"`
}

// DuplicatesCompleted is published after a duplicate analysis run.
type DuplicatesCompleted struct {
	RequestID      string    `json:"request_id"`
	TotalImages    int       `json:"total_images"`
	GroupCount     int       `json:"group_count"`
	Threshold      float64   `json:"threshold"`
	ProcessingSecs float64   `json:"processing_seconds"`
	Timestamp      time.Time `json:"timestamp"`
}

// ImportCompleted is published after a country import attempt, including
// partial successes.
type ImportCompleted struct {
	CountryCode    string    `json:"country_code"`
	GeonamesCount  int       `json:"geonames_count"`
	UnescoCount    int       `json:"unesco_count"`
	CulturalCount  int       `json:"cultural_count"`
	OSMCount       int       `json:"osm_count"`
	ProcessingSecs float64   `json:"processing_seconds"`
	Timestamp      time.Time `json:"timestamp"`
}

func serialize(v any) ([]byte, error) {
	return json.Marshal(v)
}
