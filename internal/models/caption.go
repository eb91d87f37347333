// Fotofable - Contextual Photo Captioning and Duplicate Detection
// Copyright 2026 Marek K. (marekvk)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/marekvk/fotofable

package models

import "time"

// CaptionContext is the merged context bag the caption and hashtag stages
// consume. Fields default to the empty string when the upstream stage
// produced nothing, so templates never see a null.
type CaptionContext struct {
	ImageDescription  string `json:"image_description"`
	LocationBasic     string `json:"location_basic"`
	LocationDetailed  string `json:"location_detailed"`
	CulturalContext   string `json:"cultural_context"`
	NearbyAttractions string `json:"nearby_attractions"`
	TravelEnrichment  string `json:"travel_enrichment"`
	CulturalEnrich    string `json:"cultural_enrichment"`
	GeographicContext string `json:"geographic_context"`
}

// StageOutput is one entry in the ordered trace of intermediate pipeline
// results carried on the final CaptionResult.
type StageOutput struct {
	Stage   string `json:"stage"`
	Content string `json:"content"`
	Model   string `json:"model,omitempty"`
}

// CaptionResult is the final product of one caption request.
type CaptionResult struct {
	Caption         string        `json:"caption"`
	Hashtags        []string      `json:"hashtags,omitempty"`
	Language        string        `json:"language"`
	Style           string        `json:"style"`
	ConfidenceScore float64       `json:"confidence_score"`
	ProcessingTime  time.Duration `json:"-"`
	ProcessingSecs  float64       `json:"processing_time"`

	AssetID string `json:"asset_id,omitempty"`

	// StageTrace preserves intermediate outputs in emission order.
	StageTrace      []StageOutput `json:"stage_trace,omitempty"`
	CompletedStages []string      `json:"completed_stages,omitempty"`
	Warnings        []string      `json:"warnings,omitempty"`

	// ModelsUsed maps stage role (vision, travel, cultural, caption) to the
	// model that actually served it, including "fallback".
	ModelsUsed map[string]string `json:"models_used,omitempty"`

	// Enrichments carries the raw per-stage texts for the complete event.
	Enrichments map[string]string `json:"enrichments,omitempty"`
}

// Degraded reports whether the result was produced entirely from fallbacks.
// Degraded results are not cached.
func (r *CaptionResult) Degraded() bool {
	return r.Style == "fallback"
}
