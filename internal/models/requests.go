// Fotofable - Contextual Photo Captioning and Duplicate Detection
// Copyright 2026 Marek K. (marekvk)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/marekvk/fotofable

package models

// CaptionRequest is the body of the sync and async caption endpoints.
// Latitude/Longitude are pointers so "missing" is distinguishable from 0,0
// (a valid ocean coordinate).
type CaptionRequest struct {
	AssetID         string   `json:"asset_id" validate:"required"`
	ImageBase64     string   `json:"image_base64,omitempty"`
	Latitude        *float64 `json:"latitude,omitempty" validate:"omitempty,latitude"`
	Longitude       *float64 `json:"longitude,omitempty" validate:"omitempty,longitude"`
	ExistingCaption string   `json:"existing_caption,omitempty"`
	Language        string   `json:"language,omitempty"`
	Style           string   `json:"style,omitempty"`
	RequestID       string   `json:"request_id,omitempty"`
}

// HasCoordinates reports whether both GPS fields are present.
func (r *CaptionRequest) HasCoordinates() bool {
	return r.Latitude != nil && r.Longitude != nil
}

// RegenerateRequest re-runs the caption stage only, from edited contexts.
// The vision model is never consulted for this endpoint.
type RegenerateRequest struct {
	ImageDescription   string `json:"image_description" validate:"required"`
	GeoContext         string `json:"geo_context,omitempty"`
	CulturalEnrichment string `json:"cultural_enrichment,omitempty"`
	TravelEnrichment   string `json:"travel_enrichment,omitempty"`
	Language           string `json:"language,omitempty"`
	Style              string `json:"style,omitempty"`
}

// DuplicateRequest is the body of the duplicate-detection endpoints.
type DuplicateRequest struct {
	AssetIDs        []string `json:"asset_ids" validate:"required,min=2"`
	Threshold       float64  `json:"threshold,omitempty" validate:"omitempty,gt=0,lte=1"`
	TimeWindowHours *float64 `json:"time_window_hours,omitempty" validate:"omitempty,gt=0"`
	RequestID       string   `json:"request_id,omitempty"`
}

// AsyncAccepted is the immediate response of the async endpoints.
type AsyncAccepted struct {
	RequestID string `json:"request_id"`
	SSEURL    string `json:"sse_url"`
}
