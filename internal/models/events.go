// Fotofable - Contextual Photo Captioning and Duplicate Detection
// Copyright 2026 Marek K. (marekvk)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/marekvk/fotofable

package models

import "time"

// EventType names one of the closed set of stream event kinds.
type EventType string

// Stream event taxonomy. connected precedes everything else for a request;
// complete and error are terminal.
const (
	EventConnected EventType = "connected"
	EventHeartbeat EventType = "heartbeat"
	EventProgress  EventType = "progress"
	EventPartial   EventType = "partial"
	EventWarning   EventType = "warning"
	EventError     EventType = "error"
	EventComplete  EventType = "complete"
)

// Terminal reports whether the event ends its request's stream.
func (t EventType) Terminal() bool {
	return t == EventComplete || t == EventError
}

// Progress step labels.
const (
	StepPreparation        = "preparation"
	StepImageAnalysis      = "image_analysis"
	StepGeolocation        = "geolocation"
	StepTravelEnrichment   = "travel_enrichment"
	StepCulturalEnrichment = "cultural_enrichment"
	StepCaptionGeneration  = "caption_generation"
	StepHashtagGeneration  = "hashtag_generation"
	StepModelLoading       = "model_loading"
	StepEncoding           = "encoding"
	StepSimilarity         = "similarity"
	StepGrouping           = "grouping"
	StepQuality            = "quality"
	StepProcessing         = "processing"
)

// Partial result types.
const (
	PartialImageAnalysis    = "image_analysis"
	PartialGeolocation      = "geolocation"
	PartialTravelEnrichment = "travel_enrichment"
	PartialCulturalEnrich   = "cultural_enrichment"
	PartialRawCaption       = "raw_caption"
	PartialHashtags         = "hashtags"
)

// Warning codes.
const (
	WarnModelFallback    = "MODEL_FALLBACK"
	WarnModelUnavailable = "MODEL_UNAVAILABLE"
)

// Error types carried on error events.
const (
	ErrTypeTimeout    = "TIMEOUT"
	ErrTypeUnknown    = "UNKNOWN_ERROR"
	ErrTypeGeneration = "GENERATION_ERROR"
)

// Event is one tagged record on a request's stream. Payload holds the
// event-specific body serialized as the SSE data frame.
type Event struct {
	Type      EventType      `json:"-"`
	RequestID string         `json:"-"`
	Payload   map[string]any `json:"-"`
}

// NewConnectedEvent builds the stream-opening event.
func NewConnectedEvent(requestID, message string) Event {
	return Event{
		Type:      EventConnected,
		RequestID: requestID,
		Payload: map[string]any{
			"message":    message,
			"request_id": requestID,
			"timestamp":  time.Now().UTC().Format(time.RFC3339),
		},
	}
}

// NewHeartbeatEvent builds a keep-alive event.
func NewHeartbeatEvent(requestID string) Event {
	return Event{
		Type:      EventHeartbeat,
		RequestID: requestID,
		Payload: map[string]any{
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		},
	}
}

// NewProgressEvent builds a progress event for the given step. pct is clamped
// to 0..100.
func NewProgressEvent(requestID, step string, pct int, message string) Event {
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	return Event{
		Type:      EventProgress,
		RequestID: requestID,
		Payload: map[string]any{
			"step":      step,
			"progress":  pct,
			"message":   message,
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		},
	}
}

// NewPartialEvent builds an intermediate-result event.
func NewPartialEvent(requestID, partialType string, content any) Event {
	return Event{
		Type:      EventPartial,
		RequestID: requestID,
		Payload: map[string]any{
			"type":    partialType,
			"content": content,
		},
	}
}

// NewWarningEvent builds a non-fatal degradation notice.
func NewWarningEvent(requestID, message, code string) Event {
	return Event{
		Type:      EventWarning,
		RequestID: requestID,
		Payload: map[string]any{
			"message":   message,
			"code":      code,
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		},
	}
}

// NewErrorEvent builds a terminal failure event.
func NewErrorEvent(requestID, errMsg, errType, step string) Event {
	return Event{
		Type:      EventError,
		RequestID: requestID,
		Payload: map[string]any{
			"error":      errMsg,
			"error_type": errType,
			"step":       step,
			"timestamp":  time.Now().UTC().Format(time.RFC3339),
		},
	}
}

// NewCompleteEvent builds the terminal success event from an arbitrary
// payload assembled by the orchestrator.
func NewCompleteEvent(requestID string, payload map[string]any) Event {
	if payload == nil {
		payload = map[string]any{}
	}
	payload["success"] = true
	return Event{
		Type:      EventComplete,
		RequestID: requestID,
		Payload:   payload,
	}
}
