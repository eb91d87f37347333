// Fotofable - Contextual Photo Captioning and Duplicate Detection
// Copyright 2026 Marek K. (marekvk)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/marekvk/fotofable

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/marekvk/fotofable/internal/geo"
	"github.com/marekvk/fotofable/internal/logging"
	"github.com/marekvk/fotofable/internal/metrics"
	"github.com/marekvk/fotofable/internal/models"
	"github.com/marekvk/fotofable/internal/prompts"
	"github.com/marekvk/fotofable/internal/stream"
)

// maxConfidence caps the weighted caption confidence; a generated caption is
// never reported as certain.
const maxConfidence = 0.95

// LocationResolver is the geographic lookup the orchestrator consumes.
// Implemented by geo.Resolver.
type LocationResolver interface {
	Lookup(ctx context.Context, lat, lon, radiusKm float64) (*models.GeoLocation, error)
}

// Request is one caption generation job.
type Request struct {
	RequestID       string
	AssetID         string
	ImagePath       string
	Latitude        *float64
	Longitude       *float64
	Language        string
	Style           string
	IncludeHashtags bool
}

// HasCoordinates reports whether the request carries GPS data.
func (r Request) HasCoordinates() bool {
	return r.Latitude != nil && r.Longitude != nil
}

// RegenerateRequest re-runs only the caption stage over caller-edited
// contexts. The vision model is never invoked.
type RegenerateRequest struct {
	ImageDescription   string
	GeoContext         string
	CulturalEnrichment string
	TravelEnrichment   string
	Language           string
	Style              string
}

// Orchestrator drives the staged caption pipeline. It owns no transport:
// intermediate results leave only through the Emitter, the final result
// through the return value.
type Orchestrator struct {
	stages   *Stages
	resolver LocationResolver
	store    *prompts.Store
}

// NewOrchestrator wires the pipeline.
func NewOrchestrator(stages *Stages, resolver LocationResolver, store *prompts.Store) *Orchestrator {
	return &Orchestrator{stages: stages, resolver: resolver, store: store}
}

// Generate runs the full pipeline for one request. It never returns an
// error: stage failures degrade the result, and only orchestrator-internal
// faults (unreadable image, expired context) produce the fully degraded
// fallback result after an error event.
func (o *Orchestrator) Generate(ctx context.Context, req Request, emit stream.Emitter) *models.CaptionResult {
	start := time.Now()
	cfg := o.store.Snapshot()
	language := cfg.Normalize(req.Language)
	style := req.Style
	if style == "" {
		style = "creative"
	}

	result := &models.CaptionResult{
		Language:    language,
		Style:       style,
		AssetID:     req.AssetID,
		ModelsUsed:  make(map[string]string),
		Enrichments: make(map[string]string),
	}

	emit.Connected("caption generation started")
	emit.Progress(models.StepPreparation, 5, "Préparation de la demande")

	image, err := os.ReadFile(req.ImagePath)
	if err != nil {
		return o.fail(result, emit, start, fmt.Errorf("read image: %w", err), models.StepPreparation)
	}

	// Vision never fails; the degenerate description keeps the pipeline going.
	vision := o.stages.Vision(ctx, image, language)
	result.ModelsUsed["vision"] = vision.Model
	result.Enrichments["image_analysis"] = vision.Description
	result.StageTrace = append(result.StageTrace, models.StageOutput{
		Stage: models.StepImageAnalysis, Content: vision.Description, Model: vision.Model,
	})
	result.CompletedStages = append(result.CompletedStages, models.StepImageAnalysis)
	emit.Partial(models.PartialImageAnalysis, map[string]any{
		"description": vision.Description,
		"confidence":  vision.Confidence,
		"model":       vision.Model,
	})
	if vision.Model == "fallback" {
		result.Warnings = append(result.Warnings, "vision model unavailable")
	}

	var (
		loc *models.GeoLocation
		sum geo.Summary
	)
	if req.HasCoordinates() {
		emit.Progress(models.StepGeolocation, 35, "Géolocalisation en cours")
		loc, err = o.resolver.Lookup(ctx, *req.Latitude, *req.Longitude, 0)
		if err != nil {
			// Only invalid coordinates reach here; the resolver degrades
			// everything else internally.
			emit.Warning(err.Error(), models.WarnModelFallback)
			result.Warnings = append(result.Warnings, err.Error())
		} else {
			sum = geo.BuildSummary(loc)
			result.Enrichments["geo_context"] = sum.LocationBasic
			result.CompletedStages = append(result.CompletedStages, models.StepGeolocation)
			emit.Partial(models.PartialGeolocation, geolocationPayload(loc, sum, *req.Latitude, *req.Longitude))
		}
	}

	var travel TravelResult
	if sum.LocationBasic != "" {
		emit.Progress(models.StepTravelEnrichment, 50, "Enrichissement touristique")
		var ok bool
		travel, ok = o.stages.Travel(ctx, vision.Description, sum)
		if ok {
			result.ModelsUsed["travel"] = travel.Model
			result.Enrichments["travel_enrichment"] = travel.Text
			result.StageTrace = append(result.StageTrace, models.StageOutput{
				Stage: models.StepTravelEnrichment, Content: travel.Text, Model: travel.Model,
			})
			result.CompletedStages = append(result.CompletedStages, models.StepTravelEnrichment)
			emit.Partial(models.PartialTravelEnrichment, map[string]any{
				"text":  travel.Text,
				"model": travel.Model,
			})
		} else {
			emit.Warning("travel enrichment unavailable", models.WarnModelFallback)
			result.Warnings = append(result.Warnings, "travel enrichment unavailable")
		}
	}

	var cultural string
	if loc != nil && loc.ConfidenceScore > 0.5 && sum.CulturalContext != "" {
		emit.Progress(models.StepCulturalEnrichment, 60, "Enrichissement culturel")
		if text, ok := o.stages.Cultural(ctx, sum); ok {
			cultural = text
			result.ModelsUsed["cultural"] = cfg.ModelFor("cultural")
			result.Enrichments["cultural_enrichment"] = cultural
			result.StageTrace = append(result.StageTrace, models.StageOutput{
				Stage: models.StepCulturalEnrichment, Content: cultural,
			})
			result.CompletedStages = append(result.CompletedStages, models.StepCulturalEnrichment)
			emit.Partial(models.PartialCulturalEnrich, map[string]any{"text": cultural})
		}
	}

	bag := models.CaptionContext{
		ImageDescription:  vision.Description,
		LocationBasic:     sum.LocationBasic,
		LocationDetailed:  sum.LocationDetailed,
		CulturalContext:   sum.CulturalContext,
		NearbyAttractions: sum.NearbyAttractions,
		TravelEnrichment:  travel.Text,
		CulturalEnrich:    cultural,
		GeographicContext: sum.GeographicContext,
	}

	emit.Progress(models.StepCaptionGeneration, 70, "Génération de la légende")
	caption, degraded := o.stages.Caption(ctx, bag, language, style)
	result.Caption = caption
	result.ModelsUsed["caption"] = cfg.ModelFor("caption")
	if degraded {
		result.ModelsUsed["caption"] = "fallback"
		result.Warnings = append(result.Warnings, "caption generated from fallback")
	} else {
		result.CompletedStages = append(result.CompletedStages, models.StepCaptionGeneration)
	}
	emit.Partial(models.PartialRawCaption, map[string]any{"caption": caption})

	if req.IncludeHashtags {
		emit.Progress(models.StepHashtagGeneration, 85, "Génération des hashtags")
		result.Hashtags = o.stages.Hashtags(ctx, bag, language)
		result.CompletedStages = append(result.CompletedStages, models.StepHashtagGeneration)
		emit.Partial(models.PartialHashtags, map[string]any{"hashtags": result.Hashtags})
	}

	result.ConfidenceScore = confidence(vision.Confidence, loc != nil, travel.Text != "", caption)
	result.ProcessingTime = time.Since(start)
	result.ProcessingSecs = result.ProcessingTime.Seconds()

	status := "success"
	if degraded {
		status = "degraded"
	}
	metrics.RecordCaption(style, status, result.ProcessingTime, result.ConfidenceScore)

	emit.Complete(completePayload(req, result))
	logging.Info().Str("request_id", req.RequestID).Str("style", style).
		Float64("confidence", result.ConfidenceScore).
		Dur("elapsed", result.ProcessingTime).
		Msg("Caption generated")
	return result
}

// RegenerateFinal reruns the caption stage over edited contexts; no vision
// call, no geolocation.
func (o *Orchestrator) RegenerateFinal(ctx context.Context, req RegenerateRequest) *models.CaptionResult {
	start := time.Now()
	cfg := o.store.Snapshot()
	language := cfg.Normalize(req.Language)
	style := req.Style
	if style == "" {
		style = "creative"
	}

	bag := models.CaptionContext{
		ImageDescription:  req.ImageDescription,
		LocationBasic:     req.GeoContext,
		CulturalContext:   req.CulturalEnrichment,
		TravelEnrichment:  req.TravelEnrichment,
		CulturalEnrich:    req.CulturalEnrichment,
		GeographicContext: req.GeoContext,
	}

	caption, degraded := o.stages.Caption(ctx, bag, language, style)

	result := &models.CaptionResult{
		Caption:         caption,
		Language:        language,
		Style:           style,
		ConfidenceScore: confidence(0.8, req.GeoContext != "", req.TravelEnrichment != "", caption),
		ModelsUsed:      map[string]string{"caption": cfg.ModelFor("caption")},
	}
	if degraded {
		result.Style = "fallback"
		result.ModelsUsed["caption"] = "fallback"
	}
	result.ProcessingTime = time.Since(start)
	result.ProcessingSecs = result.ProcessingTime.Seconds()

	status := "success"
	if degraded {
		status = "degraded"
	}
	metrics.RecordCaption(style, status, result.ProcessingTime, result.ConfidenceScore)
	return result
}

// fail finishes the request on an orchestrator-internal fault: an error
// event, then the fully degraded fallback result.
func (o *Orchestrator) fail(result *models.CaptionResult, emit stream.Emitter, start time.Time, err error, step string) *models.CaptionResult {
	errType := models.ErrTypeUnknown
	if errors.Is(err, context.DeadlineExceeded) {
		errType = models.ErrTypeTimeout
	}
	logging.Error().Err(err).Str("step", step).Msg("Caption pipeline fault")
	emit.Error(err.Error(), errType, step)

	cfg := o.store.Snapshot()
	result.Caption = cfg.FallbackCaption(result.Language, "generic_error")
	result.Style = "fallback"
	result.ConfidenceScore = 0.1
	result.Warnings = append(result.Warnings, err.Error())
	result.ProcessingTime = time.Since(start)
	result.ProcessingSecs = result.ProcessingTime.Seconds()

	metrics.RecordCaption(result.Style, "error", result.ProcessingTime, result.ConfidenceScore)
	return result
}

// confidence computes the weighted caption confidence:
// 0.3·vision + 0.3·geo + 0.2·travel + 0.2·word-band, capped at 0.95.
func confidence(visionConfidence float64, hasGeo, hasTravel bool, caption string) float64 {
	score := visionConfidence * 0.3
	if hasGeo {
		score += 0.3
	}
	if hasTravel {
		score += 0.2
	}
	words := len(strings.Fields(caption))
	switch {
	case words >= 40 && words <= 120:
		score += 0.2
	case words >= 20 && words < 40:
		score += 0.1
	}
	if score > maxConfidence {
		score = maxConfidence
	}
	return score
}

// geolocationPayload shapes the geolocation partial event.
func geolocationPayload(loc *models.GeoLocation, sum geo.Summary, lat, lon float64) map[string]any {
	nearby := make([]string, 0, len(loc.OSMPOIs)+len(loc.NearbyPOIs))
	for _, p := range loc.OSMPOIs {
		nearby = append(nearby, p.Name)
	}
	for _, p := range loc.NearbyPOIs {
		nearby = append(nearby, p.Name)
	}
	cultural := make([]string, 0, len(loc.UnescoSites)+len(loc.CulturalSites))
	for _, s := range loc.UnescoSites {
		cultural = append(cultural, s.Name)
	}
	for _, s := range loc.CulturalSites {
		cultural = append(cultural, s.Name)
	}

	return map[string]any{
		"location":       sum.LocationBasic,
		"coordinates":    []float64{lat, lon},
		"confidence":     loc.ConfidenceScore,
		"nearby_places":  nearby,
		"cultural_sites": cultural,
		"address":        loc.FormattedAddress,
		"city":           loc.City,
		"country":        loc.Country,
		"stats": map[string]any{
			"unesco_sites":   len(loc.UnescoSites),
			"cultural_sites": len(loc.CulturalSites),
			"osm_pois":       len(loc.OSMPOIs),
			"major_cities":   len(loc.MajorCities),
			"data_sources":   loc.DataSources,
		},
	}
}

// completePayload shapes the terminal complete event.
func completePayload(req Request, result *models.CaptionResult) map[string]any {
	return map[string]any{
		"success":          true,
		"caption":          result.Caption,
		"hashtags":         result.Hashtags,
		"confidence_score": result.ConfidenceScore,
		"language":         result.Language,
		"style":            result.Style,
		"processing_time":  result.ProcessingSecs,
		"metadata": map[string]any{
			"request_id":  req.RequestID,
			"asset_id":    req.AssetID,
			"timestamp":   time.Now().UTC().Format(time.RFC3339),
			"models_used": result.ModelsUsed,
		},
		"enrichments": result.Enrichments,
	}
}
