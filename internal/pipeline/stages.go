// Fotofable - Contextual Photo Captioning and Duplicate Detection
// Copyright 2026 Marek K. (marekvk)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/marekvk/fotofable

package pipeline

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/marekvk/fotofable/internal/geo"
	"github.com/marekvk/fotofable/internal/logging"
	"github.com/marekvk/fotofable/internal/metrics"
	"github.com/marekvk/fotofable/internal/modelclient"
	"github.com/marekvk/fotofable/internal/models"
	"github.com/marekvk/fotofable/internal/prompts"
)

// Acceptance thresholds for the enrichment stages. Shorter answers are
// treated as a weak failure: dropped, not errored.
const (
	minTravelLen   = 30
	minCulturalLen = 20
)

// shortCulturalContext switches the cultural stage to the short prompt when
// the geo summary carries less context than this.
const shortCulturalContext = 50

// fallbackHashtagCap limits the deterministic hashtag fallback.
const fallbackHashtagCap = 8

// VisionResult is the vision stage output. A degenerate result (confidence
// 0.3, model "fallback") stands in when the vision model fails; the pipeline
// continues on it.
type VisionResult struct {
	Description string  `json:"description"`
	Confidence  float64 `json:"confidence"`
	Model       string  `json:"model"`
}

// TravelResult is the travel stage output when the stage accepted an answer.
type TravelResult struct {
	Text  string `json:"text"`
	Model string `json:"model"`
}

// Stages runs the individual caption pipeline stages against the model host.
// Each stage degrades rather than fails: the zero/fallback output of any
// stage is a valid input for the next.
type Stages struct {
	client modelclient.Interface
	store  *prompts.Store
}

// NewStages wires the stage runner.
func NewStages(client modelclient.Interface, store *prompts.Store) *Stages {
	return &Stages{client: client, store: store}
}

// Vision describes the image. Any model error yields the degenerate
// fallback result so downstream stages still have a description to work
// with.
func (s *Stages) Vision(ctx context.Context, image []byte, language string) VisionResult {
	start := time.Now()
	defer func() { metrics.RecordStage("vision", time.Since(start)) }()

	cfg := s.store.Snapshot()
	sp, ok := cfg.PromptFor("vision", "")
	model := cfg.ModelFor("vision")
	if !ok || model == "" {
		logging.Warn().Msg("Vision stage unconfigured, using fallback description")
		return visionFallback()
	}

	prompt := sp.Main.Render(map[string]string{"language": language})
	text, err := s.client.GenerateWithImage(ctx, model, prompt, image, paramsOf(sp.Main))
	if err != nil {
		logging.Warn().Err(err).Str("model", model).Msg("Vision stage failed, using fallback description")
		return visionFallback()
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return visionFallback()
	}
	return VisionResult{Description: text, Confidence: 0.8, Model: model}
}

func visionFallback() VisionResult {
	return VisionResult{Description: "Image analysée", Confidence: 0.3, Model: "fallback"}
}

// Travel produces touristic enrichment from the image description and geo
// summary. The primary text model is tried first; Unavailable/Timeout
// engage the secondary model with the fallback prompt. Answers of 30 chars
// or less are dropped.
func (s *Stages) Travel(ctx context.Context, description string, sum geo.Summary) (TravelResult, bool) {
	start := time.Now()
	defer func() { metrics.RecordStage("travel", time.Since(start)) }()

	cfg := s.store.Snapshot()
	sp, ok := cfg.PromptFor("travel", "")
	if !ok {
		return TravelResult{}, false
	}
	values := map[string]string{
		"image_description":  description,
		"location_basic":     sum.LocationBasic,
		"cultural_context":   sum.CulturalContext,
		"nearby_attractions": sum.NearbyAttractions,
	}

	primary := cfg.ModelFor("travel")
	if primary != "" {
		text, err := s.client.GenerateText(ctx, primary, sp.Main.Render(values), paramsOf(sp.Main))
		if err == nil {
			if text = strings.TrimSpace(text); len(text) > minTravelLen {
				return TravelResult{Text: text, Model: primary}, true
			}
			return TravelResult{}, false
		}
		if !errors.Is(err, modelclient.ErrUnavailable) && !errors.Is(err, modelclient.ErrTimeout) {
			logging.Warn().Err(err).Str("model", primary).Msg("Travel stage failed")
			return TravelResult{}, false
		}
		logging.Warn().Err(err).Str("model", primary).Msg("Primary travel model down, trying fallback")
	}

	secondary := cfg.ModelFor("travel_fallback")
	if secondary == "" {
		return TravelResult{}, false
	}
	text, err := s.client.GenerateText(ctx, secondary, sp.Fallback.Render(values), paramsOf(sp.Fallback))
	if err != nil {
		logging.Warn().Err(err).Str("model", secondary).Msg("Fallback travel model failed")
		return TravelResult{}, false
	}
	if text = strings.TrimSpace(text); len(text) > minTravelLen {
		return TravelResult{Text: text, Model: secondary}, true
	}
	return TravelResult{}, false
}

// Cultural expands the cultural context of the location. The short prompt
// serves thin contexts; answers of 20 chars or less are dropped.
func (s *Stages) Cultural(ctx context.Context, sum geo.Summary) (string, bool) {
	start := time.Now()
	defer func() { metrics.RecordStage("cultural", time.Since(start)) }()

	cfg := s.store.Snapshot()
	sp, ok := cfg.PromptFor("cultural", "")
	model := cfg.ModelFor("cultural")
	if !ok || model == "" {
		return "", false
	}

	tmpl := sp.Main
	if len(sum.CulturalContext) < shortCulturalContext {
		tmpl = sp.Short
	}
	prompt := tmpl.Render(map[string]string{
		"location_basic":  sum.LocationBasic,
		"current_context": sum.CulturalContext,
	})

	text, err := s.client.GenerateText(ctx, model, prompt, paramsOf(tmpl))
	if err != nil {
		logging.Warn().Err(err).Str("model", model).Msg("Cultural stage failed")
		return "", false
	}
	if text = strings.TrimSpace(text); len(text) > minCulturalLen {
		return text, true
	}
	return "", false
}

// Caption renders the style template over the merged context bag and
// generates the final caption. An empty or failed generation falls back to
// the language-specific generic-error caption; the second return value
// reports that degradation.
func (s *Stages) Caption(ctx context.Context, bag models.CaptionContext, language, style string) (string, bool) {
	start := time.Now()
	defer func() { metrics.RecordStage("caption", time.Since(start)) }()

	cfg := s.store.Snapshot()
	sp, ok := cfg.PromptFor("caption", style)
	model := cfg.ModelFor("caption")
	if !ok || model == "" {
		return cfg.FallbackCaption(language, "generic_error"), true
	}

	prompt := sp.Main.Render(contextValues(bag, language))
	text, err := s.client.GenerateText(ctx, model, prompt, paramsOf(sp.Main))
	if err != nil {
		logging.Warn().Err(err).Str("model", model).Str("style", style).Msg("Caption stage failed, using fallback caption")
		return cfg.FallbackCaption(language, "generic_error"), true
	}

	caption := cfg.CleanCaption(text)
	if caption == "" {
		return cfg.FallbackCaption(language, "generic_error"), true
	}
	return caption, false
}

// Hashtags generates social hashtags from the context bag, keeping only
// #-prefixed tokens, capped at 10. Model failure yields a deterministic
// location-derived fallback set capped at 8.
func (s *Stages) Hashtags(ctx context.Context, bag models.CaptionContext, language string) []string {
	start := time.Now()
	defer func() { metrics.RecordStage("hashtags", time.Since(start)) }()

	cfg := s.store.Snapshot()
	sp, ok := cfg.PromptFor("hashtags", "")
	model := cfg.ModelFor("hashtags")
	if model == "" {
		model = cfg.ModelFor("caption")
	}
	if !ok || model == "" {
		return fallbackHashtags(bag)
	}

	text, err := s.client.GenerateText(ctx, model, sp.Main.Render(contextValues(bag, language)), paramsOf(sp.Main))
	if err != nil {
		logging.Warn().Err(err).Str("model", model).Msg("Hashtag stage failed, using deterministic fallback")
		return fallbackHashtags(bag)
	}

	var tags []string
	for _, token := range strings.Fields(text) {
		if strings.HasPrefix(token, "#") && len(token) > 1 {
			tags = append(tags, token)
			if len(tags) == 10 {
				break
			}
		}
	}
	if len(tags) == 0 {
		return fallbackHashtags(bag)
	}
	return tags
}

// fallbackHashtags derives hashtags from the location plus fixed travel
// constants, without a model call.
func fallbackHashtags(bag models.CaptionContext) []string {
	tags := make([]string, 0, fallbackHashtagCap)
	seen := make(map[string]struct{})

	add := func(tag string) {
		if tag == "" || len(tags) >= fallbackHashtagCap {
			return
		}
		if _, dup := seen[tag]; dup {
			return
		}
		seen[tag] = struct{}{}
		tags = append(tags, tag)
	}

	for _, part := range strings.Split(bag.LocationBasic, ",") {
		add(hashtagify(part))
	}
	for _, fixed := range []string{"#travel", "#photography", "#wanderlust", "#instatravel", "#explore"} {
		add(fixed)
	}
	return tags
}

// hashtagify lowercases a name and strips everything but letters and
// digits.
func hashtagify(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || (r >= 'à' && r <= 'ÿ') {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return ""
	}
	return "#" + b.String()
}

// contextValues flattens the context bag for template rendering. Every
// field is present, empty string when the stage contributed nothing.
func contextValues(bag models.CaptionContext, language string) map[string]string {
	return map[string]string{
		"image_description":   bag.ImageDescription,
		"location_basic":      bag.LocationBasic,
		"location_detailed":   bag.LocationDetailed,
		"cultural_context":    bag.CulturalContext,
		"nearby_attractions":  bag.NearbyAttractions,
		"travel_enrichment":   bag.TravelEnrichment,
		"cultural_enrichment": bag.CulturalEnrich,
		"geographic_context":  bag.GeographicContext,
		"language":            language,
	}
}

func paramsOf(t prompts.Template) modelclient.Params {
	return modelclient.Params{
		Temperature: t.Params.Temperature,
		MaxTokens:   t.Params.MaxTokens,
		TopP:        t.Params.TopP,
	}
}
