// Fotofable - Contextual Photo Captioning and Duplicate Detection
// Copyright 2026 Marek K. (marekvk)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/marekvk/fotofable

package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/marekvk/fotofable/internal/events"
	"github.com/marekvk/fotofable/internal/logging"
	"github.com/marekvk/fotofable/internal/models"
	"github.com/marekvk/fotofable/internal/pipeline"
	"github.com/marekvk/fotofable/internal/requestcache"
	"github.com/marekvk/fotofable/internal/stream"
	"github.com/marekvk/fotofable/internal/validation"
)

// GenerateCaption handles POST /api/ai/generate-caption (synchronous).
func (h *Handler) GenerateCaption(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeCaptionRequest(w, r)
	if !ok {
		return
	}
	if !h.admit(w) {
		return
	}
	defer h.sem.Release(1)

	snapshot := h.Store.Snapshot()
	language := snapshot.Normalize(req.Language)
	style := req.Style
	if style == "" {
		style = "creative"
	}

	key := requestcache.CaptionKey(req.AssetID, req.Latitude, req.Longitude, language, style)
	if result, hit := h.cachedCaption(key); hit {
		writeJSON(w, http.StatusOK, result)
		return
	}

	path, err := h.Images.Materialize(r.Context(), req.AssetID, req.ImageBase64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "image processing failed: "+err.Error(), CodeImageProcessingError)
		return
	}
	defer h.Images.Release(path)

	requestID := requestIDOr(req.RequestID)
	result, _ := h.generateCaption(r.Context(), key, requestID, pipeline.Request{
		RequestID:       requestID,
		AssetID:         req.AssetID,
		ImagePath:       path,
		Latitude:        req.Latitude,
		Longitude:       req.Longitude,
		Language:        language,
		Style:           style,
		IncludeHashtags: true,
	}, stream.NopEmitter{})
	writeJSON(w, http.StatusOK, result)
}

// GenerateCaptionAsync handles POST /api/ai/generate-caption-async. The
// worker streams progress through the hub; admission is charged up front so
// the caller learns about saturation synchronously.
func (h *Handler) GenerateCaptionAsync(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeCaptionRequest(w, r)
	if !ok {
		return
	}
	if !h.admit(w) {
		return
	}

	requestID := requestIDOr(req.RequestID)
	h.Hub.CreateConnection(requestID)

	go h.runCaptionWorker(requestID, req)

	writeJSON(w, http.StatusOK, models.AsyncAccepted{
		RequestID: requestID,
		SSEURL:    h.sseURL(r, "/api/ai/generate-caption-stream/"+requestID),
	})
}

// runCaptionWorker executes one async caption request to completion. The
// request context is gone by now; the worker runs on its own clock and the
// terminal event lands in the hub queue whether or not a reader is attached.
func (h *Handler) runCaptionWorker(requestID string, req models.CaptionRequest) {
	defer h.sem.Release(1)
	ctx := context.Background()
	emit := stream.NewHubEmitter(h.Hub, requestID)

	snapshot := h.Store.Snapshot()
	language := snapshot.Normalize(req.Language)
	style := req.Style
	if style == "" {
		style = "creative"
	}

	key := requestcache.CaptionKey(req.AssetID, req.Latitude, req.Longitude, language, style)
	if result, hit := h.cachedCaption(key); hit {
		emit.Connected("caption generation started")
		emit.Complete(cachedCaptionPayload(requestID, req.AssetID, result))
		return
	}

	path, err := h.Images.Materialize(ctx, req.AssetID, req.ImageBase64)
	if err != nil {
		logging.Warn().Err(err).Str("request_id", requestID).Msg("Async caption image materialization failed")
		emit.Error("image processing failed: "+err.Error(), models.ErrTypeUnknown, models.StepPreparation)
		return
	}
	defer h.Images.Release(path)

	result, ran := h.generateCaption(ctx, key, requestID, pipeline.Request{
		RequestID:       requestID,
		AssetID:         req.AssetID,
		ImagePath:       path,
		Latitude:        req.Latitude,
		Longitude:       req.Longitude,
		Language:        language,
		Style:           style,
		IncludeHashtags: true,
	}, emit)
	if !ran {
		// Joined a concurrent identical run: its events went to the other
		// stream, so this one still needs its terminal event.
		emit.Connected("caption generation started")
		emit.Complete(cachedCaptionPayload(requestID, req.AssetID, result))
	}
}

// CaptionStream handles GET /api/ai/generate-caption-stream/{requestID}.
func (h *Handler) CaptionStream(w http.ResponseWriter, r *http.Request) {
	requestID := chi.URLParam(r, "requestID")
	conn := h.Hub.EnsureConnection(requestID)
	h.Hub.ServeSSE(w, r, conn)
}

// StreamWS handles GET /api/stream/ws/{requestID}: the WebSocket mirror of
// the event stream, one reader per request id.
func (h *Handler) StreamWS(w http.ResponseWriter, r *http.Request) {
	requestID := chi.URLParam(r, "requestID")
	conn := h.Hub.EnsureConnection(requestID)
	h.Hub.ServeWS(w, r, conn)
}

// RegenerateFinal handles POST /api/ai/regenerate-final: the caption stage
// only, from caller-edited contexts. Never touches the vision model.
func (h *Handler) RegenerateFinal(w http.ResponseWriter, r *http.Request) {
	var req models.RegenerateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if verr := validation.ValidateStruct(&req); verr != nil {
		apiErr := verr.ToAPIError()
		writeError(w, http.StatusBadRequest, apiErr.Message, apiErr.Code)
		return
	}
	if !h.admit(w) {
		return
	}
	defer h.sem.Release(1)

	result := h.Captioner.RegenerateFinal(r.Context(), pipeline.RegenerateRequest{
		ImageDescription:   req.ImageDescription,
		GeoContext:         req.GeoContext,
		CulturalEnrichment: req.CulturalEnrichment,
		TravelEnrichment:   req.TravelEnrichment,
		Language:           req.Language,
		Style:              req.Style,
	})
	if result.Caption == "" {
		writeError(w, http.StatusInternalServerError, "caption regeneration produced nothing", CodeRegenerationError)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// AIConfig handles GET /api/ai/config.
func (h *Handler) AIConfig(w http.ResponseWriter, _ *http.Request) {
	snapshot := h.Store.Snapshot()
	writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"languages": snapshot.Languages,
		"styles":    snapshot.Styles,
		"models":    snapshot.Models,
	})
}

// AIStats handles GET /api/ai/stats.
func (h *Handler) AIStats(w http.ResponseWriter, r *http.Request) {
	stats := map[string]any{
		"success":        true,
		"uptime_seconds": h.uptime(),
		"request_cache":  h.Cache.Stats(),
		"geo_cache":      h.Resolver.CacheStats(),
		"stream":         h.Hub.Stats(),
		"duplicates":     h.Duplicates.Status(),
	}
	if imports, err := h.Importer.Status(r.Context()); err == nil {
		stats["imports"] = imports
	}
	if h.DB != nil {
		if counts, err := h.DB.RecordCounts(r.Context()); err == nil {
			stats["database"] = counts
		}
	}
	writeJSON(w, http.StatusOK, stats)
}

// ClearCache handles POST /api/ai/clear-cache: drops the request cache, the
// resolver cache, the embedding memory tier and aged temp files.
func (h *Handler) ClearCache(w http.ResponseWriter, _ *http.Request) {
	captionEntries := h.Cache.Len()
	h.Cache.Clear()
	h.Resolver.ClearCache()
	h.Duplicates.ClearCache()
	tempFiles := h.Images.Clear()

	writeJSON(w, http.StatusOK, map[string]any{
		"success":                true,
		"caption_cache_cleared":  captionEntries,
		"temp_files_removed":     tempFiles,
		"geo_cache_cleared":      true,
		"embedding_tier_cleared": true,
	})
}

// ReloadConfig handles POST /api/ai/reload-config: hot-reload of the prompt
// configuration. A broken file leaves the previous snapshot serving.
func (h *Handler) ReloadConfig(w http.ResponseWriter, _ *http.Request) {
	if err := h.Store.Reload(); err != nil {
		writeError(w, http.StatusInternalServerError, "config reload failed: "+err.Error(), CodeInternalError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "prompt configuration reloaded",
	})
}

// decodeCaptionRequest decodes and validates the shared caption body.
func (h *Handler) decodeCaptionRequest(w http.ResponseWriter, r *http.Request) (models.CaptionRequest, bool) {
	var req models.CaptionRequest
	if !decodeJSON(w, r, &req) {
		return req, false
	}
	if verr := validation.ValidateStruct(&req); verr != nil {
		apiErr := verr.ToAPIError()
		writeError(w, http.StatusBadRequest, apiErr.Message, apiErr.Code)
		return req, false
	}
	if (req.Latitude == nil) != (req.Longitude == nil) {
		writeError(w, http.StatusBadRequest,
			"latitude and longitude must be provided together", CodeInvalidCoordinates)
		return req, false
	}
	return req, true
}

// uncacheable carries a degraded result through the coalescing error path,
// so concurrent identical callers still receive it without it entering the
// cache.
type uncacheable struct {
	result *models.CaptionResult
}

func (u *uncacheable) Error() string { return "degraded caption result" }

// cachedCaption looks up a prior result under the request fingerprint.
func (h *Handler) cachedCaption(key string) (*models.CaptionResult, bool) {
	v, hit := h.Cache.Get(key)
	if !hit {
		return nil, false
	}
	result, ok := v.(*models.CaptionResult)
	return result, ok
}

// generateCaption runs the pipeline behind the request cache: a fingerprint
// hit returns immediately, concurrent identical requests collapse to one
// pipeline run, successful results are cached and degraded ones pass through
// uncached. ran reports whether this call executed the pipeline itself; when
// false the result came from the cache or from another caller's run.
func (h *Handler) generateCaption(ctx context.Context, key, requestID string, preq pipeline.Request, emit stream.Emitter) (result *models.CaptionResult, ran bool) {
	v, err := h.Cache.Do(key, func() (any, error) {
		ran = true
		out := h.Captioner.Generate(ctx, preq, emit)
		h.publishCaption(requestID, preq.AssetID, out)
		if out.Degraded() {
			return nil, &uncacheable{result: out}
		}
		return out, nil
	})
	if err != nil {
		var unc *uncacheable
		if errors.As(err, &unc) {
			return unc.result, ran
		}
		return nil, ran
	}
	return v.(*models.CaptionResult), ran
}

// cachedCaptionPayload shapes the terminal event for results served without
// a pipeline run of their own.
func cachedCaptionPayload(requestID, assetID string, result *models.CaptionResult) map[string]any {
	return map[string]any{
		"success":          true,
		"cached":           true,
		"caption":          result.Caption,
		"hashtags":         result.Hashtags,
		"confidence_score": result.ConfidenceScore,
		"language":         result.Language,
		"style":            result.Style,
		"processing_time":  result.ProcessingSecs,
		"metadata": map[string]any{
			"request_id":  requestID,
			"asset_id":    assetID,
			"timestamp":   time.Now().UTC().Format(time.RFC3339),
			"models_used": result.ModelsUsed,
		},
		"enrichments": result.Enrichments,
	}
}

// publishCaption emits the lifecycle event for a completed pipeline run.
func (h *Handler) publishCaption(requestID, assetID string, result *models.CaptionResult) {
	h.Events.PublishCaptionCompleted(events.CaptionCompleted{
		RequestID:       requestID,
		AssetID:         assetID,
		Language:        result.Language,
		Style:           result.Style,
		ConfidenceScore: result.ConfidenceScore,
		Degraded:        result.Degraded(),
		ProcessingSecs:  result.ProcessingSecs,
		Timestamp:       time.Now().UTC(),
	})
}

func requestIDOr(requestID string) string {
	if requestID != "" {
		return requestID
	}
	return uuid.NewString()
}
