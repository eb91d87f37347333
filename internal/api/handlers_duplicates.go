// Fotofable - Contextual Photo Captioning and Duplicate Detection
// Copyright 2026 Marek K. (marekvk)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/marekvk/fotofable

package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/marekvk/fotofable/internal/events"
	"github.com/marekvk/fotofable/internal/logging"
	"github.com/marekvk/fotofable/internal/models"
	"github.com/marekvk/fotofable/internal/stream"
	"github.com/marekvk/fotofable/internal/validation"
)

// DuplicatesStatus handles GET /api/duplicates/status.
func (h *Handler) DuplicatesStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.Duplicates.Status())
}

// FindSimilar handles POST /api/duplicates/find-similar (synchronous, small
// batches only). An unavailable embedding model degrades to empty groups
// rather than an error.
func (h *Handler) FindSimilar(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeDuplicateRequest(w, r)
	if !ok {
		return
	}
	if max := h.Duplicates.MaxSyncAssets(); len(req.AssetIDs) > max {
		writeError(w, http.StatusBadRequest,
			fmt.Sprintf("synchronous analysis accepts at most %d assets, got %d; use the async endpoint", max, len(req.AssetIDs)),
			CodeInvalidAssetCount)
		return
	}
	if !h.admit(w) {
		return
	}
	defer h.sem.Release(1)

	images, cleanup, err := h.collectImages(r.Context(), req.AssetIDs)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), CodeImageProcessingError)
		return
	}
	defer cleanup()

	start := time.Now()
	groups, err := h.Duplicates.FindDuplicates(r.Context(), images, req.Threshold, timeWindow(req), stream.NopEmitter{})
	if err != nil {
		logging.Warn().Err(err).Msg("Sync duplicate analysis degraded to empty result")
		writeJSON(w, http.StatusOK, map[string]any{
			"success":      true,
			"groups":       []models.DuplicateGroup{},
			"group_count":  0,
			"total_images": len(images),
			"warning":      "embedding model unavailable",
		})
		return
	}

	h.finishDuplicates(requestIDOr(req.RequestID), len(images), len(groups), req.Threshold, time.Since(start))
	writeJSON(w, http.StatusOK, map[string]any{
		"success":      true,
		"groups":       groups,
		"group_count":  len(groups),
		"total_images": len(images),
	})
}

// FindSimilarAsync handles POST /api/duplicates/find-similar-async.
func (h *Handler) FindSimilarAsync(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeDuplicateRequest(w, r)
	if !ok {
		return
	}
	accepted := h.startDuplicateWorker(w, r, req)
	if accepted == nil {
		return
	}
	writeJSON(w, http.StatusOK, *accepted)
}

// FindSimilarStream handles GET /api/duplicates/find-similar-stream/{requestID}.
func (h *Handler) FindSimilarStream(w http.ResponseWriter, r *http.Request) {
	requestID := chi.URLParam(r, "requestID")
	conn := h.Hub.EnsureConnection(requestID)
	h.Hub.ServeSSE(w, r, conn)
}

// AnalyzeAlbum handles POST /api/duplicates/analyze-album/{albumID}: resolve
// the album's asset ids through the photo proxy, then run the async path.
func (h *Handler) AnalyzeAlbum(w http.ResponseWriter, r *http.Request) {
	albumID := chi.URLParam(r, "albumID")
	var req models.DuplicateRequest
	// The body only carries tuning knobs here; it may be absent entirely.
	if r.ContentLength > 0 && !decodeJSON(w, r, &req) {
		return
	}

	ids, err := h.Proxy.AlbumAssetIDs(r.Context(), albumID)
	if err != nil {
		writeError(w, http.StatusBadGateway, "album lookup failed: "+err.Error(), CodeProxyUnavailable)
		return
	}
	if len(ids) < 2 {
		writeError(w, http.StatusBadRequest,
			fmt.Sprintf("album %s has %d assets; at least 2 required", albumID, len(ids)),
			CodeInvalidAssetCount)
		return
	}
	req.AssetIDs = ids

	accepted := h.startDuplicateWorker(w, r, req)
	if accepted == nil {
		return
	}
	writeJSON(w, http.StatusOK, *accepted)
}

// startDuplicateWorker admits, registers the stream connection and spawns
// the analysis worker. A nil return means the error was already written.
func (h *Handler) startDuplicateWorker(w http.ResponseWriter, r *http.Request, req models.DuplicateRequest) *models.AsyncAccepted {
	if !h.admit(w) {
		return nil
	}
	requestID := requestIDOr(req.RequestID)
	h.Hub.CreateConnection(requestID)

	go func() {
		defer h.sem.Release(1)
		ctx := context.Background()
		emit := stream.NewHubEmitter(h.Hub, requestID)

		images, cleanup, err := h.collectImages(ctx, req.AssetIDs)
		if err != nil {
			logging.Warn().Err(err).Str("request_id", requestID).Msg("Duplicate image collection failed")
			emit.Error("image collection failed: "+err.Error(), models.ErrTypeUnknown, models.StepPreparation)
			return
		}
		defer cleanup()

		start := time.Now()
		groups, err := h.Duplicates.FindDuplicates(ctx, images, req.Threshold, timeWindow(req), emit)
		if err != nil {
			// The detector already emitted its terminal event: a degraded
			// complete for an unavailable model, an error otherwise.
			return
		}
		h.finishDuplicates(requestID, len(images), len(groups), req.Threshold, time.Since(start))
	}()

	return &models.AsyncAccepted{
		RequestID: requestID,
		SSEURL:    h.sseURL(r, "/api/duplicates/find-similar-stream/"+requestID),
	}
}

// collectImages materializes every asset through the photo proxy: preview
// bytes into the temp store, capture metadata onto the ImageRef. The cleanup
// releases all temp files.
func (h *Handler) collectImages(ctx context.Context, assetIDs []string) ([]models.ImageRef, func(), error) {
	if !h.Proxy.Configured() {
		return nil, nil, fmt.Errorf("photo proxy is not configured")
	}

	images := make([]models.ImageRef, 0, len(assetIDs))
	paths := make([]string, 0, len(assetIDs))
	cleanup := func() {
		for _, p := range paths {
			h.Images.Release(p)
		}
	}

	for _, assetID := range assetIDs {
		data, err := h.Proxy.Thumbnail(ctx, assetID)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("fetch asset %s: %w", assetID, err)
		}
		path, err := h.Images.Write(assetID, data)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("store asset %s: %w", assetID, err)
		}
		paths = append(paths, path)

		ref := models.ImageRef{AssetID: assetID, Path: path, FileSize: int64(len(data))}
		if meta, err := h.Proxy.AssetMetadata(ctx, assetID); err == nil {
			ref.Filename = meta.Filename
			if meta.ExifInfo.FileSizeInByte > 0 {
				ref.FileSize = meta.ExifInfo.FileSizeInByte
			}
			if ts, err := time.Parse(time.RFC3339, meta.FileCreatedAt); err == nil {
				ref.Timestamp = ts
			}
		}
		images = append(images, ref)
	}
	return images, cleanup, nil
}

func (h *Handler) decodeDuplicateRequest(w http.ResponseWriter, r *http.Request) (models.DuplicateRequest, bool) {
	var req models.DuplicateRequest
	if !decodeJSON(w, r, &req) {
		return req, false
	}
	if verr := validation.ValidateStruct(&req); verr != nil {
		apiErr := verr.ToAPIError()
		writeError(w, http.StatusBadRequest, apiErr.Message, apiErr.Code)
		return req, false
	}
	return req, true
}

func (h *Handler) finishDuplicates(requestID string, total, groupCount int, threshold float64, elapsed time.Duration) {
	h.Events.PublishDuplicatesCompleted(events.DuplicatesCompleted{
		RequestID:      requestID,
		TotalImages:    total,
		GroupCount:     groupCount,
		Threshold:      threshold,
		ProcessingSecs: elapsed.Seconds(),
		Timestamp:      time.Now().UTC(),
	})
}

func timeWindow(req models.DuplicateRequest) float64 {
	if req.TimeWindowHours == nil {
		return 0
	}
	return *req.TimeWindowHours
}
