// Fotofable - Contextual Photo Captioning and Duplicate Detection
// Copyright 2026 Marek K. (marekvk)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/marekvk/fotofable

package api

import (
	"io"
	"net/http"

	"github.com/goccy/go-json"

	"github.com/marekvk/fotofable/internal/logging"
)

// maxBodySize caps request bodies; inline base64 images dominate the budget.
const maxBodySize = 16 << 20

// Error codes of the flat error shape {success:false, error, code}.
const (
	CodeInvalidJSON          = "INVALID_JSON"
	CodeInvalidCoordinates   = "INVALID_COORDINATES"
	CodeTooManyRequests      = "TOO_MANY_REQUESTS"
	CodeImageProcessingError = "IMAGE_PROCESSING_ERROR"
	CodeInternalError        = "INTERNAL_ERROR"
	CodeRegenerationError    = "REGENERATION_ERROR"
	CodeAsyncStartError      = "ASYNC_START_ERROR"
	CodeNotFound             = "NOT_FOUND"
	CodeInvalidAssetCount    = "INVALID_ASSET_COUNT"
	CodeProxyUnavailable     = "PROXY_UNAVAILABLE"
)

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logging.Debug().Err(err).Msg("Response encode failed")
	}
}

func writeError(w http.ResponseWriter, status int, message, code string) {
	writeJSON(w, status, map[string]any{
		"success": false,
		"error":   message,
		"code":    code,
	})
}

// decodeJSON reads and unmarshals the request body. A false return means the
// error response was already written.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read request body", CodeInvalidJSON)
		return false
	}
	if len(body) == 0 {
		writeError(w, http.StatusBadRequest, "request body is required", CodeInvalidJSON)
		return false
	}
	if err := json.Unmarshal(body, dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error(), CodeInvalidJSON)
		return false
	}
	return true
}
