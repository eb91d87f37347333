// Fotofable - Contextual Photo Captioning and Duplicate Detection
// Copyright 2026 Marek K. (marekvk)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/marekvk/fotofable

package api

import (
	"context"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/marekvk/fotofable/internal/events"
	"github.com/marekvk/fotofable/internal/logging"
	"github.com/marekvk/fotofable/internal/models"
	"github.com/marekvk/fotofable/internal/stream"
)

var countryCodePattern = regexp.MustCompile(`^[A-Za-z]{2}$`)

// AdminListImports handles GET /api/admin/imports.
func (h *Handler) AdminListImports(w http.ResponseWriter, r *http.Request) {
	status, err := h.Importer.Status(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "import status unavailable: "+err.Error(), CodeInternalError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"running": status.Running,
		"history": status.History,
	})
}

// AdminTriggerImport handles POST /api/admin/imports/{countryCode}: a manual
// country import, streamed through the hub like any async job.
func (h *Handler) AdminTriggerImport(w http.ResponseWriter, r *http.Request) {
	code := strings.ToUpper(chi.URLParam(r, "countryCode"))
	if !countryCodePattern.MatchString(code) {
		writeError(w, http.StatusBadRequest, "countryCode must be a 2-letter ISO code", "INVALID_COUNTRY_CODE")
		return
	}

	requestID := "import-" + code
	h.Hub.CreateConnection(requestID)

	go func() {
		start := time.Now()
		emit := stream.NewHubEmitter(h.Hub, requestID)
		if err := h.Importer.ImportCountry(context.Background(), code, emit); err != nil {
			logging.Warn().Err(err).Str("country", code).Msg("Manual country import failed")
			return
		}
		h.Events.PublishImportCompleted(events.ImportCompleted{
			CountryCode:    code,
			ProcessingSecs: time.Since(start).Seconds(),
			Timestamp:      time.Now().UTC(),
		})
	}()

	writeJSON(w, http.StatusAccepted, models.AsyncAccepted{
		RequestID: requestID,
		SSEURL:    h.sseURL(r, "/api/ai/generate-caption-stream/"+requestID),
	})
}

// AdminDeleteImport handles DELETE /api/admin/imports/{countryCode}: unmark
// a country so the next sighting re-imports it. Imported rows stay; the
// importer's upserts reconcile them.
func (h *Handler) AdminDeleteImport(w http.ResponseWriter, r *http.Request) {
	code := strings.ToUpper(chi.URLParam(r, "countryCode"))
	if !countryCodePattern.MatchString(code) {
		writeError(w, http.StatusBadRequest, "countryCode must be a 2-letter ISO code", "INVALID_COUNTRY_CODE")
		return
	}
	if h.DB == nil {
		writeError(w, http.StatusInternalServerError, "database unavailable", CodeInternalError)
		return
	}

	removed, err := h.DB.DeleteCountryImport(r.Context(), code)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "delete failed: "+err.Error(), CodeInternalError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":      true,
		"country_code": code,
		"removed":      removed,
	})
}

type photoProxySettings struct {
	URL    string `json:"url"`
	APIKey string `json:"api_key"`
}

// AdminSetPhotoProxy handles PUT /api/admin/settings/photo-proxy. The key is
// encrypted at rest by the settings manager.
func (h *Handler) AdminSetPhotoProxy(w http.ResponseWriter, r *http.Request) {
	var req photoProxySettings
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.URL != "" && !strings.HasPrefix(req.URL, "http://") && !strings.HasPrefix(req.URL, "https://") {
		writeError(w, http.StatusBadRequest, "url must be http or https", "INVALID_URL")
		return
	}
	if err := h.Settings.SetPhotoProxy(req.URL, req.APIKey); err != nil {
		writeError(w, http.StatusInternalServerError, "settings update failed: "+err.Error(), CodeInternalError)
		return
	}
	logging.Info().Str("url", req.URL).Msg("Photo proxy settings updated")
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// AdminGetSettings handles GET /api/admin/settings with credentials masked.
func (h *Handler) AdminGetSettings(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"settings": h.Settings.Snapshot(),
	})
}
