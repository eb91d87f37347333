// Fotofable - Contextual Photo Captioning and Duplicate Detection
// Copyright 2026 Marek K. (marekvk)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/marekvk/fotofable

package importer

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/sync/singleflight"

	"github.com/marekvk/fotofable/internal/config"
	"github.com/marekvk/fotofable/internal/database"
	"github.com/marekvk/fotofable/internal/geoapi"
	"github.com/marekvk/fotofable/internal/logging"
	"github.com/marekvk/fotofable/internal/metrics"
	"github.com/marekvk/fotofable/internal/models"
	"github.com/marekvk/fotofable/internal/stream"
)

// Importer populates the spatial store one country at a time: GeoNames
// places, derived cultural sites, UNESCO heritage rows and Overpass POIs.
//
// Thread Safety: safe for concurrent use. Imports for the same country are
// single-flighted; different countries import in parallel (the store
// serializes writes per country internally).
type Importer struct {
	cfg       *config.ImporterConfig
	db        *database.DB
	nominatim *geoapi.NominatimClient
	overpass  *geoapi.OverpassClient
	client    *http.Client

	group singleflight.Group

	mu      sync.RWMutex
	running map[string]time.Time
}

// New creates a country importer over the given store and geo API clients.
func New(cfg *config.ImporterConfig, db *database.DB, nominatim *geoapi.NominatimClient, overpass *geoapi.OverpassClient) *Importer {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}
	return &Importer{
		cfg:       cfg,
		db:        db,
		nominatim: nominatim,
		overpass:  overpass,
		client:    &http.Client{Timeout: timeout},
		running:   make(map[string]time.Time),
	}
}

// EnsureCountryLoaded resolves the coordinates to a country or territory
// code and imports its datasets on first sight. Subsequent calls for an
// already-imported country return after one ledger lookup.
func (imp *Importer) EnsureCountryLoaded(ctx context.Context, lat, lon float64) (string, error) {
	code, err := imp.DetectCountry(ctx, lat, lon)
	if err != nil {
		return "", err
	}

	loaded, err := imp.db.CountryImported(ctx, code)
	if err != nil {
		return code, fmt.Errorf("import ledger lookup: %w", err)
	}
	if loaded {
		return code, nil
	}

	logging.Info().Str("country_code", code).
		Float64("lat", lat).Float64("lon", lon).
		Msg("First sight of country, importing datasets")

	_, err, _ = imp.group.Do(code, func() (any, error) {
		return nil, imp.ImportCountry(ctx, code, stream.NopEmitter{})
	})
	return code, err
}

// DetectCountry maps coordinates to an ISO country or territory code. The
// dependent-territory table wins over the reverse geocoder, which answers
// with the administering country for overseas territories.
func (imp *Importer) DetectCountry(ctx context.Context, lat, lon float64) (string, error) {
	if code := TerritoryForCoordinates(lat, lon); code != "" {
		return code, nil
	}

	result, err := imp.nominatim.Reverse(ctx, lat, lon)
	if err != nil {
		return "", fmt.Errorf("country detection: %w", err)
	}
	code := strings.ToUpper(result.Address.CountryCode)
	if len(code) != 2 {
		return "", fmt.Errorf("country detection: no country at %.4f, %.4f", lat, lon)
	}
	return code, nil
}

// ImportCountry fetches and stores all datasets for one country. Progress
// flows through emit so the admin trigger can stream it. The import ledger
// row is written only when at least one dataset landed; a fully failed
// import stays unmarked so the next request retries.
func (imp *Importer) ImportCountry(ctx context.Context, countryCode string, emit stream.Emitter) error {
	countryCode = strings.ToUpper(countryCode)
	if len(countryCode) != 2 {
		return fmt.Errorf("invalid country code %q", countryCode)
	}

	imp.mu.Lock()
	if _, busy := imp.running[countryCode]; busy {
		imp.mu.Unlock()
		return fmt.Errorf("import for %s already in progress", countryCode)
	}
	imp.running[countryCode] = time.Now()
	imp.mu.Unlock()

	defer func() {
		imp.mu.Lock()
		delete(imp.running, countryCode)
		imp.mu.Unlock()
	}()

	start := time.Now()
	emit.Connected("import started")
	emit.Progress("geonames", 10, "Downloading places archive")

	stats := models.CountryImport{CountryCode: countryCode}
	succeeded := 0

	count, err := imp.importGeonames(ctx, countryCode)
	metrics.RecordImport("geonames", time.Since(start), count, err)
	if err != nil {
		logging.Error().Err(err).Str("country_code", countryCode).Msg("GeoNames import failed")
		emit.Warning(fmt.Sprintf("GeoNames import failed: %v", err), "IMPORT_STEP_FAILED")
	} else {
		stats.GeonamesCount = count
		succeeded++
	}

	emit.Progress("cultural", 40, "Deriving cultural sites")
	stepStart := time.Now()
	derived, err := imp.db.DeriveCulturalSites(ctx, countryCode)
	metrics.RecordImport("cultural", time.Since(stepStart), derived, err)
	if err != nil {
		logging.Error().Err(err).Str("country_code", countryCode).Msg("Cultural derivation failed")
		emit.Warning(fmt.Sprintf("cultural derivation failed: %v", err), "IMPORT_STEP_FAILED")
	} else {
		stats.CulturalCount = derived
	}

	emit.Progress("unesco", 55, "Filtering heritage sites")
	stepStart = time.Now()
	count, err = imp.importUnesco(ctx, countryCode)
	metrics.RecordImport("unesco", time.Since(stepStart), count, err)
	if err != nil {
		logging.Error().Err(err).Str("country_code", countryCode).Msg("UNESCO import failed")
		emit.Warning(fmt.Sprintf("UNESCO import failed: %v", err), "IMPORT_STEP_FAILED")
	} else {
		stats.UnescoCount = count
		succeeded++
	}

	emit.Progress("osm", 75, "Fetching OSM POIs")
	stepStart = time.Now()
	count, err = imp.importOSM(ctx, countryCode)
	metrics.RecordImport("osm", time.Since(stepStart), count, err)
	if err != nil {
		logging.Error().Err(err).Str("country_code", countryCode).Msg("OSM import failed")
		emit.Warning(fmt.Sprintf("OSM import failed: %v", err), "IMPORT_STEP_FAILED")
	} else {
		stats.OSMCount = count
		succeeded++
	}

	if succeeded == 0 {
		err := fmt.Errorf("all datasets failed for %s", countryCode)
		emit.Error(err.Error(), models.ErrTypeUnknown, "import")
		return err
	}

	if err := imp.db.RecordCountryImport(ctx, stats); err != nil {
		emit.Error(err.Error(), models.ErrTypeUnknown, "import")
		return fmt.Errorf("record import: %w", err)
	}
	metrics.RecordImportSuccess()

	elapsed := time.Since(start)
	logging.Info().Str("country_code", countryCode).
		Int("geonames", stats.GeonamesCount).
		Int("cultural", stats.CulturalCount).
		Int("unesco", stats.UnescoCount).
		Int("osm", stats.OSMCount).
		Dur("elapsed", elapsed).
		Msg("Country import complete")

	emit.Complete(map[string]any{
		"country_code":   countryCode,
		"geonames_count": stats.GeonamesCount,
		"cultural_count": stats.CulturalCount,
		"unesco_count":   stats.UnescoCount,
		"osm_count":      stats.OSMCount,
		"elapsed_secs":   elapsed.Seconds(),
	})
	return nil
}

// importOSM pulls country-wide tourism/historic POIs from Overpass. Dependent
// territories often lack an admin_level=2 boundary; when the standard area
// query comes back empty for one, the broad query retries without the filter.
func (imp *Importer) importOSM(ctx context.Context, countryCode string) (int, error) {
	pois, err := imp.overpass.CountryPOIs(ctx, countryCode, false, 500)
	if err != nil {
		return 0, err
	}
	if len(pois) == 0 && isDependency(countryCode) {
		logging.Debug().Str("country_code", countryCode).Msg("Empty admin-level area, retrying broad Overpass query")
		pois, err = imp.overpass.CountryPOIs(ctx, countryCode, true, 500)
		if err != nil {
			return 0, err
		}
	}

	rows := make([]database.OSMPOI, 0, len(pois))
	for _, poi := range pois {
		tags, err := json.Marshal(poi.Tags)
		if err != nil {
			tags = []byte("{}")
		}
		rows = append(rows, database.OSMPOI{
			OSMID:       poi.OSMID,
			Name:        poi.Name,
			Category:    poi.Category,
			Latitude:    poi.Latitude,
			Longitude:   poi.Longitude,
			Tags:        string(tags),
			CountryCode: countryCode,
		})
	}
	if err := imp.db.UpsertOSMPOIs(ctx, countryCode, rows); err != nil {
		return 0, err
	}
	return len(rows), nil
}

// Status describes the importer for the stats and admin surfaces.
type Status struct {
	Running []string               `json:"running"`
	History []models.CountryImport `json:"history"`
}

// Status returns in-flight imports and the completed-import ledger.
func (imp *Importer) Status(ctx context.Context) (Status, error) {
	imp.mu.RLock()
	running := make([]string, 0, len(imp.running))
	for code := range imp.running {
		running = append(running, code)
	}
	imp.mu.RUnlock()
	sort.Strings(running)

	history, err := imp.db.ListCountryImports(ctx)
	if err != nil {
		return Status{Running: running}, err
	}
	return Status{Running: running, History: history}, nil
}
