// Fotofable - Contextual Photo Captioning and Duplicate Detection
// Copyright 2026 Marek K. (marekvk)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/marekvk/fotofable

package geo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/marekvk/fotofable/internal/config"
	"github.com/marekvk/fotofable/internal/database"
	"github.com/marekvk/fotofable/internal/geoapi"
	"github.com/marekvk/fotofable/internal/logging"
	"github.com/marekvk/fotofable/internal/metrics"
	"github.com/marekvk/fotofable/internal/models"
	"github.com/marekvk/fotofable/internal/requestcache"
)

// ErrInvalidCoordinates rejects out-of-range input before any work happens.
var ErrInvalidCoordinates = errors.New("invalid coordinates")

// Per-source confidence contributions. The sum is clipped to 1.0.
const (
	confUnesco       = 0.4
	confCultural     = 0.3
	confCulturalCats = 0.2 // categorized from the places scan only
	confCities       = 0.4
	confNominatim    = 0.2
	confOverpass     = 0.1
	confOverpassMany = 0.2 // three or more POIs contributed
	confFallback     = 0.1

	overpassManyCount = 3
)

// Query limits per the resolver contract.
const (
	limitPlaces   = 100
	limitUnesco   = 10
	limitCultural = 20
	limitOSM      = 20
	limitOverpass = 10
)

// CountryLoader triggers the per-country bulk import on first sight of a new
// region. Implemented by the importer.
type CountryLoader interface {
	EnsureCountryLoaded(ctx context.Context, lat, lon float64) (string, error)
}

// Resolver fuses the spatial store with the external geo APIs.
type Resolver struct {
	db        *database.DB
	loader    CountryLoader
	nominatim *geoapi.NominatimClient
	overpass  *geoapi.OverpassClient
	cache     *lookupCache

	defaultRadiusKm float64
}

// NewResolver wires the resolver. nominatim and overpass may be nil in
// store-only deployments; enrichment is skipped then.
func NewResolver(cfg *config.GeoConfig, db *database.DB, loader CountryLoader,
	nominatim *geoapi.NominatimClient, overpass *geoapi.OverpassClient) *Resolver {
	radius := cfg.DefaultRadiusKm
	if radius <= 0 {
		radius = 10
	}
	return &Resolver{
		db:              db,
		loader:          loader,
		nominatim:       nominatim,
		overpass:        overpass,
		cache:           newLookupCache(cfg.CacheCapacity, cfg.CacheTTL, cfg.H3Resolution),
		defaultRadiusKm: radius,
	}
}

// ValidateCoordinates rejects out-of-range latitude/longitude.
func ValidateCoordinates(lat, lon float64) error {
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return fmt.Errorf("%w: lat=%f lon=%f", ErrInvalidCoordinates, lat, lon)
	}
	return nil
}

// DefaultRadiusKm returns the configured lookup radius.
func (r *Resolver) DefaultRadiusKm() float64 {
	return r.defaultRadiusKm
}

// ClearCache drops all cached lookups.
func (r *Resolver) ClearCache() {
	r.cache.Clear()
}

// CacheStats exposes lookup-cache counters for the stats surface.
func (r *Resolver) CacheStats() requestcache.Stats {
	return r.cache.Stats()
}

// Lookup resolves coordinates into a ranked context bundle. It only fails on
// invalid input; every downstream outage degrades to a partial or minimal
// result.
func (r *Resolver) Lookup(ctx context.Context, lat, lon, radiusKm float64) (*models.GeoLocation, error) {
	if err := ValidateCoordinates(lat, lon); err != nil {
		return nil, err
	}
	if radiusKm <= 0 {
		radiusKm = r.defaultRadiusKm
	}

	if loc, ok := r.cache.Get(lat, lon, radiusKm); ok {
		return loc, nil
	}

	start := time.Now()
	loc := r.resolve(ctx, lat, lon, radiusKm)
	metrics.RecordStage("geolocation", time.Since(start))

	// Minimal fallbacks are not cached; the next request should retry.
	if loc.ConfidenceScore > confFallback {
		r.cache.Put(lat, lon, radiusKm, loc)
	}
	return loc, nil
}

func (r *Resolver) resolve(ctx context.Context, lat, lon, radiusKm float64) *models.GeoLocation {
	loc := &models.GeoLocation{Latitude: lat, Longitude: lon}

	// First sight of a new country blocks on the import; afterwards this is
	// a single ledger lookup.
	if r.loader != nil {
		if code, err := r.loader.EnsureCountryLoaded(ctx, lat, lon); err != nil {
			logging.Warn().Err(err).Msg("Country load failed, resolving against existing data")
		} else {
			loc.CountryCode = code
		}
	}

	if err := r.queryStore(ctx, loc, radiusKm); err != nil {
		logging.Error().Err(err).Msg("Spatial store unavailable, returning minimal location")
		return r.minimal(lat, lon)
	}

	r.categorizePlaces(loc)
	r.applyStoreConfidence(loc)

	// External enrichment only when the local picture is weak.
	if loc.ConfidenceScore < 0.8 || loc.FormattedAddress == "" {
		r.enrichNominatim(ctx, loc)
	}
	if len(loc.NearbyPOIs)+len(loc.OSMPOIs) < 5 && loc.ConfidenceScore < 0.9 {
		r.enrichOverpass(ctx, loc, radiusKm/2)
	}

	dedupeSites(loc)
	r.finalizeAddress(loc)

	if loc.ConfidenceScore > 1 {
		loc.ConfidenceScore = 1
	}
	if loc.ConfidenceScore == 0 {
		loc.ConfidenceScore = confFallback
	}
	return loc
}

// queryStore runs the four radius queries in parallel. Any one failing
// fails the store pass as a whole; Lookup then degrades to minimal.
func (r *Resolver) queryStore(ctx context.Context, loc *models.GeoLocation, radiusKm float64) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		places, err := r.db.PlacesWithinRadius(gctx, loc.Latitude, loc.Longitude, radiusKm, limitPlaces)
		if err != nil {
			return fmt.Errorf("places query: %w", err)
		}
		loc.Places = places
		return nil
	})
	g.Go(func() error {
		sites, err := r.db.UnescoWithinRadius(gctx, loc.Latitude, loc.Longitude, 2*radiusKm, limitUnesco)
		if err != nil {
			return fmt.Errorf("unesco query: %w", err)
		}
		loc.UnescoSites = sites
		return nil
	})
	g.Go(func() error {
		sites, err := r.db.CulturalSitesWithinRadius(gctx, loc.Latitude, loc.Longitude, radiusKm, limitCultural)
		if err != nil {
			return fmt.Errorf("cultural query: %w", err)
		}
		loc.CulturalSites = sites
		return nil
	})
	g.Go(func() error {
		pois, err := r.db.OSMPOIsWithinRadius(gctx, loc.Latitude, loc.Longitude, radiusKm, limitOSM)
		if err != nil {
			return fmt.Errorf("osm query: %w", err)
		}
		loc.OSMPOIs = pois
		return nil
	})

	return g.Wait()
}

// categorizePlaces splits the raw places scan into major cities, additional
// cultural sites, and nearby POIs, and picks the administrative city.
func (r *Resolver) categorizePlaces(loc *models.GeoLocation) {
	cultural := make(map[string]bool, len(database.CulturalFeatureCodes))
	for _, code := range database.CulturalFeatureCodes {
		cultural[code] = true
	}

	for _, p := range loc.Places {
		switch {
		case p.FeatureClass == "P":
			loc.MajorCities = append(loc.MajorCities, p)
		case cultural[p.FeatureCode]:
			loc.CulturalSites = append(loc.CulturalSites, p)
		case p.FeatureClass == "T" || p.FeatureClass == "H" ||
			p.FeatureClass == "L" || p.FeatureClass == "S":
			loc.NearbyPOIs = append(loc.NearbyPOIs, p)
		}
	}

	// The best-scored populated place is the city; the scan is already
	// ordered by relevance.
	if loc.City == "" && len(loc.MajorCities) > 0 {
		loc.City = loc.MajorCities[0].Name
	}
}

func (r *Resolver) applyStoreConfidence(loc *models.GeoLocation) {
	if len(loc.UnescoSites) > 0 {
		loc.ConfidenceScore += confUnesco
		loc.AddSource("unesco")
	}
	if len(loc.CulturalSites) > 0 {
		// Rows from the cultural_sites table carry a relevance set by the
		// radius query; categorization-only hits weigh less.
		fromTable := false
		for _, s := range loc.CulturalSites {
			if s.FeatureCode == "" {
				fromTable = true
				break
			}
		}
		if fromTable {
			loc.ConfidenceScore += confCultural
		} else {
			loc.ConfidenceScore += confCulturalCats
		}
		loc.AddSource("cultural")
	}
	if len(loc.MajorCities) > 0 {
		loc.ConfidenceScore += confCities
		loc.AddSource("geonames")
	}
	if len(loc.OSMPOIs) > 0 {
		loc.AddSource("osm")
	}
}

// enrichNominatim merges reverse-geocoded administrative fields without
// overwriting anything the store already produced.
func (r *Resolver) enrichNominatim(ctx context.Context, loc *models.GeoLocation) {
	if r.nominatim == nil {
		return
	}

	res, err := r.nominatim.Reverse(ctx, loc.Latitude, loc.Longitude)
	if err != nil {
		logging.Warn().Err(err).Msg("Reverse geocoding failed, skipping enrichment")
		return
	}

	addr := res.Address
	if loc.City == "" {
		loc.City = firstNonEmpty(addr.City, addr.Town, addr.Village, addr.Municipality, addr.Hamlet)
	}
	if loc.Region == "" {
		loc.Region = firstNonEmpty(addr.State, addr.Region, addr.County)
	}
	if loc.Country == "" {
		loc.Country = addr.Country
	}
	if loc.CountryCode == "" {
		loc.CountryCode = strings.ToUpper(addr.CountryCode)
	}
	if loc.FormattedAddress == "" {
		loc.FormattedAddress = res.DisplayName
	}

	loc.ConfidenceScore += confNominatim
	loc.AddSource("nominatim")
}

// enrichOverpass asks the places API for extra POIs when the store came up
// thin.
func (r *Resolver) enrichOverpass(ctx context.Context, loc *models.GeoLocation, radiusKm float64) {
	if r.overpass == nil {
		return
	}

	pois, err := r.overpass.NearbyPOIs(ctx, loc.Latitude, loc.Longitude, radiusKm, limitOverpass)
	if err != nil {
		logging.Warn().Err(err).Msg("Overpass search failed, skipping enrichment")
		return
	}
	if len(pois) == 0 {
		return
	}

	loc.OSMPOIs = append(loc.OSMPOIs, pois...)
	if len(pois) >= overpassManyCount {
		loc.ConfidenceScore += confOverpassMany
	} else {
		loc.ConfidenceScore += confOverpass
	}
	loc.AddSource("overpass")
}

// dedupeSites removes same-name entries across the site and POI lists,
// keeping the first (best-ranked) occurrence.
func dedupeSites(loc *models.GeoLocation) {
	seen := make(map[string]bool)
	loc.UnescoSites = dedupeByName(loc.UnescoSites, seen)
	loc.CulturalSites = dedupeByName(loc.CulturalSites, seen)
	loc.OSMPOIs = dedupeByName(loc.OSMPOIs, seen)
	loc.NearbyPOIs = dedupeByName(loc.NearbyPOIs, seen)
}

func dedupeByName(places []models.GeoPlace, seen map[string]bool) []models.GeoPlace {
	out := places[:0]
	for _, p := range places {
		key := strings.ToLower(strings.TrimSpace(p.Name))
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, p)
	}
	return out
}

// finalizeAddress picks the formatted address by preference: UNESCO site +
// city, cultural site + city, city + country, then raw coordinates.
func (r *Resolver) finalizeAddress(loc *models.GeoLocation) {
	switch {
	case len(loc.UnescoSites) > 0:
		loc.FormattedAddress = joinWithCity(loc.UnescoSites[0].Name, loc.City)
	case len(loc.CulturalSites) > 0:
		loc.FormattedAddress = joinWithCity(loc.CulturalSites[0].Name, loc.City)
	case loc.City != "" && loc.Country != "":
		loc.FormattedAddress = loc.City + ", " + loc.Country
	case loc.FormattedAddress != "":
		// Keep what Nominatim produced.
	default:
		loc.FormattedAddress = fmt.Sprintf("%.6f, %.6f", loc.Latitude, loc.Longitude)
	}
}

func joinWithCity(name, city string) string {
	if city != "" && !strings.EqualFold(name, city) {
		return name + ", " + city
	}
	return name
}

func (r *Resolver) minimal(lat, lon float64) *models.GeoLocation {
	return &models.GeoLocation{
		Latitude:         lat,
		Longitude:        lon,
		FormattedAddress: fmt.Sprintf("%.6f, %.6f", lat, lon),
		ConfidenceScore:  confFallback,
		DataSources:      []string{},
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
