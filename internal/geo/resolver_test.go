// Fotofable - Contextual Photo Captioning and Duplicate Detection
// Copyright 2026 Marek K. (marekvk)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/marekvk/fotofable

package geo

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/marekvk/fotofable/internal/config"
	"github.com/marekvk/fotofable/internal/database"
	"github.com/marekvk/fotofable/internal/geoapi"
	"github.com/marekvk/fotofable/internal/models"
)

// stubLoader satisfies CountryLoader without touching the network.
type stubLoader struct {
	code  string
	err   error
	calls int
}

func (s *stubLoader) EnsureCountryLoaded(_ context.Context, _, _ float64) (string, error) {
	s.calls++
	return s.code, s.err
}

var geoDBSemaphore = make(chan struct{}, 1)

func setupGeoDB(t *testing.T) *database.DB {
	t.Helper()

	geoDBSemaphore <- struct{}{}
	t.Cleanup(func() { <-geoDBSemaphore })

	db, err := database.New(&config.DatabaseConfig{Path: ":memory:", MaxMemory: "512MB", Threads: 2})
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func seedAngkor(t *testing.T, db *database.DB) {
	t.Helper()
	ctx := context.Background()

	err := db.UpsertGeonamesBatch(ctx, "KH", []database.GeonameRecord{
		{GeonameID: 1822214, Name: "Siem Reap", Latitude: 13.3622, Longitude: 103.8597,
			FeatureClass: "P", FeatureCode: "PPLA", CountryCode: "KH", Population: 139458},
		{GeonameID: 1821306, Name: "Angkor Wat", Latitude: 13.4125, Longitude: 103.8670,
			FeatureClass: "S", FeatureCode: "TMPL", CountryCode: "KH"},
	})
	if err != nil {
		t.Fatalf("seed geonames: %v", err)
	}

	err = db.UpsertUnescoSites(ctx, "KH", []database.UnescoSite{
		{SiteID: 668, Name: "Angkor", Latitude: 13.4333, Longitude: 103.8333,
			CountryCode: "KH", Category: "Cultural", DateInscribed: 1992},
	})
	if err != nil {
		t.Fatalf("seed unesco: %v", err)
	}

	if _, err := db.DeriveCulturalSites(ctx, "KH"); err != nil {
		t.Fatalf("derive cultural: %v", err)
	}
}

func newTestResolver(db *database.DB, loader CountryLoader) *Resolver {
	cfg := &config.GeoConfig{DefaultRadiusKm: 10, CacheTTL: time.Hour, CacheCapacity: 100, H3Resolution: 7}
	return NewResolver(cfg, db, loader, nil, nil)
}

func TestValidateCoordinates(t *testing.T) {
	tests := []struct {
		lat, lon float64
		ok       bool
	}{
		{13.4125, 103.8667, true},
		{90, 180, true},
		{-90, -180, true},
		{90.0001, 0, false},
		{0, 180.0001, false},
		{-91, 0, false},
	}
	for _, tt := range tests {
		err := ValidateCoordinates(tt.lat, tt.lon)
		if tt.ok && err != nil {
			t.Errorf("ValidateCoordinates(%f, %f) = %v, want nil", tt.lat, tt.lon, err)
		}
		if !tt.ok && !errors.Is(err, ErrInvalidCoordinates) {
			t.Errorf("ValidateCoordinates(%f, %f) = %v, want ErrInvalidCoordinates", tt.lat, tt.lon, err)
		}
	}
}

func TestLookupAngkor(t *testing.T) {
	db := setupGeoDB(t)
	seedAngkor(t, db)

	loader := &stubLoader{code: "KH"}
	r := newTestResolver(db, loader)

	loc, err := r.Lookup(context.Background(), 13.4125, 103.8667, 10)
	if err != nil {
		t.Fatalf("lookup failed: %v", err)
	}

	if loader.calls != 1 {
		t.Errorf("loader called %d times, want 1", loader.calls)
	}
	if len(loc.UnescoSites) == 0 || loc.UnescoSites[0].Name != "Angkor" {
		t.Errorf("unesco sites = %+v, want Angkor first", loc.UnescoSites)
	}
	if loc.City != "Siem Reap" {
		t.Errorf("city = %q, want Siem Reap", loc.City)
	}
	if loc.FormattedAddress != "Angkor, Siem Reap" {
		t.Errorf("formatted address = %q, want UNESCO name + city", loc.FormattedAddress)
	}
	if loc.ConfidenceScore <= 0 || loc.ConfidenceScore > 1 {
		t.Errorf("confidence %f outside (0,1]", loc.ConfidenceScore)
	}
	// unesco 0.4 + cultural + cities 0.4 must clip at 1.0.
	if loc.ConfidenceScore != 1.0 {
		t.Errorf("confidence = %f, want clipped 1.0", loc.ConfidenceScore)
	}
	for _, tag := range []string{"unesco", "cultural", "geonames"} {
		if !loc.HasSource(tag) {
			t.Errorf("missing data source %q in %v", tag, loc.DataSources)
		}
	}
}

func TestLookupInvalidCoordinates(t *testing.T) {
	r := newTestResolver(nil, nil)
	if _, err := r.Lookup(context.Background(), 91, 0, 10); !errors.Is(err, ErrInvalidCoordinates) {
		t.Errorf("err = %v, want ErrInvalidCoordinates", err)
	}
}

func TestLookupCacheHit(t *testing.T) {
	db := setupGeoDB(t)
	seedAngkor(t, db)

	loader := &stubLoader{code: "KH"}
	r := newTestResolver(db, loader)

	first, err := r.Lookup(context.Background(), 13.4125, 103.8667, 10)
	if err != nil {
		t.Fatalf("first lookup: %v", err)
	}
	second, err := r.Lookup(context.Background(), 13.4125, 103.8667, 10)
	if err != nil {
		t.Fatalf("second lookup: %v", err)
	}

	if first != second {
		t.Error("second lookup did not come from cache")
	}
	if loader.calls != 1 {
		t.Errorf("loader called %d times, want 1 (cached path skips it)", loader.calls)
	}

	// A nearby coordinate in the same H3 cell shares the entry.
	third, err := r.Lookup(context.Background(), 13.41251, 103.86671, 10)
	if err != nil {
		t.Fatalf("third lookup: %v", err)
	}
	if third != first {
		t.Error("same-cell lookup did not share the cached entry")
	}
}

func TestLookupLoaderFailureDegrades(t *testing.T) {
	db := setupGeoDB(t)
	seedAngkor(t, db)

	r := newTestResolver(db, &stubLoader{err: errors.New("geonames.org unreachable")})

	loc, err := r.Lookup(context.Background(), 13.4125, 103.8667, 10)
	if err != nil {
		t.Fatalf("lookup must not fail on loader errors: %v", err)
	}
	// Existing data still answers.
	if len(loc.UnescoSites) == 0 {
		t.Error("expected store results despite loader failure")
	}
}

func TestLookupNominatimEnrichment(t *testing.T) {
	db := setupGeoDB(t) // empty store → weak confidence → enrichment path

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"display_name": "Krong Siem Reap, Cambodia",
			"address": {"city": "Krong Siem Reap", "state": "Siem Reap Province",
				"country": "Cambodia", "country_code": "kh"}
		}`))
	}))
	defer srv.Close()

	gcfg := &config.GeoConfig{
		NominatimURL:      srv.URL,
		NominatimInterval: time.Millisecond,
		DefaultRadiusKm:   10,
		CacheTTL:          time.Hour,
		CacheCapacity:     10,
		H3Resolution:      7,
	}
	nominatim := geoapi.NewNominatim(gcfg, geoapi.NewPacer(time.Millisecond))
	r := NewResolver(gcfg, db, &stubLoader{code: "KH"}, nominatim, nil)

	loc, err := r.Lookup(context.Background(), 13.4125, 103.8667, 10)
	if err != nil {
		t.Fatalf("lookup failed: %v", err)
	}

	if loc.City != "Krong Siem Reap" {
		t.Errorf("city = %q, want Nominatim value", loc.City)
	}
	if loc.Country != "Cambodia" || loc.CountryCode != "KH" {
		t.Errorf("country = %q/%q, want Cambodia/KH", loc.Country, loc.CountryCode)
	}
	if !loc.HasSource("nominatim") {
		t.Errorf("missing nominatim source tag: %v", loc.DataSources)
	}
}

func TestLookupNeverFailsOnTotalOutage(t *testing.T) {
	db := setupGeoDB(t)
	// Closing the database forces every store query to fail.
	_ = db.Close()

	r := newTestResolver(db, nil)

	loc, err := r.Lookup(context.Background(), 48.8566, 2.3522, 10)
	if err != nil {
		t.Fatalf("lookup must degrade, not fail: %v", err)
	}
	if loc.ConfidenceScore != 0.1 {
		t.Errorf("fallback confidence = %f, want 0.1", loc.ConfidenceScore)
	}
	if loc.FormattedAddress == "" {
		t.Error("fallback must still carry the coordinates as address")
	}
}

func TestDedupeByName(t *testing.T) {
	loc := &models.GeoLocation{
		UnescoSites:   []models.GeoPlace{{Name: "Angkor"}},
		CulturalSites: []models.GeoPlace{{Name: "angkor"}, {Name: "Bayon"}},
		OSMPOIs:       []models.GeoPlace{{Name: "Bayon"}, {Name: ""}, {Name: "Ta Prohm"}},
	}
	dedupeSites(loc)

	if len(loc.UnescoSites) != 1 {
		t.Errorf("unesco = %+v", loc.UnescoSites)
	}
	if len(loc.CulturalSites) != 1 || loc.CulturalSites[0].Name != "Bayon" {
		t.Errorf("cultural = %+v, want only Bayon (angkor deduped case-insensitively)", loc.CulturalSites)
	}
	if len(loc.OSMPOIs) != 1 || loc.OSMPOIs[0].Name != "Ta Prohm" {
		t.Errorf("osm = %+v, want only Ta Prohm", loc.OSMPOIs)
	}
}

func TestFinalizeAddressPreference(t *testing.T) {
	r := newTestResolver(nil, nil)

	tests := []struct {
		name string
		loc  models.GeoLocation
		want string
	}{
		{"unesco wins", models.GeoLocation{
			UnescoSites:   []models.GeoPlace{{Name: "Angkor"}},
			CulturalSites: []models.GeoPlace{{Name: "Bayon"}},
			City:          "Siem Reap", Country: "Cambodia",
		}, "Angkor, Siem Reap"},
		{"cultural next", models.GeoLocation{
			CulturalSites: []models.GeoPlace{{Name: "Bayon"}},
			City:          "Siem Reap", Country: "Cambodia",
		}, "Bayon, Siem Reap"},
		{"city and country", models.GeoLocation{City: "Paris", Country: "France"}, "Paris, France"},
		{"coordinates last", models.GeoLocation{Latitude: 1.5, Longitude: 2.5}, "1.500000, 2.500000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			loc := tt.loc
			r.finalizeAddress(&loc)
			if loc.FormattedAddress != tt.want {
				t.Errorf("address = %q, want %q", loc.FormattedAddress, tt.want)
			}
		})
	}
}

func TestBuildSummary(t *testing.T) {
	loc := &models.GeoLocation{
		City: "Siem Reap", Region: "Siem Reap Province", Country: "Cambodia",
		FormattedAddress: "Angkor, Siem Reap",
		UnescoSites:      []models.GeoPlace{{Name: "Angkor", DistanceKm: 2.3}},
		CulturalSites:    []models.GeoPlace{{Name: "Bayon", DistanceKm: 3.1}},
		OSMPOIs:          []models.GeoPlace{{Name: "Ta Prohm"}},
		ConfidenceScore:  0.9,
	}

	s := BuildSummary(loc)

	if s.LocationBasic != "Siem Reap, Cambodia" {
		t.Errorf("basic = %q", s.LocationBasic)
	}
	if s.LocationDetailed != "Angkor, Siem Reap" {
		t.Errorf("detailed = %q", s.LocationDetailed)
	}
	if s.CulturalContext != "Angkor (UNESCO, 2.3 km); Bayon (3.1 km)" {
		t.Errorf("cultural = %q", s.CulturalContext)
	}
	if s.NearbyAttractions != "Ta Prohm" {
		t.Errorf("attractions = %q", s.NearbyAttractions)
	}
	if s.GeographicContext != "Siem Reap, Siem Reap Province, Cambodia" {
		t.Errorf("geographic = %q", s.GeographicContext)
	}
	if s.ConfidenceLevel != "high" {
		t.Errorf("confidence level = %q, want high", s.ConfidenceLevel)
	}

	if got := BuildSummary(nil); got != (Summary{}) {
		t.Errorf("nil location summary = %+v, want zero", got)
	}
}
