// Fotofable - Contextual Photo Captioning and Duplicate Detection
// Copyright 2026 Marek K. (marekvk)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/marekvk/fotofable

package database

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/marekvk/fotofable/internal/config"
	"github.com/marekvk/fotofable/internal/models"
)

// testDBSemaphore serializes DuckDB creation; concurrent CGO opens can hang
// under CI resource pressure.
var testDBSemaphore = make(chan struct{}, 1)

func setupTestDB(t *testing.T) *DB {
	t.Helper()

	testDBSemaphore <- struct{}{}
	t.Cleanup(func() { <-testDBSemaphore })

	cfg := &config.DatabaseConfig{
		Path:      ":memory:",
		MaxMemory: "512MB",
		Threads:   2,
	}

	db, err := New(cfg)
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Errorf("failed to close test database: %v", err)
		}
	})
	return db
}

func checkNoError(t *testing.T, err error, msg string) {
	t.Helper()
	if err != nil {
		t.Fatalf("%s: %v", msg, err)
	}
}

// Angkor-area fixtures: Siem Reap city plus temple features.
func seedCambodia(t *testing.T, db *DB) {
	t.Helper()
	ctx := context.Background()

	records := []GeonameRecord{
		{GeonameID: 1822214, Name: "Siem Reap", Latitude: 13.3622, Longitude: 103.8597,
			FeatureClass: "P", FeatureCode: "PPLA", CountryCode: "KH", Population: 139458},
		{GeonameID: 1821306, Name: "Angkor Wat", Latitude: 13.4125, Longitude: 103.8670,
			FeatureClass: "S", FeatureCode: "TMPL", CountryCode: "KH"},
		{GeonameID: 1821307, Name: "Bayon", Latitude: 13.4413, Longitude: 103.8590,
			FeatureClass: "S", FeatureCode: "TMPL", CountryCode: "KH"},
		{GeonameID: 1831142, Name: "Tonle Sap", Latitude: 12.9, Longitude: 104.1,
			FeatureClass: "H", FeatureCode: "LK", CountryCode: "KH"},
		{GeonameID: 1821001, Name: "Phnom Penh", Latitude: 11.5564, Longitude: 104.9282,
			FeatureClass: "P", FeatureCode: "PPLC", CountryCode: "KH", Population: 1573544},
	}
	checkNoError(t, db.UpsertGeonamesBatch(ctx, "KH", records), "seed geonames")
}

func TestNewInitializesSchema(t *testing.T) {
	db := setupTestDB(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	checkNoError(t, db.Ping(ctx), "ping")

	counts, err := db.RecordCounts(ctx)
	checkNoError(t, err, "record counts")

	for _, table := range []string{"geonames", "unesco_sites", "cultural_sites", "osm_pois", "country_imports"} {
		if _, ok := counts[table]; !ok {
			t.Errorf("expected table %s in counts", table)
		}
	}
}

func TestHaversineMacro(t *testing.T) {
	db := setupTestDB(t)

	// Paris to London is roughly 344 km.
	var km float64
	err := db.Conn().QueryRowContext(context.Background(),
		`SELECT haversine_distance(48.8566, 2.3522, 51.5074, -0.1278)`).Scan(&km)
	checkNoError(t, err, "macro query")

	if km < 330 || km > 360 {
		t.Errorf("haversine_distance(Paris, London) = %.1f km, want ~344", km)
	}
}

func TestPlacesWithinRadius(t *testing.T) {
	db := setupTestDB(t)
	seedCambodia(t, db)

	places, err := db.PlacesWithinRadius(context.Background(), 13.4125, 103.8667, 10, 100)
	checkNoError(t, err, "places query")

	if len(places) == 0 {
		t.Fatal("expected places near Angkor")
	}

	// Populated places score population*1000/(d+1); Siem Reap must outrank
	// the unpopulated temples.
	if places[0].Name != "Siem Reap" {
		t.Errorf("top place = %q, want Siem Reap", places[0].Name)
	}
	for _, p := range places {
		if p.Name == "Phnom Penh" {
			t.Error("Phnom Penh is ~240 km away and must not appear in a 10 km radius")
		}
		if p.DistanceKm < 0 || p.DistanceKm > 10.001 {
			t.Errorf("place %s distance %.2f outside radius", p.Name, p.DistanceKm)
		}
	}
}

func TestDeriveCulturalSites(t *testing.T) {
	db := setupTestDB(t)
	seedCambodia(t, db)

	count, err := db.DeriveCulturalSites(context.Background(), "KH")
	checkNoError(t, err, "derive cultural sites")

	if count != 2 {
		t.Errorf("derived %d cultural sites, want 2 (the TMPL rows)", count)
	}

	sites, err := db.CulturalSitesWithinRadius(context.Background(), 13.4125, 103.8667, 10, 20)
	checkNoError(t, err, "cultural radius query")

	if len(sites) == 0 {
		t.Fatal("expected cultural sites near Angkor")
	}
	if sites[0].Name != "Angkor Wat" {
		t.Errorf("nearest cultural site = %q, want Angkor Wat", sites[0].Name)
	}

	// Re-derivation must be idempotent (UPSERT, not duplicate rows).
	count2, err := db.DeriveCulturalSites(context.Background(), "KH")
	checkNoError(t, err, "re-derive cultural sites")
	if count2 != count {
		t.Errorf("re-derive count = %d, want %d", count2, count)
	}
}

func TestUnescoRoundTrip(t *testing.T) {
	db := setupTestDB(t)

	sites := []UnescoSite{
		{SiteID: 668, Name: "Angkor", Latitude: 13.4333, Longitude: 103.8333,
			CountryCode: "KH", Category: "Cultural", DateInscribed: 1992},
		{SiteID: 1224, Name: "Temple of Preah Vihear", Latitude: 14.3917, Longitude: 104.6803,
			CountryCode: "KH", Category: "Cultural", DateInscribed: 2008},
	}
	checkNoError(t, db.UpsertUnescoSites(context.Background(), "KH", sites), "upsert unesco")

	got, err := db.UnescoWithinRadius(context.Background(), 13.4125, 103.8667, 20, 10)
	checkNoError(t, err, "unesco radius query")

	if len(got) != 1 {
		t.Fatalf("got %d sites within 20 km, want 1", len(got))
	}
	if got[0].Name != "Angkor" {
		t.Errorf("site = %q, want Angkor", got[0].Name)
	}
}

func TestOSMPOIRanking(t *testing.T) {
	db := setupTestDB(t)

	pois := []OSMPOI{
		{OSMID: 1, Name: "Cafe Nearby", Category: "amenity", Latitude: 13.4126, Longitude: 103.8668, CountryCode: "KH"},
		{OSMID: 2, Name: "Viewpoint Far", Category: "tourism", Latitude: 13.45, Longitude: 103.90, CountryCode: "KH"},
		{OSMID: 3, Name: "Old Gate", Category: "historic", Latitude: 13.4140, Longitude: 103.8660, CountryCode: "KH"},
	}
	checkNoError(t, db.UpsertOSMPOIs(context.Background(), "KH", pois), "upsert osm")

	got, err := db.OSMPOIsWithinRadius(context.Background(), 13.4125, 103.8667, 10, 20)
	checkNoError(t, err, "osm radius query")

	if len(got) != 3 {
		t.Fatalf("got %d pois, want 3", len(got))
	}
	// tourism outranks historic outranks amenity regardless of distance.
	want := []string{"Viewpoint Far", "Old Gate", "Cafe Nearby"}
	for i, name := range want {
		if got[i].Name != name {
			t.Errorf("poi[%d] = %q, want %q", i, got[i].Name, name)
		}
	}
}

func TestCountryImportLedger(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	loaded, err := db.CountryImported(ctx, "KH")
	checkNoError(t, err, "check unimported")
	if loaded {
		t.Fatal("KH reported imported before any import")
	}

	imp := models.CountryImport{CountryCode: "KH", GeonamesCount: 5, UnescoCount: 2, CulturalCount: 2, OSMCount: 3}
	checkNoError(t, db.RecordCountryImport(ctx, imp), "record import")

	loaded, err = db.CountryImported(ctx, "KH")
	checkNoError(t, err, "check imported")
	if !loaded {
		t.Fatal("KH not reported imported after record")
	}

	imports, err := db.ListCountryImports(ctx)
	checkNoError(t, err, "list imports")
	if len(imports) != 1 || imports[0].CountryCode != "KH" {
		t.Fatalf("imports = %+v, want one KH row", imports)
	}
	if imports[0].GeonamesCount != 5 || imports[0].OSMCount != 3 {
		t.Errorf("counts = %+v, want geonames 5, osm 3", imports[0])
	}

	deleted, err := db.DeleteCountryImport(ctx, "KH")
	checkNoError(t, err, "delete import")
	if !deleted {
		t.Error("delete reported no row removed")
	}

	loaded, err = db.CountryImported(ctx, "KH")
	checkNoError(t, err, "check after delete")
	if loaded {
		t.Error("KH still reported imported after delete")
	}
}

func TestUpsertGeonamesBatchIdempotent(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	rec := GeonameRecord{GeonameID: 42, Name: "Old Name", Latitude: 1, Longitude: 1,
		FeatureClass: "P", FeatureCode: "PPL", CountryCode: "XX", Population: 10}
	checkNoError(t, db.UpsertGeonamesBatch(ctx, "XX", []GeonameRecord{rec}), "first upsert")

	rec.Name = "New Name"
	rec.Population = 20
	checkNoError(t, db.UpsertGeonamesBatch(ctx, "XX", []GeonameRecord{rec}), "second upsert")

	var name string
	var population int64
	err := db.Conn().QueryRowContext(ctx,
		`SELECT name, population FROM geonames WHERE geoname_id = 42`).Scan(&name, &population)
	checkNoError(t, err, "select upserted row")

	if name != "New Name" || population != 20 {
		t.Errorf("row = (%s, %d), want (New Name, 20)", name, population)
	}
}

func TestConcurrentReadsDuringWrites(t *testing.T) {
	db := setupTestDB(t)
	seedCambodia(t, db)

	var wg sync.WaitGroup
	errCh := make(chan error, 20)

	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			rec := GeonameRecord{GeonameID: int64(9000 + n), Name: "Place", Latitude: 13.4,
				Longitude: 103.86, FeatureClass: "S", FeatureCode: "PT", CountryCode: "KH"}
			if err := db.UpsertGeonamesBatch(context.Background(), "KH", []GeonameRecord{rec}); err != nil {
				errCh <- err
			}
		}(i)

		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := db.PlacesWithinRadius(context.Background(), 13.4125, 103.8667, 10, 100); err != nil {
				errCh <- err
			}
		}()
	}

	wg.Wait()
	close(errCh)
	for err := range errCh {
		t.Errorf("concurrent operation failed: %v", err)
	}
}

func TestBoundingBox(t *testing.T) {
	minLat, maxLat, minLon, maxLon := boundingBox(13.4125, 103.8667, 10)

	if maxLat-minLat < 0.17 || maxLat-minLat > 0.19 {
		t.Errorf("lat window = %.4f degrees, want ~0.18", maxLat-minLat)
	}
	if maxLon <= minLon {
		t.Error("lon window inverted")
	}

	// Near the poles the window must widen, never invert or NaN.
	_, _, minLon, maxLon = boundingBox(89.9, 0, 10)
	if maxLon <= minLon {
		t.Error("polar lon window inverted")
	}
}
