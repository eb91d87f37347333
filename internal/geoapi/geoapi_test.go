// Fotofable - Contextual Photo Captioning and Duplicate Detection
// Copyright 2026 Marek K. (marekvk)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/marekvk/fotofable

package geoapi

import (
	"context"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/marekvk/fotofable/internal/config"
)

func TestNominatimReverse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/reverse" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("format") != "json" || q.Get("addressdetails") != "1" || q.Get("zoom") != "18" {
			t.Errorf("missing query params: %v", q)
		}
		if r.Header.Get("User-Agent") == "" {
			t.Error("missing User-Agent, Nominatim policy requires one")
		}
		w.Write([]byte(`{
			"display_name": "Plage de Temae, Moorea, Polynésie française",
			"address": {
				"village": "Temae",
				"county": "Moorea-Maiao",
				"country": "France",
				"country_code": "fr"
			}
		}`))
	}))
	defer srv.Close()

	c := NewNominatim(&config.GeoConfig{NominatimURL: srv.URL}, NewPacer(time.Millisecond))
	result, err := c.Reverse(context.Background(), -17.4989, -149.7625)
	if err != nil {
		t.Fatalf("Reverse failed: %v", err)
	}
	if result.Address.Village != "Temae" || result.Address.CountryCode != "fr" {
		t.Errorf("unexpected address %+v", result.Address)
	}
}

func TestNominatimSoftError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"error": "Unable to geocode"}`))
	}))
	defer srv.Close()

	c := NewNominatim(&config.GeoConfig{NominatimURL: srv.URL}, NewPacer(time.Millisecond))
	if _, err := c.Reverse(context.Background(), 0, 0); err == nil {
		t.Fatal("expected error from soft-error body")
	}
}

func TestPacerSerializesCalls(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Write([]byte(`{"display_name": "x", "address": {}}`))
	}))
	defer srv.Close()

	interval := 80 * time.Millisecond
	c := NewNominatim(&config.GeoConfig{NominatimURL: srv.URL}, NewPacer(interval))

	start := time.Now()
	for i := 0; i < 3; i++ {
		if _, err := c.Reverse(context.Background(), 48.85, 2.35); err != nil {
			t.Fatalf("Reverse failed: %v", err)
		}
	}
	// Three calls through a burst-1 pacer need at least two full intervals.
	if elapsed := time.Since(start); elapsed < 2*interval {
		t.Errorf("pacer not enforced: 3 calls in %v", elapsed)
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
}

func TestOverpassNearbyPOIs(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Fatalf("parse form: %v", err)
		}
		if r.PostForm.Get("data") == "" {
			t.Error("missing data form field")
		}
		w.Write([]byte(`{"elements": [
			{"type": "node", "id": 1, "lat": 48.8606, "lon": 2.3376,
			 "tags": {"name": "Musée du Louvre", "tourism": "museum", "wikipedia": "fr:Louvre"}},
			{"type": "node", "id": 2, "lat": 48.8600, "lon": 2.3400,
			 "tags": {"tourism": "attraction"}},
			{"type": "node", "id": 3, "lat": 48.8610, "lon": 2.3380,
			 "tags": {"name": "yes", "historic": "ruins"}},
			{"type": "node", "id": 4, "lat": 48.8530, "lon": 2.3499,
			 "tags": {"name": "Notre-Dame", "amenity": "place_of_worship"}}
		]}`))
	}))
	defer srv.Close()

	c := NewOverpass(&config.GeoConfig{OverpassURL: srv.URL}, NewPacer(time.Millisecond))
	pois, err := c.NearbyPOIs(context.Background(), 48.8606, 2.3376, 5, 10)
	if err != nil {
		t.Fatalf("NearbyPOIs failed: %v", err)
	}
	// Unnamed and junk-named nodes are dropped.
	if len(pois) != 2 {
		t.Fatalf("expected 2 POIs, got %d: %v", len(pois), pois)
	}
	// The museum with wikipedia tag outranks the plain worship place.
	if pois[0].Name != "Musée du Louvre" {
		t.Errorf("expected Louvre first, got %q", pois[0].Name)
	}
	if pois[0].Category != "tourism=museum" {
		t.Errorf("unexpected category %q", pois[0].Category)
	}
}

func TestOverpassLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"elements": [
			{"type": "node", "id": 1, "lat": 1, "lon": 1, "tags": {"name": "A", "historic": "fort"}},
			{"type": "node", "id": 2, "lat": 1, "lon": 1, "tags": {"name": "B", "historic": "fort"}},
			{"type": "node", "id": 3, "lat": 1, "lon": 1, "tags": {"name": "C", "historic": "fort"}}
		]}`))
	}))
	defer srv.Close()

	c := NewOverpass(&config.GeoConfig{OverpassURL: srv.URL}, NewPacer(time.Millisecond))
	pois, err := c.NearbyPOIs(context.Background(), 1, 1, 5, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(pois) != 2 {
		t.Errorf("limit not applied, got %d POIs", len(pois))
	}
}

func TestHaversineKm(t *testing.T) {
	// Paris to Marseille, roughly 660 km.
	d := HaversineKm(48.8566, 2.3522, 43.2965, 5.3698)
	if math.Abs(d-660) > 15 {
		t.Errorf("Paris-Marseille distance = %.1f km, expected ~660", d)
	}
	if d := HaversineKm(10, 20, 10, 20); d != 0 {
		t.Errorf("zero distance expected, got %f", d)
	}
}
