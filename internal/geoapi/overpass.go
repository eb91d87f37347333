// Fotofable - Contextual Photo Captioning and Duplicate Detection
// Copyright 2026 Marek K. (marekvk)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/marekvk/fotofable

package geoapi

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/marekvk/fotofable/internal/breaker"
	"github.com/marekvk/fotofable/internal/config"
	"github.com/marekvk/fotofable/internal/metrics"
	"github.com/marekvk/fotofable/internal/models"
)

// maxOverpassElements caps how many raw elements we process per query.
const maxOverpassElements = 10

// overpassResponse is the wire shape of an Overpass interpreter answer.
type overpassResponse struct {
	Elements []overpassElement `json:"elements"`
}

type overpassElement struct {
	Type   string            `json:"type"`
	ID     int64             `json:"id"`
	Lat    float64           `json:"lat"`
	Lon    float64           `json:"lon"`
	Center *overpassCenter   `json:"center"`
	Tags   map[string]string `json:"tags"`
}

// overpassCenter is the computed centroid Overpass attaches to ways and
// relations under `out center`.
type overpassCenter struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// coordinates returns the element position, falling back to the centroid for
// ways and relations.
func (el overpassElement) coordinates() (lat, lon float64, ok bool) {
	if el.Lat != 0 || el.Lon != 0 {
		return el.Lat, el.Lon, true
	}
	if el.Center != nil {
		return el.Center.Lat, el.Center.Lon, true
	}
	return 0, 0, false
}

// OverpassClient searches OSM POIs around a coordinate via the Overpass
// interpreter.
type OverpassClient struct {
	baseURL string
	client  *http.Client
	// bulkClient tolerates the long-running country-wide queries the
	// importer issues.
	bulkClient *http.Client
	pacer      *rate.Limiter
	cb         *gobreaker.CircuitBreaker[any]
}

// NewOverpass creates a POI search client sharing the given pacer.
func NewOverpass(cfg *config.GeoConfig, pacer *rate.Limiter) *OverpassClient {
	return &OverpassClient{
		baseURL:    strings.TrimRight(cfg.OverpassURL, "/"),
		client:     &http.Client{Timeout: 15 * time.Second},
		bulkClient: &http.Client{Timeout: 2 * time.Minute},
		pacer:      pacer,
		cb:         breaker.New("overpass"),
	}
}

// NearbyPOIs returns up to limit named tourism/historic/natural/worship POIs
// around the coordinate, ranked by relevance.
func (c *OverpassClient) NearbyPOIs(ctx context.Context, lat, lon, radiusKm float64, limit int) ([]models.GeoPlace, error) {
	if err := c.pacer.Wait(ctx); err != nil {
		return nil, err
	}

	start := time.Now()
	pois, err := breaker.Do(c.cb, func() ([]models.GeoPlace, error) {
		return c.search(ctx, lat, lon, radiusKm, limit)
	})
	metrics.RecordGeoAPICall("overpass", time.Since(start), err)
	return pois, err
}

func (c *OverpassClient) search(ctx context.Context, lat, lon, radiusKm float64, limit int) ([]models.GeoPlace, error) {
	radiusM := int(radiusKm * 1000)
	query := fmt.Sprintf(`[out:json][timeout:10];
(
  node["tourism"~"attraction|museum|monument|viewpoint|gallery"](around:%d,%f,%f);
  node["historic"](around:%d,%f,%f);
  node["natural"~"peak|beach|bay|cape|waterfall|volcano"](around:%d,%f,%f);
  node["amenity"~"place_of_worship"]["name"](around:%d,%f,%f);
);
out body qt 20;`,
		radiusM, lat, lon,
		radiusM, lat, lon,
		radiusM, lat, lon,
		radiusM, lat, lon)

	result, err := c.post(ctx, c.client, query)
	if err != nil {
		return nil, err
	}

	elements := result.Elements
	if len(elements) > maxOverpassElements {
		elements = elements[:maxOverpassElements]
	}

	pois := make([]models.GeoPlace, 0, len(elements))
	for _, el := range elements {
		if poi, ok := processElement(el, lat, lon); ok {
			pois = append(pois, poi)
		}
	}

	sort.Slice(pois, func(i, j int) bool { return pois[i].Relevance > pois[j].Relevance })
	if limit > 0 && len(pois) > limit {
		pois = pois[:limit]
	}
	return pois, nil
}

// post submits one Overpass QL query and decodes the answer.
func (c *OverpassClient) post(ctx context.Context, client *http.Client, query string) (*overpassResponse, error) {
	form := url.Values{"data": {query}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", userAgent)

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("overpass request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("overpass returned status %d", resp.StatusCode)
	}

	var result overpassResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode overpass response: %w", err)
	}
	return &result, nil
}

// CountryPOI is one raw tourism/historic element from a country-wide
// Overpass query, destined for the local store.
type CountryPOI struct {
	OSMID     int64
	Name      string
	Category  string
	Latitude  float64
	Longitude float64
	Tags      map[string]string
}

// CountryPOIs fetches named tourism and historic POIs for a whole country.
// The standard query resolves the country area through its admin_level=2
// boundary; broad drops that filter for dependent territories whose areas
// carry only the ISO tag.
func (c *OverpassClient) CountryPOIs(ctx context.Context, countryCode string, broad bool, limit int) ([]CountryPOI, error) {
	if err := c.pacer.Wait(ctx); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 500
	}

	area := fmt.Sprintf(`area["ISO3166-1"=%q]["admin_level"="2"]->.a;`, countryCode)
	if broad {
		area = fmt.Sprintf(`area["ISO3166-1"=%q]->.a;`, countryCode)
	}
	query := fmt.Sprintf(`[out:json][timeout:90];
%s
(
  node["tourism"]["name"](area.a);
  way["tourism"]["name"](area.a);
  node["historic"]["name"](area.a);
  way["historic"]["name"](area.a);
);
out center qt %d;`, area, limit)

	start := time.Now()
	result, err := breaker.Do(c.cb, func() (*overpassResponse, error) {
		return c.post(ctx, c.bulkClient, query)
	})
	metrics.RecordGeoAPICall("overpass", time.Since(start), err)
	if err != nil {
		return nil, err
	}

	pois := make([]CountryPOI, 0, len(result.Elements))
	for _, el := range result.Elements {
		lat, lon, ok := el.coordinates()
		if !ok {
			continue
		}
		name := el.Tags["name"]
		if name == "" || name == "yes" || name == "no" {
			continue
		}
		var category string
		for _, key := range []string{"tourism", "historic"} {
			if value, ok := el.Tags[key]; ok {
				category = key + "=" + value
				break
			}
		}
		pois = append(pois, CountryPOI{
			OSMID:     el.ID,
			Name:      name,
			Category:  category,
			Latitude:  lat,
			Longitude: lon,
			Tags:      el.Tags,
		})
	}
	return pois, nil
}

// processElement turns one raw element into a ranked place. Unnamed nodes
// and junk names ("yes"/"no" from sloppy tagging) are dropped.
func processElement(el overpassElement, refLat, refLon float64) (models.GeoPlace, bool) {
	name := el.Tags["name"]
	if name == "" {
		name = el.Tags["name:fr"]
	}
	if name == "" {
		name = el.Tags["name:en"]
	}
	if name == "" {
		name = el.Tags["int_name"]
	}
	if name == "" || name == "yes" || name == "no" {
		return models.GeoPlace{}, false
	}

	var category string
	for _, key := range []string{"tourism", "historic", "natural", "amenity"} {
		if value, ok := el.Tags[key]; ok {
			category = key + "=" + value
			break
		}
	}

	distanceKm := HaversineKm(refLat, refLon, el.Lat, el.Lon)

	relevance := 1.0
	switch el.Tags["tourism"] {
	case "attraction", "museum", "monument":
		relevance += 0.7
	}
	if el.Tags["historic"] != "" {
		relevance += 0.6
	}
	switch el.Tags["natural"] {
	case "peak", "volcano", "waterfall":
		relevance += 0.5
	}
	if el.Tags["wikipedia"] != "" || el.Tags["wikidata"] != "" {
		relevance += 0.3
	}
	relevance -= distanceKm / 10 // distance malus
	if relevance < 0.1 {
		relevance = 0.1
	}

	return models.GeoPlace{
		Name:       name,
		Category:   category,
		Latitude:   el.Lat,
		Longitude:  el.Lon,
		DistanceKm: distanceKm,
		Relevance:  relevance,
	}, true
}

// HaversineKm returns the great-circle distance between two coordinates.
func HaversineKm(lat1, lon1, lat2, lon2 float64) float64 {
	const earthRadiusKm = 6371.0

	rlat1 := lat1 * math.Pi / 180
	rlat2 := lat2 * math.Pi / 180
	dlat := (lat2 - lat1) * math.Pi / 180
	dlon := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(dlat/2)*math.Sin(dlat/2) +
		math.Cos(rlat1)*math.Cos(rlat2)*math.Sin(dlon/2)*math.Sin(dlon/2)
	return earthRadiusKm * 2 * math.Asin(math.Sqrt(a))
}
