// Fotofable - Contextual Photo Captioning and Duplicate Detection
// Copyright 2026 Marek K. (marekvk)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/marekvk/fotofable

// Package models defines the wire and data types shared across Fotofable
// components: geographic context, caption results, duplicate groups, and the
// stream event taxonomy.
package models

// GeoPlace is a single ranked entry in a GeoLocation list: a city, cultural
// site, heritage site, or POI together with the distance used to rank it.
type GeoPlace struct {
	Name         string  `json:"name"`
	Category     string  `json:"category,omitempty"`
	FeatureClass string  `json:"feature_class,omitempty"`
	FeatureCode  string  `json:"feature_code,omitempty"`
	Latitude     float64 `json:"latitude"`
	Longitude    float64 `json:"longitude"`
	DistanceKm   float64 `json:"distance_km"`
	Relevance    float64 `json:"relevance"`
	Population   int64   `json:"population,omitempty"`
}

// GeoLocation is the ranked bundle of administrative, cultural, and touristic
// context produced by a resolver lookup.
//
// ConfidenceScore is the clipped sum of per-source contributions; DataSources
// contains a tag for every source that contributed a non-empty field.
type GeoLocation struct {
	Latitude         float64 `json:"latitude"`
	Longitude        float64 `json:"longitude"`
	FormattedAddress string  `json:"formatted_address"`

	City        string `json:"city,omitempty"`
	Region      string `json:"region,omitempty"`
	Country     string `json:"country,omitempty"`
	CountryCode string `json:"country_code,omitempty"`

	UnescoSites   []GeoPlace `json:"unesco_sites,omitempty"`
	CulturalSites []GeoPlace `json:"cultural_sites,omitempty"`
	NearbyPOIs    []GeoPlace `json:"nearby_pois,omitempty"`
	MajorCities   []GeoPlace `json:"major_cities,omitempty"`
	OSMPOIs       []GeoPlace `json:"osm_pois,omitempty"`
	Places        []GeoPlace `json:"places,omitempty"`

	DataSources     []string `json:"data_sources"`
	ConfidenceScore float64  `json:"confidence_score"`
}

// HasSource reports whether the named source contributed to this location.
func (g *GeoLocation) HasSource(tag string) bool {
	for _, s := range g.DataSources {
		if s == tag {
			return true
		}
	}
	return false
}

// AddSource records a contributing source tag exactly once.
func (g *GeoLocation) AddSource(tag string) {
	if !g.HasSource(tag) {
		g.DataSources = append(g.DataSources, tag)
	}
}

// BasicLocation returns the short "city, country" form used by the travel
// stage, or the empty string when neither field is known.
func (g *GeoLocation) BasicLocation() string {
	switch {
	case g.City != "" && g.Country != "":
		return g.City + ", " + g.Country
	case g.City != "":
		return g.City
	case g.Country != "":
		return g.Country
	default:
		return ""
	}
}

// CountryImport records a completed per-country reference-data import.
// Uniqueness is on the country code.
type CountryImport struct {
	CountryCode   string `json:"country_code"`
	GeonamesCount int    `json:"geonames_count"`
	UnescoCount   int    `json:"unesco_count"`
	CulturalCount int    `json:"cultural_count"`
	OSMCount      int    `json:"osm_count"`
	LastUpdated   string `json:"last_updated"`
}
