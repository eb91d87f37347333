// Fotofable - Contextual Photo Captioning and Duplicate Detection
// Copyright 2026 Marek K. (marekvk)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/marekvk/fotofable

package geo

import (
	"fmt"
	"strings"

	"github.com/marekvk/fotofable/internal/models"
)

// Summary is the prompt-ready digest of a GeoLocation the pipeline stages
// consume. Every field is plain text; empty means the source contributed
// nothing.
type Summary struct {
	LocationBasic     string
	LocationDetailed  string
	CulturalContext   string
	NearbyAttractions string
	GeographicContext string
	ConfidenceLevel   string
}

// BuildSummary digests a resolved location for the caption pipeline.
func BuildSummary(loc *models.GeoLocation) Summary {
	if loc == nil {
		return Summary{}
	}

	s := Summary{
		LocationBasic:    loc.BasicLocation(),
		LocationDetailed: loc.FormattedAddress,
	}

	s.CulturalContext = culturalContext(loc)
	s.NearbyAttractions = nearbyAttractions(loc)
	s.GeographicContext = geographicContext(loc)

	switch {
	case loc.ConfidenceScore >= 0.8:
		s.ConfidenceLevel = "high"
	case loc.ConfidenceScore >= 0.5:
		s.ConfidenceLevel = "medium"
	default:
		s.ConfidenceLevel = "low"
	}
	return s
}

// culturalContext lists heritage and cultural sites nearest first, with
// distances, capped at five entries.
func culturalContext(loc *models.GeoLocation) string {
	var parts []string
	for _, site := range loc.UnescoSites {
		parts = append(parts, fmt.Sprintf("%s (UNESCO, %.1f km)", site.Name, site.DistanceKm))
	}
	for _, site := range loc.CulturalSites {
		parts = append(parts, fmt.Sprintf("%s (%.1f km)", site.Name, site.DistanceKm))
	}
	if len(parts) > 5 {
		parts = parts[:5]
	}
	return strings.Join(parts, "; ")
}

// nearbyAttractions lists the closest POIs across both POI lists, capped at
// five entries.
func nearbyAttractions(loc *models.GeoLocation) string {
	var parts []string
	for _, poi := range loc.OSMPOIs {
		parts = append(parts, poi.Name)
		if len(parts) == 5 {
			return strings.Join(parts, ", ")
		}
	}
	for _, poi := range loc.NearbyPOIs {
		parts = append(parts, poi.Name)
		if len(parts) == 5 {
			break
		}
	}
	return strings.Join(parts, ", ")
}

// geographicContext names the administrative frame: city, region, country.
func geographicContext(loc *models.GeoLocation) string {
	var parts []string
	for _, v := range []string{loc.City, loc.Region, loc.Country} {
		if v != "" {
			parts = append(parts, v)
		}
	}
	return strings.Join(parts, ", ")
}
