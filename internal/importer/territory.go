// Fotofable - Contextual Photo Captioning and Duplicate Detection
// Copyright 2026 Marek K. (marekvk)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/marekvk/fotofable

package importer

import "strings"

// territoryBox maps a coordinate window to a dependent-territory ISO code.
// Reverse geocoders frequently answer with the administering country for
// overseas territories; photos taken in French Polynesia must import PF
// data, not the whole of metropolitan France.
type territoryBox struct {
	code           string
	minLat, maxLat float64
	minLon, maxLon float64
}

// dependentTerritories covers the overseas and dependent territories whose
// places GeoNames ships as separate country files. Boxes are generous; they
// only need to beat the parent-country answer, not each other (none overlap).
var dependentTerritories = []territoryBox{
	{code: "PF", minLat: -28.0, maxLat: -7.0, minLon: -155.0, maxLon: -134.0}, // French Polynesia
	{code: "NC", minLat: -23.5, maxLat: -18.0, minLon: 162.5, maxLon: 169.0},  // New Caledonia
	{code: "WF", minLat: -14.5, maxLat: -13.0, minLon: -178.5, maxLon: -176.0},
	{code: "RE", minLat: -21.5, maxLat: -20.8, minLon: 55.2, maxLon: 55.9}, // Reunion
	{code: "YT", minLat: -13.1, maxLat: -12.5, minLon: 44.9, maxLon: 45.4}, // Mayotte
	{code: "GP", minLat: 15.8, maxLat: 16.6, minLon: -61.9, maxLon: -60.9}, // Guadeloupe
	{code: "MQ", minLat: 14.3, maxLat: 15.0, minLon: -61.3, maxLon: -60.7}, // Martinique
	{code: "GF", minLat: 2.1, maxLat: 5.8, minLon: -54.6, maxLon: -51.6},   // French Guiana
	{code: "PM", minLat: 46.7, maxLat: 47.2, minLon: -56.5, maxLon: -56.1}, // Saint Pierre and Miquelon
	{code: "GL", minLat: 59.7, maxLat: 83.7, minLon: -73.1, maxLon: -11.3}, // Greenland
	{code: "PR", minLat: 17.8, maxLat: 18.6, minLon: -67.4, maxLon: -65.2}, // Puerto Rico
	{code: "GU", minLat: 13.2, maxLat: 13.7, minLon: 144.6, maxLon: 145.0}, // Guam
}

// TerritoryForCoordinates returns the dependent-territory code containing the
// point, or "" when none matches.
func TerritoryForCoordinates(lat, lon float64) string {
	for _, t := range dependentTerritories {
		if lat >= t.minLat && lat <= t.maxLat && lon >= t.minLon && lon <= t.maxLon {
			return t.code
		}
	}
	return ""
}

// unescoAlias resolves heritage-list rows for a territory. The UNESCO XML
// tags territory sites with the administering country's ISO code, so the
// filter matches the parent code plus a site-name keyword.
type unescoAlias struct {
	parent   string
	keywords []string
}

var unescoAliases = map[string]unescoAlias{
	"PF": {parent: "fr", keywords: []string{"taputapu", "marquises", "marquesas"}},
	"NC": {parent: "fr", keywords: []string{"caledonia", "calédonie"}},
	"WF": {parent: "fr", keywords: []string{"wallis", "futuna"}},
	"RE": {parent: "fr", keywords: []string{"réunion", "reunion"}},
	"GF": {parent: "fr", keywords: []string{"guyane", "guiana"}},
	"GL": {parent: "dk", keywords: []string{"greenland", "ilulissat", "aasivissuit", "kujataa"}},
	"PR": {parent: "us", keywords: []string{"puerto rico", "san juan"}},
}

// isDependency reports whether the code belongs to the dependent-territory
// table; these areas typically lack an admin_level=2 boundary in OSM.
func isDependency(code string) bool {
	for _, t := range dependentTerritories {
		if t.code == code {
			return true
		}
	}
	return false
}

// matchesUnescoRow reports whether a heritage row with the given ISO code
// list and site name belongs to countryCode, honoring territory aliases.
func matchesUnescoRow(countryCode, isoCodes, siteName string) bool {
	codes := strings.ToLower(isoCodes)
	want := strings.ToLower(countryCode)
	for _, code := range strings.Split(codes, ",") {
		if strings.TrimSpace(code) == want {
			return true
		}
	}

	alias, ok := unescoAliases[countryCode]
	if !ok {
		return false
	}
	parentListed := false
	for _, code := range strings.Split(codes, ",") {
		if strings.TrimSpace(code) == alias.parent {
			parentListed = true
			break
		}
	}
	if !parentListed {
		return false
	}
	name := strings.ToLower(siteName)
	for _, kw := range alias.keywords {
		if strings.Contains(name, kw) {
			return true
		}
	}
	return false
}
