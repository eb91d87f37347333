// Fotofable - Contextual Photo Captioning and Duplicate Detection
// Copyright 2026 Marek K. (marekvk)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/marekvk/fotofable

// Package geo implements the geographic resolver: given coordinates and a
// radius it produces a ranked GeoLocation bundle by fusing the local spatial
// store (places, heritage sites, cultural sites, OSM POIs) with Nominatim
// reverse geocoding and Overpass POI search.
//
// Lookup never fails: database errors and external API outages degrade to a
// minimal coordinates-only result with confidence 0.1. Results are cached
// keyed by (lat, lon rounded to 6 decimals, radius) and additionally by H3
// cell so adjacent lookups share entries. First sight of a new country
// triggers the importer before the store is queried.
package geo
