// Fotofable - Contextual Photo Captioning and Duplicate Detection
// Copyright 2026 Marek K. (marekvk)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/marekvk/fotofable

// Package database wraps the embedded DuckDB store holding the geographic
// reference data: GeoNames features, UNESCO world heritage sites, derived
// cultural sites, imported OSM POIs, and the per-country import ledger.
//
// All distance work goes through a haversine_distance SQL macro created at
// schema initialization, so spatial queries need no extension. Writes come
// in country-sized batches from the importer; reads are the radius queries
// issued by the resolver.
package database
