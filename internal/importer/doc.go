// Fotofable - Contextual Photo Captioning and Duplicate Detection
// Copyright 2026 Marek K. (marekvk)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/marekvk/fotofable

// Package importer loads per-country geographic datasets into the spatial
// store on first sight of a coordinate: the GeoNames places archive, the
// cultural sites derived from it, UNESCO World Heritage rows and
// country-wide OSM POIs.
//
// Coordinates resolve to ISO codes through an explicit dependent-territory
// table before falling back to reverse geocoding, so an overseas territory
// imports its own compact dataset rather than the administering country's.
// An import ledger row is written only when at least one dataset succeeded;
// a fully failed import stays unmarked and the next lookup retries.
package importer
