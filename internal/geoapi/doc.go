// Fotofable - Contextual Photo Captioning and Duplicate Detection
// Copyright 2026 Marek K. (marekvk)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/marekvk/fotofable

// Package geoapi implements the clients for the two public OpenStreetMap
// services the resolver enriches from: Nominatim reverse geocoding and
// Overpass POI search.
//
// Both services are shared community infrastructure with usage policies.
// A single pacer gates all outbound calls to at most one request per
// configured interval process-wide, and each client sits behind its own
// circuit breaker. Failures are soft: the resolver degrades to local data.
package geoapi
