// Fotofable - Contextual Photo Captioning and Duplicate Detection
// Copyright 2026 Marek K. (marekvk)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/marekvk/fotofable

package geo

import (
	"fmt"
	"time"

	"github.com/uber/h3-go/v4"

	"github.com/marekvk/fotofable/internal/logging"
	"github.com/marekvk/fotofable/internal/metrics"
	"github.com/marekvk/fotofable/internal/models"
	"github.com/marekvk/fotofable/internal/requestcache"
)

// lookupCache stores resolved GeoLocations under two keys: the exact
// (rounded lat, rounded lon, radius) key and the (H3 cell, radius) key.
// Adjacent coordinates inside the same cell are served from the cell entry
// without a fresh resolution.
type lookupCache struct {
	cache      *requestcache.Cache
	ttl        time.Duration
	resolution int
}

func newLookupCache(capacity int, ttl time.Duration, resolution int) *lookupCache {
	if capacity <= 0 {
		capacity = 500
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	if resolution <= 0 {
		resolution = 7
	}
	return &lookupCache{
		cache:      requestcache.New(capacity, ttl),
		ttl:        ttl,
		resolution: resolution,
	}
}

// exactKey is the spec cache key: coordinates rounded to 6 decimals plus the
// radius.
func (lc *lookupCache) exactKey(lat, lon, radiusKm float64) string {
	return fmt.Sprintf("geo:%.6f:%.6f:%.1f", lat, lon, radiusKm)
}

// cellKey indexes by H3 cell so near-identical coordinates share an entry.
func (lc *lookupCache) cellKey(lat, lon, radiusKm float64) string {
	cell, err := h3.LatLngToCell(h3.NewLatLng(lat, lon), lc.resolution)
	if err != nil {
		logging.Debug().Err(err).Msg("H3 cell derivation failed, exact key only")
		return ""
	}
	return fmt.Sprintf("geocell:%s:%.1f", cell.String(), radiusKm)
}

// Get returns a cached location for the coordinates, preferring the exact
// key over the cell entry.
func (lc *lookupCache) Get(lat, lon, radiusKm float64) (*models.GeoLocation, bool) {
	if v, ok := lc.cache.Get(lc.exactKey(lat, lon, radiusKm)); ok {
		metrics.RecordCacheHit("geo")
		return v.(*models.GeoLocation), true
	}
	if key := lc.cellKey(lat, lon, radiusKm); key != "" {
		if v, ok := lc.cache.Get(key); ok {
			metrics.RecordCacheHit("geo_cell")
			return v.(*models.GeoLocation), true
		}
	}
	metrics.RecordCacheMiss("geo")
	return nil, false
}

// Put stores the location under both keys.
func (lc *lookupCache) Put(lat, lon, radiusKm float64, loc *models.GeoLocation) {
	lc.cache.Set(lc.exactKey(lat, lon, radiusKm), loc, lc.ttl)
	if key := lc.cellKey(lat, lon, radiusKm); key != "" {
		lc.cache.Set(key, loc, lc.ttl)
	}
}

// Clear drops all cached lookups.
func (lc *lookupCache) Clear() {
	lc.cache.Clear()
}

// Stats exposes the underlying cache counters.
func (lc *lookupCache) Stats() requestcache.Stats {
	return lc.cache.Stats()
}
