// Fotofable - Contextual Photo Captioning and Duplicate Detection
// Copyright 2026 Marek K. (marekvk)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/marekvk/fotofable

package database

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/marekvk/fotofable/internal/metrics"
	"github.com/marekvk/fotofable/internal/models"
)

// OSMPOI is one imported OpenStreetMap point of interest. Tags holds the raw
// tag map serialized as JSON text.
type OSMPOI struct {
	OSMID       int64
	Name        string
	Category    string
	Latitude    float64
	Longitude   float64
	Tags        string
	CountryCode string
}

// UpsertOSMPOIs inserts or updates POIs for one country.
func (db *DB) UpsertOSMPOIs(ctx context.Context, countryCode string, pois []OSMPOI) error {
	if len(pois) == 0 {
		return nil
	}

	mu := db.acquireCountryLock(countryCode)
	defer mu.Unlock()

	ctx, cancel := ensureContext(ctx)
	defer cancel()

	start := time.Now()

	var b strings.Builder
	b.WriteString(`INSERT INTO osm_pois (osm_id, name, category, latitude, longitude, tags, country_code) VALUES `)

	args := make([]any, 0, len(pois)*7)
	for i, p := range pois {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString("(?, ?, ?, ?, ?, ?, ?)")
		args = append(args, p.OSMID, p.Name, p.Category, p.Latitude, p.Longitude, p.Tags, p.CountryCode)
	}

	b.WriteString(` ON CONFLICT (osm_id) DO UPDATE SET
		name = EXCLUDED.name,
		category = EXCLUDED.category,
		latitude = EXCLUDED.latitude,
		longitude = EXCLUDED.longitude,
		tags = EXCLUDED.tags`)

	_, err := db.conn.ExecContext(ctx, b.String(), args...)
	metrics.RecordDBQuery("upsert_batch", "osm_pois", time.Since(start), err)
	if err != nil {
		return fmt.Errorf("failed to upsert osm pois: %w", err)
	}
	return nil
}

// OSMPOIsWithinRadius returns up to limit POIs within radiusKm, ranked
// tourism > historic > amenity > other and then by distance.
func (db *DB) OSMPOIsWithinRadius(ctx context.Context, lat, lon, radiusKm float64, limit int) ([]models.GeoPlace, error) {
	ctx, cancel := ensureContext(ctx)
	defer cancel()

	start := time.Now()

	minLat, maxLat, minLon, maxLon := boundingBox(lat, lon, radiusKm)

	query := `SELECT name, category, latitude, longitude,
			haversine_distance(?, ?, latitude, longitude) AS distance_km,
			CASE category
				WHEN 'tourism' THEN 0
				WHEN 'historic' THEN 1
				WHEN 'amenity' THEN 2
				ELSE 3
			END AS category_rank
		FROM osm_pois
		WHERE latitude BETWEEN ? AND ? AND longitude BETWEEN ? AND ?
			AND haversine_distance(?, ?, latitude, longitude) <= ?
		ORDER BY category_rank ASC, distance_km ASC
		LIMIT ?`

	stmt, err := db.getStmt(ctx, query)
	if err != nil {
		return nil, err
	}

	rows, err := stmt.QueryContext(ctx, lat, lon, minLat, maxLat, minLon, maxLon, lat, lon, radiusKm, limit)
	metrics.RecordDBQuery("select_radius", "osm_pois", time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("failed to query osm pois: %w", err)
	}
	defer closeQuietly(rows)

	var pois []models.GeoPlace
	for rows.Next() {
		var p models.GeoPlace
		var categoryRank int
		if err := rows.Scan(&p.Name, &p.Category, &p.Latitude, &p.Longitude, &p.DistanceKm, &categoryRank); err != nil {
			return nil, fmt.Errorf("failed to scan osm row: %w", err)
		}
		p.Relevance = float64(3-categoryRank) + 1.0/(p.DistanceKm+0.1)
		pois = append(pois, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating osm rows: %w", err)
	}
	return pois, nil
}
