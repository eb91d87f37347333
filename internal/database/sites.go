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

// UnescoSite is one row of the world-heritage list.
type UnescoSite struct {
	SiteID        int
	Name          string
	Description   string
	Latitude      float64
	Longitude     float64
	CountryCode   string
	Category      string
	DateInscribed int
}

// UpsertUnescoSites inserts or updates heritage sites for one country.
func (db *DB) UpsertUnescoSites(ctx context.Context, countryCode string, sites []UnescoSite) error {
	if len(sites) == 0 {
		return nil
	}

	mu := db.acquireCountryLock(countryCode)
	defer mu.Unlock()

	ctx, cancel := ensureContext(ctx)
	defer cancel()

	start := time.Now()

	var b strings.Builder
	b.WriteString(`INSERT INTO unesco_sites (site_id, name, description, latitude, longitude, country_code, category, date_inscribed) VALUES `)

	args := make([]any, 0, len(sites)*8)
	for i, s := range sites {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString("(?, ?, ?, ?, ?, ?, ?, ?)")
		args = append(args, s.SiteID, s.Name, s.Description, s.Latitude, s.Longitude,
			s.CountryCode, s.Category, s.DateInscribed)
	}

	b.WriteString(` ON CONFLICT (site_id) DO UPDATE SET
		name = EXCLUDED.name,
		description = EXCLUDED.description,
		latitude = EXCLUDED.latitude,
		longitude = EXCLUDED.longitude,
		country_code = EXCLUDED.country_code,
		category = EXCLUDED.category,
		date_inscribed = EXCLUDED.date_inscribed`)

	_, err := db.conn.ExecContext(ctx, b.String(), args...)
	metrics.RecordDBQuery("upsert_batch", "unesco_sites", time.Since(start), err)
	if err != nil {
		return fmt.Errorf("failed to upsert unesco sites: %w", err)
	}
	return nil
}

// UnescoWithinRadius returns up to limit heritage sites within radiusKm,
// nearest first.
func (db *DB) UnescoWithinRadius(ctx context.Context, lat, lon, radiusKm float64, limit int) ([]models.GeoPlace, error) {
	ctx, cancel := ensureContext(ctx)
	defer cancel()

	start := time.Now()

	minLat, maxLat, minLon, maxLon := boundingBox(lat, lon, radiusKm)

	query := `SELECT name, category, latitude, longitude,
			haversine_distance(?, ?, latitude, longitude) AS distance_km
		FROM unesco_sites
		WHERE latitude BETWEEN ? AND ? AND longitude BETWEEN ? AND ?
			AND haversine_distance(?, ?, latitude, longitude) <= ?
		ORDER BY distance_km ASC
		LIMIT ?`

	stmt, err := db.getStmt(ctx, query)
	if err != nil {
		return nil, err
	}

	rows, err := stmt.QueryContext(ctx, lat, lon, minLat, maxLat, minLon, maxLon, lat, lon, radiusKm, limit)
	metrics.RecordDBQuery("select_radius", "unesco_sites", time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("failed to query unesco sites: %w", err)
	}
	defer closeQuietly(rows)

	var sites []models.GeoPlace
	for rows.Next() {
		var p models.GeoPlace
		if err := rows.Scan(&p.Name, &p.Category, &p.Latitude, &p.Longitude, &p.DistanceKm); err != nil {
			return nil, fmt.Errorf("failed to scan unesco row: %w", err)
		}
		// Nearest-first rank expressed as a relevance for downstream merging.
		p.Relevance = 1.0 / (p.DistanceKm + 0.1)
		sites = append(sites, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating unesco rows: %w", err)
	}
	return sites, nil
}

// CulturalSitesWithinRadius returns up to limit derived cultural sites
// within radiusKm, nearest first.
func (db *DB) CulturalSitesWithinRadius(ctx context.Context, lat, lon, radiusKm float64, limit int) ([]models.GeoPlace, error) {
	ctx, cancel := ensureContext(ctx)
	defer cancel()

	start := time.Now()

	minLat, maxLat, minLon, maxLon := boundingBox(lat, lon, radiusKm)

	query := `SELECT name, category, latitude, longitude,
			haversine_distance(?, ?, latitude, longitude) AS distance_km
		FROM cultural_sites
		WHERE latitude BETWEEN ? AND ? AND longitude BETWEEN ? AND ?
			AND haversine_distance(?, ?, latitude, longitude) <= ?
		ORDER BY distance_km ASC
		LIMIT ?`

	stmt, err := db.getStmt(ctx, query)
	if err != nil {
		return nil, err
	}

	rows, err := stmt.QueryContext(ctx, lat, lon, minLat, maxLat, minLon, maxLon, lat, lon, radiusKm, limit)
	metrics.RecordDBQuery("select_radius", "cultural_sites", time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("failed to query cultural sites: %w", err)
	}
	defer closeQuietly(rows)

	var sites []models.GeoPlace
	for rows.Next() {
		var p models.GeoPlace
		if err := rows.Scan(&p.Name, &p.Category, &p.Latitude, &p.Longitude, &p.DistanceKm); err != nil {
			return nil, fmt.Errorf("failed to scan cultural row: %w", err)
		}
		p.Relevance = 1.0 / (p.DistanceKm + 0.1)
		sites = append(sites, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating cultural rows: %w", err)
	}
	return sites, nil
}
