// Fotofable - Contextual Photo Captioning and Duplicate Detection
// Copyright 2026 Marek K. (marekvk)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/marekvk/fotofable

package database

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/marekvk/fotofable/internal/logging"
	"github.com/marekvk/fotofable/internal/metrics"
	"github.com/marekvk/fotofable/internal/models"
)

// GeonameRecord is one row of the 19-column GeoNames dump.
type GeonameRecord struct {
	GeonameID        int64
	Name             string
	ASCIIName        string
	AlternateNames   string
	Latitude         float64
	Longitude        float64
	FeatureClass     string
	FeatureCode      string
	CountryCode      string
	CC2              string
	Admin1Code       string
	Admin2Code       string
	Admin3Code       string
	Admin4Code       string
	Population       int64
	Elevation        int
	DEM              int
	Timezone         string
	ModificationDate string
}

// CulturalFeatureCodes is the GeoNames feature-code allow-list used both to
// derive cultural_sites rows and to categorize resolver scans.
var CulturalFeatureCodes = []string{
	"MUS", "MNMT", "HSTS", "RUIN", "CSTL", "PAL", "CH", "MSQE", "TMPL",
	"SHRN", "ANS", "ARCH", "MNM", "OPRA", "THTR", "AMTH", "GDN", "ZOO",
}

const geonameColumns = 19

// UpsertGeonamesBatch inserts or updates a batch of place records. Batches
// for the same country are serialized; the importer caps batches at its
// configured size (1000 by default).
func (db *DB) UpsertGeonamesBatch(ctx context.Context, countryCode string, records []GeonameRecord) error {
	if len(records) == 0 {
		return nil
	}

	mu := db.acquireCountryLock(countryCode)
	defer mu.Unlock()

	ctx, cancel := ensureContext(ctx)
	defer cancel()

	start := time.Now()

	var b strings.Builder
	b.WriteString(`INSERT INTO geonames (
		geoname_id, name, ascii_name, alternate_names, latitude, longitude,
		feature_class, feature_code, country_code, cc2,
		admin1_code, admin2_code, admin3_code, admin4_code,
		population, elevation, dem, timezone, modification_date
	) VALUES `)

	args := make([]any, 0, len(records)*geonameColumns)
	for i, r := range records {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString("(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)")
		args = append(args,
			r.GeonameID, r.Name, r.ASCIIName, r.AlternateNames, r.Latitude, r.Longitude,
			r.FeatureClass, r.FeatureCode, r.CountryCode, r.CC2,
			r.Admin1Code, r.Admin2Code, r.Admin3Code, r.Admin4Code,
			r.Population, r.Elevation, r.DEM, r.Timezone, r.ModificationDate)
	}

	b.WriteString(` ON CONFLICT (geoname_id) DO UPDATE SET
		name = EXCLUDED.name,
		ascii_name = EXCLUDED.ascii_name,
		alternate_names = EXCLUDED.alternate_names,
		latitude = EXCLUDED.latitude,
		longitude = EXCLUDED.longitude,
		feature_class = EXCLUDED.feature_class,
		feature_code = EXCLUDED.feature_code,
		country_code = EXCLUDED.country_code,
		population = EXCLUDED.population,
		modification_date = EXCLUDED.modification_date`)

	_, err := db.conn.ExecContext(ctx, b.String(), args...)
	metrics.RecordDBQuery("upsert_batch", "geonames", time.Since(start), err)
	if err != nil {
		return fmt.Errorf("failed to upsert geonames batch: %w", err)
	}
	return nil
}

// DeriveCulturalSites populates cultural_sites from the country's geonames
// rows whose feature code is on the cultural allow-list. Returns the number
// of rows the country now contributes.
func (db *DB) DeriveCulturalSites(ctx context.Context, countryCode string) (int, error) {
	ctx, cancel := ensureContext(ctx)
	defer cancel()

	start := time.Now()

	placeholders := make([]string, len(CulturalFeatureCodes))
	args := make([]any, 0, len(CulturalFeatureCodes)+2)
	args = append(args, countryCode)
	for i, code := range CulturalFeatureCodes {
		placeholders[i] = "?"
		args = append(args, code)
	}

	query := fmt.Sprintf(`INSERT INTO cultural_sites (site_id, name, category, latitude, longitude, country_code, source)
		SELECT geoname_id, name, feature_code, latitude, longitude, country_code, 'geonames'
		FROM geonames
		WHERE country_code = ? AND feature_code IN (%s)
		ON CONFLICT (site_id) DO UPDATE SET
			name = EXCLUDED.name,
			category = EXCLUDED.category,
			latitude = EXCLUDED.latitude,
			longitude = EXCLUDED.longitude`, strings.Join(placeholders, ", "))

	_, err := db.conn.ExecContext(ctx, query, args...)
	metrics.RecordDBQuery("derive", "cultural_sites", time.Since(start), err)
	if err != nil {
		return 0, fmt.Errorf("failed to derive cultural sites: %w", err)
	}

	var count int
	countErr := db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM cultural_sites WHERE country_code = ?`, countryCode).Scan(&count)
	if countErr != nil {
		logging.Debug().Err(countErr).Msg("Failed to count derived cultural sites")
	}
	return count, nil
}

// PlacesWithinRadius returns up to limit place records within radiusKm of
// the point, scored population*1000/(distance+1) for populated places and
// 1/(distance+0.1) otherwise, best first.
func (db *DB) PlacesWithinRadius(ctx context.Context, lat, lon, radiusKm float64, limit int) ([]models.GeoPlace, error) {
	ctx, cancel := ensureContext(ctx)
	defer cancel()

	start := time.Now()

	minLat, maxLat, minLon, maxLon := boundingBox(lat, lon, radiusKm)

	query := `SELECT name, feature_class, feature_code, latitude, longitude, population,
			haversine_distance(?, ?, latitude, longitude) AS distance_km,
			CASE WHEN feature_class = 'P'
				THEN population * 1000.0 / (haversine_distance(?, ?, latitude, longitude) + 1)
				ELSE 1.0 / (haversine_distance(?, ?, latitude, longitude) + 0.1)
			END AS relevance
		FROM geonames
		WHERE latitude BETWEEN ? AND ? AND longitude BETWEEN ? AND ?
			AND haversine_distance(?, ?, latitude, longitude) <= ?
		ORDER BY relevance DESC
		LIMIT ?`

	stmt, err := db.getStmt(ctx, query)
	if err != nil {
		return nil, err
	}

	rows, err := stmt.QueryContext(ctx,
		lat, lon, lat, lon, lat, lon,
		minLat, maxLat, minLon, maxLon,
		lat, lon, radiusKm, limit)
	metrics.RecordDBQuery("select_radius", "geonames", time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("failed to query places: %w", err)
	}
	defer closeQuietly(rows)

	var places []models.GeoPlace
	for rows.Next() {
		var p models.GeoPlace
		if err := rows.Scan(&p.Name, &p.FeatureClass, &p.FeatureCode,
			&p.Latitude, &p.Longitude, &p.Population, &p.DistanceKm, &p.Relevance); err != nil {
			return nil, fmt.Errorf("failed to scan place row: %w", err)
		}
		places = append(places, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating place rows: %w", err)
	}
	return places, nil
}

// boundingBox returns the lat/lon prefilter window for a radius query so the
// haversine macro only runs on candidate rows.
func boundingBox(lat, lon, radiusKm float64) (minLat, maxLat, minLon, maxLon float64) {
	latDelta := radiusKm / 111.045
	cosLat := math.Cos(lat * math.Pi / 180)
	if cosLat < 0.01 {
		cosLat = 0.01 // near the poles the window degenerates to all longitudes
	}
	lonDelta := radiusKm / (111.32 * cosLat)
	if lonDelta > 180 {
		lonDelta = 180
	}
	return lat - latDelta, lat + latDelta, lon - lonDelta, lon + lonDelta
}
