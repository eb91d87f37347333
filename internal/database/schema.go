// Fotofable - Contextual Photo Captioning and Duplicate Detection
// Copyright 2026 Marek K. (marekvk)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/marekvk/fotofable

package database

import (
	"context"
	"fmt"
	"time"
)

// schemaContext returns a context with timeout for schema operations.
func schemaContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 60*time.Second)
}

// createMacros installs the SQL macros the spatial queries depend on.
// haversine_distance keeps all great-circle math inside the database so no
// spatial extension is required.
func (db *DB) createMacros() error {
	ctx, cancel := schemaContext()
	defer cancel()

	macro := `CREATE OR REPLACE MACRO haversine_distance(lat1, lon1, lat2, lon2) AS (
		2 * 6371.0 * asin(sqrt(
			pow(sin(radians(lat2 - lat1) / 2), 2) +
			cos(radians(lat1)) * cos(radians(lat2)) *
			pow(sin(radians(lon2 - lon1) / 2), 2)
		))
	)`

	if _, err := db.conn.ExecContext(ctx, macro); err != nil {
		return fmt.Errorf("failed to create haversine_distance macro: %w", err)
	}
	return nil
}

// createTables creates the reference-data tables.
func (db *DB) createTables() error {
	ctx, cancel := schemaContext()
	defer cancel()

	for _, query := range getTableCreationQueries() {
		if _, err := db.conn.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to execute query: %s: %w", query, err)
		}
	}
	return nil
}

// getTableCreationQueries returns the table creation SQL statements.
func getTableCreationQueries() []string {
	return []string{
		// ============================================
		// GeoNames place records (one row per feature)
		// Columns follow the 19-column GeoNames dump layout.
		// ============================================
		`CREATE TABLE IF NOT EXISTS geonames (
			geoname_id BIGINT PRIMARY KEY,
			name TEXT NOT NULL,
			ascii_name TEXT,
			alternate_names TEXT,
			latitude DOUBLE NOT NULL,
			longitude DOUBLE NOT NULL,
			feature_class TEXT,
			feature_code TEXT,
			country_code TEXT,
			cc2 TEXT,
			admin1_code TEXT,
			admin2_code TEXT,
			admin3_code TEXT,
			admin4_code TEXT,
			population BIGINT DEFAULT 0,
			elevation INTEGER,
			dem INTEGER,
			timezone TEXT,
			modification_date TEXT
		)`,

		// ============================================
		// UNESCO world heritage sites (from the whc XML)
		// ============================================
		`CREATE TABLE IF NOT EXISTS unesco_sites (
			site_id INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			description TEXT,
			latitude DOUBLE NOT NULL,
			longitude DOUBLE NOT NULL,
			country_code TEXT,
			category TEXT,
			date_inscribed INTEGER
		)`,

		// ============================================
		// Cultural sites derived from geonames feature codes
		// ============================================
		`CREATE TABLE IF NOT EXISTS cultural_sites (
			site_id BIGINT PRIMARY KEY,
			name TEXT NOT NULL,
			category TEXT,
			latitude DOUBLE NOT NULL,
			longitude DOUBLE NOT NULL,
			country_code TEXT,
			source TEXT DEFAULT 'geonames'
		)`,

		// ============================================
		// OSM POIs (tags kept as JSON text, per the Overpass payload)
		// ============================================
		`CREATE TABLE IF NOT EXISTS osm_pois (
			osm_id BIGINT PRIMARY KEY,
			name TEXT NOT NULL,
			category TEXT,
			latitude DOUBLE NOT NULL,
			longitude DOUBLE NOT NULL,
			tags TEXT,
			country_code TEXT
		)`,

		// ============================================
		// Per-country import ledger; a row means the country is loaded
		// ============================================
		`CREATE TABLE IF NOT EXISTS country_imports (
			country_code TEXT PRIMARY KEY,
			geonames_count INTEGER DEFAULT 0,
			unesco_count INTEGER DEFAULT 0,
			cultural_count INTEGER DEFAULT 0,
			osm_count INTEGER DEFAULT 0,
			last_updated TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
	}
}

// createIndexes creates indexes for the radius-query patterns. DuckDB has no
// true spatial index without the extension; the lat/lon pairs let the
// bounding-box prefilter skip row groups.
func (db *DB) createIndexes() error {
	ctx, cancel := schemaContext()
	defer cancel()

	indexes := []string{
		`CREATE INDEX IF NOT EXISTS idx_geonames_country ON geonames(country_code)`,
		`CREATE INDEX IF NOT EXISTS idx_geonames_latlon ON geonames(latitude, longitude)`,
		`CREATE INDEX IF NOT EXISTS idx_geonames_class ON geonames(feature_class)`,
		`CREATE INDEX IF NOT EXISTS idx_unesco_latlon ON unesco_sites(latitude, longitude)`,
		`CREATE INDEX IF NOT EXISTS idx_cultural_latlon ON cultural_sites(latitude, longitude)`,
		`CREATE INDEX IF NOT EXISTS idx_osm_latlon ON osm_pois(latitude, longitude)`,
	}

	for _, query := range indexes {
		if _, err := db.conn.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to create index: %s: %w", query, err)
		}
	}
	return nil
}
