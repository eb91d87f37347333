// Fotofable - Contextual Photo Captioning and Duplicate Detection
// Copyright 2026 Marek K. (marekvk)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/marekvk/fotofable

package database

import (
	"context"
	"fmt"
	"time"

	"github.com/marekvk/fotofable/internal/metrics"
	"github.com/marekvk/fotofable/internal/models"
)

// CountryImported reports whether the country has a completed import row.
// This is the O(1) check guarding EnsureCountryLoaded.
func (db *DB) CountryImported(ctx context.Context, countryCode string) (bool, error) {
	ctx, cancel := ensureContext(ctx)
	defer cancel()

	start := time.Now()

	var count int
	err := db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM country_imports WHERE country_code = ?`, countryCode).Scan(&count)
	metrics.RecordDBQuery("select", "country_imports", time.Since(start), err)
	if err != nil {
		return false, fmt.Errorf("failed to check country import: %w", err)
	}
	return count > 0, nil
}

// RecordCountryImport writes (or refreshes) the import ledger row. Only
// called once at least one dataset succeeded; a missing row means retry.
func (db *DB) RecordCountryImport(ctx context.Context, imp models.CountryImport) error {
	ctx, cancel := ensureContext(ctx)
	defer cancel()

	start := time.Now()

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO country_imports (country_code, geonames_count, unesco_count, cultural_count, osm_count, last_updated)
		VALUES (?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT (country_code) DO UPDATE SET
			geonames_count = EXCLUDED.geonames_count,
			unesco_count = EXCLUDED.unesco_count,
			cultural_count = EXCLUDED.cultural_count,
			osm_count = EXCLUDED.osm_count,
			last_updated = EXCLUDED.last_updated`,
		imp.CountryCode, imp.GeonamesCount, imp.UnescoCount, imp.CulturalCount, imp.OSMCount)
	metrics.RecordDBQuery("upsert", "country_imports", time.Since(start), err)
	if err != nil {
		return fmt.Errorf("failed to record country import: %w", err)
	}
	return nil
}

// ListCountryImports returns the ledger ordered by country code.
func (db *DB) ListCountryImports(ctx context.Context) ([]models.CountryImport, error) {
	ctx, cancel := ensureContext(ctx)
	defer cancel()

	start := time.Now()

	rows, err := db.conn.QueryContext(ctx,
		`SELECT country_code, geonames_count, unesco_count, cultural_count, osm_count,
			strftime(last_updated, '%Y-%m-%d %H:%M:%S')
		FROM country_imports ORDER BY country_code`)
	metrics.RecordDBQuery("select", "country_imports", time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("failed to list country imports: %w", err)
	}
	defer closeQuietly(rows)

	var imports []models.CountryImport
	for rows.Next() {
		var imp models.CountryImport
		if err := rows.Scan(&imp.CountryCode, &imp.GeonamesCount, &imp.UnescoCount,
			&imp.CulturalCount, &imp.OSMCount, &imp.LastUpdated); err != nil {
			return nil, fmt.Errorf("failed to scan import row: %w", err)
		}
		imports = append(imports, imp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating import rows: %w", err)
	}
	return imports, nil
}

// DeleteCountryImport unmarks a country so the next request re-imports it.
// The reference rows themselves stay; the import replays as UPSERTs.
func (db *DB) DeleteCountryImport(ctx context.Context, countryCode string) (bool, error) {
	ctx, cancel := ensureContext(ctx)
	defer cancel()

	start := time.Now()

	res, err := db.conn.ExecContext(ctx,
		`DELETE FROM country_imports WHERE country_code = ?`, countryCode)
	metrics.RecordDBQuery("delete", "country_imports", time.Since(start), err)
	if err != nil {
		return false, fmt.Errorf("failed to delete country import: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, nil //nolint:nilerr // driver without RowsAffected support; the delete itself succeeded
	}
	return n > 0, nil
}

// RecordCounts returns per-table row counts for the stats surface and
// backup verification.
func (db *DB) RecordCounts(ctx context.Context) (map[string]int64, error) {
	ctx, cancel := ensureContext(ctx)
	defer cancel()

	tables := []string{"geonames", "unesco_sites", "cultural_sites", "osm_pois", "country_imports"}
	counts := make(map[string]int64, len(tables))

	for _, table := range tables {
		var count int64
		// Table names come from the fixed list above, not user input.
		query := fmt.Sprintf("SELECT COUNT(*) FROM %s", table) //nolint:gosec
		if err := db.conn.QueryRowContext(ctx, query).Scan(&count); err != nil {
			return nil, fmt.Errorf("failed to count %s: %w", table, err)
		}
		counts[table] = count
	}
	return counts, nil
}
