// Fotofable - Contextual Photo Captioning and Duplicate Detection
// Copyright 2026 Marek K. (marekvk)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/marekvk/fotofable

package importer

import (
	"archive/zip"
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/marekvk/fotofable/internal/database"
	"github.com/marekvk/fotofable/internal/logging"
)

// geonamesColumns is the fixed column count of a GeoNames dump row.
const geonamesColumns = 19

// maxArchiveSize caps the downloaded zip; the largest country files are
// around 60 MB compressed.
const maxArchiveSize = 256 << 20

// importGeonames downloads the per-country archive, stream-parses the
// tab-separated rows and upserts them in batches.
func (imp *Importer) importGeonames(ctx context.Context, countryCode string) (int, error) {
	archive, err := imp.downloadArchive(ctx, countryCode)
	if err != nil {
		return 0, err
	}

	reader, err := zip.NewReader(bytes.NewReader(archive), int64(len(archive)))
	if err != nil {
		return 0, fmt.Errorf("open archive: %w", err)
	}

	var dump *zip.File
	want := countryCode + ".txt"
	for _, f := range reader.File {
		if f.Name == want {
			dump = f
			break
		}
	}
	if dump == nil {
		return 0, fmt.Errorf("archive has no %s", want)
	}

	rc, err := dump.Open()
	if err != nil {
		return 0, fmt.Errorf("open dump: %w", err)
	}
	defer func() {
		if closeErr := rc.Close(); closeErr != nil {
			logging.Warn().Err(closeErr).Msg("Error closing archive entry")
		}
	}()

	return imp.parseAndInsert(ctx, countryCode, rc)
}

func (imp *Importer) downloadArchive(ctx context.Context, countryCode string) ([]byte, error) {
	baseURL := strings.TrimRight(imp.cfg.GeonamesBaseURL, "/")
	url := fmt.Sprintf("%s/%s.zip", baseURL, countryCode)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := imp.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download %s: status %d", url, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxArchiveSize))
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", url, err)
	}
	return data, nil
}

// parseAndInsert reads dump rows and flushes them in batches. Short or
// malformed rows are skipped, not fatal; a single bad line must not sink a
// country import.
func (imp *Importer) parseAndInsert(ctx context.Context, countryCode string, r io.Reader) (int, error) {
	batchSize := imp.cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 1000
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	batch := make([]database.GeonameRecord, 0, batchSize)
	total := 0
	skipped := 0

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := imp.db.UpsertGeonamesBatch(ctx, countryCode, batch); err != nil {
			return fmt.Errorf("insert batch: %w", err)
		}
		total += len(batch)
		batch = batch[:0]
		return nil
	}

	for scanner.Scan() {
		record, ok := parseGeonameRow(scanner.Text())
		if !ok {
			skipped++
			continue
		}
		batch = append(batch, record)
		if len(batch) >= batchSize {
			if err := flush(); err != nil {
				return total, err
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return total, fmt.Errorf("parse dump: %w", err)
	}
	if err := flush(); err != nil {
		return total, err
	}

	if skipped > 0 {
		logging.Debug().Str("country_code", countryCode).Int("skipped", skipped).Msg("Skipped malformed dump rows")
	}
	return total, nil
}

// parseGeonameRow parses one 19-column tab-separated dump line.
func parseGeonameRow(line string) (database.GeonameRecord, bool) {
	fields := strings.Split(line, "\t")
	if len(fields) < geonamesColumns {
		return database.GeonameRecord{}, false
	}

	geonameID, err := strconv.ParseInt(fields[0], 10, 64)
	if err != nil || fields[1] == "" {
		return database.GeonameRecord{}, false
	}
	lat, err := strconv.ParseFloat(fields[4], 64)
	if err != nil {
		return database.GeonameRecord{}, false
	}
	lon, err := strconv.ParseFloat(fields[5], 64)
	if err != nil {
		return database.GeonameRecord{}, false
	}

	return database.GeonameRecord{
		GeonameID:        geonameID,
		Name:             fields[1],
		ASCIIName:        fields[2],
		AlternateNames:   fields[3],
		Latitude:         lat,
		Longitude:        lon,
		FeatureClass:     fields[6],
		FeatureCode:      fields[7],
		CountryCode:      fields[8],
		CC2:              fields[9],
		Admin1Code:       fields[10],
		Admin2Code:       fields[11],
		Admin3Code:       fields[12],
		Admin4Code:       fields[13],
		Population:       parseInt64(fields[14]),
		Elevation:        int(parseInt64(fields[15])),
		DEM:              int(parseInt64(fields[16])),
		Timezone:         fields[17],
		ModificationDate: fields[18],
	}, true
}

func parseInt64(s string) int64 {
	if s == "" {
		return 0
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return v
}
