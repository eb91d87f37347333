// Fotofable - Contextual Photo Captioning and Duplicate Detection
// Copyright 2026 Marek K. (marekvk)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/marekvk/fotofable

package importer

import (
	"context"
	"encoding/xml"
	"fmt"
	"html"
	"io"
	"net/http"
	"strings"

	"github.com/marekvk/fotofable/internal/database"
	"github.com/marekvk/fotofable/internal/logging"
)

// unescoRow is one <row> of the World Heritage list XML export.
type unescoRow struct {
	IDNumber      int     `xml:"id_number"`
	Site          string  `xml:"site"`
	Latitude      float64 `xml:"latitude"`
	Longitude     float64 `xml:"longitude"`
	ISOCode       string  `xml:"iso_code"`
	Category      string  `xml:"category"`
	DateInscribed int     `xml:"date_inscribed"`
	Description   string  `xml:"short_description"`
}

// importUnesco downloads the global heritage-site XML once per import and
// upserts the rows belonging to the country. Territory aliases match sites
// filed under the administering country.
func (imp *Importer) importUnesco(ctx context.Context, countryCode string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imp.cfg.UnescoURL, http.NoBody)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/xml")

	resp, err := imp.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("fetch heritage list: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("fetch heritage list: status %d", resp.StatusCode)
	}

	sites, err := parseUnescoXML(resp.Body, countryCode)
	if err != nil {
		return 0, err
	}
	if len(sites) == 0 {
		logging.Debug().Str("country_code", countryCode).Msg("No heritage sites for country")
		return 0, nil
	}

	if err := imp.db.UpsertUnescoSites(ctx, countryCode, sites); err != nil {
		return 0, err
	}
	return len(sites), nil
}

// parseUnescoXML stream-decodes the heritage list, keeping only rows that
// match the country (directly or through a territory alias). The full list
// is ~1200 rows; decoding element-wise keeps memory flat.
func parseUnescoXML(r io.Reader, countryCode string) ([]database.UnescoSite, error) {
	decoder := xml.NewDecoder(r)
	var sites []database.UnescoSite

	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("decode heritage list: %w", err)
		}

		start, ok := tok.(xml.StartElement)
		if !ok || start.Name.Local != "row" {
			continue
		}

		var row unescoRow
		if err := decoder.DecodeElement(&row, &start); err != nil {
			return nil, fmt.Errorf("decode heritage row: %w", err)
		}
		if row.Site == "" || !matchesUnescoRow(countryCode, row.ISOCode, row.Site) {
			continue
		}

		sites = append(sites, database.UnescoSite{
			SiteID:        row.IDNumber,
			Name:          html.UnescapeString(row.Site),
			Description:   stripTags(row.Description),
			Latitude:      row.Latitude,
			Longitude:     row.Longitude,
			CountryCode:   countryCode,
			Category:      row.Category,
			DateInscribed: row.DateInscribed,
		})
	}
	return sites, nil
}

// stripTags flattens the HTML fragments UNESCO embeds in descriptions into
// plain text.
func stripTags(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	inTag := false
	for _, r := range s {
		switch {
		case r == '<':
			inTag = true
		case r == '>':
			inTag = false
		case !inTag:
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(html.UnescapeString(b.String()))
}
