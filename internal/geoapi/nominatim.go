// Fotofable - Contextual Photo Captioning and Duplicate Detection
// Copyright 2026 Marek K. (marekvk)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/marekvk/fotofable

package geoapi

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/marekvk/fotofable/internal/breaker"
	"github.com/marekvk/fotofable/internal/config"
	"github.com/marekvk/fotofable/internal/metrics"
)

const userAgent = "Fotofable/1.0 (github.com/marekvk/fotofable)"

// Address carries the Nominatim address components the resolver consumes.
// Nominatim populates a different subset per place class; the resolver
// applies its own preference chain over these fields.
type Address struct {
	Tourism      string `json:"tourism"`
	Attraction   string `json:"attraction"`
	Road         string `json:"road"`
	Suburb       string `json:"suburb"`
	Hamlet       string `json:"hamlet"`
	Village      string `json:"village"`
	Town         string `json:"town"`
	City         string `json:"city"`
	Municipality string `json:"municipality"`
	County       string `json:"county"`
	State        string `json:"state"`
	Region       string `json:"region"`
	Country      string `json:"country"`
	CountryCode  string `json:"country_code"`
}

// ReverseResult is the parsed reverse-geocoding answer.
type ReverseResult struct {
	DisplayName string  `json:"display_name"`
	Name        string  `json:"name"`
	Class       string  `json:"class"`
	Type        string  `json:"type"`
	Address     Address `json:"address"`

	// Error is set by Nominatim itself when it cannot geocode the point,
	// still with HTTP 200.
	Error string `json:"error"`
}

// NominatimClient reverse-geocodes coordinates against a Nominatim server.
//
// Thread Safety: safe for concurrent use; the pacer serializes outbound
// calls.
type NominatimClient struct {
	baseURL string
	client  *http.Client
	pacer   *rate.Limiter
	cb      *gobreaker.CircuitBreaker[any]
}

// NewNominatim creates a reverse-geocoding client sharing the given pacer.
func NewNominatim(cfg *config.GeoConfig, pacer *rate.Limiter) *NominatimClient {
	return &NominatimClient{
		baseURL: strings.TrimRight(cfg.NominatimURL, "/"),
		client:  &http.Client{Timeout: 10 * time.Second},
		pacer:   pacer,
		cb:      breaker.New("nominatim"),
	}
}

// Reverse resolves one coordinate pair into address components. zoom 18
// requests building-level detail; the resolver discards what it does not
// need.
func (c *NominatimClient) Reverse(ctx context.Context, lat, lon float64) (*ReverseResult, error) {
	if err := c.pacer.Wait(ctx); err != nil {
		return nil, err
	}

	start := time.Now()
	result, err := breaker.Do(c.cb, func() (*ReverseResult, error) {
		return c.reverse(ctx, lat, lon)
	})
	metrics.RecordGeoAPICall("nominatim", time.Since(start), err)
	return result, err
}

func (c *NominatimClient) reverse(ctx context.Context, lat, lon float64) (*ReverseResult, error) {
	params := url.Values{}
	params.Set("lat", strconv.FormatFloat(lat, 'f', 6, 64))
	params.Set("lon", strconv.FormatFloat(lon, 'f', 6, 64))
	params.Set("format", "json")
	params.Set("addressdetails", "1")
	params.Set("extratags", "1")
	params.Set("namedetails", "1")
	params.Set("zoom", "18")
	params.Set("accept-language", "fr,en")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/reverse?"+params.Encode(), http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("nominatim request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("nominatim returned status %d", resp.StatusCode)
	}

	var result ReverseResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode nominatim response: %w", err)
	}
	if result.Error != "" {
		return nil, fmt.Errorf("nominatim: %s", result.Error)
	}
	return &result, nil
}
