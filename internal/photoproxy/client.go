// Fotofable - Contextual Photo Captioning and Duplicate Detection
// Copyright 2026 Marek K. (marekvk)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/marekvk/fotofable

package photoproxy

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/marekvk/fotofable/internal/config"
	"github.com/marekvk/fotofable/internal/logging"
)

const (
	maxErrorBodySize = 64 * 1024

	// maxAssetSize caps a single asset download. Anything bigger than this
	// is not a photo we can caption anyway.
	maxAssetSize = 64 << 20
)

var (
	// ErrNotConfigured indicates no proxy URL is known from either boot
	// config or runtime settings.
	ErrNotConfigured = errors.New("photo proxy not configured")

	// ErrNotFound indicates the proxy does not know the asset or album.
	ErrNotFound = errors.New("asset not found")

	// ErrUnavailable indicates the proxy refused the connection or answered
	// with a server error after retries.
	ErrUnavailable = errors.New("photo proxy unavailable")
)

// AssetMetadata is the subset of proxy asset fields the duplicate detector
// needs to describe group members.
type AssetMetadata struct {
	ID            string `json:"id"`
	Filename      string `json:"originalFileName"`
	Path          string `json:"originalPath"`
	FileCreatedAt string `json:"fileCreatedAt"`
	ExifInfo      struct {
		FileSizeInByte int64 `json:"fileSizeInByte"`
	} `json:"exifInfo"`
}

// albumResponse is the wire shape of GET /api/albums/{id}.
type albumResponse struct {
	ID     string          `json:"id"`
	Assets []AssetMetadata `json:"assets"`
}

// Client talks to the photo-library proxy. Credentials come from the
// settings manager on every call; the boot config acts as fallback.
//
// Thread Safety: safe for concurrent use.
type Client struct {
	settings   *config.SettingsManager
	bootCfg    *config.PhotoProxyConfig
	client     *http.Client
	maxRetries int
	retryBase  time.Duration
}

// New creates a photo-proxy client. settings may be nil in tests; the boot
// config is then the only credential source.
func New(settings *config.SettingsManager, cfg *config.PhotoProxyConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		settings:   settings,
		bootCfg:    cfg,
		client:     &http.Client{Timeout: timeout},
		maxRetries: 3,
		retryBase:  time.Second,
	}
}

// credentials resolves the effective URL and API key, runtime settings
// winning over boot config.
func (c *Client) credentials() (string, string) {
	if c.settings != nil {
		return c.settings.PhotoProxy(c.bootCfg)
	}
	return c.bootCfg.URL, c.bootCfg.APIKey
}

// Configured reports whether a proxy URL is known.
func (c *Client) Configured() bool {
	url, _ := c.credentials()
	return url != ""
}

// Ping verifies connectivity and authentication against the proxy.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.get(ctx, "/api/server-info")
	return err
}

// DownloadAsset fetches the original bytes of one asset.
func (c *Client) DownloadAsset(ctx context.Context, assetID string) ([]byte, error) {
	return c.get(ctx, "/api/assets/"+assetID+"/original")
}

// Thumbnail fetches the preview-sized rendition of one asset. Preferred
// over the original for embedding work where full resolution buys nothing.
func (c *Client) Thumbnail(ctx context.Context, assetID string) ([]byte, error) {
	return c.get(ctx, "/api/assets/"+assetID+"/thumbnail?size=preview")
}

// AssetMetadata fetches filename, path, timestamp and size for one asset.
func (c *Client) AssetMetadata(ctx context.Context, assetID string) (*AssetMetadata, error) {
	body, err := c.get(ctx, "/api/assets/"+assetID)
	if err != nil {
		return nil, err
	}
	var meta AssetMetadata
	if err := json.Unmarshal(body, &meta); err != nil {
		return nil, fmt.Errorf("failed to decode asset metadata: %w", err)
	}
	return &meta, nil
}

// AlbumAssetIDs lists the asset ids belonging to an album.
func (c *Client) AlbumAssetIDs(ctx context.Context, albumID string) ([]string, error) {
	body, err := c.get(ctx, "/api/albums/"+albumID)
	if err != nil {
		return nil, err
	}
	var album albumResponse
	if err := json.Unmarshal(body, &album); err != nil {
		return nil, fmt.Errorf("failed to decode album: %w", err)
	}
	ids := make([]string, 0, len(album.Assets))
	for _, a := range album.Assets {
		if a.ID != "" {
			ids = append(ids, a.ID)
		}
	}
	return ids, nil
}

// get performs a GET with retry on transient failures. The backoff doubles
// per attempt and honors Retry-After when the proxy sends one.
func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	baseURL, apiKey := c.credentials()
	if baseURL == "" {
		return nil, ErrNotConfigured
	}
	url := strings.TrimRight(baseURL, "/") + path

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		body, retryAfter, err := c.doOnce(ctx, url, apiKey)
		if err == nil {
			return body, nil
		}
		lastErr = err
		if !errors.Is(err, ErrUnavailable) || attempt == c.maxRetries {
			return nil, lastErr
		}

		wait := c.retryBase * time.Duration(1<<attempt)
		if retryAfter > wait {
			wait = retryAfter
		}
		logging.Warn().
			Err(err).
			Str("url", url).
			Int("attempt", attempt+1).
			Dur("wait", wait).
			Msg("photo proxy call failed, retrying")

		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return nil, lastErr
}

// doOnce performs a single request. The second return value is the parsed
// Retry-After hint, zero when absent.
func (c *Client) doOnce(ctx context.Context, url, apiKey string) ([]byte, time.Duration, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/octet-stream, application/json")
	if apiKey != "" {
		req.Header.Set("X-API-Key", apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, 0, ctx.Err()
		}
		return nil, 0, fmt.Errorf("photo proxy request: %w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		body, err := io.ReadAll(io.LimitReader(resp.Body, maxAssetSize+1))
		if err != nil {
			return nil, 0, fmt.Errorf("failed to read response body: %w", err)
		}
		if len(body) > maxAssetSize {
			return nil, 0, fmt.Errorf("asset exceeds %d bytes", maxAssetSize)
		}
		return body, 0, nil
	case resp.StatusCode == http.StatusNotFound:
		return nil, 0, ErrNotFound
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		retryAfter := parseRetryAfter(resp.Header.Get("Retry-After"))
		body := readBodyForError(resp.Body)
		return nil, retryAfter, fmt.Errorf("photo proxy returned status %d (%s): %w", resp.StatusCode, string(body), ErrUnavailable)
	default:
		body := readBodyForError(resp.Body)
		return nil, 0, fmt.Errorf("photo proxy returned status %d (%s)", resp.StatusCode, string(body))
	}
}

// parseRetryAfter handles the delay-seconds form. The HTTP-date form is
// rare enough from a local proxy that we ignore it.
func parseRetryAfter(value string) time.Duration {
	if value == "" {
		return 0
	}
	seconds, err := strconv.Atoi(value)
	if err != nil || seconds <= 0 {
		return 0
	}
	return time.Duration(seconds) * time.Second
}

func readBodyForError(r io.Reader) []byte {
	limitedReader := io.LimitReader(r, maxErrorBodySize)
	body, err := io.ReadAll(limitedReader)
	if err != nil {
		return []byte("(failed to read response body)")
	}
	return body
}
