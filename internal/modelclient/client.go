// Fotofable - Contextual Photo Captioning and Duplicate Detection
// Copyright 2026 Marek K. (marekvk)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/marekvk/fotofable

package modelclient

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/marekvk/fotofable/internal/config"
	"github.com/marekvk/fotofable/internal/logging"
)

// maxErrorBodySize limits how much of an error response body is read for
// diagnostics. Prevents unbounded allocation on large error pages.
const maxErrorBodySize = 64 * 1024

// Params are the sampling parameters for one generation call.
type Params struct {
	Temperature float64
	MaxTokens   int
	TopP        float64
}

// Interface defines the model-host operations the pipeline and the duplicate
// detector consume. Implemented by Client and CircuitBreakerClient for
// production and by mocks in tests.
type Interface interface {
	GenerateText(ctx context.Context, model, prompt string, params Params) (string, error)
	GenerateWithImage(ctx context.Context, model, prompt string, image []byte, params Params) (string, error)
	Embed(ctx context.Context, model string, image []byte) ([]float32, error)
	LoadModel(ctx context.Context, model string) error
	UnloadModel(ctx context.Context, model string) error
	Ping(ctx context.Context) error
}

// Client handles communication with an Ollama-compatible model host.
//
// Each call is independent and single-shot (stream:false); there is no
// implicit batching. Transient failures are retried up to MaxRetries with a
// fixed gap; Malformed and Empty responses are returned immediately.
//
// Thread Safety: safe for concurrent use. Each call builds its own request.
type Client struct {
	baseURL    string
	client     *http.Client
	maxRetries int
	retryDelay time.Duration
}

// New creates a model-host client from configuration.
func New(cfg *config.ModelHostConfig) *Client {
	retryDelay := cfg.RetryDelay
	if retryDelay <= 0 {
		retryDelay = time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.URL, "/"),
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
		maxRetries: cfg.MaxRetries,
		retryDelay: retryDelay,
	}
}

// generateRequest is the wire shape of POST /api/generate.
type generateRequest struct {
	Model     string          `json:"model"`
	Prompt    string          `json:"prompt"`
	Stream    bool            `json:"stream"`
	Images    []string        `json:"images,omitempty"`
	Options   generateOptions `json:"options"`
	KeepAlive string          `json:"keep_alive,omitempty"`
}

type generateOptions struct {
	Temperature float64 `json:"temperature,omitempty"`
	NumPredict  int     `json:"num_predict,omitempty"`
	TopP        float64 `json:"top_p,omitempty"`
}

// generateResponse is the single-shot response of /api/generate.
type generateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

// embedRequest is the wire shape of POST /api/embed.
type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// GenerateText generates text from a prompt.
func (c *Client) GenerateText(ctx context.Context, model, prompt string, params Params) (string, error) {
	return c.generate(ctx, generateRequest{
		Model:   model,
		Prompt:  prompt,
		Stream:  false,
		Options: toOptions(params),
	})
}

// GenerateWithImage generates text from a prompt plus inline image bytes.
// The image is base64-encoded into the request per the Ollama vision API.
func (c *Client) GenerateWithImage(ctx context.Context, model, prompt string, image []byte, params Params) (string, error) {
	return c.generate(ctx, generateRequest{
		Model:   model,
		Prompt:  prompt,
		Stream:  false,
		Images:  []string{base64.StdEncoding.EncodeToString(image)},
		Options: toOptions(params),
	})
}

// Embed computes a perceptual embedding for the image bytes.
func (c *Client) Embed(ctx context.Context, model string, image []byte) ([]float32, error) {
	body := embedRequest{
		Model: model,
		Input: []string{base64.StdEncoding.EncodeToString(image)},
	}

	var out embedResponse
	if err := c.post(ctx, "/api/embed", body, &out); err != nil {
		return nil, err
	}
	if len(out.Embeddings) == 0 || len(out.Embeddings[0]) == 0 {
		return nil, fmt.Errorf("embed %s: %w", model, ErrEmpty)
	}
	return out.Embeddings[0], nil
}

// LoadModel asks the host to make the model resident with a long keep-alive.
// An empty prompt triggers a load without generating anything.
func (c *Client) LoadModel(ctx context.Context, model string) error {
	var out generateResponse
	return c.post(ctx, "/api/generate", generateRequest{
		Model:     model,
		Stream:    false,
		KeepAlive: "30m",
	}, &out)
}

// UnloadModel asks the host to evict the model (keep_alive 0).
func (c *Client) UnloadModel(ctx context.Context, model string) error {
	var out generateResponse
	return c.post(ctx, "/api/generate", generateRequest{
		Model:     model,
		Stream:    false,
		KeepAlive: "0",
	}, &out)
}

// Ping verifies connectivity to the model host.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/tags", http.NoBody)
	if err != nil {
		return fmt.Errorf("failed to create ping request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("model host ping: %w", classifyTransportError(err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("model host ping failed with status %d: %w", resp.StatusCode, ErrUnavailable)
	}
	return nil
}

// generate posts a generation request, validating the response text.
func (c *Client) generate(ctx context.Context, body generateRequest) (string, error) {
	var out generateResponse
	if err := c.post(ctx, "/api/generate", body, &out); err != nil {
		return "", err
	}

	text := strings.TrimSpace(out.Response)
	if text == "" {
		return "", fmt.Errorf("generate %s: %w", body.Model, ErrEmpty)
	}
	return text, nil
}

// post sends one JSON request with retry on transient failures. The retry
// gap is fixed (retryDelay) and the wait is context-cancellable.
func (c *Client) post(ctx context.Context, path string, body, result any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		lastErr = c.doOnce(ctx, path, payload, result)
		if lastErr == nil {
			return nil
		}
		if !retryable(lastErr) || attempt == c.maxRetries {
			return lastErr
		}

		logging.Warn().
			Err(lastErr).
			Str("path", path).
			Int("attempt", attempt+1).
			Msg("model host call failed, retrying")

		select {
		case <-time.After(c.retryDelay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return lastErr
}

// doOnce performs a single request/response cycle and classifies failures.
func (c *Client) doOnce(ctx context.Context, path string, payload []byte, result any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", path, classifyTransportError(err))
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		// fall through to decode
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		body := readBodyForError(resp.Body)
		return fmt.Errorf("%s returned status %d (%s): %w", path, resp.StatusCode, string(body), ErrUnavailable)
	default:
		body := readBodyForError(resp.Body)
		return fmt.Errorf("%s returned status %d (%s): %w", path, resp.StatusCode, string(body), ErrMalformed)
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("%s: failed to decode response: %w", path, ErrMalformed)
	}
	return nil
}

// toOptions maps public params onto the wire options.
func toOptions(p Params) generateOptions {
	return generateOptions{
		Temperature: p.Temperature,
		NumPredict:  p.MaxTokens,
		TopP:        p.TopP,
	}
}

// readBodyForError reads up to maxErrorBodySize bytes for diagnostics.
func readBodyForError(r io.Reader) []byte {
	limitedReader := io.LimitReader(r, maxErrorBodySize)
	body, err := io.ReadAll(limitedReader)
	if err != nil {
		return []byte("(failed to read response body)")
	}
	if len(body) == maxErrorBodySize {
		return append(body, []byte("... (truncated)")...)
	}
	return body
}
