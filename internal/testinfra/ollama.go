// Fotofable - Contextual Photo Captioning and Duplicate Detection
// Copyright 2026 Marek K. (marekvk)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/marekvk/fotofable

//go:build integration

package testinfra

import (
	"context"
	"fmt"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	// DefaultOllamaImage is the official Ollama Docker image.
	DefaultOllamaImage = "ollama/ollama:latest"

	// DefaultOllamaPort is the Ollama API port.
	DefaultOllamaPort = "11434"
)

// OllamaContainer represents a running Ollama container for testing.
type OllamaContainer struct {
	testcontainers.Container
	URL string
}

// OllamaOption configures the Ollama container.
type OllamaOption func(*ollamaConfig)

type ollamaConfig struct {
	image        string
	models       []string
	startTimeout time.Duration
	pullTimeout  time.Duration
}

// WithOllamaImage sets a custom Ollama Docker image.
func WithOllamaImage(image string) OllamaOption {
	return func(c *ollamaConfig) {
		c.image = image
	}
}

// WithModels pulls the given models after the container starts. Pulls can
// take minutes on a cold cache; pick the smallest model that exercises the
// behavior under test (tinyllama for text, all-minilm for embeddings).
func WithModels(models ...string) OllamaOption {
	return func(c *ollamaConfig) {
		c.models = append(c.models, models...)
	}
}

// WithStartTimeout sets the timeout for waiting for Ollama to start.
func WithStartTimeout(timeout time.Duration) OllamaOption {
	return func(c *ollamaConfig) {
		c.startTimeout = timeout
	}
}

// WithPullTimeout sets the timeout for each model pull.
func WithPullTimeout(timeout time.Duration) OllamaOption {
	return func(c *ollamaConfig) {
		c.pullTimeout = timeout
	}
}

// NewOllamaContainer creates and starts a new Ollama container for testing.
//
// Example:
//
//	ctx := context.Background()
//	ollama, err := NewOllamaContainer(ctx, WithModels("tinyllama"))
//	if err != nil {
//	    t.Fatal(err)
//	}
//	defer ollama.Terminate(ctx)
//
//	// Use ollama.URL as the model host URL
func NewOllamaContainer(ctx context.Context, opts ...OllamaOption) (*OllamaContainer, error) {
	cfg := &ollamaConfig{
		image:        DefaultOllamaImage,
		startTimeout: 60 * time.Second,
		pullTimeout:  10 * time.Minute,
	}

	for _, opt := range opts {
		opt(cfg)
	}

	req := testcontainers.ContainerRequest{
		Image:        cfg.image,
		ExposedPorts: []string{DefaultOllamaPort + "/tcp"},
		WaitingFor: wait.ForAll(
			wait.ForListeningPort(DefaultOllamaPort+"/tcp"),
			wait.ForHTTP("/api/version").WithPort(DefaultOllamaPort+"/tcp"),
		).WithStartupTimeout(cfg.startTimeout),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return nil, fmt.Errorf("create ollama container: %w", err)
	}

	for _, model := range cfg.models {
		if err := pullModel(ctx, container, model, cfg.pullTimeout); err != nil {
			container.Terminate(ctx) //nolint:errcheck
			return nil, fmt.Errorf("pull model %s: %w", model, err)
		}
	}

	host, err := container.Host(ctx)
	if err != nil {
		container.Terminate(ctx) //nolint:errcheck
		return nil, fmt.Errorf("get container host: %w", err)
	}

	port, err := container.MappedPort(ctx, DefaultOllamaPort)
	if err != nil {
		container.Terminate(ctx) //nolint:errcheck
		return nil, fmt.Errorf("get mapped port: %w", err)
	}

	return &OllamaContainer{
		Container: container,
		URL:       fmt.Sprintf("http://%s:%s", host, port.Port()),
	}, nil
}

// pullModel runs `ollama pull` inside the container so the test host needs
// no local Ollama installation.
func pullModel(ctx context.Context, container testcontainers.Container, model string, timeout time.Duration) error {
	pullCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	exitCode, _, err := container.Exec(pullCtx, []string{"ollama", "pull", model})
	if err != nil {
		return fmt.Errorf("exec ollama pull: %w", err)
	}
	if exitCode != 0 {
		return fmt.Errorf("ollama pull exited with code %d", exitCode)
	}
	return nil
}

// Terminate stops and removes the container.
func (c *OllamaContainer) Terminate(ctx context.Context) error {
	return c.Container.Terminate(ctx)
}
