// Fotofable - Contextual Photo Captioning and Duplicate Detection
// Copyright 2026 Marek K. (marekvk)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/marekvk/fotofable

// Package testinfra provides test infrastructure for integration testing with containers.
//
// This package uses testcontainers-go to manage Docker containers for integration tests,
// providing realistic testing environments that closely match production.
//
// # Model Host Container
//
// The OllamaContainer provides a real Ollama instance for testing model
// client integration:
//
//	func TestModelHostGenerate(t *testing.T) {
//	    testinfra.SkipIfNoDocker(t)
//	    ctx := context.Background()
//	    ollama, err := testinfra.NewOllamaContainer(ctx,
//	        testinfra.WithModels("tinyllama"),
//	    )
//	    if err != nil {
//	        t.Fatal(err)
//	    }
//	    defer ollama.Terminate(ctx)
//
//	    client := modelclient.New(&config.ModelHostConfig{URL: ollama.URL})
//	    out, err := client.GenerateText(ctx, "tinyllama", "Say hello", modelclient.Params{})
//	    // ...
//	}
//
// # Benefits Over Mocks
//
// Using real containers provides several advantages:
//   - Tests validate the actual Ollama API contract
//   - No mock drift (mocks getting out of sync with the real API)
//   - Model load/unload and embedding behavior match production
//
// # CI Considerations
//
// These tests require Docker and network access. In CI:
//   - Self-hosted runners have Docker pre-installed
//   - Container images are cached between runs
//   - Tests are skipped gracefully if Docker is unavailable
//
// Model pulls on a cold cache can take minutes; pick the smallest model that
// exercises the behavior under test (tinyllama for text, all-minilm for
// embeddings). All helpers here are behind the integration build tag; unit
// tests use the scripted fake clients inside each package instead.
package testinfra
