// Fotofable - Contextual Photo Captioning and Duplicate Detection
// Copyright 2026 Marek K. (marekvk)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/marekvk/fotofable

// Package modelclient implements the HTTP client to the Ollama-compatible
// model host: text generation, vision generation with inline image bytes,
// embeddings, and explicit model residency control.
//
// Failures surface as one of four distinct kinds (Timeout, Unavailable,
// Malformed, Empty). Transient kinds are retried with a fixed gap;
// Malformed and Empty are not. All outbound calls can be wrapped by a
// circuit breaker (CircuitBreakerClient) to stop hammering a dead host.
package modelclient
