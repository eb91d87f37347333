// Fotofable - Contextual Photo Captioning and Duplicate Detection
// Copyright 2026 Marek K. (marekvk)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/marekvk/fotofable

// Package pipeline runs the staged caption generation: vision analysis,
// geographic resolution, travel and cultural enrichment, caption and
// hashtag generation, orchestrated per request.
//
// Stages degrade instead of failing: a dead model yields the stage's
// fallback output and the pipeline carries on, marking the degradation in
// warnings and the confidence score. Intermediate results leave the
// orchestrator only through the stream.Emitter, never through the network
// layer directly.
package pipeline
