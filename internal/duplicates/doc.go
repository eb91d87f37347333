// Fotofable - Contextual Photo Captioning and Duplicate Detection
// Copyright 2026 Marek K. (marekvk)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/marekvk/fotofable

// Package duplicates detects near-duplicate photos with perceptual
// embeddings from an Ollama-hosted model. It manages the embedding model's
// residency on the host (lazy load, idle unload), caches embeddings in a
// two-tier memory/Badger store keyed by file identity, and ranks each
// duplicate group by image quality so the best shot becomes the primary.
package duplicates
