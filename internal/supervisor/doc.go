// Fotofable - Contextual Photo Captioning and Duplicate Detection
// Copyright 2026 Marek K. (marekvk)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/marekvk/fotofable

// Package supervisor provides Suture-based process supervision for Fotofable.
//
// The tree has three child supervisors under one root:
//
//   - streaming: the stream hub reaper
//   - maintenance: periodic housekeeping (temp-image reaping, embedding-model
//     idle sweep, request-cache expiry, database checkpoints)
//   - api: the HTTP server
//
// Layers isolate failures: a crashing maintenance loop restarts with backoff
// without taking the HTTP server down. Suture events are logged through
// sutureslog into the zerolog output via logging.NewSlogLogger.
package supervisor
