// Fotofable - Contextual Photo Captioning and Duplicate Detection
// Copyright 2026 Marek K. (marekvk)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/marekvk/fotofable

// Package stream implements the per-request event hub: bounded FIFO queues
// keyed by request id, the SSE and WebSocket reader loops with heartbeats,
// the inactivity reaper, and the Emitter abstraction workers use to publish
// progress without touching the network layer.
//
// Events for one request are strictly ordered; each queue has a single
// consumer. A client disconnect closes the connection while the worker runs
// to completion, its remaining events dropped harmlessly.
package stream
