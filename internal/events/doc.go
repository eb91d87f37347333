// Fotofable - Contextual Photo Captioning and Duplicate Detection
// Copyright 2026 Marek K. (marekvk)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/marekvk/fotofable

// Package events publishes completion notifications (captions, duplicate
// analyses, country imports) to NATS JetStream through Watermill. The broker
// is either external or an embedded in-process server; the whole feature is
// config-gated and a nil Service is a safe no-op.
package events
