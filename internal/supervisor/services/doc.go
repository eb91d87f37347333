// Fotofable - Contextual Photo Captioning and Duplicate Detection
// Copyright 2026 Marek K. (marekvk)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/marekvk/fotofable

// Package services contains suture.Service wrappers that adapt Fotofable
// components to supervised lifecycles: the HTTP server, the stream hub
// reaper and the interval-driven maintenance loops.
package services
