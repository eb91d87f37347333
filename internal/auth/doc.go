// Fotofable - Contextual Photo Captioning and Duplicate Detection
// Copyright 2026 Marek K. (marekvk)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/marekvk/fotofable

// Package auth guards the admin API surface with HMAC-signed bearer tokens
// derived from the configured admin secret.
package auth
