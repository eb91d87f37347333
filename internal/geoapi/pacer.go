// Fotofable - Contextual Photo Captioning and Duplicate Detection
// Copyright 2026 Marek K. (marekvk)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/marekvk/fotofable

package geoapi

import (
	"time"

	"golang.org/x/time/rate"
)

// NewPacer builds the shared limiter gating all external geo calls. The
// Nominatim usage policy asks for at most ~1 request per second; the default
// interval of 1.1s keeps a margin. Burst 1 means calls queue strictly.
func NewPacer(interval time.Duration) *rate.Limiter {
	if interval <= 0 {
		interval = 1100 * time.Millisecond
	}
	return rate.NewLimiter(rate.Every(interval), 1)
}
