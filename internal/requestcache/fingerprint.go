// Fotofable - Contextual Photo Captioning and Duplicate Detection
// Copyright 2026 Marek K. (marekvk)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/marekvk/fotofable

package requestcache

import (
	"crypto/md5" //nolint:gosec // fingerprinting, not security
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
)

// Fingerprint produces a stable 16-hex-char key from a canonicalized
// parameter set. Keys are sorted so map iteration order cannot change the
// result; float coordinates should be pre-rounded by the caller.
func Fingerprint(params map[string]any) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&b, "%s=%v;", k, params[k])
	}

	sum := md5.Sum([]byte(b.String())) //nolint:gosec
	return hex.EncodeToString(sum[:])[:16]
}

// CaptionKey builds the fingerprint for a caption request. Coordinates are
// rounded to 4 decimal places (~11 m) so nearby retries share an entry;
// missing coordinates canonicalize to "none".
func CaptionKey(assetID string, lat, lon *float64, language, style string) string {
	latStr, lonStr := "none", "none"
	if lat != nil {
		latStr = fmt.Sprintf("%.4f", *lat)
	}
	if lon != nil {
		lonStr = fmt.Sprintf("%.4f", *lon)
	}
	return Fingerprint(map[string]any{
		"asset_id": assetID,
		"lat":      latStr,
		"lon":      lonStr,
		"language": language,
		"style":    style,
	})
}
