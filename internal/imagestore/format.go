// Fotofable - Contextual Photo Captioning and Duplicate Detection
// Copyright 2026 Marek K. (marekvk)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/marekvk/fotofable

package imagestore

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif" // allow-listed decoders registered for image.Decode
	"image/jpeg"
	_ "image/png"

	"golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"

	"github.com/marekvk/fotofable/internal/logging"
)

func init() {
	// x/image/bmp ships a decoder but does not self-register.
	image.RegisterFormat("bmp", "BM", bmp.Decode, bmp.DecodeConfig)
}

// SniffFormat identifies the payload against the allow-list by magic bytes.
// Returns the canonical extension (jpeg, png, gif, bmp, webp).
func SniffFormat(data []byte) (string, error) {
	switch {
	case len(data) >= 3 && bytes.Equal(data[:3], []byte{0xFF, 0xD8, 0xFF}):
		return "jpeg", nil
	case len(data) >= 8 && bytes.Equal(data[:8], []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A}):
		return "png", nil
	case len(data) >= 6 && (bytes.Equal(data[:6], []byte("GIF87a")) || bytes.Equal(data[:6], []byte("GIF89a"))):
		return "gif", nil
	case len(data) >= 2 && bytes.Equal(data[:2], []byte("BM")):
		return "bmp", nil
	case len(data) >= 12 && bytes.Equal(data[:4], []byte("RIFF")) && bytes.Equal(data[8:12], []byte("WEBP")):
		return "webp", nil
	default:
		return "", fmt.Errorf("%w: unrecognized magic bytes", ErrBadFormat)
	}
}

// downscale re-encodes images whose longest side exceeds maxPx, preserving
// aspect ratio. Returns (original, false) when no scaling applies or the
// payload cannot be decoded; the model host sees the untouched bytes then.
func downscale(data []byte, format string, maxPx int) ([]byte, bool) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		logging.Debug().Err(err).Str("format", format).Msg("Downscale skipped: config decode failed")
		return data, false
	}
	if cfg.Width <= maxPx && cfg.Height <= maxPx {
		return data, false
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		logging.Debug().Err(err).Str("format", format).Msg("Downscale skipped: decode failed")
		return data, false
	}

	w, h := cfg.Width, cfg.Height
	if w >= h {
		h = h * maxPx / w
		w = maxPx
	} else {
		w = w * maxPx / h
		h = maxPx
	}
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Over, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: 90}); err != nil {
		logging.Debug().Err(err).Msg("Downscale skipped: jpeg encode failed")
		return data, false
	}
	return buf.Bytes(), true
}
