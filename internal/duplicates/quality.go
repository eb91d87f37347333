// Fotofable - Contextual Photo Captioning and Duplicate Detection
// Copyright 2026 Marek K. (marekvk)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/marekvk/fotofable

package duplicates

import (
	"image"
	"math"
	"os"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"

	"github.com/marekvk/fotofable/internal/logging"
	"github.com/marekvk/fotofable/internal/models"
)

// Quality weights. Sharpness dominates because it separates burst shots
// best; the rest break ties.
const (
	weightSharpness  = 0.4
	weightExposure   = 0.2
	weightContrast   = 0.2
	weightResolution = 0.2
)

// AnalyzeQuality scores one image for duplicate-group ranking. A decode
// failure returns zeroed metrics and false; the member then ranks last.
func AnalyzeQuality(path string) (models.QualityMetrics, bool) {
	f, err := os.Open(path)
	if err != nil {
		logging.Debug().Err(err).Str("path", path).Msg("Quality analysis open failed")
		return models.QualityMetrics{}, false
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		logging.Debug().Err(err).Str("path", path).Msg("Quality analysis decode failed")
		return models.QualityMetrics{}, false
	}

	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w < 3 || h < 3 {
		return models.QualityMetrics{}, false
	}

	gray, value := luminancePlanes(img)

	sharpness := sharpnessScore(gray, w, h)
	contrast := contrastScore(gray)
	exposure := exposureScore(value)
	megapixels := float64(w*h) / 1e6
	resolution := math.Min(100, megapixels*10)

	overall := sharpness*weightSharpness +
		(100-math.Abs(exposure))*weightExposure +
		contrast*weightContrast +
		resolution*weightResolution

	return models.QualityMetrics{
		Sharpness:    sharpness,
		Exposure:     100 - math.Abs(exposure),
		Contrast:     contrast,
		Resolution:   resolution,
		OverallScore: math.Round(overall*10) / 10,
	}, true
}

// luminancePlanes extracts the grayscale plane (ITU-R 601 luma) and the HSV
// value plane (channel max) in one pass.
func luminancePlanes(img image.Image) (gray, value []float64) {
	bounds := img.Bounds()
	n := bounds.Dx() * bounds.Dy()
	gray = make([]float64, 0, n)
	value = make([]float64, 0, n)

	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, _ := img.At(x, y).RGBA()
			rf, gf, bf := float64(r>>8), float64(g>>8), float64(b>>8)
			gray = append(gray, 0.299*rf+0.587*gf+0.114*bf)
			value = append(value, math.Max(rf, math.Max(gf, bf)))
		}
	}
	return gray, value
}

// sharpnessScore is the variance of the 4-neighbor Laplacian, log-normalized
// to 0..100. Empirical bands: variance under 10 is hopelessly blurred, over
// 1000 is tack sharp.
func sharpnessScore(gray []float64, w, h int) float64 {
	var sum, sumSq float64
	count := 0
	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			i := y*w + x
			lap := 4*gray[i] - gray[i-1] - gray[i+1] - gray[i-w] - gray[i+w]
			sum += lap
			sumSq += lap * lap
			count++
		}
	}
	if count == 0 {
		return 0
	}
	mean := sum / float64(count)
	variance := sumSq/float64(count) - mean*mean

	switch {
	case variance < 10:
		return 0
	case variance > 1000:
		return 100
	default:
		return clamp((math.Log10(variance)-1)*33.33, 0, 100)
	}
}

// contrastScore is the grayscale standard deviation normalized against 64.
func contrastScore(gray []float64) float64 {
	if len(gray) == 0 {
		return 0
	}
	var sum float64
	for _, v := range gray {
		sum += v
	}
	mean := sum / float64(len(gray))
	var sumSq float64
	for _, v := range gray {
		d := v - mean
		sumSq += d * d
	}
	stddev := math.Sqrt(sumSq / float64(len(gray)))
	return math.Min(100, stddev/64*100)
}

// exposureScore analyzes the V-channel distribution. Negative means
// underexposed, positive overexposed; a balanced image scores near the
// mid-fraction weight.
func exposureScore(value []float64) float64 {
	if len(value) == 0 {
		return 0
	}
	var dark, bright, mid float64
	for _, v := range value {
		switch {
		case v < 50:
			dark++
		case v >= 205:
			bright++
		default:
			mid++
		}
	}
	total := float64(len(value))
	dark /= total
	bright /= total
	mid /= total

	switch {
	case dark > 0.5:
		return -50 * dark
	case bright > 0.3:
		return 50 * bright
	default:
		return 50 * mid
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
