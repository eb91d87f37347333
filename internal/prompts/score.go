// Fotofable - Contextual Photo Captioning and Duplicate Detection
// Copyright 2026 Marek K. (marekvk)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/marekvk/fotofable

package prompts

import "strings"

// ScoreCaption rates a caption in [0,1]: word count inside the ideal band
// scores highest, hashtag pollution is penalized per tag, and metaphor
// markers earn a small bonus.
func (c *Config) ScoreCaption(text string) float64 {
	text = strings.TrimSpace(text)
	if text == "" {
		return 0
	}

	words := strings.Fields(text)
	n := len(words)

	var score float64
	switch {
	case n >= c.Scoring.IdealWordsMin && n <= c.Scoring.IdealWordsMax:
		score = 0.8
	case n >= c.Scoring.IdealWordsMin/2 && n < c.Scoring.IdealWordsMin:
		score = 0.5
	case n > c.Scoring.IdealWordsMax:
		score = 0.6
	default:
		score = 0.3
	}

	hashtags := 0
	for _, w := range words {
		if strings.HasPrefix(w, "#") {
			hashtags++
		}
	}
	score -= float64(hashtags) * c.Scoring.HashtagPenalty

	lower := strings.ToLower(text)
	for _, marker := range c.Scoring.MetaphorMarkers {
		if marker != "" && strings.Contains(lower, strings.ToLower(marker)) {
			score += c.Scoring.MetaphorBonus
			break
		}
	}

	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}
