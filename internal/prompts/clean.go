// Fotofable - Contextual Photo Captioning and Duplicate Detection
// Copyright 2026 Marek K. (marekvk)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/marekvk/fotofable

package prompts

import (
	"regexp"
	"strings"
)

var (
	whitespaceRe = regexp.MustCompile(`\s+`)
	// sentenceRe splits on sentence-ending punctuation followed by a space.
	sentenceRe = regexp.MustCompile(`([.!?])\s+`)
)

// CleanCaption applies the post-processing rules: strip patterns, forbidden
// words, whitespace collapse, and sentence truncation when the text exceeds
// the character budget. The operation is idempotent.
func (c *Config) CleanCaption(text string) string {
	out := text

	for _, re := range c.stripRes {
		out = re.ReplaceAllString(out, "")
	}

	for _, w := range c.PostProcessing.ForbiddenWords {
		if w == "" {
			continue
		}
		re, err := regexp.Compile(`(?i)\b` + regexp.QuoteMeta(w) + `\b`)
		if err != nil {
			continue
		}
		out = re.ReplaceAllString(out, "")
	}

	out = whitespaceRe.ReplaceAllString(out, " ")
	out = strings.TrimSpace(out)

	if c.PostProcessing.MaxLength > 0 && len(out) > c.PostProcessing.MaxLength {
		out = truncateSentences(out, c.PostProcessing.MaxSentences)
	}

	return out
}

// truncateSentences keeps the first n sentences of text.
func truncateSentences(text string, n int) string {
	if n <= 0 {
		n = 1
	}

	// Re-insert the terminator that the split consumes.
	parts := sentenceRe.Split(text, -1)
	terms := sentenceRe.FindAllStringSubmatch(text, -1)

	if len(parts) <= n {
		return text
	}

	var b strings.Builder
	for i := 0; i < n && i < len(parts); i++ {
		b.WriteString(parts[i])
		if i < len(terms) {
			b.WriteString(terms[i][1])
			if i < n-1 {
				b.WriteString(" ")
			}
		}
	}
	return strings.TrimSpace(b.String())
}
