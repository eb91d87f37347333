// Fotofable - Contextual Photo Captioning and Duplicate Detection
// Copyright 2026 Marek K. (marekvk)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/marekvk/fotofable

// Package prompts loads the human-editable YAML prompt/model configuration,
// dispenses templates keyed by (stage, language, style), and applies the
// post-processing rules (cleaning, scoring, fallbacks).
//
// The loaded configuration is an immutable snapshot swapped atomically on
// Reload: concurrent readers see either the prior or the new snapshot, never
// a torn one.
package prompts

import (
	"fmt"
	"regexp"
	"strings"
	"sync/atomic"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// GenerationParams are the model sampling parameters attached to a template.
type GenerationParams struct {
	Temperature float64 `koanf:"temperature" json:"temperature"`
	MaxTokens   int     `koanf:"max_tokens" json:"max_tokens"`
	TopP        float64 `koanf:"top_p" json:"top_p"`
}

// Template is one prompt string with its generation parameters. Placeholders
// use {name} syntax and are substituted by Render.
type Template struct {
	Text   string           `koanf:"text" json:"text"`
	Params GenerationParams `koanf:"params" json:"params"`
}

// Render substitutes {name} placeholders from the given values. Unknown
// placeholders are left intact so a template typo is visible in output.
func (t Template) Render(values map[string]string) string {
	out := t.Text
	for k, v := range values {
		out = strings.ReplaceAll(out, "{"+k+"}", v)
	}
	return out
}

// StagePrompts holds the main, short, and fallback variants for one pipeline
// stage.
type StagePrompts struct {
	Main     Template `koanf:"main" json:"main"`
	Short    Template `koanf:"short" json:"short"`
	Fallback Template `koanf:"fallback" json:"fallback"`
}

// Language describes one supported language and its accepted aliases.
type Language struct {
	Code    string   `koanf:"code" json:"code"`
	Name    string   `koanf:"name" json:"name"`
	Aliases []string `koanf:"aliases" json:"aliases"`
}

// PostProcessing holds the caption-cleaning rules.
type PostProcessing struct {
	StripPatterns  []string `koanf:"strip_patterns" json:"strip_patterns"`
	ForbiddenWords []string `koanf:"forbidden_words" json:"forbidden_words"`
	MaxLength      int      `koanf:"max_length" json:"max_length"`
	MaxSentences   int      `koanf:"max_sentences" json:"max_sentences"`
}

// ScoringWeights tune ScoreCaption.
type ScoringWeights struct {
	IdealWordsMin   int     `koanf:"ideal_words_min" json:"ideal_words_min"`
	IdealWordsMax   int     `koanf:"ideal_words_max" json:"ideal_words_max"`
	HashtagPenalty  float64 `koanf:"hashtag_penalty" json:"hashtag_penalty"`
	MetaphorBonus   float64 `koanf:"metaphor_bonus" json:"metaphor_bonus"`
	MetaphorMarkers []string `koanf:"metaphor_markers" json:"metaphor_markers"`
}

// Config is one immutable snapshot of the prompt file.
type Config struct {
	// Models maps role (vision, travel, travel_fallback, cultural, caption,
	// hashtags, embedding) to the model name served by the model host.
	Models map[string]string `koanf:"models" json:"models"`

	Languages []Language `koanf:"languages" json:"languages"`
	Styles    []string   `koanf:"styles" json:"styles"`

	// Stages maps stage key (vision, travel, cultural, caption, hashtags) to
	// its prompt variants. Caption prompts may be refined per style via the
	// "caption.<style>" key.
	Stages map[string]StagePrompts `koanf:"stages" json:"stages"`

	PostProcessing PostProcessing `koanf:"post_processing" json:"post_processing"`
	Scoring        ScoringWeights `koanf:"scoring" json:"scoring"`

	// FallbackCaptions maps language code -> error kind -> caption.
	FallbackCaptions map[string]map[string]string `koanf:"fallback_captions" json:"fallback_captions"`

	// compiled strip patterns, built at load time
	stripRes []*regexp.Regexp
}

// Store owns the current snapshot and the path it was loaded from.
type Store struct {
	path string
	cfg  atomic.Pointer[Config]
}

// Load reads and parses the prompt file, returning a ready Store.
func Load(path string) (*Store, error) {
	s := &Store{path: path}
	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// Reload re-parses the file and swaps the snapshot atomically. On parse
// failure the prior snapshot stays in place.
func (s *Store) Reload() error {
	k := koanf.New(".")
	if err := k.Load(file.Provider(s.path), yaml.Parser()); err != nil {
		return fmt.Errorf("failed to load prompt config %s: %w", s.path, err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return fmt.Errorf("failed to unmarshal prompt config: %w", err)
	}

	applyDefaults(cfg)

	for _, p := range cfg.PostProcessing.StripPatterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return fmt.Errorf("invalid strip pattern %q: %w", p, err)
		}
		cfg.stripRes = append(cfg.stripRes, re)
	}

	s.cfg.Store(cfg)
	return nil
}

// Snapshot returns the current immutable configuration.
func (s *Store) Snapshot() *Config {
	return s.cfg.Load()
}

// applyDefaults fills zero values a hand-edited file commonly omits.
func applyDefaults(cfg *Config) {
	if cfg.PostProcessing.MaxLength == 0 {
		cfg.PostProcessing.MaxLength = 800
	}
	if cfg.PostProcessing.MaxSentences == 0 {
		cfg.PostProcessing.MaxSentences = 4
	}
	if cfg.Scoring.IdealWordsMin == 0 {
		cfg.Scoring.IdealWordsMin = 40
	}
	if cfg.Scoring.IdealWordsMax == 0 {
		cfg.Scoring.IdealWordsMax = 120
	}
	if cfg.Scoring.HashtagPenalty == 0 {
		cfg.Scoring.HashtagPenalty = 0.05
	}
	if cfg.Scoring.MetaphorBonus == 0 {
		cfg.Scoring.MetaphorBonus = 0.1
	}
	if len(cfg.Languages) == 0 {
		cfg.Languages = []Language{
			{Code: "fr", Name: "Français", Aliases: []string{"french", "francais"}},
			{Code: "en", Name: "English", Aliases: []string{"english"}},
		}
	}
	if len(cfg.Styles) == 0 {
		cfg.Styles = []string{"creative", "descriptive", "minimal", "poetic"}
	}
}

// PromptFor resolves the template for a stage, preferring a per-style variant
// ("caption.creative") over the plain stage key. Returns false when the stage
// is unknown.
func (c *Config) PromptFor(stage, style string) (StagePrompts, bool) {
	if style != "" {
		if sp, ok := c.Stages[stage+"."+style]; ok {
			return sp, true
		}
	}
	sp, ok := c.Stages[stage]
	return sp, ok
}

// Normalize maps a language name or alias to its canonical code. Unknown
// inputs fall back to "fr", the original deployment's default.
func (c *Config) Normalize(language string) string {
	l := strings.ToLower(strings.TrimSpace(language))
	if l == "" {
		return "fr"
	}
	for _, lang := range c.Languages {
		if l == lang.Code || strings.EqualFold(l, lang.Name) {
			return lang.Code
		}
		for _, a := range lang.Aliases {
			if l == strings.ToLower(a) {
				return lang.Code
			}
		}
	}
	return "fr"
}

// FallbackCaption returns the configured caption for a language and error
// kind, falling back to the language's generic_error entry and then to a
// built-in string.
func (c *Config) FallbackCaption(language, kind string) string {
	if byLang, ok := c.FallbackCaptions[language]; ok {
		if caption, ok := byLang[kind]; ok {
			return caption
		}
		if caption, ok := byLang["generic_error"]; ok {
			return caption
		}
	}
	if language != "fr" {
		return c.FallbackCaption("fr", kind)
	}
	return "Une belle photo de voyage."
}

// ModelFor returns the model name for a role, or "" when unmapped.
func (c *Config) ModelFor(role string) string {
	return c.Models[role]
}
