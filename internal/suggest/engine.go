/*
Package suggest ranks personas against free-text context.

Scoring has two layers. Static rules add weight × (number of the rule's
trigger keywords found as substrings of the lowercased context). The
historical overlay then adds a flat bonus for every context keyword that
already appears in a persona's recorded keyword table. The best candidate is
returned only when its score clears the activation floor.
*/
package suggest

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/khanglvm/persona-mcp/internal/analytics"
)

// historyMatchBonus is added once per context keyword found in a persona's history.
const historyMatchBonus = 0.5

// PatternSource supplies the analytics record used for the historical overlay.
// *analytics.Store satisfies it.
type PatternSource interface {
	Load() *analytics.Record
}

// Options holds the scoring calibration.
type Options struct {
	Rules             []Rule
	ConfidenceDivisor float64
	ActivationFloor   float64
	MaxConfidence     float64
	KeywordMinLength  int

	// TrackingKeywordCap is the number of leading context keywords recorded per
	// activation. The engine itself never caps; the value lives here so one
	// Options value describes the whole scoring/tracking pair.
	TrackingKeywordCap int
}

// DefaultOptions returns the stock calibration.
func DefaultOptions() Options {
	return Options{
		Rules:              DefaultRules(),
		ConfidenceDivisor:  10,
		ActivationFloor:    1,
		MaxConfidence:      0.95,
		KeywordMinLength:   analytics.DefaultKeywordMinLength,
		TrackingKeywordCap: 5,
	}
}

// Suggestion is the top-ranked persona for a context.
type Suggestion struct {
	Persona    string  `json:"persona"`
	Confidence float64 `json:"confidence"`
	Reason     string  `json:"reason"`
}

// Candidate is one scored persona.
type Candidate struct {
	Persona string  `json:"persona"`
	Score   float64 `json:"score"`
}

// Engine scores contexts against a rule table and usage history.
type Engine struct {
	opts      Options
	source    PatternSource
	extractor *analytics.KeywordExtractor
}

// NewEngine creates an engine. A nil source disables the historical overlay.
// Zero-valued calibration fields fall back to DefaultOptions, except
// ActivationFloor: zero is a valid floor and is used as given.
func NewEngine(source PatternSource, opts Options) *Engine {
	def := DefaultOptions()
	if opts.Rules == nil {
		opts.Rules = def.Rules
	}
	if opts.ConfidenceDivisor <= 0 {
		opts.ConfidenceDivisor = def.ConfidenceDivisor
	}
	if opts.MaxConfidence <= 0 {
		opts.MaxConfidence = def.MaxConfidence
	}
	if opts.KeywordMinLength <= 0 {
		opts.KeywordMinLength = def.KeywordMinLength
	}
	if opts.TrackingKeywordCap <= 0 {
		opts.TrackingKeywordCap = def.TrackingKeywordCap
	}

	return &Engine{
		opts:      opts,
		source:    source,
		extractor: analytics.NewKeywordExtractor(opts.KeywordMinLength),
	}
}

// Options returns the effective calibration.
func (e *Engine) Options() Options {
	return e.opts
}

// Rank scores every available persona and returns those with a positive
// score, best first. Equal scores keep their order in available.
func (e *Engine) Rank(context string, available []string) []Candidate {
	if len(available) == 0 {
		return nil
	}

	lower := strings.ToLower(context)
	scores := make(map[string]float64, len(available))
	for _, name := range available {
		scores[name] = 0
	}

	for _, rule := range e.opts.Rules {
		if _, ok := scores[rule.Persona]; !ok {
			continue
		}
		matches := 0
		for _, kw := range rule.Keywords {
			if strings.Contains(lower, kw) {
				matches++
			}
		}
		if matches > 0 {
			scores[rule.Persona] += float64(matches) * rule.Weight
		}
	}

	if e.source != nil {
		keywords := e.extractor.Extract(context)
		if len(keywords) > 0 {
			rec := e.source.Load()
			for name := range scores {
				if !rec.HasPatterns(name) {
					continue
				}
				for _, kw := range keywords {
					if rec.HasKeyword(name, kw) {
						scores[name] += historyMatchBonus
					}
				}
			}
		}
	}

	ranked := make([]Candidate, 0, len(available))
	seen := make(map[string]bool, len(available))
	for _, name := range available {
		if seen[name] {
			continue
		}
		seen[name] = true
		if s := scores[name]; s > 0 {
			ranked = append(ranked, Candidate{Persona: name, Score: s})
		}
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})

	return ranked
}

// Suggest returns the best persona for context, or nil when nothing is
// available or the top score does not exceed the activation floor.
func (e *Engine) Suggest(context string, available []string) *Suggestion {
	ranked := e.Rank(context, available)
	if len(ranked) == 0 {
		return nil
	}

	top := ranked[0]
	if top.Score <= e.opts.ActivationFloor {
		return nil
	}

	return &Suggestion{
		Persona:    top.Persona,
		Confidence: e.Confidence(top.Score),
		Reason:     fmt.Sprintf("Context matches %s pattern", top.Persona),
	}
}

// Confidence normalizes a raw score into [0, MaxConfidence].
func (e *Engine) Confidence(score float64) float64 {
	c := math.Min(score/e.opts.ConfidenceDivisor, e.opts.MaxConfidence)
	if c < 0 {
		return 0
	}
	return c
}
