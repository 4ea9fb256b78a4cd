package analytics

import (
	"fmt"
	"regexp"
	"strings"
)

// DefaultKeywordMinLength is the shortest token treated as a keyword.
const DefaultKeywordMinLength = 4

// KeywordExtractor pulls lowercase word tokens of a minimum length from text.
type KeywordExtractor struct {
	pattern *regexp.Regexp
}

// NewKeywordExtractor creates an extractor for tokens of at least minLength
// word characters ([A-Za-z0-9_]). Values below 1 fall back to the default.
func NewKeywordExtractor(minLength int) *KeywordExtractor {
	if minLength < 1 {
		minLength = DefaultKeywordMinLength
	}
	return &KeywordExtractor{
		pattern: regexp.MustCompile(fmt.Sprintf(`\b\w{%d,}\b`, minLength)),
	}
}

// Extract returns every matching token in order of appearance.
// Duplicates are kept.
func (e *KeywordExtractor) Extract(text string) []string {
	if text == "" {
		return nil
	}
	return e.pattern.FindAllString(strings.ToLower(text), -1)
}

// First returns at most limit tokens from the start of text.
// A limit <= 0 means no limit.
func (e *KeywordExtractor) First(text string, limit int) []string {
	kws := e.Extract(text)
	if limit > 0 && len(kws) > limit {
		kws = kws[:limit]
	}
	return kws
}
