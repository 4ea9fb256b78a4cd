package analytics

import (
	"fmt"
	"sort"
	"strings"
)

// DefaultTopKeywords is how many keywords per persona a report shows.
const DefaultTopKeywords = 3

// UsageCount pairs a persona with its activation count.
type UsageCount struct {
	Persona string `json:"persona"`
	Count   int    `json:"count"`
}

// PatternSummary lists the most frequent keywords for one persona.
type PatternSummary struct {
	Persona  string   `json:"persona"`
	Keywords []string `json:"keywords"`
}

// Report is a read-only digest of a Record.
type Report struct {
	Usage    []UsageCount     `json:"usage"`
	Patterns []PatternSummary `json:"patterns"`
}

// Summarize builds a report with usage sorted by count descending (ties by
// name) and up to topN keywords per persona.
func Summarize(r *Record, topN int) Report {
	if topN <= 0 {
		topN = DefaultTopKeywords
	}

	rep := Report{
		Usage:    make([]UsageCount, 0, len(r.Usage)),
		Patterns: make([]PatternSummary, 0, len(r.ContextPatterns)),
	}

	for name, count := range r.Usage {
		rep.Usage = append(rep.Usage, UsageCount{Persona: name, Count: count})
	}
	sort.Slice(rep.Usage, func(i, j int) bool {
		if rep.Usage[i].Count != rep.Usage[j].Count {
			return rep.Usage[i].Count > rep.Usage[j].Count
		}
		return rep.Usage[i].Persona < rep.Usage[j].Persona
	})

	names := make([]string, 0, len(r.ContextPatterns))
	for name := range r.ContextPatterns {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		sorted := SortedKeywords(r.ContextPatterns[name])
		if len(sorted) > topN {
			sorted = sorted[:topN]
		}
		kws := make([]string, 0, len(sorted))
		for _, kc := range sorted {
			kws = append(kws, kc.Keyword)
		}
		rep.Patterns = append(rep.Patterns, PatternSummary{Persona: name, Keywords: kws})
	}

	return rep
}

// Text renders the report for MCP tool output and the CLI.
func (rep Report) Text() string {
	var b strings.Builder

	b.WriteString("Persona Usage Analytics\n\n")
	b.WriteString("Usage counts:\n")
	if len(rep.Usage) == 0 {
		b.WriteString("  (no data)\n")
	}
	for _, u := range rep.Usage {
		fmt.Fprintf(&b, "  %s: %d uses\n", u.Persona, u.Count)
	}

	b.WriteString("\nTop context patterns:\n")
	if len(rep.Patterns) == 0 {
		b.WriteString("  (no data)\n")
	}
	for _, p := range rep.Patterns {
		fmt.Fprintf(&b, "  %s: %s\n", p.Persona, strings.Join(p.Keywords, ", "))
	}

	b.WriteString("\nThis data is stored locally and never transmitted.")
	return b.String()
}
