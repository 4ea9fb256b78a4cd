package analytics

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecord_AddPatternsCreatesTableForEmptyKeywords(t *testing.T) {
	r := NewRecord()
	r.AddPatterns("concise", nil)

	_, ok := r.ContextPatterns["concise"]
	assert.True(t, ok)
	assert.False(t, r.HasPatterns("concise"))
}

func TestRecord_HasKeywordRequiresPositiveCount(t *testing.T) {
	r := &Record{ContextPatterns: map[string]map[string]int{"coder": {"debug": 0, "code": 2}}}

	assert.False(t, r.HasKeyword("coder", "debug"))
	assert.True(t, r.HasKeyword("coder", "code"))
	assert.False(t, r.HasKeyword("teacher", "code"))
}

func TestRecord_ZeroValueIsUsable(t *testing.T) {
	var r Record
	r.IncrementUsage("casual")
	r.AddPatterns("casual", []string{"chat"})

	assert.Equal(t, 1, r.Usage["casual"])
	assert.Equal(t, 1, r.ContextPatterns["casual"]["chat"])
}

func TestRecord_PruneKeywordsTieBreak(t *testing.T) {
	r := NewRecord()
	r.ContextPatterns["coder"] = map[string]int{"zeta": 1, "alpha": 1, "beta": 1, "main": 5}

	r.PruneKeywords(2)
	assert.Equal(t, map[string]int{"main": 5, "alpha": 1}, r.ContextPatterns["coder"])

	r.PruneKeywords(0)
	assert.Len(t, r.ContextPatterns["coder"], 2)
}

func TestDecode_AcceptsIntegralExponentFreeNumbers(t *testing.T) {
	rec, err := Decode([]byte(`{"usage": {"coder": 12}, "contextPatterns": {"coder": {"debug": 0}}}`))
	require.NoError(t, err)
	assert.Equal(t, 12, rec.Usage["coder"])
	assert.Equal(t, 0, rec.ContextPatterns["coder"]["debug"])
}

func TestSummarize(t *testing.T) {
	r := &Record{
		Usage: map[string]int{"coder": 2, "teacher": 5, "casual": 2},
		ContextPatterns: map[string]map[string]int{
			"teacher": {"explain": 4, "recursion": 4, "about": 1, "topic": 2},
			"coder":   {"debug": 1},
		},
	}

	rep := Summarize(r, 3)

	assert.Equal(t, []UsageCount{
		{Persona: "teacher", Count: 5},
		{Persona: "casual", Count: 2},
		{Persona: "coder", Count: 2},
	}, rep.Usage)
	assert.Equal(t, []PatternSummary{
		{Persona: "coder", Keywords: []string{"debug"}},
		{Persona: "teacher", Keywords: []string{"explain", "recursion", "topic"}},
	}, rep.Patterns)

	text := rep.Text()
	assert.True(t, strings.HasPrefix(text, "Persona Usage Analytics"))
	assert.Contains(t, text, "  teacher: 5 uses\n")
	assert.Contains(t, text, "  teacher: explain, recursion, topic\n")
}

func TestSummarize_Empty(t *testing.T) {
	text := Summarize(NewRecord(), 0).Text()
	assert.Equal(t, 2, strings.Count(text, "(no data)"))
}
