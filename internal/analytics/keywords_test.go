package analytics

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeywordExtractor_Extract(t *testing.T) {
	e := NewKeywordExtractor(DefaultKeywordMinLength)

	tests := []struct {
		name string
		text string
		want []string
	}{
		{"empty", "", nil},
		{"short words only", "how are you", nil},
		{"lowercases", "Explain Recursion", []string{"explain", "recursion"}},
		{"keeps duplicates in order", "debug this debug that", []string{"debug", "this", "debug", "that"}},
		{"punctuation splits", "code,review;done", []string{"code", "review", "done"}},
		{"underscores and digits are word chars", "my_var abc1 x9", []string{"my_var", "abc1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, e.Extract(tt.text))
		})
	}
}

func TestKeywordExtractor_First(t *testing.T) {
	e := NewKeywordExtractor(4)
	text := "alpha bravo charlie delta echo foxtrot golf"

	assert.Equal(t, []string{"alpha", "bravo", "charlie", "delta", "echo"}, e.First(text, 5))
	assert.Len(t, e.First(text, 0), 7)
	assert.Empty(t, e.First("", 5))
}

func TestKeywordExtractor_MinLength(t *testing.T) {
	assert.Equal(t, []string{"how", "are", "you"}, NewKeywordExtractor(3).Extract("how are you"))
	assert.Equal(t, []string{"tests"}, NewKeywordExtractor(0).Extract("run tests"), "invalid length falls back to default")
}
