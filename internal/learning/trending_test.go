package learning

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/khanglvm/persona-mcp/internal/storage"
)

func activationsAt(persona string, now time.Time, ages ...time.Duration) []storage.Activation {
	out := make([]storage.Activation, 0, len(ages))
	for _, age := range ages {
		out = append(out, storage.Activation{Persona: persona, Timestamp: now.Add(-age)})
	}
	return out
}

func TestScore(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name    string
		history []storage.Activation
		want    float64
	}{
		{"no history", nil, 0},
		{"other persona only", activationsAt("coder", now, 0), 0},
		{"single fresh activation", activationsAt("teacher", now, 0), 0.6*0.01 + 0.4*1.0},
		{"one day old", activationsAt("teacher", now, 24*time.Hour), 0.6*0.01 + 0.4*0.5},
		{"mixed ages", activationsAt("teacher", now, 0, 48*time.Hour), 0.6*0.02 + 0.4*(1.0+0.25)/2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Score("teacher", tt.history, now), 1e-9)
		})
	}
}

func TestScore_FrequencyCeiling(t *testing.T) {
	now := time.Now()
	ages := make([]time.Duration, 250)
	history := activationsAt("coder", now, ages...)

	assert.InDelta(t, 1.0, Score("coder", history, now), 1e-9)
}

func TestScore_FutureTimestampsClamp(t *testing.T) {
	now := time.Now()
	history := activationsAt("coder", now, -time.Hour)

	s := Score("coder", history, now)
	assert.False(t, math.IsInf(s, 0))
	assert.LessOrEqual(t, s, 1.0)
}

func TestRank(t *testing.T) {
	now := time.Now()
	var history []storage.Activation
	history = append(history, activationsAt("teacher", now, time.Hour, 2*time.Hour)...)
	history = append(history, activationsAt("coder", now, 72*time.Hour)...)
	history = append(history, activationsAt("casual", now, 72*time.Hour)...)

	ranked := Rank(history, now)
	require.Len(t, ranked, 3)

	assert.Equal(t, "teacher", ranked[0].Persona)
	assert.Equal(t, 2, ranked[0].Activations)
	assert.Equal(t, now.Add(-time.Hour), ranked[0].LastUsed)

	// equal scores fall back to name order
	assert.Equal(t, "casual", ranked[1].Persona)
	assert.Equal(t, "coder", ranked[2].Persona)
}

func TestRankTrending(t *testing.T) {
	history := newMockStorage()
	now := time.Now()
	for _, a := range append(
		activationsAt("teacher", now, time.Minute, 2*time.Minute),
		activationsAt("coder", now, 30*24*time.Hour)...,
	) {
		require.NoError(t, history.RecordActivation(a))
	}

	ranked, err := RankTrending(history, 0)
	require.NoError(t, err)
	require.Len(t, ranked, 1, "activations outside the window are ignored")
	assert.Equal(t, "teacher", ranked[0].Persona)

	ranked, err = RankTrending(history, 60*24*time.Hour)
	require.NoError(t, err)
	assert.Len(t, ranked, 2)
}
