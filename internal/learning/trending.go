package learning

import (
	"math"
	"sort"
	"time"

	"github.com/khanglvm/persona-mcp/internal/storage"
)

const (
	// frequencyWeight is the weight for frequency in the score (0.6 = 60%).
	frequencyWeight = 0.6

	// recencyWeight is the weight for recency in the score (0.4 = 40%).
	recencyWeight = 0.4

	// DefaultTrendingWindow is the history window considered for trending (7 days).
	DefaultTrendingWindow = 7 * 24 * time.Hour

	// recencyHalfLife is the half-life for exponential decay (24 hours).
	recencyHalfLife = 24 * time.Hour

	// frequencyCeiling is the activation count treated as maximal frequency.
	frequencyCeiling = 100.0
)

// PersonaScore is a persona with its trending score.
type PersonaScore struct {
	Persona     string    `json:"persona"`
	Score       float64   `json:"score"`
	Activations int       `json:"activations"`
	LastUsed    time.Time `json:"last_used"`
}

// Score calculates a persona's trending score from its activation history.
// Formula: 0.6*frequency + 0.4*recency, each normalized to 0-1.
func Score(persona string, history []storage.Activation, now time.Time) float64 {
	var own []storage.Activation
	for _, a := range history {
		if a.Persona == persona {
			own = append(own, a)
		}
	}
	if len(own) == 0 {
		return 0.0
	}

	return frequencyWeight*frequency(own) + recencyWeight*recency(own, now)
}

// frequency measures how often a persona is used (normalized 0-1).
func frequency(own []storage.Activation) float64 {
	return math.Min(float64(len(own))/frequencyCeiling, 1.0)
}

// recency averages an exponential decay over each activation's age (normalized 0-1).
// After 24 hours an activation weighs 0.5, after 48 hours 0.25.
func recency(own []storage.Activation, now time.Time) float64 {
	if len(own) == 0 {
		return 0.0
	}

	sum := 0.0
	for _, a := range own {
		hoursSince := math.Max(now.Sub(a.Timestamp).Hours(), 0)
		sum += math.Exp(-math.Ln2 * hoursSince / recencyHalfLife.Hours())
	}

	return math.Min(sum/float64(len(own)), 1.0)
}

// Rank scores every persona present in history, best first. Ties are broken
// by persona name.
func Rank(history []storage.Activation, now time.Time) []PersonaScore {
	byPersona := make(map[string]*PersonaScore)
	for _, a := range history {
		ps, ok := byPersona[a.Persona]
		if !ok {
			ps = &PersonaScore{Persona: a.Persona}
			byPersona[a.Persona] = ps
		}
		ps.Activations++
		if a.Timestamp.After(ps.LastUsed) {
			ps.LastUsed = a.Timestamp
		}
	}

	scores := make([]PersonaScore, 0, len(byPersona))
	for name, ps := range byPersona {
		ps.Score = Score(name, history, now)
		scores = append(scores, *ps)
	}

	sort.SliceStable(scores, func(i, j int) bool {
		if scores[i].Score != scores[j].Score {
			return scores[i].Score > scores[j].Score
		}
		return scores[i].Persona < scores[j].Persona
	})

	return scores
}

// RankTrending loads the activations of the last window from history and ranks them.
func RankTrending(history storage.Storage, window time.Duration) ([]PersonaScore, error) {
	if window <= 0 {
		window = DefaultTrendingWindow
	}
	now := time.Now()

	activations, err := history.ActivationsSince(now.Add(-window))
	if err != nil {
		return nil, err
	}

	return Rank(activations, now), nil
}
