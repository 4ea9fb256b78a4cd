package config

import (
	"errors"
	"testing"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"defaults", func(*Config) {}, ""},
		{"zero floor allowed", func(c *Config) { c.Suggestion.ActivationFloor = 0 }, ""},
		{"max confidence of one allowed", func(c *Config) { c.Suggestion.MaxConfidence = 1 }, ""},
		{"empty persona dir", func(c *Config) { c.Paths.PersonaDir = " " }, "paths.personaDir"},
		{"zero divisor", func(c *Config) { c.Suggestion.ConfidenceDivisor = 0 }, "suggestion.confidenceDivisor"},
		{"negative divisor", func(c *Config) { c.Suggestion.ConfidenceDivisor = -1 }, "suggestion.confidenceDivisor"},
		{"zero max confidence", func(c *Config) { c.Suggestion.MaxConfidence = 0 }, "suggestion.maxConfidence"},
		{"max confidence above one", func(c *Config) { c.Suggestion.MaxConfidence = 1.01 }, "suggestion.maxConfidence"},
		{"negative floor", func(c *Config) { c.Suggestion.ActivationFloor = -0.5 }, "suggestion.activationFloor"},
		{"keyword length zero", func(c *Config) { c.Suggestion.KeywordMinLength = 0 }, "suggestion.keywordMinLength"},
		{"negative tracking cap", func(c *Config) { c.Suggestion.TrackingKeywordCap = -1 }, "suggestion.trackingKeywordCap"},
		{"negative history cap", func(c *Config) { c.Suggestion.KeywordHistoryCap = -1 }, "suggestion.keywordHistoryCap"},
		{"negative timeout", func(c *Config) { c.HTTP.RequestTimeoutSeconds = -1 }, "http.requestTimeoutSeconds"},
		{"negative rate", func(c *Config) { c.HTTP.RateLimitPerSecond = -1 }, "http.rateLimitPerSecond"},
		{"negative retention", func(c *Config) { c.History.RetentionDays = -1 }, "history.retentionDays"},
		{"unknown log level", func(c *Config) { c.Logging.Level = "loud" }, "logging.level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.field == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}

			var fe *FieldError
			if !errors.As(err, &fe) {
				t.Fatalf("expected FieldError, got %v", err)
			}
			if fe.Field != tt.field {
				t.Errorf("field = %q, want %q", fe.Field, tt.field)
			}
		})
	}
}
