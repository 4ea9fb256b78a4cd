package config

import (
	"fmt"
	"strings"

	"go.uber.org/zap/zapcore"
)

// FieldError reports a configuration value outside its allowed range.
type FieldError struct {
	Field  string
	Reason string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// Validate checks that every value is usable. It returns the first problem found.
func (c *Config) Validate() error {
	s := c.Suggestion
	switch {
	case strings.TrimSpace(c.Paths.PersonaDir) == "":
		return &FieldError{"paths.personaDir", "must not be empty"}
	case s.ConfidenceDivisor <= 0:
		return &FieldError{"suggestion.confidenceDivisor", "must be positive"}
	case s.MaxConfidence <= 0 || s.MaxConfidence > 1:
		return &FieldError{"suggestion.maxConfidence", "must be in (0, 1]"}
	case s.ActivationFloor < 0:
		return &FieldError{"suggestion.activationFloor", "must not be negative"}
	case s.KeywordMinLength < 1:
		return &FieldError{"suggestion.keywordMinLength", "must be at least 1"}
	case s.TrackingKeywordCap < 0:
		return &FieldError{"suggestion.trackingKeywordCap", "must not be negative"}
	case s.KeywordHistoryCap < 0:
		return &FieldError{"suggestion.keywordHistoryCap", "must not be negative"}
	case c.HTTP.RequestTimeoutSeconds < 0:
		return &FieldError{"http.requestTimeoutSeconds", "must not be negative"}
	case c.HTTP.RateLimitPerSecond < 0:
		return &FieldError{"http.rateLimitPerSecond", "must not be negative"}
	case c.History.RetentionDays < 0:
		return &FieldError{"history.retentionDays", "must not be negative"}
	}

	if _, err := zapcore.ParseLevel(c.Logging.Level); err != nil {
		return &FieldError{"logging.level", fmt.Sprintf("unknown level %q", c.Logging.Level)}
	}
	return nil
}
