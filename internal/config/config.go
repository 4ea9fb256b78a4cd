/*
Package config handles loading and saving persona-mcp configuration.

Configuration is stored in ~/.persona-mcp.json. Every section is optional;
missing fields keep the values from NewConfig.

Schema:
  {
    "paths": {
      "personaDir": "~/.persona",
      "analyticsFile": "",
      "communityDir": "",
      "knowledgeBaseDir": "",
      "historyDB": ""
    },
    "suggestion": {
      "confidenceDivisor": 10,
      "activationFloor": 1,
      "maxConfidence": 0.95,
      "keywordMinLength": 4,
      "trackingKeywordCap": 5,
      "keywordHistoryCap": 0,
      "rulesFile": ""
    },
    "http": {"addr": ":3000", "apiKey": "", "requestTimeoutSeconds": 30, "rateLimitPerSecond": 20},
    "logging": {"level": "info", "json": true},
    "history": {"enabled": true, "retentionDays": 90}
  }
*/
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Config represents the root configuration structure.
type Config struct {
	Paths      PathsConfig      `json:"paths"`
	Suggestion SuggestionConfig `json:"suggestion"`
	HTTP       HTTPConfig       `json:"http"`
	Logging    LoggingConfig    `json:"logging"`
	History    HistoryConfig    `json:"history"`
}

// PathsConfig locates persona files and the stores derived from them.
type PathsConfig struct {
	// PersonaDir holds one <name>.txt file per persona.
	PersonaDir string `json:"personaDir"`

	// AnalyticsFile defaults to <personaDir>/.analytics.json.
	AnalyticsFile string `json:"analyticsFile,omitempty"`

	// CommunityDir is an optional collection of installable personas.
	CommunityDir string `json:"communityDir,omitempty"`

	// KnowledgeBaseDir is an optional tree of <id>/core-competencies/*.md.
	KnowledgeBaseDir string `json:"knowledgeBaseDir,omitempty"`

	// HistoryDB defaults to <personaDir>/history.db.
	HistoryDB string `json:"historyDB,omitempty"`
}

// SuggestionConfig calibrates the suggestion engine and usage tracking.
type SuggestionConfig struct {
	ConfidenceDivisor  float64 `json:"confidenceDivisor"`
	ActivationFloor    float64 `json:"activationFloor"`
	MaxConfidence      float64 `json:"maxConfidence"`
	KeywordMinLength   int     `json:"keywordMinLength"`
	TrackingKeywordCap int     `json:"trackingKeywordCap"`

	// KeywordHistoryCap bounds distinct keywords kept per persona. 0 keeps all.
	KeywordHistoryCap int `json:"keywordHistoryCap"`

	// RulesFile replaces the built-in rule table with a YAML file.
	RulesFile string `json:"rulesFile,omitempty"`
}

// HTTPConfig configures the REST bridge.
type HTTPConfig struct {
	Addr                  string  `json:"addr"`
	APIKey                string  `json:"apiKey,omitempty"`
	RequestTimeoutSeconds int     `json:"requestTimeoutSeconds"`
	RateLimitPerSecond    float64 `json:"rateLimitPerSecond"`
}

// LoggingConfig configures the stderr logger.
type LoggingConfig struct {
	Level string `json:"level"`
	JSON  bool   `json:"json"`
}

// HistoryConfig configures the SQLite activation history.
type HistoryConfig struct {
	Enabled       bool `json:"enabled"`
	RetentionDays int  `json:"retentionDays"`
}

// NewConfig creates a configuration with default values.
func NewConfig() *Config {
	return &Config{
		Paths: PathsConfig{
			PersonaDir: "~/.persona",
		},
		Suggestion: SuggestionConfig{
			ConfidenceDivisor:  10,
			ActivationFloor:    1,
			MaxConfidence:      0.95,
			KeywordMinLength:   4,
			TrackingKeywordCap: 5,
		},
		HTTP: HTTPConfig{
			Addr:                  ":3000",
			RequestTimeoutSeconds: 30,
			RateLimitPerSecond:    20,
		},
		Logging: LoggingConfig{
			Level: "info",
			JSON:  true,
		},
		History: HistoryConfig{
			Enabled:       true,
			RetentionDays: 90,
		},
	}
}

// GetDefaultConfigPath returns the path to ~/.persona-mcp.json
func GetDefaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".persona-mcp.json"), nil
}

// Load reads the configuration from the default path.
func Load() (*Config, error) {
	configPath, err := GetDefaultConfigPath()
	if err != nil {
		return nil, err
	}
	return LoadFrom(configPath)
}

// LoadOrCreate reads the configuration at path, writing defaults there first
// if the file does not exist. An empty path means the default path.
func LoadOrCreate(path string) (*Config, error) {
	if path == "" {
		p, err := GetDefaultConfigPath()
		if err != nil {
			return nil, err
		}
		path = p
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg := NewConfig()
		if err := Save(cfg, path); err != nil {
			return nil, err
		}
		ApplyEnv(cfg, os.LookupEnv)
		return cfg, nil
	}

	return LoadFrom(path)
}

// Resolve expands "~" in every path and fills paths derived from PersonaDir.
func (c *Config) Resolve() error {
	var err error
	paths := []*string{
		&c.Paths.PersonaDir,
		&c.Paths.AnalyticsFile,
		&c.Paths.CommunityDir,
		&c.Paths.KnowledgeBaseDir,
		&c.Paths.HistoryDB,
		&c.Suggestion.RulesFile,
	}
	for _, p := range paths {
		if *p, err = ExpandHome(*p); err != nil {
			return err
		}
	}

	if c.Paths.AnalyticsFile == "" {
		c.Paths.AnalyticsFile = filepath.Join(c.Paths.PersonaDir, ".analytics.json")
	}
	if c.Paths.HistoryDB == "" {
		c.Paths.HistoryDB = filepath.Join(c.Paths.PersonaDir, "history.db")
	}
	return nil
}

// ExpandHome replaces a leading "~" with the user's home directory.
func ExpandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}
