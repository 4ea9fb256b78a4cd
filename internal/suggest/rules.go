package suggest

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Rule maps a set of trigger keywords to a persona with a weight.
type Rule struct {
	Keywords []string `yaml:"keywords" json:"keywords"`
	Persona  string   `yaml:"persona" json:"persona"`
	Weight   float64  `yaml:"weight" json:"weight"`
}

// DefaultRules returns the built-in rule table.
func DefaultRules() []Rule {
	return []Rule{
		{Keywords: []string{"explain", "teach", "learn", "understand", "how", "what", "why"}, Persona: "teacher", Weight: 3},
		{Keywords: []string{"code", "function", "bug", "debug", "program", "implement"}, Persona: "coder", Weight: 3},
		{Keywords: []string{"professional", "business", "formal", "report", "meeting"}, Persona: "professional", Weight: 2},
		{Keywords: []string{"casual", "chat", "friendly", "hey", "talk"}, Persona: "casual", Weight: 2},
		{Keywords: []string{"brief", "short", "quick", "summary", "concise"}, Persona: "concise", Weight: 2},
	}
}

type rulesFile struct {
	Rules []Rule `yaml:"rules"`
}

// LoadRulesFile reads a YAML rule table of the form:
//
//	rules:
//	  - persona: reviewer
//	    weight: 2.5
//	    keywords: [review, diff, nitpick]
//
// Keywords are lowercased on load since matching runs on lowercased context.
func LoadRulesFile(path string) ([]Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rules file: %w", err)
	}

	var f rulesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse rules file %s: %w", path, err)
	}
	if len(f.Rules) == 0 {
		return nil, fmt.Errorf("rules file %s defines no rules", path)
	}

	for i := range f.Rules {
		r := &f.Rules[i]
		if r.Persona == "" {
			return nil, fmt.Errorf("rule %d: persona is required", i)
		}
		if r.Weight <= 0 {
			return nil, fmt.Errorf("rule %d (%s): weight must be positive", i, r.Persona)
		}
		if len(r.Keywords) == 0 {
			return nil, fmt.Errorf("rule %d (%s): at least one keyword is required", i, r.Persona)
		}
		for j, kw := range r.Keywords {
			r.Keywords[j] = strings.ToLower(kw)
		}
	}

	return f.Rules, nil
}
