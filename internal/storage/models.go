package storage

import "time"

// Activation sources.
const (
	SourceResource      = "resource"
	SourceKnowledgeBase = "knowledge-base"
	SourceChain         = "chain"
	SourceCLI           = "cli"
)

// Activation represents a single persona activation.
type Activation struct {
	// Persona is the activated persona name.
	Persona string `json:"persona"`

	// ContextHash is the SHA256 hash of the triggering context, empty when
	// there was none.
	ContextHash string `json:"context_hash"`

	// Source names the trigger (resource, knowledge-base, chain, cli).
	Source string `json:"source"`

	// Timestamp is when the persona was activated.
	Timestamp time.Time `json:"timestamp"`
}

// SuggestionRecord is the outcome of one suggestion query.
type SuggestionRecord struct {
	// SuggestionID is a unique identifier for this query (UUID).
	SuggestionID string `json:"suggestion_id"`

	// ContextHash is the SHA256 hash of the query context.
	ContextHash string `json:"context_hash"`

	// Persona is the suggested persona, empty when nothing matched.
	Persona string `json:"persona"`

	// Confidence is the reported confidence, 0 when nothing matched.
	Confidence float64 `json:"confidence"`

	// Timestamp is when the query ran.
	Timestamp time.Time `json:"timestamp"`
}
