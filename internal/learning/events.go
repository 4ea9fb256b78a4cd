/*
Package learning implements persona usage tracking and trending reports.

Every activation updates the analytics record synchronously (usage count plus
the first few context keywords) and is then queued for a background writer
that appends it to the activation history database. Trending scores rank
personas by recent frequency and recency over that history.
*/
package learning

import (
	"time"

	"github.com/khanglvm/persona-mcp/internal/storage"
)

// ActivationEvent represents one persona activation.
type ActivationEvent struct {
	// Persona is the activated persona name.
	Persona string

	// Context is the triggering input text, empty when there was none.
	// Only its hash leaves the process.
	Context string

	// Source names what triggered the activation (see storage.Source*).
	Source string

	// Timestamp is when the persona was activated.
	Timestamp time.Time
}

// NewActivationEvent creates an activation event stamped with the current time.
func NewActivationEvent(persona, context, source string) ActivationEvent {
	return ActivationEvent{
		Persona:   persona,
		Context:   context,
		Source:    source,
		Timestamp: time.Now(),
	}
}

// ToStorage converts the event to the history model, hashing the context.
func (e ActivationEvent) ToStorage() storage.Activation {
	return storage.Activation{
		Persona:     e.Persona,
		ContextHash: storage.HashContext(e.Context),
		Source:      e.Source,
		Timestamp:   e.Timestamp,
	}
}
