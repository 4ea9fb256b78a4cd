/*
Package search implements keyword search over personas and their knowledge bases.

Documents are held in an in-memory Bleve index and ranked with BM25. Persona
text files are indexed whole; knowledge-base markdown is split into chunks at
"##" and "###" headings so results point at a single section.
*/
package search

// Document kinds.
const (
	KindPersona   = "persona"
	KindKnowledge = "knowledge"
)

// Document is one indexed unit of text.
type Document struct {
	ID        string `json:"id"`
	Kind      string `json:"kind"`
	PersonaID string `json:"persona_id"`
	Section   string `json:"section"`
	Content   string `json:"content"`
}

// Result is a scored search hit.
type Result struct {
	ID        string  `json:"id"`
	Kind      string  `json:"kind"`
	PersonaID string  `json:"persona_id"`
	Section   string  `json:"section"`
	Content   string  `json:"content"`
	Score     float64 `json:"score"`
}
