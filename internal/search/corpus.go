package search

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/khanglvm/persona-mcp/internal/persona"
)

const (
	// maxChunkLength is the longest chunk kept intact; longer sections are
	// split into overlapping windows.
	maxChunkLength = 1500
	chunkOverlap   = 200
)

var (
	headingLine  = regexp.MustCompile(`^#{2,3}\s+(.*)$`)
	numberPrefix = regexp.MustCompile(`^\d+-`)
)

// Chunk is one section of a markdown document.
type Chunk struct {
	Section string
	Content string
}

// ChunkMarkdown splits markdown at "##" and "###" headings. Text before the
// first heading forms its own chunk with an empty section title. Whitespace-only
// chunks are dropped and oversized ones are split into overlapping windows.
func ChunkMarkdown(content string) []Chunk {
	var chunks []Chunk
	var section string
	var buf strings.Builder

	emit := func() {
		text := strings.TrimSpace(buf.String())
		buf.Reset()
		if text == "" {
			return
		}
		for _, part := range splitLong(text) {
			chunks = append(chunks, Chunk{Section: section, Content: part})
		}
	}

	for _, line := range strings.Split(content, "\n") {
		if m := headingLine.FindStringSubmatch(line); m != nil {
			emit()
			section = strings.TrimSpace(m[1])
		}
		buf.WriteString(line)
		buf.WriteByte('\n')
	}
	emit()

	return chunks
}

func splitLong(text string) []string {
	runes := []rune(text)
	if len(runes) <= maxChunkLength {
		return []string{text}
	}

	var parts []string
	for start := 0; start < len(runes); start += maxChunkLength - chunkOverlap {
		end := start + maxChunkLength
		if end > len(runes) {
			end = len(runes)
		}
		if part := strings.TrimSpace(string(runes[start:end])); part != "" {
			parts = append(parts, part)
		}
		if end == len(runes) {
			break
		}
	}
	return parts
}

// DisplayName turns a persona id such as "410-llm-engineer" into "Llm Engineer".
func DisplayName(personaID string) string {
	words := strings.FieldsFunc(numberPrefix.ReplaceAllString(personaID, ""), func(r rune) bool {
		return r == '-' || r == '_'
	})
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

// Collect builds the document set for the persona store and knowledge base.
// Either argument may be nil.
func Collect(store *persona.Store, kb *persona.KnowledgeBase) ([]Document, error) {
	var docs []Document

	if store != nil {
		names, err := store.Names()
		if err != nil {
			return nil, err
		}
		for _, name := range names {
			content, err := store.Read(name)
			if err != nil {
				return nil, err
			}
			docs = append(docs, Document{
				ID:        "persona/" + name,
				Kind:      KindPersona,
				PersonaID: name,
				Section:   DisplayName(name),
				Content:   content,
			})
		}
	}

	if kb != nil {
		ids, err := kb.IDs()
		if err != nil {
			return nil, err
		}
		for _, id := range ids {
			paths, err := kb.Documents(id)
			if err != nil {
				// a persona directory without core-competencies is skipped
				continue
			}
			for _, path := range paths {
				data, err := os.ReadFile(path)
				if err != nil {
					return nil, fmt.Errorf("failed to read %s: %w", path, err)
				}
				stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
				for n, c := range ChunkMarkdown(string(data)) {
					docs = append(docs, Document{
						ID:        fmt.Sprintf("knowledge/%s/%s/%04d", id, stem, n),
						Kind:      KindKnowledge,
						PersonaID: id,
						Section:   c.Section,
						Content:   c.Content,
					})
				}
			}
		}
	}

	return docs, nil
}
