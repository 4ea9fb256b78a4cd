package persona

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const competenciesDir = "core-competencies"

// KnowledgeBase reads per-persona markdown documents laid out as
// <dir>/<id>/core-competencies/*.md.
type KnowledgeBase struct {
	dir string
}

// NewKnowledgeBase creates a knowledge base rooted at dir. An empty dir is a
// valid, empty knowledge base.
func NewKnowledgeBase(dir string) *KnowledgeBase {
	return &KnowledgeBase{dir: dir}
}

// Dir returns the knowledge base root.
func (kb *KnowledgeBase) Dir() string {
	return kb.dir
}

// IDs returns the persona ids that have a knowledge-base directory, sorted.
func (kb *KnowledgeBase) IDs() ([]string, error) {
	if kb.dir == "" {
		return []string{}, nil
	}
	entries, err := os.ReadDir(kb.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to read knowledge base: %w", err)
	}

	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() && ValidateName(e.Name()) == nil {
			ids = append(ids, e.Name())
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// Documents returns the markdown document paths for id, sorted by name.
func (kb *KnowledgeBase) Documents(id string) ([]string, error) {
	if err := ValidateName(id); err != nil {
		return nil, err
	}
	dir := filepath.Join(kb.dir, id, competenciesDir)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("knowledge base for %q %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to read knowledge base for %q: %w", id, err)
	}

	var docs []string
	for _, e := range entries {
		if e.Type().IsRegular() && strings.HasSuffix(e.Name(), ".md") {
			docs = append(docs, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(docs)
	return docs, nil
}

// Read returns the first markdown document for id.
func (kb *KnowledgeBase) Read(id string) (string, error) {
	docs, err := kb.Documents(id)
	if err != nil {
		return "", err
	}
	if len(docs) == 0 {
		return "", fmt.Errorf("knowledge base documents for %q %w", id, ErrNotFound)
	}
	data, err := os.ReadFile(docs[0])
	if err != nil {
		return "", fmt.Errorf("failed to read knowledge base for %q: %w", id, err)
	}
	return string(data), nil
}
