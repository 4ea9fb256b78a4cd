package search

import (
	"fmt"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/mapping"
	"go.uber.org/zap"

	"github.com/khanglvm/persona-mcp/internal/logging"
)

// Indexer manages the search index for personas and knowledge-base chunks.
type Indexer struct {
	bleveIndex bleve.Index
	logger     *zap.Logger
	mu         sync.RWMutex
}

// NewIndexer creates a new search indexer with an empty in-memory Bleve index.
func NewIndexer(logger *zap.Logger) (*Indexer, error) {
	index, err := newMemIndex()
	if err != nil {
		return nil, err
	}

	return &Indexer{
		bleveIndex: index,
		logger:     logging.OrNop(logger),
	}, nil
}

func newMemIndex() (bleve.Index, error) {
	index, err := bleve.NewMemOnly(buildIndexMapping())
	if err != nil {
		return nil, fmt.Errorf("failed to create bleve index: %w", err)
	}
	return index, nil
}

// buildIndexMapping creates the Bleve index mapping.
func buildIndexMapping() mapping.IndexMapping {
	docMapping := bleve.NewDocumentMapping()

	// kind and persona_id are exact-match filters
	for _, field := range []string{"kind", "persona_id"} {
		fm := bleve.NewTextFieldMapping()
		fm.Analyzer = keyword.Name
		fm.IncludeInAll = false
		docMapping.AddFieldMappingsAt(field, fm)
	}

	docMapping.AddFieldMappingsAt("section", bleve.NewTextFieldMapping())
	docMapping.AddFieldMappingsAt("content", bleve.NewTextFieldMapping())

	indexMapping := bleve.NewIndexMapping()
	indexMapping.AddDocumentMapping("_default", docMapping)

	return indexMapping
}

// Index adds or replaces documents.
func (i *Indexer) Index(docs []Document) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	return i.indexLocked(i.bleveIndex, docs)
}

func (i *Indexer) indexLocked(index bleve.Index, docs []Document) error {
	batch := index.NewBatch()

	for _, doc := range docs {
		fields := map[string]interface{}{
			"kind":       doc.Kind,
			"persona_id": doc.PersonaID,
			"section":    doc.Section,
			"content":    doc.Content,
		}
		if err := batch.Index(doc.ID, fields); err != nil {
			i.logger.Warn("failed to index document", zap.String("id", doc.ID), zap.Error(err))
		}
	}

	if err := index.Batch(batch); err != nil {
		return fmt.Errorf("failed to batch index documents: %w", err)
	}

	return nil
}

// Rebuild replaces the whole index with docs. Searches keep hitting the old
// index until the new one is fully built.
func (i *Indexer) Rebuild(docs []Document) error {
	fresh, err := newMemIndex()
	if err != nil {
		return err
	}
	if err := i.indexLocked(fresh, docs); err != nil {
		fresh.Close()
		return err
	}

	i.mu.Lock()
	old := i.bleveIndex
	i.bleveIndex = fresh
	i.mu.Unlock()

	if old != nil {
		old.Close()
	}
	return nil
}

// Count returns the total number of indexed documents.
func (i *Indexer) Count() (uint64, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()

	docCount, err := i.bleveIndex.DocCount()
	if err != nil {
		return 0, fmt.Errorf("failed to get doc count: %w", err)
	}

	return docCount, nil
}

// Close closes the index and releases resources.
func (i *Indexer) Close() error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.bleveIndex != nil {
		err := i.bleveIndex.Close()
		i.bleveIndex = nil
		return err
	}

	return nil
}
