package search

import (
	"fmt"
	"sort"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"
)

const defaultLimit = 5

var resultFields = []string{"kind", "persona_id", "section", "content"}

// Search performs BM25 keyword search across every document.
func (i *Indexer) Search(text string, limit int) ([]Result, error) {
	return i.search(bleve.NewMatchQuery(text), limit)
}

// SearchByPersona performs BM25 search scoped to one persona id.
func (i *Indexer) SearchByPersona(text, personaID string, limit int) ([]Result, error) {
	personaQuery := bleve.NewTermQuery(personaID)
	personaQuery.SetField("persona_id")

	return i.search(bleve.NewConjunctionQuery(bleve.NewMatchQuery(text), personaQuery), limit)
}

// PersonaIDs returns every distinct persona id in the index, sorted.
func (i *Indexer) PersonaIDs() ([]string, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()

	count, err := i.bleveIndex.DocCount()
	if err != nil {
		return nil, fmt.Errorf("failed to get doc count: %w", err)
	}

	req := bleve.NewSearchRequestOptions(bleve.NewMatchAllQuery(), int(count), 0, false)
	req.Fields = []string{"persona_id"}

	res, err := i.bleveIndex.Search(req)
	if err != nil {
		return nil, fmt.Errorf("bleve search failed: %w", err)
	}

	seen := make(map[string]bool)
	ids := []string{}
	for _, hit := range res.Hits {
		id, _ := hit.Fields["persona_id"].(string)
		if id != "" && !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (i *Indexer) search(q query.Query, limit int) ([]Result, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()

	if limit <= 0 {
		limit = defaultLimit
	}

	req := bleve.NewSearchRequestOptions(q, limit, 0, false)
	req.Fields = resultFields

	res, err := i.bleveIndex.Search(req)
	if err != nil {
		return nil, fmt.Errorf("bleve search failed: %w", err)
	}

	return convertBleveResults(res), nil
}

// convertBleveResults converts Bleve search results to Results.
func convertBleveResults(res *bleve.SearchResult) []Result {
	results := make([]Result, 0, len(res.Hits))

	for _, hit := range res.Hits {
		kind, _ := hit.Fields["kind"].(string)
		personaID, _ := hit.Fields["persona_id"].(string)
		section, _ := hit.Fields["section"].(string)
		content, _ := hit.Fields["content"].(string)

		results = append(results, Result{
			ID:        hit.ID,
			Kind:      kind,
			PersonaID: personaID,
			Section:   section,
			Content:   content,
			Score:     hit.Score,
		})
	}

	return results
}
