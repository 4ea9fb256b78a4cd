/*
Package analytics implements the persona usage analytics store.

The store is a single JSON document holding activation counts and
per-persona keyword frequencies:

	{
	  "usage": {"teacher": 3},
	  "contextPatterns": {"teacher": {"recursion": 2, "explain": 1}}
	}

Every read loads the file fresh and every write persists the whole document.
A missing or malformed file is treated as an empty record.
*/
package analytics

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
)

// Record is the persisted analytics document.
type Record struct {
	// Usage maps persona name to activation count.
	Usage map[string]int `json:"usage"`

	// ContextPatterns maps persona name to keyword frequencies.
	ContextPatterns map[string]map[string]int `json:"contextPatterns"`
}

// NewRecord returns an empty record with initialized maps.
func NewRecord() *Record {
	return &Record{
		Usage:           make(map[string]int),
		ContextPatterns: make(map[string]map[string]int),
	}
}

// IncrementUsage adds one activation for persona.
func (r *Record) IncrementUsage(persona string) {
	r.ensureMaps()
	r.Usage[persona]++
}

// AddPatterns folds keywords into the persona's pattern table.
// Repeated keywords are counted once per occurrence.
func (r *Record) AddPatterns(persona string, keywords []string) {
	r.ensureMaps()
	patterns, ok := r.ContextPatterns[persona]
	if !ok {
		patterns = make(map[string]int)
		r.ContextPatterns[persona] = patterns
	}
	for _, kw := range keywords {
		patterns[kw]++
	}
}

// HasPatterns reports whether persona has a non-empty keyword history.
func (r *Record) HasPatterns(persona string) bool {
	return len(r.ContextPatterns[persona]) > 0
}

// HasKeyword reports whether keyword was seen with a positive count for persona.
func (r *Record) HasKeyword(persona, keyword string) bool {
	return r.ContextPatterns[persona][keyword] > 0
}

// PruneKeywords keeps at most limit keywords per persona, dropping the least
// frequent first (ties broken by keyword). A limit <= 0 disables pruning.
func (r *Record) PruneKeywords(limit int) {
	if limit <= 0 {
		return
	}
	for persona, patterns := range r.ContextPatterns {
		if len(patterns) <= limit {
			continue
		}
		kept := make(map[string]int, limit)
		for _, kc := range SortedKeywords(patterns)[:limit] {
			kept[kc.Keyword] = kc.Count
		}
		r.ContextPatterns[persona] = kept
	}
}

func (r *Record) ensureMaps() {
	if r.Usage == nil {
		r.Usage = make(map[string]int)
	}
	if r.ContextPatterns == nil {
		r.ContextPatterns = make(map[string]map[string]int)
	}
}

// KeywordCount pairs a keyword with its frequency.
type KeywordCount struct {
	Keyword string
	Count   int
}

// SortedKeywords orders a pattern table by count descending, then keyword.
func SortedKeywords(patterns map[string]int) []KeywordCount {
	out := make([]KeywordCount, 0, len(patterns))
	for kw, count := range patterns {
		out = append(out, KeywordCount{Keyword: kw, Count: count})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Keyword < out[j].Keyword
	})
	return out
}

// Decode parses and validates a persisted record.
//
// Missing top-level fields decode as empty maps. Any other structural
// mismatch (wrong types, negative or fractional counts) is an error.
func Decode(data []byte) (*Record, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw interface{}
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("parse analytics: %w", err)
	}

	top, ok := raw.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("analytics root must be an object")
	}

	rec := NewRecord()

	if v, present := top["usage"]; present {
		usage, ok := v.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("usage must be an object")
		}
		for name, count := range usage {
			n, err := toCount(count)
			if err != nil {
				return nil, fmt.Errorf("usage[%q]: %w", name, err)
			}
			rec.Usage[name] = n
		}
	}

	if v, present := top["contextPatterns"]; present {
		patterns, ok := v.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("contextPatterns must be an object")
		}
		for name, table := range patterns {
			kws, ok := table.(map[string]interface{})
			if !ok {
				return nil, fmt.Errorf("contextPatterns[%q] must be an object", name)
			}
			out := make(map[string]int, len(kws))
			for kw, count := range kws {
				n, err := toCount(count)
				if err != nil {
					return nil, fmt.Errorf("contextPatterns[%q][%q]: %w", name, kw, err)
				}
				out[kw] = n
			}
			rec.ContextPatterns[name] = out
		}
	}

	return rec, nil
}

// Encode serializes a record in the on-disk format (2-space indent).
func Encode(r *Record) ([]byte, error) {
	if r == nil {
		r = NewRecord()
	}
	r.ensureMaps()
	return json.MarshalIndent(r, "", "  ")
}

func toCount(v interface{}) (int, error) {
	num, ok := v.(json.Number)
	if !ok {
		return 0, fmt.Errorf("count must be a number")
	}
	n, err := num.Int64()
	if err != nil {
		return 0, fmt.Errorf("count must be an integer: %s", num)
	}
	if n < 0 {
		return 0, fmt.Errorf("count must be non-negative: %d", n)
	}
	return int(n), nil
}
