package analytics

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T, opts Options) *Store {
	t.Helper()
	return NewStore(filepath.Join(t.TempDir(), ".analytics.json"), opts)
}

func TestStore_LoadMissingFile(t *testing.T) {
	s := newTestStore(t, Options{})

	rec := s.Load()
	require.NotNil(t, rec)
	assert.Empty(t, rec.Usage)
	assert.Empty(t, rec.ContextPatterns)

	_, err := os.Stat(s.Path())
	assert.True(t, os.IsNotExist(err), "load must not create the file")
}

func TestStore_LoadInvalidContent(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"not json", "{not json"},
		{"array root", `[1, 2]`},
		{"usage wrong type", `{"usage": [], "contextPatterns": {}}`},
		{"negative count", `{"usage": {"coder": -1}}`},
		{"fractional count", `{"usage": {"coder": 1.5}}`},
		{"string count", `{"usage": {"coder": "3"}}`},
		{"patterns not nested", `{"usage": {}, "contextPatterns": {"coder": 4}}`},
		{"bad keyword count", `{"contextPatterns": {"coder": {"debug": true}}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestStore(t, Options{})
			require.NoError(t, os.WriteFile(s.Path(), []byte(tt.content), 0644))

			rec := s.Load()
			assert.Empty(t, rec.Usage)
			assert.Empty(t, rec.ContextPatterns)
		})
	}
}

func TestStore_LoadMissingFieldsAreEmpty(t *testing.T) {
	s := newTestStore(t, Options{})
	require.NoError(t, os.WriteFile(s.Path(), []byte(`{"usage": {"coder": 2}}`), 0644))

	rec := s.Load()
	assert.Equal(t, 2, rec.Usage["coder"])
	assert.NotNil(t, rec.ContextPatterns)
	assert.Empty(t, rec.ContextPatterns)
}

func TestStore_SaveThenLoad(t *testing.T) {
	s := newTestStore(t, Options{})

	want := &Record{
		Usage: map[string]int{"teacher": 3, "coder": 1},
		ContextPatterns: map[string]map[string]int{
			"teacher": {"recursion": 2, "explain": 1},
			"coder":   {},
		},
	}
	require.NoError(t, s.Save(want))

	got := s.Load()
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("record mismatch (-want +got):\n%s", diff)
	}
}

func TestStore_SaveWritesIndentedJSON(t *testing.T) {
	s := newTestStore(t, Options{})
	rec := NewRecord()
	rec.IncrementUsage("coder")
	require.NoError(t, s.Save(rec))

	data, err := os.ReadFile(s.Path())
	require.NoError(t, err)
	assert.Equal(t, "{\n  \"usage\": {\n    \"coder\": 1\n  },\n  \"contextPatterns\": {}\n}", string(data))

	leftovers, err := filepath.Glob(filepath.Join(filepath.Dir(s.Path()), "*.tmp"))
	require.NoError(t, err)
	assert.Empty(t, leftovers, "temp file should be renamed away")
}

func TestStore_SaveUnwritable(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0644))

	s := NewStore(filepath.Join(blocker, "nested", ".analytics.json"), Options{})
	err := s.Save(NewRecord())
	require.Error(t, err)

	var serr *StorageError
	require.True(t, errors.As(err, &serr))
	assert.Equal(t, "write", serr.Op)
	assert.Contains(t, serr.Error(), "analytics write failed")
}

func TestStore_UpdateIsLoadMutateSave(t *testing.T) {
	s := newTestStore(t, Options{})

	require.NoError(t, s.Update(func(r *Record) error {
		r.IncrementUsage("teacher")
		r.AddPatterns("teacher", []string{"explain", "recursion"})
		return nil
	}))
	require.NoError(t, s.Update(func(r *Record) error {
		r.IncrementUsage("teacher")
		r.AddPatterns("teacher", []string{"recursion"})
		return nil
	}))

	rec := s.Load()
	assert.Equal(t, 2, rec.Usage["teacher"])
	assert.Equal(t, map[string]int{"explain": 1, "recursion": 2}, rec.ContextPatterns["teacher"])
}

func TestStore_UpdateCallbackErrorSkipsWrite(t *testing.T) {
	s := newTestStore(t, Options{})
	boom := errors.New("boom")

	err := s.Update(func(r *Record) error {
		r.IncrementUsage("coder")
		return boom
	})
	assert.ErrorIs(t, err, boom)

	_, statErr := os.Stat(s.Path())
	assert.True(t, os.IsNotExist(statErr))
}

func TestStore_UpdateConcurrentWritersKeepAllIncrements(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".analytics.json")
	// Two handles on one file behave like two processes as far as the file
	// lock is concerned.
	a := NewStore(path, Options{})
	b := NewStore(path, Options{})

	const perWriter = 25
	var wg sync.WaitGroup
	for _, s := range []*Store{a, b} {
		wg.Add(1)
		go func(s *Store) {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				assert.NoError(t, s.Update(func(r *Record) error {
					r.IncrementUsage("coder")
					return nil
				}))
			}
		}(s)
	}
	wg.Wait()

	assert.Equal(t, 2*perWriter, a.Load().Usage["coder"])
}

func TestStore_UpdateAppliesKeywordCap(t *testing.T) {
	s := newTestStore(t, Options{KeywordHistoryCap: 2})

	require.NoError(t, s.Update(func(r *Record) error {
		r.AddPatterns("coder", []string{"debug", "debug", "debug", "function", "function", "code", "bugs"})
		return nil
	}))

	assert.Equal(t, map[string]int{"debug": 3, "function": 2}, s.Load().ContextPatterns["coder"])
}

func TestStore_Reset(t *testing.T) {
	s := newTestStore(t, Options{})
	require.NoError(t, s.Reset(), "reset of a missing file is not an error")

	rec := NewRecord()
	rec.IncrementUsage("casual")
	require.NoError(t, s.Save(rec))
	require.NoError(t, s.Reset())

	assert.Empty(t, s.Load().Usage)
}

func TestStore_StaleEntriesPersist(t *testing.T) {
	s := newTestStore(t, Options{})
	require.NoError(t, s.Update(func(r *Record) error {
		r.IncrementUsage("deleted-persona")
		r.AddPatterns("deleted-persona", []string{"legacy"})
		return nil
	}))
	require.NoError(t, s.Update(func(r *Record) error {
		r.IncrementUsage("coder")
		return nil
	}))

	rec := s.Load()
	assert.Equal(t, 1, rec.Usage["deleted-persona"])
	assert.True(t, rec.HasKeyword("deleted-persona", "legacy"))
}
