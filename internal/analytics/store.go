package analytics

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"go.uber.org/zap"

	"github.com/khanglvm/persona-mcp/internal/fsutil"
	"github.com/khanglvm/persona-mcp/internal/logging"
)

// StorageError reports a failed analytics write.
type StorageError struct {
	Path string
	Op   string
	Err  error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("analytics %s failed (%s): %v", e.Op, e.Path, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// Options configures a Store.
type Options struct {
	// KeywordHistoryCap bounds the keywords retained per persona after each
	// update. Zero keeps every keyword.
	KeywordHistoryCap int

	// Logger receives warnings about unreadable files. Nil disables logging.
	Logger *zap.Logger
}

// Store is a handle on one analytics file.
//
// Load and Save touch the file directly; nothing is cached between calls.
// Update serializes load-mutate-save cycles with an in-process mutex and an
// advisory lock on "<path>.lock" so concurrent writers cannot lose updates.
type Store struct {
	path       string
	historyCap int
	logger     *zap.Logger
	mu         sync.Mutex
}

// NewStore creates a store backed by the file at path.
func NewStore(path string, opts Options) *Store {
	return &Store{
		path:       path,
		historyCap: opts.KeywordHistoryCap,
		logger:     logging.OrNop(opts.Logger),
	}
}

// Path returns the backing file location.
func (s *Store) Path() string {
	return s.path
}

// Load returns the persisted record, or an empty record when the file is
// missing, unreadable, or structurally invalid. It never fails.
func (s *Store) Load() *Record {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			s.logger.Warn("analytics file unreadable, using empty record",
				zap.String("path", s.path), zap.Error(err))
		}
		return NewRecord()
	}

	rec, err := Decode(data)
	if err != nil {
		s.logger.Warn("analytics file malformed, using empty record",
			zap.String("path", s.path), zap.Error(err))
		return NewRecord()
	}
	return rec
}

// Save persists the full record, replacing prior content.
func (s *Store) Save(rec *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	unlock := s.lock()
	defer unlock()

	return s.write(rec)
}

// Update loads the record, applies fn, and saves the result as one guarded
// step. If fn returns an error nothing is written.
func (s *Store) Update(fn func(*Record) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	unlock := s.lock()
	defer unlock()

	rec := s.Load()
	if err := fn(rec); err != nil {
		return err
	}
	rec.PruneKeywords(s.historyCap)
	return s.write(rec)
}

// Reset deletes the backing file. A missing file is not an error.
func (s *Store) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return &StorageError{Path: s.path, Op: "delete", Err: err}
	}
	return nil
}

// write encodes rec and replaces the file via temp file + rename.
func (s *Store) write(rec *Record) error {
	data, err := Encode(rec)
	if err != nil {
		return &StorageError{Path: s.path, Op: "encode", Err: err}
	}

	if err := fsutil.WriteFileAtomic(s.path, data, 0644); err != nil {
		return &StorageError{Path: s.path, Op: "write", Err: err}
	}
	return nil
}

// lock takes the cross-process file lock. When the lock file cannot be
// opened the in-process mutex is the only guard and a warning is logged.
func (s *Store) lock() func() {
	unlock, err := lockFile(s.path + ".lock")
	if err != nil {
		s.logger.Warn("analytics file lock unavailable",
			zap.String("path", s.path), zap.Error(err))
		return func() {}
	}
	return unlock
}
