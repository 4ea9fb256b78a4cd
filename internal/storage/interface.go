/*
Package storage implements the persona activation history database.

It records every persona activation and every suggestion query in SQLite so
that trending reports and the history command have something to read. Context
text is never stored, only its SHA-256 hash.

The database lives at ~/.persona/history.db by default and uses
modernc.org/sqlite (a pure Go, CGo-free implementation). If it cannot be
opened the storage disables itself and every operation becomes a no-op.
*/
package storage

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/khanglvm/persona-mcp/internal/logging"
)

// Storage defines the interface for activation history operations.
type Storage interface {
	// Init initializes the database and runs migrations.
	Init() error

	// RecordActivation records one persona activation.
	RecordActivation(a Activation) error

	// RecentActivations returns up to limit activations, newest first.
	RecentActivations(limit int) ([]Activation, error)

	// ActivationsSince returns every activation at or after since, newest first.
	ActivationsSince(since time.Time) ([]Activation, error)

	// ActivationCounts returns per-persona activation counts since a given time.
	ActivationCounts(since time.Time) (map[string]int, error)

	// RecordSuggestion records the outcome of one suggestion query.
	RecordSuggestion(rec SuggestionRecord) error

	// RecentSuggestions returns up to limit suggestion records, newest first.
	RecentSuggestions(limit int) ([]SuggestionRecord, error)

	// Cleanup removes records older than retention.
	Cleanup(retention time.Duration) error

	// Close closes the database connection.
	Close() error
}

// SQLiteStorage implements the Storage interface using SQLite.
type SQLiteStorage struct {
	db       *sql.DB
	dbPath   string
	enabled  bool
	logger   *zap.Logger
	mu       sync.Mutex
	initOnce sync.Once
}

// NewStorage creates a SQLite storage instance for the database at dbPath.
//
// The parent directory is created on Init. An empty path yields a disabled
// storage whose operations succeed without doing anything.
func NewStorage(dbPath string, logger *zap.Logger) *SQLiteStorage {
	return &SQLiteStorage{
		dbPath:  dbPath,
		enabled: dbPath != "",
		logger:  logging.OrNop(logger),
	}
}

// DefaultPath returns ~/.persona/history.db.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".persona", "history.db"), nil
}

// Init initializes the database and runs migrations.
//
// If initialization fails, storage is disabled and subsequent operations
// become no-ops (graceful degradation).
func (s *SQLiteStorage) Init() error {
	if !s.enabled {
		return nil
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}

	var initErr error
	s.initOnce.Do(func() {
		dbDir := filepath.Dir(s.dbPath)
		if err := os.MkdirAll(dbDir, 0755); err != nil {
			initErr = fmt.Errorf("failed to create db directory: %w", err)
			s.disable(initErr)
			return
		}

		db, err := sql.Open("sqlite", s.dbPath)
		if err != nil {
			initErr = fmt.Errorf("failed to open database: %w", err)
			s.disable(initErr)
			return
		}
		s.db = db

		if err := db.Ping(); err != nil {
			initErr = fmt.Errorf("failed to ping database: %w", err)
			s.disable(initErr)
			return
		}

		if err := s.runMigrations(); err != nil {
			initErr = fmt.Errorf("failed to run migrations: %w", err)
			s.disable(initErr)
			return
		}
	})

	return initErr
}

// Enabled reports whether the database is usable.
func (s *SQLiteStorage) Enabled() bool {
	return s.enabled && s.db != nil
}

// Path returns the database file location.
func (s *SQLiteStorage) Path() string {
	return s.dbPath
}

func (s *SQLiteStorage) disable(err error) {
	s.enabled = false
	if s.db != nil {
		s.db.Close()
		s.db = nil
	}
	s.logger.Warn("history storage disabled", zap.String("path", s.dbPath), zap.Error(err))
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	if !s.enabled || s.db == nil {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}

	s.db = nil
	return nil
}

// HashContext creates a SHA256 hash of context text for privacy.
// Empty context hashes to the empty string.
func HashContext(context string) string {
	if context == "" {
		return ""
	}
	hash := sha256.Sum256([]byte(context))
	return hex.EncodeToString(hash[:])
}

// formatTime is the stored timestamp form. All rows use UTC so that string
// comparison matches chronological order.
func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
