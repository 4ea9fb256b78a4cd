/*
Package persona manages persona text files.

A persona is a plain-text prompt stored as <dir>/<name>.txt. The package also
reads the read-only community collection (installable personas carrying
"# Key: value" metadata headers) and per-persona knowledge-base documents.
*/
package persona

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/khanglvm/persona-mcp/internal/fsutil"
)

const (
	// Ext is the persona file extension.
	Ext = ".txt"

	// MaxContentBytes bounds persona content size.
	MaxContentBytes = 100 * 1024
)

var namePattern = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,64}$`)

// ErrNotFound is returned when a persona, community persona or knowledge
// base does not exist.
var ErrNotFound = errors.New("not found")

// ValidationError reports invalid persona input.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// ValidateName checks a persona name. Only letters, digits, '-' and '_' are
// allowed, so names can never escape the persona directory.
func ValidateName(name string) error {
	if name == "" {
		return &ValidationError{Field: "name", Reason: "must not be empty"}
	}
	if len(name) > 64 {
		return &ValidationError{Field: "name", Reason: "must be at most 64 characters"}
	}
	if !namePattern.MatchString(name) {
		return &ValidationError{Field: "name", Reason: "may only contain letters, digits, '-' and '_'"}
	}
	return nil
}

// ValidateContent checks persona content.
func ValidateContent(content string) error {
	if strings.TrimSpace(content) == "" {
		return &ValidationError{Field: "content", Reason: "must not be empty"}
	}
	if len(content) > MaxContentBytes {
		return &ValidationError{Field: "content", Reason: fmt.Sprintf("must be at most %d bytes", MaxContentBytes)}
	}
	return nil
}

// Store is the local persona directory.
type Store struct {
	dir string
}

// NewStore creates a store rooted at dir.
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// Dir returns the persona directory.
func (s *Store) Dir() string {
	return s.dir
}

// EnsureDir creates the persona directory if needed.
func (s *Store) EnsureDir() error {
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("failed to create persona directory: %w", err)
	}
	return nil
}

// Path returns the file path for a persona name. The name is not validated.
func (s *Store) Path(name string) string {
	return filepath.Join(s.dir, name+Ext)
}

// Names returns the known persona names in sorted order. A missing directory
// yields an empty list.
func (s *Store) Names() ([]string, error) {
	return listTxt(s.dir)
}

// Read returns a persona's content.
func (s *Store) Read(name string) (string, error) {
	if err := ValidateName(name); err != nil {
		return "", err
	}
	data, err := os.ReadFile(s.Path(name))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("persona %q %w", name, ErrNotFound)
		}
		return "", fmt.Errorf("failed to read persona %q: %w", name, err)
	}
	return string(data), nil
}

// Exists reports whether a persona file is present.
func (s *Store) Exists(name string) bool {
	if ValidateName(name) != nil {
		return false
	}
	info, err := os.Stat(s.Path(name))
	return err == nil && info.Mode().IsRegular()
}

// Save creates or replaces a persona and returns its path.
func (s *Store) Save(name, content string) (string, error) {
	if err := ValidateName(name); err != nil {
		return "", err
	}
	if err := ValidateContent(content); err != nil {
		return "", err
	}
	if err := s.EnsureDir(); err != nil {
		return "", err
	}

	path := s.Path(name)
	if err := fsutil.WriteFileAtomic(path, []byte(content), 0644); err != nil {
		return "", fmt.Errorf("failed to write persona %q: %w", name, err)
	}
	return path, nil
}

// Delete removes a persona.
func (s *Store) Delete(name string) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	if err := os.Remove(s.Path(name)); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("persona %q %w", name, ErrNotFound)
		}
		return fmt.Errorf("failed to delete persona %q: %w", name, err)
	}
	return nil
}

// listTxt returns the sorted basenames of regular *.txt files in dir.
func listTxt(dir string) ([]string, error) {
	if dir == "" {
		return []string{}, nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to read directory %s: %w", dir, err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.Type().IsRegular() || filepath.Ext(e.Name()) != Ext {
			continue
		}
		names = append(names, strings.TrimSuffix(e.Name(), Ext))
	}
	sort.Strings(names)
	return names, nil
}
