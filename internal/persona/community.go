package persona

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

var metadataLine = regexp.MustCompile(`^# (\w+):\s*(.+)$`)

// CommunityPersona describes an installable persona from the community collection.
type CommunityPersona struct {
	Name string `json:"name"`
	File string `json:"file"`

	// Metadata holds the "# Key: value" header lines, keys lowercased.
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Category returns the persona's category, or "Other" when unset.
func (p CommunityPersona) Category() string {
	if c := p.Metadata["category"]; c != "" {
		return c
	}
	return "Other"
}

// Community is a read-only directory of installable personas.
type Community struct {
	dir string
}

// NewCommunity creates a community collection rooted at dir. An empty dir
// is a valid, empty collection.
func NewCommunity(dir string) *Community {
	return &Community{dir: dir}
}

// Dir returns the collection directory.
func (c *Community) Dir() string {
	return c.dir
}

// List returns every community persona with its parsed metadata, sorted by name.
func (c *Community) List() ([]CommunityPersona, error) {
	names, err := listTxt(c.dir)
	if err != nil {
		return nil, err
	}

	out := make([]CommunityPersona, 0, len(names))
	for _, name := range names {
		file := name + Ext
		meta, err := readMetadata(filepath.Join(c.dir, file))
		if err != nil {
			return nil, fmt.Errorf("failed to read community persona %q: %w", name, err)
		}
		out = append(out, CommunityPersona{Name: name, File: file, Metadata: meta})
	}
	return out, nil
}

// Read returns a community persona's content.
func (c *Community) Read(name string) (string, error) {
	if err := ValidateName(name); err != nil {
		return "", err
	}
	data, err := os.ReadFile(filepath.Join(c.dir, name+Ext))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("community persona %q %w", name, ErrNotFound)
		}
		return "", fmt.Errorf("failed to read community persona %q: %w", name, err)
	}
	return string(data), nil
}

// Install copies a community persona into store and returns the installed path.
func (c *Community) Install(name string, store *Store) (string, error) {
	content, err := c.Read(name)
	if err != nil {
		return "", err
	}
	path, err := store.Save(name, content)
	if err != nil {
		return "", fmt.Errorf("failed to install community persona %q: %w", name, err)
	}
	return path, nil
}

// FilterByCategory keeps personas whose category contains category,
// case-insensitively. Personas without a category never match. An empty
// category returns the input unchanged.
func FilterByCategory(personas []CommunityPersona, category string) []CommunityPersona {
	if category == "" {
		return personas
	}
	needle := strings.ToLower(category)

	var out []CommunityPersona
	for _, p := range personas {
		c := p.Metadata["category"]
		if c != "" && strings.Contains(strings.ToLower(c), needle) {
			out = append(out, p)
		}
	}
	return out
}

// readMetadata parses leading "# Key: value" lines, stopping at the first
// line that does not start with '#'.
func readMetadata(path string) (map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	meta := make(map[string]string)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if !strings.HasPrefix(line, "#") {
			break
		}
		if m := metadataLine.FindStringSubmatch(line); m != nil {
			meta[strings.ToLower(m[1])] = strings.TrimSpace(m[2])
		}
	}
	return meta, scanner.Err()
}
