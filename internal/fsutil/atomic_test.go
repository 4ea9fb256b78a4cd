package fsutil

import (
	"os"
	"path/filepath"
	"testing"
)

func TestWriteFileAtomic(t *testing.T) {
	dir := t.TempDir()
	testPath := filepath.Join(dir, "config.json")

	data := []byte(`{"test": "data"}`)
	if err := WriteFileAtomic(testPath, data, 0644); err != nil {
		t.Fatalf("WriteFileAtomic failed: %v", err)
	}

	readData, err := os.ReadFile(testPath)
	if err != nil {
		t.Fatalf("failed to read file: %v", err)
	}
	if string(readData) != string(data) {
		t.Errorf("content mismatch: got %q, want %q", string(readData), string(data))
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("failed to list dir: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("temp file was not cleaned up: %d entries", len(entries))
	}
}

func TestWriteFileAtomicReplaces(t *testing.T) {
	testPath := filepath.Join(t.TempDir(), "persona.md")
	if err := os.WriteFile(testPath, []byte("old"), 0644); err != nil {
		t.Fatalf("failed to seed file: %v", err)
	}

	if err := WriteFileAtomic(testPath, []byte("new"), 0600); err != nil {
		t.Fatalf("WriteFileAtomic failed: %v", err)
	}

	readData, err := os.ReadFile(testPath)
	if err != nil {
		t.Fatalf("failed to read file: %v", err)
	}
	if string(readData) != "new" {
		t.Errorf("content mismatch: got %q, want %q", string(readData), "new")
	}
	info, err := os.Stat(testPath)
	if err != nil {
		t.Fatalf("stat failed: %v", err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("mode = %v, want 0600", info.Mode().Perm())
	}
}

func TestWriteFileAtomicCreatesDir(t *testing.T) {
	testPath := filepath.Join(t.TempDir(), "subdir", "config.json")

	if err := WriteFileAtomic(testPath, []byte(`{}`), 0644); err != nil {
		t.Fatalf("WriteFileAtomic failed: %v", err)
	}
	if _, err := os.Stat(testPath); os.IsNotExist(err) {
		t.Error("file was not created")
	}
}

func TestWriteFileAtomicBlockedDir(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "blocker")
	if err := os.WriteFile(blocker, []byte("x"), 0644); err != nil {
		t.Fatalf("failed to create blocker: %v", err)
	}

	if err := WriteFileAtomic(filepath.Join(blocker, "sub", "a.json"), []byte(`{}`), 0644); err == nil {
		t.Fatal("expected error when parent is a regular file")
	}
}
