package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestBackupConfig(t *testing.T) {
	testPath := filepath.Join(t.TempDir(), "config.json")

	originalData := []byte(`{"original": true}`)
	if err := os.WriteFile(testPath, originalData, 0644); err != nil {
		t.Fatalf("failed to create original config: %v", err)
	}

	if err := backupConfig(testPath); err != nil {
		t.Fatalf("backupConfig failed: %v", err)
	}

	bakData, err := os.ReadFile(testPath + ".bak")
	if err != nil {
		t.Fatalf("failed to read backup: %v", err)
	}
	if string(bakData) != string(originalData) {
		t.Errorf("backup content mismatch: got %q, want %q", string(bakData), string(originalData))
	}
}

func TestBackupConfigFirstRun(t *testing.T) {
	testPath := filepath.Join(t.TempDir(), "config.json")

	if err := backupConfig(testPath); err != nil {
		t.Fatalf("backupConfig failed on first run: %v", err)
	}
	if _, err := os.Stat(testPath + ".bak"); !os.IsNotExist(err) {
		t.Error("backup should not exist on first run")
	}
}

func TestValidateJSON(t *testing.T) {
	tests := []struct {
		name    string
		data    []byte
		wantErr bool
		errMsg  string
	}{
		{
			name: "valid config",
			data: []byte(`{"paths": {"personaDir": "/p"}}`),
		},
		{
			name:    "zero divisor",
			data:    []byte(`{"suggestion": {"confidenceDivisor": 0}}`),
			wantErr: true,
			errMsg:  "confidenceDivisor",
		},
		{
			name:    "unknown field",
			data:    []byte(`{"servers": {}}`),
			wantErr: true,
			errMsg:  "unknown field",
		},
		{
			name:    "invalid JSON",
			data:    []byte(`{invalid json}`),
			wantErr: true,
			errMsg:  "invalid character",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateJSON(tt.data)
			if (err != nil) != tt.wantErr {
				t.Errorf("validateJSON() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if err != nil && !strings.Contains(err.Error(), tt.errMsg) {
				t.Errorf("error message should contain %q, got %q", tt.errMsg, err.Error())
			}
		})
	}
}

func TestSaveCreatesBackup(t *testing.T) {
	testPath := filepath.Join(t.TempDir(), "config.json")

	cfg := NewConfig()
	cfg.HTTP.Addr = ":3001"
	if err := Save(cfg, testPath); err != nil {
		t.Fatalf("first Save failed: %v", err)
	}

	cfg.HTTP.Addr = ":3002"
	if err := Save(cfg, testPath); err != nil {
		t.Fatalf("second Save failed: %v", err)
	}

	bakData, err := os.ReadFile(testPath + ".bak")
	if err != nil {
		t.Fatalf("failed to read backup: %v", err)
	}
	if !strings.Contains(string(bakData), `":3001"`) || strings.Contains(string(bakData), `":3002"`) {
		t.Error("backup should contain old config, not new config")
	}
}

func TestSaveRejectsInvalidConfig(t *testing.T) {
	testPath := filepath.Join(t.TempDir(), "config.json")

	cfg := NewConfig()
	cfg.Suggestion.MaxConfidence = 1.5

	err := Save(cfg, testPath)
	if err == nil {
		t.Fatal("Save should reject maxConfidence > 1")
	}
	var invalid *InvalidConfigError
	if !errors.As(err, &invalid) {
		t.Errorf("expected InvalidConfigError, got %T", err)
	}
	if _, statErr := os.Stat(testPath); !os.IsNotExist(statErr) {
		t.Error("invalid config must not be written")
	}
}

func TestSaveReadOnlyFile(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("root ignores file permissions")
	}
	testPath := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(testPath, []byte(`{}`), 0444); err != nil {
		t.Fatalf("failed to create test file: %v", err)
	}

	err := Save(NewConfig(), testPath)
	var permErr *PermissionError
	if !errors.As(err, &permErr) {
		t.Fatalf("expected PermissionError, got %v", err)
	}
	if permErr.Op != "write" || !strings.Contains(permErr.Fix, "chmod u+w") {
		t.Errorf("unexpected permission error: %+v", permErr)
	}
}
