package storage

import (
	"fmt"

	"go.uber.org/zap"
)

// runMigrations executes database schema migrations.
func (s *SQLiteStorage) runMigrations() error {
	if s.db == nil {
		return nil
	}

	if err := s.createMigrationsTable(); err != nil {
		return err
	}

	version, err := s.getCurrentMigrationVersion()
	if err != nil {
		return err
	}

	migrations := []migration{
		{version: 1, name: "activation_history", up: s.migration001ActivationHistory},
		{version: 2, name: "suggestion_history", up: s.migration002SuggestionHistory},
	}

	for _, m := range migrations {
		if version < m.version {
			s.logger.Debug("running migration", zap.Int("version", m.version), zap.String("name", m.name))
			if err := m.up(); err != nil {
				return fmt.Errorf("migration %d failed: %w", m.version, err)
			}
			if err := s.setMigrationVersion(m.version, m.name); err != nil {
				return err
			}
		}
	}

	return nil
}

// migration represents a single database migration.
type migration struct {
	version int
	name    string
	up      func() error
}

// createMigrationsTable creates the schema_migrations table.
func (s *SQLiteStorage) createMigrationsTable() error {
	query := `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at TEXT NOT NULL DEFAULT (datetime('now'))
		)
	`
	_, err := s.db.Exec(query)
	return err
}

// getCurrentMigrationVersion returns the highest applied migration version.
func (s *SQLiteStorage) getCurrentMigrationVersion() (int, error) {
	row := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")

	var version int
	if err := row.Scan(&version); err != nil {
		return 0, err
	}

	return version, nil
}

// setMigrationVersion records a migration as applied.
func (s *SQLiteStorage) setMigrationVersion(version int, name string) error {
	_, err := s.db.Exec("INSERT INTO schema_migrations (version, name) VALUES (?, ?)", version, name)
	return err
}

// migration001ActivationHistory creates the persona_activations table.
func (s *SQLiteStorage) migration001ActivationHistory() error {
	if _, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS persona_activations (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			persona TEXT NOT NULL,
			context_hash TEXT NOT NULL DEFAULT '',
			source TEXT NOT NULL DEFAULT '',
			timestamp TEXT NOT NULL
		)
	`); err != nil {
		return fmt.Errorf("failed to create persona_activations table: %w", err)
	}

	if _, err := s.db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_persona_activations_persona
		ON persona_activations(persona)
	`); err != nil {
		return fmt.Errorf("failed to create persona_activations persona index: %w", err)
	}

	if _, err := s.db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_persona_activations_timestamp
		ON persona_activations(timestamp DESC)
	`); err != nil {
		return fmt.Errorf("failed to create persona_activations timestamp index: %w", err)
	}

	return nil
}

// migration002SuggestionHistory creates the suggestion_history table.
func (s *SQLiteStorage) migration002SuggestionHistory() error {
	if _, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS suggestion_history (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			suggestion_id TEXT NOT NULL UNIQUE,
			context_hash TEXT NOT NULL,
			persona TEXT NOT NULL DEFAULT '',
			confidence REAL NOT NULL DEFAULT 0,
			timestamp TEXT NOT NULL
		)
	`); err != nil {
		return fmt.Errorf("failed to create suggestion_history table: %w", err)
	}

	if _, err := s.db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_suggestion_history_timestamp
		ON suggestion_history(timestamp DESC)
	`); err != nil {
		return fmt.Errorf("failed to create suggestion_history timestamp index: %w", err)
	}

	return nil
}
