package storage

import (
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// RecordActivation records one persona activation.
func (s *SQLiteStorage) RecordActivation(a Activation) error {
	if !s.enabled || s.db == nil {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if a.Timestamp.IsZero() {
		a.Timestamp = time.Now()
	}

	query := `
		INSERT INTO persona_activations (persona, context_hash, source, timestamp)
		VALUES (?, ?, ?, ?)
	`

	if _, err := s.db.Exec(query, a.Persona, a.ContextHash, a.Source, formatTime(a.Timestamp)); err != nil {
		return fmt.Errorf("failed to record activation: %w", err)
	}

	return nil
}

// RecentActivations returns up to limit activations, newest first.
func (s *SQLiteStorage) RecentActivations(limit int) ([]Activation, error) {
	if !s.enabled || s.db == nil {
		return []Activation{}, nil
	}
	if limit <= 0 {
		limit = 20
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(`
		SELECT persona, context_hash, source, timestamp
		FROM persona_activations
		ORDER BY timestamp DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query activations: %w", err)
	}
	defer rows.Close()

	return s.scanActivations(rows)
}

// ActivationsSince returns every activation at or after since, newest first.
func (s *SQLiteStorage) ActivationsSince(since time.Time) ([]Activation, error) {
	if !s.enabled || s.db == nil {
		return []Activation{}, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(`
		SELECT persona, context_hash, source, timestamp
		FROM persona_activations
		WHERE timestamp >= ?
		ORDER BY timestamp DESC, id DESC
	`, formatTime(since))
	if err != nil {
		return nil, fmt.Errorf("failed to query activations: %w", err)
	}
	defer rows.Close()

	return s.scanActivations(rows)
}

// ActivationCounts returns per-persona activation counts since a given time.
func (s *SQLiteStorage) ActivationCounts(since time.Time) (map[string]int, error) {
	counts := make(map[string]int)
	if !s.enabled || s.db == nil {
		return counts, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(`
		SELECT persona, COUNT(*)
		FROM persona_activations
		WHERE timestamp >= ?
		GROUP BY persona
	`, formatTime(since))
	if err != nil {
		return nil, fmt.Errorf("failed to count activations: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var persona string
		var n int
		if err := rows.Scan(&persona, &n); err != nil {
			return nil, fmt.Errorf("failed to scan activation count: %w", err)
		}
		counts[persona] = n
	}

	return counts, rows.Err()
}

func (s *SQLiteStorage) scanActivations(rows *sql.Rows) ([]Activation, error) {
	activations := []Activation{}
	for rows.Next() {
		var a Activation
		var timestampStr string

		if err := rows.Scan(&a.Persona, &a.ContextHash, &a.Source, &timestampStr); err != nil {
			s.logger.Warn("failed to scan activation row", zap.Error(err))
			continue
		}

		ts, err := time.Parse(time.RFC3339, timestampStr)
		if err != nil {
			s.logger.Warn("failed to parse activation timestamp",
				zap.String("timestamp", timestampStr), zap.Error(err))
			continue
		}
		a.Timestamp = ts

		activations = append(activations, a)
	}

	return activations, rows.Err()
}
