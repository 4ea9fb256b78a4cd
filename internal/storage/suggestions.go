package storage

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// RecordSuggestion records the outcome of one suggestion query.
// A missing SuggestionID is filled with a new UUID.
func (s *SQLiteStorage) RecordSuggestion(rec SuggestionRecord) error {
	if !s.enabled || s.db == nil {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if rec.SuggestionID == "" {
		rec.SuggestionID = uuid.NewString()
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now()
	}

	query := `
		INSERT INTO suggestion_history (suggestion_id, context_hash, persona, confidence, timestamp)
		VALUES (?, ?, ?, ?, ?)
	`

	if _, err := s.db.Exec(query,
		rec.SuggestionID,
		rec.ContextHash,
		rec.Persona,
		rec.Confidence,
		formatTime(rec.Timestamp),
	); err != nil {
		return fmt.Errorf("failed to record suggestion: %w", err)
	}

	return nil
}

// RecentSuggestions returns up to limit suggestion records, newest first.
func (s *SQLiteStorage) RecentSuggestions(limit int) ([]SuggestionRecord, error) {
	if !s.enabled || s.db == nil {
		return []SuggestionRecord{}, nil
	}
	if limit <= 0 {
		limit = 20
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(`
		SELECT suggestion_id, context_hash, persona, confidence, timestamp
		FROM suggestion_history
		ORDER BY timestamp DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query suggestions: %w", err)
	}
	defer rows.Close()

	records := []SuggestionRecord{}
	for rows.Next() {
		var rec SuggestionRecord
		var timestampStr string
		if err := rows.Scan(&rec.SuggestionID, &rec.ContextHash, &rec.Persona, &rec.Confidence, &timestampStr); err != nil {
			s.logger.Warn("failed to scan suggestion row", zap.Error(err))
			continue
		}
		ts, err := time.Parse(time.RFC3339, timestampStr)
		if err != nil {
			s.logger.Warn("failed to parse suggestion timestamp",
				zap.String("timestamp", timestampStr), zap.Error(err))
			continue
		}
		rec.Timestamp = ts
		records = append(records, rec)
	}

	return records, rows.Err()
}

// Cleanup removes old records based on retention policy.
func (s *SQLiteStorage) Cleanup(retention time.Duration) error {
	if !s.enabled || s.db == nil {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := formatTime(time.Now().Add(-retention))

	if _, err := s.db.Exec("DELETE FROM persona_activations WHERE timestamp < ?", cutoff); err != nil {
		s.logger.Warn("failed to cleanup persona_activations", zap.Error(err))
	}

	if _, err := s.db.Exec("DELETE FROM suggestion_history WHERE timestamp < ?", cutoff); err != nil {
		s.logger.Warn("failed to cleanup suggestion_history", zap.Error(err))
	}

	if _, err := s.db.Exec("VACUUM"); err != nil {
		s.logger.Warn("failed to vacuum database", zap.Error(err))
	}

	return nil
}
