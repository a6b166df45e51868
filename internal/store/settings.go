package store

import (
	"context"
	"database/sql"
	"fmt"
)

// GetSettings returns the raw settings record, or nil if none was saved
func (s *Store) GetSettings(ctx context.Context, userID string) ([]byte, error) {
	var payload string
	err := s.db.QueryRowContext(ctx, `SELECT payload FROM settings WHERE user_id = ?`, userID).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get settings: %w", err)
	}
	return []byte(payload), nil
}

func (s *Store) PutSettings(ctx context.Context, userID string, data []byte) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO settings (user_id, payload) VALUES (?, ?)
		ON CONFLICT(user_id) DO UPDATE SET payload = excluded.payload, updated_at = CURRENT_TIMESTAMP`,
		userID, string(data))
	if err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}
	return nil
}

func (s *Store) DeleteSettings(ctx context.Context, userID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM settings WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("failed to delete settings: %w", err)
	}
	return nil
}
