package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"askai/internal/domain"
)

// sessionRecord is the serialized form of a session. Timestamps are kept as
// RFC 3339 strings and parsed back on every read.
type sessionRecord struct {
	ID          string          `json:"id"`
	Title       string          `json:"title"`
	Messages    []messageRecord `json:"messages"`
	CreatedAt   string          `json:"createdAt"`
	UpdatedAt   string          `json:"updatedAt"`
	IsArchived  bool            `json:"isArchived,omitempty"`
	Tags        []string        `json:"tags,omitempty"`
	Model       string          `json:"model,omitempty"`
	Temperature *float64        `json:"temperature,omitempty"`
}

type messageRecord struct {
	ID              string              `json:"id"`
	Content         string              `json:"content"`
	IsUser          bool                `json:"isUser"`
	Timestamp       string              `json:"timestamp"`
	IsLoading       bool                `json:"isLoading,omitempty"`
	Tokens          *int                `json:"tokens,omitempty"`
	Model           string              `json:"model,omitempty"`
	Attachments     []domain.Attachment `json:"attachments,omitempty"`
	IsEdited        bool                `json:"isEdited,omitempty"`
	OriginalContent string              `json:"originalContent,omitempty"`
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(field, v string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: bad %s %q", ErrCorruptRecord, field, v)
	}
	return t, nil
}

func toRecord(cs domain.ChatSession) sessionRecord {
	rec := sessionRecord{
		ID:          cs.ID,
		Title:       cs.Title,
		Messages:    make([]messageRecord, len(cs.Messages)),
		CreatedAt:   formatTime(cs.CreatedAt),
		UpdatedAt:   formatTime(cs.UpdatedAt),
		IsArchived:  cs.IsArchived,
		Tags:        cs.Tags,
		Model:       cs.Model,
		Temperature: cs.Temperature,
	}
	for i, m := range cs.Messages {
		rec.Messages[i] = messageRecord{
			ID:              m.ID,
			Content:         m.Content,
			IsUser:          m.IsUser,
			Timestamp:       formatTime(m.Timestamp),
			IsLoading:       m.IsLoading,
			Tokens:          m.Tokens,
			Model:           m.Model,
			Attachments:     m.Attachments,
			IsEdited:        m.IsEdited,
			OriginalContent: m.OriginalContent,
		}
	}
	return rec
}

func fromRecord(rec sessionRecord) (domain.ChatSession, error) {
	var err error
	cs := domain.ChatSession{
		ID:          rec.ID,
		Title:       rec.Title,
		Messages:    make([]domain.Message, len(rec.Messages)),
		IsArchived:  rec.IsArchived,
		Tags:        rec.Tags,
		Model:       rec.Model,
		Temperature: rec.Temperature,
	}
	if cs.CreatedAt, err = parseTime("createdAt", rec.CreatedAt); err != nil {
		return cs, err
	}
	if cs.UpdatedAt, err = parseTime("updatedAt", rec.UpdatedAt); err != nil {
		return cs, err
	}
	for i, m := range rec.Messages {
		ts, err := parseTime("timestamp", m.Timestamp)
		if err != nil {
			return cs, err
		}
		cs.Messages[i] = domain.Message{
			ID:              m.ID,
			Content:         m.Content,
			IsUser:          m.IsUser,
			Timestamp:       ts,
			IsLoading:       m.IsLoading,
			Tokens:          m.Tokens,
			Model:           m.Model,
			Attachments:     m.Attachments,
			IsEdited:        m.IsEdited,
			OriginalContent: m.OriginalContent,
		}
	}
	return cs, nil
}

func decodeSession(payload string) (domain.ChatSession, error) {
	var rec sessionRecord
	if err := json.Unmarshal([]byte(payload), &rec); err != nil {
		return domain.ChatSession{}, fmt.Errorf("%w: %v", ErrCorruptRecord, err)
	}
	return fromRecord(rec)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// putSession inserts or replaces a session. New sessions go to the head of
// the user's list, existing ones keep their position.
func putSession(ctx context.Context, q execer, userID string, cs domain.ChatSession) error {
	payload, err := json.Marshal(toRecord(cs))
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}

	_, err = q.ExecContext(ctx, `
		INSERT INTO chat_sessions (user_id, id, position, payload, updated_at)
		VALUES (?, ?, (SELECT COALESCE(MIN(position), 0) - 1 FROM chat_sessions WHERE user_id = ?), ?, ?)
		ON CONFLICT(user_id, id) DO UPDATE SET
			payload = excluded.payload,
			updated_at = excluded.updated_at`,
		userID, cs.ID, userID, string(payload), formatTime(cs.UpdatedAt))
	if err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// SaveSession stores the session for userID and returns it as stored
func (s *Store) SaveSession(ctx context.Context, userID string, cs domain.ChatSession) (*domain.ChatSession, error) {
	if err := putSession(ctx, s.db, userID, cs); err != nil {
		return nil, err
	}
	out := cs.Clone()
	return &out, nil
}

// GetSessions returns the user's sessions, newest insertion first. A single
// corrupt record fails the whole load.
func (s *Store) GetSessions(ctx context.Context, userID string) ([]domain.ChatSession, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, payload FROM chat_sessions WHERE user_id = ? ORDER BY position ASC`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	sessions := []domain.ChatSession{}
	for rows.Next() {
		var id, payload string
		if err := rows.Scan(&id, &payload); err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		cs, err := decodeSession(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to load session %s: %w", id, err)
		}
		sessions = append(sessions, cs)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sessions: %w", err)
	}
	return sessions, nil
}

// ReplaceSessions makes the user's local list exactly sessions, in order.
// Used to mirror a list read from the remote backend.
func (s *Store) ReplaceSessions(ctx context.Context, userID string, sessions []domain.ChatSession) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM chat_sessions WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("failed to clear sessions: %w", err)
	}
	// Insert from the tail so the first element ends up at the head
	for i := len(sessions) - 1; i >= 0; i-- {
		if err = putSession(ctx, tx, userID, sessions[i]); err != nil {
			return err
		}
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit sessions: %w", err)
	}
	return nil
}

// UpdateSession merges patch into the stored session and bumps updatedAt.
func (s *Store) UpdateSession(ctx context.Context, userID, id string, patch domain.SessionPatch) (*domain.ChatSession, error) {
	var payload string
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM chat_sessions WHERE user_id = ? AND id = ?`, userID, id).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, domain.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	cs, err := decodeSession(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to load session %s: %w", id, err)
	}
	if patch.UpdatedAt == nil {
		now := time.Now()
		patch.UpdatedAt = &now
	}
	patch.Apply(&cs)

	if err := putSession(ctx, s.db, userID, cs); err != nil {
		return nil, err
	}
	return &cs, nil
}

// DeleteSession removes the session. Deleting a missing session is not an error.
func (s *Store) DeleteSession(ctx context.Context, userID, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM chat_sessions WHERE user_id = ? AND id = ?`, userID, id)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}
