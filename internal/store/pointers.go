package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"askai/internal/domain"
)

const (
	tokenKey          = "token"
	userKey           = "user"
	currentSessionKey = "currentSession_"
)

func (s *Store) getPointer(ctx context.Context, name string) (string, bool, error) {
	var v string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM pointers WHERE key = ?`, s.key(name)).Scan(&v)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read %s: %w", name, err)
	}
	return v, true, nil
}

func (s *Store) setPointer(ctx context.Context, name, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO pointers (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, s.key(name), value)
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	return nil
}

func (s *Store) deletePointer(ctx context.Context, name string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM pointers WHERE key = ?`, s.key(name)); err != nil {
		return fmt.Errorf("failed to delete %s: %w", name, err)
	}
	return nil
}

func (s *Store) SetAuthToken(ctx context.Context, token string) error {
	return s.setPointer(ctx, tokenKey, token)
}

// AuthToken returns the cached token, or "" when signed out
func (s *Store) AuthToken(ctx context.Context) (string, error) {
	v, _, err := s.getPointer(ctx, tokenKey)
	return v, err
}

func (s *Store) SetCurrentUser(ctx context.Context, u domain.User) error {
	data, err := json.Marshal(u)
	if err != nil {
		return fmt.Errorf("failed to encode current user: %w", err)
	}
	return s.setPointer(ctx, userKey, string(data))
}

// CurrentUser returns the cached signed-in user or ErrNoActiveUser
func (s *Store) CurrentUser(ctx context.Context) (*domain.User, error) {
	v, ok, err := s.getPointer(ctx, userKey)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, domain.ErrNoActiveUser
	}
	var u domain.User
	if err := json.Unmarshal([]byte(v), &u); err != nil || u.ID == "" {
		return nil, fmt.Errorf("%w: current user", ErrCorruptRecord)
	}
	return &u, nil
}

// ClearAuth forgets the cached token and signed-in user
func (s *Store) ClearAuth(ctx context.Context) error {
	if err := s.deletePointer(ctx, tokenKey); err != nil {
		return err
	}
	return s.deletePointer(ctx, userKey)
}

func (s *Store) SetActiveSession(ctx context.Context, userID, sessionID string) error {
	if sessionID == "" {
		return s.deletePointer(ctx, currentSessionKey+userID)
	}
	return s.setPointer(ctx, currentSessionKey+userID, sessionID)
}

// ActiveSession returns the remembered active session id, or ""
func (s *Store) ActiveSession(ctx context.Context, userID string) (string, error) {
	v, _, err := s.getPointer(ctx, currentSessionKey+userID)
	return v, err
}
