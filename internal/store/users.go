package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"askai/internal/auth"
	"askai/internal/domain"
)

// CreateUser stores a new local account with a bcrypt password hash. An
// account with the same email (case-insensitive) fails with ErrUserExists.
func (s *Store) CreateUser(ctx context.Context, u domain.User, password string) (*domain.User, error) {
	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	var exists bool
	err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) > 0 FROM users WHERE email = ?`, u.Email).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing user: %w", err)
	}
	if exists {
		return nil, domain.ErrUserExists
	}

	if u.ID == "" {
		u.ID = "local_" + uuid.NewString()
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO users (id, email, name, picture, given_name, family_name, password_hash)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.Email, u.Name, u.Picture, u.GivenName, u.FamilyName, hash)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE") {
			return nil, domain.ErrUserExists
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return &u, nil
}

// Authenticate verifies email and password against the local record.
// Unknown email and wrong password both yield ErrInvalidCredentials.
func (s *Store) Authenticate(ctx context.Context, email, password string) (*domain.User, error) {
	u, hash, err := s.scanUser(ctx, `WHERE email = ?`, email)
	if errors.Is(err, domain.ErrUserNotFound) {
		return nil, domain.ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if hash == "" || !auth.CheckPassword(password, hash) {
		return nil, domain.ErrInvalidCredentials
	}
	return u, nil
}

// GetUserByID returns the user or ErrUserNotFound
func (s *Store) GetUserByID(ctx context.Context, id string) (*domain.User, error) {
	u, _, err := s.scanUser(ctx, `WHERE id = ?`, id)
	return u, err
}

// UpsertUser mirrors a user record learned from the remote backend. The
// password hash of an existing row is kept.
func (s *Store) UpsertUser(ctx context.Context, u domain.User) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, email, name, picture, given_name, family_name)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			email = excluded.email,
			name = excluded.name,
			picture = excluded.picture,
			given_name = excluded.given_name,
			family_name = excluded.family_name`,
		u.ID, u.Email, u.Name, u.Picture, u.GivenName, u.FamilyName)
	if err != nil {
		return fmt.Errorf("failed to upsert user: %w", err)
	}
	return nil
}

func (s *Store) scanUser(ctx context.Context, where string, arg any) (*domain.User, string, error) {
	var u domain.User
	var hash string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, email, name, picture, given_name, family_name, password_hash FROM users `+where, arg).
		Scan(&u.ID, &u.Email, &u.Name, &u.Picture, &u.GivenName, &u.FamilyName, &hash)
	if err == sql.ErrNoRows {
		return nil, "", domain.ErrUserNotFound
	}
	if err != nil {
		return nil, "", fmt.Errorf("failed to get user: %w", err)
	}
	return &u, hash, nil
}
