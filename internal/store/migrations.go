package store

import (
	"context"
	"database/sql"
	"fmt"
)

// runMigrations executes all database migrations in a transaction
func (s *Store) runMigrations(ctx context.Context) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin migration transaction: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	steps := []struct {
		name string
		fn   func(context.Context, *sql.Tx) error
	}{
		{"users table", createUsersTable},
		{"chat_sessions table", createChatSessionsTable},
		{"settings table", createSettingsTable},
		{"pointers table", createPointersTable},
		{"indexes", createIndexes},
	}
	for _, step := range steps {
		if err = step.fn(ctx, tx); err != nil {
			return fmt.Errorf("failed to create %s: %w", step.name, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit migration transaction: %w", err)
	}
	return nil
}

func createUsersTable(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			email TEXT NOT NULL UNIQUE COLLATE NOCASE,
			name TEXT NOT NULL DEFAULT '',
			picture TEXT NOT NULL DEFAULT '',
			given_name TEXT NOT NULL DEFAULT '',
			family_name TEXT NOT NULL DEFAULT '',
			password_hash TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)
	`)
	return err
}

// Sessions are stored as JSON payloads. position orders them per user,
// lowest first, so inserting at the head takes min(position)-1.
func createChatSessionsTable(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS chat_sessions (
			user_id TEXT NOT NULL,
			id TEXT NOT NULL,
			position INTEGER NOT NULL,
			payload TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			PRIMARY KEY (user_id, id)
		)
	`)
	return err
}

func createSettingsTable(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS settings (
			user_id TEXT PRIMARY KEY,
			payload TEXT NOT NULL,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)
	`)
	return err
}

func createPointersTable(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS pointers (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)
	`)
	return err
}

func createIndexes(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx, `CREATE INDEX IF NOT EXISTS idx_chat_sessions_user_position ON chat_sessions(user_id, position)`)
	return err
}
