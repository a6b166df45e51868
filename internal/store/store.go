// Package store is the local durable fallback behind the persistence
// gateway: users with bcrypt password hashes, per-user ordered sessions,
// per-user settings and a handful of namespaced pointers.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// DefaultNamespace prefixes every pointer key
const DefaultNamespace = "askAI_"

// ErrCorruptRecord is returned when a stored record cannot be decoded. It
// fails the whole load.
var ErrCorruptRecord = errors.New("corrupt local record")

// Store provides database operations for the local fallback
type Store struct {
	db *sql.DB
	ns string
}

// NewStore opens (or creates) the sqlite database at path and migrates it
func NewStore(path string, namespace string) (*Store, error) {
	// WAL for concurrent readers, busy timeout for write contention
	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if namespace == "" {
		namespace = DefaultNamespace
	}
	s := &Store{db: db, ns: namespace}

	if err := s.runMigrations(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return s, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *Store) key(name string) string {
	return s.ns + name
}
