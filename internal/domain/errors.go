package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidInput           = errors.New("invalid input")
	ErrMissingCredential      = errors.New("completion API key is not configured")
	ErrTimeout                = errors.New("request timed out")
	ErrRateLimited            = errors.New("rate limit exceeded")
	ErrForbidden              = errors.New("API access denied")
	ErrRequestFailed          = errors.New("API request failed")
	ErrEmptyResponse          = errors.New("no response generated")
	ErrNetwork                = errors.New("network error")
	ErrInvalidCredentials     = errors.New("invalid credentials")
	ErrUserExists             = errors.New("user already exists")
	ErrNotFound               = errors.New("not found")
	ErrNoActiveUser           = errors.New("no user logged in")
	ErrPersistenceUnavailable = errors.New("remote persistence unavailable")
)

var (
	ErrSessionNotFound = fmt.Errorf("session %w", ErrNotFound)
	ErrMessageNotFound = fmt.Errorf("message %w", ErrNotFound)
	ErrUserNotFound    = fmt.Errorf("user %w", ErrNotFound)
)

// Reason attaches a human readable explanation to one of the sentinel
// errors above. errors.Is still matches the sentinel.
func Reason(kind error, msg string) error {
	if msg == "" {
		return kind
	}
	return &reasonError{kind: kind, msg: msg}
}

type reasonError struct {
	kind error
	msg  string
}

func (e *reasonError) Error() string { return e.msg }
func (e *reasonError) Unwrap() error { return e.kind }
