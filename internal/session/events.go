package session

import "askai/internal/domain"

type EventType string

const (
	EventSessionCreated   EventType = "session.created"
	EventSessionUpdated   EventType = "session.updated"
	EventSessionDeleted   EventType = "session.deleted"
	EventSessionActivated EventType = "session.activated"
	EventMessageAdded     EventType = "message.added"
	EventMessageUpdated   EventType = "message.updated"
)

// Event describes one in-memory mutation. Session and Message are copies.
type Event struct {
	Type      EventType           `json:"type"`
	SessionID string              `json:"sessionId"`
	MessageID string              `json:"messageId,omitempty"`
	Session   *domain.ChatSession `json:"session,omitempty"`
	Message   *domain.Message     `json:"message,omitempty"`
}

// Observer is notified after every mutation. It runs on the caller's
// goroutine and must not call back into the Manager.
type Observer func(Event)
