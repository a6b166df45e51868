package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"askai/internal/domain"
)

// AllDataFilename is the download name of a full export
const AllDataFilename = "ask_ai_data.json"

// SessionExport is the single-conversation download format
type SessionExport struct {
	Title     string           `json:"title"`
	Messages  []domain.Message `json:"messages"`
	CreatedAt time.Time        `json:"createdAt"`
	UpdatedAt time.Time        `json:"updatedAt"`
}

// DataExport is the full download: every session plus the settings
type DataExport struct {
	Sessions   []domain.ChatSession `json:"sessions"`
	Settings   domain.ChatSettings  `json:"settings"`
	ExportedAt time.Time            `json:"exportedAt"`
}

// SettingsStore is the part of the settings service the export needs
type SettingsStore interface {
	Load(ctx context.Context, userID string) (domain.ChatSettings, error)
	Reset(ctx context.Context, userID string) (domain.ChatSettings, error)
}

// ExportFilename replaces every character outside [A-Za-z0-9] with "_",
// lower-cases the result and adds ".json".
func ExportFilename(title string) string {
	name := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		default:
			return '_'
		}
	}, title)
	return strings.ToLower(name) + ".json"
}

// ExportSession renders one session as an indented JSON document
func (s *Service) ExportSession(sessionID string) (filename string, data []byte, err error) {
	cs, err := s.sessions.Session(sessionID)
	if err != nil {
		return "", nil, err
	}
	messages := cs.Messages
	if messages == nil {
		messages = []domain.Message{}
	}
	data, err = json.MarshalIndent(SessionExport{
		Title:     cs.Title,
		Messages:  messages,
		CreatedAt: cs.CreatedAt,
		UpdatedAt: cs.UpdatedAt,
	}, "", "  ")
	if err != nil {
		return "", nil, fmt.Errorf("failed to encode session: %w", err)
	}
	return ExportFilename(cs.Title), data, nil
}

// ImportMessages reads the messages back out of a session export
func ImportMessages(data []byte) ([]domain.Message, error) {
	doc, err := parseSessionExport(data)
	if err != nil {
		return nil, err
	}
	return doc.Messages, nil
}

type sessionDoc struct {
	Title    string           `json:"title"`
	Messages []domain.Message `json:"messages"`
}

func parseSessionExport(data []byte) (sessionDoc, error) {
	var doc sessionDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return sessionDoc{}, domain.Reason(domain.ErrInvalidInput, "invalid export file: "+err.Error())
	}
	if doc.Messages == nil {
		return sessionDoc{}, domain.Reason(domain.ErrInvalidInput, "export file has no messages")
	}
	return doc, nil
}

// ImportSession creates a new session from a session export. Loading flags
// are cleared so the transcript is settled.
func (s *Service) ImportSession(data []byte) (domain.ChatSession, error) {
	doc, err := parseSessionExport(data)
	if err != nil {
		return domain.ChatSession{}, err
	}

	cs := s.sessions.CreateSession(strings.TrimSpace(doc.Title))
	for _, m := range doc.Messages {
		m.IsLoading = false
		if _, err := s.sessions.AddMessage(cs.ID, m); err != nil {
			return domain.ChatSession{}, err
		}
	}
	return s.sessions.Session(cs.ID)
}

// ExportAll renders every session and the user's settings
func (s *Service) ExportAll(ctx context.Context, prefs SettingsStore) ([]byte, error) {
	cs, err := prefs.Load(ctx, s.sessions.UserID())
	if err != nil {
		return nil, err
	}
	data, err := json.MarshalIndent(DataExport{
		Sessions:   s.sessions.Sessions(),
		Settings:   cs,
		ExportedAt: time.Now().UTC(),
	}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode export: %w", err)
	}
	return data, nil
}

// ClearAll deletes every session and resets the settings to defaults
func (s *Service) ClearAll(ctx context.Context, prefs SettingsStore) error {
	for _, cs := range s.sessions.Sessions() {
		s.sessions.DeleteSession(cs.ID)
	}
	if _, err := prefs.Reset(ctx, s.sessions.UserID()); err != nil {
		return fmt.Errorf("failed to reset settings: %w", err)
	}
	s.logger.WithContext("user_id", s.sessions.UserID()).Info("all chat data cleared")
	return nil
}
