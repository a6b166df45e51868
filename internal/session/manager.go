// Package session keeps the in-memory session list and the active session
// for one signed-in user. Mutations apply synchronously; durable writes are
// queued to a single background writer and never block the caller.
package session

import (
	"context"
	"sync"
	"time"

	"askai/internal/domain"
	"askai/internal/logging"
	"askai/internal/settings"

	"github.com/google/uuid"
)

const (
	DefaultTitle        = "New Chat"
	CopySuffix          = " (Copy)"
	DefaultWriteTimeout = 15 * time.Second
)

// Store is the durable side of the manager, normally the persistence gateway
type Store interface {
	SaveSession(ctx context.Context, userID string, cs domain.ChatSession) (*domain.ChatSession, error)
	GetSessions(ctx context.Context, userID string) ([]domain.ChatSession, error)
	UpdateSession(ctx context.Context, id string, patch domain.SessionPatch) (*domain.ChatSession, error)
	DeleteSession(ctx context.Context, id string) error
	RememberActiveSession(ctx context.Context, userID, sessionID string) error
	ActiveSession(ctx context.Context, userID string) (string, error)
}

type Option func(*Manager)

// WithClock overrides time.Now
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithIDs overrides the id generator
func WithIDs(newID func() string) Option {
	return func(m *Manager) { m.newID = newID }
}

func WithObserver(o Observer) Option {
	return func(m *Manager) { m.observers = append(m.observers, o) }
}

// WithWriteTimeout bounds each durable write
func WithWriteTimeout(d time.Duration) Option {
	return func(m *Manager) { m.writeTimeout = d }
}

// Manager is the single source of truth for a user's sessions
type Manager struct {
	mu       sync.Mutex
	userID   string
	sessions []domain.ChatSession
	activeID string

	store        Store
	writes       *writer
	writeTimeout time.Duration
	observers    []Observer
	now          func() time.Time
	newID        func() string
	logger       *logging.Logger
}

func NewManager(userID string, store Store, logger *logging.Logger, opts ...Option) *Manager {
	m := &Manager{
		userID:       userID,
		store:        store,
		writeTimeout: DefaultWriteTimeout,
		now:          time.Now,
		newID:        uuid.NewString,
		logger:       logger,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.writes = newWriter(m.writeTimeout, logger)
	return m
}

// UserID returns the owner of the managed sessions
func (m *Manager) UserID() string {
	return m.userID
}

// Load replaces the in-memory list with the durable one and restores the
// remembered active session if it still exists.
func (m *Manager) Load(ctx context.Context) error {
	sessions, err := m.store.GetSessions(ctx, m.userID)
	if err != nil {
		return err
	}
	activeID, err := m.store.ActiveSession(ctx, m.userID)
	if err != nil {
		m.logger.WithContext("error", err.Error()).Warn("failed to restore active session")
		activeID = ""
	}

	m.mu.Lock()
	m.sessions = make([]domain.ChatSession, len(sessions))
	for i, cs := range sessions {
		m.sessions[i] = cs.Clone()
	}
	m.activeID = ""
	if activeID != "" && m.indexOf(activeID) >= 0 {
		m.activeID = activeID
	}
	count := len(m.sessions)
	m.mu.Unlock()

	m.logger.WithFields(map[string]interface{}{
		"user_id":  m.userID,
		"sessions": count,
	}).Info("sessions loaded")
	return nil
}

// Sessions returns copies of every session, newest first
func (m *Manager) Sessions() []domain.ChatSession {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.ChatSession, len(m.sessions))
	for i, cs := range m.sessions {
		out[i] = cs.Clone()
	}
	return out
}

func (m *Manager) Session(id string) (domain.ChatSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.indexOf(id)
	if i < 0 {
		return domain.ChatSession{}, domain.ErrSessionNotFound
	}
	return m.sessions[i].Clone(), nil
}

// Active returns the active session, if any
func (m *Manager) Active() (domain.ChatSession, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.indexOf(m.activeID)
	if i < 0 {
		return domain.ChatSession{}, false
	}
	return m.sessions[i].Clone(), true
}

func (m *Manager) ActiveID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.activeID
}

// SetActive switches the active session. An empty id clears it.
func (m *Manager) SetActive(id string) error {
	m.mu.Lock()
	if id != "" && m.indexOf(id) < 0 {
		m.mu.Unlock()
		return domain.ErrSessionNotFound
	}
	m.activeID = id
	m.rememberActive(id)
	m.mu.Unlock()

	m.emit(Event{Type: EventSessionActivated, SessionID: id})
	return nil
}

// CreateSession prepends a fresh session. It does not change the active id.
func (m *Manager) CreateSession(title string) domain.ChatSession {
	if title == "" {
		title = DefaultTitle
	}
	now := m.now()
	temp := settings.DefaultTemperature
	cs := domain.ChatSession{
		ID:          m.newID(),
		Title:       title,
		Messages:    []domain.Message{},
		CreatedAt:   now,
		UpdatedAt:   now,
		Model:       settings.DefaultModel,
		Temperature: &temp,
	}

	m.mu.Lock()
	m.sessions = append([]domain.ChatSession{cs}, m.sessions...)
	m.saveSession(cs.Clone())
	m.mu.Unlock()

	out := cs.Clone()
	m.emit(Event{Type: EventSessionCreated, SessionID: cs.ID, Session: &out})
	return cs.Clone()
}

// UpdateSession merges patch into the session and bumps updatedAt
func (m *Manager) UpdateSession(id string, patch domain.SessionPatch) error {
	m.mu.Lock()
	i := m.indexOf(id)
	if i < 0 {
		m.mu.Unlock()
		return domain.ErrSessionNotFound
	}
	m.applyPatch(i, patch)
	out := m.sessions[i].Clone()
	m.mu.Unlock()

	m.emit(Event{Type: EventSessionUpdated, SessionID: id, Session: &out})
	return nil
}

// DeleteSession removes the session. Deleting an unknown id is a no-op.
func (m *Manager) DeleteSession(id string) {
	m.mu.Lock()
	i := m.indexOf(id)
	if i < 0 {
		m.mu.Unlock()
		return
	}
	m.sessions = append(m.sessions[:i], m.sessions[i+1:]...)
	if m.activeID == id {
		m.activeID = ""
		m.rememberActive("")
	}
	m.writes.enqueue(writeJob{
		op:        "delete_session",
		sessionID: id,
		run: func(ctx context.Context) error {
			return m.store.DeleteSession(ctx, id)
		},
	})
	m.mu.Unlock()

	m.emit(Event{Type: EventSessionDeleted, SessionID: id})
}

// AddMessage appends msg, filling in its id and timestamp when blank. The
// stored message is returned.
func (m *Manager) AddMessage(sessionID string, msg domain.Message) (domain.Message, error) {
	if msg.ID == "" {
		msg.ID = m.newID()
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = m.now()
	}

	m.mu.Lock()
	i := m.indexOf(sessionID)
	if i < 0 {
		m.mu.Unlock()
		return domain.Message{}, domain.ErrSessionNotFound
	}
	messages := append(m.sessions[i].Clone().Messages, msg.Clone())
	m.applyPatch(i, domain.SessionPatch{Messages: messages})
	m.mu.Unlock()

	out := msg.Clone()
	m.emit(Event{Type: EventMessageAdded, SessionID: sessionID, MessageID: msg.ID, Message: &out})
	return msg.Clone(), nil
}

// UpdateMessage patches one message in place
func (m *Manager) UpdateMessage(sessionID, msgID string, patch domain.MessagePatch) error {
	m.mu.Lock()
	i := m.indexOf(sessionID)
	if i < 0 {
		m.mu.Unlock()
		return domain.ErrSessionNotFound
	}
	messages := m.sessions[i].Clone().Messages
	j := m.sessions[i].FindMessage(msgID)
	if j < 0 {
		m.mu.Unlock()
		return domain.ErrMessageNotFound
	}
	patch.Apply(&messages[j])
	out := messages[j].Clone()
	m.applyPatch(i, domain.SessionPatch{Messages: messages})
	m.mu.Unlock()

	m.emit(Event{Type: EventMessageUpdated, SessionID: sessionID, MessageID: msgID, Message: &out})
	return nil
}

// EditMessage replaces a message's content, keeping the first original
func (m *Manager) EditMessage(sessionID, msgID, content string) error {
	m.mu.Lock()
	i := m.indexOf(sessionID)
	var original *string
	if i >= 0 {
		if j := m.sessions[i].FindMessage(msgID); j >= 0 && !m.sessions[i].Messages[j].IsEdited {
			original = domain.Ptr(m.sessions[i].Messages[j].Content)
		}
	}
	m.mu.Unlock()

	return m.UpdateMessage(sessionID, msgID, domain.MessagePatch{
		Content:         &content,
		IsEdited:        domain.Ptr(true),
		OriginalContent: original,
	})
}

func (m *Manager) ArchiveSession(id string) error {
	return m.UpdateSession(id, domain.SessionPatch{IsArchived: domain.Ptr(true)})
}

// DuplicateSession copies a session under a new id at the head of the list
func (m *Manager) DuplicateSession(id string) (domain.ChatSession, error) {
	m.mu.Lock()
	i := m.indexOf(id)
	if i < 0 {
		m.mu.Unlock()
		return domain.ChatSession{}, domain.ErrSessionNotFound
	}
	now := m.now()
	dup := m.sessions[i].Clone()
	dup.ID = m.newID()
	dup.Title += CopySuffix
	dup.CreatedAt = now
	dup.UpdatedAt = now
	m.sessions = append([]domain.ChatSession{dup}, m.sessions...)
	m.saveSession(dup.Clone())
	m.mu.Unlock()

	out := dup.Clone()
	m.emit(Event{Type: EventSessionCreated, SessionID: dup.ID, Session: &out})
	return dup.Clone(), nil
}

// Flush waits for every durable write queued so far
func (m *Manager) Flush(ctx context.Context) error {
	return m.writes.flush(ctx)
}

// Close drains pending writes and stops the writer goroutine
func (m *Manager) Close() {
	m.writes.close()
}

func (m *Manager) indexOf(id string) int {
	if id == "" {
		return -1
	}
	for i := range m.sessions {
		if m.sessions[i].ID == id {
			return i
		}
	}
	return -1
}

// applyPatch must be called with m.mu held
func (m *Manager) applyPatch(i int, patch domain.SessionPatch) {
	now := m.now()
	if patch.UpdatedAt == nil || patch.UpdatedAt.Before(now) {
		patch.UpdatedAt = &now
	}
	patch.Apply(&m.sessions[i])

	id := m.sessions[i].ID
	durable := clonePatch(patch)
	m.writes.enqueue(writeJob{
		op:        "update_session",
		sessionID: id,
		run: func(ctx context.Context) error {
			_, err := m.store.UpdateSession(ctx, id, durable)
			return err
		},
	})
}

func (m *Manager) saveSession(cs domain.ChatSession) {
	userID := m.userID
	m.writes.enqueue(writeJob{
		op:        "save_session",
		sessionID: cs.ID,
		run: func(ctx context.Context) error {
			_, err := m.store.SaveSession(ctx, userID, cs)
			return err
		},
	})
}

func (m *Manager) rememberActive(id string) {
	userID := m.userID
	m.writes.enqueue(writeJob{
		op:        "remember_active",
		sessionID: id,
		run: func(ctx context.Context) error {
			return m.store.RememberActiveSession(ctx, userID, id)
		},
	})
}

func (m *Manager) emit(ev Event) {
	for _, o := range m.observers {
		o(ev)
	}
}

func clonePatch(p domain.SessionPatch) domain.SessionPatch {
	out := p
	if p.Messages != nil {
		out.Messages = make([]domain.Message, len(p.Messages))
		for i, msg := range p.Messages {
			out.Messages[i] = msg.Clone()
		}
	}
	if p.Tags != nil {
		out.Tags = append([]string(nil), p.Tags...)
	}
	if p.Temperature != nil {
		out.Temperature = domain.Ptr(*p.Temperature)
	}
	return out
}
