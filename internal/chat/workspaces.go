package chat

import (
	"context"
	"fmt"
	"sync"

	"askai/internal/logging"
	"askai/internal/session"
)

// Workspaces hands out one loaded Service per user
type Workspaces struct {
	mu   sync.Mutex
	open map[string]*Service

	store     session.Store
	completer Completer
	logger    *logging.Logger
	opts      []session.Option
}

func NewWorkspaces(store session.Store, completer Completer, logger *logging.Logger, opts ...session.Option) *Workspaces {
	return &Workspaces{
		open:      make(map[string]*Service),
		store:     store,
		completer: completer,
		logger:    logger,
		opts:      opts,
	}
}

// Open returns the user's Service, loading their sessions on first use
func (w *Workspaces) Open(ctx context.Context, userID string) (*Service, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if svc, ok := w.open[userID]; ok {
		return svc, nil
	}

	m := session.NewManager(userID, w.store, w.logger.Named("session"), w.opts...)
	if err := m.Load(ctx); err != nil {
		m.Close()
		return nil, fmt.Errorf("failed to load sessions: %w", err)
	}
	svc := NewService(m, w.completer, w.logger)
	w.open[userID] = svc
	return svc, nil
}

// Close drains and forgets the user's workspace
func (w *Workspaces) Close(userID string) {
	w.mu.Lock()
	svc, ok := w.open[userID]
	delete(w.open, userID)
	w.mu.Unlock()
	if ok {
		svc.sessions.Close()
	}
}

// CloseAll drains every open workspace
func (w *Workspaces) CloseAll() {
	w.mu.Lock()
	open := w.open
	w.open = make(map[string]*Service)
	w.mu.Unlock()
	for _, svc := range open {
		svc.sessions.Close()
	}
}
