package api

import (
	"bufio"
	"context"
	"errors"
	"net"
	"net/http"

	"askai/internal/auth"
	"askai/internal/chat"
	"askai/internal/domain"
	"askai/internal/logging"
)

// Gateway is the persistence entry point for accounts
type Gateway interface {
	auth.TokenValidator
	CreateUser(ctx context.Context, reg domain.Registration) (*domain.User, error)
	AuthenticateUser(ctx context.Context, email, password string) (*domain.AuthResult, error)
	GetUserByID(ctx context.Context, id string) (*domain.User, error)
	Logout(ctx context.Context) error
}

// Settings stores per-user chat settings
type Settings interface {
	Load(ctx context.Context, userID string) (domain.ChatSettings, error)
	Update(ctx context.Context, userID string, patch domain.SettingsPatch) (domain.ChatSettings, error)
	Reset(ctx context.Context, userID string) (domain.ChatSettings, error)
	Forget(ctx context.Context, userID string) error
}

// Workspaces resolves a user's chat service
type Workspaces interface {
	Open(ctx context.Context, userID string) (*chat.Service, error)
	Close(userID string)
}

// Server holds dependencies and provides HTTP handlers
type Server struct {
	gateway    Gateway
	settings   Settings
	workspaces Workspaces
	wsHub      *WebSocketHub
	logger     *logging.Logger
}

func NewServer(gateway Gateway, settings Settings, workspaces Workspaces, hub *WebSocketHub, logger *logging.Logger) *Server {
	return &Server{
		gateway:    gateway,
		settings:   settings,
		workspaces: workspaces,
		wsHub:      hub,
		logger:     logger,
	}
}

// Handler returns the routed API wrapped in the bearer token check
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)
	guard := auth.Middleware(s.gateway, "/api/register", "/api/login")
	return s.logRequests(guard(mux))
}

// RegisterRoutes sets up all HTTP routes
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	// Accounts
	mux.HandleFunc("POST /api/register", s.handleRegister)
	mux.HandleFunc("POST /api/login", s.handleLogin)
	mux.HandleFunc("POST /api/logout", s.handleLogout)
	mux.HandleFunc("GET /api/me", s.handleMe)

	// Sessions
	mux.HandleFunc("GET /api/sessions", s.handleListSessions)
	mux.HandleFunc("POST /api/sessions", s.handleCreateSession)
	mux.HandleFunc("GET /api/sessions/{id}", s.handleGetSession)
	mux.HandleFunc("PATCH /api/sessions/{id}", s.handleUpdateSession)
	mux.HandleFunc("DELETE /api/sessions/{id}", s.handleDeleteSession)
	mux.HandleFunc("POST /api/sessions/{id}/archive", s.handleArchiveSession)
	mux.HandleFunc("POST /api/sessions/{id}/duplicate", s.handleDuplicateSession)
	mux.HandleFunc("POST /api/sessions/{id}/activate", s.handleActivateSession)
	mux.HandleFunc("GET /api/sessions/{id}/export", s.handleExportSession)
	mux.HandleFunc("PATCH /api/sessions/{id}/messages/{mid}", s.handleEditMessage)

	// Chat
	mux.HandleFunc("POST /api/chat", s.handleSend)
	mux.HandleFunc("POST /api/chat/regenerate", s.handleRegenerate)

	// Settings and data
	mux.HandleFunc("GET /api/settings", s.handleGetSettings)
	mux.HandleFunc("PUT /api/settings", s.handleUpdateSettings)
	mux.HandleFunc("DELETE /api/settings", s.handleResetSettings)
	mux.HandleFunc("GET /api/export", s.handleExportAll)
	mux.HandleFunc("DELETE /api/data", s.handleClearAll)

	// WebSocket
	mux.HandleFunc("GET /ws", s.handleWebSocket)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Hijack is needed for the websocket upgrade
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	return h.Hijack()
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.WithFields(map[string]interface{}{
			"method": r.Method,
			"path":   r.URL.Path,
			"status": rec.status,
		}).Debug("request handled")
	})
}

// userID is only called behind the auth middleware
func userID(r *http.Request) string {
	id, _ := auth.UserID(r.Context())
	return id
}

func (s *Server) workspace(w http.ResponseWriter, r *http.Request) (*chat.Service, bool) {
	svc, err := s.workspaces.Open(r.Context(), userID(r))
	if err != nil {
		s.writeError(w, err)
		return nil, false
	}
	return svc, true
}
