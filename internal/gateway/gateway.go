// Package gateway routes persistence calls to the remote API and falls back
// to the local store whenever the remote attempt fails. Callers cannot tell
// which backend served a call.
package gateway

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"

	"askai/internal/auth"
	"askai/internal/domain"
	"askai/internal/logging"
)

// Remote is the external persistence API
type Remote interface {
	CreateUser(ctx context.Context, reg domain.Registration, givenName, familyName string) (*domain.User, error)
	Login(ctx context.Context, email, password string) (*domain.AuthResult, error)
	GetUser(ctx context.Context, id string) (*domain.User, error)
	SaveSession(ctx context.Context, userID string, cs domain.ChatSession) (*domain.ChatSession, error)
	ListSessions(ctx context.Context, userID string) ([]domain.ChatSession, error)
	UpdateSession(ctx context.Context, id string, patch domain.SessionPatch) (*domain.ChatSession, error)
	DeleteSession(ctx context.Context, id string) error
}

// Local is the durable fallback store
type Local interface {
	CreateUser(ctx context.Context, u domain.User, password string) (*domain.User, error)
	Authenticate(ctx context.Context, email, password string) (*domain.User, error)
	GetUserByID(ctx context.Context, id string) (*domain.User, error)
	UpsertUser(ctx context.Context, u domain.User) error

	SaveSession(ctx context.Context, userID string, cs domain.ChatSession) (*domain.ChatSession, error)
	GetSessions(ctx context.Context, userID string) ([]domain.ChatSession, error)
	ReplaceSessions(ctx context.Context, userID string, sessions []domain.ChatSession) error
	UpdateSession(ctx context.Context, userID, id string, patch domain.SessionPatch) (*domain.ChatSession, error)
	DeleteSession(ctx context.Context, userID, id string) error

	SetAuthToken(ctx context.Context, token string) error
	AuthToken(ctx context.Context) (string, error)
	SetCurrentUser(ctx context.Context, u domain.User) error
	CurrentUser(ctx context.Context) (*domain.User, error)
	ClearAuth(ctx context.Context) error
	SetActiveSession(ctx context.Context, userID, sessionID string) error
	ActiveSession(ctx context.Context, userID string) (string, error)
}

// Gateway is the persistence entry point used by the rest of the app
type Gateway struct {
	remote Remote
	local  Local
	logger *logging.Logger
}

// New creates a gateway over both backends
func New(remote Remote, local Local, logger *logging.Logger) *Gateway {
	return &Gateway{remote: remote, local: local, logger: logger}
}

// fellBack logs a remote failure before the local path takes over. A
// disabled remote is expected and only logged at debug level.
func (g *Gateway) fellBack(op string, err error) {
	logger := g.logger.WithFields(map[string]interface{}{
		"operation": op,
		"error":     err.Error(),
	})
	if err == domain.ErrPersistenceUnavailable {
		logger.Debug("remote persistence disabled, using local store")
		return
	}
	logger.Warn("remote persistence failed, using local store")
}

// mirrorFailed logs a best-effort local copy that did not succeed
func (g *Gateway) mirrorFailed(op string, err error) {
	g.logger.WithFields(map[string]interface{}{
		"operation": op,
		"error":     err.Error(),
	}).Warn("failed to mirror remote result locally")
}

// SplitName derives given and family names: the first word, then the rest
func SplitName(name string) (given, family string) {
	parts := strings.Fields(name)
	if len(parts) == 0 {
		return "", ""
	}
	return parts[0], strings.Join(parts[1:], " ")
}

func (g *Gateway) CreateUser(ctx context.Context, reg domain.Registration) (*domain.User, error) {
	reg.Email = strings.TrimSpace(reg.Email)
	reg.Name = strings.TrimSpace(reg.Name)
	if reg.Email == "" || reg.Password == "" {
		return nil, domain.Reason(domain.ErrInvalidInput, "email and password are required")
	}
	given, family := SplitName(reg.Name)

	u, err := g.remote.CreateUser(ctx, reg, given, family)
	if err == nil {
		if merr := g.local.UpsertUser(ctx, *u); merr != nil {
			g.mirrorFailed("create_user", merr)
		}
		return u, nil
	}
	g.fellBack("create_user", err)

	return g.local.CreateUser(ctx, domain.User{
		Email:      reg.Email,
		Name:       reg.Name,
		GivenName:  given,
		FamilyName: family,
	}, reg.Password)
}

// AuthenticateUser logs in on either backend and caches the token and the
// signed-in user locally.
func (g *Gateway) AuthenticateUser(ctx context.Context, email, password string) (*domain.AuthResult, error) {
	email = strings.TrimSpace(email)

	res, err := g.remote.Login(ctx, email, password)
	if err == nil {
		if merr := g.local.UpsertUser(ctx, res.User); merr != nil {
			g.mirrorFailed("authenticate", merr)
		}
	} else {
		g.fellBack("authenticate", err)

		u, lerr := g.local.Authenticate(ctx, email, password)
		if lerr != nil {
			return nil, lerr
		}
		token, terr := auth.GenerateToken()
		if terr != nil {
			return nil, terr
		}
		res = &domain.AuthResult{User: *u, Token: token}
	}

	if err := g.local.SetAuthToken(ctx, res.Token); err != nil {
		return nil, fmt.Errorf("failed to cache auth token: %w", err)
	}
	if err := g.local.SetCurrentUser(ctx, res.User); err != nil {
		return nil, fmt.Errorf("failed to cache current user: %w", err)
	}
	g.logger.WithContext("user_id", res.User.ID).Info("user authenticated")
	return res, nil
}

func (g *Gateway) GetUserByID(ctx context.Context, id string) (*domain.User, error) {
	u, err := g.remote.GetUser(ctx, id)
	if err == nil {
		return u, nil
	}
	g.fellBack("get_user", err)
	return g.local.GetUserByID(ctx, id)
}

func (g *Gateway) SaveSession(ctx context.Context, userID string, cs domain.ChatSession) (*domain.ChatSession, error) {
	out, err := g.remote.SaveSession(ctx, userID, cs)
	if err == nil {
		if _, merr := g.local.SaveSession(ctx, userID, cs); merr != nil {
			g.mirrorFailed("save_session", merr)
		}
		return out, nil
	}
	g.fellBack("save_session", err)
	return g.local.SaveSession(ctx, userID, cs)
}

func (g *Gateway) GetSessions(ctx context.Context, userID string) ([]domain.ChatSession, error) {
	sessions, err := g.remote.ListSessions(ctx, userID)
	if err == nil {
		if merr := g.local.ReplaceSessions(ctx, userID, sessions); merr != nil {
			g.mirrorFailed("get_sessions", merr)
		}
		return sessions, nil
	}
	g.fellBack("get_sessions", err)
	return g.local.GetSessions(ctx, userID)
}

func (g *Gateway) UpdateSession(ctx context.Context, id string, patch domain.SessionPatch) (*domain.ChatSession, error) {
	out, err := g.remote.UpdateSession(ctx, id, patch)
	if err == nil {
		if u, uerr := g.local.CurrentUser(ctx); uerr == nil {
			if _, merr := g.local.UpdateSession(ctx, u.ID, id, patch); merr != nil && !errors.Is(merr, domain.ErrNotFound) {
				g.mirrorFailed("update_session", merr)
			}
		}
		return out, nil
	}
	g.fellBack("update_session", err)

	u, err := g.local.CurrentUser(ctx)
	if err != nil {
		return nil, err
	}
	return g.local.UpdateSession(ctx, u.ID, id, patch)
}

func (g *Gateway) DeleteSession(ctx context.Context, id string) error {
	err := g.remote.DeleteSession(ctx, id)
	if err == nil {
		if u, uerr := g.local.CurrentUser(ctx); uerr == nil {
			if merr := g.local.DeleteSession(ctx, u.ID, id); merr != nil {
				g.mirrorFailed("delete_session", merr)
			}
		}
		return nil
	}
	g.fellBack("delete_session", err)

	u, err := g.local.CurrentUser(ctx)
	if err != nil {
		return err
	}
	return g.local.DeleteSession(ctx, u.ID, id)
}

// CurrentUser returns the locally cached signed-in user
func (g *Gateway) CurrentUser(ctx context.Context) (*domain.User, error) {
	return g.local.CurrentUser(ctx)
}

// ValidateToken matches token against the cached one. It implements
// auth.TokenValidator.
func (g *Gateway) ValidateToken(ctx context.Context, token string) (string, bool) {
	cached, err := g.local.AuthToken(ctx)
	if err != nil || cached == "" {
		return "", false
	}
	if subtle.ConstantTimeCompare([]byte(cached), []byte(token)) != 1 {
		return "", false
	}
	u, err := g.local.CurrentUser(ctx)
	if err != nil {
		return "", false
	}
	return u.ID, true
}

// Logout forgets the cached token and signed-in user
func (g *Gateway) Logout(ctx context.Context) error {
	if err := g.local.ClearAuth(ctx); err != nil {
		return fmt.Errorf("failed to clear auth: %w", err)
	}
	return nil
}

// RememberActiveSession persists the active session pointer locally
func (g *Gateway) RememberActiveSession(ctx context.Context, userID, sessionID string) error {
	return g.local.SetActiveSession(ctx, userID, sessionID)
}

func (g *Gateway) ActiveSession(ctx context.Context, userID string) (string, error) {
	return g.local.ActiveSession(ctx, userID)
}
