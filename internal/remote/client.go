// Package remote is the HTTP client for the external persistence API.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"askai/internal/domain"
	"askai/internal/logging"
)

// StatusError is returned for non-2xx responses
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("remote: status %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("remote: status %d", e.StatusCode)
}

// TokenSource supplies the bearer token for authenticated calls
type TokenSource interface {
	AuthToken(ctx context.Context) (string, error)
}

// Client calls the persistence API
type Client struct {
	baseURL    string
	httpClient *http.Client
	tokens     TokenSource
	logger     *logging.Logger
}

// NewClient creates a client. An empty baseURL yields a client whose every
// call fails with ErrPersistenceUnavailable.
func NewClient(baseURL string, timeout time.Duration, tokens TokenSource, logger *logging.Logger) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		tokens:     tokens,
		logger:     logger,
	}
}

// Enabled reports whether a base URL is configured
func (c *Client) Enabled() bool {
	return c.baseURL != ""
}

type sessionBody struct {
	domain.ChatSession
	UserID string `json:"userId"`
}

func (c *Client) CreateUser(ctx context.Context, reg domain.Registration, givenName, familyName string) (*domain.User, error) {
	body := map[string]string{
		"email":       reg.Email,
		"password":    reg.Password,
		"name":        reg.Name,
		"given_name":  givenName,
		"family_name": familyName,
	}
	var u domain.User
	if err := c.do(ctx, http.MethodPost, "/users", false, body, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (c *Client) Login(ctx context.Context, email, password string) (*domain.AuthResult, error) {
	var res domain.AuthResult
	body := map[string]string{"email": email, "password": password}
	if err := c.do(ctx, http.MethodPost, "/auth/login", false, body, &res); err != nil {
		return nil, err
	}
	if res.Token == "" || res.User.ID == "" {
		return nil, fmt.Errorf("remote: login response missing user or token")
	}
	return &res, nil
}

func (c *Client) GetUser(ctx context.Context, id string) (*domain.User, error) {
	var u domain.User
	if err := c.do(ctx, http.MethodGet, "/users/"+url.PathEscape(id), true, nil, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (c *Client) SaveSession(ctx context.Context, userID string, cs domain.ChatSession) (*domain.ChatSession, error) {
	var out domain.ChatSession
	if err := c.do(ctx, http.MethodPost, "/sessions", true, sessionBody{ChatSession: cs, UserID: userID}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ListSessions(ctx context.Context, userID string) ([]domain.ChatSession, error) {
	var out []domain.ChatSession
	if err := c.do(ctx, http.MethodGet, "/sessions?userId="+url.QueryEscape(userID), true, nil, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = []domain.ChatSession{}
	}
	return out, nil
}

func (c *Client) UpdateSession(ctx context.Context, id string, patch domain.SessionPatch) (*domain.ChatSession, error) {
	var out domain.ChatSession
	if err := c.do(ctx, http.MethodPut, "/sessions/"+url.PathEscape(id), true, patch, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteSession(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/sessions/"+url.PathEscape(id), true, nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, authed bool, in, out any) error {
	if c.baseURL == "" {
		return domain.ErrPersistenceUnavailable
	}

	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("remote: failed to marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("remote: failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if authed && c.tokens != nil {
		token, err := c.tokens.AuthToken(ctx)
		if err != nil {
			return fmt.Errorf("remote: failed to read auth token: %w", err)
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrPersistenceUnavailable, err)
	}
	defer resp.Body.Close()

	c.logger.WithFields(map[string]interface{}{
		"method":     method,
		"path":       path,
		"status":     resp.StatusCode,
		"latency_ms": time.Since(start).Milliseconds(),
	}).Debug("remote call finished")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
		var msg struct {
			Message string `json:"message"`
			Error   string `json:"error"`
		}
		if err := json.Unmarshal(data, &msg); err != nil {
			// not a JSON error body, keep the text as is
			return &StatusError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(data))}
		}
		if msg.Message == "" {
			msg.Message = msg.Error
		}
		return &StatusError{StatusCode: resp.StatusCode, Message: msg.Message}
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("remote: failed to decode response: %w", err)
	}
	return nil
}
