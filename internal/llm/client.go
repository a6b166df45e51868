// Package llm is the chat-completion client for the Gemini generateContent
// endpoint: one logical request with per-attempt timeout, retry with
// exponential backoff, and classification of the response.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"askai/internal/domain"
	"askai/internal/logging"
	"askai/internal/settings"
)

const (
	DefaultBaseURL        = "https://generativelanguage.googleapis.com/v1beta"
	DefaultMaxAttempts    = 3
	DefaultAttemptTimeout = 30 * time.Second

	// MaxHistory bounds the number of prior turns sent with a prompt
	MaxHistory = 20
)

const (
	SafetyRefusal     = "I apologize, but I can't provide a response to that request due to safety guidelines. Please try rephrasing your question."
	RecitationRefusal = "I can't provide that response as it may contain copyrighted content. Please try asking in a different way."
	blankResponse     = "I apologize, but I couldn't generate a proper response. Please try again."
)

// Completion is the result of a successful Generate call
type Completion struct {
	Response string
	Tokens   *int
}

// Config holds client configuration
type Config struct {
	APIKey         string
	BaseURL        string
	MaxAttempts    int
	AttemptTimeout time.Duration
}

// StatusError carries the HTTP status behind a classified failure
type StatusError struct {
	StatusCode int
	err        error
}

func (e *StatusError) Error() string { return e.err.Error() }
func (e *StatusError) Unwrap() error { return e.err }

// Client talks to the completion endpoint. It is safe for concurrent use.
type Client struct {
	mu     sync.RWMutex
	apiKey string

	baseURL        string
	maxAttempts    int
	attemptTimeout time.Duration
	httpClient     *http.Client
	backoff        func(attempt int) time.Duration
	logger         *logging.Logger
}

// Option customizes a Client
type Option func(*Client)

// WithHTTPClient replaces the default http.Client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithBackoff replaces the wait between attempts
func WithBackoff(fn func(attempt int) time.Duration) Option {
	return func(c *Client) { c.backoff = fn }
}

// NewClient creates a completion client
func NewClient(cfg Config, logger *logging.Logger, opts ...Option) *Client {
	c := &Client{
		apiKey:         cfg.APIKey,
		baseURL:        strings.TrimRight(cfg.BaseURL, "/"),
		maxAttempts:    cfg.MaxAttempts,
		attemptTimeout: cfg.AttemptTimeout,
		httpClient:     &http.Client{},
		backoff:        ExponentialBackoff,
		logger:         logger,
	}
	if c.baseURL == "" {
		c.baseURL = DefaultBaseURL
	}
	if c.maxAttempts <= 0 {
		c.maxAttempts = DefaultMaxAttempts
	}
	if c.attemptTimeout <= 0 {
		c.attemptTimeout = DefaultAttemptTimeout
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ExponentialBackoff waits 2^attempt seconds: 1s, 2s, 4s for attempts 0, 1, 2
func ExponentialBackoff(attempt int) time.Duration {
	return time.Duration(1<<attempt) * time.Second
}

// SetAPIKey swaps the credential used by subsequent requests
func (c *Client) SetAPIKey(key string) {
	c.mu.Lock()
	c.apiKey = key
	c.mu.Unlock()
}

func (c *Client) key() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.apiKey
}

// Generate sends prompt with the given settings and prior turns. It returns
// either a completion with a non-empty response or an error wrapping one of
// the domain sentinel errors, never both.
func (c *Client) Generate(ctx context.Context, prompt string, cs domain.ChatSettings, history []domain.Turn) (*Completion, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return nil, domain.Reason(domain.ErrInvalidInput, "Please enter a message")
	}
	key := c.key()
	if key == "" {
		return nil, domain.ErrMissingCredential
	}

	cs = settings.Validate(cs)
	body, err := json.Marshal(buildRequest(prompt, cs, history))
	if err != nil {
		return nil, fmt.Errorf("gemini: failed to marshal request: %w", err)
	}

	logger := c.logger.WithFields(map[string]interface{}{
		"provider":  "gemini",
		"model":     cs.Model,
		"operation": "generate",
		"history":   len(history),
	})
	logger.Debug("starting completion request")

	var lastErr error
	for attempt := 0; attempt < c.maxAttempts; attempt++ {
		start := time.Now()
		out, err := c.attempt(ctx, key, cs.Model, body)
		latency := time.Since(start).Milliseconds()
		if err == nil {
			logger.WithFields(map[string]interface{}{
				"attempt":    attempt + 1,
				"latency_ms": latency,
			}).Debug("completion request completed")
			return out, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		lastErr = err
		logger.WithFields(map[string]interface{}{
			"attempt":    attempt + 1,
			"error":      err.Error(),
			"latency_ms": latency,
		}).Warn("completion attempt failed")

		if attempt == c.maxAttempts-1 || !Retryable(err) {
			break
		}
		if err := sleep(ctx, c.backoff(attempt)); err != nil {
			return nil, err
		}
	}
	return nil, lastErr
}

// Retryable reports whether another attempt may succeed: timeouts, rate
// limits, transport failures and 5xx responses.
func Retryable(err error) bool {
	if errors.Is(err, domain.ErrTimeout) || errors.Is(err, domain.ErrRateLimited) || errors.Is(err, domain.ErrNetwork) {
		return true
	}
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode >= 500
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func buildRequest(prompt string, cs domain.ChatSettings, history []domain.Turn) generateRequest {
	// The caller may already have appended the prompt as the last user turn
	if n := len(history); n > 0 && history[n-1].Role == domain.RoleUser && strings.TrimSpace(history[n-1].Content) == prompt {
		history = history[:n-1]
	}
	if len(history) > MaxHistory {
		history = history[len(history)-MaxHistory:]
	}

	contents := make([]content, 0, len(history)+2)
	if sp := strings.TrimSpace(cs.SystemPrompt); sp != "" {
		contents = append(contents, content{Role: "user", Parts: []part{{Text: "System: " + sp}}})
	}
	for _, t := range history {
		role := "model"
		if t.Role == domain.RoleUser {
			role = "user"
		}
		contents = append(contents, content{Role: role, Parts: []part{{Text: t.Content}}})
	}
	contents = append(contents, content{Role: "user", Parts: []part{{Text: prompt}}})

	return generateRequest{
		Contents: contents,
		GenerationConfig: generationConfig{
			Temperature:     cs.Temperature,
			TopK:            40,
			TopP:            0.95,
			MaxOutputTokens: cs.MaxTokens,
			StopSequences:   []string{},
		},
		SafetySettings: defaultSafetySettings,
	}
}

func (c *Client) attempt(ctx context.Context, key, model string, body []byte) (*Completion, error) {
	actx, cancel := context.WithTimeout(ctx, c.attemptTimeout)
	defer cancel()

	endpoint := fmt.Sprintf("%s/models/%s:generateContent", c.baseURL, url.PathEscape(model))
	req, err := http.NewRequestWithContext(actx, http.MethodPost, endpoint+"?key="+url.QueryEscape(key), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("gemini: failed to create request for %s", endpoint)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, transportError(actx, endpoint, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, transportError(actx, endpoint, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, statusError(resp.StatusCode, data)
	}
	return parseResponse(data)
}

// transportError classifies a failed round trip. The request URL carries the
// key, so *url.Error is unwrapped and only the bare endpoint is reported.
func transportError(actx context.Context, endpoint string, err error) error {
	if errors.Is(actx.Err(), context.DeadlineExceeded) {
		return domain.Reason(domain.ErrTimeout, "Request timed out")
	}
	var ue *url.Error
	if errors.As(err, &ue) {
		err = ue.Err
	}
	return fmt.Errorf("%w: %s: %s", domain.ErrNetwork, endpoint, logging.Redact(err.Error()))
}

func statusError(code int, body []byte) error {
	var kind error
	var msg string
	switch code {
	case http.StatusTooManyRequests:
		kind, msg = domain.ErrRateLimited, "Rate limit exceeded. Please wait a moment and try again."
	case http.StatusForbidden:
		kind, msg = domain.ErrForbidden, "API access denied. Please check your API key."
	default:
		detail := fmt.Sprintf("HTTP %d: %s", code, http.StatusText(code))
		var er errorResponse
		if json.Unmarshal(body, &er) == nil && er.Error.Message != "" {
			detail = er.Error.Message
		}
		kind, msg = domain.ErrRequestFailed, "API request failed: "+detail
	}
	return &StatusError{StatusCode: code, err: domain.Reason(kind, msg)}
}

func parseResponse(data []byte) (*Completion, error) {
	var res generateResponse
	if err := json.Unmarshal(data, &res); err != nil {
		return nil, domain.Reason(domain.ErrRequestFailed, "API request failed: malformed response body")
	}
	if len(res.Candidates) == 0 {
		return nil, domain.Reason(domain.ErrEmptyResponse, "No response generated. Please try again.")
	}

	var tokens *int
	if res.UsageMetadata != nil {
		n := res.UsageMetadata.TotalTokenCount
		tokens = &n
	}

	cand := res.Candidates[0]
	switch cand.FinishReason {
	case "SAFETY":
		return &Completion{Response: SafetyRefusal, Tokens: tokens}, nil
	case "RECITATION":
		return &Completion{Response: RecitationRefusal, Tokens: tokens}, nil
	}

	if cand.Content == nil || len(cand.Content.Parts) == 0 {
		return nil, domain.Reason(domain.ErrEmptyResponse, "Invalid response structure from API")
	}
	text := strings.TrimSpace(cand.Content.Parts[0].Text)
	if text == "" {
		text = blankResponse
	}
	return &Completion{Response: text, Tokens: tokens}, nil
}
