// Package chat runs the send and regenerate flows: append the user turn and
// a loading placeholder, ask the completion client, and write either the
// reply or a readable explanation back into the transcript.
package chat

import (
	"context"
	"errors"
	"strings"
	"sync"
	"unicode/utf8"

	"askai/internal/domain"
	"askai/internal/llm"
	"askai/internal/logging"
	"askai/internal/session"
	"askai/internal/settings"
)

const (
	MaxTitleLength = 50
	MaxHistory     = 20
)

// User-facing transcript texts
const (
	CredentialErrorText = "API key is not configured properly. Please check your environment variables and ensure ASKAI_GEMINI_API_KEY is set correctly."
	NetworkErrorText    = "Network error occurred. Please check your internet connection and try again."
	QuotaErrorText      = "API quota exceeded. Please try again later or check your API usage limits."
	TimeoutErrorText    = "Request timed out. Please try again with a shorter message."
	GenericErrorText    = "I apologize, but I encountered an error while processing your request. Please try again."
	RegenerateErrorText = "Failed to regenerate response. Please try again."
)

// ErrBusy is returned while another request for the same session is running
var ErrBusy = errors.New("a request for this session is already in progress")

// Completer produces model replies
type Completer interface {
	Generate(ctx context.Context, prompt string, cs domain.ChatSettings, history []domain.Turn) (*llm.Completion, error)
}

// Exchange is the outcome of one send or regenerate. Reply is always
// terminal: either the model's answer or an error explanation.
type Exchange struct {
	SessionID string         `json:"sessionId"`
	User      domain.Message `json:"user"`
	Reply     domain.Message `json:"reply"`
	Failed    bool           `json:"failed"`
}

type Service struct {
	sessions  *session.Manager
	completer Completer
	logger    *logging.Logger

	mu       sync.Mutex
	inFlight map[string]bool
}

func NewService(sessions *session.Manager, completer Completer, logger *logging.Logger) *Service {
	return &Service{
		sessions:  sessions,
		completer: completer,
		logger:    logger,
		inFlight:  make(map[string]bool),
	}
}

// Sessions exposes the manager the service writes to
func (s *Service) Sessions() *session.Manager {
	return s.sessions
}

func (s *Service) acquire(sessionID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inFlight[sessionID] {
		return false
	}
	s.inFlight[sessionID] = true
	return true
}

// claim resolves the target session and marks it in flight in one step, so
// a concurrent switch of the active session cannot redirect the send.
func (s *Service) claim(sessionID string) (domain.ChatSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var target domain.ChatSession
	if sessionID == "" {
		active, ok := s.sessions.Active()
		if !ok {
			active = s.sessions.CreateSession("")
			if err := s.sessions.SetActive(active.ID); err != nil {
				return domain.ChatSession{}, err
			}
		}
		target = active
	} else {
		cs, err := s.sessions.Session(sessionID)
		if err != nil {
			return domain.ChatSession{}, err
		}
		target = cs
	}
	if s.inFlight[target.ID] {
		return domain.ChatSession{}, ErrBusy
	}
	s.inFlight[target.ID] = true
	return target, nil
}

func (s *Service) release(sessionID string) {
	s.mu.Lock()
	delete(s.inFlight, sessionID)
	s.mu.Unlock()
}

// Busy reports whether a request for the session is outstanding
func (s *Service) Busy(sessionID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inFlight[sessionID]
}

// SendMessage posts content to sessionID. An empty sessionID means the
// active session, and a new one is created and activated when none is
// active. Completion failures end up in the transcript, not in err.
func (s *Service) SendMessage(ctx context.Context, cs domain.ChatSettings, sessionID, content string, attachments []domain.Attachment) (*Exchange, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, domain.Reason(domain.ErrInvalidInput, "Please enter a message")
	}

	active, err := s.claim(sessionID)
	if err != nil {
		return nil, err
	}
	defer s.release(active.ID)

	prior := history(active.Messages)

	userMsg, err := s.sessions.AddMessage(active.ID, domain.Message{
		Content:     content,
		IsUser:      true,
		Attachments: attachments,
	})
	if err != nil {
		return nil, err
	}
	placeholder, err := s.sessions.AddMessage(active.ID, domain.Message{IsLoading: true})
	if err != nil {
		return nil, err
	}

	turns := append(prior, domain.Turn{Role: domain.RoleUser, Content: content})
	if len(turns) > MaxHistory {
		turns = turns[len(turns)-MaxHistory:]
	}

	validated := settings.Validate(cs)
	logger := s.logger.WithFields(map[string]interface{}{
		"session_id": active.ID,
		"model":      validated.Model,
		"operation":  "send",
	})

	ex := &Exchange{SessionID: active.ID, User: userMsg}
	completion, err := s.completer.Generate(ctx, content, validated, turns)
	if err != nil {
		logger.WithContext("error", err.Error()).Warn("completion failed")
		ex.Failed = true
		ex.Reply, err = s.finish(active.ID, placeholder.ID, domain.MessagePatch{
			Content: domain.Ptr(ErrorText(err)),
		})
	} else {
		ex.Reply, err = s.finish(active.ID, placeholder.ID, domain.MessagePatch{
			Content: domain.Ptr(completion.Response),
			Tokens:  completion.Tokens,
			Model:   domain.Ptr(validated.Model),
		})
	}
	if err != nil {
		return nil, err
	}

	s.deriveTitle(active.ID, content)
	logger.WithContext("failed", ex.Failed).Info("exchange completed")
	return ex, nil
}

// Regenerate re-asks the user turn that precedes messageID. An empty
// sessionID means the active session. When the target is not an assistant
// reply directly after a user message, nothing happens and nil is returned.
func (s *Service) Regenerate(ctx context.Context, cs domain.ChatSettings, sessionID, messageID string) (*Exchange, error) {
	if sessionID == "" {
		sessionID = s.sessions.ActiveID()
	}
	current, err := s.sessions.Session(sessionID)
	if err != nil {
		return nil, err
	}

	i := current.FindMessage(messageID)
	if i <= 0 || current.Messages[i].IsUser || !current.Messages[i-1].IsUser {
		return nil, nil
	}
	if !s.acquire(sessionID) {
		return nil, ErrBusy
	}
	defer s.release(sessionID)

	userMsg := current.Messages[i-1]
	err = s.sessions.UpdateMessage(sessionID, messageID, domain.MessagePatch{
		Content:   domain.Ptr(""),
		IsLoading: domain.Ptr(true),
	})
	if err != nil {
		return nil, err
	}

	validated := settings.Validate(cs)
	logger := s.logger.WithFields(map[string]interface{}{
		"session_id": sessionID,
		"message_id": messageID,
		"model":      validated.Model,
		"operation":  "regenerate",
	})

	ex := &Exchange{SessionID: sessionID, User: userMsg}
	completion, err := s.completer.Generate(ctx, userMsg.Content, validated, history(current.Messages[:i-1]))
	if err != nil {
		logger.WithContext("error", err.Error()).Warn("regeneration failed")
		ex.Failed = true
		ex.Reply, err = s.finish(sessionID, messageID, domain.MessagePatch{
			Content: domain.Ptr(RegenerateErrorText),
		})
	} else {
		ex.Reply, err = s.finish(sessionID, messageID, domain.MessagePatch{
			Content: domain.Ptr(completion.Response),
			Tokens:  completion.Tokens,
			Model:   domain.Ptr(validated.Model),
		})
	}
	if err != nil {
		return nil, err
	}
	logger.WithContext("failed", ex.Failed).Info("regeneration completed")
	return ex, nil
}

// finish clears the loading flag and returns the stored message
func (s *Service) finish(sessionID, messageID string, patch domain.MessagePatch) (domain.Message, error) {
	patch.IsLoading = domain.Ptr(false)
	if err := s.sessions.UpdateMessage(sessionID, messageID, patch); err != nil {
		return domain.Message{}, err
	}
	cs, err := s.sessions.Session(sessionID)
	if err != nil {
		return domain.Message{}, err
	}
	return cs.Messages[cs.FindMessage(messageID)], nil
}

// deriveTitle names the session after its first exchange
func (s *Service) deriveTitle(sessionID, content string) {
	cs, err := s.sessions.Session(sessionID)
	if err != nil {
		return
	}
	settled := 0
	for _, m := range cs.Messages {
		if !m.IsLoading {
			settled++
		}
	}
	if settled > 2 {
		return
	}
	if err := s.sessions.UpdateSession(sessionID, domain.SessionPatch{Title: domain.Ptr(Title(content))}); err != nil {
		s.logger.WithContext("error", err.Error()).Warn("failed to set session title")
	}
}

// Title shortens content to MaxTitleLength characters plus "..."
func Title(content string) string {
	if utf8.RuneCountInString(content) <= MaxTitleLength {
		return content
	}
	return string([]rune(content)[:MaxTitleLength]) + "..."
}

// ErrorText turns a completion error into the text shown in the transcript
func ErrorText(err error) string {
	switch {
	case errors.Is(err, domain.ErrMissingCredential), errors.Is(err, domain.ErrForbidden):
		return CredentialErrorText
	case errors.Is(err, domain.ErrNetwork):
		return NetworkErrorText
	case errors.Is(err, domain.ErrRateLimited):
		return QuotaErrorText
	case errors.Is(err, domain.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return TimeoutErrorText
	}
	if msg := strings.TrimSpace(err.Error()); msg != "" {
		return msg
	}
	return GenericErrorText
}

// history maps settled messages to model turns
func history(messages []domain.Message) []domain.Turn {
	turns := make([]domain.Turn, 0, len(messages))
	for _, m := range messages {
		if m.IsLoading {
			continue
		}
		role := domain.RoleAssistant
		if m.IsUser {
			role = domain.RoleUser
		}
		turns = append(turns, domain.Turn{Role: role, Content: m.Content})
	}
	return turns
}
