package domain

import "time"

// SessionPatch is a partial session update. Nil fields are left unchanged.
type SessionPatch struct {
	Title       *string    `json:"title,omitempty"`
	Messages    []Message  `json:"messages,omitempty"`
	IsArchived  *bool      `json:"isArchived,omitempty"`
	Tags        []string   `json:"tags,omitempty"`
	Model       *string    `json:"model,omitempty"`
	Temperature *float64   `json:"temperature,omitempty"`
	UpdatedAt   *time.Time `json:"updatedAt,omitempty"`
}

// Apply merges the patch into s. UpdatedAt never moves backwards.
func (p SessionPatch) Apply(s *ChatSession) {
	if p.Title != nil {
		s.Title = *p.Title
	}
	if p.Messages != nil {
		s.Messages = make([]Message, len(p.Messages))
		for i, m := range p.Messages {
			s.Messages[i] = m.Clone()
		}
	}
	if p.IsArchived != nil {
		s.IsArchived = *p.IsArchived
	}
	if p.Tags != nil {
		s.Tags = append([]string(nil), p.Tags...)
	}
	if p.Model != nil {
		s.Model = *p.Model
	}
	if p.Temperature != nil {
		t := *p.Temperature
		s.Temperature = &t
	}
	if p.UpdatedAt != nil && p.UpdatedAt.After(s.UpdatedAt) {
		s.UpdatedAt = *p.UpdatedAt
	}
}

// MessagePatch is a partial message update. IsUser cannot be patched.
type MessagePatch struct {
	Content         *string      `json:"content,omitempty"`
	IsLoading       *bool        `json:"isLoading,omitempty"`
	Tokens          *int         `json:"tokens,omitempty"`
	Model           *string      `json:"model,omitempty"`
	Attachments     []Attachment `json:"attachments,omitempty"`
	IsEdited        *bool        `json:"isEdited,omitempty"`
	OriginalContent *string      `json:"originalContent,omitempty"`
}

func (p MessagePatch) Apply(m *Message) {
	if p.Content != nil {
		m.Content = *p.Content
	}
	if p.IsLoading != nil {
		m.IsLoading = *p.IsLoading
	}
	if p.Tokens != nil {
		t := *p.Tokens
		m.Tokens = &t
	}
	if p.Model != nil {
		m.Model = *p.Model
	}
	if p.Attachments != nil {
		m.Attachments = append([]Attachment(nil), p.Attachments...)
	}
	if p.IsEdited != nil {
		m.IsEdited = *p.IsEdited
	}
	if p.OriginalContent != nil {
		m.OriginalContent = *p.OriginalContent
	}
}

// Ptr returns a pointer to v. Handy when building patches.
func Ptr[T any](v T) *T { return &v }
