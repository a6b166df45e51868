package domain

import "time"

type AttachmentType string

const (
	AttachmentImage AttachmentType = "image"
	AttachmentFile  AttachmentType = "file"
	AttachmentCode  AttachmentType = "code"
)

type Attachment struct {
	ID       string         `json:"id"`
	Type     AttachmentType `json:"type"`
	Name     string         `json:"name"`
	URL      string         `json:"url,omitempty"`
	Content  string         `json:"content,omitempty"`
	Language string         `json:"language,omitempty"`
}

type Message struct {
	ID              string       `json:"id"`
	Content         string       `json:"content"`
	IsUser          bool         `json:"isUser"`
	Timestamp       time.Time    `json:"timestamp"`
	IsLoading       bool         `json:"isLoading,omitempty"`
	Tokens          *int         `json:"tokens,omitempty"`
	Model           string       `json:"model,omitempty"`
	Attachments     []Attachment `json:"attachments,omitempty"`
	IsEdited        bool         `json:"isEdited,omitempty"`
	OriginalContent string       `json:"originalContent,omitempty"`
}

type ChatSession struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Messages    []Message `json:"messages"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
	IsArchived  bool      `json:"isArchived,omitempty"`
	Tags        []string  `json:"tags,omitempty"`
	Model       string    `json:"model,omitempty"`
	Temperature *float64  `json:"temperature,omitempty"`
}

// Turn is one entry of the conversation history sent to the model.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Clone returns a deep copy of the message.
func (m Message) Clone() Message {
	out := m
	if m.Tokens != nil {
		t := *m.Tokens
		out.Tokens = &t
	}
	if m.Attachments != nil {
		out.Attachments = append([]Attachment(nil), m.Attachments...)
	}
	return out
}

// Clone returns a deep copy of the session, including every message.
func (s ChatSession) Clone() ChatSession {
	out := s
	if s.Messages != nil {
		out.Messages = make([]Message, len(s.Messages))
		for i, m := range s.Messages {
			out.Messages[i] = m.Clone()
		}
	}
	if s.Tags != nil {
		out.Tags = append([]string(nil), s.Tags...)
	}
	if s.Temperature != nil {
		t := *s.Temperature
		out.Temperature = &t
	}
	return out
}

// FindMessage returns the index of the message with the given id, or -1.
func (s ChatSession) FindMessage(id string) int {
	for i := range s.Messages {
		if s.Messages[i].ID == id {
			return i
		}
	}
	return -1
}
