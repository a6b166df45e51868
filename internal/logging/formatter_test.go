package logging

import (
	"strings"
	"testing"
	"time"
)

func TestFormat(t *testing.T) {
	f := NewLogFormatter()
	entry := LogEntry{
		Timestamp: time.Date(2024, 3, 9, 14, 5, 6, 0, time.UTC),
		Level:     INFO,
		Component: "llm",
		Source:    SourceLocation{File: "gemini.go", Line: 12, Function: "llm.(*Client).Generate"},
		Message:   "request completed",
		Context:   map[string]interface{}{"latency_ms": 120, "attempt": 1},
	}

	got := f.Format(entry)
	want := "[2024-03-09 14:05:06] INFO [llm] gemini.go:12 llm.(*Client).Generate request completed attempt=1 latency_ms=120\n"
	if got != want {
		t.Errorf("Format() =\n%q\nwant\n%q", got, want)
	}
}

func TestFormatRedactsSecrets(t *testing.T) {
	f := NewLogFormatter()

	tests := []struct {
		name    string
		message string
		context map[string]interface{}
		leak    string
	}{
		{
			name:    "key query parameter in message",
			message: `Post "https://example.test/models/gemini-pro:generateContent?key=SECRET123": dial tcp`,
			leak:    "SECRET123",
		},
		{
			name:    "secret context field",
			context: map[string]interface{}{"api_key": "SECRET123"},
			leak:    "SECRET123",
		},
		{
			name:    "password field is case insensitive",
			context: map[string]interface{}{"Password": "hunter2"},
			leak:    "hunter2",
		},
		{
			name:    "bearer token in field value",
			context: map[string]interface{}{"header": "Bearer abc.def-123"},
			leak:    "abc.def-123",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := f.Format(LogEntry{Level: WARN, Message: tt.message, Context: tt.context})
			if strings.Contains(out, tt.leak) {
				t.Errorf("Secret leaked into log line: %q", out)
			}
			if !strings.Contains(out, redacted) {
				t.Errorf("Expected %s marker in %q", redacted, out)
			}
		})
	}
}

func TestSanitizeMessage(t *testing.T) {
	got := sanitizeMessage("line\x00one\ttab\nnext\x1b")
	if got != "line one\ttab\nnext " {
		t.Errorf("sanitizeMessage() = %q", got)
	}
}
