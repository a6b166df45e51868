package logging

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"
)

// SourceLocation captures the source code location of a log call
type SourceLocation struct {
	File     string
	Line     int
	Function string
}

// LogEntry represents a structured log entry
type LogEntry struct {
	Timestamp time.Time
	Level     Level
	Component string
	Source    SourceLocation
	Message   string
	Context   map[string]interface{}
}

const redacted = "[REDACTED]"

// Context keys whose values are never written out.
var secretKeys = map[string]bool{
	"api_key":       true,
	"apikey":        true,
	"key":           true,
	"password":      true,
	"token":         true,
	"authorization": true,
}

var (
	queryKeyPattern = regexp.MustCompile(`([?&]key=)[^&\s"]+`)
	bearerPattern   = regexp.MustCompile(`(?i)(bearer\s+)[A-Za-z0-9._~+/=-]+`)
)

// LogFormatter formats log entries into strings
type LogFormatter struct{}

// NewLogFormatter creates a new log formatter
func NewLogFormatter() *LogFormatter {
	return &LogFormatter{}
}

// Format renders one line:
// [YYYY-MM-DD HH:MM:SS] LEVEL [component] file.go:line function message key=value
func (f *LogFormatter) Format(entry LogEntry) string {
	var sb strings.Builder

	sb.WriteString("[")
	sb.WriteString(entry.Timestamp.Format("2006-01-02 15:04:05"))
	sb.WriteString("] ")
	sb.WriteString(entry.Level.String())
	sb.WriteString(" [")
	sb.WriteString(entry.Component)
	sb.WriteString("] ")
	fmt.Fprintf(&sb, "%s:%d %s ", entry.Source.File, entry.Source.Line, entry.Source.Function)
	sb.WriteString(Redact(sanitizeMessage(entry.Message)))

	keys := make([]string, 0, len(entry.Context))
	for k := range entry.Context {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		v := fmt.Sprintf("%v", entry.Context[k])
		if secretKeys[strings.ToLower(k)] {
			v = redacted
		} else {
			v = Redact(sanitizeMessage(v))
		}
		sb.WriteString(" ")
		sb.WriteString(k)
		sb.WriteString("=")
		sb.WriteString(v)
	}

	sb.WriteString("\n")
	return sb.String()
}

// Redact masks credentials that leak into free text, such as a key query
// parameter inside a URL or a bearer token copied from a header.
func Redact(s string) string {
	s = queryKeyPattern.ReplaceAllString(s, "${1}"+redacted)
	return bearerPattern.ReplaceAllString(s, "${1}"+redacted)
}

// sanitizeMessage removes control characters except \n and \t to prevent log injection
func sanitizeMessage(msg string) string {
	var sb strings.Builder
	for _, r := range msg {
		if r == '\n' || r == '\t' {
			sb.WriteRune(r)
		} else if r < 0x20 {
			sb.WriteRune(' ')
		} else {
			sb.WriteRune(r)
		}
	}
	return sb.String()
}
