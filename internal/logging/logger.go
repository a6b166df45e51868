package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Level represents log severity
type Level int32

const (
	DEBUG Level = iota
	INFO
	WARN
	ERROR
)

func (l Level) String() string {
	switch l {
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel converts a string to a Level, defaulting to INFO
func ParseLevel(s string) Level {
	switch strings.ToLower(s) {
	case "debug":
		return DEBUG
	case "info":
		return INFO
	case "warn":
		return WARN
	case "error":
		return ERROR
	default:
		return INFO
	}
}

// sink is shared by a logger and everything derived from it, so a level
// change made through any of them applies to all.
type sink struct {
	level     atomic.Int32
	mu        sync.Mutex
	output    io.Writer
	formatter *LogFormatter
}

// Logger writes leveled, component-scoped log lines with context fields
type Logger struct {
	component string
	context   map[string]interface{}
	sink      *sink
}

// NewLogger creates a logger for a component
func NewLogger(component string, level Level, output io.Writer) *Logger {
	if output == nil {
		output = os.Stdout
	}
	s := &sink{output: output, formatter: NewLogFormatter()}
	s.level.Store(int32(level))
	return &Logger{component: component, sink: s}
}

// Named returns a logger for another component writing to the same output
func (l *Logger) Named(component string) *Logger {
	return &Logger{component: component, context: l.context, sink: l.sink}
}

// SetLevel changes the minimum level for this logger and every logger
// derived from the same root
func (l *Logger) SetLevel(level Level) {
	l.sink.level.Store(int32(level))
}

// Level returns the current minimum level
func (l *Logger) Level() Level {
	return Level(l.sink.level.Load())
}

func (l *Logger) Debug(format string, args ...interface{}) { l.log(DEBUG, format, args...) }
func (l *Logger) Info(format string, args ...interface{})  { l.log(INFO, format, args...) }
func (l *Logger) Warn(format string, args ...interface{})  { l.log(WARN, format, args...) }
func (l *Logger) Error(format string, args ...interface{}) { l.log(ERROR, format, args...) }

// WithContext returns a new Logger with an added context field
func (l *Logger) WithContext(key string, value interface{}) *Logger {
	return l.WithFields(map[string]interface{}{key: value})
}

// WithFields returns a new Logger with multiple context fields
func (l *Logger) WithFields(fields map[string]interface{}) *Logger {
	merged := make(map[string]interface{}, len(l.context)+len(fields))
	for k, v := range l.context {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	return &Logger{component: l.component, context: merged, sink: l.sink}
}

func (l *Logger) log(level Level, format string, args ...interface{}) {
	if level < l.Level() {
		return
	}

	// Skip log() and the Debug/Info/Warn/Error wrapper
	src := SourceLocation{File: "unknown", Function: "unknown"}
	if pc, file, line, ok := runtime.Caller(2); ok {
		src.File = filepath.Base(file)
		src.Line = line
		if fn := runtime.FuncForPC(pc); fn != nil {
			src.Function = filepath.Base(fn.Name())
		}
	}

	entry := LogEntry{
		Timestamp: time.Now(),
		Level:     level,
		Component: l.component,
		Source:    src,
		Message:   fmt.Sprintf(format, args...),
		Context:   l.context,
	}

	line := l.sink.formatter.Format(entry)
	l.sink.mu.Lock()
	l.sink.output.Write([]byte(line))
	l.sink.mu.Unlock()
}
