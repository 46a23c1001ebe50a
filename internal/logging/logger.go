// Package logging provides leveled, structured logging with run IDs.
// Every build run gets an ID that travels in the context so that
// interleaved output from concurrent variants can be told apart.
package logging

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"
)

// Level represents a log level.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel parses a log level string. Unknown values map to LevelInfo.
func ParseLevel(s string) Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return LevelDebug
	case "INFO":
		return LevelInfo
	case "WARN", "WARNING":
		return LevelWarn
	case "ERROR":
		return LevelError
	default:
		return LevelInfo
	}
}

type contextKey string

const (
	runIDKey  contextKey = "run_id"
	fieldsKey contextKey = "log_fields"
)

// sink is shared between a logger and the children derived from it so that
// SetOutput/SetLevel on the root affect every component logger.
type sink struct {
	mu     sync.Mutex
	output io.Writer
	level  Level
	json   bool
}

// Logger is a structured logger with level support.
type Logger struct {
	sink   *sink
	fields map[string]interface{}
}

// Entry is the JSON shape of a single log line.
type Entry struct {
	Timestamp string                 `json:"ts"`
	Level     string                 `json:"level"`
	Message   string                 `json:"msg"`
	RunID     string                 `json:"run_id,omitempty"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
}

var (
	defaultMu     sync.RWMutex
	defaultLogger = New()
)

// New creates a logger writing to stderr. LOG_LEVEL and LOG_FORMAT=json
// are honoured.
func New() *Logger {
	level := LevelInfo
	if lvl := os.Getenv("LOG_LEVEL"); lvl != "" {
		level = ParseLevel(lvl)
	}
	return NewWithWriter(os.Stderr, level, os.Getenv("LOG_FORMAT") == "json")
}

// NewWithWriter creates a logger with an explicit destination and format.
func NewWithWriter(w io.Writer, level Level, jsonFormat bool) *Logger {
	return &Logger{
		sink:   &sink{output: w, level: level, json: jsonFormat},
		fields: map[string]interface{}{},
	}
}

// Discard returns a logger that drops everything.
func Discard() *Logger {
	return NewWithWriter(io.Discard, LevelError+1, false)
}

// SetLevel sets the minimum log level.
func (l *Logger) SetLevel(level Level) {
	l.sink.mu.Lock()
	defer l.sink.mu.Unlock()
	l.sink.level = level
}

// WithField returns a child logger with the given field added.
func (l *Logger) WithField(key string, value interface{}) *Logger {
	return l.WithFields(map[string]interface{}{key: value})
}

// WithFields returns a child logger with the given fields added.
func (l *Logger) WithFields(fields map[string]interface{}) *Logger {
	merged := make(map[string]interface{}, len(l.fields)+len(fields))
	for k, v := range l.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	return &Logger{sink: l.sink, fields: merged}
}

// Named returns a child logger tagged with a component name.
func (l *Logger) Named(component string) *Logger {
	return l.WithField("component", component)
}

func (l *Logger) log(ctx context.Context, level Level, format string, args ...interface{}) {
	l.sink.mu.Lock()
	defer l.sink.mu.Unlock()

	if level < l.sink.level {
		return
	}

	msg := format
	if len(args) > 0 {
		msg = fmt.Sprintf(format, args...)
	}

	runID := GetRunID(ctx)

	all := make(map[string]interface{}, len(l.fields))
	for k, v := range l.fields {
		all[k] = v
	}
	if ctx != nil {
		if ctxFields, ok := ctx.Value(fieldsKey).(map[string]interface{}); ok {
			for k, v := range ctxFields {
				all[k] = v
			}
		}
	}

	if l.sink.json {
		entry := Entry{
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Level:     level.String(),
			Message:   msg,
			RunID:     runID,
		}
		if len(all) > 0 {
			entry.Fields = all
		}
		data, err := json.Marshal(entry)
		if err != nil {
			fmt.Fprintf(l.sink.output, "ERROR: failed to marshal log entry: %v\n", err)
			return
		}
		fmt.Fprintln(l.sink.output, string(data))
		return
	}

	parts := []string{time.Now().Format("2006/01/02 15:04:05")}
	if runID != "" {
		parts = append(parts, fmt.Sprintf("[%s]", shortID(runID)))
	}
	parts = append(parts, fmt.Sprintf("[%s]", level.String()), msg)

	if len(all) > 0 {
		keys := make([]string, 0, len(all))
		for k := range all {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		pairs := make([]string, 0, len(keys))
		for _, k := range keys {
			pairs = append(pairs, fmt.Sprintf("%s=%v", k, all[k]))
		}
		parts = append(parts, "{"+strings.Join(pairs, ", ")+"}")
	}

	fmt.Fprintln(l.sink.output, strings.Join(parts, " "))
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// Debug logs a debug message.
func (l *Logger) Debug(format string, args ...interface{}) {
	l.log(context.Background(), LevelDebug, format, args...)
}

// Info logs an info message.
func (l *Logger) Info(format string, args ...interface{}) {
	l.log(context.Background(), LevelInfo, format, args...)
}

// Warn logs a warning message.
func (l *Logger) Warn(format string, args ...interface{}) {
	l.log(context.Background(), LevelWarn, format, args...)
}

// Error logs an error message.
func (l *Logger) Error(format string, args ...interface{}) {
	l.log(context.Background(), LevelError, format, args...)
}

// DebugContext logs a debug message with context.
func (l *Logger) DebugContext(ctx context.Context, format string, args ...interface{}) {
	l.log(ctx, LevelDebug, format, args...)
}

// InfoContext logs an info message with context.
func (l *Logger) InfoContext(ctx context.Context, format string, args ...interface{}) {
	l.log(ctx, LevelInfo, format, args...)
}

// WarnContext logs a warning message with context.
func (l *Logger) WarnContext(ctx context.Context, format string, args ...interface{}) {
	l.log(ctx, LevelWarn, format, args...)
}

// ErrorContext logs an error message with context.
func (l *Logger) ErrorContext(ctx context.Context, format string, args ...interface{}) {
	l.log(ctx, LevelError, format, args...)
}

// --- Context helpers ---

// WithRunID returns a new context carrying the run ID.
func WithRunID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, runIDKey, id)
}

// GetRunID retrieves the run ID from context.
func GetRunID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if id, ok := ctx.Value(runIDKey).(string); ok {
		return id
	}
	return ""
}

// WithLogFields returns a new context with additional log fields.
func WithLogFields(ctx context.Context, fields map[string]interface{}) context.Context {
	existing := make(map[string]interface{})
	if ctxFields, ok := ctx.Value(fieldsKey).(map[string]interface{}); ok {
		for k, v := range ctxFields {
			existing[k] = v
		}
	}
	for k, v := range fields {
		existing[k] = v
	}
	return context.WithValue(ctx, fieldsKey, existing)
}

// --- Package-level functions using default logger ---

// Default returns the default logger.
func Default() *Logger {
	defaultMu.RLock()
	defer defaultMu.RUnlock()
	return defaultLogger
}

// SetDefault sets the default logger.
func SetDefault(l *Logger) {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	defaultLogger = l
}

// OrDefault returns l, or the default logger when l is nil.
func OrDefault(l *Logger) *Logger {
	if l != nil {
		return l
	}
	return Default()
}

// Info logs an info message using the default logger.
func Info(format string, args ...interface{}) {
	Default().log(context.Background(), LevelInfo, format, args...)
}

// Warn logs a warning message using the default logger.
func Warn(format string, args ...interface{}) {
	Default().log(context.Background(), LevelWarn, format, args...)
}

// Error logs an error message using the default logger.
func Error(format string, args ...interface{}) {
	Default().log(context.Background(), LevelError, format, args...)
}
