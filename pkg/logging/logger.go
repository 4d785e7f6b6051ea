// Package logging provides the structured logger used throughout the engine.
// Output goes to stderr by default because stdout usually carries the
// protocol stream itself.
package logging

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	rpcerrors "github.com/ajitpratap0/lsp-sdk-go/pkg/errors"
	"github.com/ajitpratap0/lsp-sdk-go/pkg/protocol"
)

// Level represents the severity of a log message
type Level int

const (
	// DebugLevel is for detailed information useful for debugging
	DebugLevel Level = iota - 1
	// InfoLevel is for general informational messages
	InfoLevel
	// WarnLevel is for warning messages
	WarnLevel
	// ErrorLevel is for error messages
	ErrorLevel
	// OffLevel disables output entirely
	OffLevel
)

// String returns the string representation of a log level
func (l Level) String() string {
	switch l {
	case DebugLevel:
		return "DEBUG"
	case InfoLevel:
		return "INFO"
	case WarnLevel:
		return "WARN"
	case ErrorLevel:
		return "ERROR"
	case OffLevel:
		return "OFF"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel converts a level name such as "debug" or "WARN" into a Level
func ParseLevel(name string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return DebugLevel, nil
	case "", "info":
		return InfoLevel, nil
	case "warn", "warning":
		return WarnLevel, nil
	case "error":
		return ErrorLevel, nil
	case "off", "none":
		return OffLevel, nil
	default:
		return InfoLevel, fmt.Errorf("unknown log level %q", name)
	}
}

// Field represents a key-value pair for structured logging
type Field struct {
	Key   string
	Value interface{}
}

// String creates a string field
func String(key, value string) Field {
	return Field{Key: key, Value: value}
}

// Int creates an integer field
func Int(key string, value int) Field {
	return Field{Key: key, Value: value}
}

// Bool creates a boolean field
func Bool(key string, value bool) Field {
	return Field{Key: key, Value: value}
}

// ErrorField creates an error field
func ErrorField(err error) Field {
	return Field{Key: "error", Value: err}
}

// Duration creates a duration field
func Duration(key string, value time.Duration) Field {
	return Field{Key: key, Value: value}
}

// Method creates the field naming the JSON-RPC method being handled
func Method(name string) Field {
	return Field{Key: "method", Value: name}
}

// ID creates the field carrying a JSON-RPC request id
func ID(id protocol.RequestID) Field {
	return Field{Key: requestKey, Value: id.String()}
}

// Component creates the field naming the subsystem that logged the entry
func Component(name string) Field {
	return Field{Key: "component", Value: name}
}

// Any creates a field with any value
func Any(key string, value interface{}) Field {
	return Field{Key: key, Value: value}
}

// Logger is the interface for structured logging
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)

	// WithFields returns a new logger with additional fields
	WithFields(fields ...Field) Logger
	// WithContext returns a new logger carrying the request id stored in ctx
	WithContext(ctx context.Context) Logger
	// WithError returns a new logger with error classification fields
	WithError(err error) Logger

	SetLevel(level Level)
	GetLevel() Level
}

// Entry represents a log entry
type Entry struct {
	Level     Level
	Message   string
	Fields    map[string]interface{}
	Timestamp time.Time
	RequestID string
	Component string
	Method    string
}

// Formatter formats log entries
type Formatter interface {
	Format(entry *Entry) ([]byte, error)
}

const requestKey = "request_id"

// levelCell is shared between a logger and every logger derived from it, so
// SetLevel on the root affects the whole tree.
type levelCell struct {
	mu    sync.RWMutex
	level Level
}

func (c *levelCell) get() Level {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.level
}

func (c *levelCell) set(level Level) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.level = level
}

type baseLogger struct {
	level     *levelCell
	writeMu   *sync.Mutex
	output    io.Writer
	formatter Formatter
	fields    map[string]interface{}
}

// New creates a new structured logger. A nil output writes to stderr and a
// nil formatter selects the text format.
func New(output io.Writer, formatter Formatter) Logger {
	if output == nil {
		output = os.Stderr
	}
	if formatter == nil {
		formatter = NewTextFormatter()
	}

	return &baseLogger{
		level:     &levelCell{level: InfoLevel},
		writeMu:   &sync.Mutex{},
		output:    output,
		formatter: formatter,
		fields:    make(map[string]interface{}),
	}
}

// NewFromConfig builds a logger from a level name and a format name ("text"
// or "json").
func NewFromConfig(output io.Writer, level, format string) (Logger, error) {
	lvl, err := ParseLevel(level)
	if err != nil {
		return nil, err
	}

	var formatter Formatter
	switch strings.ToLower(format) {
	case "", "text":
		text := NewTextFormatter()
		text.DisableColors = true
		formatter = text
	case "json":
		formatter = NewJSONFormatter()
	default:
		return nil, fmt.Errorf("unknown log format %q", format)
	}

	logger := New(output, formatter)
	logger.SetLevel(lvl)
	return logger, nil
}

func (l *baseLogger) Debug(msg string, fields ...Field) { l.log(DebugLevel, msg, fields...) }
func (l *baseLogger) Info(msg string, fields ...Field) { l.log(InfoLevel, msg, fields...) }
func (l *baseLogger) Warn(msg string, fields ...Field) { l.log(WarnLevel, msg, fields...) }
func (l *baseLogger) Error(msg string, fields ...Field) { l.log(ErrorLevel, msg, fields...) }

// WithFields returns a new logger with additional fields
func (l *baseLogger) WithFields(fields ...Field) Logger {
	newFields := make(map[string]interface{}, len(l.fields)+len(fields))
	for k, v := range l.fields {
		newFields[k] = v
	}
	for _, field := range fields {
		newFields[field.Key] = field.Value
	}

	return &baseLogger{
		level:     l.level,
		writeMu:   l.writeMu,
		output:    l.output,
		formatter: l.formatter,
		fields:    newFields,
	}
}

// WithContext returns a new logger with context fields
func (l *baseLogger) WithContext(ctx context.Context) Logger {
	if requestID := RequestIDFromContext(ctx); requestID != "" {
		return l.WithFields(String(requestKey, requestID))
	}
	return l
}

// WithError returns a new logger with error context
func (l *baseLogger) WithError(err error) Logger {
	fields := []Field{ErrorField(err)}

	if rpcErr, ok := rpcerrors.AsRPCError(err); ok {
		fields = append(fields,
			Int("error_code", rpcErr.Code()),
			String("error_category", string(rpcErr.Category())),
			String("error_severity", string(rpcErr.Severity())),
		)
		if ctx := rpcErr.Context(); ctx != nil {
			if ctx.RequestID != "" {
				fields = append(fields, String(requestKey, ctx.RequestID))
			}
			if ctx.Method != "" {
				fields = append(fields, Method(ctx.Method))
			}
			if ctx.Component != "" {
				fields = append(fields, Component(ctx.Component))
			}
		}
	}

	return l.WithFields(fields...)
}

func (l *baseLogger) SetLevel(level Level) { l.level.set(level) }
func (l *baseLogger) GetLevel() Level { return l.level.get() }

func (l *baseLogger) log(level Level, msg string, fields ...Field) {
	if current := l.level.get(); current == OffLevel || level < current {
		return
	}

	entry := &Entry{
		Level:     level,
		Message:   msg,
		Fields:    make(map[string]interface{}, len(l.fields)+len(fields)),
		Timestamp: time.Now(),
	}
	for k, v := range l.fields {
		entry.Fields[k] = v
	}
	for _, field := range fields {
		entry.Fields[field.Key] = field.Value
	}

	if requestID, ok := entry.Fields[requestKey].(string); ok {
		entry.RequestID = requestID
	}
	if component, ok := entry.Fields["component"].(string); ok {
		entry.Component = component
	}
	if method, ok := entry.Fields["method"].(string); ok {
		entry.Method = method
	}

	data, err := l.formatter.Format(entry)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to format log entry: %v\n", err)
		return
	}

	l.writeMu.Lock()
	defer l.writeMu.Unlock()

	if _, err := l.output.Write(data); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to write log entry: %v\n", err)
	}
}

type contextKey string

const requestIDKey contextKey = "request_id"

// ContextWithRequestID returns a context carrying the id of the request
// being handled
func ContextWithRequestID(ctx context.Context, id protocol.RequestID) context.Context {
	return context.WithValue(ctx, requestIDKey, id.String())
}

// RequestIDFromContext extracts the request id stored by ContextWithRequestID
func RequestIDFromContext(ctx context.Context) string {
	if requestID, ok := ctx.Value(requestIDKey).(string); ok {
		return requestID
	}
	return ""
}

type nopLogger struct{}

// Nop returns a logger that discards everything
func Nop() Logger { return nopLogger{} }

func (nopLogger) Debug(string, ...Field) {}
func (nopLogger) Info(string, ...Field) {}
func (nopLogger) Warn(string, ...Field) {}
func (nopLogger) Error(string, ...Field) {}
func (n nopLogger) WithFields(...Field) Logger { return n }
func (n nopLogger) WithContext(context.Context) Logger { return n }
func (n nopLogger) WithError(error) Logger { return n }
func (nopLogger) SetLevel(Level) {}
func (nopLogger) GetLevel() Level { return OffLevel }
