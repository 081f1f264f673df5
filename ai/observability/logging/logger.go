// Package logging provides structured logging for the summarization pipeline.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"
)

// LogLevel represents the severity level of a log entry.
type LogLevel int

const (
	// LevelDebug is for detailed debugging information.
	LevelDebug LogLevel = LogLevel(slog.LevelDebug)
	// LevelInfo is for general informational messages.
	LevelInfo LogLevel = LogLevel(slog.LevelInfo)
	// LevelWarn is for warning messages.
	LevelWarn LogLevel = LogLevel(slog.LevelWarn)
	// LevelError is for error messages.
	LevelError LogLevel = LogLevel(slog.LevelError)
)

// String returns the string representation of the log level.
func (l LogLevel) String() string {
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

// ParseLevel maps a config string to a level. Unknown values yield LevelInfo.
func ParseLevel(s string) LogLevel {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// Logger writes structured records with a fixed set of attached fields.
// Loggers are immutable; With* methods return copies.
type Logger struct {
	handler slog.Handler
	level   LogLevel
	fields  []slog.Attr
}

var (
	defaultMu     sync.RWMutex
	defaultLogger = NewLogger(nil)
)

// NewLogger creates a new logger with the given handler.
func NewLogger(h slog.Handler) *Logger {
	if h == nil {
		h = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug})
	}
	return &Logger{
		handler: h,
		level:   LevelInfo,
	}
}

// NewHandler builds a handler for the given format ("json" or "text") that
// drops records below level.
func NewHandler(w io.Writer, format string, level LogLevel) slog.Handler {
	opts := &slog.HandlerOptions{Level: slog.Level(level)}
	if strings.EqualFold(format, "text") {
		return slog.NewTextHandler(w, opts)
	}
	return slog.NewJSONHandler(w, opts)
}

func (l *Logger) clone() *Logger {
	fields := make([]slog.Attr, len(l.fields))
	copy(fields, l.fields)
	return &Logger{handler: l.handler, level: l.level, fields: fields}
}

// WithLevel returns a new logger with the specified minimum level.
func (l *Logger) WithLevel(level LogLevel) *Logger {
	n := l.clone()
	n.level = level
	return n
}

// WithField returns a new logger with an additional field.
func (l *Logger) WithField(key string, value any) *Logger {
	n := l.clone()
	n.fields = append(n.fields, slog.Any(key, value))
	return n
}

// With returns a new logger with additional key-value pairs.
func (l *Logger) With(args ...any) *Logger {
	n := l.clone()
	n.fields = append(n.fields, pairs(args)...)
	return n
}

// Enabled reports whether records at level would be written.
func (l *Logger) Enabled(level LogLevel) bool {
	return level >= l.level
}

// Debug logs a debug message.
func (l *Logger) Debug(msg string, args ...any) {
	l.log(LevelDebug, msg, args...)
}

// Info logs an info message.
func (l *Logger) Info(msg string, args ...any) {
	l.log(LevelInfo, msg, args...)
}

// Warn logs a warning message.
func (l *Logger) Warn(msg string, args ...any) {
	l.log(LevelWarn, msg, args...)
}

// Error logs an error message.
func (l *Logger) Error(msg string, args ...any) {
	l.log(LevelError, msg, args...)
}

func (l *Logger) log(level LogLevel, msg string, args ...any) {
	if !l.Enabled(level) {
		return
	}

	record := slog.NewRecord(time.Now(), slog.Level(level), msg, 0)
	record.AddAttrs(l.fields...)
	record.AddAttrs(pairs(args)...)

	_ = l.handler.Handle(context.Background(), record)
}

// pairs converts alternating key/value args into attributes. A trailing
// key without a value is dropped; slog.Attr values pass through.
func pairs(args []any) []slog.Attr {
	attrs := make([]slog.Attr, 0, len(args)/2)
	for i := 0; i < len(args); i++ {
		if a, ok := args[i].(slog.Attr); ok {
			attrs = append(attrs, a)
			continue
		}
		if i+1 >= len(args) {
			break
		}
		key, _ := args[i].(string)
		attrs = append(attrs, slog.Any(key, args[i+1]))
		i++
	}
	return attrs
}

type loggerKey struct{}

// Lookup returns the logger stored in ctx, if any.
func Lookup(ctx context.Context) (*Logger, bool) {
	if ctx == nil {
		return nil, false
	}
	l, ok := ctx.Value(loggerKey{}).(*Logger)
	return l, ok
}

// FromContext extracts the logger from context, or returns the default logger.
func FromContext(ctx context.Context) *Logger {
	if l, ok := Lookup(ctx); ok {
		return l
	}
	return Default()
}

// ToContext adds the logger to context.
func ToContext(ctx context.Context, l *Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, l)
}

// Default returns the process-wide logger.
func Default() *Logger {
	defaultMu.RLock()
	defer defaultMu.RUnlock()
	return defaultLogger
}

// SetDefault replaces the process-wide logger.
func SetDefault(l *Logger) {
	if l == nil {
		return
	}
	defaultMu.Lock()
	defaultLogger = l
	defaultMu.Unlock()
}

// Setup configures the default logger and the slog default from config values.
func Setup(w io.Writer, format, level string) *Logger {
	lvl := ParseLevel(level)
	h := NewHandler(w, format, lvl)
	l := NewLogger(h).WithLevel(lvl)
	SetDefault(l)
	slog.SetDefault(slog.New(h))
	return l
}

// Package-level convenience functions using the default logger.

// Debug logs a debug message using the default logger.
func Debug(msg string, args ...any) {
	Default().Debug(msg, args...)
}

// Info logs an info message using the default logger.
func Info(msg string, args ...any) {
	Default().Info(msg, args...)
}

// Warn logs a warning message using the default logger.
func Warn(msg string, args ...any) {
	Default().Warn(msg, args...)
}

// Error logs an error message using the default logger.
func Error(msg string, args ...any) {
	Default().Error(msg, args...)
}
