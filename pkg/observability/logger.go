package observability

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
)

// LogLevel is the minimum severity a logger emits.
type LogLevel int

const (
	DebugLevel LogLevel = iota
	InfoLevel
	WarnLevel
	ErrorLevel
)

var levelNames = map[LogLevel]string{
	DebugLevel: "DEBUG",
	InfoLevel:  "INFO",
	WarnLevel:  "WARN",
	ErrorLevel: "ERROR",
}

var slogLevels = map[LogLevel]slog.Level{
	DebugLevel: slog.LevelDebug,
	InfoLevel:  slog.LevelInfo,
	WarnLevel:  slog.LevelWarn,
	ErrorLevel: slog.LevelError,
}

func (l LogLevel) String() string {
	if name, ok := levelNames[l]; ok {
		return name
	}
	return "INFO"
}

// Logger emits structured JSON log lines. Field chaining methods return a
// derived logger, so a logger value is safe to share across goroutines.
type Logger struct {
	logger *slog.Logger
	level  LogLevel
}

// NewLogger builds a JSON logger writing to output at the given level.
// A nil output falls back to stdout.
func NewLogger(level LogLevel, output io.Writer) *Logger {
	if output == nil {
		output = os.Stdout
	}

	slogLevel, ok := slogLevels[level]
	if !ok {
		slogLevel = slog.LevelInfo
	}
	handler := slog.NewJSONHandler(output, &slog.HandlerOptions{Level: slogLevel})

	return &Logger{logger: slog.New(handler), level: level}
}

func (l *Logger) derive(args ...interface{}) *Logger {
	return &Logger{logger: l.logger.With(args...), level: l.level}
}

// WithField returns a logger that attaches the key/value pair to every line.
func (l *Logger) WithField(key string, value interface{}) *Logger {
	return l.derive(key, value)
}

// WithFields returns a logger carrying all the given fields.
func (l *Logger) WithFields(fields map[string]interface{}) *Logger {
	args := make([]interface{}, 0, len(fields)*2)
	for k, v := range fields {
		args = append(args, k, v)
	}
	return l.derive(args...)
}

// WithError attaches the error message under an "error" field. A nil error
// returns the receiver unchanged.
func (l *Logger) WithError(err error) *Logger {
	if err == nil {
		return l
	}
	return l.derive("error", err.Error())
}

func (l *Logger) emit(level slog.Level, message string) {
	l.logger.Log(context.Background(), level, message)
}

// Debug logs at debug level.
func (l *Logger) Debug(message string) { l.emit(slog.LevelDebug, message) }

// Debugf logs a formatted message at debug level.
func (l *Logger) Debugf(format string, args ...interface{}) {
	l.emit(slog.LevelDebug, fmt.Sprintf(format, args...))
}

// Info logs at info level.
func (l *Logger) Info(message string) { l.emit(slog.LevelInfo, message) }

// Infof logs a formatted message at info level.
func (l *Logger) Infof(format string, args ...interface{}) {
	l.emit(slog.LevelInfo, fmt.Sprintf(format, args...))
}

// Warn logs at warn level.
func (l *Logger) Warn(message string) { l.emit(slog.LevelWarn, message) }

// Warnf logs a formatted message at warn level.
func (l *Logger) Warnf(format string, args ...interface{}) {
	l.emit(slog.LevelWarn, fmt.Sprintf(format, args...))
}

// Error logs at error level.
func (l *Logger) Error(message string) { l.emit(slog.LevelError, message) }

// Errorf logs a formatted message at error level.
func (l *Logger) Errorf(format string, args ...interface{}) {
	l.emit(slog.LevelError, fmt.Sprintf(format, args...))
}

type contextKey string

const (
	// RunIDKey carries the publish run ID through a pipeline run.
	RunIDKey contextKey = "run_id"
	// ItemIDKey carries the ID of the item currently being processed.
	ItemIDKey contextKey = "item_id"
	// LoggerKey carries the logger itself.
	LoggerKey contextKey = "logger"
)

// WithRunID stores the publish run ID in the context.
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, RunIDKey, runID)
}

// GetRunID returns the publish run ID, or "" when the context has none.
func GetRunID(ctx context.Context) string {
	runID, _ := ctx.Value(RunIDKey).(string)
	return runID
}

// WithItemID stores the current item ID in the context.
func WithItemID(ctx context.Context, itemID string) context.Context {
	return context.WithValue(ctx, ItemIDKey, itemID)
}

// GetItemID returns the current item ID, or "" when the context has none.
func GetItemID(ctx context.Context) string {
	itemID, _ := ctx.Value(ItemIDKey).(string)
	return itemID
}

// WithLogger stores a logger in the context.
func WithLogger(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, LoggerKey, logger)
}

// GetLogger returns the context's logger, or a default info-level logger.
func GetLogger(ctx context.Context) *Logger {
	if logger, ok := ctx.Value(LoggerKey).(*Logger); ok {
		return logger
	}
	return NewLogger(InfoLevel, os.Stdout)
}

// FromContext returns the context's logger annotated with the run and item
// IDs the context carries.
func FromContext(ctx context.Context) *Logger {
	logger := GetLogger(ctx)
	if runID := GetRunID(ctx); runID != "" {
		logger = logger.WithField("run_id", runID)
	}
	if itemID := GetItemID(ctx); itemID != "" {
		logger = logger.WithField("item_id", itemID)
	}
	return logger
}
