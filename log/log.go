// Package log provides structured logging for the Starknet Devnet emulator.
// It wraps Go's log/slog with per-component child loggers (state, blocks,
// sequencer, rpc, messaging, journal, subscriptions, fork), a bridge from
// the named LogLevel values of formatter.go to slog levels, and the
// RUST_LOG-style request logging toggle (spec.md §4.J).
package log

import (
	"log/slog"
	"os"
	"strings"
)

// Logger wraps slog.Logger with per-component context.
type Logger struct {
	inner *slog.Logger
}

// defaultLogger is the process-wide logger used by the package-level
// convenience functions.
var defaultLogger *Logger

func init() {
	defaultLogger = New(slog.LevelInfo)
}

// New creates a Logger that writes JSON to stderr at the given level.
func New(level slog.Level) *Logger {
	h := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{inner: slog.New(h)}
}

// NewWithHandler creates a Logger backed by the supplied slog.Handler. This
// is useful for testing or for writing to a custom destination.
func NewWithHandler(h slog.Handler) *Logger {
	return &Logger{inner: slog.New(h)}
}

// SetDefault replaces the package-level default logger.
func SetDefault(l *Logger) {
	if l != nil {
		defaultLogger = l
	}
}

// Default returns the current package-level default logger.
func Default() *Logger {
	return defaultLogger
}

// Module returns a child logger with an additional "module" attribute. This
// is the primary way subsystems (sequencer, rpc, fork, ...) obtain their own
// contextual logger.
func (l *Logger) Module(name string) *Logger {
	return &Logger{inner: l.inner.With("module", name)}
}

// With returns a child logger with additional key-value context.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{inner: l.inner.With(args...)}
}

// Debug logs at LevelDebug.
func (l *Logger) Debug(msg string, args ...any) { l.inner.Debug(msg, args...) }

// Info logs at LevelInfo.
func (l *Logger) Info(msg string, args ...any) { l.inner.Info(msg, args...) }

// Warn logs at LevelWarn.
func (l *Logger) Warn(msg string, args ...any) { l.inner.Warn(msg, args...) }

// Error logs at LevelError.
func (l *Logger) Error(msg string, args ...any) { l.inner.Error(msg, args...) }

// ---------------------------------------------------------------------------
// Package-level convenience functions -- delegate to defaultLogger.
// ---------------------------------------------------------------------------

// Debug logs at LevelDebug using the default logger.
func Debug(msg string, args ...any) { defaultLogger.Debug(msg, args...) }

// Info logs at LevelInfo using the default logger.
func Info(msg string, args ...any) { defaultLogger.Info(msg, args...) }

// Warn logs at LevelWarn using the default logger.
func Warn(msg string, args ...any) { defaultLogger.Warn(msg, args...) }

// Error logs at LevelError using the default logger.
func Error(msg string, args ...any) { defaultLogger.Error(msg, args...) }

// ToSlogLevel converts the CLI-facing LogLevel (parsed by LevelFromString;
// the CLI reads it from the LOG_LEVEL environment variable) into the
// slog.Level the logger handler expects.
func ToSlogLevel(l LogLevel) slog.Level {
	switch l {
	case DEBUG:
		return slog.LevelDebug
	case WARN:
		return slog.LevelWarn
	case ERROR, FATAL:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// RequestLoggingEnabled reports whether the given RUST_LOG-style env value
// contains the REQUEST or RESPONSE tokens, per spec.md §4.J: "log one
// request/response line at INFO level if RUST_LOG contains REQUEST/RESPONSE
// tokens". Matching is case-insensitive and substring-based, mirroring the
// original env var's comma-separated directive style.
func RequestLoggingEnabled(rustLog string) bool {
	upper := strings.ToUpper(rustLog)
	return strings.Contains(upper, "REQUEST") || strings.Contains(upper, "RESPONSE")
}
