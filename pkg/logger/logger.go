// Package logger is a thin structured-logging facade over zap. It keeps
// the rest of the codebase decoupled from the concrete logging backend:
// components accept a [Logger] and call it with alternating key-value
// pairs, mirroring zap's sugared API.
//
// A process-wide default logger is available via [Default] and can be
// swapped with [SetDefault], typically once in main:
//
//	logger.SetDefault(logger.MustProduction())
//	defer logger.SyncDefault()
package logger

import (
	"os"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Swappable for tests.
var (
	osExitReal = os.Exit
	osExit     = osExitReal
)

// Logger is the logging contract consumed throughout the module.
// Methods take a message and alternating key-value pairs.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)

	// With returns a child logger with the given key-value pairs
	// attached to every subsequent entry.
	With(keysAndValues ...any) Logger

	// Sync flushes any buffered log entries.
	Sync() error
}

// Compile-time interface check.
var _ Logger = (*zapLogger)(nil)

type zapLogger struct {
	s *zap.SugaredLogger
}

func (l *zapLogger) Debug(msg string, kv ...any) { l.s.Debugw(msg, kv...) }
func (l *zapLogger) Info(msg string, kv ...any)  { l.s.Infow(msg, kv...) }
func (l *zapLogger) Warn(msg string, kv ...any)  { l.s.Warnw(msg, kv...) }
func (l *zapLogger) Error(msg string, kv ...any) { l.s.Errorw(msg, kv...) }

func (l *zapLogger) With(kv ...any) Logger {
	return &zapLogger{s: l.s.With(kv...)}
}

func (l *zapLogger) Sync() error { return l.s.Sync() }

// New wraps an existing zap logger in the [Logger] interface.
func New(z *zap.Logger) Logger {
	return &zapLogger{s: z.Sugar()}
}

// NewProduction builds a production [Logger] (JSON output, info level).
func NewProduction() (Logger, error) {
	z, err := zap.NewProduction(zap.AddCallerSkip(1))
	if err != nil {
		return nil, err
	}
	return New(z), nil
}

// MustProduction is like [NewProduction] but panics on error. Intended
// for use in main where a missing logger is unrecoverable anyway.
func MustProduction() Logger {
	l, err := NewProduction()
	if err != nil {
		panic(err)
	}
	return l
}

// NewDevelopment builds a human-readable [Logger] (console output,
// debug level). Useful in tests and examples.
func NewDevelopment() Logger {
	cfg := zap.NewDevelopmentConfig()
	cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	z, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		// The development config is static; Build cannot fail on it.
		panic(err)
	}
	return New(z)
}

// Nop returns a [Logger] that discards everything.
func Nop() Logger {
	return New(zap.NewNop())
}

// ---------------------------------------------------------------------------
// Process-wide default
// ---------------------------------------------------------------------------

var defaultLogger atomic.Value // Logger

func init() {
	defaultLogger.Store(Nop())
}

// Default returns the process-wide default logger.
func Default() Logger {
	return defaultLogger.Load().(Logger)
}

// SetDefault replaces the process-wide default logger.
func SetDefault(l Logger) {
	if l != nil {
		defaultLogger.Store(l)
	}
}

// SyncDefault flushes the default logger. Safe to defer from main.
func SyncDefault() {
	_ = Default().Sync()
}

// Package-level helpers that forward to the default logger.

func Debug(msg string, kv ...any) { Default().Debug(msg, kv...) }
func Info(msg string, kv ...any)  { Default().Info(msg, kv...) }
func Warn(msg string, kv ...any)  { Default().Warn(msg, kv...) }
func Error(msg string, kv ...any) { Default().Error(msg, kv...) }

// Fatal logs at error level via the default logger, flushes it, and
// exits the process with status 1.
func Fatal(msg string, kv ...any) {
	Default().Error(msg, kv...)
	SyncDefault()
	osExit(1)
}
