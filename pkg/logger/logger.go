// Package logger provides slog-based structured logging.
//
// Core pieces:
//   - Init() configures the default logger (JSON prod / Text dev)
//   - FromContext() context-aware logging
//   - package-level helpers (Info/Error/Warn/Debug/Fatal)
//   - DBHandler async batch sink into the system_logs table
package logger

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync/atomic"
	"time"
)

var (
	// defaultLogger is swapped atomically so Init is safe under concurrency.
	defaultLogger atomic.Pointer[slog.Logger]
)

func init() { defaultLogger.Store(newLogger(false)) }

// getLogger atomically reads the current default logger.
func getLogger() *slog.Logger { return defaultLogger.Load() }

// storeLogger atomically stores the default logger and syncs slog.SetDefault.
func storeLogger(l *slog.Logger) {
	defaultLogger.Store(l)
	slog.SetDefault(l)
}

// replaceTimeAttr formats the slog time attribute as a readable string.
func replaceTimeAttr(_ []string, a slog.Attr) slog.Attr {
	if a.Key == slog.TimeKey {
		if t, ok := a.Value.Any().(time.Time); ok {
			a.Value = slog.StringValue(t.UTC().Format("2006-01-02 15:04:05"))
		}
	}
	return a
}

func newLogger(development bool) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level:       slog.LevelInfo,
		AddSource:   development,
		ReplaceAttr: replaceTimeAttr,
	}
	var handler slog.Handler
	if development {
		handler = slog.NewTextHandler(os.Stderr, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}
	return slog.New(handler)
}

// Init initializes the default logger. env: "development"/"dev" or
// "production" (default).
func Init(env string) {
	dev := env == "development" || env == "dev"
	storeLogger(newLogger(dev))
}

// ========================================
// Context-aware logging
// ========================================

type ctxKey struct{}

// WithContext injects a logger into the context.
func WithContext(ctx context.Context, l *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// FromContext extracts the logger from the context, falling back to the
// default logger.
func FromContext(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(ctxKey{}).(*slog.Logger); ok {
		return l
	}
	return getLogger()
}

// ========================================
// Package-level helpers
// ========================================

// Info/Error/Warn/Debug log structured records. args are key-value pairs.
func Info(msg string, args ...any)  { getLogger().Info(msg, args...) }
func Error(msg string, args ...any) { getLogger().Error(msg, args...) }
func Warn(msg string, args ...any)  { getLogger().Warn(msg, args...) }
func Debug(msg string, args ...any) { getLogger().Debug(msg, args...) }

// Infof/Errorf/Warnf/Debugf log formatted records.
func Infof(format string, args ...any)  { getLogger().Info(fmt.Sprintf(format, args...)) }
func Errorf(format string, args ...any) { getLogger().Error(fmt.Sprintf(format, args...)) }
func Warnf(format string, args ...any)  { getLogger().Warn(fmt.Sprintf(format, args...)) }
func Debugf(format string, args ...any) { getLogger().Debug(fmt.Sprintf(format, args...)) }

// Fatal logs the record and exits.
func Fatal(msg string, args ...any) {
	getLogger().Error(msg, args...)
	os.Exit(1)
}

// With returns a logger with extra context attached.
func With(args ...any) *slog.Logger { return getLogger().With(args...) }

// Get returns the underlying slog.Logger.
func Get() *slog.Logger { return getLogger() }

// Field name constants. MUST use these keys, never hardcode.
const (
	FieldThreadID   = "thread_id"
	FieldRunID      = "run_id"
	FieldStepID     = "step_id"
	FieldMessageID  = "message_id"
	FieldChunkType  = "chunk_type"
	FieldComponent  = "component"
	FieldError      = "error"
	FieldStatus     = "status"
	FieldCount      = "count"
	FieldPath       = "path"
	FieldMethod     = "method"
	FieldAddr       = "addr"
	FieldURL        = "url"
	FieldLatencyMS  = "latency_ms"
	FieldDurationMS = "duration_ms"
	FieldSource     = "source"
	FieldVersion    = "version"
	FieldLimit      = "limit"
	FieldBefore     = "before"
	FieldPartIndex  = "part_index"
)
