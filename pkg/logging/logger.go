// Package logging wraps log/slog with a process-wide logger, level helpers and run/request IDs.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"

	"github.com/pkg/errors"
)

// LevelTrace is below debug; search steps are logged at this level
const LevelTrace = slog.LevelDebug - 4

type contextKey string

const (
	runIDKey     contextKey = "runID"
	requestIDKey contextKey = "requestID"
)

// Options configures the process-wide logger
type Options struct {
	Level  slog.Level
	JSON   bool
	Writer io.Writer // Defaults to stderr so reports on stdout stay machine readable
}

var logger atomic.Pointer[slog.Logger]

func init() {
	Configure(Options{Level: slog.LevelInfo})
}

// Configure replaces the process-wide logger
func Configure(opts Options) {
	w := opts.Writer
	if w == nil {
		w = os.Stderr
	}
	handlerOpts := &slog.HandlerOptions{Level: opts.Level}

	var handler slog.Handler
	if opts.JSON {
		handlerOpts.ReplaceAttr = renameTraceLevel
		handler = slog.NewJSONHandler(w, handlerOpts)
	} else {
		handler = NewCompactHandler(w, handlerOpts)
	}
	logger.Store(slog.New(handler))
}

// ParseLevel accepts trace, debug, info, warn and error
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trace":
		return LevelTrace, nil
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, errors.Errorf("unknown log level %q", s)
}

// VerboseLevel maps a -v count onto a level: 0 keeps base, 1 is debug, 2 or more is trace
func VerboseLevel(base slog.Level, verbose int) slog.Level {
	switch {
	case verbose >= 2:
		return LevelTrace
	case verbose == 1 && base > slog.LevelDebug:
		return slog.LevelDebug
	}
	return base
}

func renameTraceLevel(_ []string, a slog.Attr) slog.Attr {
	if a.Key == slog.LevelKey {
		if level, ok := a.Value.Any().(slog.Level); ok && level <= LevelTrace {
			return slog.String(slog.LevelKey, "TRACE")
		}
	}
	return a
}

// WithRunID tags the context with the ID of one analysis run
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, runIDKey, runID)
}

// GetRunID returns the run ID of the context, or ""
func GetRunID(ctx context.Context) string {
	if runID, ok := ctx.Value(runIDKey).(string); ok {
		return runID
	}
	return ""
}

// WithRequestID tags the context with the ID of an HTTP request
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// GetRequestID returns the request ID of the context, or ""
func GetRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(requestIDKey).(string); ok {
		return requestID
	}
	return ""
}

func withContextIDs(ctx context.Context, args []any) []any {
	if requestID := GetRequestID(ctx); requestID != "" {
		args = append([]any{"requestID", requestID}, args...)
	}
	if runID := GetRunID(ctx); runID != "" {
		args = append([]any{"runID", runID}, args...)
	}
	return args
}

// Trace logs search internals, only useful when debugging heuristics
func Trace(msg string, args ...any) {
	logger.Load().Log(context.Background(), LevelTrace, msg, args...)
}

// TraceContext logs at trace level with context
func TraceContext(ctx context.Context, msg string, args ...any) {
	logger.Load().Log(ctx, LevelTrace, msg, withContextIDs(ctx, args)...)
}

// Debug logs internal component behavior
func Debug(msg string, args ...any) {
	logger.Load().Debug(msg, args...)
}

// DebugContext logs at debug level with context
func DebugContext(ctx context.Context, msg string, args ...any) {
	logger.Load().DebugContext(ctx, msg, withContextIDs(ctx, args)...)
}

// Info logs user-facing operations
func Info(msg string, args ...any) {
	logger.Load().Info(msg, args...)
}

// InfoContext logs at info level with context
func InfoContext(ctx context.Context, msg string, args ...any) {
	logger.Load().InfoContext(ctx, msg, withContextIDs(ctx, args)...)
}

// Warn logs degraded results, e.g. an unresolved NMS role
func Warn(msg string, args ...any) {
	logger.Load().Warn(msg, args...)
}

// WarnContext logs at warn level with context
func WarnContext(ctx context.Context, msg string, args ...any) {
	logger.Load().WarnContext(ctx, msg, withContextIDs(ctx, args)...)
}

// Error logs failures
func Error(msg string, args ...any) {
	logger.Load().Error(msg, args...)
}

// ErrorContext logs at error level with context
func ErrorContext(ctx context.Context, msg string, args ...any) {
	logger.Load().ErrorContext(ctx, msg, withContextIDs(ctx, args)...)
}

// Fatal logs at error level and exits. Only main should call it.
func Fatal(msg string, args ...any) {
	logger.Load().Error(msg, args...)
	os.Exit(1)
}

// FatalContext logs at error level with context and exits
func FatalContext(ctx context.Context, msg string, args ...any) {
	logger.Load().ErrorContext(ctx, msg, withContextIDs(ctx, args)...)
	os.Exit(1)
}
