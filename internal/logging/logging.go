// Package logging wraps log/slog with one process-global structured
// logger plus helpers for the recurring event shapes of the pipeline:
// HTTP requests, pipeline stages, fetches, link resolution, typesetting.
package logging

import (
	"context"
	"log/slog"
	"os"
	"time"
)

// ContextKey is a type for context keys to avoid collisions.
type ContextKey string

// RequestIDKey is the context key for request IDs.
const RequestIDKey ContextKey = "request_id"

var defaultLogger *slog.Logger

func init() {
	InitLogger(LevelInfo, FormatJSON)
}

// Level represents a log level.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) slogLevel() slog.Level {
	switch l {
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Format represents a log output format.
type Format int

const (
	// FormatJSON outputs logs in JSON format.
	FormatJSON Format = iota
	// FormatText outputs logs in human-readable text format.
	FormatText
)

// InitLogger replaces the global logger with one at the given level and
// format. Timestamps render as RFC3339.
func InitLogger(level Level, format Format) {
	opts := &slog.HandlerOptions{
		Level: level.slogLevel(),
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				return slog.String(slog.TimeKey, a.Value.Time().Format(time.RFC3339))
			}
			return a
		},
	}

	var handler slog.Handler
	if format == FormatText {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	defaultLogger = slog.New(handler)
	slog.SetDefault(defaultLogger)
}

// GetLogger returns the global logger instance.
func GetLogger() *slog.Logger {
	return defaultLogger
}

// WithRequestID adds a request ID to the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// GetRequestID retrieves the request ID from the context, or "" if none
// is set.
func GetRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(RequestIDKey).(string); ok {
		return requestID
	}
	return ""
}

// LoggerFromContext returns the global logger, with the context's request
// ID attached when present.
func LoggerFromContext(ctx context.Context) *slog.Logger {
	logger := defaultLogger
	if requestID := GetRequestID(ctx); requestID != "" {
		logger = logger.With("request_id", requestID)
	}
	return logger
}

// Debug logs a debug message with optional key-value pairs.
func Debug(msg string, args ...any) {
	defaultLogger.Debug(msg, args...)
}

// Info logs an info message with optional key-value pairs.
func Info(msg string, args ...any) {
	defaultLogger.Info(msg, args...)
}

// Warn logs a warning message with optional key-value pairs.
func Warn(msg string, args ...any) {
	defaultLogger.Warn(msg, args...)
}

// Error logs an error message with optional key-value pairs.
func Error(msg string, args ...any) {
	defaultLogger.Error(msg, args...)
}

// DebugContext logs a debug message with the context's request ID.
func DebugContext(ctx context.Context, msg string, args ...any) {
	LoggerFromContext(ctx).Debug(msg, args...)
}

// InfoContext logs an info message with the context's request ID.
func InfoContext(ctx context.Context, msg string, args ...any) {
	LoggerFromContext(ctx).Info(msg, args...)
}

// WarnContext logs a warning message with the context's request ID.
func WarnContext(ctx context.Context, msg string, args ...any) {
	LoggerFromContext(ctx).Warn(msg, args...)
}

// ErrorContext logs an error message with the context's request ID.
func ErrorContext(ctx context.Context, msg string, args ...any) {
	LoggerFromContext(ctx).Error(msg, args...)
}

func httpArgs(method, path, remoteAddr string, statusCode int, duration time.Duration, extra []any) []any {
	return append([]any{
		"method", method,
		"path", path,
		"remote_addr", remoteAddr,
		"status_code", statusCode,
		"duration_ms", duration.Milliseconds(),
	}, extra...)
}

// HTTPRequest logs one served HTTP request.
func HTTPRequest(method, path, remoteAddr string, statusCode int, duration time.Duration, args ...any) {
	defaultLogger.Info("http_request", httpArgs(method, path, remoteAddr, statusCode, duration, args)...)
}

// HTTPRequestContext is HTTPRequest with the context's request ID attached.
func HTTPRequestContext(ctx context.Context, method, path, remoteAddr string, statusCode int, duration time.Duration, args ...any) {
	LoggerFromContext(ctx).Info("http_request", httpArgs(method, path, remoteAddr, statusCode, duration, args)...)
}

// PipelineStage logs document pipeline stage transitions.
func PipelineStage(key, stage string, args ...any) {
	defaultLogger.Info("pipeline_stage", append([]any{"key", key, "stage", stage}, args...)...)
}

// ResourceEvent logs per-resource pipeline events such as found, unfound,
// provisioned, or parsed.
func ResourceEvent(event, spec string, args ...any) {
	defaultLogger.Info("resource_event", append([]any{"event", event, "resource", spec}, args...)...)
}

// FetchEvent logs fetch stage activity against a remote location.
func FetchEvent(stage, url string, args ...any) {
	defaultLogger.Info("fetch_event", append([]any{"stage", stage, "url", url}, args...)...)
}

// BadLink logs a cross-reference that could not be resolved.
func BadLink(locator, from string, args ...any) {
	defaultLogger.Warn("bad_link", append([]any{"locator", locator, "from", from}, args...)...)
}

// TypesetEvent logs external typesetter invocations.
func TypesetEvent(command string, duration time.Duration, args ...any) {
	defaultLogger.Info("typeset_event", append([]any{"command", command, "duration_ms", duration.Milliseconds()}, args...)...)
}

// WebSocketEvent logs WebSocket client activity.
func WebSocketEvent(event string, clientCount int, args ...any) {
	defaultLogger.Info("websocket_event", append([]any{"event", event, "client_count", clientCount}, args...)...)
}

// ServerStartup logs server startup information.
func ServerStartup(serverType, protocol string, port int, args ...any) {
	defaultLogger.Info("server_startup", append([]any{"server_type", serverType, "protocol", protocol, "port", port}, args...)...)
}
