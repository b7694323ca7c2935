package logging

import (
	"context"
	"log"
)

type requestIDKey struct{}

// WithRequestID returns a context carrying the request id.
func WithRequestID(ctx context.Context, rid string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, rid)
}

// RequestID extracts the request id from ctx, or "" if none was stored.
func RequestID(ctx context.Context) string {
	if rid, ok := ctx.Value(requestIDKey{}).(string); ok {
		return rid
	}
	return ""
}

// Logger writes leveled lines tagged with a request id and operation name.
type Logger struct {
	requestID string
}

// New creates a logger bound to the request id found in ctx.
func New(ctx context.Context) *Logger {
	rid := RequestID(ctx)
	if rid == "" {
		rid = "unknown"
	}
	return &Logger{requestID: rid}
}

// Named creates a logger with an explicit id (relay sessions, cron runs).
func Named(id string) *Logger {
	return &Logger{requestID: id}
}

func (l *Logger) Error(operation string, err error) {
	log.Printf("[error] request_id=%s operation=%s error=%v", l.requestID, operation, err)
}

func (l *Logger) Errorf(operation string, format string, args ...any) {
	log.Printf("[error] request_id=%s operation=%s "+format, append([]any{l.requestID, operation}, args...)...)
}

func (l *Logger) Infof(operation string, format string, args ...any) {
	log.Printf("[info] request_id=%s operation=%s "+format, append([]any{l.requestID, operation}, args...)...)
}

func (l *Logger) Warnf(operation string, format string, args ...any) {
	log.Printf("[warn] request_id=%s operation=%s "+format, append([]any{l.requestID, operation}, args...)...)
}
