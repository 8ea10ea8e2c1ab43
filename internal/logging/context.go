package logging

import (
	"context"
	"fmt"
	"regexp"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type requestCtxKey struct{}
type conversationCtxKey struct{}
type visitorCtxKey struct{}
type loggerCtxKey struct{}

const maxIDLen = 128

var idPattern = regexp.MustCompile(`^[a-zA-Z0-9_.-]+$`)

// ContextFields extracts correlation data from context.
func ContextFields(ctx context.Context) []zap.Field {
	fields := make([]zap.Field, 0, 6)

	if span := trace.SpanFromContext(ctx); span.SpanContext().IsValid() {
		sc := span.SpanContext()
		fields = append(fields,
			zap.String("trace_id", sc.TraceID().String()),
			zap.String("span_id", sc.SpanID().String()),
		)
	}

	if id := RequestIDFromContext(ctx); id != "" {
		fields = append(fields, zap.String("request.id", id))
	}
	if id := ConversationIDFromContext(ctx); id != "" {
		fields = append(fields, zap.String("conversation.id", id))
	}
	// The visitor token correlates a browser to its thread; log only its shape.
	if token := VisitorTokenFromContext(ctx); token != "" {
		fields = append(fields, RedactedString("visitor.token", token))
	}

	return fields
}

func validateID(id, name string) error {
	if id == "" {
		return fmt.Errorf("%s cannot be empty", name)
	}
	if len(id) > maxIDLen {
		return fmt.Errorf("%s exceeds max length %d", name, maxIDLen)
	}
	if !idPattern.MatchString(id) {
		return fmt.Errorf("%s contains invalid characters", name)
	}
	return nil
}

// WithRequestID adds a request ID to context. Invalid IDs are ignored.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	if validateID(requestID, "requestID") != nil {
		return ctx
	}
	return context.WithValue(ctx, requestCtxKey{}, requestID)
}

// RequestIDFromContext extracts the request ID from context.
func RequestIDFromContext(ctx context.Context) string {
	if r, ok := ctx.Value(requestCtxKey{}).(string); ok {
		return r
	}
	return ""
}

// WithConversationID adds a conversation ID to context. Invalid IDs are ignored.
func WithConversationID(ctx context.Context, id string) context.Context {
	if validateID(id, "conversationID") != nil {
		return ctx
	}
	return context.WithValue(ctx, conversationCtxKey{}, id)
}

// ConversationIDFromContext extracts the conversation ID from context.
func ConversationIDFromContext(ctx context.Context) string {
	if c, ok := ctx.Value(conversationCtxKey{}).(string); ok {
		return c
	}
	return ""
}

// WithVisitorToken adds the caller's visitor token to context.
func WithVisitorToken(ctx context.Context, token string) context.Context {
	if validateID(token, "visitorToken") != nil {
		return ctx
	}
	return context.WithValue(ctx, visitorCtxKey{}, token)
}

// VisitorTokenFromContext extracts the visitor token from context.
func VisitorTokenFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(visitorCtxKey{}).(string); ok {
		return v
	}
	return ""
}

// WithLogger stores logger in context.
func WithLogger(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, loggerCtxKey{}, logger)
}

// FromContext retrieves logger from context.
// Returns a nop logger if not found.
func FromContext(ctx context.Context) *Logger {
	if l, ok := ctx.Value(loggerCtxKey{}).(*Logger); ok {
		return l
	}
	return NewNop()
}
