package logging

import (
	"context"
	"log/slog"
)

// Context keys for common log fields.
type contextKey string

const (
	// RequestIDKey is the context key for request IDs.
	RequestIDKey contextKey = "request_id"

	// BankIDKey is the context key for memory bank identifiers.
	BankIDKey contextKey = "bank_id"

	// OperationKey is the context key for the memory operation name.
	OperationKey contextKey = "operation"
)

// WithRequestID adds a request ID to the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// GetRequestID retrieves the request ID from the context.
func GetRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(RequestIDKey).(string); ok {
		return requestID
	}
	return ""
}

// WithBankID adds a memory bank ID to the context.
func WithBankID(ctx context.Context, bankID string) context.Context {
	return context.WithValue(ctx, BankIDKey, bankID)
}

// GetBankID retrieves the memory bank ID from the context.
func GetBankID(ctx context.Context) string {
	if bankID, ok := ctx.Value(BankIDKey).(string); ok {
		return bankID
	}
	return ""
}

// WithOperation adds the operation name (retain, recall, reflect) to the context.
func WithOperation(ctx context.Context, operation string) context.Context {
	return context.WithValue(ctx, OperationKey, operation)
}

// GetOperation retrieves the operation name from the context.
func GetOperation(ctx context.Context) string {
	if op, ok := ctx.Value(OperationKey).(string); ok {
		return op
	}
	return ""
}

// extractContextFields returns the context fields as key-value pairs
// suitable for logger.With().
func extractContextFields(ctx context.Context) []any {
	if ctx == nil {
		return nil
	}

	var fields []any
	if requestID := GetRequestID(ctx); requestID != "" {
		fields = append(fields, string(RequestIDKey), requestID)
	}
	if bankID := GetBankID(ctx); bankID != "" {
		fields = append(fields, string(BankIDKey), bankID)
	}
	if op := GetOperation(ctx); op != "" {
		fields = append(fields, string(OperationKey), op)
	}
	return fields
}

// contextHandler adds context fields to every record logged through a
// *Context method.
type contextHandler struct {
	slog.Handler
}

func (h *contextHandler) Handle(ctx context.Context, r slog.Record) error {
	if fields := extractContextFields(ctx); len(fields) > 0 {
		r.Add(fields...)
	}
	return h.Handler.Handle(ctx, r)
}

func (h *contextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &contextHandler{Handler: h.Handler.WithAttrs(attrs)}
}

func (h *contextHandler) WithGroup(name string) slog.Handler {
	return &contextHandler{Handler: h.Handler.WithGroup(name)}
}
