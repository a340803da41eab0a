package logging

import (
	"context"
	"log/slog"
)

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldSlot is the standardized key for modem slot indexes.
	FieldSlot = "slot"
	// FieldWatchID is the standardized key for signal watch identifiers.
	FieldWatchID = "watch_id"
	// FieldOperation is the standardized key for outbound operation names.
	FieldOperation = "op"
	// FieldEvent is the standardized key for notification kind names.
	FieldEvent = "event"
	// FieldCorrelationID is the standardized key for handler and request correlation identifiers.
	FieldCorrelationID = "correlation_id"
	// FieldEventType classifies WARN and ERROR records.
	FieldEventType = "event_type"
	// FieldErrorHint carries the suggested next step for an operator.
	FieldErrorHint = "error_hint"
	// FieldImpact is the standardized key for user-facing consequence of a warning.
	FieldImpact = "impact"
)

type ctxKey int

const (
	slotKey ctxKey = iota
	correlationKey
)

// WithSlot stores a slot index on the context.
func WithSlot(ctx context.Context, slot int) context.Context {
	return context.WithValue(ctx, slotKey, slot)
}

// WithCorrelationID stores a request correlation identifier on the context.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, correlationKey, id)
}

// ContextFields extracts standardized slog attributes from the provided context.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	fields := make([]slog.Attr, 0, 2)
	if slot, ok := ctx.Value(slotKey).(int); ok {
		fields = append(fields, slog.Int(FieldSlot, slot))
	}
	if id, ok := ctx.Value(correlationKey).(string); ok {
		fields = append(fields, slog.String(FieldCorrelationID, id))
	}
	return fields
}

// WithContext returns a logger augmented with structured fields derived from the supplied context.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	return logger.With(Args(fields...)...)
}
