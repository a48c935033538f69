package logging

import (
	"context"
	"log/slog"
)

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldRecordID identifies a ledger processing record.
	FieldRecordID = "record_id"
	// FieldFingerprint is the message fingerprint used as the idempotency key.
	FieldFingerprint = "fingerprint"
	// FieldMessageUID is the mailbox UID of the message being handled.
	FieldMessageUID = "message_uid"
	// FieldMessageID is the RFC 5322 Message-ID header.
	FieldMessageID = "message_id"
	// FieldOutcome is the terminal state of a processed message.
	FieldOutcome = "outcome"
	// FieldEventType tags log lines with a stable machine-readable event name.
	FieldEventType = "event_type"
	// FieldErrorHint carries the operator's next step for a warning or error.
	FieldErrorHint = "error_hint"
	// FieldErrorKind classifies ingest failures.
	FieldErrorKind = "error_kind"
	// FieldImpact is the user-facing consequence of a warning.
	FieldImpact = "impact"
	// FieldCorrelationID is the per-tick or per-request correlation identifier.
	FieldCorrelationID = "correlation_id"
)

type correlationKey struct{}

// WithCorrelationID stores a correlation identifier on the context.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, correlationKey{}, id)
}

// CorrelationIDFromContext returns the identifier set by WithCorrelationID.
func CorrelationIDFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	id, ok := ctx.Value(correlationKey{}).(string)
	return id, ok && id != ""
}

// WithContext returns a logger augmented with structured fields derived from the supplied context.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	if id, ok := CorrelationIDFromContext(ctx); ok {
		return logger.With(String(FieldCorrelationID, id))
	}
	return logger
}
