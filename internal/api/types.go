package api

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// Health reports poller state.
type Health struct {
	Status               string  `json:"status"`
	Enabled              bool    `json:"enabled"`
	LastCheck            *string `json:"last_check"`
	EmailsProcessedToday int     `json:"emails_processed_today"`
	ErrorsToday          int     `json:"errors_today"`
	ProcessorRunning     bool    `json:"processor_running"`
	LastError            *string `json:"last_error"`
}

// Health status values.
const (
	StatusHealthy  = "healthy"
	StatusDisabled = "disabled"
)

// CheckResponse summarises one poll tick.
type CheckResponse struct {
	Processed int      `json:"processed"`
	Succeeded int      `json:"succeeded"`
	Failed    int      `json:"failed"`
	Skipped   int      `json:"skipped"`
	Errors    []string `json:"errors"`
}

// ParseTestRequest is the body of POST /email/test. Body is a pointer so a
// missing field can be told apart from an empty string.
type ParseTestRequest struct {
	Body *string `json:"body"`
}

// ParsedTag is the transport form of a parsed submission directive.
type ParsedTag struct {
	WeightKg float64 `json:"weight_kg"`
	LiftType string  `json:"lift_type"`
	RawText  string  `json:"raw_text"`
}

// ParseTestResponse is the dry-run result. Exactly one of Parsed and Error is set.
type ParseTestResponse struct {
	Success bool       `json:"success"`
	Parsed  *ParsedTag `json:"parsed,omitempty"`
	Error   string     `json:"error,omitempty"`
	Input   string     `json:"input"`
}

// ResetResponse acknowledges POST /email/stats/reset.
type ResetResponse struct {
	Status string `json:"status"`
}

// ErrorResponse is returned with every non-2xx status.
type ErrorResponse struct {
	Error string `json:"error"`
}

// LedgerRecord is a processing record row.
type LedgerRecord struct {
	ID          string `json:"id"`
	MessageID   string `json:"message_id,omitempty"`
	Fingerprint string `json:"fingerprint"`
	Sender      string `json:"sender,omitempty"`
	Subject     string `json:"subject,omitempty"`
	Status      string `json:"status"`
	Attempts    int    `json:"attempts"`
	Error       string `json:"error,omitempty"`
	CreatedAt   string `json:"created_at,omitempty"`
	UpdatedAt   string `json:"updated_at,omitempty"`
}
