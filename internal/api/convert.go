package api

import (
	"fmt"
	"strings"
	"time"

	"liftmail/internal/ledger"
	"liftmail/internal/mailparse"
	"liftmail/internal/workflow"
)

// FromStats converts poller counters to the health payload.
func FromStats(stats workflow.Stats) Health {
	status := StatusHealthy
	if !stats.Enabled {
		status = StatusDisabled
	}
	return Health{
		Status:               status,
		Enabled:              stats.Enabled,
		LastCheck:            formatOptionalTime(stats.LastCheck),
		EmailsProcessedToday: stats.EmailsProcessedToday,
		ErrorsToday:          stats.ErrorsToday,
		ProcessorRunning:     stats.ProcessorRunning,
		LastError:            optionalString(stats.LastError),
	}
}

// FromCheckResult converts a tick result. Errors is never null.
func FromCheckResult(result workflow.CheckResult) CheckResponse {
	errs := result.Errors
	if errs == nil {
		errs = []string{}
	}
	return CheckResponse{
		Processed: result.Processed,
		Succeeded: result.Succeeded,
		Failed:    result.Failed,
		Skipped:   result.Skipped,
		Errors:    errs,
	}
}

// ParseTest runs the tag parser over input without side effects. A nil parser
// uses the default keyword.
func ParseTest(parser *mailparse.TagParser, input string) ParseTestResponse {
	if parser == nil {
		parser = mailparse.NewTagParser("", "")
	}
	tag := parser.Parse(input)
	if tag == nil {
		return ParseTestResponse{
			Success: false,
			Error:   fmt.Sprintf("No %s tag found", parser.Keyword()),
			Input:   input,
		}
	}
	return ParseTestResponse{
		Success: true,
		Parsed: &ParsedTag{
			WeightKg: tag.WeightKg,
			LiftType: tag.LiftType,
			RawText:  tag.RawText,
		},
		Input: input,
	}
}

// FromRecord converts a ledger record.
func FromRecord(rec ledger.Record) LedgerRecord {
	dto := LedgerRecord{
		ID:          rec.ID,
		MessageID:   rec.MessageID,
		Fingerprint: rec.Fingerprint,
		Sender:      rec.Sender,
		Subject:     rec.Subject,
		Status:      string(rec.Status),
		Attempts:    rec.Attempts,
		Error:       rec.Error,
	}
	if !rec.CreatedAt.IsZero() {
		dto.CreatedAt = rec.CreatedAt.UTC().Format(dateTimeFormat)
	}
	if !rec.UpdatedAt.IsZero() {
		dto.UpdatedAt = rec.UpdatedAt.UTC().Format(dateTimeFormat)
	}
	return dto
}

// FromRecords converts a slice of ledger records.
func FromRecords(records []ledger.Record) []LedgerRecord {
	out := make([]LedgerRecord, 0, len(records))
	for _, rec := range records {
		out = append(out, FromRecord(rec))
	}
	return out
}

func formatOptionalTime(t time.Time) *string {
	if t.IsZero() {
		return nil
	}
	value := t.UTC().Format(dateTimeFormat)
	return &value
}

func optionalString(value string) *string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return &value
}
