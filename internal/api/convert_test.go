package api_test

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"liftmail/internal/api"
	"liftmail/internal/ledger"
	"liftmail/internal/mailparse"
	"liftmail/internal/workflow"
)

func TestFromStatsDisabledEncodesNulls(t *testing.T) {
	health := api.FromStats(workflow.Stats{})
	if health.Status != api.StatusDisabled {
		t.Fatalf("expected disabled status, got %q", health.Status)
	}
	payload, err := json.Marshal(health)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	for _, want := range []string{`"last_check":null`, `"last_error":null`, `"processor_running":false`} {
		if !strings.Contains(string(payload), want) {
			t.Fatalf("expected %s in %s", want, payload)
		}
	}
}

func TestFromStatsHealthy(t *testing.T) {
	checked := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	health := api.FromStats(workflow.Stats{
		Enabled:              true,
		EmailsProcessedToday: 3,
		ErrorsToday:          1,
		LastCheck:            checked,
		LastError:            "connect mailbox: timeout",
		ProcessorRunning:     true,
	})
	if health.Status != api.StatusHealthy || !health.ProcessorRunning {
		t.Fatalf("unexpected health %+v", health)
	}
	if health.LastCheck == nil || *health.LastCheck != "2024-05-01T12:00:00.000Z" {
		t.Fatalf("unexpected last check %v", health.LastCheck)
	}
	if health.LastError == nil || *health.LastError != "connect mailbox: timeout" {
		t.Fatalf("unexpected last error %v", health.LastError)
	}
}

func TestFromCheckResultErrorsNeverNull(t *testing.T) {
	payload, err := json.Marshal(api.FromCheckResult(workflow.CheckResult{}))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(payload), `"errors":[]`) {
		t.Fatalf("expected empty errors array, got %s", payload)
	}
}

func TestParseTest(t *testing.T) {
	ok := api.ParseTest(nil, "t30g 185lbs squat")
	if !ok.Success || ok.Parsed == nil {
		t.Fatalf("expected success, got %+v", ok)
	}
	if ok.Parsed.LiftType != "Squat" || ok.Parsed.WeightKg != 83.91 {
		t.Fatalf("unexpected parse %+v", ok.Parsed)
	}

	miss := api.ParseTest(mailparse.NewTagParser("kw", ""), "t30g 100kg")
	if miss.Success || miss.Error != "No kw tag found" || miss.Input != "t30g 100kg" {
		t.Fatalf("unexpected miss %+v", miss)
	}
	payload, _ := json.Marshal(miss)
	if strings.Contains(string(payload), "parsed") {
		t.Fatalf("miss should omit parsed: %s", payload)
	}
}

func TestFromRecord(t *testing.T) {
	created := time.Date(2024, 5, 1, 12, 0, 0, 0, time.FixedZone("CEST", 2*3600))
	dto := api.FromRecord(ledger.Record{
		ID:          "rec-1",
		Fingerprint: "abc",
		Status:      ledger.StatusFailed,
		Attempts:    2,
		Error:       "no video attachment found",
		CreatedAt:   created,
	})
	if dto.Status != "failed" || dto.Attempts != 2 {
		t.Fatalf("unexpected record %+v", dto)
	}
	if dto.CreatedAt != "2024-05-01T10:00:00.000Z" || dto.UpdatedAt != "" {
		t.Fatalf("unexpected timestamps %+v", dto)
	}
	if got := api.FromRecords(nil); got == nil || len(got) != 0 {
		t.Fatalf("expected empty slice, got %v", got)
	}
}
