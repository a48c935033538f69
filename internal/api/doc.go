// Package api defines the wire-format types served by the operator HTTP API
// and printed by the CLI.
//
// # Key Types
//
// Health: poller counters and state for GET /email/health.
//
// CheckResponse: per-tick counts for POST /email/check and `liftmail check`.
//
// ParseTestResponse: dry-run tag parse for POST /email/test and `liftmail parse`.
//
// LedgerRecord: processing record rows for `liftmail ledger list --json`.
//
// # Design Notes
//
// DTOs use snake_case JSON tags to match the endpoint contract existing
// clients depend on. Timestamps use RFC3339 with milliseconds in UTC; absent
// timestamps and empty errors are encoded as null.
package api
