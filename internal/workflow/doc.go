// Package workflow drives the mailbox poller.
//
// A Manager owns the background ticker loop, the manual single-tick entry
// point used by the operator API and CLI, and the daily counters reported by
// the health endpoint. Each tick dials the mailbox, processes every unseen
// message sequentially through the ingest processor, and marks a message seen
// only when it succeeded or was skipped. Tick-level failures are recorded and
// the loop keeps going on the next interval.
package workflow
