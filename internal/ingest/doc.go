// Package ingest runs one inbound email through the submission pipeline.
//
// Processor.Process parses the raw message, drops auto-replies and its own
// confirmations, and claims the message in the ledger before any side effect.
// Only the claimant archives, parses the tag, resolves the athlete and
// competition, and uploads the video. The outcome is then written back to the
// ledger and the sender gets a confirmation.
//
// Process never returns an error for a single message. Failures are reported
// in Result with a Kind, and UserMessage turns a failure into the text that
// goes to the athlete. Only the poller decides what an Outcome means for the
// mailbox.
package ingest
