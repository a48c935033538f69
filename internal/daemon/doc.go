// Package daemon coordinates the long-running liftmail process.
//
// It wires configuration, the mailbox poller and the operator HTTP API into a
// single lifecycle with flock-based locking so only one daemon runs against a
// data directory. Additional instances on other hosts are safe because the
// ledger enforces exactly-once processing; the lock only guards against
// accidentally starting two daemons on one machine.
//
// Keep orchestration logic here: message handling lives in ingest and the
// poll loop in workflow, while the daemon focuses on startup, shutdown and
// the /email/* endpoints.
package daemon
