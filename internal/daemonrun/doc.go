// Package daemonrun wires configuration into a running liftmail process:
// logger, SQLite store and migrations, ledger backend, archive, upload and
// confirmation clients, ingest processor and mailbox poller.
package daemonrun
