// Package main hosts the liftmail CLI entrypoint and command graph.
//
// The Cobra-based command tree runs the daemon, performs one-shot mailbox
// checks, replays archived messages, inspects the processing ledger, seeds
// competitions and scaffolds configuration. It centralizes configuration
// resolution, .env loading and logger setup so subcommands can focus on
// output instead of wiring.
//
// Keep this package lean: add new functionality by extending the internal
// packages first, then surface it through dedicated commands or flags here.
package main
