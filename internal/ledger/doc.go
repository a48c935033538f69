// Package ledger is the reservation store that makes message processing
// exactly-once across restarts and concurrent instances.
//
// A message is identified by a content fingerprint (and its Message-ID when
// present). Reserve claims a message atomically: the first caller gets a new
// processing record, later callers are told to skip unless the prior attempt
// failed or its processing claim went stale, in which case exactly one caller
// reclaims it. Finalize moves a record to succeeded or failed.
//
// Backends: SQLite (default), Redis (a Lua script makes the decision
// server-side) and Firestore (document create plus transactional reclaim).
package ledger
