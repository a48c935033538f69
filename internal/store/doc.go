// Package store opens the shared SQLite database and applies its embedded
// schema migrations.
//
// The ledger and directory packages share one database file. Helpers here
// cover busy retries, unique-violation detection, and the fixed-width UTC
// timestamp format used for text comparison in SQL.
package store
