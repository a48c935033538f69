// Package directory resolves who submitted a lift and which competition it
// belongs to.
//
// Users are matched by case-insensitive email and created on first contact.
// The unique email constraint settles concurrent creation: the loser re-reads
// the winner's row instead of failing. Enrollment links are idempotent.
package directory
