// Package preflight provides readiness checks for the external services and
// filesystem paths liftmail depends on.
//
// These checks run in two contexts:
//   - The daemon logs RunAll results at startup so misconfiguration shows up
//     before the first poll tick fails.
//   - The CLI "liftmail doctor" command prints each result and exits non-zero
//     when any check fails.
//
// Each check is gated by its config toggle -- disabled features are skipped.
package preflight
