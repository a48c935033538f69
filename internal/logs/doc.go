// Package logs reads the daemon's log files for the CLI.
//
// The daemon writes one file per run and points liftmail.log at the newest
// one. Last reads the final lines of that file, ReadFrom continues from a byte
// offset, and Follow polls for appended lines until its context ends. Filter
// narrows output to one component or message UID for both console and JSON
// log formats.
package logs
