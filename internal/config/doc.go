// Package config loads, normalizes, and validates liftmail configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours the EMAIL_* environment variables
// used by existing deployments. The Config type centralizes every knob the
// daemon and CLI need so mailbox credentials, ledger backends, and archive
// targets are discovered in one pass.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
