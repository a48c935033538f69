// Package archive keeps the raw RFC 822 bytes of every reserved submission so
// operators can replay a message after fixing whatever made it fail.
//
// Objects are written once under <prefix>/<YYYY/MM/DD>/<record-id>.eml to
// MinIO or Google Cloud Storage. Archiving is best-effort: callers log
// failures and carry on.
package archive
