// Package notifications sends confirmation emails back to athletes after a
// submission has been processed.
//
// Messages are composed as plain text with go-message and carry the marker
// headers the guard package recognizes, so the mailbox never ingests its own
// replies. The default transport speaks SMTP with STARTTLS and PLAIN auth; the
// service degrades to a no-op when confirmations are disabled or credentials
// are missing.
//
// Workflow code depends only on the Service interface.
package notifications
