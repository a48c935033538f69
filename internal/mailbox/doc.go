// Package mailbox reads submissions from the inbound IMAP folder.
//
// Sessions address messages by UID, fetch bodies with BODY.PEEK[] so reading
// never changes flags, and mark messages seen only when the caller decides
// the message is done.
package mailbox
