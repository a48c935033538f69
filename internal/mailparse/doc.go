// Package mailparse extracts submission data from raw inbound email.
//
// Everything here is pure: bytes or text in, values out. Parse reads the MIME
// tree once; the Extract helpers then pick the text body, the forwarded
// sender and any video attachments, and ParseTag reads the weight/lift
// directive athletes type into their chat message.
package mailparse
