// Package guard recognizes mail the pipeline must never ingest: its own
// confirmations and other machine-generated messages.
package guard

import "strings"

const (
	// MarkerHeader tags every confirmation the notifier sends.
	MarkerHeader = "X-App-Email"
	// MarkerValue is the MarkerHeader value carried by confirmations.
	MarkerValue = "confirmation"

	// SuccessSubjectMarker and FailureSubjectMarker appear in confirmation subjects.
	SuccessSubjectMarker = "Video Uploaded Successfully"
	FailureSubjectMarker = "Upload Failed"
)

var subjectMarkers = []string{SuccessSubjectMarker, FailureSubjectMarker}

var bulkPrecedence = map[string]bool{
	"auto_reply": true,
	"bulk":       true,
	"junk":       true,
	"list":       true,
}

// Headers is the read-only header view the guard needs.
type Headers interface {
	Get(key string) string
}

// Decision is the result of ShouldSkip.
type Decision struct {
	Skip   bool
	Reason string
}

// ShouldSkip decides whether a message is machine-generated or one of our
// own confirmations. sender and mailbox are compared case-insensitively.
func ShouldSkip(h Headers, sender, subject, mailbox string) Decision {
	if strings.EqualFold(strings.TrimSpace(h.Get(MarkerHeader)), MarkerValue) {
		return Decision{Skip: true, Reason: "confirmation marker header"}
	}
	if auto := strings.TrimSpace(h.Get("Auto-Submitted")); auto != "" && !strings.EqualFold(auto, "no") {
		return Decision{Skip: true, Reason: "auto-submitted: " + auto}
	}
	if precedence := strings.ToLower(strings.TrimSpace(h.Get("Precedence"))); bulkPrecedence[precedence] {
		return Decision{Skip: true, Reason: "precedence: " + precedence}
	}
	mailbox = strings.TrimSpace(mailbox)
	if mailbox != "" && strings.EqualFold(strings.TrimSpace(sender), mailbox) {
		for _, marker := range subjectMarkers {
			if strings.Contains(subject, marker) {
				return Decision{Skip: true, Reason: "self-sent confirmation"}
			}
		}
	}
	return Decision{}
}
