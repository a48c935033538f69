package guard_test

import (
	"net/textproto"
	"testing"

	"liftmail/internal/guard"
)

type headers map[string]string

func (h headers) Get(key string) string {
	return h[textproto.CanonicalMIMEHeaderKey(key)]
}

func TestShouldSkip(t *testing.T) {
	const mailbox = "uploads@example.com"
	tests := []struct {
		name    string
		headers headers
		sender  string
		subject string
		skip    bool
	}{
		{name: "marker header", headers: headers{"X-App-Email": "Confirmation"}, sender: "a@b.com", subject: "t30g 100", skip: true},
		{name: "other marker value", headers: headers{"X-App-Email": "digest"}, sender: "a@b.com"},
		{name: "auto submitted", headers: headers{"Auto-Submitted": "auto-replied"}, sender: "a@b.com", skip: true},
		{name: "auto submitted no", headers: headers{"Auto-Submitted": "no"}, sender: "a@b.com"},
		{name: "precedence bulk", headers: headers{"Precedence": "Bulk"}, sender: "a@b.com", skip: true},
		{name: "precedence first-class", headers: headers{"Precedence": "first-class"}, sender: "a@b.com"},
		{name: "self confirmation", headers: headers{}, sender: "Uploads@Example.com", subject: "✅ Tom's Gym - Video Uploaded Successfully", skip: true},
		{name: "self failure", headers: headers{}, sender: mailbox, subject: "❌ Tom's Gym - Upload Failed", skip: true},
		{name: "self forward", headers: headers{}, sender: mailbox, subject: "Fwd: t30g 100 squat"},
		{name: "ordinary", headers: headers{}, sender: "athlete@example.com", subject: "Upload Failed?"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := guard.ShouldSkip(tt.headers, tt.sender, tt.subject, mailbox)
			if got.Skip != tt.skip {
				t.Fatalf("ShouldSkip = %+v, want skip=%v", got, tt.skip)
			}
			if got.Skip && got.Reason == "" {
				t.Fatal("expected a reason for skipped message")
			}
		})
	}
}
