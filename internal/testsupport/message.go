package testsupport

import (
	"bytes"
	"io"
	"testing"
	"time"

	gomail "github.com/emersion/go-message/mail"
)

// Video is an attachment for BuildMessage.
type Video struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Message describes an inbound email for BuildMessage.
type Message struct {
	FromName  string
	From      string
	To        string
	Subject   string
	Date      time.Time
	MessageID string // without angle brackets
	Body      string
	Headers   map[string]string
	Videos    []Video
}

// BuildMessage renders m as RFC 822 bytes with a text part and one
// attachment per video.
func BuildMessage(t testing.TB, m Message) []byte {
	t.Helper()

	var h gomail.Header
	date := m.Date
	if date.IsZero() {
		date = time.Date(2024, 4, 1, 10, 0, 0, 0, time.UTC)
	}
	h.SetDate(date)
	h.SetAddressList("From", []*gomail.Address{{Name: m.FromName, Address: m.From}})
	to := m.To
	if to == "" {
		to = "uploads@example.com"
	}
	h.SetAddressList("To", []*gomail.Address{{Address: to}})
	h.SetSubject(m.Subject)
	if m.MessageID != "" {
		h.SetMessageID(m.MessageID)
	}
	for key, value := range m.Headers {
		h.Set(key, value)
	}

	var buf bytes.Buffer
	mw, err := gomail.CreateWriter(&buf, h)
	if err != nil {
		t.Fatalf("create message writer: %v", err)
	}

	var th gomail.InlineHeader
	th.Set("Content-Type", "text/plain; charset=utf-8")
	tw, err := mw.CreateSingleInline(th)
	if err != nil {
		t.Fatalf("create text part: %v", err)
	}
	if _, err := io.WriteString(tw, m.Body); err != nil {
		t.Fatalf("write text part: %v", err)
	}
	if err := tw.Close(); err != nil {
		t.Fatalf("close text part: %v", err)
	}

	for _, video := range m.Videos {
		var ah gomail.AttachmentHeader
		contentType := video.ContentType
		if contentType == "" {
			contentType = "video/mp4"
		}
		ah.Set("Content-Type", contentType)
		if video.Filename != "" {
			ah.SetFilename(video.Filename)
		}
		aw, err := mw.CreateAttachment(ah)
		if err != nil {
			t.Fatalf("create attachment: %v", err)
		}
		if _, err := aw.Write(video.Data); err != nil {
			t.Fatalf("write attachment: %v", err)
		}
		if err := aw.Close(); err != nil {
			t.Fatalf("close attachment: %v", err)
		}
	}

	if err := mw.Close(); err != nil {
		t.Fatalf("close message: %v", err)
	}
	return buf.Bytes()
}
