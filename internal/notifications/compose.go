package notifications

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	gomail "github.com/emersion/go-message/mail"

	"liftmail/internal/guard"
)

// Copy holds the branding used in confirmation subjects and bodies.
type Copy struct {
	Brand       string
	FrontendURL string
	TagKeyword  string
}

// Success returns the subject and body for an accepted submission.
func (c Copy) Success(d Details) (string, string) {
	subject := fmt.Sprintf("✅ %s - %s", c.brand(), guard.SuccessSubjectMarker)

	var b strings.Builder
	fmt.Fprintf(&b, "Your video has been uploaded to %s!\n\n", c.brand())
	b.WriteString("Details:\n")
	fmt.Fprintf(&b, "- Weight: %s kg\n", formatWeight(d.WeightKg))
	fmt.Fprintf(&b, "- Lift Type: %s\n", orNA(d.LiftType))
	fmt.Fprintf(&b, "- Attempt ID: %s\n", orNA(d.AttemptID))
	if url := strings.TrimSpace(d.VideoURL); url != "" {
		fmt.Fprintf(&b, "\n🎬 Watch your video:\n%s\n", url)
	}
	if link := c.attemptLink(d.AttemptID); link != "" {
		fmt.Fprintf(&b, "\nView your lift in the app: %s\n", link)
	}
	b.WriteString("\nThanks for sharing your lift! 💪\n")
	return subject, b.String()
}

// Failure returns the subject and body for a rejected submission.
func (c Copy) Failure(cause string) (string, string) {
	subject := fmt.Sprintf("❌ %s - %s", c.brand(), guard.FailureSubjectMarker)
	cause = strings.TrimSpace(cause)
	if cause == "" {
		cause = "Unknown error"
	}
	keyword := strings.TrimSpace(c.TagKeyword)
	if keyword == "" {
		keyword = "t30g"
	}

	var b strings.Builder
	b.WriteString("We couldn't process your video upload.\n\n")
	fmt.Fprintf(&b, "Error: %s\n\n", cause)
	b.WriteString("Please check:\n")
	fmt.Fprintf(&b, "1. Your message contains the %q tag with weight (e.g., \"%s 185kg Squat\")\n", keyword, keyword)
	b.WriteString("2. A video file is attached\n")
	fmt.Fprintf(&b, "3. You're registered at %s with this email address\n\n", c.brand())
	b.WriteString("If the problem persists, try forwarding the message again or contact support.\n")
	return subject, b.String()
}

func (c Copy) brand() string {
	if brand := strings.TrimSpace(c.Brand); brand != "" {
		return brand
	}
	return "liftmail"
}

func (c Copy) attemptLink(attemptID string) string {
	base := strings.TrimRight(strings.TrimSpace(c.FrontendURL), "/")
	if base == "" {
		return ""
	}
	if attemptID = strings.TrimSpace(attemptID); attemptID == "" {
		return base
	}
	return base + "/attempts/" + attemptID
}

func formatWeight(kg float64) string {
	if kg <= 0 {
		return "N/A"
	}
	return strconv.FormatFloat(kg, 'f', -1, 64)
}

func orNA(v string) string {
	if strings.TrimSpace(v) == "" {
		return "N/A"
	}
	return v
}

// Envelope is a single plain-text confirmation.
type Envelope struct {
	From    string
	To      string
	Subject string
	Body    string
	Date    time.Time
}

// Compose renders env as RFC 822 bytes. Every message carries the guard
// marker and Auto-Submitted headers.
func Compose(env Envelope) ([]byte, error) {
	from, err := gomail.ParseAddress(env.From)
	if err != nil {
		return nil, fmt.Errorf("parse sender %q: %w", env.From, err)
	}
	to, err := gomail.ParseAddress(env.To)
	if err != nil {
		return nil, fmt.Errorf("parse recipient %q: %w", env.To, err)
	}

	var h gomail.Header
	date := env.Date
	if date.IsZero() {
		date = time.Now()
	}
	h.SetDate(date)
	h.SetAddressList("From", []*gomail.Address{from})
	h.SetAddressList("To", []*gomail.Address{to})
	h.SetSubject(env.Subject)
	if err := h.GenerateMessageID(); err != nil {
		return nil, fmt.Errorf("generate message id: %w", err)
	}
	h.Set(guard.MarkerHeader, guard.MarkerValue)
	h.Set("Auto-Submitted", "auto-generated")
	h.Set("Content-Type", "text/plain; charset=utf-8")

	var buf bytes.Buffer
	w, err := gomail.CreateSingleInlineWriter(&buf, h)
	if err != nil {
		return nil, fmt.Errorf("create message writer: %w", err)
	}
	if _, err := io.WriteString(w, env.Body); err != nil {
		return nil, fmt.Errorf("write message body: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("close message: %w", err)
	}
	return buf.Bytes(), nil
}
