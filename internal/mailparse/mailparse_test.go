package mailparse_test

import (
	"errors"
	"strings"
	"testing"
	"time"

	"liftmail/internal/mailparse"
)

func crlf(s string) []byte {
	return []byte(strings.ReplaceAll(s, "\n", "\r\n"))
}

const forwardedMessage = `From: Forwarder <Fwd@Example.com>
To: uploads@example.com
Subject: =?UTF-8?B?RndkOiBsaWZ0?=
Date: Mon, 01 Apr 2024 10:00:00 +0000
Message-ID: <abc@example.com>
MIME-Version: 1.0
Content-Type: multipart/mixed; boundary="XYZ"

--XYZ
Content-Type: text/plain; charset=utf-8

---------- Forwarded message ---------
From: Jane Doe <Jane.Doe@Example.com>

Just hit a PR! t30g 185kg squat
--XYZ
Content-Type: image/png
Content-Disposition: attachment; filename="thumb.png"
Content-Transfer-Encoding: base64

AAAA
--XYZ
Content-Type: video/quicktime
Content-Disposition: attachment
Content-Transfer-Encoding: base64

AAAA
--XYZ
Content-Type: video/mp4; name="second.mp4"
Content-Transfer-Encoding: base64

AAAAAA==
--XYZ--
`

func TestParseTagTable(t *testing.T) {
	tests := []struct {
		input  string
		weight float64
		lift   string
		none   bool
	}{
		{input: "t30g 185kg Squat", weight: 185, lift: "Squat"},
		{input: "t30g 315lbs Deadlift", weight: 142.88, lift: "Deadlift"},
		{input: "t30g 100", weight: 100, lift: "Snatch"},
		{input: "no tag here", none: true},
		{input: "Just hit a PR! t30g 200kg dl 💪", weight: 200, lift: "Deadlift"},
		{input: "T30G 100 lbs bench", weight: 45.36, lift: "Bench"},
		{input: "t30g 82.5 c&j", weight: 82.5, lift: "Clean"},
		{input: "t30g 60 pounds ohp", weight: 27.22, lift: "Overhead"},
		{input: "t30g 100 zercher", weight: 100, lift: "Snatch"},
		{input: "xt30g 100 squat", none: true},
	}
	for _, tt := range tests {
		got := mailparse.ParseTag(tt.input)
		if tt.none {
			if got != nil {
				t.Fatalf("ParseTag(%q) = %+v, want nil", tt.input, got)
			}
			continue
		}
		if got == nil {
			t.Fatalf("ParseTag(%q) = nil", tt.input)
		}
		if got.WeightKg != tt.weight || got.LiftType != tt.lift {
			t.Fatalf("ParseTag(%q) = %+v, want %v %s", tt.input, got, tt.weight, tt.lift)
		}
		if got.RawText != tt.input {
			t.Fatalf("expected raw text to be the input, got %q", got.RawText)
		}
	}
}

func TestTagParserCustomKeywordAndDefault(t *testing.T) {
	parser := mailparse.NewTagParser("lift", "sq")
	got := parser.Parse("lift 90")
	if got == nil || got.WeightKg != 90 || got.LiftType != "Squat" {
		t.Fatalf("unexpected parse %+v", got)
	}
	if parser.Parse("t30g 90") != nil {
		t.Fatal("expected default keyword to be ignored by custom parser")
	}
}

func TestDecodeHeader(t *testing.T) {
	tests := map[string]string{
		"=?UTF-8?B?SGVsbG8=?= =?UTF-8?Q?W=C3=B6rld?=": "Hello Wörld",
		"  plain   text ": "plain text",
		"=?bogus?=":       "=?bogus?=",
		"":                "",
	}
	for input, want := range tests {
		if got := mailparse.DecodeHeader(input); got != want {
			t.Fatalf("DecodeHeader(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestExtractEmail(t *testing.T) {
	tests := map[string]string{
		"John Smith <John@Example.com>": "john@example.com",
		"reach me at Bob.B@Mail.org ok": "bob.b@mail.org",
		"Not An Address":                "not an address",
	}
	for input, want := range tests {
		if got := mailparse.ExtractEmail(input); got != want {
			t.Fatalf("ExtractEmail(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestExtractOriginalSender(t *testing.T) {
	if got := mailparse.ExtractOriginalSender("fwd\nfrom: Jane <Jane@Example.com>\n", "f@x.com"); got != "jane@example.com" {
		t.Fatalf("angle form: got %q", got)
	}
	if got := mailparse.ExtractOriginalSender("From: bob@example.org\nhi", "f@x.com"); got != "bob@example.org" {
		t.Fatalf("bare form: got %q", got)
	}
	if got := mailparse.ExtractOriginalSender("t30g 100", "f@x.com"); got != "f@x.com" {
		t.Fatalf("fallback: got %q", got)
	}
}

func TestParseForwardedMultipart(t *testing.T) {
	msg, err := mailparse.Parse(crlf(forwardedMessage))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if msg.Sender != "fwd@example.com" || msg.Subject != "Fwd: lift" || msg.MessageID != "abc@example.com" {
		t.Fatalf("unexpected headers %+v", msg)
	}
	if msg.Date != "Mon, 01 Apr 2024 10:00:00 +0000" {
		t.Fatalf("expected raw date, got %q", msg.Date)
	}
	if msg.Get("To") != "uploads@example.com" {
		t.Fatalf("Get(To) = %q", msg.Get("To"))
	}

	body := mailparse.ExtractBody(msg)
	if !strings.Contains(body, "t30g 185kg squat") {
		t.Fatalf("unexpected body %q", body)
	}
	if got := mailparse.ExtractOriginalSender(body, msg.Sender); got != "jane.doe@example.com" {
		t.Fatalf("original sender = %q", got)
	}

	now := time.Date(2024, 4, 1, 10, 0, 5, 0, time.UTC)
	videos := mailparse.ExtractVideoAttachments(msg, now)
	if len(videos) != 2 {
		t.Fatalf("expected 2 videos, got %d", len(videos))
	}
	if videos[0].Filename != "video_20240401_100005.mov" || videos[0].Size != 3 || videos[0].ContentType != "video/quicktime" {
		t.Fatalf("unexpected first video %+v", videos[0])
	}
	if videos[1].Filename != "second.mp4" || videos[1].Size != 4 {
		t.Fatalf("unexpected second video %+v", videos[1])
	}
}

func TestExtractBodyFallsBackToHTML(t *testing.T) {
	raw := `From: a@example.com
Subject: html only
MIME-Version: 1.0
Content-Type: multipart/alternative; boundary="B"

--B
Content-Type: text/html; charset=utf-8

<html><head><style>p { color: red }</style></head><body><p>t30g   100kg  <b>dl</b></p><script>track()</script></body></html>
--B--
`
	msg, err := mailparse.Parse(crlf(raw))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got := mailparse.ExtractBody(msg); got != "t30g 100kg dl" {
		t.Fatalf("ExtractBody = %q", got)
	}
}

func TestExtractBodySinglePart(t *testing.T) {
	raw := "From: a@example.com\nSubject: s\nContent-Type: text/plain; charset=iso-8859-1\nContent-Transfer-Encoding: quoted-printable\n\nt30g 100 caf=E9\n"
	msg, err := mailparse.Parse(crlf(raw))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got := mailparse.ExtractBody(msg); !strings.Contains(got, "t30g 100 café") {
		t.Fatalf("ExtractBody = %q", got)
	}
}

func TestEncodedAttachmentFilename(t *testing.T) {
	raw := `From: a@example.com
Subject: clip
MIME-Version: 1.0
Content-Type: multipart/mixed; boundary="B"

--B
Content-Type: video/mp4
Content-Disposition: attachment; filename="=?UTF-8?Q?lift_clip.mp4?="
Content-Transfer-Encoding: base64

AAAA
--B--
`
	msg, err := mailparse.Parse(crlf(raw))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	videos := mailparse.ExtractVideoAttachments(msg, time.Now())
	if len(videos) != 1 || videos[0].Filename != "lift clip.mp4" {
		t.Fatalf("unexpected videos %+v", videos)
	}
}

func TestParseRejectsMalformed(t *testing.T) {
	if _, err := mailparse.Parse(nil); !errors.Is(err, mailparse.ErrMalformed) {
		t.Fatalf("expected ErrMalformed for empty input, got %v", err)
	}
	if _, err := mailparse.Parse(crlf("Subject: no sender\n\nbody\n")); !errors.Is(err, mailparse.ErrMalformed) {
		t.Fatalf("expected ErrMalformed without From, got %v", err)
	}
}

func TestIsVideo(t *testing.T) {
	if !mailparse.IsVideo("Video/MP4") || !mailparse.IsVideo("video/ogg") || mailparse.IsVideo("image/png") {
		t.Fatal("IsVideo mismatch")
	}
}
