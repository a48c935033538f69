package mailparse

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	gomessage "github.com/emersion/go-message"
	gomail "github.com/emersion/go-message/mail"
	htmlcharset "golang.org/x/net/html/charset"
)

func init() {
	gomessage.CharsetReader = func(charset string, input io.Reader) (io.Reader, error) {
		return htmlcharset.NewReaderLabel(charset, input)
	}
}

// ErrMalformed is returned when a message cannot be read as RFC 5322 mail.
var ErrMalformed = errors.New("malformed message")

// Part is one leaf of the MIME tree with its transfer encoding and charset decoded.
type Part struct {
	ContentType string
	Disposition string
	Filename    string
	Data        []byte
}

// IsAttachment reports whether the part was explicitly marked as an attachment.
func (p Part) IsAttachment() bool {
	return p.Disposition == "attachment"
}

// Message is a parsed inbound email.
type Message struct {
	Header    gomail.Header
	From      string
	Sender    string
	Subject   string
	Date      string
	MessageID string
	Multipart bool
	Parts     []Part
}

// Get returns the first value of the named header.
func (m *Message) Get(key string) string {
	if m == nil {
		return ""
	}
	return m.Header.Get(key)
}

// Parse reads raw RFC 822 bytes into a Message. A message without a sender
// address is treated as malformed.
func Parse(raw []byte) (*Message, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, fmt.Errorf("%w: empty input", ErrMalformed)
	}
	reader, err := gomail.CreateReader(bytes.NewReader(raw))
	if err != nil && !gomessage.IsUnknownCharset(err) {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	defer reader.Close()

	msg := &Message{
		Header:    reader.Header,
		From:      DecodeHeader(reader.Header.Get("From")),
		Date:      strings.TrimSpace(reader.Header.Get("Date")),
		MessageID: normalizeMessageID(reader.Header.Get("Message-Id")),
	}
	if subject, err := reader.Header.Subject(); err == nil {
		msg.Subject = strings.TrimSpace(subject)
	} else {
		msg.Subject = DecodeHeader(reader.Header.Get("Subject"))
	}
	if list, err := reader.Header.AddressList("From"); err == nil && len(list) > 0 {
		msg.Sender = strings.ToLower(strings.TrimSpace(list[0].Address))
	} else {
		msg.Sender = ExtractEmail(msg.From)
	}
	if msg.Sender == "" {
		return nil, fmt.Errorf("%w: missing From header", ErrMalformed)
	}
	if mediaType, _, err := reader.Header.ContentType(); err == nil {
		msg.Multipart = strings.HasPrefix(strings.ToLower(mediaType), "multipart/")
	}

	for {
		part, err := reader.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil && !gomessage.IsUnknownCharset(err) {
			return nil, fmt.Errorf("%w: read part: %v", ErrMalformed, err)
		}
		if part == nil {
			continue
		}
		p, err := readPart(part)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		msg.Parts = append(msg.Parts, p)
	}
	return msg, nil
}

func readPart(part *gomail.Part) (Part, error) {
	var header gomessage.Header
	switch h := part.Header.(type) {
	case *gomail.InlineHeader:
		header = h.Header
	case *gomail.AttachmentHeader:
		header = h.Header
	}
	p := Part{ContentType: mediaType(&header)}
	if disp, _, err := header.ContentDisposition(); err == nil {
		p.Disposition = strings.ToLower(disp)
	}
	attachment := gomail.AttachmentHeader{Header: header}
	if name, err := attachment.Filename(); err == nil {
		p.Filename = DecodeHeader(name)
	}
	if part.Body != nil {
		data, err := io.ReadAll(part.Body)
		if err != nil {
			return Part{}, fmt.Errorf("read %s body: %w", p.ContentType, err)
		}
		p.Data = data
	}
	return p, nil
}

func mediaType(header *gomessage.Header) string {
	mt, _, err := header.ContentType()
	mt = strings.ToLower(strings.TrimSpace(mt))
	if err != nil || mt == "" {
		return "text/plain"
	}
	return mt
}

func normalizeMessageID(value string) string {
	value = strings.TrimSpace(value)
	value = strings.TrimPrefix(value, "<")
	value = strings.TrimSuffix(value, ">")
	return strings.TrimSpace(value)
}
