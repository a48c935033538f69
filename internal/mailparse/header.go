package mailparse

import (
	"io"
	"mime"
	"regexp"
	"strings"

	htmlcharset "golang.org/x/net/html/charset"
)

var wordDecoder = &mime.WordDecoder{
	CharsetReader: func(charset string, input io.Reader) (io.Reader, error) {
		return htmlcharset.NewReaderLabel(charset, input)
	},
}

var (
	angleAddrPattern = regexp.MustCompile(`<([^>]+)>`)
	bareAddrPattern  = regexp.MustCompile(`[\w.-]+@[\w.-]+\.\w+`)

	forwardedFromPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)From:\s*([^\n<]+<[^>]+>)`),
		regexp.MustCompile(`(?i)From:\s*([\w.-]+@[\w.-]+\.\w+)`),
	}
)

// DecodeHeader decodes RFC 2047 encoded words. Segments are joined with a
// single space; a word that cannot be decoded is kept as written.
func DecodeHeader(raw string) string {
	fields := strings.Fields(raw)
	if len(fields) == 0 {
		return ""
	}
	out := make([]string, 0, len(fields))
	for _, field := range fields {
		if strings.HasPrefix(field, "=?") && strings.HasSuffix(field, "?=") {
			if decoded, err := wordDecoder.Decode(field); err == nil {
				out = append(out, decoded)
				continue
			}
		}
		out = append(out, field)
	}
	return strings.Join(out, " ")
}

// ExtractEmail returns the lower-cased address in a From-style value.
func ExtractEmail(from string) string {
	if match := angleAddrPattern.FindStringSubmatch(from); match != nil {
		return strings.ToLower(strings.TrimSpace(match[1]))
	}
	if match := bareAddrPattern.FindString(from); match != "" {
		return strings.ToLower(match)
	}
	return strings.ToLower(strings.TrimSpace(from))
}

// ExtractOriginalSender looks for the From: line a mail client writes when
// forwarding. It returns forwarder when the body has none.
func ExtractOriginalSender(body, forwarder string) string {
	for _, pattern := range forwardedFromPatterns {
		if match := pattern.FindStringSubmatch(body); match != nil {
			if addr := ExtractEmail(match[1]); addr != "" {
				return addr
			}
		}
	}
	return forwarder
}
