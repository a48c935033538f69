package mailparse

import (
	"bytes"
	"strings"

	"golang.org/x/net/html"
)

// ExtractBody returns the message text. The first non-attachment text/plain
// part wins, then the first text/html part rendered as text.
func ExtractBody(msg *Message) string {
	if msg == nil || len(msg.Parts) == 0 {
		return ""
	}
	if !msg.Multipart && len(msg.Parts) == 1 {
		return string(msg.Parts[0].Data)
	}
	var htmlPart *Part
	for i := range msg.Parts {
		part := &msg.Parts[i]
		if part.IsAttachment() {
			continue
		}
		switch part.ContentType {
		case "text/plain":
			return string(part.Data)
		case "text/html":
			if htmlPart == nil {
				htmlPart = part
			}
		}
	}
	if htmlPart != nil {
		return HTMLToText(htmlPart.Data)
	}
	return ""
}

// HTMLToText drops markup, script and style content, and collapses whitespace.
func HTMLToText(src []byte) string {
	tokenizer := html.NewTokenizer(bytes.NewReader(src))
	var (
		b    strings.Builder
		skip int
	)
	for {
		switch tokenizer.Next() {
		case html.ErrorToken:
			return strings.Join(strings.Fields(b.String()), " ")
		case html.StartTagToken:
			name, _ := tokenizer.TagName()
			if isHiddenElement(string(name)) {
				skip++
			}
			b.WriteByte(' ')
		case html.EndTagToken:
			name, _ := tokenizer.TagName()
			if isHiddenElement(string(name)) && skip > 0 {
				skip--
			}
			b.WriteByte(' ')
		case html.SelfClosingTagToken:
			b.WriteByte(' ')
		case html.TextToken:
			if skip == 0 {
				b.Write(tokenizer.Text())
			}
		}
	}
}

func isHiddenElement(name string) bool {
	return name == "script" || name == "style"
}
