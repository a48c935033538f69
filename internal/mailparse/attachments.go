package mailparse

import (
	"fmt"
	"strings"
	"time"
)

var videoContentTypes = map[string]bool{
	"video/mp4":        true,
	"video/quicktime":  true,
	"video/x-msvideo":  true,
	"video/x-matroska": true,
	"video/webm":       true,
	"video/mpeg":       true,
	"video/3gpp":       true,
	"video/3gpp2":      true,
}

var videoExtensions = map[string]string{
	"quicktime":  "mov",
	"x-msvideo":  "avi",
	"x-matroska": "mkv",
	"3gpp":       "3gp",
	"3gpp2":      "3g2",
}

// VideoAttachment is a video part ready for upload.
type VideoAttachment struct {
	Filename    string
	ContentType string
	Data        []byte
	Size        int
}

// IsVideo reports whether contentType is treated as a video.
func IsVideo(contentType string) bool {
	contentType = strings.ToLower(strings.TrimSpace(contentType))
	return videoContentTypes[contentType] || strings.HasPrefix(contentType, "video/")
}

// ExtractVideoAttachments returns every non-empty video part. Parts without
// a filename get one derived from now and the content subtype.
func ExtractVideoAttachments(msg *Message, now time.Time) []VideoAttachment {
	if msg == nil {
		return nil
	}
	var out []VideoAttachment
	for _, part := range msg.Parts {
		if !IsVideo(part.ContentType) || len(part.Data) == 0 {
			continue
		}
		name := strings.TrimSpace(part.Filename)
		if name == "" {
			name = synthesizeFilename(part.ContentType, now)
		}
		out = append(out, VideoAttachment{
			Filename:    name,
			ContentType: part.ContentType,
			Data:        part.Data,
			Size:        len(part.Data),
		})
	}
	return out
}

func synthesizeFilename(contentType string, now time.Time) string {
	ext := contentType
	if idx := strings.LastIndex(contentType, "/"); idx >= 0 {
		ext = contentType[idx+1:]
	}
	if mapped, ok := videoExtensions[ext]; ok {
		ext = mapped
	}
	return fmt.Sprintf("video_%s.%s", now.Format("20060102_150405"), ext)
}
