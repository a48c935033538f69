package logging

import (
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"
)

// newJSONHandler emits one object per line with a UTC "ts", a lower-case
// level, short source locations and durations in Go notation, so the lines
// stay greppable next to console output.
func newJSONHandler(w io.Writer, lvl *slog.LevelVar, addSource bool) slog.Handler {
	return slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level:       lvl,
		AddSource:   addSource,
		ReplaceAttr: replaceJSONAttr,
	})
}

func replaceJSONAttr(_ []string, attr slog.Attr) slog.Attr {
	value := attr.Value
	switch {
	case attr.Key == slog.TimeKey && value.Kind() == slog.KindTime:
		return slog.String("ts", value.Time().UTC().Format(time.RFC3339))
	case attr.Key == slog.LevelKey:
		return slog.String(attr.Key, strings.ToLower(value.String()))
	case attr.Key == slog.SourceKey:
		if src, ok := value.Any().(*slog.Source); ok && src != nil {
			return slog.String(attr.Key, fmt.Sprintf("%s:%d", filepath.Base(src.File), src.Line))
		}
	case value.Kind() == slog.KindDuration:
		return slog.String(attr.Key, value.Duration().String())
	}
	return attr
}
