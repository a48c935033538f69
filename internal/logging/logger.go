package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// CurrentLogName is the pointer kept at the newest run log in the log directory.
const CurrentLogName = "liftmail.log"

// Options describes logger construction parameters.
type Options struct {
	Level  string
	Format string
	// Writer, when set, receives output in addition to OutputPaths.
	Writer      io.Writer
	OutputPaths []string
	Development bool
}

// New constructs a slog logger using the provided options.
func New(opts Options) (*slog.Logger, error) {
	level := parseLevel(opts.Level)
	levelVar := new(slog.LevelVar)
	levelVar.Set(level)

	writer, err := openWriters(opts.Writer, opts.OutputPaths)
	if err != nil {
		return nil, err
	}
	addSource := opts.Development || level <= slog.LevelDebug

	var handler slog.Handler
	switch format := strings.ToLower(strings.TrimSpace(opts.Format)); format {
	case "json":
		handler = newJSONHandler(writer, levelVar, addSource)
	case "", "console":
		handler = newConsoleHandler(writer, levelVar, addSource)
	default:
		return nil, fmt.Errorf("log format: unsupported value %q", opts.Format)
	}
	return slog.New(handler), nil
}

// RunLog names the log file of one daemon run.
type RunLog struct {
	Path    string
	Pointer string
}

// NewRunLog returns the per-run file liftmail-<started>.log in logDir.
func NewRunLog(logDir string, started time.Time) RunLog {
	name := fmt.Sprintf("liftmail-%s.log", started.UTC().Format("20060102T150405.000Z"))
	return RunLog{
		Path:    filepath.Join(logDir, name),
		Pointer: filepath.Join(logDir, CurrentLogName),
	}
}

// Publish points liftmail.log at the run file, preferring a symlink and
// falling back to a hard link where symlinks are unavailable.
func (r RunLog) Publish() error {
	if r.Path == "" || r.Pointer == "" {
		return nil
	}
	if err := os.Remove(r.Pointer); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove existing log pointer: %w", err)
	}
	if err := os.Symlink(r.Path, r.Pointer); err == nil {
		return nil
	}
	if err := os.Link(r.Path, r.Pointer); err != nil {
		return fmt.Errorf("link log pointer: %w", err)
	}
	return nil
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func openWriters(extra io.Writer, paths []string) (io.Writer, error) {
	var writers []io.Writer
	if extra != nil {
		writers = append(writers, extra)
	}
	seen := map[string]bool{}
	for _, path := range paths {
		trimmed := strings.TrimSpace(path)
		if trimmed == "" || seen[trimmed] {
			continue
		}
		seen[trimmed] = true

		switch trimmed {
		case "stdout":
			writers = append(writers, os.Stdout)
		case "stderr":
			writers = append(writers, os.Stderr)
		default:
			if err := os.MkdirAll(filepath.Dir(trimmed), 0o755); err != nil {
				return nil, fmt.Errorf("ensure log directory: %w", err)
			}
			file, err := os.OpenFile(trimmed, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
			if err != nil {
				return nil, fmt.Errorf("open log file %s: %w", trimmed, err)
			}
			writers = append(writers, file)
		}
	}

	switch len(writers) {
	case 0:
		return os.Stdout, nil
	case 1:
		return writers[0], nil
	default:
		return io.MultiWriter(writers...), nil
	}
}
