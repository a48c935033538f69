package logs

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"liftmail/internal/logging"
)

// CurrentFileName is the pointer the daemon keeps at its newest run log.
const CurrentFileName = logging.CurrentLogName

const maxLineBytes = 1024 * 1024

// CurrentPath returns the path of the current-run log pointer in logDir.
func CurrentPath(logDir string) string {
	return filepath.Join(logDir, CurrentFileName)
}

// Last returns up to limit trailing lines of path and the end-of-file offset.
// A missing file yields no lines and offset zero.
func Last(path string, limit int, filter Filter) ([]string, int64, error) {
	file, err := open(path)
	if file == nil || err != nil {
		return nil, 0, err
	}
	defer file.Close()

	if limit <= 0 {
		end, err := file.Seek(0, io.SeekEnd)
		if err != nil {
			return nil, 0, fmt.Errorf("seek log file: %w", err)
		}
		return nil, end, nil
	}

	ring := make([]string, limit)
	count, next := 0, 0
	end, err := scan(file, func(line string) {
		if !filter.Match(line) {
			return
		}
		ring[next] = line
		next = (next + 1) % limit
		if count < limit {
			count++
		}
	})
	if err != nil {
		return nil, 0, err
	}

	lines := make([]string, count)
	start := 0
	if count == limit {
		start = next
	}
	for i := range count {
		lines[i] = ring[(start+i)%limit]
	}
	return lines, end, nil
}

// ReadFrom returns matching lines written after offset and the new offset.
// An offset past the end, as after a new run replaced the pointer, restarts
// from the beginning of the file.
func ReadFrom(path string, offset int64, filter Filter) ([]string, int64, error) {
	file, err := open(path)
	if file == nil || err != nil {
		return nil, 0, err
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, 0, fmt.Errorf("stat log file: %w", err)
	}
	if offset < 0 || offset > info.Size() {
		offset = 0
	}
	if _, err := file.Seek(offset, io.SeekStart); err != nil {
		return nil, 0, fmt.Errorf("seek log file: %w", err)
	}

	var lines []string
	end, err := scan(file, func(line string) {
		if filter.Match(line) {
			lines = append(lines, line)
		}
	})
	if err != nil {
		return nil, 0, err
	}
	return lines, end, nil
}

// Follow polls path every interval and hands new matching lines to emit until
// ctx is done. Cancellation is a clean stop and returns nil.
func Follow(ctx context.Context, path string, offset int64, interval time.Duration, filter Filter, emit func(string)) error {
	if interval <= 0 {
		interval = 250 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		lines, next, err := ReadFrom(path, offset, filter)
		if err != nil {
			return err
		}
		for _, line := range lines {
			emit(line)
		}
		offset = next

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func open(path string) (*os.File, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("open log file: %w", err)
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("stat log file: %w", err)
	}
	if info.IsDir() {
		file.Close()
		return nil, fmt.Errorf("log path %q is a directory", path)
	}
	return file, nil
}

// scan feeds complete lines to fn and returns the offset just past the last
// newline, so a line still being written is read again on the next call.
func scan(file *os.File, fn func(string)) (int64, error) {
	start, err := file.Seek(0, io.SeekCurrent)
	if err != nil {
		return 0, fmt.Errorf("determine log offset: %w", err)
	}
	reader := bufio.NewReaderSize(file, 64*1024)
	consumed := start
	for {
		line, err := reader.ReadString('\n')
		if len(line) > maxLineBytes {
			return 0, fmt.Errorf("read log file: line exceeds %d bytes", maxLineBytes)
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return consumed, nil
			}
			return 0, fmt.Errorf("read log file: %w", err)
		}
		consumed += int64(len(line))
		fn(line[:len(line)-1])
	}
}
