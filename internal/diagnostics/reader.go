// Package diagnostics surfaces the tail of the database error log.
package diagnostics

import (
	"io"
	"os"
	"strings"

	"github.com/nrep-ug/mysql-monitor/pkg/logging"
)

const (
	// DefaultLines is how many log lines Tail returns.
	DefaultLines = 10

	// Placeholder is returned when the log cannot be read.
	Placeholder = "Could not read database error log. Check file permissions or path."

	// maxTailBytes caps how much of a large log is read from its end.
	maxTailBytes = 64 << 10
)

// Reader reads the last lines of one log file.
type Reader struct {
	path   string
	logger logging.Logger
}

// NewReader returns a Reader for the log at path.
func NewReader(path string, logger logging.Logger) *Reader {
	return &Reader{path: path, logger: logger}
}

// Path returns the log file location.
func (r *Reader) Path() string {
	return r.path
}

// Tail returns at most n trailing lines of the log, trimmed of surrounding
// whitespace. It never fails; an unreadable log yields Placeholder.
func (r *Reader) Tail(n int) string {
	if n <= 0 {
		n = DefaultLines
	}
	text, err := readTail(r.path, maxTailBytes)
	if err != nil {
		r.logger.WithError(err).WithField("path", r.path).Warn("Unable to read database error log")
		return Placeholder
	}

	lines := strings.Split(strings.TrimSpace(text), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}

func readTail(path string, limit int64) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", err
	}
	offset := int64(0)
	if info.Size() > limit {
		offset = info.Size() - limit
	}
	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		return "", err
	}
	data, err := io.ReadAll(f)
	if err != nil {
		return "", err
	}
	text := string(data)
	if offset > 0 {
		// Drop the partial first line.
		if i := strings.IndexByte(text, '\n'); i >= 0 {
			text = text[i+1:]
		}
	}
	return text, nil
}
