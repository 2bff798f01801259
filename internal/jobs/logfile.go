package jobs

import (
	"os"
	"strings"
	"sync"

	"github.com/pkg/errors"
)

// LogFile is an append-only report file. Writes from concurrent workers are
// serialized so entries never interleave.
type LogFile struct {
	mu   sync.Mutex
	path string
}

func NewLogFile(path string) *LogFile {
	return &LogFile{path: path}
}

func (l *LogFile) Path() string {
	return l.path
}

// Append writes each line followed by a newline in a single write.
func (l *LogFile) Append(lines ...string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return errors.Wrapf(err, "open %s", l.path)
	}
	defer f.Close()

	var b strings.Builder
	for _, line := range lines {
		b.WriteString(line)
		b.WriteByte('\n')
	}
	if _, err := f.WriteString(b.String()); err != nil {
		return errors.Wrapf(err, "write %s", l.path)
	}
	return nil
}
