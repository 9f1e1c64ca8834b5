package log

import (
	"io"
	"os"
	"sync"
)

// ConsoleAppender writes log lines to a terminal stream. It defaults to
// stderr: stdout belongs to the interactive prompt.
type ConsoleAppender struct {
	mu  sync.Mutex
	out io.Writer
}

// NewConsoleAppender returns an appender writing to os.Stderr.
func NewConsoleAppender() *ConsoleAppender {
	return &ConsoleAppender{out: os.Stderr}
}

// NewWriterAppender returns an appender writing to w. Writes are serialized
// so lines from concurrent goroutines never interleave.
func NewWriterAppender(w io.Writer) *ConsoleAppender {
	return &ConsoleAppender{out: w}
}

// Write writes one line.
func (ca *ConsoleAppender) Write(buf []byte) (int, error) {
	ca.mu.Lock()
	defer ca.mu.Unlock()
	return ca.out.Write(buf)
}

// Refresh is a no-op; writes are unbuffered.
func (ca *ConsoleAppender) Refresh() error {
	return nil
}

// Close is a no-op; the stream is not owned by the appender.
func (ca *ConsoleAppender) Close() error {
	return nil
}
