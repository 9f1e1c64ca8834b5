package shipper

import (
	"bytes"

	"github.com/linchenxuan/logship/log"
)

// Appender lets a log.Logger ship its lines: each line becomes one event.
// Closing the appender does not close the shipper.
type Appender struct {
	s *Shipper
}

var _ log.LogAppender = (*Appender)(nil)

// NewAppender returns an appender writing into s. s must not use a logger
// that has this appender, or its own diagnostics would loop back into it.
func NewAppender(s *Shipper) *Appender {
	return &Appender{s: s}
}

// Write queues one line, without its trailing newline.
func (a *Appender) Write(buf []byte) (int, error) {
	line := bytes.TrimRight(buf, "\r\n")
	if err := a.s.Log(string(line)); err != nil {
		return 0, err
	}
	return len(buf), nil
}

func (a *Appender) Refresh() error {
	return nil
}

func (a *Appender) Close() error {
	return nil
}
