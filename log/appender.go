package log

// LogAppender is a destination for finished log lines. Implementations must be
// safe for concurrent use; the logger calls Write from whichever goroutine
// finished the event.
type LogAppender interface {
	// Write outputs one complete, newline-terminated log line.
	Write(buf []byte) (n int, err error)

	// Refresh flushes anything the appender buffers.
	Refresh() error

	// Close flushes and releases the destination.
	Close() error
}
