// Package wire frames log events into syslog-style messages.
package wire

// _maxRetainedCap is the largest backing array a Buffer keeps across resets.
const _maxRetainedCap = 64 << 10

// Buffer accumulates one outgoing frame. It is reused for every message and
// is not safe for concurrent use.
type Buffer struct {
	b []byte
}

// NewBuffer returns a buffer with the given initial capacity.
func NewBuffer(capacity int) *Buffer {
	return &Buffer{b: make([]byte, 0, capacity)}
}

// Append appends raw bytes.
func (b *Buffer) Append(p []byte) {
	b.b = append(b.b, p...)
}

// AppendString appends the bytes of s.
func (b *Buffer) AppendString(s string) {
	b.b = append(b.b, s...)
}

// AppendByte appends one byte.
func (b *Buffer) AppendByte(c byte) {
	b.b = append(b.b, c)
}

// Reset empties the buffer. A backing array grown past _maxRetainedCap by an
// oversized message is released.
func (b *Buffer) Reset() {
	if cap(b.b) > _maxRetainedCap {
		b.b = nil
		return
	}
	b.b = b.b[:0]
}

// Bytes returns the accumulated bytes. The slice is only valid until the next
// mutation of the buffer.
func (b *Buffer) Bytes() []byte {
	return b.b
}

// Len returns the number of accumulated bytes.
func (b *Buffer) Len() int {
	return len(b.b)
}

// Cap returns the capacity of the backing array.
func (b *Buffer) Cap() int {
	return cap(b.b)
}
