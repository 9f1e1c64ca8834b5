package wire

import (
	"strconv"
	"time"
)

// TimestampLayout is the frame timestamp: ISO-8601 with microseconds and a
// numeric zone offset.
const TimestampLayout = "2006-01-02T15:04:05.000000-07:00"

// BOM is the UTF-8 byte order mark written in front of the message text.
var BOM = []byte{0xEF, 0xBB, 0xBF}

// BuilderOption configures a Builder.
type BuilderOption func(*Builder)

// WithNow replaces the clock used for frame timestamps.
func WithNow(now func() time.Time) BuilderOption {
	return func(b *Builder) {
		b.now = now
	}
}

// Builder renders event text into an RFC 5424 shaped frame:
//
//	<PRI>VERSION TIMESTAMP HOST APP PROCID MSGID BOM MSG
//
// Everything except the timestamp and the text is fixed by the Header, so
// NewBuilder renders it once and Build only appends the timestamp and the
// text into a reused Buffer. Building a frame allocates nothing once the
// buffer has grown to fit.
//
// The timestamp is taken when Build runs, i.e. at send time, with
// microsecond precision and a numeric zone offset. The text is written
// verbatim: control bytes and newlines are not escaped, so a collector that
// splits on newlines will see a multi-line event as several messages.
//
// A Builder is safe for concurrent use; the Buffer passed to Build is not.
type Builder struct {
	// prefix is "<PRI>VERSION " and suffix is " HOST APP PROCID MSGID " + BOM.
	prefix []byte
	suffix []byte
	now    func() time.Time
}

// NewBuilder precomputes the fixed parts of the frame from h.
func NewBuilder(h Header, opts ...BuilderOption) *Builder {
	b := &Builder{now: time.Now}
	for _, opt := range opts {
		opt(b)
	}

	b.prefix = append(b.prefix, '<')
	b.prefix = strconv.AppendInt(b.prefix, int64(h.Priority), 10)
	b.prefix = append(b.prefix, '>')
	b.prefix = strconv.AppendInt(b.prefix, int64(h.Version), 10)
	b.prefix = append(b.prefix, ' ')

	for _, f := range []struct {
		v   string
		max int
	}{
		{h.Hostname, _maxHostname},
		{h.AppName, _maxAppName},
		{h.ProcID, _maxProcID},
		{h.MsgID, _maxMsgID},
	} {
		b.suffix = append(b.suffix, ' ')
		b.suffix = append(b.suffix, sanitizeField(f.v, f.max)...)
	}
	b.suffix = append(b.suffix, ' ')
	b.suffix = append(b.suffix, BOM...)
	return b
}

// Build resets buf and writes the frame for text into it, stamped with the
// current time. The returned slice aliases buf.
func (b *Builder) Build(buf *Buffer, text string) []byte {
	buf.Reset()
	buf.Append(b.prefix)
	buf.b = b.now().AppendFormat(buf.b, TimestampLayout)
	buf.Append(b.suffix)
	buf.AppendString(text)
	return buf.Bytes()
}

// Payload returns the message text of a frame produced by a Builder: the
// bytes after the first BOM. ok is false when frame has no BOM.
func Payload(frame []byte) (text []byte, ok bool) {
	for i := 0; i+len(BOM) <= len(frame); i++ {
		if frame[i] == BOM[0] && frame[i+1] == BOM[1] && frame[i+2] == BOM[2] {
			return frame[i+len(BOM):], true
		}
	}
	return nil, false
}
