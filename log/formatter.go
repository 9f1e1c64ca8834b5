package log

import (
	"bytes"
	"math"
	"strconv"
	"time"
	"unicode/utf8"
)

// AppendBeginMarker opens the JSON object of a log line.
func AppendBeginMarker(buf *bytes.Buffer) {
	buf.WriteByte('{')
}

// AppendEndMarker closes the JSON object of a log line.
func AppendEndMarker(buf *bytes.Buffer) {
	buf.WriteByte('}')
}

// AppendLineBreak terminates a log line.
func AppendLineBreak(buf *bytes.Buffer) {
	buf.WriteByte('\n')
}

// AppendKey writes `"key":`, preceded by a comma unless it is the first field of the object.
func AppendKey(buf *bytes.Buffer, key string) {
	if buf.Len() >= 1 && buf.Bytes()[buf.Len()-1] != '{' {
		buf.WriteByte(',')
	}
	AppendString(buf, key)
	buf.WriteByte(':')
}

// AppendNil writes a JSON null.
func AppendNil(buf *bytes.Buffer) {
	buf.WriteString("null")
}

// AppendBool writes true or false.
func AppendBool(buf *bytes.Buffer, val bool) {
	if val {
		buf.WriteString("true")
		return
	}
	buf.WriteString("false")
}

// AppendInt64 writes a base-10 integer.
func AppendInt64(buf *bytes.Buffer, val int64) {
	var scratch [20]byte
	buf.Write(strconv.AppendInt(scratch[:0], val, 10))
}

// AppendUint64 writes a base-10 unsigned integer.
func AppendUint64(buf *bytes.Buffer, val uint64) {
	var scratch [20]byte
	buf.Write(strconv.AppendUint(scratch[:0], val, 10))
}

// AppendFloat64 writes a float. NaN and infinities are quoted since JSON has no literal for them.
func AppendFloat64(buf *bytes.Buffer, val float64) {
	switch {
	case math.IsNaN(val):
		buf.WriteString(`"NaN"`)
		return
	case math.IsInf(val, 1):
		buf.WriteString(`"+Inf"`)
		return
	case math.IsInf(val, -1):
		buf.WriteString(`"-Inf"`)
		return
	}
	var scratch [32]byte
	buf.Write(strconv.AppendFloat(scratch[:0], val, 'f', -1, 64))
}

// AppendTime writes a quoted `YYYY-MM-DD HH:MM:SS.mmm` local timestamp.
func AppendTime(buf *bytes.Buffer, t time.Time) {
	var scratch [32]byte
	buf.WriteByte('"')
	buf.Write(t.AppendFormat(scratch[:0], "2006-01-02 15:04:05.000"))
	buf.WriteByte('"')
}

const _hex = "0123456789abcdef"

var _noEscapeTable = [256]bool{}

func init() {
	for i := 0; i <= 0x7e; i++ {
		_noEscapeTable[i] = i >= 0x20 && i != '\\' && i != '"'
	}
}

// AppendStrings writes a JSON array of strings.
func AppendStrings(buf *bytes.Buffer, vals []string) {
	buf.WriteByte('[')
	for i, v := range vals {
		if i > 0 {
			buf.WriteByte(',')
		}
		AppendString(buf, v)
	}
	buf.WriteByte(']')
}

// AppendString writes s as a quoted JSON string. Strings that need no escaping
// are copied in one write.
func AppendString(buf *bytes.Buffer, s string) {
	buf.WriteByte('"')
	for i := 0; i < len(s); i++ {
		if !_noEscapeTable[s[i]] {
			appendStringComplex(buf, s)
			buf.WriteByte('"')
			return
		}
	}
	buf.WriteString(s)
	buf.WriteByte('"')
}

// appendStringComplex escapes control characters, quotes and backslashes and
// replaces invalid UTF-8 with U+FFFD.
func appendStringComplex(buf *bytes.Buffer, s string) {
	start := 0
	for i := 0; i < len(s); i++ {
		b := s[i]
		if b >= utf8.RuneSelf {
			r, size := utf8.DecodeRuneInString(s[i:])
			if r == utf8.RuneError && size == 1 {
				if start < i {
					buf.WriteString(s[start:i])
				}
				buf.WriteString(`\ufffd`)
				start = i + 1
				continue
			}
			i += size - 1
			continue
		}

		if _noEscapeTable[b] {
			continue
		}

		if start < i {
			buf.WriteString(s[start:i])
		}
		switch b {
		case '"', '\\':
			buf.WriteByte('\\')
			buf.WriteByte(b)
		case '\n':
			buf.WriteString(`\n`)
		case '\r':
			buf.WriteString(`\r`)
		case '\t':
			buf.WriteString(`\t`)
		default:
			buf.WriteString(`\u00`)
			buf.WriteByte(_hex[b>>4])
			buf.WriteByte(_hex[b&0xF])
		}
		start = i + 1
	}

	if start < len(s) {
		buf.WriteString(s[start:])
	}
}
