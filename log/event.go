package log

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// LogEvent is one structured log line under construction. Events come from
// a logger's pool, collect fields through the fluent methods and are written
// to the appenders by Msg or End. All methods are no-ops on a nil event, which
// is what a logger returns for a disabled level.
type LogEvent struct {
	buf    *bytes.Buffer
	logger Logger
	level  Level
}

func newEvent(l Logger) *LogEvent {
	e := &LogEvent{
		logger: l,
		level:  DebugLevel,
		buf:    &bytes.Buffer{},
	}
	e.buf.Grow(512)
	return e
}

// Reset clears the event for reuse. Buffers that grew past 4KB are replaced
// so one oversized line does not pin memory in the pool.
func (e *LogEvent) Reset() {
	if e.buf.Cap() > 4096 {
		e.buf = bytes.NewBuffer(make([]byte, 0, 512))
	} else {
		e.buf.Reset()
	}
	e.level = DebugLevel
	AppendBeginMarker(e.buf)
}

// Level returns the severity the event was created with.
func (e *LogEvent) Level() Level {
	if e == nil {
		return 0
	}
	return e.level
}

// Time appends a timestamp field.
func (e *LogEvent) Time(k string, v time.Time) *LogEvent {
	if e == nil {
		return nil
	}
	AppendKey(e.buf, k)
	AppendTime(e.buf, v)
	return e
}

// Str appends a string field.
func (e *LogEvent) Str(k string, s string) *LogEvent {
	if e == nil {
		return nil
	}
	AppendKey(e.buf, k)
	AppendString(e.buf, s)
	return e
}

// Strs appends a string array field.
func (e *LogEvent) Strs(k string, v []string) *LogEvent {
	if e == nil {
		return nil
	}
	AppendKey(e.buf, k)
	AppendStrings(e.buf, v)
	return e
}

// Int appends an integer field.
func (e *LogEvent) Int(k string, v int) *LogEvent {
	if e == nil {
		return nil
	}
	AppendKey(e.buf, k)
	AppendInt64(e.buf, int64(v))
	return e
}

// Int64 appends a 64-bit integer field.
func (e *LogEvent) Int64(k string, v int64) *LogEvent {
	if e == nil {
		return nil
	}
	AppendKey(e.buf, k)
	AppendInt64(e.buf, v)
	return e
}

// Uint64 appends an unsigned 64-bit integer field.
func (e *LogEvent) Uint64(k string, v uint64) *LogEvent {
	if e == nil {
		return nil
	}
	AppendKey(e.buf, k)
	AppendUint64(e.buf, v)
	return e
}

// Float64 appends a float field.
func (e *LogEvent) Float64(k string, v float64) *LogEvent {
	if e == nil {
		return nil
	}
	AppendKey(e.buf, k)
	AppendFloat64(e.buf, v)
	return e
}

// Bool appends a boolean field.
func (e *LogEvent) Bool(k string, v bool) *LogEvent {
	if e == nil {
		return nil
	}
	AppendKey(e.buf, k)
	AppendBool(e.buf, v)
	return e
}

// Dur appends a duration field in milliseconds.
func (e *LogEvent) Dur(k string, d time.Duration) *LogEvent {
	if e == nil {
		return nil
	}
	AppendKey(e.buf, k)
	AppendFloat64(e.buf, float64(d.Microseconds())/1000)
	return e
}

// Stringer appends the String() form of v.
func (e *LogEvent) Stringer(k string, v fmt.Stringer) *LogEvent {
	if e == nil {
		return nil
	}
	AppendKey(e.buf, k)
	if v == nil {
		AppendNil(e.buf)
		return e
	}
	AppendString(e.buf, v.String())
	return e
}

// Err appends the error under the "error" key, or null for a nil error.
func (e *LogEvent) Err(v error) *LogEvent {
	if e == nil {
		return nil
	}
	AppendKey(e.buf, "error")
	if v != nil {
		AppendString(e.buf, v.Error())
	} else {
		AppendNil(e.buf)
	}
	return e
}

// Any appends v encoded with encoding/json. Marshal failures are logged in place of the value.
func (e *LogEvent) Any(k string, v any) *LogEvent {
	if e == nil {
		return nil
	}
	AppendKey(e.buf, k)
	b, err := json.Marshal(v)
	if err != nil {
		AppendString(e.buf, err.Error())
		return e
	}
	e.buf.Write(b)
	return e
}

// Msg appends the message and writes the line.
func (e *LogEvent) Msg(v string) {
	if e == nil {
		return
	}
	e.Str("msg", v)
	e.End()
}

// Msgf is Msg with fmt.Sprintf formatting.
func (e *LogEvent) Msgf(format string, args ...any) {
	if e == nil {
		return
	}
	e.Msg(fmt.Sprintf(format, args...))
}

// End writes the line without a message field.
func (e *LogEvent) End() {
	if e == nil {
		return
	}
	AppendEndMarker(e.buf)
	AppendLineBreak(e.buf)
	e.logger.OnEventEnd(e)
}
