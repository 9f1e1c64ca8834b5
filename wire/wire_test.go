package wire

import (
	"bytes"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _fixedTime = time.Date(2024, 3, 9, 14, 5, 7, 123456789, time.FixedZone("", 2*3600))

func testHeader() Header {
	return Header{
		Priority: 220,
		Version:  1,
		Hostname: "mymachine",
		AppName:  "appName",
		ProcID:   "123",
		MsgID:    "89",
	}
}

func TestBuildLayout(t *testing.T) {
	b := NewBuilder(testHeader(), WithNow(func() time.Time { return _fixedTime }))
	buf := NewBuffer(64)

	frame := b.Build(buf, "hello")
	want := "<220>1 2024-03-09T14:05:07.123456+02:00 mymachine appName 123 89 \xEF\xBB\xBFhello"
	assert.Equal(t, want, string(frame))
	assert.Equal(t, len(want), buf.Len())
}

func TestBuildUTC(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	b := NewBuilder(testHeader(), WithNow(func() time.Time { return now }))
	frame := b.Build(NewBuffer(0), "x")
	assert.Contains(t, string(frame), " 2024-01-01T00:00:00.000000+00:00 ")
}

func TestBuildResetsBuffer(t *testing.T) {
	b := NewBuilder(testHeader(), WithNow(func() time.Time { return _fixedTime }))
	buf := NewBuffer(0)
	buf.AppendString("garbage")

	first := string(b.Build(buf, "a"))
	second := string(b.Build(buf, "a"))
	assert.Equal(t, first, second)
	assert.False(t, strings.Contains(second, "garbage"))
}

func TestBuildPayloadVerbatim(t *testing.T) {
	b := NewBuilder(testHeader())
	text := "line1\nline2\x00 ünïcødé"
	frame := b.Build(NewBuffer(0), text)

	payload, ok := Payload(frame)
	require.True(t, ok)
	assert.Equal(t, text, string(payload))
}

func TestBuildEmptyText(t *testing.T) {
	b := NewBuilder(testHeader())
	frame := b.Build(NewBuffer(0), "")
	assert.True(t, bytes.HasSuffix(frame, BOM))
}

func TestBuildTimestampAdvances(t *testing.T) {
	now := _fixedTime
	b := NewBuilder(testHeader(), WithNow(func() time.Time { return now }))
	buf := NewBuffer(0)

	first := string(b.Build(buf, "a"))
	now = now.Add(time.Millisecond)
	second := string(b.Build(buf, "a"))
	assert.NotEqual(t, first, second)
}

func TestHeaderSanitize(t *testing.T) {
	h := Header{Priority: 13, Version: 1, Hostname: "my host", AppName: "", ProcID: "p\tid", MsgID: strings.Repeat("m", 40)}
	frame := string(NewBuilder(h, WithNow(func() time.Time { return _fixedTime })).Build(NewBuffer(0), "x"))

	re := regexp.MustCompile(`^<13>1 \S+ my_host - p_id (m+) \x{FEFF}x$`)
	m := re.FindStringSubmatch(frame)
	require.NotNil(t, m, frame)
	assert.Len(t, m[1], _maxMsgID)
}

func TestDefaultHeader(t *testing.T) {
	h := DefaultHeader()
	assert.Equal(t, 220, h.Priority)
	assert.Equal(t, 1, h.Version)
	assert.Equal(t, "logship", h.AppName)
	assert.NotEmpty(t, h.Hostname)
	assert.NotEmpty(t, h.ProcID)
	assert.Equal(t, Nil, h.MsgID)
	assert.NoError(t, h.Validate())
}

func TestHeaderValidate(t *testing.T) {
	h := testHeader()
	h.Priority = -1
	assert.Error(t, h.Validate())
	h.Priority = 1000
	assert.Error(t, h.Validate())
	h.Priority = 14
	h.Version = 0
	assert.Error(t, h.Validate())
}

func TestBufferRetention(t *testing.T) {
	buf := NewBuffer(16)
	buf.AppendString("abc")
	buf.AppendByte('d')
	buf.Append([]byte("ef"))
	assert.Equal(t, "abcdef", string(buf.Bytes()))

	buf.Reset()
	assert.Equal(t, 0, buf.Len())
	assert.Equal(t, 16, buf.Cap())

	buf.Append(make([]byte, _maxRetainedCap+1))
	buf.Reset()
	assert.Equal(t, 0, buf.Len())
	assert.Equal(t, 0, buf.Cap())
}

func TestPayloadWithoutBOM(t *testing.T) {
	_, ok := Payload([]byte("no bom here"))
	assert.False(t, ok)
}
