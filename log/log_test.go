package log

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBufferLogger(t *testing.T, level Level) (*StdLogger, *bytes.Buffer) {
	t.Helper()
	var out bytes.Buffer
	logger := NewLogger(&LogCfg{LogLevel: level})
	logger.AddAppender(NewWriterAppender(&out))
	return logger, &out
}

func TestLoggerWritesJSONLine(t *testing.T) {
	logger, out := newBufferLogger(t, DebugLevel)

	logger.Info().
		Str("transport", "udp").
		Int("port", 1514).
		Bool("ready", true).
		Dur("interval", 100*time.Millisecond).
		Err(errors.New("connection refused")).
		Msg("shipper started")

	line := out.String()
	require.True(t, strings.HasSuffix(line, "\n"))

	var fields map[string]any
	require.NoError(t, json.Unmarshal([]byte(line), &fields))
	assert.Equal(t, "INFO", fields["level"])
	assert.Equal(t, "udp", fields["transport"])
	assert.Equal(t, float64(1514), fields["port"])
	assert.Equal(t, true, fields["ready"])
	assert.Equal(t, float64(100), fields["interval"])
	assert.Equal(t, "connection refused", fields["error"])
	assert.Equal(t, "shipper started", fields["msg"])
}

func TestLoggerFiltersBelowMinLevel(t *testing.T) {
	logger, out := newBufferLogger(t, WarnLevel)

	assert.Nil(t, logger.Debug())
	logger.Info().Msg("dropped")
	assert.Empty(t, out.String())

	logger.Warn().Msg("kept")
	assert.Contains(t, out.String(), `"msg":"kept"`)

	logger.SetLevel(DebugLevel)
	logger.Debug().Msg("now visible")
	assert.Contains(t, out.String(), "now visible")
}

func TestStringEscaping(t *testing.T) {
	logger, out := newBufferLogger(t, DebugLevel)

	logger.Info().Str("payload", "line1\nline2\t\"quoted\"\x01").Msg("escape")

	var fields map[string]any
	require.NoError(t, json.Unmarshal(out.Bytes(), &fields))
	assert.Equal(t, "line1\nline2\t\"quoted\"\x01", fields["payload"])
}

func TestCallerInfo(t *testing.T) {
	var out bytes.Buffer
	logger := NewLogger(&LogCfg{LogLevel: DebugLevel, EnabledCallerInfo: true})
	logger.AddAppender(NewWriterAppender(&out))

	logger.Info().Msg("where")
	assert.Contains(t, out.String(), "log/log_test.go:")
	assert.Contains(t, out.String(), "TestCallerInfo")
}

func TestFatalPanicsAfterWrite(t *testing.T) {
	logger, out := newBufferLogger(t, DebugLevel)
	assert.Panics(t, func() {
		logger.Fatal().Msg("boom")
	})
	assert.Contains(t, out.String(), "FATAL")
}

func TestNilEventIsSafe(t *testing.T) {
	var e *LogEvent
	assert.NotPanics(t, func() {
		e.Str("a", "b").Int("c", 1).Err(nil).Any("d", 1).Msg("ignored")
	})
}

func TestCfgValidate(t *testing.T) {
	cfg := DefaultCfg()
	require.NoError(t, cfg.Validate())

	cfg.LogLevel = 0
	assert.Error(t, cfg.Validate())

	cfg = DefaultCfg()
	cfg.CallerSkip = -1
	assert.Error(t, cfg.Validate())
}

func TestLevelHookFunc(t *testing.T) {
	var cfg LogCfg
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: LevelHookFunc(),
		Result:     &cfg,
	})
	require.NoError(t, err)
	require.NoError(t, decoder.Decode(map[string]any{
		"level":           "warn",
		"consoleAppender": true,
	}))
	assert.Equal(t, WarnLevel, cfg.LogLevel)
	assert.True(t, cfg.ConsoleAppender)
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, TraceLevel, ParseLevel("trace"))
	assert.Equal(t, ErrorLevel, ParseLevel(" ERROR "))
	assert.Equal(t, WarnLevel, ParseLevel("warning"))
	assert.Equal(t, InfoLevel, ParseLevel("bogus"))
	assert.Equal(t, "DEBUG", DebugLevel.String())
}

func TestInitializeReplacesDefault(t *testing.T) {
	prev := Default()
	t.Cleanup(func() { SetDefaultLogger(prev) })

	require.NoError(t, Initialize(&LogCfg{LogLevel: ErrorLevel}))
	var out bytes.Buffer
	AddAppender(NewWriterAppender(&out))

	Info().Msg("filtered")
	Error().Msg("written")
	assert.NotContains(t, out.String(), "filtered")
	assert.Contains(t, out.String(), "written")

	assert.Error(t, Initialize(&LogCfg{LogLevel: 42}))
}
