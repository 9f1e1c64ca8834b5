package log

import (
	"reflect"
	"strings"

	"github.com/mitchellh/mapstructure"
)

// Level is the severity of a diagnostic log line. Higher values are more severe.
type Level int8

const (
	// TraceLevel is for per-frame detail such as individual datagram sizes.
	TraceLevel Level = iota + 1

	// DebugLevel is for per-message events such as a successful send.
	DebugLevel

	// InfoLevel is for lifecycle events: shipper started, transport selected, shutdown.
	InfoLevel

	// WarnLevel is for recoverable delivery problems: a failed send that will be retried,
	// an event rejected because the queue is full.
	WarnLevel

	// ErrorLevel is for faults that needed intervention, such as a dispatch loop restart.
	ErrorLevel

	// FatalLevel logs and then panics.
	FatalLevel
)

// String returns the upper-case level name.
func (l Level) String() string {
	switch l {
	case TraceLevel:
		return "TRACE"
	case DebugLevel:
		return "DEBUG"
	case InfoLevel:
		return "INFO"
	case WarnLevel:
		return "WARN"
	case ErrorLevel:
		return "ERROR"
	case FatalLevel:
		return "FATAL"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel converts a case-insensitive level name into a Level.
// Unknown names map to InfoLevel.
func ParseLevel(levelStr string) Level {
	switch strings.ToUpper(strings.TrimSpace(levelStr)) {
	case "TRACE":
		return TraceLevel
	case "DEBUG":
		return DebugLevel
	case "INFO":
		return InfoLevel
	case "WARN", "WARNING":
		return WarnLevel
	case "ERROR":
		return ErrorLevel
	case "FATAL":
		return FatalLevel
	}
	return InfoLevel
}

// LevelHookFunc returns a mapstructure decode hook that accepts level names
// ("debug", "WARN") wherever a Level field is decoded from configuration.
func LevelHookFunc() mapstructure.DecodeHookFuncType {
	levelType := reflect.TypeOf(Level(0))
	return func(from reflect.Type, to reflect.Type, data any) (any, error) {
		if to != levelType || from.Kind() != reflect.String {
			return data, nil
		}
		return ParseLevel(data.(string)), nil
	}
}
