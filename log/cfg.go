package log

import (
	"errors"
	"fmt"
)

// LogCfg configures the diagnostic logger.
type LogCfg struct {
	// LogLevel is the minimum level written. Accepts names ("info") when
	// decoded with LevelHookFunc.
	LogLevel Level `mapstructure:"level"`

	// ConsoleAppender writes lines to stderr.
	ConsoleAppender bool `mapstructure:"consoleAppender"`

	// EnabledCallerInfo adds a "caller" field with file:line and function.
	EnabledCallerInfo bool `mapstructure:"enabledCallerInfo"`

	// CallerSkip is the number of extra stack frames to skip when resolving the caller,
	// for code that wraps the logger.
	CallerSkip int `mapstructure:"callerSkip"`

	// FileAppender writes lines to FilePath in addition to any console output.
	FileAppender bool   `mapstructure:"fileAppender"`
	FilePath     string `mapstructure:"filePath"`
	// FileSplitMB rotates the file once it reaches this size. 0 disables.
	FileSplitMB int `mapstructure:"fileSplitMB"`
	// FileSplitHour rotates the file daily when this hour of day is crossed. 0 disables.
	FileSplitHour int `mapstructure:"fileSplitHour"`
	// FileAsync batches file writes on a background goroutine.
	FileAsync      bool `mapstructure:"fileAsync"`
	FileAsyncQueue int  `mapstructure:"fileAsyncQueue"`
	FileFlushMs    int  `mapstructure:"fileFlushMs"`
}

// Validate checks the configuration.
func (cfg *LogCfg) Validate() error {
	if cfg.LogLevel < TraceLevel || cfg.LogLevel > FatalLevel {
		return fmt.Errorf("invalid log level: %d, must be between %d (Trace) and %d (Fatal)",
			cfg.LogLevel, TraceLevel, FatalLevel)
	}
	if cfg.CallerSkip < 0 {
		return fmt.Errorf("caller skip must be non-negative, got %d", cfg.CallerSkip)
	}
	if !cfg.FileAppender {
		return nil
	}
	if cfg.FilePath == "" {
		return errors.New("file appender enabled without filePath")
	}
	if cfg.FileSplitMB < 0 {
		return fmt.Errorf("fileSplitMB must be non-negative, got %d", cfg.FileSplitMB)
	}
	if cfg.FileSplitHour < 0 || cfg.FileSplitHour > 23 {
		return fmt.Errorf("fileSplitHour must be between 0 and 23, got %d", cfg.FileSplitHour)
	}
	if cfg.FileAsync {
		if cfg.FileAsyncQueue <= 0 {
			cfg.FileAsyncQueue = 1024
		}
		if cfg.FileFlushMs <= 0 {
			cfg.FileFlushMs = 200
		}
	}
	return nil
}

// DefaultCfg returns a fresh copy of the default configuration.
func DefaultCfg() LogCfg {
	return *getDefaultCfg()
}

func getDefaultCfg() *LogCfg {
	return &LogCfg{
		LogLevel:          InfoLevel,
		ConsoleAppender:   true,
		EnabledCallerInfo: false,
		FilePath:          "./logship.log",
		FileSplitMB:       50,
		FileAsyncQueue:    1024,
		FileFlushMs:       200,
	}
}
