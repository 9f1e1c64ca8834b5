package log

// Logger is the leveled, structured logger every logship component writes its
// diagnostics through. Level methods return nil when the level is disabled,
// and every LogEvent method accepts a nil receiver, so a disabled call costs
// one comparison.
type Logger interface {
	Trace() *LogEvent
	Debug() *LogEvent
	Info() *LogEvent
	Warn() *LogEvent
	Error() *LogEvent
	Fatal() *LogEvent
	GetAppender() []LogAppender
	AddAppender(appender LogAppender)
	OnEventEnd(e *LogEvent)
}

var _defaultLogger Logger

func init() {
	_defaultLogger = NewLogger(getDefaultCfg())
}

// Initialize replaces the default logger with one built from cfg.
// A nil cfg restores the defaults.
func Initialize(cfg *LogCfg) error {
	if cfg == nil {
		cfg = getDefaultCfg()
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	SetDefaultLogger(NewLogger(cfg))
	return nil
}

// Default returns the package-level logger.
func Default() Logger {
	return _defaultLogger
}

// SetDefaultLogger replaces the package-level logger.
func SetDefaultLogger(logger Logger) {
	_defaultLogger = logger
}

// AddAppender adds an appender to the default logger.
func AddAppender(appender LogAppender) {
	_defaultLogger.AddAppender(appender)
}

// Refresh flushes every appender of the default logger.
func Refresh() {
	for _, a := range _defaultLogger.GetAppender() {
		_ = a.Refresh()
	}
}

// Close closes every appender of the default logger.
func Close() {
	for _, a := range _defaultLogger.GetAppender() {
		_ = a.Close()
	}
}

// Trace starts a trace-level event on the default logger.
func Trace() *LogEvent {
	return _defaultLogger.Trace()
}

// Debug starts a debug-level event on the default logger.
func Debug() *LogEvent {
	return _defaultLogger.Debug()
}

// Info starts an info-level event on the default logger.
func Info() *LogEvent {
	return _defaultLogger.Info()
}

// Warn starts a warn-level event on the default logger.
func Warn() *LogEvent {
	return _defaultLogger.Warn()
}

// Error starts an error-level event on the default logger.
func Error() *LogEvent {
	return _defaultLogger.Error()
}

// Fatal starts a fatal-level event on the default logger. Finishing it panics.
func Fatal() *LogEvent {
	return _defaultLogger.Fatal()
}
