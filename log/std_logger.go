package log

import (
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// StdLogger is the Logger implementation used throughout logship. Events are
// pooled, the level check is a single atomic load, and caller lookups are
// cached per program counter.
//
//	logger := NewLogger(&LogCfg{LogLevel: InfoLevel, ConsoleAppender: true})
//	logger.Info().Str("transport", "udp").Int("port", 1514).Msg("shipper started")
type StdLogger struct {
	appenders         []LogAppender
	appendersMu       sync.RWMutex
	minLevel          atomic.Int32
	callerSkip        int
	eventPool         *sync.Pool
	callerCache       sync.Map
	enabledCallerInfo bool
}

// NewLogger creates a logger from cfg. A nil cfg uses the defaults.
func NewLogger(cfg *LogCfg) *StdLogger {
	if cfg == nil {
		cfg = getDefaultCfg()
	}

	logger := &StdLogger{
		callerSkip:        cfg.CallerSkip,
		enabledCallerInfo: cfg.EnabledCallerInfo,
	}
	logger.minLevel.Store(int32(cfg.LogLevel))
	logger.eventPool = &sync.Pool{
		New: func() any {
			return newEvent(logger)
		},
	}

	if cfg.ConsoleAppender {
		logger.AddAppender(NewConsoleAppender())
	}
	if cfg.FileAppender {
		fa, err := NewFileAppender(cfg)
		if err != nil {
			if !cfg.ConsoleAppender {
				logger.AddAppender(NewConsoleAppender())
			}
			logger.Error().Err(err).Str("path", cfg.FilePath).Msg("file appender disabled")
		} else {
			logger.AddAppender(fa)
		}
	}
	return logger
}

// SetLevel changes the minimum level at runtime.
func (x *StdLogger) SetLevel(level Level) {
	x.minLevel.Store(int32(level))
}

// GetLevel returns the current minimum level.
func (x *StdLogger) GetLevel() Level {
	return Level(x.minLevel.Load())
}

func (x *StdLogger) checkLevel(level Level) bool {
	return Level(x.minLevel.Load()) <= level
}

// AddAppender adds a destination for finished lines.
func (x *StdLogger) AddAppender(appender LogAppender) {
	x.appendersMu.Lock()
	defer x.appendersMu.Unlock()
	x.appenders = append(x.appenders, appender)
}

// GetAppender returns a snapshot of the registered appenders.
func (x *StdLogger) GetAppender() []LogAppender {
	x.appendersMu.RLock()
	defer x.appendersMu.RUnlock()
	out := make([]LogAppender, len(x.appenders))
	copy(out, x.appenders)
	return out
}

// Refresh flushes every appender.
func (x *StdLogger) Refresh() {
	for _, appender := range x.GetAppender() {
		_ = appender.Refresh()
	}
}

// Close closes every appender.
func (x *StdLogger) Close() {
	for _, appender := range x.GetAppender() {
		_ = appender.Close()
	}
}

// OnEventEnd writes the finished line to every appender and returns the event to the pool.
// A fatal event panics after it is written.
func (x *StdLogger) OnEventEnd(e *LogEvent) {
	x.appendersMu.RLock()
	for _, appender := range x.appenders {
		_, _ = appender.Write(e.buf.Bytes())
	}
	x.appendersMu.RUnlock()

	if e.level == FatalLevel {
		panic("fatal log event")
	}
	x.eventPool.Put(e)
}

// Trace starts a trace-level event.
func (x *StdLogger) Trace() *LogEvent {
	return x.log(TraceLevel)
}

// Debug starts a debug-level event.
func (x *StdLogger) Debug() *LogEvent {
	return x.log(DebugLevel)
}

// Info starts an info-level event.
func (x *StdLogger) Info() *LogEvent {
	return x.log(InfoLevel)
}

// Warn starts a warn-level event.
func (x *StdLogger) Warn() *LogEvent {
	return x.log(WarnLevel)
}

// Error starts an error-level event.
func (x *StdLogger) Error() *LogEvent {
	return x.log(ErrorLevel)
}

// Fatal starts a fatal-level event. Finishing it panics.
func (x *StdLogger) Fatal() *LogEvent {
	return x.log(FatalLevel)
}

// getCallerInfo resolves the caller of the level method, trimming the file to
// its last directory and the function to its bare name.
func (x *StdLogger) getCallerInfo() *callerInfo {
	pc, file, line, ok := runtime.Caller(3 + x.callerSkip)
	if !ok {
		return _unknownCallerInfo
	}
	if cached, found := x.callerCache.Load(pc); found {
		return cached.(*callerInfo)
	}

	function := "unknown"
	if fn := runtime.FuncForPC(pc); fn != nil {
		function = fn.Name()
		if dotIdx := strings.LastIndexByte(function, '.'); dotIdx != -1 {
			function = function[dotIdx+1:]
		}
	}
	if lastSlash := strings.LastIndexByte(file, '/'); lastSlash > 0 {
		if secondLastSlash := strings.LastIndexByte(file[:lastSlash], '/'); secondLastSlash >= 0 {
			file = file[secondLastSlash+1:]
		}
	}

	c := newCallerInfo(file, function, line)
	x.callerCache.Store(pc, c)
	return c
}

func (x *StdLogger) log(level Level) *LogEvent {
	if !x.checkLevel(level) {
		return nil
	}

	e := x.eventPool.Get().(*LogEvent)
	e.Reset()
	e.level = level
	e.Time("time", time.Now())
	e.Str("level", level.String())
	if x.enabledCallerInfo {
		e.Str("caller", x.getCallerInfo().String())
	}
	return e
}
