package logging

import (
	"sync"
)

var (
	globalMu     sync.RWMutex
	globalLogger = DefaultLogger()
)

// SetGlobal replaces the process-wide logger.
func SetGlobal(l *Logger) {
	globalMu.Lock()
	defer globalMu.Unlock()
	globalLogger = l
}

// Global returns the process-wide logger.
func Global() *Logger {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return globalLogger
}

// Configure builds a stderr logger from config strings and installs it
// as the global logger. Caller info is added at debug level.
func Configure(level, format string) *Logger {
	lvl := ParseLevel(level)
	l := New(Config{
		Level:     lvl,
		Format:    ParseFormat(format),
		AddCaller: lvl == LevelDebug,
	})
	SetGlobal(l)
	return l
}
