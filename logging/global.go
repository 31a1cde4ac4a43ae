package logging

import "sync"

var (
	globalLogger Logger
	globalMu     sync.RWMutex
)

// Global returns the process logger. It is a no-op logger until SetGlobal is called.
func Global() Logger {
	globalMu.RLock()
	defer globalMu.RUnlock()
	if globalLogger == nil {
		return Nop()
	}
	return globalLogger
}

// SetGlobal replaces the process logger.
func SetGlobal(logger Logger) {
	globalMu.Lock()
	defer globalMu.Unlock()
	globalLogger = logger
}
