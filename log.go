package otd

import (
	"fmt"
	"os"
	"sync"

	"github.com/charmbracelet/log"
)

// LogCallback receives one formatted log line at or above the
// configured LogLevel.
type LogCallback func(level LogLevel, msg string)

var (
	logMu       sync.Mutex
	logLevel    = LogWarn
	logCallback LogCallback
	logger      = log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		Prefix:          "otd",
	})
)

// LogLevelSet changes the package-wide minimum severity logged and
// forwarded to the registered callback, if any.
func LogLevelSet(l LogLevel) {
	logMu.Lock()
	defer logMu.Unlock()
	logLevel = l
	switch l {
	case LogNone:
		logger.SetLevel(log.Level(100))
	case LogErr:
		logger.SetLevel(log.ErrorLevel)
	case LogWarn:
		logger.SetLevel(log.WarnLevel)
	case LogInfo:
		logger.SetLevel(log.InfoLevel)
	case LogDbg, LogSpew:
		logger.SetLevel(log.DebugLevel)
	}
}

// LogLevelGet returns the current minimum severity.
func LogLevelGet() LogLevel {
	logMu.Lock()
	defer logMu.Unlock()
	return logLevel
}

// LogCallbackSet installs cb as the sole receiver of log lines,
// replacing charmbracelet/log's default stderr writer.
func LogCallbackSet(cb LogCallback) {
	logMu.Lock()
	logCallback = cb
	logMu.Unlock()
}

// LogCallbackGet returns the currently installed callback, or nil.
func LogCallbackGet() LogCallback {
	logMu.Lock()
	defer logMu.Unlock()
	return logCallback
}

// LogCallbackSetDefault restores stderr logging via charmbracelet/log.
func LogCallbackSetDefault() {
	logMu.Lock()
	logCallback = nil
	logMu.Unlock()
}

func logAt(l LogLevel, format string, args ...any) {
	logMu.Lock()
	cur := logLevel
	cb := logCallback
	logMu.Unlock()
	if l > cur {
		return
	}
	if cb != nil {
		cb(l, fmt.Sprintf(format, args...))
		return
	}
	switch l {
	case LogErr:
		logger.Errorf(format, args...)
	case LogWarn:
		logger.Warnf(format, args...)
	case LogInfo:
		logger.Infof(format, args...)
	case LogDbg, LogSpew:
		logger.Debugf(format, args...)
	}
}
