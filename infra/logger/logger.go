package logger

import corelogger "github.com/kilianp07/spotmarket/core/logger"

// Logger aliases the core interface so callers wire one import.
type Logger = corelogger.Logger

// NopLogger implements Logger with no-op methods.
type NopLogger struct{}

func (NopLogger) Debugf(string, ...any)         {}
func (NopLogger) Debugw(string, map[string]any) {}
func (NopLogger) Infof(string, ...any)          {}
func (NopLogger) Warnf(string, ...any)          {}
func (NopLogger) Errorf(string, ...any)         {}

// New returns a Logger for the given component. SM_ENV=dev selects the
// console format.
func New(component string) Logger {
	return NewZerologLogger(component)
}
