package logger

// Logger is the logging surface the engine components depend on. Debugw
// carries structured fields; the formatted variants cover everything else.
type Logger interface {
	Debugf(format string, args ...any)
	Debugw(msg string, fields map[string]any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
}
