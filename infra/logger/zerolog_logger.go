package logger

import (
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// ZerologLogger implements the core logger interface on rs/zerolog.
type ZerologLogger struct {
	log zerolog.Logger
}

// NewZerologLogger returns a logger tagging every line with the component
// name. Output is JSON unless SM_ENV is set to "dev", which switches to the
// human-readable console writer.
func NewZerologLogger(component string) Logger {
	base := zerolog.New(os.Stdout)
	if strings.ToLower(os.Getenv("SM_ENV")) == "dev" {
		base = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})
	}
	return &ZerologLogger{log: base.With().Timestamp().Str("component", component).Logger()}
}

func (l *ZerologLogger) Debugf(format string, args ...any) {
	l.log.Debug().Msgf(format, args...)
}

func (l *ZerologLogger) Debugw(msg string, fields map[string]any) {
	ev := l.log.Debug()
	for k, v := range fields {
		ev = ev.Interface(k, v)
	}
	ev.Msg(msg)
}

func (l *ZerologLogger) Infof(format string, args ...any) {
	l.log.Info().Msgf(format, args...)
}

func (l *ZerologLogger) Warnf(format string, args ...any) {
	l.log.Warn().Msgf(format, args...)
}

func (l *ZerologLogger) Errorf(format string, args ...any) {
	l.log.Error().Msgf(format, args...)
}
