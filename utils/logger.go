package utils

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Logger provides leveled logging throughout the application.
// Messages keep the printf style with a "[component]" prefix; the
// backend is zerolog so output can be switched to JSON with LOG_FORMAT=json.
type Logger struct {
	z zerolog.Logger
}

// NewLogger creates a Logger writing to stderr, human-readable unless
// LOG_FORMAT=json. The level comes from LOG_LEVEL (default info).
func NewLogger() *Logger {
	var out io.Writer = os.Stderr
	if os.Getenv("LOG_FORMAT") != "json" {
		out = zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: time.DateTime,
			NoColor:    os.Getenv("NO_COLOR") != "",
		}
	}
	return &Logger{
		z: zerolog.New(out).Level(parseLevel(os.Getenv("LOG_LEVEL"))).With().Timestamp().Logger(),
	}
}

// NewNopLogger discards everything. Handy in tests.
func NewNopLogger() *Logger {
	return &Logger{z: zerolog.Nop()}
}

// With returns a child logger carrying a source field.
func (l *Logger) With(source string) *Logger {
	return &Logger{z: l.z.With().Str("source", source).Logger()}
}

func (l *Logger) Info(format string, args ...any) {
	l.z.Info().Msgf(format, args...)
}

func (l *Logger) Warn(format string, args ...any) {
	l.z.Warn().Msgf(format, args...)
}

func (l *Logger) Error(format string, args ...any) {
	l.z.Error().Msgf(format, args...)
}

func (l *Logger) Debug(format string, args ...any) {
	l.z.Debug().Msgf(format, args...)
}

func parseLevel(s string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "disabled", "off":
		return zerolog.Disabled
	default:
		return zerolog.InfoLevel
	}
}
