package log

import (
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

var logger = zerolog.New(os.Stderr).With().Timestamp().Logger()

// Configure sets the global log level and output format.
// Format is "console" (human readable) or "json".
func Configure(level, format string) {
	lvl := parseLevel(level)

	if format == "console" {
		out := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
		logger = zerolog.New(out).Level(lvl).With().Timestamp().Logger()
		return
	}

	logger = zerolog.New(os.Stderr).Level(lvl).With().Timestamp().Logger()
}

func parseLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// Debug logs a debug message with alternating key/value pairs.
func Debug(msg string, kv ...any) {
	emit(logger.Debug(), msg, kv)
}

// Info logs an informational message with alternating key/value pairs.
func Info(msg string, kv ...any) {
	emit(logger.Info(), msg, kv)
}

// Warn logs a warning message with alternating key/value pairs.
func Warn(msg string, kv ...any) {
	emit(logger.Warn(), msg, kv)
}

// Error logs an error message with alternating key/value pairs.
func Error(msg string, kv ...any) {
	emit(logger.Error(), msg, kv)
}

func emit(e *zerolog.Event, msg string, kv []any) {
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			continue
		}
		e = e.Interface(key, kv[i+1])
	}
	e.Msg(msg)
}
