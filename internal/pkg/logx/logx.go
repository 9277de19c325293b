/*
Package logx provides a structured logging wrapper based on zerolog.

It initializes the process-wide logger (console output in development, JSON otherwise),
hands out per-component child loggers, and offers key-value helpers for one-off
messages. Both the coordination server and the client library log through it.
*/
package logx

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// InitGlobalLogger initializes the global zerolog instance.
// Development: Debug level, uses ConsoleWriter (colored/human-readable format).
// Production: Info level, uses standard JSON format.
// All logs include a Unix timestamp and caller information.
func InitGlobalLogger(isDevelopment bool) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	level := zerolog.InfoLevel

	if isDevelopment {
		logger = logger.Output(zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: time.RFC3339,
		})
		level = zerolog.DebugLevel
	}

	log.Logger = logger.Level(level).With().Caller().Logger()
}

// SetLevel overrides the global log level by name ("debug", "info", "warn", ...).
// An empty name keeps the level chosen by InitGlobalLogger.
func SetLevel(name string) error {
	if name == "" {
		return nil
	}
	level, err := zerolog.ParseLevel(name)
	if err != nil {
		return fmt.Errorf("log level: %w", err)
	}
	log.Logger = log.Logger.Level(level)
	return nil
}

// Logger returns a pointer to the global zerolog.Logger instance.
func Logger() *zerolog.Logger {
	return &log.Logger
}

// Component returns a child of the global logger tagged with the given component name.
func Component(name string) zerolog.Logger {
	return Logger().With().Str("component", name).Logger()
}

// emit writes msg with key-value fields. An odd field count is reported and the
// fields are dropped, since zerolog would otherwise panic.
func emit(ev *zerolog.Event, msg string, fields []any) {
	if len(fields)%2 != 0 {
		Logger().Warn().
			Int("fields_count", len(fields)).
			CallerSkipFrame(2).
			Msgf("logx: odd number of fields for %q, fields ignored", msg)
		fields = nil
	}
	ev.Fields(fields).CallerSkipFrame(2).Msg(msg)
}

// Debug records a message at the Debug level with optional key-value fields.
func Debug(msg string, fields ...any) {
	emit(Logger().Debug(), msg, fields)
}

// Info records a message at the Info level with optional key-value fields.
func Info(msg string, fields ...any) {
	emit(Logger().Info(), msg, fields)
}

// Warn records a message at the Warn level with optional key-value fields.
func Warn(msg string, fields ...any) {
	emit(Logger().Warn(), msg, fields)
}

// Error records err and a message at the Error level.
func Error(err error, msg string, fields ...any) {
	emit(Logger().Error().Err(err), msg, fields)
}

// Fatal records err and a message at the Fatal level, then exits with status 1.
func Fatal(err error, msg string, fields ...any) {
	emit(Logger().Fatal().Err(err), msg, fields)
}
