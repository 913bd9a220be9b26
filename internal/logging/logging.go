// Package logging provides zerolog-based structured logging for the pipeline.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Config holds logging configuration.
type Config struct {
	// Level is the minimum log level: debug, info, warn, error.
	Level string

	// Format is the output format: json or console.
	Format string

	// Output is the log destination. Defaults to os.Stderr.
	Output io.Writer
}

var logger = zerolog.New(os.Stderr).With().Timestamp().Logger()

// Init configures the package-level logger. Unknown levels fall back to info.
func Init(cfg Config) {
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}

	if strings.EqualFold(cfg.Format, "console") {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}

	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	logger = zerolog.New(out).Level(level).With().Timestamp().Logger()
}

// L returns the configured logger.
func L() *zerolog.Logger {
	return &logger
}

// Debug starts a debug-level log event.
func Debug() *zerolog.Event {
	return logger.Debug()
}

// Info starts an info-level log event.
func Info() *zerolog.Event {
	return logger.Info()
}

// Warn starts a warn-level log event.
func Warn() *zerolog.Event {
	return logger.Warn()
}

// Error starts an error-level log event.
func Error() *zerolog.Event {
	return logger.Error()
}
