// Package logging configures the process-wide zerolog logger.
package logging

import (
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Setup configures the global zerolog logger. In development (the
// default) it writes human-readable console output; set
// STAGEBUS_LOG_FORMAT=json for structured output in production.
func Setup() {
	zerolog.TimeFieldFormat = time.RFC3339Nano

	level, err := zerolog.ParseLevel(strings.ToLower(os.Getenv("STAGEBUS_LOG_LEVEL")))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if strings.EqualFold(os.Getenv("STAGEBUS_LOG_FORMAT"), "json") {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Caller().Logger()
		return
	}

	writer := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05.000"}
	log.Logger = zerolog.New(writer).With().Timestamp().Logger()
}

// Component returns a sub-logger tagged with a component name, the
// convention used throughout the ingest/recording/mixer subsystems so
// log lines can be filtered per subsystem.
func Component(name string) zerolog.Logger {
	return log.With().Str("component", name).Logger()
}
