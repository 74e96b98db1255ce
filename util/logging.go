package util

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

var (
	Logger zerolog.Logger
)

func parseLevel(inlevel string) zerolog.Level {
	switch strings.ToLower(inlevel) {
	case "debug":
		return zerolog.DebugLevel
	case "trace":
		return zerolog.TraceLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// LogInit (re)builds the package logger. The level is applied globally so
// component loggers derived earlier follow later level changes.
func LogInit(inlevel string) {
	level := parseLevel(inlevel)
	var out io.Writer = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	if strings.EqualFold(Config.GetString("log_format"), "json") {
		out = os.Stderr
	}
	zerolog.SetGlobalLevel(level)
	Logger = zerolog.New(out).With().Timestamp().Caller().Logger()

	Logger.Info().Msgf("logging initialized at level %v", level)
}

// ComponentLogger returns a child of Logger tagged with the component name.
func ComponentLogger(name string) zerolog.Logger {
	return Logger.With().Str("component", name).Logger()
}
