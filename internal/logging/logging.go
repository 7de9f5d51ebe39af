// Package logging provides a global zerolog logger for the supervisor.
package logging

import (
	"os"

	"github.com/rs/zerolog"
)

// Logger is the global zerolog logger instance.
var Logger zerolog.Logger

// Init initializes the global logger at the given level.
func Init(level zerolog.Level) {
	Logger = zerolog.New(os.Stderr).With().Timestamp().Logger().Level(level)
}

// ParseLevel maps a config string to a zerolog.Level, defaulting to Info
// for anything it doesn't recognize.
func ParseLevel(s string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(s)
	if err != nil {
		return zerolog.InfoLevel
	}
	return lvl
}

// ForAgent returns a sub-logger with agentId stamped on every entry, so log
// lines from concurrent child sessions can be told apart.
func ForAgent(agentID string) zerolog.Logger {
	return Logger.With().Str("agentId", agentID).Logger()
}
