package util

import (
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// NewLogger builds the process logger. Unknown levels fall back to info;
// the dev environment gets human-readable console output.
func NewLogger(level, env string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	out := zerolog.New(os.Stdout)
	if strings.EqualFold(env, "dev") {
		out = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr})
	}
	return out.With().Timestamp().Logger().Level(lvl)
}
