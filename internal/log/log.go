package log

import (
	"os"

	"github.com/rs/zerolog"
)

// New builds a console logger for the given component writing to stderr,
// so document output on stdout stays clean for piping.
func New(component string, verbose bool) zerolog.Logger {
	out := zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: "15:04:05",
	}
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	return zerolog.New(out).
		Level(level).
		With().
		Timestamp().
		Str("component", component).
		Logger()
}
