// Package rtlog provides the structured logger used throughout the runtime:
// a console zerolog writer by default, reconfigurable by the CLI for quiet
// runs.
package rtlog

import (
	"os"

	"github.com/rs/zerolog"
	logger "github.com/rs/zerolog/log"
)

// Log is the package-wide logger, writing human-readable lines to stderr.
var Log = logger.With().Timestamp().Logger().Output(zerolog.ConsoleWriter{Out: os.Stderr})

func init() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
}

// Quiet silences Log down to warnings and above; called by the CLI's -quiet
// flag.
func Quiet() {
	Log = Log.Level(zerolog.WarnLevel)
}
