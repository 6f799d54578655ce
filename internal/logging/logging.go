package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Setup configures the global zerolog logger. Human-readable console output
// goes to stderr unless jsonOut is set; verbose lowers the level to debug.
func Setup(verbose, jsonOut bool) {
	SetupWriter(os.Stderr, verbose, jsonOut)
}

// SetupWriter is Setup with an explicit destination.
func SetupWriter(w io.Writer, verbose, jsonOut bool) {
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339

	if jsonOut {
		log.Logger = zerolog.New(w).With().Timestamp().Logger()
		return
	}
	log.Logger = zerolog.New(zerolog.ConsoleWriter{
		Out:        w,
		TimeFormat: "15:04:05",
	}).With().Timestamp().Logger()
}
