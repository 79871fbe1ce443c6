// Package logger builds the process-wide root logger. Every component derives
// its own sub-logger from this one via With().Str("component", ...), so the
// format, level floor and sampling decisions made here apply faucet-wide.
package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// sampleEvery thins repetitive log lines when sampling is enabled. Dispense
// traffic is bursty; one line in five keeps the shape visible without
// flooding stdout on a drained faucet being hammered by a script.
const sampleEvery = 5

// New returns the root logger. logFormat selects the writer: "json" emits
// machine-readable lines for collectors, anything else gets the
// human-readable console writer. logLevel is a zerolog numeric level and acts
// as a floor; events below it are dropped at the call site.
func New(logLevel int, logFormat string, logSampler bool) zerolog.Logger {
	var writer io.Writer
	switch logFormat {
	case "json":
		writer = os.Stdout
	default:
		writer = zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		}
	}

	root := zerolog.New(writer).
		Level(zerolog.Level(logLevel)).
		With().
		Timestamp().
		Logger()

	if logSampler {
		root = root.Sample(&zerolog.BasicSampler{N: sampleEvery})
	}
	return root
}
