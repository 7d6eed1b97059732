/*
Package logger builds the zerolog loggers used by the server and the oracle
worker, and adapts them to the logging interfaces of the libraries the
binaries embed.
*/
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

/*
Log attribute keys shared by more than one package. Package specific keys
are defined where they are used.
*/
const (
	ModuleKey     = "module"
	RequestIDKey  = "request_id"
	RequestKeyKey = "request_key"
	FlightKeyKey  = "flight_key"
)

const (
	FormatConsole = "console"
	FormatJSON    = "json"
)

type Config struct {
	// Level is one of zerolog's level names: trace, debug, info, warn, error.
	Level string
	// Format is FormatConsole or FormatJSON.
	Format string
	// Output defaults to stderr.
	Output io.Writer
}

// New creates a logger from cfg.
func New(cfg Config) (zerolog.Logger, error) {
	level := zerolog.InfoLevel
	if cfg.Level != "" {
		l, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
		if err != nil {
			return zerolog.Nop(), fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
		}
		level = l
	}

	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	switch strings.ToLower(cfg.Format) {
	case "", FormatConsole:
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	case FormatJSON:
	default:
		return zerolog.Nop(), fmt.Errorf("unknown log format %q", cfg.Format)
	}

	return zerolog.New(out).Level(level).With().Timestamp().Logger(), nil
}

// Module returns a sub-logger tagged with the module name.
func Module(l zerolog.Logger, name string) zerolog.Logger {
	return l.With().Str(ModuleKey, name).Logger()
}
