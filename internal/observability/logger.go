package observability

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// LoggingConfig contains logger configuration options.
type LoggingConfig struct {
	// Level is the minimum log level (trace, debug, info, warn, error).
	Level string

	// Format is json or console.
	Format string

	// Output is stdout or stderr.
	Output string
}

// NewLogger creates a zerolog logger for one binary. component is attached to
// every entry so logs from the batch commands can be told apart.
func NewLogger(cfg LoggingConfig, component string) zerolog.Logger {
	var output io.Writer
	switch strings.ToLower(cfg.Output) {
	case "stderr":
		output = os.Stderr
	default:
		output = os.Stdout
	}

	zerolog.TimeFieldFormat = time.RFC3339
	if strings.EqualFold(cfg.Format, "console") || strings.EqualFold(cfg.Format, "pretty") {
		output = zerolog.ConsoleWriter{Out: output, TimeFormat: time.RFC3339}
	}

	level := parseLevel(cfg.Level)
	return zerolog.New(output).
		Level(level).
		With().
		Timestamp().
		Str("component", component).
		Logger()
}

func parseLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}
