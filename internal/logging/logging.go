// Package logging configures the process-wide zerolog logger.
//
// Output goes to stderr only: stdout is reserved for the MCP protocol.
package logging

import (
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// EnvLogLevel selects the log level (debug, info, warn, error)
const EnvLogLevel = "NEXUS_LOG_LEVEL"

// New creates a logger writing structured JSON to stderr
func New() zerolog.Logger {
	level := zerolog.InfoLevel
	if raw := os.Getenv(EnvLogLevel); raw != "" {
		if parsed, err := zerolog.ParseLevel(strings.ToLower(raw)); err == nil {
			level = parsed
		}
	}

	return zerolog.New(os.Stderr).
		Level(level).
		With().
		Timestamp().
		Logger()
}
