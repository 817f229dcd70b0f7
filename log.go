package resilientclient

import (
	"os"

	"github.com/rs/zerolog"
)

// defaultLogger emits low-volume internal diagnostics only — breaker
// state transitions, never per-request logging.
// Request-level observability belongs on the caller's span, not this
// logger.
func defaultLogger() zerolog.Logger {
	return zerolog.New(os.Stderr).With().Timestamp().Str("component", "resilientclient").Logger()
}
