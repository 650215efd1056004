// slog.go installs the process-wide structured logger. Handlers and
// repositories log through the slog default, so the access log, audit write
// failures, and login outcomes all share one format and level.
package telemetry

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// SetupLogger installs the global slog default from the logging config.
// Format "json" selects the machine-readable handler for production; anything
// else falls back to the text handler for local work. Level accepts debug,
// info, warn/warning, and error (case-insensitive), defaulting to info.
// Debug level additionally records source locations.
func SetupLogger(format, level string) {
	slog.SetDefault(slog.New(newLogHandler(os.Stdout, format, level)))
	slog.Info("logger initialised", "format", format, "level", parseLogLevel(level).String())
}

func newLogHandler(w io.Writer, format, level string) slog.Handler {
	lvl := parseLogLevel(level)
	opts := &slog.HandlerOptions{
		Level:     lvl,
		AddSource: lvl == slog.LevelDebug,
	}
	if strings.EqualFold(format, "json") {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
