package tickwheel

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

const consoleTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// logOutput is where NewLogger writes, swapped in tests.
var logOutput io.Writer = os.Stderr

// NewLogger builds a zerolog logger from cfg: human readable console lines
// when Console is set, JSON lines otherwise.
func NewLogger(cfg LogConfig) zerolog.Logger {
	var w io.Writer = logOutput
	if cfg.Console {
		w = zerolog.ConsoleWriter{Out: logOutput, TimeFormat: consoleTimeFormat}
	}

	return zerolog.New(w).
		Level(parseLevel(cfg.Level, zerolog.InfoLevel)).
		With().
		Timestamp().
		Str("component", "tickwheel").
		Logger()
}

func parseLevel(s string, def zerolog.Level) zerolog.Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "TRACE":
		return zerolog.TraceLevel
	case "DEBUG":
		return zerolog.DebugLevel
	case "INFO":
		return zerolog.InfoLevel
	case "WARN", "WARNING":
		return zerolog.WarnLevel
	case "ERROR":
		return zerolog.ErrorLevel
	case "OFF", "DISABLED":
		return zerolog.Disabled
	default:
		return def
	}
}
