package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"jan-server/services/media-ingest/internal/config"
)

const (
	formatConsole = "console"
	formatJSON    = "json"
)

// New builds the root logger. Development gets the console writer; every
// other environment emits JSON unless MEDIA_LOG_FORMAT says otherwise.
func New(cfg *config.Config) zerolog.Logger {
	return build(cfg, os.Stdout)
}

func build(cfg *config.Config, out io.Writer) zerolog.Logger {
	// Sweep and side-effect timings are logged with Dur.
	zerolog.DurationFieldUnit = time.Millisecond

	if resolveFormat(cfg) == formatConsole {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}
	return zerolog.New(out).
		Level(parseLevel(cfg.LogLevel)).
		With().
		Timestamp().
		Str("service", cfg.ServiceName).
		Str("environment", cfg.Environment).
		Logger()
}

func resolveFormat(cfg *config.Config) string {
	switch strings.ToLower(strings.TrimSpace(cfg.LogFormat)) {
	case formatJSON:
		return formatJSON
	case formatConsole:
		return formatConsole
	}
	if strings.EqualFold(cfg.Environment, "development") {
		return formatConsole
	}
	return formatJSON
}

func parseLevel(raw string) zerolog.Level {
	level, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(raw)))
	if err != nil || level == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return level
}
