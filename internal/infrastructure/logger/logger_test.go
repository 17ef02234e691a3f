package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jan-server/services/media-ingest/internal/config"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zerolog.InfoLevel, parseLevel(""))
	assert.Equal(t, zerolog.DebugLevel, parseLevel(" DEBUG "))
	assert.Equal(t, zerolog.InfoLevel, parseLevel("chatty"))
}

func TestResolveFormat(t *testing.T) {
	assert.Equal(t, formatConsole, resolveFormat(&config.Config{Environment: "development"}))
	assert.Equal(t, formatJSON, resolveFormat(&config.Config{Environment: "production"}))
	assert.Equal(t, formatJSON, resolveFormat(&config.Config{Environment: "development", LogFormat: "JSON"}))
	assert.Equal(t, formatConsole, resolveFormat(&config.Config{Environment: "production", LogFormat: "console"}))
}

func TestBuild_JSONCarriesServiceFieldsAndLevel(t *testing.T) {
	var buf bytes.Buffer
	log := build(&config.Config{ServiceName: "media-ingest", Environment: "production", LogLevel: "warn"}, &buf)

	log.Info().Msg("dropped")
	assert.Zero(t, buf.Len())

	log.Warn().Str("component", "dispatcher").Msg("queue full")
	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "media-ingest", entry["service"])
	assert.Equal(t, "production", entry["environment"])
	assert.Equal(t, "dispatcher", entry["component"])
	assert.Equal(t, "queue full", entry["message"])
}
