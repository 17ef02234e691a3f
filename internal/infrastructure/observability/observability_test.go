package observability

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jan-server/services/media-ingest/internal/config"
)

func TestParseHeaders(t *testing.T) {
	assert.Equal(t, map[string]string{"api-key": "abc", "tenant": "jan"}, ParseHeaders("api-key=abc, tenant = jan ,broken"))
	assert.Empty(t, ParseHeaders(""))
}

func TestSetup_DisabledIsNoop(t *testing.T) {
	shutdown, err := Setup(context.Background(), &config.Config{EnableTracing: false}, zerolog.Nop())
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}
