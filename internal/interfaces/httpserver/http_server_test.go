package httpserver

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jan-server/services/media-ingest/internal/config"
	"jan-server/services/media-ingest/internal/infrastructure/auth"
)

func newServer(t *testing.T, checks map[string]ReadinessCheck) *HttpServer {
	t.Helper()
	cfg := &config.Config{ServiceName: "media-ingest", MaxMediaBytes: 1024, ShutdownTimeout: time.Second}
	validator, err := auth.NewValidator(context.Background(), cfg, zerolog.Nop())
	require.NoError(t, err)
	return New(cfg, zerolog.Nop(), nil, validator, checks)
}

func serve(s *HttpServer, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestReadyz(t *testing.T) {
	s := newServer(t, map[string]ReadinessCheck{
		"database": func(context.Context) error { return nil },
	})
	rec := serve(s, "/readyz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"database":"ok"`)
}

func TestReadyz_FailingDependency(t *testing.T) {
	s := newServer(t, map[string]ReadinessCheck{
		"database": func(context.Context) error { return nil },
		"redis":    func(context.Context) error { return errors.New("connection refused") },
	})
	rec := serve(s, "/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "connection refused")
}

func TestCoreRoutes(t *testing.T) {
	s := newServer(t, nil)
	for _, path := range []string{"/healthz", "/health/auth", "/metrics"} {
		assert.Equal(t, http.StatusOK, serve(s, path).Code, path)
	}
	rec := serve(s, "/healthz")
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}
