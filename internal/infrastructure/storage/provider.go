package storage

import (
	"context"

	"github.com/rs/zerolog"

	"jan-server/services/media-ingest/internal/config"
	"jan-server/services/media-ingest/internal/domain/media"
)

// Backend is a blob store the service can also health-check.
type Backend interface {
	media.Storage
	Health(ctx context.Context) error
}

var (
	_ Backend = (*S3Storage)(nil)
	_ Backend = (*LocalStorage)(nil)
)

// New creates the storage backend selected by MEDIA_STORAGE_BACKEND.
func New(ctx context.Context, cfg *config.Config, log zerolog.Logger) (Backend, error) {
	if cfg.IsLocalStorage() {
		return NewLocalStorage(cfg, log)
	}
	return NewS3Storage(ctx, cfg, log)
}
