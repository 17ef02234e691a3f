//go:build wireinject

package main

import (
	"context"

	"github.com/google/wire"
	"github.com/rs/zerolog"

	"jan-server/services/media-ingest/internal/config"
	domain "jan-server/services/media-ingest/internal/domain/media"
	"jan-server/services/media-ingest/internal/infrastructure/auth"
	"jan-server/services/media-ingest/internal/infrastructure/crontab"
	"jan-server/services/media-ingest/internal/infrastructure/storage"
)

var infrastructureSet = wire.NewSet(
	newDatabaseConfig,
	newGormDB,
	storage.New,
	newRedisCache,
	newSentryReporter,
	newDispatcher,
	auth.NewValidator,
)

var mediaSet = wire.NewSet(
	newCategoryResolver,
	newMediaRepository,
	newMediaService,
	wire.Bind(new(crontab.Sweeper), new(*domain.Service)),
	crontab.NewCrontab,
	newReadinessChecks,
	newHTTPServer,
)

// BuildApplication assembles the media ingest service with Wire.
func BuildApplication(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*Application, error) {
	wire.Build(
		infrastructureSet,
		mediaSet,
		NewApplication,
	)
	return nil, nil
}
