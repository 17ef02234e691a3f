package main

import (
	"context"

	"github.com/rs/zerolog"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"jan-server/services/media-ingest/internal/config"
	domain "jan-server/services/media-ingest/internal/domain/media"
	"jan-server/services/media-ingest/internal/infrastructure/auth"
	"jan-server/services/media-ingest/internal/infrastructure/cache"
	"jan-server/services/media-ingest/internal/infrastructure/database"
	"jan-server/services/media-ingest/internal/infrastructure/dispatch"
	"jan-server/services/media-ingest/internal/infrastructure/extractor"
	"jan-server/services/media-ingest/internal/infrastructure/notification"
	"jan-server/services/media-ingest/internal/infrastructure/rendition"
	"jan-server/services/media-ingest/internal/infrastructure/repository/category"
	repo "jan-server/services/media-ingest/internal/infrastructure/repository/media"
	"jan-server/services/media-ingest/internal/infrastructure/storage"
	"jan-server/services/media-ingest/internal/interfaces/httpserver"
)

var version = "dev"

func newDatabaseConfig(cfg *config.Config) database.Config {
	return database.Config{
		DSN:             cfg.GetDatabaseWriteDSN(),
		ReadDSN:         cfg.GetDatabaseReadDSN(),
		MaxIdleConns:    cfg.DBMaxIdleConns,
		MaxOpenConns:    cfg.DBMaxOpenConns,
		ConnMaxLifetime: cfg.DBConnLifetime,
		LogLevel:        gormlogger.Warn,
	}
}

func newGormDB(ctx context.Context, cfg database.Config, log zerolog.Logger) (*gorm.DB, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, err
	}
	if err := database.AutoMigrate(ctx, db, log); err != nil {
		return nil, err
	}
	return db, nil
}

// newRedisCache returns nil when REDIS_URL is unset; caching, invalidation
// and cross-instance locks are then disabled.
func newRedisCache(cfg *config.Config, log zerolog.Logger) (*cache.RedisCache, error) {
	if cfg.RedisURL == "" {
		log.Warn().Msg("REDIS_URL not set, running without cache and distributed locks")
		return nil, nil
	}
	return cache.NewRedisCache(cfg.RedisURL, cfg.CachePrefix, log)
}

func newSentryReporter(cfg *config.Config) (*dispatch.SentryReporter, error) {
	return dispatch.InitSentry(cfg.SentryDSN, cfg.Environment, cfg.ServiceName+"@"+version)
}

func newDispatcher(cfg *config.Config, sentryReporter *dispatch.SentryReporter, log zerolog.Logger) *dispatch.Dispatcher {
	var reporter dispatch.Reporter = dispatch.NoopReporter{}
	if sentryReporter != nil {
		reporter = sentryReporter
	}
	return dispatch.NewDispatcher(cfg.SideEffectTimeout, reporter, log)
}

func newCategoryResolver(cfg *config.Config, db *gorm.DB) (*category.Resolver, error) {
	return category.NewResolver(category.NewRepository(db), cfg.CategoryCacheSize, cfg.CategoryCacheTTL)
}

func newMediaRepository(cfg *config.Config, db *gorm.DB, redisCache *cache.RedisCache, log zerolog.Logger) domain.Repository {
	base := repo.NewRepository(db)
	if redisCache == nil {
		return base
	}
	return cache.NewCachedRepository(base, redisCache, cfg.AssetCacheTTL, log)
}

func newMediaService(
	cfg *config.Config,
	repository domain.Repository,
	store storage.Backend,
	categories *category.Resolver,
	redisCache *cache.RedisCache,
	dispatcher *dispatch.Dispatcher,
	log zerolog.Logger,
) *domain.Service {
	deps := domain.Dependencies{
		Repository: repository,
		Storage:    store,
		Generator:  rendition.NewGenerator(cfg, store, log),
		Colors:     extractor.NewColorExtractor(),
		Exif:       extractor.NewExifExtractor(),
		Categories: categories,
		Dispatcher: dispatcher,
	}
	if sink := notification.NewWebhookSink(cfg.NotificationWebhookURL, cfg.SideEffectTimeout); sink != nil {
		deps.Notifier = sink
	}
	if redisCache != nil {
		deps.Cache = cache.NewInvalidator(redisCache)
		deps.Locker = redisCache
	}
	return domain.NewService(cfg, deps, log)
}

func newReadinessChecks(db *gorm.DB, store storage.Backend, redisCache *cache.RedisCache) map[string]httpserver.ReadinessCheck {
	checks := map[string]httpserver.ReadinessCheck{
		"database": func(ctx context.Context) error {
			return database.Ping(ctx, db)
		},
		"storage": store.Health,
	}
	if redisCache != nil {
		checks["redis"] = redisCache.HealthCheck
	}
	return checks
}

func newHTTPServer(cfg *config.Config, log zerolog.Logger, service *domain.Service, validator *auth.Validator, checks map[string]httpserver.ReadinessCheck) *httpserver.HttpServer {
	return httpserver.New(cfg, log, service, validator, checks)
}
