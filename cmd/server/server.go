package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"jan-server/services/media-ingest/internal/config"
	"jan-server/services/media-ingest/internal/infrastructure/auth"
	"jan-server/services/media-ingest/internal/infrastructure/cache"
	"jan-server/services/media-ingest/internal/infrastructure/crontab"
	"jan-server/services/media-ingest/internal/infrastructure/dispatch"
	"jan-server/services/media-ingest/internal/infrastructure/logger"
	"jan-server/services/media-ingest/internal/infrastructure/observability"
	"jan-server/services/media-ingest/internal/infrastructure/storage"
	"jan-server/services/media-ingest/internal/interfaces/httpserver"
)

// @title Media Ingest API
// @version 1.0
// @description Image ingestion with staged uploads, rendition generation and metadata extraction
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
type Application struct {
	cfg        *config.Config
	httpServer *httpserver.HttpServer
	crontab    *crontab.Crontab
	dispatcher *dispatch.Dispatcher
	sentry     *dispatch.SentryReporter
	redis      *cache.RedisCache
	log        zerolog.Logger
}

func NewApplication(
	cfg *config.Config,
	httpServer *httpserver.HttpServer,
	ctab *crontab.Crontab,
	dispatcher *dispatch.Dispatcher,
	sentryReporter *dispatch.SentryReporter,
	redisCache *cache.RedisCache,
	log zerolog.Logger,
) *Application {
	return &Application{
		cfg:        cfg,
		httpServer: httpServer,
		crontab:    ctab,
		dispatcher: dispatcher,
		sentry:     sentryReporter,
		redis:      redisCache,
		log:        log,
	}
}

// Start serves HTTP and runs the sweep schedule until ctx is cancelled, then
// waits for in-flight side effects before releasing shared clients.
func (a *Application) Start(ctx context.Context) error {
	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return a.httpServer.Run(groupCtx)
	})
	group.Go(func() error {
		return a.crontab.Run(groupCtx)
	})
	runErr := group.Wait()

	drainCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()
	if err := a.dispatcher.Drain(drainCtx); err != nil {
		a.log.Warn().Err(err).Msg("side effects still running at shutdown")
	}
	if a.sentry != nil {
		a.sentry.Flush(2 * time.Second)
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.log.Warn().Err(err).Msg("close redis")
		}
	}
	return runErr
}

func main() {
	loadEnvFiles()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	log := logger.New(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := observability.Setup(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("initialize observability")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := shutdownTelemetry(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("shutdown telemetry")
		}
	}()

	app, err := buildApplication(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("build application")
	}

	if err := app.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("application stopped with error")
	}

	log.Info().Msg("application exited cleanly")
}

func buildApplication(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*Application, error) {
	sentryReporter, err := newSentryReporter(cfg)
	if err != nil {
		return nil, fmt.Errorf("initialize sentry: %w", err)
	}

	db, err := newGormDB(ctx, newDatabaseConfig(cfg), log)
	if err != nil {
		return nil, fmt.Errorf("initialize database: %w", err)
	}

	store, err := storage.New(ctx, cfg, log)
	if err != nil {
		return nil, fmt.Errorf("initialize storage: %w", err)
	}

	redisCache, err := newRedisCache(cfg, log)
	if err != nil {
		return nil, fmt.Errorf("initialize redis: %w", err)
	}

	categories, err := newCategoryResolver(cfg, db)
	if err != nil {
		return nil, fmt.Errorf("initialize category resolver: %w", err)
	}

	authValidator, err := auth.NewValidator(ctx, cfg, log)
	if err != nil {
		return nil, fmt.Errorf("initialize auth: %w", err)
	}

	dispatcher := newDispatcher(cfg, sentryReporter, log)
	repository := newMediaRepository(cfg, db, redisCache, log)
	service := newMediaService(cfg, repository, store, categories, redisCache, dispatcher, log)

	httpServer := newHTTPServer(cfg, log, service, authValidator, newReadinessChecks(db, store, redisCache))
	ctab := crontab.NewCrontab(cfg, service, log)

	return NewApplication(cfg, httpServer, ctab, dispatcher, sentryReporter, redisCache, log), nil
}

func loadEnvFiles() {
	paths := []string{".env", "../.env"}
	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Overload(path); err != nil {
				fmt.Fprintf(os.Stderr, "warning: failed to load %s: %v\n", path, err)
			}
		}
	}
}
