package crontab

import (
	"context"
	"time"

	"github.com/mileusna/crontab"
	"github.com/rs/zerolog"

	"jan-server/services/media-ingest/internal/config"
	"jan-server/services/media-ingest/internal/domain/media"
	"jan-server/services/media-ingest/internal/infrastructure/metrics"
	"jan-server/services/media-ingest/internal/utils/platformerrors"
)

// SweepJobTimeout bounds one sweep pass.
const SweepJobTimeout = 10 * time.Minute

// Sweeper is the part of the media service the scheduler drives.
type Sweeper interface {
	SweepStaging(ctx context.Context) (media.SweepResult, error)
	SweepOrphanRenditions(ctx context.Context) (media.SweepResult, error)
}

type Crontab struct {
	ctab    *crontab.Crontab
	sweeper Sweeper
	cfg     *config.Config
	log     zerolog.Logger
}

func NewCrontab(cfg *config.Config, sweeper Sweeper, log zerolog.Logger) *Crontab {
	return &Crontab{
		ctab:    crontab.New(),
		sweeper: sweeper,
		cfg:     cfg,
		log:     log.With().Str("component", "crontab").Logger(),
	}
}

// Run schedules the sweeps and blocks until ctx is cancelled.
func (c *Crontab) Run(ctx context.Context) error {
	if !c.cfg.StagingSweepEnabled {
		c.log.Info().Msg("sweeps disabled")
		<-ctx.Done()
		return nil
	}

	if err := c.ctab.AddJob(c.cfg.StagingSweepCron, func() {
		jobCtx, cancel := context.WithTimeout(ctx, SweepJobTimeout)
		defer cancel()
		c.runSweeps(jobCtx)
	}); err != nil {
		return platformerrors.AsError(ctx, platformerrors.LayerInfrastructure, err, "failed to add sweep job")
	}
	c.log.Info().Str("schedule", c.cfg.StagingSweepCron).Msg("sweeps scheduled")

	<-ctx.Done()
	c.ctab.Shutdown()
	return nil
}

func (c *Crontab) runSweeps(ctx context.Context) {
	c.runSweep(ctx, media.SweepStaging, c.sweeper.SweepStaging)
	c.runSweep(ctx, media.SweepOrphans, c.sweeper.SweepOrphanRenditions)
}

func (c *Crontab) runSweep(ctx context.Context, name string, sweep func(context.Context) (media.SweepResult, error)) {
	start := time.Now()
	result, err := sweep(ctx)
	if err != nil {
		c.log.Error().Err(err).Str("sweep", name).Msg("sweep failed")
		return
	}
	if result.Skipped {
		return
	}
	metrics.RecordSwept(name, result.Removed)
	c.log.Info().
		Str("sweep", name).
		Int("scanned", result.Scanned).
		Int("removed", result.Removed).
		Int("failed", result.Failed).
		Dur("elapsed", time.Since(start)).
		Msg("sweep finished")
}
