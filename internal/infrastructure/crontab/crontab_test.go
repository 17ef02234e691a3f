package crontab

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jan-server/services/media-ingest/internal/config"
	"jan-server/services/media-ingest/internal/domain/media"
)

type fakeSweeper struct {
	calls      []string
	stagingErr error
}

func (f *fakeSweeper) SweepStaging(context.Context) (media.SweepResult, error) {
	f.calls = append(f.calls, media.SweepStaging)
	return media.SweepResult{Scanned: 3, Removed: 1}, f.stagingErr
}

func (f *fakeSweeper) SweepOrphanRenditions(context.Context) (media.SweepResult, error) {
	f.calls = append(f.calls, media.SweepOrphans)
	return media.SweepResult{Skipped: true}, nil
}

func TestRunSweeps_RunsBothEvenWhenOneFails(t *testing.T) {
	sweeper := &fakeSweeper{stagingErr: errors.New("list failed")}
	c := NewCrontab(&config.Config{StagingSweepEnabled: true}, sweeper, zerolog.Nop())

	c.runSweeps(context.Background())
	assert.Equal(t, []string{media.SweepStaging, media.SweepOrphans}, sweeper.calls)
}

func TestRun_InvalidScheduleFails(t *testing.T) {
	c := NewCrontab(&config.Config{StagingSweepEnabled: true, StagingSweepCron: "every tuesday"}, &fakeSweeper{}, zerolog.Nop())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.Error(t, c.Run(ctx))
}

func TestRun_DisabledReturnsOnCancel(t *testing.T) {
	sweeper := &fakeSweeper{}
	c := NewCrontab(&config.Config{StagingSweepEnabled: false}, sweeper, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, c.Run(ctx))
	assert.Empty(t, sweeper.calls)
}
