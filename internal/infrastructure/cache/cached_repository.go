package cache

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"jan-server/services/media-ingest/internal/domain/media"
)

// CachedRepository serves GetByID from redis and falls back to the wrapped
// repository. Writes pass through; the invalidator clears stale entries.
type CachedRepository struct {
	media.Repository
	cache *RedisCache
	ttl   time.Duration
	log   zerolog.Logger
}

func NewCachedRepository(repo media.Repository, cache *RedisCache, ttl time.Duration, log zerolog.Logger) *CachedRepository {
	return &CachedRepository{
		Repository: repo,
		cache:      cache,
		ttl:        ttl,
		log:        log.With().Str("component", "asset-cache").Logger(),
	}
}

func (c *CachedRepository) GetByID(ctx context.Context, id string) (*media.MediaAsset, error) {
	key := assetKey(c.cache.prefix, id)
	cached, err := GetJSON[media.MediaAsset](ctx, c.cache, key)
	if err != nil {
		c.log.Warn().Err(err).Str("asset_id", id).Msg("asset cache read failed")
	}
	if cached != nil {
		return cached, nil
	}

	asset, err := c.Repository.GetByID(ctx, id)
	if err != nil || asset == nil {
		return asset, err
	}
	if err := c.cache.SetJSON(ctx, key, asset, c.ttl); err != nil {
		c.log.Warn().Err(err).Str("asset_id", id).Msg("asset cache write failed")
	}
	return asset, nil
}

// UpdateModeration drops the cached copy before returning so the next read sees the new state.
func (c *CachedRepository) UpdateModeration(ctx context.Context, asset *media.MediaAsset) (*media.MediaAsset, error) {
	stored, err := c.Repository.UpdateModeration(ctx, asset)
	if err == nil {
		if err := c.cache.Unlink(ctx, assetKey(c.cache.prefix, asset.ID)); err != nil {
			c.log.Warn().Err(err).Str("asset_id", asset.ID).Msg("asset cache unlink failed")
		}
	}
	return stored, err
}

// The counters change on every download, so the cached copy is dropped with them.
func (c *CachedRepository) IncrementDownloads(ctx context.Context, id, day string) (*media.MediaAsset, error) {
	asset, err := c.Repository.IncrementDownloads(ctx, id, day)
	if err == nil && asset != nil {
		if err := c.cache.Unlink(ctx, assetKey(c.cache.prefix, id)); err != nil {
			c.log.Warn().Err(err).Str("asset_id", id).Msg("asset cache unlink failed")
		}
	}
	return asset, err
}
