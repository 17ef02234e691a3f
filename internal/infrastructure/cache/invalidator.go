package cache

import (
	"context"
	"errors"

	"jan-server/services/media-ingest/internal/domain/media"
)

// Invalidator drops every cached response that embeds or lists an asset.
type Invalidator struct {
	cache *RedisCache
}

func NewInvalidator(cache *RedisCache) *Invalidator {
	return &Invalidator{cache: cache}
}

var _ media.CacheInvalidator = (*Invalidator)(nil)

func (i *Invalidator) InvalidateAsset(ctx context.Context, asset *media.MediaAsset) error {
	if asset == nil {
		return nil
	}
	var errs []error
	if err := i.cache.Unlink(ctx, assetKey(i.cache.prefix, asset.ID)); err != nil {
		errs = append(errs, err)
	}
	for _, pattern := range listPatterns(i.cache.prefix, asset) {
		if _, err := i.cache.DeletePattern(ctx, pattern); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func assetKey(prefix, id string) string {
	return joinKey(prefix, "asset", id)
}

// listPatterns covers the owner, category and global listing pages an asset can appear in.
func listPatterns(prefix string, asset *media.MediaAsset) []string {
	patterns := []string{joinKey(prefix, "list", "*")}
	if asset.OwnerID != "" {
		patterns = append(patterns, joinKey(prefix, "owner", asset.OwnerID, "*"))
	}
	if asset.CategoryID != "" {
		patterns = append(patterns, joinKey(prefix, "category", asset.CategoryID, "*"))
	}
	return patterns
}
