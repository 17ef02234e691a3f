package media

import (
	"context"
	"errors"
	"strings"
)

const (
	SweepStaging = "staging"
	SweepOrphans = "orphan_renditions"

	orphanLookupBatch = 500
)

// SweepResult summarises one sweep pass.
type SweepResult struct {
	Scanned int
	Removed int
	Failed  int
	// Skipped is set when another instance held the sweep lock.
	Skipped bool
}

// SweepStaging deletes staged raw uploads older than StagingMaxAge. These are
// uploads whose credential was used but which were never finalized.
func (s *Service) SweepStaging(ctx context.Context) (SweepResult, error) {
	var result SweepResult
	err := s.withSweepLock(ctx, SweepStaging, &result, func(ctx context.Context) error {
		objects, err := s.storage.List(ctx, s.cfg.StagingPrefix+"/")
		if err != nil {
			return err
		}
		cutoff := s.now().Add(-s.cfg.StagingMaxAge)
		for _, obj := range objects {
			result.Scanned++
			if obj.LastModified.After(cutoff) {
				continue
			}
			if err := s.storage.DeleteByKey(ctx, obj.Key); err != nil {
				result.Failed++
				s.log.Warn().Err(err).Str("key", obj.Key).Msg("staging sweep delete failed")
				continue
			}
			result.Removed++
		}
		return nil
	})
	return result, err
}

// SweepOrphanRenditions removes rendition sets with no record whose newest
// object is older than OrphanSweepMinAge. This covers a crash between
// rendition generation and commit, where no rollback ever ran.
func (s *Service) SweepOrphanRenditions(ctx context.Context) (SweepResult, error) {
	var result SweepResult
	err := s.withSweepLock(ctx, SweepOrphans, &result, func(ctx context.Context) error {
		prefix := s.cfg.RenditionPrefix + "/"
		objects, err := s.storage.List(ctx, prefix)
		if err != nil {
			return err
		}

		cutoff := s.now().Add(-s.cfg.OrphanSweepMinAge)
		fresh := make(map[string]bool)
		var ids []string
		for _, obj := range objects {
			result.Scanned++
			id, _, ok := strings.Cut(strings.TrimPrefix(obj.Key, prefix), "/")
			if !ok || id == "" {
				continue
			}
			if _, seen := fresh[id]; !seen {
				ids = append(ids, id)
				fresh[id] = false
			}
			if obj.LastModified.After(cutoff) {
				fresh[id] = true
			}
		}

		var candidates []string
		for _, id := range ids {
			if !fresh[id] {
				candidates = append(candidates, id)
			}
		}

		for start := 0; start < len(candidates); start += orphanLookupBatch {
			batch := candidates[start:min(start+orphanLookupBatch, len(candidates))]
			existing, err := s.repo.ExistingLogicalIDs(ctx, batch)
			if err != nil {
				return err
			}
			for _, id := range batch {
				if existing[id] {
					continue
				}
				removed, err := s.storage.DeleteByLogicalID(ctx, id)
				result.Removed += removed
				if err != nil {
					result.Failed++
					s.log.Warn().Err(err).Str("logical_asset_id", id).Msg("orphan sweep delete failed")
					continue
				}
				s.log.Info().Str("logical_asset_id", id).Int("objects", removed).Msg("orphan renditions removed")
			}
		}
		return nil
	})
	return result, err
}

func (s *Service) withSweepLock(ctx context.Context, name string, result *SweepResult, fn func(ctx context.Context) error) error {
	err := s.locker.WithLock(ctx, "media:sweep:"+name, s.cfg.SweepLockTTL, fn)
	if errors.Is(err, ErrLockNotAcquired) {
		result.Skipped = true
		s.log.Debug().Str("sweep", name).Msg("sweep running elsewhere, skipped")
		return nil
	}
	return err
}
