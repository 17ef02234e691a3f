package media

import (
	"context"
	"strings"

	"jan-server/services/media-ingest/internal/utils/platformerrors"
	"jan-server/services/media-ingest/utils/mediaid"
)

// Get returns a committed asset.
func (s *Service) Get(ctx context.Context, id string) (*MediaAsset, error) {
	id = strings.TrimSpace(id)
	if !mediaid.IsValid(id) {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeNotFound, "media not found", nil, "ca8d9cd7-07e0-4238-ad2a-ff42d7aa23e1")
	}
	asset, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to load media")
	}
	if asset == nil {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeNotFound, "media not found", nil, "4e7b58a2-5862-42ff-909e-dfb01eaec352")
	}
	return asset, nil
}

// Delete removes the record first and then its renditions. A failed blob
// delete leaves orphans for the sweeper and does not fail the call.
func (s *Service) Delete(ctx context.Context, caller Caller, id string) error {
	asset, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if !caller.CanManage(asset) {
		return platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeForbidden, "only the owner or an administrator can delete this media", nil, "ef6132e1-a5aa-4bf3-a89f-3237586935b6")
	}
	if err := s.repo.Delete(ctx, asset.ID); err != nil {
		return platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to delete media")
	}

	log := s.log.With().Str("media_id", asset.ID).Str("logical_asset_id", asset.LogicalAssetID).Logger()
	s.rollback(ctx, log, asset.LogicalAssetID)
	log.Info().Str("caller_id", caller.ID).Msg("media deleted")

	s.dispatcher.Dispatch(TaskCacheInvalidation, func(ctx context.Context) error {
		return s.cache.InvalidateAsset(ctx, asset)
	})
	return nil
}

// Moderate sets the review status. Administrators only.
func (s *Service) Moderate(ctx context.Context, req ModerationRequest) (*MediaAsset, error) {
	if !req.Caller.IsAdmin {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeForbidden, "moderation requires an administrator", nil, "03d2cb73-1b84-49d1-8654-bf5f111aea2b")
	}
	state := ModerationState(strings.ToLower(strings.TrimSpace(string(req.State))))
	if !state.IsValid() {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation, "moderation_state must be one of pending, approved, rejected, flagged", nil, "67d83eb5-2e8f-47c0-9846-c7eadd635770")
	}

	asset, err := s.Get(ctx, req.AssetID)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	asset.ModerationState = state
	asset.IsModerated = state != ModerationPending
	asset.ModeratedAt = &now
	asset.ModeratedBy = req.Caller.ID
	asset.UpdatedAt = now
	if state == ModerationPending {
		asset.ModeratedAt = nil
		asset.ModeratedBy = ""
	}

	stored, err := s.repo.UpdateModeration(ctx, asset)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to update moderation state")
	}

	s.dispatcher.Dispatch(TaskCacheInvalidation, func(ctx context.Context) error {
		return s.cache.InvalidateAsset(ctx, stored)
	})
	return stored, nil
}

// RecordDownload bumps the total and today's download counters and returns the updated asset.
func (s *Service) RecordDownload(ctx context.Context, id string) (*MediaAsset, error) {
	id = strings.TrimSpace(id)
	if !mediaid.IsValid(id) {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeNotFound, "media not found", nil, "a86a4914-b3c3-4b6f-a00f-044392d65049")
	}
	day := s.now().UTC().Format("2006-01-02")
	asset, err := s.repo.IncrementDownloads(ctx, id, day)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to record download")
	}
	if asset == nil {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeNotFound, "media not found", nil, "cb0e5bc3-1b17-433d-bebb-04965cdadf23")
	}
	return asset, nil
}
