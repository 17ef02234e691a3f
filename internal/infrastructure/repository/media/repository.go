package media

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/plugin/dbresolver"

	domain "jan-server/services/media-ingest/internal/domain/media"
	"jan-server/services/media-ingest/internal/infrastructure/database/entities"
	"jan-server/services/media-ingest/internal/utils/platformerrors"
)

// Repository handles media asset persistence.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

var _ domain.Repository = (*Repository)(nil)

// Create inserts the record. A unique violation on logical_asset_id or upload_id
// surfaces as a conflict wrapping domain.ErrDuplicateRecord.
func (r *Repository) Create(ctx context.Context, asset *domain.MediaAsset) error {
	entity := toEntity(asset)
	err := r.db.WithContext(ctx).Create(&entity).Error
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return platformerrors.NewError(
				ctx,
				platformerrors.LayerRepository,
				platformerrors.ErrorTypeConflict,
				"media record already exists",
				fmt.Errorf("%w: %v", domain.ErrDuplicateRecord, err),
				"0b1d2c88-1cc9-480d-8056-40b041318307",
			)
		}
		return platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeDatabaseError,
			"failed to create media record",
			err,
			"56c530bc-e0c5-46d3-afec-38144f3340d4",
		)
	}
	asset.CreatedAt = entity.CreatedAt
	asset.UpdatedAt = entity.UpdatedAt
	return nil
}

func (r *Repository) GetByID(ctx context.Context, id string) (*domain.MediaAsset, error) {
	var entity entities.MediaAsset
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&entity).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeDatabaseError,
			"failed to get media by id",
			err,
			"26e16e91-d762-48e6-963b-f57624cbab9b",
		)
	}
	return fromEntity(entity), nil
}

// FindByUploadID reads from the primary so a retry sees a commit that just landed.
func (r *Repository) FindByUploadID(ctx context.Context, uploadID string) (*domain.MediaAsset, error) {
	var entity entities.MediaAsset
	err := r.db.WithContext(ctx).
		Clauses(dbresolver.Write).
		Where("upload_id = ?", uploadID).
		First(&entity).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeDatabaseError,
			"failed to find media by upload id",
			err,
			"0680e8bf-c363-4ecb-b92b-252ad828ea4a",
		)
	}
	return fromEntity(entity), nil
}

func (r *Repository) ExistingLogicalIDs(ctx context.Context, ids []string) (map[string]bool, error) {
	found := make(map[string]bool, len(ids))
	if len(ids) == 0 {
		return found, nil
	}
	var rows []string
	err := r.db.WithContext(ctx).
		Clauses(dbresolver.Write).
		Model(&entities.MediaAsset{}).
		Where("logical_asset_id IN ?", ids).
		Pluck("logical_asset_id", &rows).Error
	if err != nil {
		return nil, platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeDatabaseError,
			"failed to look up logical asset ids",
			err,
			"3ac4535a-7c78-4dff-957a-55220b9dbb40",
		)
	}
	for _, id := range rows {
		found[id] = true
	}
	return found, nil
}

func (r *Repository) Delete(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).Where("id = ?", id).Delete(&entities.MediaAsset{})
	if result.Error != nil {
		return platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeDatabaseError,
			"failed to delete media record",
			result.Error,
			"d529281d-08b2-4d72-ae4c-10908f4a11b3",
		)
	}
	if result.RowsAffected == 0 {
		return platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeNotFound,
			"media not found",
			nil,
			"017c3a65-e2d3-4ffb-9b27-a53b527cc9a2",
		)
	}
	return nil
}

// UpdateModeration returns the row as written so callers never echo a cached copy.
func (r *Repository) UpdateModeration(ctx context.Context, asset *domain.MediaAsset) (*domain.MediaAsset, error) {
	var entity entities.MediaAsset
	result := r.db.WithContext(ctx).
		Model(&entity).
		Clauses(clause.Returning{}).
		Where("id = ?", asset.ID).
		Updates(map[string]any{
			"moderation_state": string(asset.ModerationState),
			"is_moderated":     asset.IsModerated,
			"moderated_at":     asset.ModeratedAt,
			"moderated_by":     asset.ModeratedBy,
			"updated_at":       asset.UpdatedAt,
		})
	if result.Error != nil {
		return nil, platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeDatabaseError,
			"failed to update moderation",
			result.Error,
			"08792c11-ab3b-4b35-a547-6744baf0e4d8",
		)
	}
	if result.RowsAffected == 0 {
		return nil, platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeNotFound,
			"media not found",
			nil,
			"830094d9-984f-4a85-87c1-d75bf3a86c7b",
		)
	}
	return fromEntity(entity), nil
}

// IncrementDownloads bumps the lifetime and per-day counters in one statement
// and returns the updated record, or nil when the id does not exist.
func (r *Repository) IncrementDownloads(ctx context.Context, id, day string) (*domain.MediaAsset, error) {
	var entity entities.MediaAsset
	result := r.db.WithContext(ctx).
		Model(&entity).
		Clauses(clause.Returning{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"downloads": gorm.Expr("downloads + 1"),
			"daily_downloads": gorm.Expr(
				"jsonb_set(daily_downloads, ARRAY[?]::text[], to_jsonb(COALESCE((daily_downloads->>?)::bigint, 0) + 1), true)",
				day, day,
			),
		})
	if result.Error != nil {
		return nil, platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeDatabaseError,
			"failed to record download",
			result.Error,
			"5e00289f-2058-4068-93b6-0d2ce4b72fbf",
		)
	}
	if result.RowsAffected == 0 {
		return nil, nil
	}
	return fromEntity(entity), nil
}

func toEntity(asset *domain.MediaAsset) entities.MediaAsset {
	renditions := make(map[string]entities.RenditionRecord, len(asset.Renditions))
	for key, rendition := range asset.Renditions {
		renditions[key.String()] = entities.RenditionRecord{
			Key:    rendition.StorageKey,
			URL:    rendition.URL,
			Width:  rendition.Width,
			Height: rendition.Height,
			Bytes:  rendition.Bytes,
		}
	}

	entity := entities.MediaAsset{
		ID:              asset.ID,
		LogicalAssetID:  asset.LogicalAssetID,
		Renditions:      datatypes.NewJSONType(renditions),
		Title:           asset.Title,
		OwnerID:         asset.OwnerID,
		CategoryID:      asset.CategoryID,
		Location:        asset.Location,
		CameraMake:      asset.CameraMake,
		CameraModel:     asset.CameraModel,
		FocalLength:     asset.FocalLength,
		Aperture:        asset.Aperture,
		ShutterSpeed:    asset.ShutterSpeed,
		ISO:             asset.ISO,
		DominantColors:  datatypes.NewJSONSlice(nonNil(asset.DominantColors)),
		Tags:            datatypes.NewJSONSlice(nonNil(asset.Tags)),
		MimeType:        asset.MimeType,
		Bytes:           asset.Bytes,
		Width:           asset.Width,
		Height:          asset.Height,
		ModerationState: string(asset.ModerationState),
		IsModerated:     asset.IsModerated,
		ModeratedAt:     asset.ModeratedAt,
		ModeratedBy:     asset.ModeratedBy,
		Views:           asset.Views,
		Downloads:       asset.Downloads,
		DailyViews:      datatypes.NewJSONType(nonNilCounts(asset.DailyViews)),
		DailyDownloads:  datatypes.NewJSONType(nonNilCounts(asset.DailyDownloads)),
		CreatedAt:       asset.CreatedAt,
		UpdatedAt:       asset.UpdatedAt,
	}
	if asset.UploadID != "" {
		uploadID := asset.UploadID
		entity.UploadID = &uploadID
	}
	if asset.Coordinates != nil {
		lat, lng := asset.Coordinates.Latitude, asset.Coordinates.Longitude
		entity.Latitude = &lat
		entity.Longitude = &lng
	}
	return entity
}

func fromEntity(entity entities.MediaAsset) *domain.MediaAsset {
	renditions := make(domain.Renditions)
	for raw, record := range entity.Renditions.Data() {
		key, ok := domain.ParseRenditionKey(raw)
		if !ok {
			continue
		}
		renditions[key] = domain.Rendition{
			StorageKey: record.Key,
			URL:        record.URL,
			Width:      record.Width,
			Height:     record.Height,
			Bytes:      record.Bytes,
		}
	}

	asset := &domain.MediaAsset{
		ID:              entity.ID,
		LogicalAssetID:  entity.LogicalAssetID,
		Renditions:      renditions,
		Title:           entity.Title,
		OwnerID:         entity.OwnerID,
		CategoryID:      entity.CategoryID,
		Location:        entity.Location,
		CameraMake:      entity.CameraMake,
		CameraModel:     entity.CameraModel,
		FocalLength:     entity.FocalLength,
		Aperture:        entity.Aperture,
		ShutterSpeed:    entity.ShutterSpeed,
		ISO:             entity.ISO,
		DominantColors:  nonNil([]string(entity.DominantColors)),
		Tags:            nonNil([]string(entity.Tags)),
		MimeType:        entity.MimeType,
		Bytes:           entity.Bytes,
		Width:           entity.Width,
		Height:          entity.Height,
		ModerationState: domain.ModerationState(entity.ModerationState),
		IsModerated:     entity.IsModerated,
		ModeratedAt:     entity.ModeratedAt,
		ModeratedBy:     entity.ModeratedBy,
		Views:           entity.Views,
		Downloads:       entity.Downloads,
		DailyViews:      nonNilCounts(entity.DailyViews.Data()),
		DailyDownloads:  nonNilCounts(entity.DailyDownloads.Data()),
		CreatedAt:       entity.CreatedAt,
		UpdatedAt:       entity.UpdatedAt,
	}
	if entity.UploadID != nil {
		asset.UploadID = *entity.UploadID
	}
	if entity.Latitude != nil && entity.Longitude != nil {
		asset.Coordinates = &domain.Coordinates{Latitude: *entity.Latitude, Longitude: *entity.Longitude}
	}
	return asset
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}

func nonNilCounts(values map[string]int64) map[string]int64 {
	if values == nil {
		return map[string]int64{}
	}
	return values
}
