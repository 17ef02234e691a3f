package media

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	domain "jan-server/services/media-ingest/internal/domain/media"
	"jan-server/services/media-ingest/internal/infrastructure/database/entities"
)

func TestToEntity_SingleUploadLeavesUploadIDNull(t *testing.T) {
	entity := toEntity(&domain.MediaAsset{ID: "01HX", LogicalAssetID: "asset_1"})

	assert.Nil(t, entity.UploadID)
	assert.Nil(t, entity.Latitude)
	assert.Nil(t, entity.Longitude)
	assert.NotNil(t, []string(entity.Tags))
	assert.NotNil(t, []string(entity.DominantColors))
}

func TestFromEntity_RestoresRenditionKeysAndCoordinates(t *testing.T) {
	asset := &domain.MediaAsset{
		ID:             "01HX",
		LogicalAssetID: "asset_1",
		UploadID:       "upl_abc",
		Coordinates:    &domain.Coordinates{Latitude: 48.85, Longitude: 2.35},
		Renditions: domain.Renditions{
			{Size: domain.SizeThumbnail, Format: domain.FormatCompact}: {StorageKey: "r/asset_1/thumbnail.compact.jpg", URL: "https://cdn/t", Width: 200, Height: 100},
		},
	}

	restored := fromEntity(toEntity(asset))

	assert.Equal(t, "upl_abc", restored.UploadID)
	require.NotNil(t, restored.Coordinates)
	assert.InDelta(t, 48.85, restored.Coordinates.Latitude, 1e-9)
	assert.Equal(t, "https://cdn/t", restored.Renditions.URL(domain.SizeThumbnail, domain.FormatCompact))
	assert.Empty(t, restored.Renditions.URL(domain.SizeOriginal, domain.FormatPrimary))
}

func TestFromEntity_DropsUnknownRenditionKeys(t *testing.T) {
	entity := toEntity(&domain.MediaAsset{ID: "01HX"})
	entity.Renditions = datatypes.NewJSONType(map[string]entities.RenditionRecord{
		"poster/webm": {Key: "x", URL: "https://cdn/x"},
	})

	assert.Empty(t, fromEntity(entity).Renditions)
}
