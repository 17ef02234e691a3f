package entities

import (
	"time"

	"gorm.io/datatypes"
)

// RenditionRecord is one stored rendition inside the renditions column, keyed by "size/format".
type RenditionRecord struct {
	Key    string `json:"key"`
	URL    string `json:"url"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Bytes  int64  `json:"bytes"`
}

// MediaAsset represents the persisted media record.
type MediaAsset struct {
	ID             string                                         `gorm:"type:varchar(40);primaryKey"`
	LogicalAssetID string                                         `gorm:"type:varchar(40);not null;uniqueIndex"`
	UploadID       *string                                        `gorm:"type:varchar(64)"`
	Renditions     datatypes.JSONType[map[string]RenditionRecord] `gorm:"type:jsonb;not null"`

	Title      string   `gorm:"type:varchar(200);not null"`
	OwnerID    string   `gorm:"type:varchar(64);not null;index"`
	CategoryID string   `gorm:"type:varchar(40);not null"`
	Location   string   `gorm:"type:varchar(255)"`
	Latitude   *float64 `gorm:"type:double precision"`
	Longitude  *float64 `gorm:"type:double precision"`

	CameraMake   string `gorm:"type:varchar(100)"`
	CameraModel  string `gorm:"type:varchar(100)"`
	FocalLength  string `gorm:"type:varchar(32)"`
	Aperture     string `gorm:"type:varchar(32)"`
	ShutterSpeed string `gorm:"type:varchar(32)"`
	ISO          *int   `gorm:"column:iso"`

	DominantColors datatypes.JSONSlice[string] `gorm:"type:jsonb;not null"`
	Tags           datatypes.JSONSlice[string] `gorm:"type:jsonb;not null"`

	MimeType string `gorm:"type:varchar(64);not null"`
	Bytes    int64  `gorm:"not null"`
	Width    int    `gorm:"not null"`
	Height   int    `gorm:"not null"`

	ModerationState string     `gorm:"type:varchar(16);not null;default:pending"`
	IsModerated     bool       `gorm:"not null;default:false"`
	ModeratedAt     *time.Time `gorm:"type:timestamptz"`
	ModeratedBy     string     `gorm:"type:varchar(64)"`

	Views          int64                                `gorm:"not null;default:0"`
	Downloads      int64                                `gorm:"not null;default:0"`
	DailyViews     datatypes.JSONType[map[string]int64] `gorm:"type:jsonb;not null"`
	DailyDownloads datatypes.JSONType[map[string]int64] `gorm:"type:jsonb;not null"`

	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

func (MediaAsset) TableName() string {
	return "media_assets"
}
