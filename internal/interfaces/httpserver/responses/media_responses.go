package responses

import (
	"time"

	"jan-server/services/media-ingest/internal/domain/media"
)

// MediaAssetResponse is the public shape of a media record. Rendition locators
// are flattened into one field per (size, format) pair.
type MediaAssetResponse struct {
	ID             string `json:"id"`
	LogicalAssetID string `json:"logical_asset_id"`

	ThumbnailURL        string `json:"thumbnail_url,omitempty"`
	ThumbnailCompactURL string `json:"thumbnail_compact_url,omitempty"`
	SmallURL            string `json:"small_url,omitempty"`
	SmallCompactURL     string `json:"small_compact_url,omitempty"`
	RegularURL          string `json:"regular_url,omitempty"`
	RegularCompactURL   string `json:"regular_compact_url,omitempty"`
	OriginalURL         string `json:"original_url,omitempty"`
	OriginalCompactURL  string `json:"original_compact_url,omitempty"`

	Title      string   `json:"title"`
	OwnerID    string   `json:"owner_id"`
	CategoryID string   `json:"category_id"`
	Location   string   `json:"location,omitempty"`
	Latitude   *float64 `json:"latitude,omitempty"`
	Longitude  *float64 `json:"longitude,omitempty"`

	CameraMake   string `json:"camera_make,omitempty"`
	CameraModel  string `json:"camera_model,omitempty"`
	FocalLength  string `json:"focal_length,omitempty"`
	Aperture     string `json:"aperture,omitempty"`
	ShutterSpeed string `json:"shutter_speed,omitempty"`
	ISO          *int   `json:"iso,omitempty"`

	DominantColors []string `json:"dominant_colors"`
	Tags           []string `json:"tags"`

	MimeType string `json:"mime_type"`
	Bytes    int64  `json:"bytes"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`

	ModerationState string     `json:"moderation_state"`
	IsModerated     bool       `json:"is_moderated"`
	ModeratedAt     *time.Time `json:"moderated_at,omitempty"`
	ModeratedBy     string     `json:"moderated_by,omitempty"`

	Views          int64            `json:"views"`
	Downloads      int64            `json:"downloads"`
	DailyViews     map[string]int64 `json:"daily_views"`
	DailyDownloads map[string]int64 `json:"daily_downloads"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IngestResponse wraps the asset returned by upload and finalize.
type IngestResponse struct {
	MediaAsset *MediaAssetResponse `json:"media_asset"`
	Replayed   bool                `json:"replayed,omitempty"`
}

// DownloadResponse is returned after a download is counted.
type DownloadResponse struct {
	ID        string `json:"id"`
	URL       string `json:"url"`
	Downloads int64  `json:"downloads"`
}

func BuildMediaAssetResponse(asset *media.MediaAsset) *MediaAssetResponse {
	r := asset.Renditions
	resp := &MediaAssetResponse{
		ID:                  asset.ID,
		LogicalAssetID:      asset.LogicalAssetID,
		ThumbnailURL:        r.URL(media.SizeThumbnail, media.FormatPrimary),
		ThumbnailCompactURL: r.URL(media.SizeThumbnail, media.FormatCompact),
		SmallURL:            r.URL(media.SizeSmall, media.FormatPrimary),
		SmallCompactURL:     r.URL(media.SizeSmall, media.FormatCompact),
		RegularURL:          r.URL(media.SizeRegular, media.FormatPrimary),
		RegularCompactURL:   r.URL(media.SizeRegular, media.FormatCompact),
		OriginalURL:         r.URL(media.SizeOriginal, media.FormatPrimary),
		OriginalCompactURL:  r.URL(media.SizeOriginal, media.FormatCompact),
		Title:               asset.Title,
		OwnerID:             asset.OwnerID,
		CategoryID:          asset.CategoryID,
		Location:            asset.Location,
		CameraMake:          asset.CameraMake,
		CameraModel:         asset.CameraModel,
		FocalLength:         asset.FocalLength,
		Aperture:            asset.Aperture,
		ShutterSpeed:        asset.ShutterSpeed,
		ISO:                 asset.ISO,
		DominantColors:      orEmpty(asset.DominantColors),
		Tags:                orEmpty(asset.Tags),
		MimeType:            asset.MimeType,
		Bytes:               asset.Bytes,
		Width:               asset.Width,
		Height:              asset.Height,
		ModerationState:     string(asset.ModerationState),
		IsModerated:         asset.IsModerated,
		ModeratedAt:         asset.ModeratedAt,
		ModeratedBy:         asset.ModeratedBy,
		Views:               asset.Views,
		Downloads:           asset.Downloads,
		DailyViews:          orEmptyCounts(asset.DailyViews),
		DailyDownloads:      orEmptyCounts(asset.DailyDownloads),
		CreatedAt:           asset.CreatedAt,
		UpdatedAt:           asset.UpdatedAt,
	}
	if asset.Coordinates != nil {
		lat, lng := asset.Coordinates.Latitude, asset.Coordinates.Longitude
		resp.Latitude = &lat
		resp.Longitude = &lng
	}
	return resp
}

func BuildIngestResponse(result *media.IngestResult) *IngestResponse {
	return &IngestResponse{
		MediaAsset: BuildMediaAssetResponse(result.Asset),
		Replayed:   result.Replayed,
	}
}

func BuildDownloadResponse(asset *media.MediaAsset) *DownloadResponse {
	return &DownloadResponse{
		ID:        asset.ID,
		URL:       asset.Renditions.URL(media.SizeOriginal, media.FormatPrimary),
		Downloads: asset.Downloads,
	}
}

func orEmpty(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}

func orEmptyCounts(values map[string]int64) map[string]int64 {
	if values == nil {
		return map[string]int64{}
	}
	return values
}
