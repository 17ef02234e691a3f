package media

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"unicode/utf8"

	"jan-server/services/media-ingest/internal/utils/platformerrors"
)

const (
	maxTags      = 20
	maxTagLength = 50
	maxTitleLen  = 200

	maxLocationLen    = 255
	maxCameraModelLen = 100
	maxCameraMakeLen  = 100
	maxExposureLen    = 32
)

// normalizedMetadata is SubmittedMetadata after validation, ready to be copied onto a record.
type normalizedMetadata struct {
	Title       string
	CategoryID  string
	Location    string
	Coordinates *Coordinates
	CameraModel string
	Tags        []string
}

// NormalizeTags trims and lower-cases tags, drops empties and overlong entries,
// removes duplicates keeping the first occurrence and keeps at most 20.
func NormalizeTags(tags []string) []string {
	out := make([]string, 0, min(len(tags), maxTags))
	seen := make(map[string]struct{}, len(tags))
	for _, tag := range tags {
		tag = strings.ToLower(strings.TrimSpace(tag))
		if tag == "" || utf8.RuneCountInString(tag) > maxTagLength {
			continue
		}
		if _, dup := seen[tag]; dup {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
		if len(out) == maxTags {
			break
		}
	}
	return out
}

// NormalizeCoordinates returns the pair only when both values parse and are in range.
func NormalizeCoordinates(latitude, longitude string) *Coordinates {
	latitude = strings.TrimSpace(latitude)
	longitude = strings.TrimSpace(longitude)
	if latitude == "" || longitude == "" {
		return nil
	}
	lat, err := strconv.ParseFloat(latitude, 64)
	if err != nil {
		return nil
	}
	lng, err := strconv.ParseFloat(longitude, 64)
	if err != nil {
		return nil
	}
	// ParseFloat accepts NaN and Inf; the range checks below reject both.
	if !(lat >= -90 && lat <= 90) || !(lng >= -180 && lng <= 180) {
		return nil
	}
	return &Coordinates{Latitude: lat, Longitude: lng}
}

func (s *Service) normalizeMetadata(ctx context.Context, meta SubmittedMetadata) (*normalizedMetadata, error) {
	title := strings.TrimSpace(meta.Title)
	if title == "" {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation, "title is required", nil, "71cc2bed-9355-4674-a73f-c0fed855f7dd")
	}
	if utf8.RuneCountInString(title) > maxTitleLen {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation, "title must be at most 200 characters", nil, "be92c52a-f3e5-45a4-85f9-c3242ecb9027")
	}

	location := strings.TrimSpace(meta.Location)
	if utf8.RuneCountInString(location) > maxLocationLen {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation, "location must be at most 255 characters", nil, "3d9f0c52-7be1-4a5e-9c64-0f2a8e6b1d73")
	}
	cameraModel := strings.TrimSpace(meta.CameraModel)
	if utf8.RuneCountInString(cameraModel) > maxCameraModelLen {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation, "camera_model must be at most 100 characters", nil, "c41e7a08-5f2d-4b93-8e1a-6a7d2c90f5be")
	}

	ref := strings.TrimSpace(meta.CategoryRef)
	if ref == "" {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation, "category is required", nil, "11306d50-d168-4e04-a300-590a68e40629")
	}
	categoryID, err := s.categories.Resolve(ctx, ref)
	if err != nil {
		if errors.Is(err, ErrCategoryNotFound) {
			return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation, "category not found", err, "7a576639-0593-4da2-aafe-91595723d116")
		}
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to resolve category")
	}

	return &normalizedMetadata{
		Title:       title,
		CategoryID:  categoryID,
		Location:    location,
		Coordinates: NormalizeCoordinates(meta.Latitude, meta.Longitude),
		CameraModel: cameraModel,
		Tags:        NormalizeTags(meta.Tags),
	}, nil
}

// clipExif bounds extracted strings to the stored column widths. EXIF is
// best effort, so an oversized field is cut rather than rejected.
func clipExif(data ExifData) ExifData {
	data.CameraMake = clipRunes(data.CameraMake, maxCameraMakeLen)
	data.CameraModel = clipRunes(data.CameraModel, maxCameraModelLen)
	data.FocalLength = clipRunes(data.FocalLength, maxExposureLen)
	data.Aperture = clipRunes(data.Aperture, maxExposureLen)
	data.ShutterSpeed = clipRunes(data.ShutterSpeed, maxExposureLen)
	return data
}

func clipRunes(value string, limit int) string {
	if utf8.RuneCountInString(value) <= limit {
		return value
	}
	return strings.TrimSpace(string([]rune(value)[:limit]))
}
