package media

import (
	"fmt"
	"time"
)

// Size is the dimension class of a rendition.
type Size string

const (
	SizeThumbnail Size = "thumbnail"
	SizeSmall     Size = "small"
	SizeRegular   Size = "regular"
	SizeOriginal  Size = "original"
)

// Sizes lists every rendition size in ascending order.
var Sizes = []Size{SizeThumbnail, SizeSmall, SizeRegular, SizeOriginal}

// Format is the encoding family of a rendition.
type Format string

const (
	FormatPrimary Format = "primary"
	FormatCompact Format = "compact"
)

// RenditionKey identifies one (size, format) pair.
type RenditionKey struct {
	Size   Size
	Format Format
}

func (k RenditionKey) String() string {
	return string(k.Size) + "/" + string(k.Format)
}

func (k RenditionKey) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *RenditionKey) UnmarshalText(text []byte) error {
	parsed, ok := ParseRenditionKey(string(text))
	if !ok {
		return fmt.Errorf("unknown rendition %q", text)
	}
	*k = parsed
	return nil
}

// ParseRenditionKey is the inverse of RenditionKey.String.
func ParseRenditionKey(value string) (RenditionKey, bool) {
	for _, size := range Sizes {
		for _, format := range []Format{FormatPrimary, FormatCompact} {
			key := RenditionKey{Size: size, Format: format}
			if key.String() == value {
				return key, true
			}
		}
	}
	return RenditionKey{}, false
}

// Rendition is one stored encoding of the source image.
type Rendition struct {
	StorageKey string `json:"key"`
	URL        string `json:"url"`
	Width      int    `json:"width"`
	Height     int    `json:"height"`
	Bytes      int64  `json:"bytes"`
}

// Renditions maps (size, format) to the stored object.
type Renditions map[RenditionKey]Rendition

// URL returns the locator for a pair, or "" when that pair was not produced.
func (r Renditions) URL(size Size, format Format) string {
	return r[RenditionKey{Size: size, Format: format}].URL
}

// ModerationState is the review status of an asset.
type ModerationState string

const (
	ModerationPending  ModerationState = "pending"
	ModerationApproved ModerationState = "approved"
	ModerationRejected ModerationState = "rejected"
	ModerationFlagged  ModerationState = "flagged"
)

// IsValid reports whether s is a known moderation state.
func (s ModerationState) IsValid() bool {
	switch s {
	case ModerationPending, ModerationApproved, ModerationRejected, ModerationFlagged:
		return true
	}
	return false
}

// Coordinates is a validated latitude/longitude pair.
type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// ExifData is the sparse camera record pulled from the source file.
type ExifData struct {
	CameraMake   string
	CameraModel  string
	FocalLength  string
	Aperture     string
	ShutterSpeed string
	ISO          *int
}

// IsEmpty reports whether no field was extracted.
func (e ExifData) IsEmpty() bool {
	return e.CameraMake == "" && e.CameraModel == "" && e.FocalLength == "" &&
		e.Aperture == "" && e.ShutterSpeed == "" && e.ISO == nil
}

// MediaAsset is the durable media record.
type MediaAsset struct {
	ID             string
	LogicalAssetID string
	UploadID       string
	Renditions     Renditions

	Title       string
	OwnerID     string
	CategoryID  string
	Location    string
	Coordinates *Coordinates

	CameraMake   string
	CameraModel  string
	FocalLength  string
	Aperture     string
	ShutterSpeed string
	ISO          *int

	DominantColors []string
	Tags           []string

	MimeType string
	Bytes    int64
	Width    int
	Height   int

	ModerationState ModerationState
	IsModerated     bool
	ModeratedAt     *time.Time
	ModeratedBy     string

	Views          int64
	Downloads      int64
	DailyViews     map[string]int64
	DailyDownloads map[string]int64

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Caller is the authenticated principal driving an operation.
type Caller struct {
	ID      string
	IsAdmin bool
}

// CanManage reports whether the caller owns the asset or is an administrator.
func (c Caller) CanManage(asset *MediaAsset) bool {
	if asset == nil {
		return false
	}
	return c.IsAdmin || (c.ID != "" && c.ID == asset.OwnerID)
}

// SubmittedMetadata carries the caller-supplied fields shared by both entry shapes.
// Coordinates stay raw until normalisation decides whether the pair is usable.
type SubmittedMetadata struct {
	Title       string
	CategoryRef string
	Location    string
	Latitude    string
	Longitude   string
	CameraModel string
	Tags        []string
}

// IngestRequest is the single-phase input: raw bytes plus metadata.
type IngestRequest struct {
	Caller   Caller
	FileName string
	Data     []byte
	Metadata SubmittedMetadata
}

// FinalizeRequest completes a two-phase upload.
type FinalizeRequest struct {
	Caller     Caller
	UploadID   string
	StagingKey string
	Metadata   SubmittedMetadata
}

// CredentialRequest asks for a staged-upload write credential.
type CredentialRequest struct {
	Caller       Caller
	FileName     string
	MimeType     string
	DeclaredSize int64
}

// UploadCredential is the scoped, time-boxed write grant for one staging key.
type UploadCredential struct {
	UploadID         string `json:"upload_id"`
	StagingKey       string `json:"staging_key"`
	WriteURL         string `json:"write_url"`
	ExpiresInSeconds int    `json:"expires_in_seconds"`
	MaxFileSize      int64  `json:"max_file_size"`
}

// ModerationRequest changes the review status of an asset.
type ModerationRequest struct {
	Caller  Caller
	AssetID string
	State   ModerationState
}

// IngestResult is returned by both entry shapes.
type IngestResult struct {
	Asset *MediaAsset
	// Replayed is true when a finalize retry returned the record committed by an earlier call.
	Replayed bool
}

// SourceInfo describes the decoded source image.
type SourceInfo struct {
	MimeType string
	Width    int
	Height   int
	Bytes    int64
}

// GeneratedRenditions is the generator output; it is the single source of truth for which renditions exist.
type GeneratedRenditions struct {
	LogicalAssetID string
	Renditions     Renditions
	Source         SourceInfo
}

// ObjectInfo describes one object listed from blob storage.
type ObjectInfo struct {
	Key          string
	Size         int64
	LastModified time.Time
}
