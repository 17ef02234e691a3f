package requests

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"jan-server/services/media-ingest/internal/domain/media"
	"jan-server/services/media-ingest/utils/mediaid"
)

// NewValidator returns a validator that understands the upload_id tag.
func NewValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("upload_id", func(fl validator.FieldLevel) bool {
		return mediaid.IsValidUploadID(fl.Field().String())
	})
	return v
}

// Coordinate accepts a JSON number, a numeric string, an empty string or null.
// Range checks happen in the domain, which drops an unusable pair.
type Coordinate string

func (c *Coordinate) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*c = ""
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*c = Coordinate(strings.TrimSpace(s))
	default:
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return fmt.Errorf("coordinate must be a number: %w", err)
		}
		*c = Coordinate(n.String())
	}
	return nil
}

// UploadCredentialRequest asks for a staged-upload credential.
type UploadCredentialRequest struct {
	FileName     string `json:"file_name" validate:"required,max=255"`
	MimeType     string `json:"mime_type" validate:"required,max=100"`
	DeclaredSize int64  `json:"declared_size" validate:"required,gt=0"`
}

func (r UploadCredentialRequest) ToDomain(caller media.Caller) media.CredentialRequest {
	return media.CredentialRequest{
		Caller:       caller,
		FileName:     r.FileName,
		MimeType:     r.MimeType,
		DeclaredSize: r.DeclaredSize,
	}
}

// MetadataFields are the caller-supplied fields shared by upload and finalize.
// Upload reads them from multipart form fields, finalize from JSON.
type MetadataFields struct {
	Title       string     `json:"title" form:"title"`
	Category    string     `json:"category" form:"category"`
	Location    string     `json:"location" form:"location"`
	Latitude    Coordinate `json:"latitude" form:"latitude"`
	Longitude   Coordinate `json:"longitude" form:"longitude"`
	CameraModel string     `json:"camera_model" form:"camera_model"`
	Tags        []string   `json:"tags" form:"tags"`
}

func (m MetadataFields) ToDomain() media.SubmittedMetadata {
	return media.SubmittedMetadata{
		Title:       m.Title,
		CategoryRef: m.Category,
		Location:    m.Location,
		Latitude:    string(m.Latitude),
		Longitude:   string(m.Longitude),
		CameraModel: m.CameraModel,
		Tags:        SplitTags(m.Tags),
	}
}

// SplitTags expands comma separated form values; JSON arrays pass through unchanged.
func SplitTags(values []string) []string {
	var out []string
	for _, value := range values {
		for _, tag := range strings.Split(value, ",") {
			out = append(out, tag)
		}
	}
	return out
}

// FinalizeRequest completes a two-phase upload.
type FinalizeRequest struct {
	UploadID   string `json:"upload_id" validate:"required,upload_id"`
	StagingKey string `json:"staging_key" validate:"required,max=512"`
	MetadataFields
}

func (r FinalizeRequest) ToDomain(caller media.Caller) media.FinalizeRequest {
	return media.FinalizeRequest{
		Caller:     caller,
		UploadID:   r.UploadID,
		StagingKey: r.StagingKey,
		Metadata:   r.MetadataFields.ToDomain(),
	}
}

// ModerationRequest sets the review status of an asset.
type ModerationRequest struct {
	State string `json:"state" validate:"required,oneof=pending approved rejected flagged"`
}

// DescribeValidation turns validator errors into one readable sentence.
func DescribeValidation(err error) string {
	errs, ok := err.(validator.ValidationErrors)
	if !ok || len(errs) == 0 {
		return "invalid request"
	}
	fe := errs[0]
	field := fieldName(fe.Field())
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "upload_id":
		return "invalid upload id"
	case "oneof":
		return field + " must be one of: " + fe.Param()
	case "gt":
		return field + " must be greater than " + fe.Param()
	case "max":
		return field + " is too long"
	}
	return field + " is invalid"
}

var fieldNames = map[string]string{
	"FileName":     "file_name",
	"MimeType":     "mime_type",
	"DeclaredSize": "declared_size",
	"UploadID":     "upload_id",
	"StagingKey":   "staging_key",
	"State":        "state",
}

func fieldName(goName string) string {
	if name, ok := fieldNames[goName]; ok {
		return name
	}
	return strings.ToLower(goName)
}
