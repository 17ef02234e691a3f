package media

import (
	"context"
	"errors"
	"fmt"
	"path"
	"regexp"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"jan-server/services/media-ingest/internal/utils/platformerrors"
	"jan-server/services/media-ingest/utils/mediaid"
)

var extensionPattern = regexp.MustCompile(`^[a-z0-9]{1,8}$`)

// IssueUploadCredential grants a time-boxed direct write to one staging key.
// Nothing is read or written besides signing the URL.
func (s *Service) IssueUploadCredential(ctx context.Context, req CredentialRequest) (*UploadCredential, error) {
	fileName := strings.TrimSpace(req.FileName)
	mimeType := strings.ToLower(strings.TrimSpace(req.MimeType))
	if fileName == "" || mimeType == "" {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation, "file_name and mime_type are required", nil, "4e8e81be-4873-448c-b5c4-451dd1084182")
	}
	if !strings.HasPrefix(mimeType, "image/") {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation, "only image uploads are supported", nil, "bf2bedce-f67f-4893-a198-f830c36dcd5b")
	}
	if req.DeclaredSize <= 0 {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation, "declared_size must be positive", nil, "bfb996a5-24a4-4c59-b93c-6873af677744")
	}
	if req.DeclaredSize > s.cfg.MaxMediaBytes {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeTooLarge, fmt.Sprintf("file too large: maximum is %d bytes", s.cfg.MaxMediaBytes), nil, "4704ca9e-806d-4e3a-8742-bd63b1cfd268")
	}
	if !s.storage.SupportsPresignedUploads() {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeNotImplemented, "direct uploads are not available on this storage backend", ErrPresignUnsupported, "ae501c12-d6eb-420b-857c-79f5d537ef35")
	}

	uploadID := mediaid.NewUploadID()
	key := s.stagingKey(uploadID, UploadExtension(fileName, mimeType))

	writeURL, err := s.storage.PresignPut(ctx, key, mimeType, s.cfg.UploadURLTTL)
	if err != nil {
		if errors.Is(err, ErrPresignUnsupported) {
			return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeNotImplemented, "direct uploads are not available on this storage backend", err, "bf530fc8-8ddd-426c-954f-03bba0106e27")
		}
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeExternal, "failed to issue upload credential", err, "d9621145-8ab1-4783-adff-4f41ef104e3a")
	}

	s.log.Debug().
		Str("upload_id", uploadID).
		Str("staging_key", key).
		Str("owner_id", req.Caller.ID).
		Msg("issued upload credential")

	return &UploadCredential{
		UploadID:         uploadID,
		StagingKey:       key,
		WriteURL:         writeURL,
		ExpiresInSeconds: int(s.cfg.UploadURLTTL.Seconds()),
		MaxFileSize:      s.cfg.MaxMediaBytes,
	}, nil
}

// UploadExtension picks the staging key extension: the file name's own when
// it looks sane, else one derived from the MIME type, else "bin".
func UploadExtension(fileName, mimeType string) string {
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(strings.TrimSpace(fileName)), "."))
	if ext == "jpeg" {
		ext = "jpg"
	}
	if extensionPattern.MatchString(ext) {
		return ext
	}

	if known := mimetype.Lookup(mimeType); known != nil {
		if ext := strings.TrimPrefix(known.Extension(), "."); extensionPattern.MatchString(ext) {
			return ext
		}
	}

	_, subtype, found := strings.Cut(mimeType, "/")
	if found {
		subtype, _, _ = strings.Cut(subtype, ";")
		subtype = strings.ToLower(strings.TrimSpace(subtype))
		if subtype == "jpeg" {
			subtype = "jpg"
		}
		if extensionPattern.MatchString(subtype) {
			return subtype
		}
	}
	return "bin"
}

func (s *Service) stagingKey(uploadID, ext string) string {
	return s.cfg.StagingPrefix + "/" + uploadID + "." + ext
}

// stagingKeyBelongsTo reports whether key was issued for uploadID.
func (s *Service) stagingKeyBelongsTo(key, uploadID string) bool {
	prefix := s.cfg.StagingPrefix + "/" + uploadID + "."
	if !strings.HasPrefix(key, prefix) {
		return false
	}
	return extensionPattern.MatchString(strings.TrimPrefix(key, prefix))
}
