package handlers

import (
	"context"
	"errors"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"jan-server/services/media-ingest/internal/config"
	"jan-server/services/media-ingest/internal/domain/media"
	"jan-server/services/media-ingest/internal/infrastructure/auth"
	"jan-server/services/media-ingest/internal/infrastructure/metrics"
	"jan-server/services/media-ingest/internal/interfaces/httpserver/requests"
	"jan-server/services/media-ingest/internal/interfaces/httpserver/responses"
	"jan-server/services/media-ingest/internal/utils/platformerrors"
)

// MediaService is the slice of the domain service the HTTP layer drives.
type MediaService interface {
	IssueUploadCredential(ctx context.Context, req media.CredentialRequest) (*media.UploadCredential, error)
	Ingest(ctx context.Context, req media.IngestRequest) (*media.IngestResult, error)
	Finalize(ctx context.Context, req media.FinalizeRequest) (*media.IngestResult, error)
	Get(ctx context.Context, id string) (*media.MediaAsset, error)
	Delete(ctx context.Context, caller media.Caller, id string) error
	Moderate(ctx context.Context, req media.ModerationRequest) (*media.MediaAsset, error)
	RecordDownload(ctx context.Context, id string) (*media.MediaAsset, error)
}

var _ MediaService = (*media.Service)(nil)

// MediaHandler exposes media endpoints.
type MediaHandler struct {
	cfg      *config.Config
	service  MediaService
	validate *validator.Validate
	log      zerolog.Logger
}

func NewMediaHandler(cfg *config.Config, service MediaService, log zerolog.Logger) *MediaHandler {
	return &MediaHandler{
		cfg:      cfg,
		service:  service,
		validate: requests.NewValidator(),
		log:      log.With().Str("component", "media-handler").Logger(),
	}
}

// IssueUploadCredential godoc
// @Summary      Request a staged-upload credential
// @Description  Returns a short-lived write URL for a single staging key. The client uploads there and then calls finalize.
// @Tags         media
// @Accept       json
// @Produce      json
// @Param        request  body      requests.UploadCredentialRequest  true  "Upload request"
// @Success      200      {object}  media.UploadCredential
// @Failure      400      {object}  responses.ErrorResponse
// @Failure      401      {object}  responses.ErrorResponse
// @Failure      413      {object}  responses.ErrorResponse
// @Failure      501      {object}  responses.ErrorResponse
// @Security     BearerAuth
// @Router       /v1/media/upload-credentials [post]
func (h *MediaHandler) IssueUploadCredential(c *gin.Context) {
	caller, ok := h.requireCaller(c)
	if !ok {
		return
	}

	var req requests.UploadCredentialRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		responses.HandleNewError(c, platformerrors.ErrorTypeValidation, "invalid request body", "791ef061-2183-41d5-b8b9-a7f79d9768d2")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		responses.HandleNewError(c, platformerrors.ErrorTypeValidation, requests.DescribeValidation(err), "2e0457f3-1a8b-4e51-84a5-b3220f4f2ff7")
		return
	}

	credential, err := h.service.IssueUploadCredential(c.Request.Context(), req.ToDomain(caller))
	if err != nil {
		h.fail(c, err, "failed to issue upload credential")
		return
	}
	c.JSON(http.StatusOK, credential)
}

// Upload godoc
// @Summary      Upload an image in one request
// @Description  Accepts the image bytes with metadata, generates every rendition and commits the record.
// @Tags         media
// @Accept       multipart/form-data
// @Produce      json
// @Param        file          formData  file    true   "Image file"
// @Param        title         formData  string  false  "Title"
// @Param        category      formData  string  false  "Category id or name"
// @Param        location      formData  string  false  "Free-form location"
// @Param        latitude      formData  string  false  "Latitude"
// @Param        longitude     formData  string  false  "Longitude"
// @Param        camera_model  formData  string  false  "Camera model override"
// @Param        tags          formData  string  false  "Comma separated tags"
// @Success      201  {object}  responses.IngestResponse
// @Failure      400  {object}  responses.ErrorResponse
// @Failure      401  {object}  responses.ErrorResponse
// @Failure      413  {object}  responses.ErrorResponse
// @Failure      500  {object}  responses.ErrorResponse
// @Security     BearerAuth
// @Router       /v1/media/upload [post]
func (h *MediaHandler) Upload(c *gin.Context) {
	caller, ok := h.requireCaller(c)
	if !ok {
		return
	}

	header, err := c.FormFile("file")
	if err != nil {
		h.recordFailure(media.FlowSinglePhase)
		responses.HandleNewError(c, platformerrors.ErrorTypeValidation, "no file provided", "d06b62b4-0627-4058-a872-6e982b41c9ab")
		return
	}
	if header.Size > h.cfg.MaxMediaBytes {
		h.recordFailure(media.FlowSinglePhase)
		responses.HandleNewError(c, platformerrors.ErrorTypeTooLarge, "file exceeds maximum allowed size", "81cbb8f4-9b08-498d-b6e8-549d4cf2bb08")
		return
	}

	var fields requests.MetadataFields
	if err := c.ShouldBindWith(&fields, binding.FormMultipart); err != nil {
		h.recordFailure(media.FlowSinglePhase)
		responses.HandleNewError(c, platformerrors.ErrorTypeValidation, "invalid form fields", "cf6e7311-da8b-4a52-b10d-b3e1119e12f3")
		return
	}

	data, err := readFormFile(header.Open, h.cfg.MaxMediaBytes)
	if err != nil {
		h.recordFailure(media.FlowSinglePhase)
		if errors.Is(err, media.ErrObjectTooLarge) {
			responses.HandleNewError(c, platformerrors.ErrorTypeTooLarge, "file exceeds maximum allowed size", "4c0d671c-8bc3-40bc-9c13-7a99fb172686")
			return
		}
		h.log.Error().Err(err).Str("file_name", header.Filename).Msg("read uploaded file")
		responses.HandleNewError(c, platformerrors.ErrorTypeInternal, "failed to read uploaded file", "b7ee1851-fcf2-4a24-8063-875f5e5e6a55")
		return
	}

	result, err := h.service.Ingest(c.Request.Context(), media.IngestRequest{
		Caller:   caller,
		FileName: header.Filename,
		Data:     data,
		Metadata: fields.ToDomain(),
	})
	if err != nil {
		h.recordFailure(media.FlowSinglePhase)
		h.fail(c, err, "failed to process upload")
		return
	}
	h.recordResult(media.FlowSinglePhase, result)
	c.JSON(http.StatusCreated, responses.BuildIngestResponse(result))
}

// Finalize godoc
// @Summary      Finalize a staged upload
// @Description  Reads the staged object, generates renditions and commits the record. Retrying a committed upload returns the same record.
// @Tags         media
// @Accept       json
// @Produce      json
// @Param        request  body      requests.FinalizeRequest  true  "Finalize request"
// @Success      201      {object}  responses.IngestResponse
// @Success      200      {object}  responses.IngestResponse  "Replayed"
// @Failure      400      {object}  responses.ErrorResponse
// @Failure      401      {object}  responses.ErrorResponse
// @Failure      403      {object}  responses.ErrorResponse
// @Failure      404      {object}  responses.ErrorResponse
// @Failure      409      {object}  responses.ErrorResponse
// @Failure      500      {object}  responses.ErrorResponse
// @Security     BearerAuth
// @Router       /v1/media/finalize [post]
func (h *MediaHandler) Finalize(c *gin.Context) {
	caller, ok := h.requireCaller(c)
	if !ok {
		return
	}

	var req requests.FinalizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.recordFailure(media.FlowFinalize)
		responses.HandleNewError(c, platformerrors.ErrorTypeValidation, "invalid request body", "5a3491fc-10c2-4c1b-b5bb-3ac52e5136d7")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.recordFailure(media.FlowFinalize)
		responses.HandleNewError(c, platformerrors.ErrorTypeValidation, requests.DescribeValidation(err), "9ccb7748-cc05-4a35-9de7-595d23317113")
		return
	}

	result, err := h.service.Finalize(c.Request.Context(), req.ToDomain(caller))
	if err != nil {
		h.recordFailure(media.FlowFinalize)
		h.fail(c, err, "failed to finalize upload")
		return
	}
	h.recordResult(media.FlowFinalize, result)

	status := http.StatusCreated
	if result.Replayed {
		status = http.StatusOK
	}
	c.JSON(status, responses.BuildIngestResponse(result))
}

// Get godoc
// @Summary      Get a media record
// @Tags         media
// @Produce      json
// @Param        id   path      string  true  "Media ID"
// @Success      200  {object}  responses.MediaAssetResponse
// @Failure      404  {object}  responses.ErrorResponse
// @Router       /v1/media/{id} [get]
func (h *MediaHandler) Get(c *gin.Context) {
	asset, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err, "failed to load media")
		return
	}
	c.JSON(http.StatusOK, responses.BuildMediaAssetResponse(asset))
}

// Delete godoc
// @Summary      Delete a media record
// @Description  Removes the record and then its renditions. Only the owner or an administrator may delete.
// @Tags         media
// @Param        id   path  string  true  "Media ID"
// @Success      204
// @Failure      401  {object}  responses.ErrorResponse
// @Failure      403  {object}  responses.ErrorResponse
// @Failure      404  {object}  responses.ErrorResponse
// @Security     BearerAuth
// @Router       /v1/media/{id} [delete]
func (h *MediaHandler) Delete(c *gin.Context) {
	caller, ok := h.requireCaller(c)
	if !ok {
		return
	}
	if err := h.service.Delete(c.Request.Context(), caller, c.Param("id")); err != nil {
		h.fail(c, err, "failed to delete media")
		return
	}
	c.Status(http.StatusNoContent)
}

// Moderate godoc
// @Summary      Set moderation state
// @Tags         media
// @Accept       json
// @Produce      json
// @Param        id       path      string                       true  "Media ID"
// @Param        request  body      requests.ModerationRequest  true  "Moderation state"
// @Success      200      {object}  responses.MediaAssetResponse
// @Failure      400      {object}  responses.ErrorResponse
// @Failure      403      {object}  responses.ErrorResponse
// @Failure      404      {object}  responses.ErrorResponse
// @Security     BearerAuth
// @Router       /v1/media/{id}/moderation [patch]
func (h *MediaHandler) Moderate(c *gin.Context) {
	caller, ok := h.requireCaller(c)
	if !ok {
		return
	}

	var req requests.ModerationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		responses.HandleNewError(c, platformerrors.ErrorTypeValidation, "invalid request body", "986a353b-3d7c-4254-9520-b0baad24f2cc")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		responses.HandleNewError(c, platformerrors.ErrorTypeValidation, requests.DescribeValidation(err), "3e8eacc0-d1c2-4bc0-8d21-61524844ace6")
		return
	}

	asset, err := h.service.Moderate(c.Request.Context(), media.ModerationRequest{
		Caller:  caller,
		AssetID: c.Param("id"),
		State:   media.ModerationState(req.State),
	})
	if err != nil {
		h.fail(c, err, "failed to update moderation state")
		return
	}
	c.JSON(http.StatusOK, responses.BuildMediaAssetResponse(asset))
}

// RecordDownload godoc
// @Summary      Count a download
// @Description  Increments the lifetime and daily download counters and returns the original rendition URL.
// @Tags         media
// @Produce      json
// @Param        id   path      string  true  "Media ID"
// @Success      200  {object}  responses.DownloadResponse
// @Failure      404  {object}  responses.ErrorResponse
// @Router       /v1/media/{id}/downloads [post]
func (h *MediaHandler) RecordDownload(c *gin.Context) {
	asset, err := h.service.RecordDownload(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err, "failed to record download")
		return
	}
	c.JSON(http.StatusOK, responses.BuildDownloadResponse(asset))
}

func (h *MediaHandler) requireCaller(c *gin.Context) (media.Caller, bool) {
	principal, ok := auth.PrincipalFrom(c)
	if !ok {
		responses.HandleNewError(c, platformerrors.ErrorTypeUnauthorized, "authentication required", "a95552bf-0868-4b67-ae01-f3e5907040dd")
		return media.Caller{}, false
	}
	return media.Caller{
		ID:      principal.ID,
		IsAdmin: principal.HasRole(h.cfg.AuthAdminRole),
	}, true
}

func (h *MediaHandler) fail(c *gin.Context, err error, message string) {
	var platformErr *platformerrors.PlatformError
	if errors.As(err, &platformErr) {
		platformerrors.LogError(h.log, platformErr)
	} else {
		h.log.Error().Err(err).Msg(message)
	}
	responses.HandleError(c, err, message)
}

func (h *MediaHandler) recordResult(flow media.Flow, result *media.IngestResult) {
	if result.Replayed {
		metrics.RecordIngestion(string(flow), "replayed", result.Asset.MimeType, 0)
		return
	}
	metrics.RecordIngestion(string(flow), "committed", result.Asset.MimeType, result.Asset.Bytes)
}

func (h *MediaHandler) recordFailure(flow media.Flow) {
	metrics.RecordIngestion(string(flow), "failed", "", 0)
}

// readFormFile reads at most limit bytes; a larger body is rejected rather than truncated.
func readFormFile(open func() (multipart.File, error), limit int64) ([]byte, error) {
	file, err := open()
	if err != nil {
		return nil, err
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, media.ErrObjectTooLarge
	}
	return data, nil
}
