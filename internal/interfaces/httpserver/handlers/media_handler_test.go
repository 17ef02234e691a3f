package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jan-server/services/media-ingest/internal/config"
	"jan-server/services/media-ingest/internal/domain/media"
	"jan-server/services/media-ingest/internal/infrastructure/auth"
	"jan-server/services/media-ingest/internal/utils/platformerrors"
)

type fakeService struct {
	issue    func(ctx context.Context, req media.CredentialRequest) (*media.UploadCredential, error)
	ingest   func(ctx context.Context, req media.IngestRequest) (*media.IngestResult, error)
	finalize func(ctx context.Context, req media.FinalizeRequest) (*media.IngestResult, error)
	get      func(ctx context.Context, id string) (*media.MediaAsset, error)
	delete   func(ctx context.Context, caller media.Caller, id string) error
	moderate func(ctx context.Context, req media.ModerationRequest) (*media.MediaAsset, error)
	download func(ctx context.Context, id string) (*media.MediaAsset, error)
}

func (f *fakeService) IssueUploadCredential(ctx context.Context, req media.CredentialRequest) (*media.UploadCredential, error) {
	return f.issue(ctx, req)
}

func (f *fakeService) Ingest(ctx context.Context, req media.IngestRequest) (*media.IngestResult, error) {
	return f.ingest(ctx, req)
}

func (f *fakeService) Finalize(ctx context.Context, req media.FinalizeRequest) (*media.IngestResult, error) {
	return f.finalize(ctx, req)
}

func (f *fakeService) Get(ctx context.Context, id string) (*media.MediaAsset, error) {
	return f.get(ctx, id)
}

func (f *fakeService) Delete(ctx context.Context, caller media.Caller, id string) error {
	return f.delete(ctx, caller, id)
}

func (f *fakeService) Moderate(ctx context.Context, req media.ModerationRequest) (*media.MediaAsset, error) {
	return f.moderate(ctx, req)
}

func (f *fakeService) RecordDownload(ctx context.Context, id string) (*media.MediaAsset, error) {
	return f.download(ctx, id)
}

func newTestRouter(t *testing.T, svc *fakeService) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{MaxMediaBytes: 1024, AuthAdminRole: "admin"}
	validator, err := auth.NewValidator(context.Background(), cfg, zerolog.Nop())
	require.NoError(t, err)

	h := NewMediaHandler(cfg, svc, zerolog.Nop())
	engine := gin.New()
	engine.Use(validator.Middleware())
	group := engine.Group("/v1/media")
	group.POST("/upload-credentials", h.IssueUploadCredential)
	group.POST("/upload", h.Upload)
	group.POST("/finalize", h.Finalize)
	group.GET("/:id", h.Get)
	group.DELETE("/:id", h.Delete)
	group.PATCH("/:id/moderation", h.Moderate)
	group.POST("/:id/downloads", h.RecordDownload)
	return engine
}

func sampleAsset() *media.MediaAsset {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return &media.MediaAsset{
		ID:             "med_01hqz3k5x7m2n8p4r6t9v0w1y3",
		LogicalAssetID: "asset_1",
		Renditions: media.Renditions{
			{Size: media.SizeThumbnail, Format: media.FormatPrimary}: {URL: "https://cdn/thumb.jpg"},
			{Size: media.SizeOriginal, Format: media.FormatPrimary}:  {URL: "https://cdn/orig.jpg"},
			{Size: media.SizeOriginal, Format: media.FormatCompact}:  {URL: "https://cdn/orig.webp"},
		},
		Title:           "Sunrise",
		OwnerID:         "user-1",
		CategoryID:      "cat_general",
		Coordinates:     &media.Coordinates{Latitude: 10.5, Longitude: -20},
		MimeType:        "image/jpeg",
		Bytes:           512,
		ModerationState: media.ModerationPending,
		Downloads:       3,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

func doJSON(engine *gin.Engine, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

var owner = map[string]string{auth.HeaderUserID: "user-1"}

func TestIssueUploadCredential(t *testing.T) {
	var got media.CredentialRequest
	svc := &fakeService{issue: func(_ context.Context, req media.CredentialRequest) (*media.UploadCredential, error) {
		got = req
		return &media.UploadCredential{UploadID: "image-1-abcdef12", StagingKey: "staging/x.jpg", WriteURL: "https://s3/x", ExpiresInSeconds: 900, MaxFileSize: 1024}, nil
	}}
	engine := newTestRouter(t, svc)

	rec := doJSON(engine, http.MethodPost, "/v1/media/upload-credentials",
		`{"file_name":"a.jpg","mime_type":"image/jpeg","declared_size":100}`, owner)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "https://s3/x", body["write_url"])
	assert.Equal(t, "user-1", got.Caller.ID)
	assert.Equal(t, int64(100), got.DeclaredSize)
}

func TestIssueUploadCredential_RequiresCaller(t *testing.T) {
	engine := newTestRouter(t, &fakeService{})
	rec := doJSON(engine, http.MethodPost, "/v1/media/upload-credentials", `{}`, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestIssueUploadCredential_ValidationMessage(t *testing.T) {
	engine := newTestRouter(t, &fakeService{})
	rec := doJSON(engine, http.MethodPost, "/v1/media/upload-credentials",
		`{"file_name":"a.jpg","mime_type":"image/jpeg"}`, owner)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "declared_size is required", decode(t, rec)["error"])
}

func TestFinalize_RejectsMalformedUploadIDBeforeService(t *testing.T) {
	called := false
	svc := &fakeService{finalize: func(context.Context, media.FinalizeRequest) (*media.IngestResult, error) {
		called = true
		return nil, nil
	}}
	engine := newTestRouter(t, svc)

	rec := doJSON(engine, http.MethodPost, "/v1/media/finalize",
		`{"upload_id":"../etc/passwd","staging_key":"staging/x.jpg"}`, owner)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid upload id", decode(t, rec)["error"])
	assert.False(t, called)
}

func TestFinalize_CreatedThenReplayed(t *testing.T) {
	replay := false
	var got media.FinalizeRequest
	svc := &fakeService{finalize: func(_ context.Context, req media.FinalizeRequest) (*media.IngestResult, error) {
		got = req
		return &media.IngestResult{Asset: sampleAsset(), Replayed: replay}, nil
	}}
	engine := newTestRouter(t, svc)
	body := `{"upload_id":"image-1700000000000-abcdef12","staging_key":"staging/image-1700000000000-abcdef12.jpg","title":"Sunrise","latitude":10.5,"longitude":"-20","tags":["a","b"]}`

	rec := doJSON(engine, http.MethodPost, "/v1/media/finalize", body, owner)
	require.Equal(t, http.StatusCreated, rec.Code)
	asset := decode(t, rec)["media_asset"].(map[string]any)
	assert.Equal(t, "https://cdn/thumb.jpg", asset["thumbnail_url"])
	assert.Equal(t, "https://cdn/orig.webp", asset["original_compact_url"])
	assert.NotContains(t, asset, "small_url")
	assert.Equal(t, "10.5", got.Metadata.Latitude)
	assert.Equal(t, "-20", got.Metadata.Longitude)
	assert.Equal(t, []string{"a", "b"}, got.Metadata.Tags)

	replay = true
	rec = doJSON(engine, http.MethodPost, "/v1/media/finalize", body, owner)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decode(t, rec)["replayed"])
}

func TestFinalize_PlatformErrorStatus(t *testing.T) {
	svc := &fakeService{finalize: func(ctx context.Context, _ media.FinalizeRequest) (*media.IngestResult, error) {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeNotFound, "staged upload not found", nil, "5f7b3892-0784-47e5-ae5c-49cc3490949e")
	}}
	engine := newTestRouter(t, svc)

	rec := doJSON(engine, http.MethodPost, "/v1/media/finalize",
		`{"upload_id":"image-1700000000000-abcdef12","staging_key":"staging/image-1700000000000-abcdef12.jpg"}`, owner)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "staged upload not found", body["error"])
	assert.Equal(t, "5f7b3892-0784-47e5-ae5c-49cc3490949e", body["code"])
}

func multipartBody(t *testing.T, fields map[string]string, file []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	if file != nil {
		part, err := w.CreateFormFile("file", "photo.jpg")
		require.NoError(t, err)
		_, err = part.Write(file)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func TestUpload(t *testing.T) {
	var got media.IngestRequest
	svc := &fakeService{ingest: func(_ context.Context, req media.IngestRequest) (*media.IngestResult, error) {
		got = req
		return &media.IngestResult{Asset: sampleAsset()}, nil
	}}
	engine := newTestRouter(t, svc)

	body, contentType := multipartBody(t, map[string]string{
		"title":    "Sunrise",
		"category": "Nature",
		"tags":     "sky, sun",
		"latitude": "10.5",
	}, []byte("image-bytes"))
	req := httptest.NewRequest(http.MethodPost, "/v1/media/upload", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set(auth.HeaderUserID, "user-1")
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, []byte("image-bytes"), got.Data)
	assert.Equal(t, "photo.jpg", got.FileName)
	assert.Equal(t, "Nature", got.Metadata.CategoryRef)
	assert.Equal(t, []string{"sky", " sun"}, got.Metadata.Tags)
	assert.Equal(t, "10.5", got.Metadata.Latitude)
}

func TestUpload_MissingFile(t *testing.T) {
	engine := newTestRouter(t, &fakeService{})
	body, contentType := multipartBody(t, map[string]string{"title": "x"}, nil)
	req := httptest.NewRequest(http.MethodPost, "/v1/media/upload", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set(auth.HeaderUserID, "user-1")
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpload_TooLarge(t *testing.T) {
	engine := newTestRouter(t, &fakeService{})
	body, contentType := multipartBody(t, nil, bytes.Repeat([]byte{1}, 2048))
	req := httptest.NewRequest(http.MethodPost, "/v1/media/upload", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set(auth.HeaderUserID, "user-1")
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestGet_AnonymousAllowed(t *testing.T) {
	svc := &fakeService{get: func(_ context.Context, id string) (*media.MediaAsset, error) {
		asset := sampleAsset()
		asset.ID = id
		return asset, nil
	}}
	engine := newTestRouter(t, svc)

	rec := doJSON(engine, http.MethodGet, "/v1/media/med_01hqz3k5x7m2n8p4r6t9v0w1y3", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "med_01hqz3k5x7m2n8p4r6t9v0w1y3", body["id"])
	assert.Equal(t, 10.5, body["latitude"])
	assert.Equal(t, []any{}, body["tags"])
}

func TestDelete_PassesAdminRole(t *testing.T) {
	var got media.Caller
	svc := &fakeService{delete: func(_ context.Context, caller media.Caller, _ string) error {
		got = caller
		return nil
	}}
	engine := newTestRouter(t, svc)

	rec := doJSON(engine, http.MethodDelete, "/v1/media/med_01hqz3k5x7m2n8p4r6t9v0w1y3", "",
		map[string]string{auth.HeaderUserID: "mod-1", auth.HeaderUserRoles: "user, Admin"})

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, media.Caller{ID: "mod-1", IsAdmin: true}, got)
}

func TestModerate_InvalidState(t *testing.T) {
	engine := newTestRouter(t, &fakeService{})
	rec := doJSON(engine, http.MethodPatch, "/v1/media/med_01hqz3k5x7m2n8p4r6t9v0w1y3/moderation", `{"state":"burned"}`, owner)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decode(t, rec)["error"], "state must be one of")
}

func TestModerate_Forbidden(t *testing.T) {
	svc := &fakeService{moderate: func(ctx context.Context, _ media.ModerationRequest) (*media.MediaAsset, error) {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeForbidden, "moderation requires an administrator", nil, "e58b2aba-f660-4876-8dbf-11bcc81af4a9")
	}}
	engine := newTestRouter(t, svc)
	rec := doJSON(engine, http.MethodPatch, "/v1/media/med_01hqz3k5x7m2n8p4r6t9v0w1y3/moderation", `{"state":"approved"}`, owner)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRecordDownload(t *testing.T) {
	svc := &fakeService{download: func(context.Context, string) (*media.MediaAsset, error) {
		asset := sampleAsset()
		asset.Downloads = 4
		return asset, nil
	}}
	engine := newTestRouter(t, svc)

	rec := doJSON(engine, http.MethodPost, "/v1/media/med_01hqz3k5x7m2n8p4r6t9v0w1y3/downloads", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "https://cdn/orig.jpg", body["url"])
	assert.Equal(t, float64(4), body["downloads"])
}

func TestUnexpectedErrorIsGeneric(t *testing.T) {
	svc := &fakeService{get: func(context.Context, string) (*media.MediaAsset, error) {
		return nil, assert.AnError
	}}
	engine := newTestRouter(t, svc)

	rec := doJSON(engine, http.MethodGet, "/v1/media/med_01hqz3k5x7m2n8p4r6t9v0w1y3", "", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "failed to load media", decode(t, rec)["error"])
}
