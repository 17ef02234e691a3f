package media

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"jan-server/services/media-ingest/internal/config"
	"jan-server/services/media-ingest/internal/utils/platformerrors"
	"jan-server/services/media-ingest/utils/mediaid"
)

const (
	maxDominantColors = 3

	TaskCacheInvalidation = "cache_invalidation"
	TaskNotifyIngested    = "notify_ingested"
	TaskNotifyFailed      = "notify_ingest_failed"
	TaskDeleteStagedRaw   = "delete_staged_raw"
)

var hexColorPattern = regexp.MustCompile(`^#[0-9a-f]{6}$`)

// Dependencies groups the collaborators of Service. Optional side-effect
// ports fall back to no-ops when nil.
type Dependencies struct {
	Repository Repository
	Storage    Storage
	Generator  RenditionGenerator
	Colors     ColorExtractor
	Exif       ExifExtractor
	Categories CategoryResolver
	Notifier   NotificationSink
	Cache      CacheInvalidator
	Dispatcher TaskDispatcher
	Locker     Locker
}

// Service orchestrates media ingestion and the asset lifecycle.
type Service struct {
	cfg        *config.Config
	repo       Repository
	storage    Storage
	generator  RenditionGenerator
	colors     ColorExtractor
	exif       ExifExtractor
	categories CategoryResolver
	notifier   NotificationSink
	cache      CacheInvalidator
	dispatcher TaskDispatcher
	locker     Locker
	log        zerolog.Logger
	tracer     trace.Tracer
	now        func() time.Time
}

func NewService(cfg *config.Config, deps Dependencies, log zerolog.Logger) *Service {
	s := &Service{
		cfg:        cfg,
		repo:       deps.Repository,
		storage:    deps.Storage,
		generator:  deps.Generator,
		colors:     deps.Colors,
		exif:       deps.Exif,
		categories: deps.Categories,
		notifier:   deps.Notifier,
		cache:      deps.Cache,
		dispatcher: deps.Dispatcher,
		locker:     deps.Locker,
		log:        log.With().Str("component", "media-service").Logger(),
		tracer:     otel.Tracer("media-ingest/domain/media"),
		now:        time.Now,
	}
	if s.notifier == nil {
		s.notifier = NoopNotificationSink{}
	}
	if s.cache == nil {
		s.cache = NoopCacheInvalidator{}
	}
	if s.dispatcher == nil {
		s.dispatcher = InlineDispatcher{}
	}
	if s.locker == nil {
		s.locker = NoopLocker{}
	}
	return s
}

// pipelineInput is what both entry shapes hand to the shared pipeline.
type pipelineInput struct {
	caller     Caller
	raw        []byte
	mimeType   string
	meta       *normalizedMetadata
	uploadID   string
	stagingKey string
}

// Ingest runs single-phase ingestion over raw bytes received with the request.
func (s *Service) Ingest(ctx context.Context, req IngestRequest) (*IngestResult, error) {
	ctx, span := s.tracer.Start(ctx, "media.Ingest", trace.WithAttributes(
		attribute.String("media.flow", string(FlowSinglePhase)),
		attribute.Int("media.bytes", len(req.Data)),
	))
	defer span.End()

	run := newPipelineRun(FlowSinglePhase, span, s.log)

	mimeType, err := s.validateRaw(ctx, req.Data)
	if err != nil {
		run.fail()
		return nil, recordSpanError(span, err)
	}
	meta, err := s.normalizeMetadata(ctx, req.Metadata)
	if err != nil {
		run.fail()
		return nil, recordSpanError(span, err)
	}
	run.advance(StateRawReceived)

	asset, replayed, err := s.runPipeline(ctx, run, pipelineInput{
		caller:   req.Caller,
		raw:      req.Data,
		mimeType: mimeType,
		meta:     meta,
	})
	if err != nil {
		return nil, recordSpanError(span, err)
	}
	return &IngestResult{Asset: asset, Replayed: replayed}, nil
}

// Finalize completes a two-phase upload from its staged object. Retrying a
// committed upload id returns the existing record.
func (s *Service) Finalize(ctx context.Context, req FinalizeRequest) (*IngestResult, error) {
	uploadID := strings.TrimSpace(req.UploadID)
	stagingKey := strings.TrimSpace(req.StagingKey)

	ctx, span := s.tracer.Start(ctx, "media.Finalize", trace.WithAttributes(
		attribute.String("media.flow", string(FlowFinalize)),
		attribute.String("media.upload_id", uploadID),
	))
	defer span.End()

	run := newPipelineRun(FlowFinalize, span, s.log.With().Str("upload_id", uploadID).Logger())

	if !mediaid.IsValidUploadID(uploadID) {
		run.fail()
		return nil, recordSpanError(span, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation, "invalid upload_id", nil, "79439544-66dd-4c9d-8d86-07357ec21f8b"))
	}
	if !s.stagingKeyBelongsTo(stagingKey, uploadID) {
		run.fail()
		return nil, recordSpanError(span, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation, "staging_key does not belong to upload_id", nil, "8d93bdc0-d8cf-4a07-86e1-4383d58522ef"))
	}
	meta, err := s.normalizeMetadata(ctx, req.Metadata)
	if err != nil {
		run.fail()
		return nil, recordSpanError(span, err)
	}

	if existing, err := s.findFinalized(ctx, req.Caller, uploadID); err != nil || existing != nil {
		if err != nil {
			run.fail()
			return nil, recordSpanError(span, err)
		}
		span.SetAttributes(attribute.Bool("media.replayed", true))
		return &IngestResult{Asset: existing, Replayed: true}, nil
	}

	var result *IngestResult
	lockName := "media:finalize:" + uploadID
	err = s.locker.WithLock(ctx, lockName, s.cfg.FinalizeLockTTL, func(ctx context.Context) error {
		// A concurrent finalize may have committed while we waited for the lock.
		existing, err := s.findFinalized(ctx, req.Caller, uploadID)
		if err != nil {
			return err
		}
		if existing != nil {
			result = &IngestResult{Asset: existing, Replayed: true}
			return nil
		}

		raw, err := s.readStaged(ctx, stagingKey)
		if err != nil {
			return err
		}
		mimeType, err := s.validateRaw(ctx, raw)
		if err != nil {
			return err
		}
		run.advance(StateRawStaged)

		asset, replayed, err := s.runPipeline(ctx, run, pipelineInput{
			caller:     req.Caller,
			raw:        raw,
			mimeType:   mimeType,
			meta:       meta,
			uploadID:   uploadID,
			stagingKey: stagingKey,
		})
		if err != nil {
			return err
		}
		result = &IngestResult{Asset: asset, Replayed: replayed}
		return nil
	})
	if err != nil {
		if run.state != StateFailed {
			run.fail()
		}
		if errors.Is(err, ErrLockNotAcquired) {
			err = platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeConflict, "finalize already in progress for this upload", err, "af58e1b3-9628-4df3-9b49-46b3c33a7a8c")
		}
		return nil, recordSpanError(span, err)
	}
	if result.Replayed {
		span.SetAttributes(attribute.Bool("media.replayed", true))
	}
	return result, nil
}

func (s *Service) findFinalized(ctx context.Context, caller Caller, uploadID string) (*MediaAsset, error) {
	existing, err := s.repo.FindByUploadID(ctx, uploadID)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to look up upload")
	}
	if existing == nil {
		return nil, nil
	}
	if !caller.CanManage(existing) {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeConflict, "upload has already been finalized", nil, "13cd1f59-6ff4-4bf9-97ef-7f1e9306573c")
	}
	return existing, nil
}

func (s *Service) readStaged(ctx context.Context, key string) ([]byte, error) {
	raw, err := s.storage.Get(ctx, key, s.cfg.MaxMediaBytes)
	switch {
	case err == nil:
		return raw, nil
	case errors.Is(err, ErrObjectNotFound):
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeNotFound, "staged upload not found or expired", err, "ae023a7d-5d21-40b8-9f58-336804fa7ba8")
	case errors.Is(err, ErrObjectTooLarge):
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeTooLarge, fmt.Sprintf("file too large: maximum is %d bytes", s.cfg.MaxMediaBytes), err, "9a43dac4-c1b7-4d6c-b2d8-45a4b467cd8b")
	default:
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeExternal, "storage is temporarily unavailable, please retry", err, "de03a44a-ea11-40b8-b680-4117bea89e81")
	}
}

// validateRaw checks size and sniffs the content type.
func (s *Service) validateRaw(ctx context.Context, raw []byte) (string, error) {
	if len(raw) == 0 {
		return "", platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation, "file is empty", nil, "b82d3013-a81f-4054-bda6-3cb2256877e7")
	}
	if int64(len(raw)) > s.cfg.MaxMediaBytes {
		return "", platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeTooLarge, fmt.Sprintf("file too large: maximum is %d bytes", s.cfg.MaxMediaBytes), nil, "9c07dd2f-2187-4fe4-9d7a-c292e992c23d")
	}
	mimeType := mimetype.Detect(raw).String()
	if !strings.HasPrefix(mimeType, "image/") {
		return "", platformerrors.NewErrorWithContext(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation, "only image uploads are supported", nil, "561615bf-5e9a-4382-acf8-bea94171b626", map[string]any{"detected_mime": mimeType})
	}
	return mimeType, nil
}

// runPipeline drives Deriving through Committed, rolling back renditions when the commit fails.
func (s *Service) runPipeline(ctx context.Context, run *pipelineRun, in pipelineInput) (*MediaAsset, bool, error) {
	run.advance(StateDeriving)
	logicalID := mediaid.NewLogicalAssetID()
	run.span.SetAttributes(attribute.String("media.logical_asset_id", logicalID))
	log := run.log.With().Str("logical_asset_id", logicalID).Logger()

	generated, err := s.generator.Generate(ctx, in.raw, logicalID)
	if err != nil {
		run.fail()
		log.Warn().Err(err).Msg("rendition generation failed")
		if errors.Is(err, ErrUnsupportedImage) {
			return nil, false, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeInternal, "unsupported format: upload a JPEG, PNG, GIF or WebP image", err, "8678eda1-ad9e-4ff3-b1eb-8a0789a3cd7d")
		}
		return nil, false, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeInternal, "image processing failed, try again with a smaller image", err, "4dcc08ee-a80a-4a84-93f6-212e7385da74")
	}

	run.advance(StateMetadataExtracting)
	colors, exif := s.extractMetadata(ctx, in.raw)

	run.advance(StateCommitting)
	asset := s.assemble(in, generated, colors, exif)
	if err := s.repo.Create(ctx, asset); err != nil {
		run.advance(StateRollingBack)
		s.rollback(ctx, log, logicalID)
		run.advance(StateFailed)

		if in.uploadID != "" && errors.Is(err, ErrDuplicateRecord) {
			// Lost a finalize race that got past the lock; the winner's record stands.
			if existing, findErr := s.repo.FindByUploadID(ctx, in.uploadID); findErr == nil && existing != nil {
				log.Info().Str("media_id", existing.ID).Msg("finalize replay resolved to existing record")
				return existing, true, nil
			}
		}

		s.dispatchFailureNotice(in, logicalID, err)
		log.Error().Err(err).Msg("media record commit failed")
		return nil, false, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeDatabaseError, "failed to save media, please try again", err, "3329052d-3175-4a09-9671-fbda18d8db4f")
	}
	run.advance(StateCommitted)

	log.Info().
		Str("media_id", asset.ID).
		Str("owner_id", asset.OwnerID).
		Int("renditions", len(asset.Renditions)).
		Msg("media committed")

	s.dispatchCommitted(asset, in.stagingKey)
	return asset, false, nil
}

// rollback removes every rendition written under logicalID. Its outcome is
// logged only; the caller always surfaces the commit error.
func (s *Service) rollback(ctx context.Context, log zerolog.Logger, logicalID string) {
	rollbackCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.RollbackTimeout)
	defer cancel()

	removed, err := s.storage.DeleteByLogicalID(rollbackCtx, logicalID)
	if err != nil {
		log.Error().Err(err).Int("removed", removed).Msg("rendition rollback incomplete; orphan sweep will retry")
		return
	}
	log.Info().Int("removed", removed).Msg("renditions rolled back")
}

func (s *Service) extractMetadata(ctx context.Context, raw []byte) ([]string, ExifData) {
	var (
		colors []string
		exif   ExifData
	)
	var group errgroup.Group
	group.Go(func() error {
		colors = runExtractor(ctx, s.cfg.ExtractorTimeout, s.log, "dominant_colors", func(ctx context.Context) ([]string, error) {
			return s.colors.DominantColors(ctx, raw)
		})
		return nil
	})
	group.Go(func() error {
		exif = runExtractor(ctx, s.cfg.ExtractorTimeout, s.log, "exif", func(ctx context.Context) (ExifData, error) {
			return s.exif.Extract(ctx, raw)
		})
		return nil
	})
	_ = group.Wait()
	return sanitizeColors(colors), clipExif(exif)
}

// runExtractor bounds fn by timeout and converts errors and panics to the zero value.
func runExtractor[T any](ctx context.Context, timeout time.Duration, log zerolog.Logger, name string, fn func(ctx context.Context) (T, error)) T {
	var zero T
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type outcome struct {
		value T
		err   error
	}
	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: fmt.Errorf("extractor panic: %v", r)}
			}
		}()
		value, err := fn(ctx)
		done <- outcome{value: value, err: err}
	}()

	select {
	case out := <-done:
		if out.err != nil {
			log.Warn().Err(out.err).Str("extractor", name).Msg("metadata extraction failed")
			return zero
		}
		return out.value
	case <-ctx.Done():
		log.Warn().Err(ctx.Err()).Str("extractor", name).Msg("metadata extraction timed out")
		return zero
	}
}

func sanitizeColors(colors []string) []string {
	out := make([]string, 0, maxDominantColors)
	for _, color := range colors {
		color = strings.ToLower(strings.TrimSpace(color))
		if !strings.HasPrefix(color, "#") {
			color = "#" + color
		}
		if !hexColorPattern.MatchString(color) {
			continue
		}
		out = append(out, color)
		if len(out) == maxDominantColors {
			break
		}
	}
	return out
}

func (s *Service) assemble(in pipelineInput, generated *GeneratedRenditions, colors []string, exif ExifData) *MediaAsset {
	now := s.now().UTC()
	asset := &MediaAsset{
		ID:             mediaid.New(),
		LogicalAssetID: generated.LogicalAssetID,
		UploadID:       in.uploadID,
		Renditions:     generated.Renditions,
		Title:          in.meta.Title,
		OwnerID:        in.caller.ID,
		CategoryID:     in.meta.CategoryID,
		Location:       in.meta.Location,
		Coordinates:    in.meta.Coordinates,
		CameraMake:     exif.CameraMake,
		CameraModel:    exif.CameraModel,
		FocalLength:    exif.FocalLength,
		Aperture:       exif.Aperture,
		ShutterSpeed:   exif.ShutterSpeed,
		ISO:            exif.ISO,
		DominantColors: colors,
		Tags:           in.meta.Tags,
		MimeType:       in.mimeType,
		Bytes:          int64(len(in.raw)),
		Width:          generated.Source.Width,
		Height:         generated.Source.Height,
		DailyViews:     map[string]int64{},
		DailyDownloads: map[string]int64{},
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if in.meta.CameraModel != "" {
		asset.CameraModel = in.meta.CameraModel
	}
	if generated.Source.MimeType != "" {
		asset.MimeType = generated.Source.MimeType
	}

	if in.caller.IsAdmin {
		asset.ModerationState = ModerationApproved
		asset.IsModerated = true
		asset.ModeratedAt = &now
		asset.ModeratedBy = in.caller.ID
	} else {
		asset.ModerationState = ModerationPending
	}
	return asset
}

func (s *Service) dispatchCommitted(asset *MediaAsset, stagingKey string) {
	s.dispatcher.Dispatch(TaskCacheInvalidation, func(ctx context.Context) error {
		return s.cache.InvalidateAsset(ctx, asset)
	})
	s.dispatcher.Dispatch(TaskNotifyIngested, func(ctx context.Context) error {
		return s.notifier.NotifyIngested(ctx, asset)
	})
	if stagingKey != "" {
		s.dispatcher.Dispatch(TaskDeleteStagedRaw, func(ctx context.Context) error {
			return s.storage.DeleteByKey(ctx, stagingKey)
		})
	}
}

func (s *Service) dispatchFailureNotice(in pipelineInput, logicalID string, cause error) {
	failure := IngestFailure{
		OwnerID:        in.caller.ID,
		UploadID:       in.uploadID,
		LogicalAssetID: logicalID,
		Title:          in.meta.Title,
		Reason:         cause.Error(),
	}
	s.dispatcher.Dispatch(TaskNotifyFailed, func(ctx context.Context) error {
		return s.notifier.NotifyIngestFailed(ctx, failure)
	})
}

func recordSpanError(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}
