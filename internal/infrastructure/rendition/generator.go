// Package rendition derives the fixed rendition set of an image and stores it
// under the asset's logical id.
package rendition

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"time"

	"github.com/disintegration/imaging"
	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	// Registers the webp decoder with image.Decode, which imaging uses.
	_ "golang.org/x/image/webp"

	"jan-server/services/media-ingest/internal/config"
	"jan-server/services/media-ingest/internal/domain/media"
	"jan-server/services/media-ingest/internal/infrastructure/metrics"
)

// Spec is one target size. Width and Height bound the output box; zero
// means the source dimensions are kept.
type Spec struct {
	Size    media.Size
	Width   int
	Height  int
	Compact bool
}

// DefaultSpecs is the rendition set every asset receives.
var DefaultSpecs = []Spec{
	{Size: media.SizeThumbnail, Width: 200, Height: 200, Compact: true},
	{Size: media.SizeSmall, Width: 400, Height: 400, Compact: true},
	{Size: media.SizeRegular, Width: 1080, Height: 1080, Compact: true},
	{Size: media.SizeOriginal},
}

// maxSourcePixels guards the decoder against decompression bombs.
const maxSourcePixels = 50_000_000

// Generator resizes and encodes renditions and writes them through Storage.
type Generator struct {
	storage         media.Storage
	renditionPrefix string
	quality         int
	compactQuality  int
	cleanupTimeout  time.Duration
	specs           []Spec
	log             zerolog.Logger
}

func NewGenerator(cfg *config.Config, storage media.Storage, log zerolog.Logger) *Generator {
	return &Generator{
		storage:         storage,
		renditionPrefix: cfg.RenditionPrefix,
		quality:         cfg.RenditionJPEGQuality,
		compactQuality:  cfg.CompactJPEGQuality,
		cleanupTimeout:  cfg.RollbackTimeout,
		specs:           DefaultSpecs,
		log:             log.With().Str("component", "rendition-generator").Logger(),
	}
}

type encoded struct {
	key    media.RenditionKey
	object string
	data   []byte
	width  int
	height int
}

// Generate decodes raw, writes every rendition under logicalAssetID and
// returns their locators. On failure nothing it wrote is left behind.
func (g *Generator) Generate(ctx context.Context, raw []byte, logicalAssetID string) (*media.GeneratedRenditions, error) {
	start := time.Now()

	cfg, format, err := image.DecodeConfig(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", media.ErrUnsupportedImage, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || cfg.Width*cfg.Height > maxSourcePixels {
		return nil, fmt.Errorf("image dimensions %dx%d out of bounds", cfg.Width, cfg.Height)
	}

	src, err := imaging.Decode(bytes.NewReader(raw), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", media.ErrUnsupportedImage, format, err)
	}

	outputs, err := g.encodeAll(ctx, src, logicalAssetID)
	if err != nil {
		return nil, err
	}

	result := &media.GeneratedRenditions{
		LogicalAssetID: logicalAssetID,
		Renditions:     make(media.Renditions, len(outputs)),
		Source: media.SourceInfo{
			MimeType: mimetype.Detect(raw).String(),
			Width:    src.Bounds().Dx(),
			Height:   src.Bounds().Dy(),
			Bytes:    int64(len(raw)),
		},
	}

	locators := make([]string, len(outputs))
	group, uploadCtx := errgroup.WithContext(ctx)
	group.SetLimit(4)
	for i, out := range outputs {
		group.Go(func() error {
			locator, err := g.storage.Put(uploadCtx, out.object, out.data, "image/jpeg")
			if err != nil {
				return fmt.Errorf("store %s: %w", out.key, err)
			}
			locators[i] = locator
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		g.cleanup(ctx, logicalAssetID)
		return nil, err
	}

	for i, out := range outputs {
		result.Renditions[out.key] = media.Rendition{
			StorageKey: out.object,
			URL:        locators[i],
			Width:      out.width,
			Height:     out.height,
			Bytes:      int64(len(out.data)),
		}
	}

	metrics.RecordRendition(time.Since(start).Seconds())
	g.log.Debug().
		Str("logical_asset_id", logicalAssetID).
		Str("source_format", format).
		Int("renditions", len(result.Renditions)).
		Dur("elapsed", time.Since(start)).
		Msg("renditions generated")
	return result, nil
}

func (g *Generator) encodeAll(ctx context.Context, src image.Image, logicalAssetID string) ([]encoded, error) {
	var outputs []encoded
	for _, spec := range g.specs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		img := src
		if spec.Width > 0 || spec.Height > 0 {
			img = imaging.Fit(src, spec.Width, spec.Height, imaging.Lanczos)
		}

		primary, err := encodeJPEG(img, g.quality)
		if err != nil {
			return nil, err
		}
		outputs = append(outputs, encoded{
			key:    media.RenditionKey{Size: spec.Size, Format: media.FormatPrimary},
			object: ObjectKey(g.renditionPrefix, logicalAssetID, spec.Size, media.FormatPrimary),
			data:   primary,
			width:  img.Bounds().Dx(),
			height: img.Bounds().Dy(),
		})

		if !spec.Compact {
			continue
		}
		compact, err := encodeJPEG(img, g.compactQuality)
		if err != nil {
			return nil, err
		}
		outputs = append(outputs, encoded{
			key:    media.RenditionKey{Size: spec.Size, Format: media.FormatCompact},
			object: ObjectKey(g.renditionPrefix, logicalAssetID, spec.Size, media.FormatCompact),
			data:   compact,
			width:  img.Bounds().Dx(),
			height: img.Bounds().Dy(),
		})
	}
	return outputs, nil
}

func encodeJPEG(img image.Image, quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(quality)); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

// cleanup removes partial writes. It runs even when ctx was cancelled.
func (g *Generator) cleanup(ctx context.Context, logicalAssetID string) {
	cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), g.cleanupTimeout)
	defer cancel()
	removed, err := g.storage.DeleteByLogicalID(cleanupCtx, logicalAssetID)
	event := g.log.Warn()
	if err != nil && !errors.Is(err, context.Canceled) {
		event = g.log.Error().Err(err)
	}
	event.Str("logical_asset_id", logicalAssetID).Int("removed", removed).Msg("cleaned up partial renditions")
}

// ObjectKey is the storage key of one rendition.
func ObjectKey(renditionPrefix, logicalAssetID string, size media.Size, format media.Format) string {
	name := string(size)
	if format == media.FormatCompact {
		name += ".compact"
	}
	return renditionPrefix + "/" + logicalAssetID + "/" + name + ".jpg"
}
