package extractor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math/big"
	"strings"

	"github.com/rwcarlsen/goexif/exif"

	"jan-server/services/media-ingest/internal/domain/media"
)

// ExifExtractor reads camera fields from the EXIF block, if there is one.
type ExifExtractor struct{}

func NewExifExtractor() *ExifExtractor {
	return &ExifExtractor{}
}

// Extract returns whatever camera fields are present. A file without EXIF
// yields an empty record and no error.
func (e *ExifExtractor) Extract(ctx context.Context, raw []byte) (media.ExifData, error) {
	if err := ctx.Err(); err != nil {
		return media.ExifData{}, err
	}
	x, err := exif.Decode(bytes.NewReader(raw))
	if x == nil {
		if err == nil || isMissingExif(err) {
			return media.ExifData{}, nil
		}
		return media.ExifData{}, fmt.Errorf("decode exif: %w", err)
	}
	// A non-nil x with an error is a partial decode; use what was read.

	data := media.ExifData{
		CameraMake:  stringField(x, exif.Make),
		CameraModel: stringField(x, exif.Model),
	}
	if focal, ok := ratField(x, exif.FocalLength); ok {
		data.FocalLength = trimFloat(focal) + "mm"
	}
	if aperture, ok := ratField(x, exif.FNumber); ok {
		data.Aperture = "f/" + trimFloat(aperture)
	}
	if exposure, ok := ratRaw(x, exif.ExposureTime); ok {
		data.ShutterSpeed = formatExposure(exposure)
	}
	if tag, err := x.Get(exif.ISOSpeedRatings); err == nil {
		if iso, err := tag.Int(0); err == nil && iso > 0 {
			data.ISO = &iso
		}
	}
	return data, nil
}

func isMissingExif(err error) bool {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "EOF") || strings.Contains(msg, "intro marker")
}

func stringField(x *exif.Exif, name exif.FieldName) string {
	tag, err := x.Get(name)
	if err != nil {
		return ""
	}
	value, err := tag.StringVal()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(strings.TrimRight(value, "\x00"))
}

func ratRaw(x *exif.Exif, name exif.FieldName) (*big.Rat, bool) {
	tag, err := x.Get(name)
	if err != nil {
		return nil, false
	}
	rat, err := tag.Rat(0)
	if err != nil || rat.Sign() <= 0 {
		return nil, false
	}
	return rat, true
}

func ratField(x *exif.Exif, name exif.FieldName) (float64, bool) {
	rat, ok := ratRaw(x, name)
	if !ok {
		return 0, false
	}
	value, _ := rat.Float64()
	return value, true
}

func trimFloat(value float64) string {
	s := fmt.Sprintf("%.1f", value)
	return strings.TrimSuffix(s, ".0")
}

// formatExposure renders sub-second exposures as 1/N s and longer ones in seconds.
func formatExposure(rat *big.Rat) string {
	seconds, _ := rat.Float64()
	if seconds >= 1 {
		return trimFloat(seconds) + "s"
	}
	return fmt.Sprintf("1/%.0fs", 1/seconds)
}
