// Package extractor reads descriptive metadata out of raw image bytes.
// Extractors are pure; timeouts and panic recovery are applied by the caller.
package extractor

import (
	"bytes"
	"context"
	"fmt"

	"github.com/EdlinOrg/prominentcolor"
	"github.com/disintegration/imaging"

	_ "golang.org/x/image/webp"
)

const dominantColorCount = 3

// ColorExtractor finds the dominant colours of an image with k-means.
type ColorExtractor struct {
	resize uint
}

func NewColorExtractor() *ColorExtractor {
	return &ColorExtractor{resize: prominentcolor.DefaultSize}
}

// DominantColors returns up to three colours as lowercase #rrggbb, most common first.
func (e *ColorExtractor) DominantColors(ctx context.Context, raw []byte) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	img, err := imaging.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	items, err := prominentcolor.KmeansWithAll(dominantColorCount, img, prominentcolor.ArgumentNoCropping, e.resize, prominentcolor.GetDefaultMasks())
	if err != nil {
		return nil, fmt.Errorf("kmeans: %w", err)
	}

	colors := make([]string, 0, len(items))
	seen := make(map[string]struct{}, len(items))
	for _, item := range items {
		hex := fmt.Sprintf("#%02x%02x%02x", item.Color.R&0xff, item.Color.G&0xff, item.Color.B&0xff)
		if _, dup := seen[hex]; dup {
			continue
		}
		seen[hex] = struct{}{}
		colors = append(colors, hex)
		if len(colors) == dominantColorCount {
			break
		}
	}
	return colors, nil
}
