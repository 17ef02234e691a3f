package rendition

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jan-server/services/media-ingest/internal/config"
	"jan-server/services/media-ingest/internal/domain/media"
)

type memStore struct {
	mu        sync.Mutex
	objects   map[string][]byte
	failOn    string
	prefixDel []string
}

func (m *memStore) Put(_ context.Context, key string, data []byte, _ string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failOn != "" && strings.Contains(key, m.failOn) {
		return "", errors.New("503 slow down")
	}
	m.objects[key] = data
	return "https://cdn.test/" + key, nil
}

func (m *memStore) Get(context.Context, string, int64) ([]byte, error) {
	return nil, media.ErrObjectNotFound
}

func (m *memStore) DeleteByLogicalID(_ context.Context, id string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prefixDel = append(m.prefixDel, id)
	n := 0
	for key := range m.objects {
		if strings.HasPrefix(key, "media/"+id+"/") {
			delete(m.objects, key)
			n++
		}
	}
	return n, nil
}

func (m *memStore) DeleteByKey(context.Context, string) error { return nil }
func (m *memStore) PresignPut(context.Context, string, string, time.Duration) (string, error) {
	return "", media.ErrPresignUnsupported
}
func (m *memStore) SupportsPresignedUploads() bool { return false }
func (m *memStore) List(context.Context, string) ([]media.ObjectInfo, error) {
	return nil, nil
}

func newTestGenerator(store *memStore) *Generator {
	cfg := &config.Config{RenditionPrefix: "media", RenditionJPEGQuality: 85, CompactJPEGQuality: 60, RollbackTimeout: time.Second}
	return NewGenerator(cfg, store, zerolog.Nop())
}

func testPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.NRGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestGenerate_FullSet(t *testing.T) {
	store := &memStore{objects: map[string][]byte{}}
	g := newTestGenerator(store)

	out, err := g.Generate(context.Background(), testPNG(t, 1600, 800), "01hx0000000000000000000000")
	require.NoError(t, err)

	assert.Equal(t, "01hx0000000000000000000000", out.LogicalAssetID)
	assert.Equal(t, media.SourceInfo{MimeType: "image/png", Width: 1600, Height: 800, Bytes: out.Source.Bytes}, out.Source)
	require.Len(t, out.Renditions, 7)
	assert.Len(t, store.objects, 7)

	thumb := out.Renditions[media.RenditionKey{Size: media.SizeThumbnail, Format: media.FormatPrimary}]
	assert.Equal(t, "media/01hx0000000000000000000000/thumbnail.jpg", thumb.StorageKey)
	assert.Equal(t, 200, thumb.Width)
	assert.Equal(t, 100, thumb.Height)
	assert.Equal(t, "https://cdn.test/"+thumb.StorageKey, thumb.URL)

	compact := out.Renditions[media.RenditionKey{Size: media.SizeRegular, Format: media.FormatCompact}]
	assert.Equal(t, "media/01hx0000000000000000000000/regular.compact.jpg", compact.StorageKey)
	assert.Equal(t, 1080, compact.Width)

	original := out.Renditions[media.RenditionKey{Size: media.SizeOriginal, Format: media.FormatPrimary}]
	assert.Equal(t, 1600, original.Width)
	_, hasCompactOriginal := out.Renditions[media.RenditionKey{Size: media.SizeOriginal, Format: media.FormatCompact}]
	assert.False(t, hasCompactOriginal)
}

func TestGenerate_DoesNotUpscale(t *testing.T) {
	store := &memStore{objects: map[string][]byte{}}
	out, err := newTestGenerator(store).Generate(context.Background(), testPNG(t, 120, 90), "01hx0000000000000000000001")
	require.NoError(t, err)

	small := out.Renditions[media.RenditionKey{Size: media.SizeSmall, Format: media.FormatPrimary}]
	assert.Equal(t, 120, small.Width)
	assert.Equal(t, 90, small.Height)
}

func TestGenerate_UnsupportedBytes(t *testing.T) {
	store := &memStore{objects: map[string][]byte{}}
	_, err := newTestGenerator(store).Generate(context.Background(), []byte("definitely not an image"), "01hx0000000000000000000002")
	assert.ErrorIs(t, err, media.ErrUnsupportedImage)
	assert.Empty(t, store.objects)
	assert.Empty(t, store.prefixDel)
}

func TestGenerate_PartialUploadFailureCleansUp(t *testing.T) {
	store := &memStore{objects: map[string][]byte{}, failOn: "regular.compact"}
	_, err := newTestGenerator(store).Generate(context.Background(), testPNG(t, 64, 64), "01hx0000000000000000000003")
	require.Error(t, err)
	assert.NotErrorIs(t, err, media.ErrUnsupportedImage)

	assert.Equal(t, []string{"01hx0000000000000000000003"}, store.prefixDel)
	assert.Empty(t, store.objects, "no partial writes survive")
}

func TestObjectKey(t *testing.T) {
	assert.Equal(t, "assets/abc/small.jpg", ObjectKey("assets", "abc", media.SizeSmall, media.FormatPrimary))
	assert.Equal(t, "assets/abc/small.compact.jpg", ObjectKey("assets", "abc", media.SizeSmall, media.FormatCompact))
}
