package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"jan-server/services/media-ingest/internal/config"
)

func testConfig() *config.Config {
	return &config.Config{
		MaxMediaBytes:     25 * 1024 * 1024,
		StagingPrefix:     "uploads/raw",
		RenditionPrefix:   "media",
		UploadURLTTL:      15 * time.Minute,
		ExtractorTimeout:  200 * time.Millisecond,
		SideEffectTimeout: time.Second,
		RollbackTimeout:   time.Second,
		FinalizeLockTTL:   time.Minute,
		StagingMaxAge:     24 * time.Hour,
		OrphanSweepMinAge: 6 * time.Hour,
		SweepLockTTL:      time.Minute,
	}
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for x := 0; x < 8; x++ {
		for y := 0; y < 8; y++ {
			img.Set(x, y, color.RGBA{R: 200, G: 40, B: 40, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

type memStorage struct {
	mu              sync.Mutex
	objects         map[string][]byte
	modified        map[string]time.Time
	renditionPrefix string
	presign         bool

	getErr    error
	deleteErr error

	gets          []string
	puts          []string
	prefixDeletes []string
	keyDeletes    []string
}

func newMemStorage() *memStorage {
	return &memStorage{objects: map[string][]byte{}, modified: map[string]time.Time{}, renditionPrefix: "media", presign: true}
}

func (m *memStorage) Put(_ context.Context, key string, data []byte, _ string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.puts = append(m.puts, key)
	m.objects[key] = append([]byte(nil), data...)
	return "https://cdn.test/" + key, nil
}

func (m *memStorage) Get(_ context.Context, key string, maxBytes int64) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gets = append(m.gets, key)
	if m.getErr != nil {
		return nil, m.getErr
	}
	data, ok := m.objects[key]
	if !ok {
		return nil, ErrObjectNotFound
	}
	if int64(len(data)) > maxBytes {
		return nil, ErrObjectTooLarge
	}
	return data, nil
}

func (m *memStorage) DeleteByLogicalID(_ context.Context, logicalAssetID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prefixDeletes = append(m.prefixDeletes, logicalAssetID)
	if m.deleteErr != nil {
		return 0, m.deleteErr
	}
	removed := 0
	for key := range m.objects {
		if strings.HasPrefix(key, m.renditionPrefix+"/"+logicalAssetID+"/") {
			delete(m.objects, key)
			removed++
		}
	}
	return removed, nil
}

func (m *memStorage) DeleteByKey(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.keyDeletes = append(m.keyDeletes, key)
	delete(m.objects, key)
	return nil
}

func (m *memStorage) PresignPut(_ context.Context, key, _ string, _ time.Duration) (string, error) {
	if !m.presign {
		return "", ErrPresignUnsupported
	}
	return "https://upload.test/" + key + "?X-Amz-Signature=abc", nil
}

func (m *memStorage) SupportsPresignedUploads() bool { return m.presign }

func (m *memStorage) List(_ context.Context, prefix string) ([]ObjectInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []ObjectInfo
	for key, data := range m.objects {
		if strings.HasPrefix(key, prefix) {
			out = append(out, ObjectInfo{Key: key, Size: int64(len(data)), LastModified: m.modified[key]})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (m *memStorage) putAt(key string, at time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = []byte("x")
	m.modified[key] = at
}

func (m *memStorage) has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.objects[key]
	return ok
}

func (m *memStorage) countPrefix(prefix string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for key := range m.objects {
		if strings.HasPrefix(key, prefix) {
			n++
		}
	}
	return n
}

type fakeGenerator struct {
	storage *memStorage
	err     error
	calls   int
}

func (g *fakeGenerator) Generate(ctx context.Context, raw []byte, logicalAssetID string) (*GeneratedRenditions, error) {
	g.calls++
	if g.err != nil {
		return nil, g.err
	}
	out := &GeneratedRenditions{
		LogicalAssetID: logicalAssetID,
		Renditions:     Renditions{},
		Source:         SourceInfo{MimeType: "image/png", Width: 8, Height: 8, Bytes: int64(len(raw))},
	}
	for _, size := range Sizes {
		formats := []Format{FormatPrimary, FormatCompact}
		if size == SizeOriginal {
			formats = []Format{FormatPrimary}
		}
		for _, format := range formats {
			key := fmt.Sprintf("media/%s/%s-%s.jpg", logicalAssetID, size, format)
			url, err := g.storage.Put(ctx, key, []byte("rendition"), "image/jpeg")
			if err != nil {
				return nil, err
			}
			out.Renditions[RenditionKey{Size: size, Format: format}] = Rendition{StorageKey: key, URL: url, Width: 8, Height: 8, Bytes: 9}
		}
	}
	return out, nil
}

type memRepo struct {
	mu          sync.Mutex
	byID        map[string]*MediaAsset
	createErr   error
	createCalls int
	// raceWinner is inserted on the next Create, which then reports a duplicate.
	raceWinner *MediaAsset
}

func newMemRepo() *memRepo {
	return &memRepo{byID: map[string]*MediaAsset{}}
}

func (r *memRepo) Create(_ context.Context, asset *MediaAsset) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.createCalls++
	if r.raceWinner != nil {
		r.byID[r.raceWinner.ID] = r.raceWinner
		r.raceWinner = nil
		return fmt.Errorf("insert media: %w", ErrDuplicateRecord)
	}
	if r.createErr != nil {
		return r.createErr
	}
	for _, existing := range r.byID {
		if asset.UploadID != "" && existing.UploadID == asset.UploadID {
			return fmt.Errorf("insert media: %w", ErrDuplicateRecord)
		}
	}
	copied := *asset
	r.byID[asset.ID] = &copied
	return nil
}

func (r *memRepo) GetByID(_ context.Context, id string) (*MediaAsset, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if asset, ok := r.byID[id]; ok {
		copied := *asset
		return &copied, nil
	}
	return nil, nil
}

func (r *memRepo) FindByUploadID(_ context.Context, uploadID string) (*MediaAsset, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, asset := range r.byID {
		if asset.UploadID == uploadID {
			copied := *asset
			return &copied, nil
		}
	}
	return nil, nil
}

func (r *memRepo) ExistingLogicalIDs(_ context.Context, ids []string) (map[string]bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := map[string]bool{}
	for _, asset := range r.byID {
		for _, id := range ids {
			if asset.LogicalAssetID == id {
				out[id] = true
			}
		}
	}
	return out, nil
}

func (r *memRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.byID, id)
	return nil
}

func (r *memRepo) UpdateModeration(_ context.Context, asset *MediaAsset) (*MediaAsset, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.byID[asset.ID]
	if !ok {
		return nil, errors.New("media not found")
	}
	stored.ModerationState = asset.ModerationState
	stored.IsModerated = asset.IsModerated
	stored.ModeratedAt = asset.ModeratedAt
	stored.ModeratedBy = asset.ModeratedBy
	stored.UpdatedAt = asset.UpdatedAt
	copied := *stored
	return &copied, nil
}

func (r *memRepo) IncrementDownloads(_ context.Context, id, day string) (*MediaAsset, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	asset, ok := r.byID[id]
	if !ok {
		return nil, nil
	}
	asset.Downloads++
	if asset.DailyDownloads == nil {
		asset.DailyDownloads = map[string]int64{}
	}
	asset.DailyDownloads[day]++
	copied := *asset
	return &copied, nil
}

func (r *memRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byID)
}

type fakeColors struct {
	colors []string
	err    error
	panics bool
	delay  time.Duration
}

func (f fakeColors) DominantColors(ctx context.Context, _ []byte) ([]string, error) {
	if f.panics {
		panic("corrupt palette")
	}
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return f.colors, f.err
}

type fakeExif struct {
	data   ExifData
	err    error
	panics bool
}

func (f fakeExif) Extract(context.Context, []byte) (ExifData, error) {
	if f.panics {
		panic("bad ifd")
	}
	return f.data, f.err
}

type fakeCategories map[string]string

func (f fakeCategories) Resolve(_ context.Context, ref string) (string, error) {
	if id, ok := f[strings.ToLower(ref)]; ok {
		return id, nil
	}
	return "", ErrCategoryNotFound
}

type recordingNotifier struct {
	mu       sync.Mutex
	ingested []*MediaAsset
	failed   []IngestFailure
}

func (n *recordingNotifier) NotifyIngested(_ context.Context, asset *MediaAsset) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.ingested = append(n.ingested, asset)
	return nil
}

func (n *recordingNotifier) NotifyIngestFailed(_ context.Context, failure IngestFailure) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.failed = append(n.failed, failure)
	return nil
}

type recordingCache struct {
	mu          sync.Mutex
	invalidated []string
}

func (c *recordingCache) InvalidateAsset(_ context.Context, asset *MediaAsset) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.invalidated = append(c.invalidated, asset.ID)
	return nil
}

type recordingDispatcher struct {
	mu    sync.Mutex
	kinds []string
	errs  []error
}

func (d *recordingDispatcher) Dispatch(kind string, task func(ctx context.Context) error) {
	err := task(context.Background())
	d.mu.Lock()
	defer d.mu.Unlock()
	d.kinds = append(d.kinds, kind)
	if err != nil {
		d.errs = append(d.errs, err)
	}
}

type fakeLocker struct {
	err   error
	names []string
}

func (l *fakeLocker) WithLock(ctx context.Context, name string, _ time.Duration, fn func(ctx context.Context) error) error {
	l.names = append(l.names, name)
	if l.err != nil {
		return l.err
	}
	return fn(ctx)
}

type harness struct {
	svc        *Service
	cfg        *config.Config
	storage    *memStorage
	repo       *memRepo
	generator  *fakeGenerator
	notifier   *recordingNotifier
	cache      *recordingCache
	dispatcher *recordingDispatcher
	locker     *fakeLocker
}

func newHarness(t *testing.T, opts ...func(*Dependencies)) *harness {
	t.Helper()
	h := &harness{
		cfg:        testConfig(),
		storage:    newMemStorage(),
		repo:       newMemRepo(),
		notifier:   &recordingNotifier{},
		cache:      &recordingCache{},
		dispatcher: &recordingDispatcher{},
		locker:     &fakeLocker{},
	}
	h.generator = &fakeGenerator{storage: h.storage}
	deps := Dependencies{
		Repository: h.repo,
		Storage:    h.storage,
		Generator:  h.generator,
		Colors:     fakeColors{colors: []string{"#AA0000", "#00bb00", "#0000cc", "#ffffff"}},
		Exif:       fakeExif{data: ExifData{CameraMake: "Canon", CameraModel: "EOS R5", Aperture: "f/2.8"}},
		Categories: fakeCategories{"cat_nature": "cat_nature", "nature": "cat_nature"},
		Notifier:   h.notifier,
		Cache:      h.cache,
		Dispatcher: h.dispatcher,
		Locker:     h.locker,
	}
	for _, opt := range opts {
		opt(&deps)
	}
	h.svc = NewService(h.cfg, deps, zerolog.Nop())
	return h
}

func validMetadata() SubmittedMetadata {
	return SubmittedMetadata{
		Title:       "Sunset over the bay",
		CategoryRef: "Nature",
		Latitude:    "48.8566",
		Longitude:   "2.3522",
		Tags:        []string{"Sunset", "bay"},
	}
}
