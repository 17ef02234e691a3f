package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"jan-server/services/media-ingest/internal/config"
	"jan-server/services/media-ingest/internal/domain/media"
)

var errLocalStorageDisabled = errors.New("local storage is not configured; set MEDIA_LOCAL_STORAGE_PATH to enable")

// LocalStorage keeps objects on the local filesystem. It serves single-phase
// ingestion only; there is no way to hand out direct-write credentials.
type LocalStorage struct {
	basePath        string
	baseURL         string
	renditionPrefix string
	log             zerolog.Logger
	disabled        bool
}

// NewLocalStorage creates a new local filesystem storage backend.
func NewLocalStorage(cfg *config.Config, log zerolog.Logger) (*LocalStorage, error) {
	logger := log.With().Str("component", "local-storage").Logger()

	basePath := strings.TrimSpace(cfg.LocalStoragePath)
	if basePath == "" {
		logger.Warn().Msg("MEDIA_LOCAL_STORAGE_PATH is not set; local storage will be disabled")
		return &LocalStorage{
			log:      logger,
			disabled: true,
		}, nil
	}

	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create local storage directory: %w", err)
	}

	storage := &LocalStorage{
		basePath:        basePath,
		baseURL:         strings.TrimSuffix(strings.TrimSpace(cfg.LocalStorageBaseURL), "/"),
		renditionPrefix: cfg.RenditionPrefix,
		log:             logger,
	}

	logger.Info().
		Str("path", basePath).
		Str("base_url", storage.baseURL).
		Msg("local storage initialized")

	return storage, nil
}

func (l *LocalStorage) ensureEnabled() error {
	if l.disabled {
		return errLocalStorageDisabled
	}
	return nil
}

// fullPath maps a key to a path inside basePath, refusing keys that escape it.
func (l *LocalStorage) fullPath(key string) (string, error) {
	clean := path.Clean("/" + key)
	if clean == "/" || strings.Contains(key, "..") {
		return "", fmt.Errorf("invalid storage key %q", key)
	}
	return filepath.Join(l.basePath, filepath.FromSlash(strings.TrimPrefix(clean, "/"))), nil
}

// Put writes the file atomically through a temp file and rename.
func (l *LocalStorage) Put(ctx context.Context, key string, data []byte, contentType string) (locator string, err error) {
	if err := l.ensureEnabled(); err != nil {
		return "", err
	}
	defer func(start time.Time) { observe("put", start, err) }(time.Now())

	fullPath, err := l.fullPath(key)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(fullPath), ".upload-*")
	if err != nil {
		return "", fmt.Errorf("failed to create file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to write file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to write file: %w", err)
	}
	if err := os.Rename(tmp.Name(), fullPath); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to store file: %w", err)
	}

	l.log.Debug().
		Str("key", key).
		Str("content_type", contentType).
		Int("bytes", len(data)).
		Msg("file stored in local storage")

	return l.locator(key, fullPath), nil
}

func (l *LocalStorage) locator(key, fullPath string) string {
	if l.baseURL != "" {
		return l.baseURL + "/" + escapeKey(key)
	}
	return "file://" + fullPath
}

// Get reads a file from the local filesystem.
func (l *LocalStorage) Get(ctx context.Context, key string, maxBytes int64) (data []byte, err error) {
	if err := l.ensureEnabled(); err != nil {
		return nil, err
	}
	defer func(start time.Time) { observe("get", start, err) }(time.Now())

	fullPath, err := l.fullPath(key)
	if err != nil {
		return nil, err
	}
	file, err := os.Open(fullPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("get %s: %w", key, media.ErrObjectNotFound)
		}
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()
	return readLimited(file, maxBytes, key)
}

// DeleteByLogicalID removes the asset's directory, counting the files it held.
func (l *LocalStorage) DeleteByLogicalID(ctx context.Context, logicalAssetID string) (removed int, err error) {
	if err := l.ensureEnabled(); err != nil {
		return 0, err
	}
	prefix, err := renditionDir(l.renditionPrefix, logicalAssetID)
	if err != nil {
		return 0, err
	}
	defer func(start time.Time) { observe("delete_prefix", start, err) }(time.Now())

	dir := filepath.Join(l.basePath, filepath.FromSlash(prefix))
	var failures []string
	walkErr := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			failures = append(failures, err.Error())
			return nil
		}
		removed++
		return nil
	})
	if walkErr != nil {
		return removed, fmt.Errorf("delete %s: %w", prefix, walkErr)
	}
	if len(failures) > 0 {
		return removed, fmt.Errorf("delete %s: %d failures: %s", prefix, len(failures), strings.Join(failures, "; "))
	}
	_ = os.RemoveAll(dir)
	return removed, nil
}

// DeleteByKey removes one file. A missing file is not an error.
func (l *LocalStorage) DeleteByKey(ctx context.Context, key string) (err error) {
	if err := l.ensureEnabled(); err != nil {
		return err
	}
	defer func(start time.Time) { observe("delete", start, err) }(time.Now())

	fullPath, err := l.fullPath(key)
	if err != nil {
		return err
	}
	if err := os.Remove(fullPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

// PresignPut is not supported for local storage.
func (l *LocalStorage) PresignPut(ctx context.Context, key, contentType string, ttl time.Duration) (string, error) {
	if err := l.ensureEnabled(); err != nil {
		return "", err
	}
	return "", media.ErrPresignUnsupported
}

// SupportsPresignedUploads returns false for local storage.
func (l *LocalStorage) SupportsPresignedUploads() bool {
	return false
}

// List walks every file whose key starts with prefix.
func (l *LocalStorage) List(ctx context.Context, prefix string) ([]media.ObjectInfo, error) {
	if err := l.ensureEnabled(); err != nil {
		return nil, err
	}

	// Walk from the deepest directory fully contained in the prefix.
	root := l.basePath
	if dir := path.Dir(prefix); dir != "." && dir != "/" {
		root = filepath.Join(l.basePath, filepath.FromSlash(dir))
	}

	var objects []media.ObjectInfo
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if d.IsDir() || strings.HasPrefix(d.Name(), ".") {
			return nil
		}
		rel, err := filepath.Rel(l.basePath, p)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if !strings.HasPrefix(key, prefix) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		objects = append(objects, media.ObjectInfo{Key: key, Size: info.Size(), LastModified: info.ModTime()})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", prefix, err)
	}
	return objects, nil
}

// Health checks if the storage directory is accessible.
func (l *LocalStorage) Health(ctx context.Context) error {
	if l.disabled {
		return nil
	}

	testFile := filepath.Join(l.basePath, ".health_check")
	if err := os.WriteFile(testFile, []byte("ok"), 0o644); err != nil {
		return fmt.Errorf("storage directory not writable: %w", err)
	}
	_ = os.Remove(testFile)

	return nil
}
