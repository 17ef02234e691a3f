package media

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrObjectNotFound is returned by Storage.Get when the key holds no object.
	ErrObjectNotFound = errors.New("object not found")
	// ErrObjectTooLarge is returned by Storage.Get when the object exceeds the read limit.
	ErrObjectTooLarge = errors.New("object exceeds size limit")
	// ErrPresignUnsupported is returned by backends that cannot issue direct-write credentials.
	ErrPresignUnsupported = errors.New("presigned uploads not supported by storage backend")
	// ErrUnsupportedImage is returned by the generator when the bytes cannot be decoded.
	ErrUnsupportedImage = errors.New("unsupported image format")
	// ErrDuplicateRecord is returned by Repository.Create on a unique constraint violation.
	ErrDuplicateRecord = errors.New("duplicate media record")
	// ErrCategoryNotFound is returned by CategoryResolver when no active category matches.
	ErrCategoryNotFound = errors.New("category not found")
	// ErrLockNotAcquired is returned by Locker when another holder owns the lock.
	ErrLockNotAcquired = errors.New("lock not acquired")
)

// Storage is the blob store contract the pipeline relies on.
type Storage interface {
	// Put writes data at key and returns its public locator. Idempotent per key.
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)
	// Get reads the whole object, refusing anything larger than maxBytes.
	Get(ctx context.Context, key string, maxBytes int64) ([]byte, error)
	// DeleteByLogicalID removes every rendition under the logical id prefix.
	// It returns the number of objects removed; a non-nil error may accompany a partial count.
	DeleteByLogicalID(ctx context.Context, logicalAssetID string) (int, error)
	DeleteByKey(ctx context.Context, key string) error
	PresignPut(ctx context.Context, key, contentType string, ttl time.Duration) (string, error)
	SupportsPresignedUploads() bool
	List(ctx context.Context, prefix string) ([]ObjectInfo, error)
}

// Repository persists media records.
type Repository interface {
	Create(ctx context.Context, asset *MediaAsset) error
	GetByID(ctx context.Context, id string) (*MediaAsset, error)
	// FindByUploadID returns nil, nil when no record carries the upload id.
	FindByUploadID(ctx context.Context, uploadID string) (*MediaAsset, error)
	// ExistingLogicalIDs returns the subset of ids that have a record.
	ExistingLogicalIDs(ctx context.Context, ids []string) (map[string]bool, error)
	Delete(ctx context.Context, id string) error
	// UpdateModeration writes the review fields and returns the stored record.
	UpdateModeration(ctx context.Context, asset *MediaAsset) (*MediaAsset, error)
	IncrementDownloads(ctx context.Context, id, day string) (*MediaAsset, error)
}

// RenditionGenerator derives the full rendition set under one logical id.
// On error it guarantees none of its partial writes survive.
type RenditionGenerator interface {
	Generate(ctx context.Context, raw []byte, logicalAssetID string) (*GeneratedRenditions, error)
}

// ColorExtractor returns up to three dominant colours as #rrggbb.
type ColorExtractor interface {
	DominantColors(ctx context.Context, raw []byte) ([]string, error)
}

// ExifExtractor returns the camera fields found in the source bytes.
type ExifExtractor interface {
	Extract(ctx context.Context, raw []byte) (ExifData, error)
}

// CategoryResolver maps an opaque id or a case-insensitive name to an active category id.
type CategoryResolver interface {
	Resolve(ctx context.Context, ref string) (string, error)
}

// IngestFailure describes an ingestion that ended in rollback.
type IngestFailure struct {
	OwnerID        string
	UploadID       string
	LogicalAssetID string
	Title          string
	Reason         string
}

// NotificationSink delivers ingestion outcome notifications.
type NotificationSink interface {
	NotifyIngested(ctx context.Context, asset *MediaAsset) error
	NotifyIngestFailed(ctx context.Context, failure IngestFailure) error
}

// CacheInvalidator drops cached responses that list or embed the asset.
type CacheInvalidator interface {
	InvalidateAsset(ctx context.Context, asset *MediaAsset) error
}

// TaskDispatcher runs best-effort work off the request path.
// Failures are reported by the dispatcher and never reach the caller.
type TaskDispatcher interface {
	Dispatch(kind string, task func(ctx context.Context) error)
}

// Locker serialises work on a named resource across instances.
type Locker interface {
	WithLock(ctx context.Context, name string, ttl time.Duration, fn func(ctx context.Context) error) error
}

// NoopNotificationSink drops every notification.
type NoopNotificationSink struct{}

func (NoopNotificationSink) NotifyIngested(context.Context, *MediaAsset) error       { return nil }
func (NoopNotificationSink) NotifyIngestFailed(context.Context, IngestFailure) error { return nil }

// NoopCacheInvalidator does nothing.
type NoopCacheInvalidator struct{}

func (NoopCacheInvalidator) InvalidateAsset(context.Context, *MediaAsset) error { return nil }

// NoopLocker runs fn without any coordination. Suitable for a single instance.
type NoopLocker struct{}

func (NoopLocker) WithLock(ctx context.Context, _ string, _ time.Duration, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// InlineDispatcher runs tasks synchronously and discards their errors. Used in tests.
type InlineDispatcher struct{}

func (InlineDispatcher) Dispatch(_ string, task func(ctx context.Context) error) {
	_ = task(context.Background())
}
