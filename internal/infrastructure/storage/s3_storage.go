package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/rs/zerolog"

	"jan-server/services/media-ingest/internal/config"
	"jan-server/services/media-ingest/internal/domain/media"
	"jan-server/services/media-ingest/internal/infrastructure/metrics"
)

// ErrStorageDisabled is returned by every operation when no backend credentials are configured.
var ErrStorageDisabled = errors.New("media storage backend is not configured; set MEDIA_S3_* to enable uploads")

// S3Storage stores staged uploads and renditions in an S3-compatible bucket.
type S3Storage struct {
	bucket          string
	client          *s3.Client
	presigner       *s3.PresignClient
	publicBaseURL   string
	renditionPrefix string
	log             zerolog.Logger
	disabled        bool
}

func NewS3Storage(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*S3Storage, error) {
	logger := log.With().Str("component", "s3-storage").Logger()
	storage := &S3Storage{
		bucket:          strings.TrimSpace(cfg.S3Bucket),
		renditionPrefix: cfg.RenditionPrefix,
		log:             logger,
	}

	accessKey := strings.TrimSpace(cfg.S3AccessKeyID)
	secretKey := strings.TrimSpace(cfg.S3SecretKey)
	if storage.bucket == "" || accessKey == "" || secretKey == "" {
		logger.Warn().Msg("MEDIA_S3_BUCKET or credentials are not set; media uploads will be disabled until configured")
		storage.disabled = true
		return storage, nil
	}

	client, err := newS3Client(ctx, cfg, cfg.S3Endpoint)
	if err != nil {
		return nil, err
	}
	storage.client = client

	// Clients upload straight to the bucket, so sign against the endpoint they can reach.
	presignClient := client
	if cfg.S3PublicEndpoint != "" && cfg.S3PublicEndpoint != cfg.S3Endpoint {
		presignClient, err = newS3Client(ctx, cfg, cfg.S3PublicEndpoint)
		if err != nil {
			return nil, err
		}
	}
	storage.presigner = s3.NewPresignClient(presignClient)

	storage.publicBaseURL = cfg.PublicBaseURL
	if storage.publicBaseURL == "" {
		endpoint := cfg.S3PublicEndpoint
		if endpoint == "" {
			endpoint = cfg.S3Endpoint
		}
		storage.publicBaseURL = strings.TrimSuffix(endpoint, "/") + "/" + storage.bucket
	}

	logger.Info().
		Str("bucket", storage.bucket).
		Str("public_base_url", storage.publicBaseURL).
		Msg("s3 storage initialized")
	return storage, nil
}

func newS3Client(ctx context.Context, cfg *config.Config, endpoint string) (*s3.Client, error) {
	resolver := aws.EndpointResolverWithOptionsFunc(func(service, region string, options ...interface{}) (aws.Endpoint, error) {
		if endpoint != "" {
			return aws.Endpoint{
				URL:           endpoint,
				PartitionID:   "aws",
				SigningRegion: cfg.S3Region,
			}, nil
		}
		return aws.Endpoint{}, &aws.EndpointNotFoundError{}
	})

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.S3Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.S3AccessKeyID, cfg.S3SecretKey, "")),
		awsconfig.WithEndpointResolverWithOptions(resolver),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.S3UsePathStyle
	}), nil
}

func (s *S3Storage) ensureEnabled() error {
	if s.disabled {
		return ErrStorageDisabled
	}
	return nil
}

func observe(operation string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.RecordStorageOperation(operation, status, time.Since(start).Seconds())
}

// Put uploads data and returns its public URL.
func (s *S3Storage) Put(ctx context.Context, key string, data []byte, contentType string) (locator string, err error) {
	if err := s.ensureEnabled(); err != nil {
		return "", err
	}
	defer func(start time.Time) { observe("put", start, err) }(time.Now())

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("put %s: %w", key, err)
	}
	return s.publicURL(key), nil
}

// Get reads an object fully, failing with media.ErrObjectTooLarge past maxBytes.
func (s *S3Storage) Get(ctx context.Context, key string, maxBytes int64) (data []byte, err error) {
	if err := s.ensureEnabled(); err != nil {
		return nil, err
	}
	defer func(start time.Time) { observe("get", start, err) }(time.Now())

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("get %s: %w", key, media.ErrObjectNotFound)
		}
		return nil, fmt.Errorf("get %s: %w", key, err)
	}
	defer out.Body.Close()

	if out.ContentLength != nil && maxBytes > 0 && *out.ContentLength > maxBytes {
		return nil, fmt.Errorf("get %s: %w", key, media.ErrObjectTooLarge)
	}
	return readLimited(out.Body, maxBytes, key)
}

// DeleteByLogicalID removes every object under <rendition-prefix>/<id>/, one
// batch per listing page. Failed keys are collected and reported together.
func (s *S3Storage) DeleteByLogicalID(ctx context.Context, logicalAssetID string) (removed int, err error) {
	if err := s.ensureEnabled(); err != nil {
		return 0, err
	}
	prefix, err := renditionDir(s.renditionPrefix, logicalAssetID)
	if err != nil {
		return 0, err
	}
	defer func(start time.Time) { observe("delete_prefix", start, err) }(time.Now())

	var failures []string
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(prefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return removed, fmt.Errorf("list %s: %w", prefix, err)
		}
		if len(page.Contents) == 0 {
			continue
		}

		ids := make([]types.ObjectIdentifier, 0, len(page.Contents))
		for _, obj := range page.Contents {
			ids = append(ids, types.ObjectIdentifier{Key: obj.Key})
		}
		out, err := s.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
			Bucket: aws.String(s.bucket),
			Delete: &types.Delete{Objects: ids, Quiet: aws.Bool(true)},
		})
		if err != nil {
			failures = append(failures, fmt.Sprintf("batch of %d: %v", len(ids), err))
			continue
		}
		removed += len(ids) - len(out.Errors)
		for _, e := range out.Errors {
			failures = append(failures, fmt.Sprintf("%s: %s", aws.ToString(e.Key), aws.ToString(e.Code)))
		}
	}

	if len(failures) > 0 {
		return removed, fmt.Errorf("delete %s: %d failures: %s", prefix, len(failures), strings.Join(failures, "; "))
	}
	s.log.Debug().Str("prefix", prefix).Int("removed", removed).Msg("deleted rendition prefix")
	return removed, nil
}

// DeleteByKey removes one object. Deleting a missing key succeeds.
func (s *S3Storage) DeleteByKey(ctx context.Context, key string) (err error) {
	if err := s.ensureEnabled(); err != nil {
		return err
	}
	defer func(start time.Time) { observe("delete", start, err) }(time.Now())

	_, err = s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil && !isNotFound(err) {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

// PresignPut returns a URL allowing one PUT of contentType to key until ttl elapses.
func (s *S3Storage) PresignPut(ctx context.Context, key, contentType string, ttl time.Duration) (string, error) {
	if err := s.ensureEnabled(); err != nil {
		return "", err
	}
	start := time.Now()
	req, err := s.presigner.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
	}, s3.WithPresignExpires(ttl))
	metrics.RecordPresign(time.Since(start).Seconds())
	if err != nil {
		return "", fmt.Errorf("presign put %s: %w", key, err)
	}
	return req.URL, nil
}

func (s *S3Storage) SupportsPresignedUploads() bool {
	return !s.disabled
}

// List returns every object under prefix.
func (s *S3Storage) List(ctx context.Context, prefix string) (objects []media.ObjectInfo, err error) {
	if err := s.ensureEnabled(); err != nil {
		return nil, err
	}
	defer func(start time.Time) { observe("list", start, err) }(time.Now())

	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(prefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list %s: %w", prefix, err)
		}
		for _, obj := range page.Contents {
			objects = append(objects, media.ObjectInfo{
				Key:          aws.ToString(obj.Key),
				Size:         aws.ToInt64(obj.Size),
				LastModified: aws.ToTime(obj.LastModified),
			})
		}
	}
	return objects, nil
}

// Health checks that the bucket is reachable.
func (s *S3Storage) Health(ctx context.Context) error {
	if s.disabled {
		return nil
	}
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)})
	return err
}

func (s *S3Storage) publicURL(key string) string {
	return s.publicBaseURL + "/" + escapeKey(key)
}

func escapeKey(key string) string {
	parts := strings.Split(key, "/")
	for i, part := range parts {
		parts[i] = url.PathEscape(part)
	}
	return strings.Join(parts, "/")
}

func isNotFound(err error) bool {
	var noSuchKey *types.NoSuchKey
	if errors.As(err, &noSuchKey) {
		return true
	}
	var notFound *types.NotFound
	if errors.As(err, &notFound) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound":
			return true
		}
	}
	return false
}

// readLimited reads at most maxBytes, reporting media.ErrObjectTooLarge if more remain.
func readLimited(r io.Reader, maxBytes int64, key string) ([]byte, error) {
	if maxBytes <= 0 {
		data, err := io.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", key, err)
		}
		return data, nil
	}
	data, err := io.ReadAll(io.LimitReader(r, maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", key, err)
	}
	if int64(len(data)) > maxBytes {
		return nil, fmt.Errorf("read %s: %w", key, media.ErrObjectTooLarge)
	}
	return data, nil
}

// renditionDir returns the key prefix owned by one logical asset.
func renditionDir(renditionPrefix, logicalAssetID string) (string, error) {
	id := strings.TrimSpace(logicalAssetID)
	if id == "" || strings.ContainsAny(id, "/\\") || id == "." || id == ".." {
		return "", fmt.Errorf("invalid logical asset id %q", logicalAssetID)
	}
	return renditionPrefix + "/" + id + "/", nil
}
