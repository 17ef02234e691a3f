package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
)

// Config holds the environment driven configuration for the media ingest service.
type Config struct {
	// Service Configuration
	ServiceName     string        `env:"SERVICE_NAME" envDefault:"media-ingest"`
	Environment     string        `env:"ENVIRONMENT" envDefault:"development"`
	HTTPPort        int           `env:"MEDIA_API_PORT" envDefault:"8285"`
	LogLevel        string        `env:"MEDIA_LOG_LEVEL" envDefault:"info"`
	LogFormat       string        `env:"MEDIA_LOG_FORMAT"` // "console" or "json"; empty picks by environment
	EnableTracing   bool          `env:"ENABLE_TRACING" envDefault:"false"`
	OTLPEndpoint    string        `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:""`
	OTLPHeaders     string        `env:"OTEL_EXPORTER_OTLP_HEADERS" envDefault:""`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
	SentryDSN       string        `env:"SENTRY_DSN"`

	// Database - Read/Write Split
	DBPostgresqlWriteDSN string `env:"DB_POSTGRESQL_WRITE_DSN,notEmpty"`
	DBPostgresqlRead1DSN string `env:"DB_POSTGRESQL_READ1_DSN"` // Optional read replica

	// Database Connection Pool
	DBMaxIdleConns int           `env:"DB_MAX_IDLE_CONNS" envDefault:"5"`
	DBMaxOpenConns int           `env:"DB_MAX_OPEN_CONNS" envDefault:"15"`
	DBConnLifetime time.Duration `env:"DB_CONN_MAX_LIFETIME" envDefault:"30m"`

	// Storage Backend Selection
	StorageBackend string `env:"MEDIA_STORAGE_BACKEND" envDefault:"s3"` // Options: "s3" or "local"

	// Local Storage Configuration
	LocalStoragePath    string `env:"MEDIA_LOCAL_STORAGE_PATH"`
	LocalStorageBaseURL string `env:"MEDIA_LOCAL_STORAGE_BASE_URL"`

	// S3 Storage Configuration
	S3Endpoint       string `env:"MEDIA_S3_ENDPOINT" envDefault:"https://s3.menlo.ai"`
	S3PublicEndpoint string `env:"MEDIA_S3_PUBLIC_ENDPOINT"`
	S3Region         string `env:"MEDIA_S3_REGION" envDefault:"us-west-2"`
	S3Bucket         string `env:"MEDIA_S3_BUCKET"`
	S3AccessKeyID    string `env:"MEDIA_S3_ACCESS_KEY_ID"`
	S3SecretKey      string `env:"MEDIA_S3_SECRET_ACCESS_KEY"`
	S3UsePathStyle   bool   `env:"MEDIA_S3_USE_PATH_STYLE" envDefault:"true"`

	// Public base URL for rendition locators (CDN or bucket website). Falls back to the S3 endpoint.
	PublicBaseURL string `env:"MEDIA_PUBLIC_BASE_URL"`

	// Ingestion
	MaxMediaBytes        int64         `env:"MEDIA_MAX_BYTES" envDefault:"26214400"`
	StagingPrefix        string        `env:"MEDIA_STAGING_PREFIX" envDefault:"uploads/raw"`
	RenditionPrefix      string        `env:"MEDIA_RENDITION_PREFIX" envDefault:"media"`
	UploadURLTTL         time.Duration `env:"MEDIA_UPLOAD_URL_TTL" envDefault:"15m"`
	ExtractorTimeout     time.Duration `env:"MEDIA_EXTRACTOR_TIMEOUT" envDefault:"5s"`
	SideEffectTimeout    time.Duration `env:"MEDIA_SIDE_EFFECT_TIMEOUT" envDefault:"30s"`
	RollbackTimeout      time.Duration `env:"MEDIA_ROLLBACK_TIMEOUT" envDefault:"20s"`
	FinalizeLockTTL      time.Duration `env:"MEDIA_FINALIZE_LOCK_TTL" envDefault:"2m"`
	RenditionJPEGQuality int           `env:"MEDIA_RENDITION_JPEG_QUALITY" envDefault:"85"`
	CompactJPEGQuality   int           `env:"MEDIA_COMPACT_JPEG_QUALITY" envDefault:"60"`

	// Sweeps
	StagingSweepEnabled bool          `env:"STAGING_SWEEP_ENABLED" envDefault:"true"`
	StagingSweepCron    string        `env:"STAGING_SWEEP_CRON" envDefault:"*/30 * * * *"`
	StagingMaxAge       time.Duration `env:"STAGING_MAX_AGE" envDefault:"24h"`
	OrphanSweepMinAge   time.Duration `env:"ORPHAN_SWEEP_MIN_AGE" envDefault:"6h"`
	SweepLockTTL        time.Duration `env:"SWEEP_LOCK_TTL" envDefault:"10m"`

	// Side effects
	RedisURL               string        `env:"REDIS_URL"`
	CachePrefix            string        `env:"MEDIA_CACHE_PREFIX" envDefault:"media"`
	NotificationWebhookURL string        `env:"NOTIFICATION_WEBHOOK_URL"`
	CategoryCacheSize      int           `env:"CATEGORY_CACHE_SIZE" envDefault:"256"`
	CategoryCacheTTL       time.Duration `env:"CATEGORY_CACHE_TTL" envDefault:"5m"`
	AssetCacheTTL          time.Duration `env:"MEDIA_ASSET_CACHE_TTL" envDefault:"5m"`

	// Authentication
	AuthEnabled   bool   `env:"AUTH_ENABLED" envDefault:"false"`
	AuthIssuer    string `env:"AUTH_ISSUER"`
	Account       string `env:"ACCOUNT"`
	AuthJWKSURL   string `env:"AUTH_JWKS_URL"`
	AuthAdminRole string `env:"AUTH_ADMIN_ROLE" envDefault:"admin"`
}

// Load parses environment variables into Config.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env config: %w", err)
	}
	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) normalize() error {
	c.S3Bucket = strings.TrimSpace(c.S3Bucket)
	c.S3AccessKeyID = strings.TrimSpace(c.S3AccessKeyID)
	c.S3SecretKey = strings.TrimSpace(c.S3SecretKey)
	c.S3Endpoint = strings.TrimSpace(c.S3Endpoint)
	c.S3PublicEndpoint = strings.TrimSpace(c.S3PublicEndpoint)
	c.PublicBaseURL = strings.TrimSuffix(strings.TrimSpace(c.PublicBaseURL), "/")
	c.StagingPrefix = strings.Trim(strings.TrimSpace(c.StagingPrefix), "/")
	c.RenditionPrefix = strings.Trim(strings.TrimSpace(c.RenditionPrefix), "/")

	if c.MaxMediaBytes <= 0 {
		c.MaxMediaBytes = 25 * 1024 * 1024
	}
	if c.StagingPrefix == "" {
		c.StagingPrefix = "uploads/raw"
	}
	if c.RenditionPrefix == "" {
		c.RenditionPrefix = "media"
	}
	if c.StagingPrefix == c.RenditionPrefix ||
		strings.HasPrefix(c.StagingPrefix+"/", c.RenditionPrefix+"/") ||
		strings.HasPrefix(c.RenditionPrefix+"/", c.StagingPrefix+"/") {
		return fmt.Errorf("MEDIA_STAGING_PREFIX and MEDIA_RENDITION_PREFIX must not overlap")
	}
	if c.UploadURLTTL <= 0 {
		c.UploadURLTTL = 15 * time.Minute
	}
	if c.RenditionJPEGQuality < 1 || c.RenditionJPEGQuality > 100 {
		c.RenditionJPEGQuality = 85
	}
	if c.CompactJPEGQuality < 1 || c.CompactJPEGQuality > 100 {
		c.CompactJPEGQuality = 60
	}
	if c.CategoryCacheSize <= 0 {
		c.CategoryCacheSize = 256
	}
	if c.AuthEnabled {
		if strings.TrimSpace(c.AuthIssuer) == "" {
			return fmt.Errorf("AUTH_ISSUER is required when AUTH_ENABLED is true")
		}
		if strings.TrimSpace(c.AuthJWKSURL) == "" {
			return fmt.Errorf("AUTH_JWKS_URL is required when AUTH_ENABLED is true")
		}
	}
	return nil
}

// GetDatabaseWriteDSN returns the write database connection string.
func (c *Config) GetDatabaseWriteDSN() string {
	return c.DBPostgresqlWriteDSN
}

// GetDatabaseReadDSN returns the read database connection string.
// If DB_POSTGRESQL_READ1_DSN is set, it returns that.
// Otherwise, falls back to write DSN (no replica configured).
func (c *Config) GetDatabaseReadDSN() string {
	if c.DBPostgresqlRead1DSN != "" {
		return c.DBPostgresqlRead1DSN
	}
	return c.GetDatabaseWriteDSN()
}

// HasReadReplica reports whether a distinct read DSN is configured.
func (c *Config) HasReadReplica() bool {
	return c.DBPostgresqlRead1DSN != "" && c.DBPostgresqlRead1DSN != c.DBPostgresqlWriteDSN
}

// Addr returns the HTTP listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.HTTPPort)
}

// IsLocalStorage returns true if local storage backend is configured.
func (c *Config) IsLocalStorage() bool {
	return strings.ToLower(strings.TrimSpace(c.StorageBackend)) == "local"
}

// IsS3Storage returns true if S3 storage backend is configured.
func (c *Config) IsS3Storage() bool {
	backend := strings.ToLower(strings.TrimSpace(c.StorageBackend))
	return backend == "" || backend == "s3"
}
