package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"jan-server/services/media-ingest/internal/domain/media"
)

// RedisCache wraps a universal client and a redsync pool sharing the same connections.
type RedisCache struct {
	client redis.UniversalClient
	rs     *redsync.Redsync
	prefix string
	log    zerolog.Logger
}

func NewRedisCache(redisURL, prefix string, log zerolog.Logger) (*RedisCache, error) {
	if redisURL == "" {
		return nil, fmt.Errorf("redis URL must be provided")
	}

	opts, err := buildUniversalOptions(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	if len(opts.Addrs) > 1 && opts.DB != 0 {
		log.Warn().Msg("ignoring non-zero DB when using redis cluster configuration")
		opts.DB = 0
	}

	client := redis.NewUniversalClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	log.Info().Strs("addrs", opts.Addrs).Msg("connected to redis")
	return &RedisCache{
		client: client,
		rs:     redsync.New(goredis.NewPool(client)),
		prefix: strings.TrimSuffix(prefix, ":"),
		log:    log.With().Str("component", "redis-cache").Logger(),
	}, nil
}

// buildUniversalOptions accepts a comma separated list of redis:// URLs or bare host:port pairs.
func buildUniversalOptions(raw string) (*redis.UniversalOptions, error) {
	opts := &redis.UniversalOptions{}

	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if !strings.Contains(part, "://") {
			opts.Addrs = append(opts.Addrs, part)
			continue
		}

		parsed, err := redis.ParseURL(part)
		if err != nil {
			return nil, err
		}
		opts.Addrs = append(opts.Addrs, parsed.Addr)
		if opts.Username == "" {
			opts.Username = parsed.Username
		}
		if opts.Password == "" {
			opts.Password = parsed.Password
		}
		if opts.DB == 0 {
			opts.DB = parsed.DB
		}
		if opts.TLSConfig == nil {
			opts.TLSConfig = parsed.TLSConfig
		}
		if opts.DialTimeout == 0 {
			opts.DialTimeout = parsed.DialTimeout
		}
		if opts.ReadTimeout == 0 {
			opts.ReadTimeout = parsed.ReadTimeout
		}
		if opts.WriteTimeout == 0 {
			opts.WriteTimeout = parsed.WriteTimeout
		}
		if opts.PoolSize == 0 {
			opts.PoolSize = parsed.PoolSize
		}
	}

	if len(opts.Addrs) == 0 {
		return nil, fmt.Errorf("no redis addresses provided")
	}
	return opts, nil
}

// Key joins parts under the configured prefix.
func (r *RedisCache) Key(parts ...string) string {
	return joinKey(r.prefix, parts...)
}

func joinKey(prefix string, parts ...string) string {
	return strings.Join(append([]string{prefix}, parts...), ":")
}

func (r *RedisCache) SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal cache value: %w", err)
	}
	return r.client.Set(ctx, key, payload, ttl).Err()
}

// GetJSON returns (nil, nil) on a miss.
func GetJSON[T any](ctx context.Context, r *RedisCache, key string) (*T, error) {
	payload, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var out T
	if err := json.Unmarshal(payload, &out); err != nil {
		return nil, fmt.Errorf("unmarshal cache value: %w", err)
	}
	return &out, nil
}

func (r *RedisCache) Unlink(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return r.client.Unlink(ctx, keys...).Err()
}

// DeletePattern scans for keys matching pattern and unlinks them in pipelined batches.
func (r *RedisCache) DeletePattern(ctx context.Context, pattern string) (int, error) {
	var (
		cursor  uint64
		removed int
	)
	for {
		keys, next, err := r.client.Scan(ctx, cursor, pattern, 1000).Result()
		if err != nil {
			return removed, fmt.Errorf("scan keys: %w", err)
		}
		if len(keys) > 0 {
			pipe := r.client.Pipeline()
			for _, k := range keys {
				pipe.Unlink(ctx, k)
			}
			if _, err := pipe.Exec(ctx); err != nil {
				return removed, fmt.Errorf("unlink keys: %w", err)
			}
			removed += len(keys)
		}
		if next == 0 {
			return removed, nil
		}
		cursor = next
	}
}

// WithLock runs fn while holding a cluster-wide lock. A lock held by someone
// else yields media.ErrLockNotAcquired without waiting.
func (r *RedisCache) WithLock(ctx context.Context, name string, ttl time.Duration, fn func(ctx context.Context) error) error {
	mutex := r.rs.NewMutex(r.Key("lock", name), redsync.WithExpiry(ttl), redsync.WithTries(1))

	if err := mutex.LockContext(ctx); err != nil {
		if isContention(err) {
			return fmt.Errorf("%w: %s", media.ErrLockNotAcquired, name)
		}
		return fmt.Errorf("acquire lock %s: %w", name, err)
	}

	defer func() {
		// Unlock must run even when ctx was cancelled by fn.
		unlockCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if _, err := mutex.UnlockContext(unlockCtx); err != nil {
			r.log.Error().Err(err).Str("lock", name).Msg("failed to unlock mutex")
		}
	}()

	return fn(ctx)
}

func isContention(err error) bool {
	var taken *redsync.ErrTaken
	return errors.Is(err, redsync.ErrFailed) || errors.As(err, &taken)
}

func (r *RedisCache) Close() error {
	return r.client.Close()
}

func (r *RedisCache) HealthCheck(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

var _ media.Locker = (*RedisCache)(nil)
