package category

import (
	"context"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru"

	"jan-server/services/media-ingest/internal/infrastructure/database/entities"
)

// Finder looks up one active category by id or name.
type Finder interface {
	FindActive(ctx context.Context, ref string) (*entities.Category, error)
}

// Resolver caches ref -> category id lookups in a bounded LRU with a TTL per entry.
// Misses are not cached so a newly activated category is visible immediately.
type Resolver struct {
	finder Finder
	cache  *lru.Cache
	ttl    time.Duration
	mu     sync.RWMutex
	now    func() time.Time
}

type cacheEntry struct {
	id        string
	expiresAt time.Time
}

func NewResolver(finder Finder, maxSize int, ttl time.Duration) (*Resolver, error) {
	cache, err := lru.New(maxSize)
	if err != nil {
		return nil, err
	}
	return &Resolver{
		finder: finder,
		cache:  cache,
		ttl:    ttl,
		now:    time.Now,
	}, nil
}

func (r *Resolver) Resolve(ctx context.Context, ref string) (string, error) {
	key := strings.ToLower(strings.TrimSpace(ref))
	if id, ok := r.get(key); ok {
		return id, nil
	}

	category, err := r.finder.FindActive(ctx, strings.TrimSpace(ref))
	if err != nil {
		return "", err
	}

	r.mu.Lock()
	r.cache.Add(key, cacheEntry{id: category.ID, expiresAt: r.now().Add(r.ttl)})
	r.mu.Unlock()
	return category.ID, nil
}

func (r *Resolver) get(key string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	val, found := r.cache.Get(key)
	if !found {
		return "", false
	}
	entry := val.(cacheEntry)
	if r.now().After(entry.expiresAt) {
		r.cache.Remove(key)
		return "", false
	}
	return entry.id, true
}
