package retrieve

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/ppiankov/claimcheck/internal/cache"
)

// CachedBackend answers repeated searches from a cache
type CachedBackend struct {
	backend Backend
	cache   cache.Cache
	ttl     time.Duration
}

// NewCachedBackend wraps backend with c
func NewCachedBackend(backend Backend, c cache.Cache, ttl time.Duration) *CachedBackend {
	return &CachedBackend{backend: backend, cache: c, ttl: ttl}
}

// Name returns the wrapped backend name
func (b *CachedBackend) Name() string {
	return b.backend.Name()
}

// Search consults the cache before the backend. Failed searches are not cached.
func (b *CachedBackend) Search(ctx context.Context, query string, topK int) ([]SearchResult, error) {
	key := cache.Key(b.backend.Name(), query, strconv.Itoa(topK))

	var results []SearchResult
	if cache.GetJSON(b.cache, key, &results) {
		return results, nil
	}

	results, err := b.backend.Search(ctx, query, topK)
	if err != nil {
		return nil, err
	}
	if err := cache.SetJSON(b.cache, key, results, b.ttl); err != nil {
		slog.Debug("search cache write failed", "error", err)
	}
	return results, nil
}
