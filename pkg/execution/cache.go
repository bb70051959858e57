package execution

import (
	"context"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/dukex/stockflow/pkg/models"
)

const (
	DefaultStoreCacheTTL     = 5 * time.Minute
	defaultStoreCacheCleanup = 10 * time.Minute
)

// CachedStoreReader memoises store lookups. Errors are never cached.
type CachedStoreReader struct {
	next  StoreReader
	cache *cache.Cache
}

func NewCachedStoreReader(next StoreReader, ttl time.Duration) *CachedStoreReader {
	if ttl <= 0 {
		ttl = DefaultStoreCacheTTL
	}

	return &CachedStoreReader{
		next:  next,
		cache: cache.New(ttl, defaultStoreCacheCleanup),
	}
}

func (r *CachedStoreReader) StoreByID(ctx context.Context, id string) (*models.Store, error) {
	if cached, found := r.cache.Get(id); found {
		store, _ := cached.(*models.Store)

		return store, nil
	}

	store, err := r.next.StoreByID(ctx, id)
	if err != nil {
		return nil, err
	}

	r.cache.SetDefault(id, store)

	return store, nil
}

// Invalidate drops a cached store.
func (r *CachedStoreReader) Invalidate(id string) {
	r.cache.Delete(id)
}
