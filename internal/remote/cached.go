package remote

import (
	"context"
	"log/slog"
	"time"

	"github.com/lepinkainen/listado/internal/cache"
	"github.com/lepinkainen/listado/internal/record"
)

// ListingCacheKey is the payload cache key for the remote listing.
const ListingCacheKey = "listado"

// CachedSource serves the listing from the payload cache while it is fresh.
type CachedSource struct {
	source Source
	cache  *cache.CacheDB
	key    string
	ttl    time.Duration
}

// NewCachedSource wraps src. A nil cache disables caching.
func NewCachedSource(src Source, c *cache.CacheDB, ttl time.Duration) *CachedSource {
	if ttl <= 0 {
		ttl = cache.DefaultTTL
	}
	return &CachedSource{
		source: src,
		cache:  c,
		key:    ListingCacheKey,
		ttl:    ttl,
	}
}

func (s *CachedSource) FetchAll(ctx context.Context) ([]record.Record, error) {
	records, fromCache, err := cache.GetOrFetch(s.cache, cache.PayloadTable, s.key, s.ttl, func() ([]record.Record, error) {
		return s.source.FetchAll(ctx)
	})
	if err != nil {
		return nil, err
	}
	if fromCache {
		slog.Debug("Listing served from payload cache", "records", len(records))
	}
	return records, nil
}

// Invalidate drops the cached listing so the next fetch hits the network.
func (s *CachedSource) Invalidate(_ context.Context) error {
	if s.cache == nil {
		return nil
	}
	return s.cache.Delete(cache.PayloadTable, s.key)
}
