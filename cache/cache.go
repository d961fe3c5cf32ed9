package cache

import (
	"time"

	"github.com/eko/gocache/lib/v4/cache"
	gocache_store "github.com/eko/gocache/store/go_cache/v4"
	gocache "github.com/patrickmn/go-cache"

	"github.com/mtreglia-gpsw/quik-tracy/context"
)

func NewCache[T any](name string, expiration time.Duration) cache.CacheInterface[T] {
	return cache.New[T](gocache_store.NewGoCache(gocache.New(expiration, expiration)))
}

// Memoize returns the cached value for key, computing and storing it on a
// miss. The tool availability probes go through this so repeated commands in
// one process do not re-probe binaries and images.
func Memoize[T any](ctx context.Context, c cache.CacheInterface[T], key string, compute func() T) T {
	if v, err := c.Get(ctx, key); err == nil {
		return v
	}

	v := compute()
	if err := c.Set(ctx, key, v); err != nil {
		ctx.Logger.V(4).Infof("failed to cache %s: %v", key, err)
	}
	return v
}
