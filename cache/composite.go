package cache

import (
	"context"
	"time"
)

type compositeCache struct {
	caches []Cache
}

var _ Cache = (*compositeCache)(nil)

// NewComposite returns a Cache that chains multiple caches together.
// Get checks caches in order and returns the first hit, copying it into
// the layers in front of the one that had it.
// Set writes to all caches.
// At least one cache must be provided; panics if empty.
func NewComposite(caches ...Cache) Cache {
	if len(caches) == 0 {
		panic("cache: NewComposite requires at least one cache")
	}
	return &compositeCache{caches: caches}
}

func (c *compositeCache) Get(ctx context.Context, key string) (bool, any, error) {
	for i, cache := range c.caches {
		found, val, err := cache.Get(ctx, key)
		if err != nil {
			return false, nil, err
		}
		if found {
			c.backfill(ctx, i, key, val)
			return true, val, nil
		}
	}
	return false, nil, nil
}

// BackfillExpires bounds how long a value copied into a faster layer lives,
// since the slower layer does not report the remaining TTL.
const BackfillExpires = 5 * time.Second

func (c *compositeCache) backfill(ctx context.Context, hit int, key string, val any) {
	for _, cache := range c.caches[:hit] {
		// best effort, the caller already has the value
		_ = cache.Set(ctx, key, val, BackfillExpires)
	}
}

func (c *compositeCache) Set(ctx context.Context, key string, val any, expires time.Duration) error {
	var firstErr error
	for _, cache := range c.caches {
		if err := cache.Set(ctx, key, val, expires); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (c *compositeCache) Hits(ctx context.Context, key string) (bool, int) {
	for _, cache := range c.caches {
		if found, hits := cache.Hits(ctx, key); found {
			return true, hits
		}
	}
	return false, 0
}

func (c *compositeCache) Expire(ctx context.Context, key string) (bool, error) {
	anyFound := false
	for _, cache := range c.caches {
		found, err := cache.Expire(ctx, key)
		if err != nil {
			return anyFound, err
		}
		anyFound = anyFound || found
	}
	return anyFound, nil
}

func (c *compositeCache) Clear(ctx context.Context) error {
	var firstErr error
	for _, cache := range c.caches {
		if err := cache.Clear(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Len reports the largest layer, which is the last layer in a typical L1/L2 chain.
func (c *compositeCache) Len(ctx context.Context) (int, error) {
	var most int
	for _, cache := range c.caches {
		n, err := cache.Len(ctx)
		if err != nil {
			return 0, err
		}
		most = max(most, n)
	}
	return most, nil
}

func (c *compositeCache) Close() error {
	var firstErr error
	for _, cache := range c.caches {
		if err := cache.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
