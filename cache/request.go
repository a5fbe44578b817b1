package cache

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/cyberfolio/folio-core/logger"
	"golang.org/x/sync/singleflight"
)

// DefaultRequestTTL is the freshness window for callers with no preference of their own.
const DefaultRequestTTL = 30 * time.Second

// Entry is the stored form of a fetched value.
type Entry[T any] struct {
	Value     T         `msgpack:"v"`
	StoredAt  time.Time `msgpack:"s"`
	ExpiresAt time.Time `msgpack:"e"`
}

// Fetcher produces the value for a key. It receives a context that carries the
// first caller's values but is never cancelled by any caller.
type Fetcher[T any] func(ctx context.Context) (T, error)

// Stats is a point-in-time view of a RequestCache.
type Stats struct {
	Entries int `json:"entries"`
	Pending int `json:"pending"`
}

// RequestCache memoizes fetches by key for a TTL and collapses concurrent
// fetches of the same key into one.
type RequestCache struct {
	store   Cache
	logger  logger.Logger
	group   singleflight.Group
	mu      sync.Mutex
	pending map[string]uint64 // key -> generation of its in-flight fetch
	gen     uint64            // bumped by Clear; flights are keyed by it
	now     func() time.Time
}

// NewRequestCache returns a RequestCache storing its entries in store.
func NewRequestCache(store Cache, log logger.Logger) *RequestCache {
	return &RequestCache{
		store:   store,
		logger:  log.WithPrefix("[cache]"),
		pending: make(map[string]uint64),
		now:     time.Now,
	}
}

// Fetch returns the cached value for key when one is fresh. Otherwise it joins
// the in-flight fetch for key or starts one. A successful result is stored for
// ttl; errors are returned to every waiting caller and never stored. A ttl <= 0
// stores nothing but still de-duplicates concurrent callers.
func Fetch[T any](ctx context.Context, rc *RequestCache, key string, ttl time.Duration, fetcher Fetcher[T]) (T, error) {
	var zero T
	if ttl > 0 {
		if val, ok := lookup[T](ctx, rc, key); ok {
			return val, nil
		}
	}
	detached := context.WithoutCancel(ctx)
	gen := rc.generation()
	ch := rc.group.DoChan(strconv.FormatUint(gen, 10)+":"+key, func() (any, error) {
		rc.begin(key, gen)
		defer rc.settle(key, gen)
		// a flight that finished between our lookup and DoChan has already stored
		if ttl > 0 {
			if val, ok := lookup[T](detached, rc, key); ok {
				return val, nil
			}
		}
		val, err := fetcher(detached)
		if err != nil {
			rc.logger.Debug("fetch %s failed: %s", key, err)
			return nil, err
		}
		if ttl > 0 {
			rc.put(detached, gen, key, Entry[T]{Value: val, StoredAt: rc.now(), ExpiresAt: rc.now().Add(ttl)}, ttl)
		}
		return val, nil
	})
	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return zero, res.Err
		}
		if res.Val == nil {
			return zero, nil
		}
		val, ok := res.Val.(T)
		if !ok {
			return zero, errors.Wrapf(ErrTypeMismatch, "cache: in-flight %q produced %T, not %T", key, res.Val, zero)
		}
		return val, nil
	}
}

func lookup[T any](ctx context.Context, rc *RequestCache, key string) (T, bool) {
	var zero T
	found, entry, err := GetContext[Entry[T]](ctx, rc.store, key)
	if err != nil {
		rc.logger.Warn("read %s: %s", key, err)
		return zero, false
	}
	if !found || !entry.ExpiresAt.After(rc.now()) {
		return zero, false
	}
	return entry.Value, true
}

func (rc *RequestCache) generation() uint64 {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	return rc.gen
}

func (rc *RequestCache) begin(key string, gen uint64) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	if gen == rc.gen {
		rc.pending[key] = gen
	}
}

func (rc *RequestCache) settle(key string, gen uint64) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	if g, ok := rc.pending[key]; ok && g == gen {
		delete(rc.pending, key)
	}
}

func (rc *RequestCache) current(gen uint64) bool {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	return gen == rc.gen
}

// put stores entry unless a Clear has happened since the flight started.
// The store write runs outside rc.mu; a Clear that lands during the write is
// caught by the second check and the entry is removed again.
func (rc *RequestCache) put(ctx context.Context, gen uint64, key string, entry any, ttl time.Duration) {
	if !rc.current(gen) {
		return
	}
	if err := rc.store.Set(ctx, key, entry, ttl); err != nil {
		rc.logger.Warn("store %s: %s", key, err)
		return
	}
	if !rc.current(gen) {
		if _, err := rc.store.Expire(ctx, key); err != nil {
			rc.logger.Warn("drop stale %s: %s", key, err)
		}
	}
}

// Invalidate removes the entry for key. An in-flight fetch for key is unaffected.
func (rc *RequestCache) Invalidate(ctx context.Context, key string) error {
	_, err := rc.store.Expire(ctx, key)
	return err
}

// Clear removes every entry and forgets every in-flight fetch. Fetches that
// were in flight still answer their waiters but do not repopulate the cache,
// and later callers start fresh fetches instead of joining them.
func (rc *RequestCache) Clear(ctx context.Context) error {
	rc.mu.Lock()
	rc.gen++
	clear(rc.pending)
	rc.mu.Unlock()
	return rc.store.Clear(ctx)
}

// Stats returns the number of live entries and in-flight fetches.
func (rc *RequestCache) Stats(ctx context.Context) (Stats, error) {
	rc.mu.Lock()
	pending := len(rc.pending)
	rc.mu.Unlock()
	entries, err := rc.store.Len(ctx)
	if err != nil {
		return Stats{Pending: pending}, err
	}
	return Stats{Entries: entries, Pending: pending}, nil
}
