package cache

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/vmihailenco/msgpack/v5"
)

// Cache is the storage layer underneath a RequestCache. Values are stored as-is
// by in-process backends and msgpack-encoded by serialized ones.
type Cache interface {
	// Get retrieves a value from the cache.
	Get(ctx context.Context, key string) (bool, any, error)
	// Set stores a value in the cache with a TTL. If expires <= 0,
	// the cache's configured default TTL is used.
	Set(ctx context.Context, key string, val any, expires time.Duration) error
	// Hits returns the number of times a key has been read since it was last set.
	Hits(ctx context.Context, key string) (bool, int)
	// Expire removes a key from the cache.
	Expire(ctx context.Context, key string) (bool, error)
	// Clear removes every key owned by the cache.
	Clear(ctx context.Context) error
	// Len returns the number of live keys.
	Len(ctx context.Context) (int, error)
	// Close shuts down the cache.
	Close() error
}

type value struct {
	object  any
	expires time.Time
	hits    int
}

// ErrTypeMismatch is returned when a stored value cannot be converted to the requested type.
var ErrTypeMismatch = errors.New("cache: stored value has a different type")

// GetContext retrieves a typed value from the cache.
// For in-memory caches, it performs a direct type assertion.
// For serialized caches (like Redis), it deserializes from []byte using msgpack.
func GetContext[T any](ctx context.Context, c Cache, key string) (bool, T, error) {
	var zero T
	found, val, err := c.Get(ctx, key)
	if !found || err != nil {
		return false, zero, err
	}
	if typed, ok := val.(T); ok {
		return true, typed, nil
	}
	if data, ok := val.([]byte); ok {
		var result T
		if err := msgpack.Unmarshal(data, &result); err != nil {
			return false, zero, errors.Wrapf(errors.Mark(err, ErrTypeMismatch), "cache: unmarshal %q", key)
		}
		return true, result, nil
	}
	return false, zero, errors.Wrapf(ErrTypeMismatch, "cache: cannot convert %T to %T", val, zero)
}

// DefaultExpires is the TTL used by Set when expires is zero.
const DefaultExpires = 5 * time.Minute

// DefaultQueryTimeout is the per-operation timeout for cache backends that
// perform I/O.
const DefaultQueryTimeout = 5 * time.Second

type config struct {
	defaultExpires time.Duration
	queryTimeout   time.Duration
	expiryCheck    time.Duration
	prefix         string
}

// Option configures a Cache implementation.
type Option func(*config)

func defaultConfig() config {
	return config{
		defaultExpires: DefaultExpires,
		queryTimeout:   DefaultQueryTimeout,
		expiryCheck:    time.Minute,
	}
}

func applyOptions(opts []Option) config {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// WithExpires sets the default TTL for cached values. This is used when
// Set is called with expires <= 0. Defaults to DefaultExpires (5 minutes).
func WithExpires(d time.Duration) Option {
	return func(c *config) { c.defaultExpires = d }
}

// WithQueryTimeout sets the per-operation timeout for the Redis backend.
// Defaults to DefaultQueryTimeout (5 seconds).
func WithQueryTimeout(d time.Duration) Option {
	return func(c *config) { c.queryTimeout = d }
}

// WithExpiryCheck sets the interval for background expired entry cleanup
// in the in-memory backend. Defaults to 1 minute.
func WithExpiryCheck(d time.Duration) Option {
	return func(c *config) { c.expiryCheck = d }
}

// WithPrefix sets the key prefix for namespacing cache keys.
// Applies to the Redis backend. Defaults to empty (no prefix).
func WithPrefix(p string) Option {
	return func(c *config) { c.prefix = p }
}
