package cache

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/redis/go-redis/v9"
	"github.com/vmihailenco/msgpack/v5"
)

type redisCache struct {
	client redis.UniversalClient
	cfg    config
}

var _ Cache = (*redisCache)(nil)

// NewRedis returns a new Cache backed by Redis.
// The caller owns the client lifecycle; Close does not close it.
func NewRedis(client redis.UniversalClient, opts ...Option) Cache {
	return &redisCache{
		client: client,
		cfg:    applyOptions(opts),
	}
}

func (c *redisCache) queryCtx(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, c.cfg.queryTimeout)
}

// namespace is the key segment owned by the cache, so other data under the
// same prefix (rate limit windows) is never scanned or cleared.
const namespace = "cache:"

func (c *redisCache) prefixKey(key string) string {
	if c.cfg.prefix == "" {
		return namespace + key
	}
	return c.cfg.prefix + ":" + namespace + key
}

func (c *redisCache) pattern() string {
	return c.prefixKey("*")
}

func (c *redisCache) Get(ctx context.Context, key string) (bool, any, error) {
	qctx, cancel := c.queryCtx(ctx)
	defer cancel()
	k := c.prefixKey(key)
	data, err := c.client.HGet(qctx, k, "v").Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil, nil
	}
	if err != nil {
		return false, nil, errors.Wrapf(err, "cache: redis get %q", key)
	}
	// hit counting must not fail the read
	c.client.HIncrBy(qctx, k, "h", 1)
	return true, data, nil
}

func (c *redisCache) Set(ctx context.Context, key string, val any, expires time.Duration) error {
	if expires <= 0 {
		expires = c.cfg.defaultExpires
	}
	data, err := msgpack.Marshal(val)
	if err != nil {
		return errors.Wrapf(err, "cache: marshal %q", key)
	}
	qctx, cancel := c.queryCtx(ctx)
	defer cancel()
	k := c.prefixKey(key)
	pipe := c.client.TxPipeline()
	pipe.HSet(qctx, k, "v", data, "h", 0)
	pipe.PExpire(qctx, k, expires)
	if _, err := pipe.Exec(qctx); err != nil {
		return errors.Wrapf(err, "cache: redis set %q", key)
	}
	return nil
}

func (c *redisCache) Hits(ctx context.Context, key string) (bool, int) {
	qctx, cancel := c.queryCtx(ctx)
	defer cancel()
	hits, err := c.client.HGet(qctx, c.prefixKey(key), "h").Int()
	if err != nil {
		return false, 0
	}
	return true, hits
}

func (c *redisCache) Expire(ctx context.Context, key string) (bool, error) {
	qctx, cancel := c.queryCtx(ctx)
	defer cancel()
	result, err := c.client.Del(qctx, c.prefixKey(key)).Result()
	if err != nil {
		return false, errors.Wrapf(err, "cache: redis del %q", key)
	}
	return result > 0, nil
}

func (c *redisCache) scan(ctx context.Context, fn func(keys []string) error) error {
	var cursor uint64
	for {
		keys, next, err := c.client.Scan(ctx, cursor, c.pattern(), 100).Result()
		if err != nil {
			return errors.Wrap(err, "cache: redis scan")
		}
		if len(keys) > 0 {
			if err := fn(keys); err != nil {
				return err
			}
		}
		if next == 0 {
			return nil
		}
		cursor = next
	}
}

// Clear deletes every cache key under the prefix.
func (c *redisCache) Clear(ctx context.Context) error {
	qctx, cancel := c.queryCtx(ctx)
	defer cancel()
	return c.scan(qctx, func(keys []string) error {
		return errors.Wrap(c.client.Del(qctx, keys...).Err(), "cache: redis clear")
	})
}

func (c *redisCache) Len(ctx context.Context) (int, error) {
	qctx, cancel := c.queryCtx(ctx)
	defer cancel()
	var n int
	err := c.scan(qctx, func(keys []string) error {
		n += len(keys)
		return nil
	})
	return n, err
}

func (c *redisCache) Close() error {
	return nil
}
