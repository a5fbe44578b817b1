package ratelimit

import (
	"context"
	"strconv"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// admitScript prunes, counts and conditionally records in one round trip so
// that replicas sharing a Redis cannot over-admit.
//
// KEYS[1]: sorted set for the identifier
// ARGV[1]: now (unix ms)
// ARGV[2]: prune threshold, now - window (unix ms)
// ARGV[3]: window (ms)
// ARGV[4]: limit
// ARGV[5]: member id
//
// Returns {admitted, count, oldest score}.
var admitScript = redis.NewScript(`
local key = KEYS[1]
local limit = tonumber(ARGV[4])

redis.call('ZREMRANGEBYSCORE', key, '-inf', ARGV[2])
local count = redis.call('ZCARD', key)
local admitted = 0
if count < limit then
    redis.call('ZADD', key, ARGV[1], ARGV[5])
    count = count + 1
    admitted = 1
end
if count > 0 then
    redis.call('PEXPIRE', key, ARGV[3])
end
local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
return {admitted, count, oldest[2] or '0'}
`)

type redisStore struct {
	client redis.UniversalClient
	prefix string
}

var _ Store = (*redisStore)(nil)

// NewRedisStore returns a Store of one sorted set per identifier, scored by
// admission time in milliseconds. Keys expire on their own once the window
// passes, so Sweep has nothing to do.
func NewRedisStore(client redis.UniversalClient, prefix string) Store {
	return &redisStore{client: client, prefix: prefix}
}

func (s *redisStore) key(id string) string {
	if s.prefix == "" {
		return "ratelimit:" + id
	}
	return s.prefix + ":ratelimit:" + id
}

func (s *redisStore) Admit(ctx context.Context, id string, now time.Time, window time.Duration, limit int) (Window, error) {
	res, err := admitScript.Run(ctx, s.client, []string{s.key(id)},
		now.UnixMilli(), now.Add(-window).UnixMilli(), window.Milliseconds(), limit, uuid.NewString()).Slice()
	if err != nil {
		return Window{}, errors.Wrapf(err, "ratelimit: admit %q", id)
	}
	if len(res) != 3 {
		return Window{}, errors.Newf("ratelimit: admit %q: unexpected reply %v", id, res)
	}
	admitted, _ := res[0].(int64)
	count, _ := res[1].(int64)
	oldest, err := parseScore(res[2])
	if err != nil {
		return Window{}, errors.Wrapf(err, "ratelimit: admit %q", id)
	}
	w := Window{Admitted: admitted == 1, Count: int(count)}
	if count > 0 {
		w.Oldest = oldest
	}
	return w, nil
}

func (s *redisStore) Window(ctx context.Context, id string, now time.Time, window time.Duration) (Window, error) {
	key := s.key(id)
	threshold := strconv.FormatInt(now.Add(-window).UnixMilli(), 10)
	pipe := s.client.TxPipeline()
	pipe.ZRemRangeByScore(ctx, key, "-inf", threshold)
	card := pipe.ZCard(ctx, key)
	first := pipe.ZRangeWithScores(ctx, key, 0, 0)
	if _, err := pipe.Exec(ctx); err != nil {
		return Window{}, errors.Wrapf(err, "ratelimit: window %q", id)
	}
	w := Window{Count: int(card.Val())}
	if zs := first.Val(); len(zs) > 0 {
		w.Oldest = time.UnixMilli(int64(zs[0].Score))
	}
	return w, nil
}

func (s *redisStore) Reset(ctx context.Context, id string) error {
	return errors.Wrapf(s.client.Del(ctx, s.key(id)).Err(), "ratelimit: reset %q", id)
}

func (s *redisStore) Sweep(context.Context, time.Time, time.Duration) (int, error) {
	return 0, nil
}

func parseScore(v any) (time.Time, error) {
	var ms float64
	switch t := v.(type) {
	case string:
		f, err := strconv.ParseFloat(t, 64)
		if err != nil {
			return time.Time{}, errors.Wrap(err, "parse score")
		}
		ms = f
	case int64:
		ms = float64(t)
	default:
		return time.Time{}, errors.Newf("parse score: unexpected %T", v)
	}
	return time.UnixMilli(int64(ms)), nil
}
