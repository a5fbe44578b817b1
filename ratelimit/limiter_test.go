package ratelimit

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/cyberfolio/folio-core/logger"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Set(d time.Duration) {
	c.mu.Lock()
	c.now = epoch.Add(d)
	c.mu.Unlock()
}

var epoch = time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC)

func newRedisStore(t *testing.T) Store {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisStore(client, "test")
}

var stores = map[string]func(t *testing.T) Store{
	"memory": func(t *testing.T) Store { return NewMemoryStore() },
	"redis":  newRedisStore,
}

func newTestLimiter(t *testing.T, store Store, limit int, window time.Duration) (*Limiter, *clock) {
	t.Helper()
	c := &clock{now: epoch}
	l := New(store, limit, window, WithClock(c.Now), WithSweepInterval(0))
	t.Cleanup(func() { l.Close() })
	return l, c
}

func TestLimiterScenario(t *testing.T) {
	for name, newStore := range stores {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			l, c := newTestLimiter(t, newStore(t), 3, time.Minute)

			for i := range 3 {
				ok, err := l.Allow(ctx, "u")
				require.NoError(t, err)
				assert.True(t, ok, "action %d should be admitted", i+1)
			}

			c.Set(10 * time.Second)
			ok, err := l.Allow(ctx, "u")
			require.NoError(t, err)
			assert.False(t, ok)

			reset, err := l.TimeUntilReset(ctx, "u")
			require.NoError(t, err)
			assert.Equal(t, 50*time.Second, reset)

			remaining, err := l.Remaining(ctx, "u")
			require.NoError(t, err)
			assert.Equal(t, 0, remaining)

			c.Set(61 * time.Second)
			ok, err = l.Allow(ctx, "u")
			require.NoError(t, err)
			assert.True(t, ok)

			remaining, err = l.Remaining(ctx, "u")
			require.NoError(t, err)
			assert.Equal(t, 2, remaining)
		})
	}
}

func TestLimiterRejectionIsNotRecorded(t *testing.T) {
	for name, newStore := range stores {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			l, c := newTestLimiter(t, newStore(t), 1, time.Minute)

			ok, _ := l.Allow(ctx, "u")
			assert.True(t, ok)
			for i := range 5 {
				c.Set(time.Duration(i+1) * time.Second)
				ok, _ = l.Allow(ctx, "u")
				assert.False(t, ok)
			}
			c.Set(time.Minute)
			ok, err := l.Allow(ctx, "u")
			require.NoError(t, err)
			assert.True(t, ok, "rejected attempts must not extend the window")
		})
	}
}

func TestLimiterWindowBoundary(t *testing.T) {
	for name, newStore := range stores {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			l, c := newTestLimiter(t, newStore(t), 1, time.Minute)

			ok, _ := l.Allow(ctx, "u")
			assert.True(t, ok)

			c.Set(time.Minute - time.Millisecond)
			ok, _ = l.Allow(ctx, "u")
			assert.False(t, ok, "still inside the window")

			c.Set(time.Minute)
			ok, _ = l.Allow(ctx, "u")
			assert.True(t, ok, "exactly one window later the action has expired")
		})
	}
}

func TestLimiterSlidesOneActionAtATime(t *testing.T) {
	for name, newStore := range stores {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			l, c := newTestLimiter(t, newStore(t), 3, time.Minute)

			for i := range 3 {
				c.Set(time.Duration(i*10) * time.Second)
				ok, _ := l.Allow(ctx, "u")
				assert.True(t, ok)
			}

			c.Set(60 * time.Second)
			remaining, err := l.Remaining(ctx, "u")
			require.NoError(t, err)
			assert.Equal(t, 1, remaining)

			c.Set(65 * time.Second)
			reset, err := l.TimeUntilReset(ctx, "u")
			require.NoError(t, err)
			assert.Equal(t, time.Duration(0), reset, "under quota")
			ok, _ := l.Allow(ctx, "u")
			assert.True(t, ok)

			reset, err = l.TimeUntilReset(ctx, "u")
			require.NoError(t, err)
			assert.Equal(t, 5*time.Second, reset, "oldest remaining action is at 10s")
		})
	}
}

func TestTimeUntilResetDecreases(t *testing.T) {
	ctx := context.Background()
	l, c := newTestLimiter(t, NewMemoryStore(), 2, time.Minute)
	l.Allow(ctx, "u")
	l.Allow(ctx, "u")

	prev := time.Hour
	for _, at := range []time.Duration{0, 500 * time.Millisecond, 15 * time.Second, 59 * time.Second, 59*time.Second + 999*time.Millisecond} {
		c.Set(at)
		reset, err := l.TimeUntilReset(ctx, "u")
		require.NoError(t, err)
		assert.Greater(t, reset, time.Duration(0))
		assert.LessOrEqual(t, reset, time.Minute)
		assert.LessOrEqual(t, reset, prev)
		prev = reset
	}
	assert.Equal(t, time.Second, prev)
}

func TestRemainingIsReadOnly(t *testing.T) {
	for name, newStore := range stores {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			l, _ := newTestLimiter(t, newStore(t), 3, time.Minute)
			for range 5 {
				n, err := l.Remaining(ctx, "u")
				require.NoError(t, err)
				assert.Equal(t, 3, n)
			}
			ok, _ := l.Allow(ctx, "u")
			assert.True(t, ok)
		})
	}
}

func TestCheckDecision(t *testing.T) {
	for name, newStore := range stores {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			l, c := newTestLimiter(t, newStore(t), 2, time.Minute)

			d, err := l.Check(ctx, "u")
			require.NoError(t, err)
			assert.Equal(t, Decision{Allowed: true, Limit: 2, Remaining: 1}, d)

			d, _ = l.Check(ctx, "u")
			assert.Equal(t, Decision{Allowed: true, Limit: 2, Remaining: 0}, d)

			c.Set(20*time.Second + 300*time.Millisecond)
			d, _ = l.Check(ctx, "u")
			assert.Equal(t, Decision{Allowed: false, Limit: 2, Remaining: 0, RetryAfter: 40 * time.Second}, d)
		})
	}
}

func TestIdentifiersAreIndependentAndReset(t *testing.T) {
	for name, newStore := range stores {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			l, _ := newTestLimiter(t, newStore(t), 1, time.Minute)

			ok, _ := l.Allow(ctx, "a")
			assert.True(t, ok)
			ok, _ = l.Allow(ctx, "b")
			assert.True(t, ok)
			ok, _ = l.Allow(ctx, "a")
			assert.False(t, ok)

			require.NoError(t, l.Reset(ctx, "a"))
			ok, _ = l.Allow(ctx, "a")
			assert.True(t, ok)
		})
	}
}

func TestSweepEvictsIdle(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	l, c := newTestLimiter(t, store, 3, time.Minute)

	l.Allow(ctx, "old")
	c.Set(30 * time.Second)
	l.Allow(ctx, "recent")

	c.Set(70 * time.Second)
	n, err := l.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 1, store.(*memoryStore).len())
}

func TestBackgroundSweep(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	c := &clock{now: epoch}
	log := logger.NewTestLogger()
	l := New(store, 3, time.Minute, WithClock(c.Now), WithSweepInterval(10*time.Millisecond), WithLogger(log))
	defer l.Close()

	l.Allow(ctx, "u")
	c.Set(2 * time.Minute)
	assert.Eventually(t, func() bool {
		return store.(*memoryStore).len() == 0
	}, time.Second, 5*time.Millisecond)
	assert.Eventually(t, func() bool {
		return log.Contains("DEBUG", "evicted 1 idle identifiers")
	}, time.Second, 5*time.Millisecond)
}

func TestConcurrentAdmissionNeverExceedsLimit(t *testing.T) {
	for name, newStore := range stores {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			l, _ := newTestLimiter(t, newStore(t), 3, time.Minute)

			var admitted atomic.Int32
			var wg sync.WaitGroup
			for range 50 {
				wg.Add(1)
				go func() {
					defer wg.Done()
					if ok, err := l.Allow(ctx, "u"); err == nil && ok {
						admitted.Add(1)
					}
				}()
			}
			wg.Wait()
			assert.Equal(t, int32(3), admitted.Load())
		})
	}
}

func TestDefaults(t *testing.T) {
	l := New(NewMemoryStore(), 0, 0)
	defer l.Close()
	assert.Equal(t, DefaultLimit, l.Limit())
	assert.Equal(t, DefaultWindow, l.Window())
	assert.NoError(t, l.Close())
}

func TestNewIdentifier(t *testing.T) {
	a, b := NewIdentifier(), NewIdentifier()
	assert.True(t, strings.HasPrefix(a, IdentifierPrefix))
	assert.NotEqual(t, a, b)
	assert.Len(t, a, len(IdentifierPrefix)+36)
}
