package ticker

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/cyberfolio/folio-core/cache"
	"github.com/cyberfolio/folio-core/logger"
	"github.com/cyberfolio/folio-core/resilience"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const priceBody = `{
  "bitcoin": {"usd": 43250.85, "usd_24h_change": 2.45},
  "ethereum": {"usd": 2285.42, "usd_24h_change": -1.23},
  "solana": {"usd": 98.76, "usd_24h_change": 5.67}
}`

func TestClientFetch(t *testing.T) {
	var query string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v3/simple/price", r.URL.Path)
		query = r.URL.Query().Get("ids")
		assert.Equal(t, "usd", r.URL.Query().Get("vs_currencies"))
		assert.Equal(t, "true", r.URL.Query().Get("include_24hr_change"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(priceBody))
	}))
	defer srv.Close()

	log := logger.NewTestLogger()
	c := NewClient(log, srv.URL+"/api/v3", []string{"BTC", "eth", "SOL", "DOGE"}, nil)
	snap, err := c.Fetch(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "bitcoin,ethereum,solana,doge", query)
	require.Len(t, snap.Quotes, 3)
	assert.Equal(t, Quote{Symbol: "BTC", Price: 43250.85, Change24h: 2.45}, snap.Quotes[0])
	assert.Equal(t, "ETH", snap.Quotes[1].Symbol)
	assert.False(t, snap.Quotes[1].Up())
	assert.True(t, snap.Quotes[2].Up())
	assert.False(t, snap.FetchedAt.IsZero())
	assert.True(t, log.Contains("WARNING", "no price for DOGE"))
}

func TestClientDefaults(t *testing.T) {
	c := NewClient(logger.NewTestLogger(), "", nil, nil)
	assert.Equal(t, DefaultSymbols, c.Symbols())
	assert.Equal(t, "binancecoin", CoinID("bnb"))
	assert.Equal(t, "ripple", CoinID("XRP"))
}

func TestClientNoPrices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	_, err := NewClient(logger.NewTestLogger(), srv.URL, nil, nil).Fetch(context.Background())
	assert.ErrorIs(t, err, ErrNoPrices)
}

func TestClientRateLimitedOpensBreaker(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	breaker := resilience.NewBreaker(resilience.BreakerConfig{MaxFailures: 2, OpenTimeout: time.Hour}, logger.NewTestLogger())
	c := NewClient(logger.NewTestLogger(), srv.URL, nil, breaker)

	for range 2 {
		_, err := c.Fetch(context.Background())
		require.Error(t, err)
		assert.True(t, resilience.IsKind(err, resilience.KindRateLimited))
	}
	_, err := c.Fetch(context.Background())
	assert.ErrorIs(t, err, resilience.ErrCircuitOpen)
	assert.Equal(t, int32(2), calls.Load())
}

type fakeSource struct {
	calls    atomic.Int32
	inflight atomic.Int32
	overlap  atomic.Bool
	delay    time.Duration
	err      error
}

func (f *fakeSource) Fetch(ctx context.Context) (Snapshot, error) {
	n := f.calls.Add(1)
	if f.inflight.Add(1) > 1 {
		f.overlap.Store(true)
	}
	defer f.inflight.Add(-1)
	time.Sleep(f.delay)
	if f.err != nil {
		return Snapshot{}, f.err
	}
	return Snapshot{Quotes: []Quote{{Symbol: "BTC", Price: float64(n)}}, FetchedAt: time.Now()}, nil
}

func newTestService(t *testing.T, src Source, ttl time.Duration) *Service {
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	log := logger.NewTestLogger()
	return NewService(log, src, cache.NewRequestCache(cache.NewInMemory(ctx), log), ttl)
}

func TestServiceCachesSnapshot(t *testing.T) {
	src := &fakeSource{delay: 20 * time.Millisecond}
	svc := newTestService(t, src, -1)

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			snap, err := svc.Snapshot(context.Background())
			assert.NoError(t, err)
			assert.Equal(t, 1.0, snap.Quotes[0].Price)
		}()
	}
	wg.Wait()
	_, err := svc.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(1), src.calls.Load())

	snap, err := svc.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2.0, snap.Quotes[0].Price)
}

func TestServiceErrorNotCached(t *testing.T) {
	src := &fakeSource{err: errors.New("upstream down")}
	svc := newTestService(t, src, time.Minute)

	_, err := svc.Snapshot(context.Background())
	assert.EqualError(t, err, "upstream down")
	src.err = nil
	_, err = svc.Snapshot(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, int32(2), src.calls.Load())
}

func TestServiceZeroTTLPassesThrough(t *testing.T) {
	src := &fakeSource{}
	svc := newTestService(t, src, 0)

	for range 3 {
		_, err := svc.Snapshot(context.Background())
		require.NoError(t, err)
	}
	assert.Equal(t, int32(3), src.calls.Load())
}

type directService struct{ src *fakeSource }

func (d directService) Snapshot(ctx context.Context) (Snapshot, error) {
	return d.src.Fetch(ctx)
}

func TestPollerRefreshesWithoutOverlap(t *testing.T) {
	src := &fakeSource{delay: 15 * time.Millisecond}
	updates := make(chan Snapshot, 100)
	p := NewPoller(logger.NewTestLogger(), directService{src}, 5*time.Millisecond, func(s Snapshot) { updates <- s })

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()
	require.NoError(t, p.Run(ctx))

	assert.GreaterOrEqual(t, int(src.calls.Load()), 3)
	assert.False(t, src.overlap.Load())
	assert.NotEmpty(t, updates)
	latest, ok := p.Latest()
	require.True(t, ok)
	assert.Equal(t, "BTC", latest.Quotes[0].Symbol)
}

func TestPollerPausedWhileHidden(t *testing.T) {
	src := &fakeSource{}
	p := NewPoller(logger.NewTestLogger(), directService{src}, 5*time.Millisecond, nil)
	p.SetVisible(false)
	assert.False(t, p.Visible())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		p.Run(ctx)
	}()

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(0), src.calls.Load())

	p.SetVisible(true)
	assert.Eventually(t, func() bool { return src.calls.Load() > 0 }, time.Second, 5*time.Millisecond)
	cancel()
	<-done
	_, ok := p.Latest()
	assert.True(t, ok)
}

func TestPollerLogsFailures(t *testing.T) {
	src := &fakeSource{err: errors.New("boom")}
	log := logger.NewTestLogger()
	p := NewPoller(log, directService{src}, time.Hour, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	p.Run(ctx)

	assert.True(t, log.Contains("WARNING", "refresh failed: boom"))
	_, ok := p.Latest()
	assert.False(t, ok)
}

func TestPollerIdleTimeout(t *testing.T) {
	src := &fakeSource{}
	p := NewPoller(logger.NewTestLogger(), directService{src}, 5*time.Millisecond, nil, WithIdleTimeout(40*time.Millisecond))
	assert.False(t, p.Visible())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		p.Run(ctx)
	}()
	defer func() {
		cancel()
		<-done
	}()

	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, int32(0), src.calls.Load())

	p.Touch()
	assert.Eventually(t, func() bool { return src.calls.Load() > 0 }, time.Second, 5*time.Millisecond)
	assert.Eventually(t, func() bool { return !p.Visible() }, time.Second, 5*time.Millisecond)

	paused := src.calls.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, paused, src.calls.Load())
}

func TestPollerTouchAfterIdlePauseWakes(t *testing.T) {
	now := time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC)
	p := NewPoller(logger.NewTestLogger(), directService{&fakeSource{}}, time.Hour, nil, WithIdleTimeout(time.Minute))
	p.now = func() time.Time { return now }

	p.Touch()
	<-p.wake
	assert.False(t, p.pauseIfIdle())
	assert.True(t, p.Visible())

	now = now.Add(time.Minute)
	assert.True(t, p.pauseIfIdle())
	assert.False(t, p.Visible())
	assert.False(t, p.pauseIfIdle())

	p.Touch()
	assert.True(t, p.Visible())
	select {
	case <-p.wake:
	default:
		t.Fatal("touch after an idle pause did not wake the poller")
	}
	assert.False(t, p.pauseIfIdle())
}
