package ratelimit

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/cyberfolio/folio-core/logger"
)

const (
	// DefaultLimit is the number of actions admitted per window.
	DefaultLimit = 3
	// DefaultWindow is the length of the sliding window.
	DefaultWindow = time.Minute
	// DefaultSweepInterval is how often idle identifiers are evicted.
	DefaultSweepInterval = time.Minute
)

// Decision is the outcome of Check.
type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithClock replaces time.Now, primarily for tests.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) {
		if now != nil {
			l.now = now
		}
	}
}

// WithSweepInterval sets how often the background sweep runs. Zero or less
// disables it; Sweep can still be called directly.
func WithSweepInterval(d time.Duration) Option {
	return func(l *Limiter) { l.sweepInterval = d }
}

// WithLogger sets the logger used for sweep reports.
func WithLogger(log logger.Logger) Option {
	return func(l *Limiter) { l.logger = log }
}

// Limiter admits at most limit actions per identifier in any trailing window.
type Limiter struct {
	store         Store
	limit         int
	window        time.Duration
	now           func() time.Time
	sweepInterval time.Duration
	logger        logger.Logger
	cancel        context.CancelFunc
	waitGroup     sync.WaitGroup
	once          sync.Once
}

// New returns a Limiter over store. A limit or window of zero or less takes
// DefaultLimit or DefaultWindow. Call Close to stop the background sweep.
func New(store Store, limit int, window time.Duration, opts ...Option) *Limiter {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if window <= 0 {
		window = DefaultWindow
	}
	l := &Limiter{
		store:         store,
		limit:         limit,
		window:        window,
		now:           time.Now,
		sweepInterval: DefaultSweepInterval,
		logger:        logger.NewConsoleLoggerWithWriter(io.Discard, logger.LevelNone),
	}
	for _, opt := range opts {
		opt(l)
	}
	l.logger = l.logger.WithPrefix("[ratelimit]")
	ctx, cancel := context.WithCancel(context.Background())
	l.cancel = cancel
	if l.sweepInterval > 0 {
		l.waitGroup.Add(1)
		go l.run(ctx)
	}
	return l
}

// Limit returns the quota per window.
func (l *Limiter) Limit() int { return l.limit }

// Window returns the window length.
func (l *Limiter) Window() time.Duration { return l.window }

// Allow records an action for id and reports whether it was admitted. A
// rejected action is not recorded.
func (l *Limiter) Allow(ctx context.Context, id string) (bool, error) {
	w, err := l.store.Admit(ctx, id, l.now(), l.window, l.limit)
	if err != nil {
		return false, err
	}
	return w.Admitted, nil
}

// Check is Allow that also reports the remaining quota and, when rejected,
// how long until an action would be admitted.
func (l *Limiter) Check(ctx context.Context, id string) (Decision, error) {
	now := l.now()
	w, err := l.store.Admit(ctx, id, now, l.window, l.limit)
	if err != nil {
		return Decision{}, err
	}
	d := Decision{
		Allowed:   w.Admitted,
		Limit:     l.limit,
		Remaining: max(0, l.limit-w.Count),
	}
	if !w.Admitted {
		d.RetryAfter = l.untilReset(w, now)
	}
	return d, nil
}

// Remaining returns how many more actions id may take now. It records nothing.
func (l *Limiter) Remaining(ctx context.Context, id string) (int, error) {
	w, err := l.store.Window(ctx, id, l.now(), l.window)
	if err != nil {
		return 0, err
	}
	return max(0, l.limit-w.Count), nil
}

// TimeUntilReset returns zero while id is under quota, otherwise the time
// until its oldest action leaves the window, rounded up to whole seconds.
func (l *Limiter) TimeUntilReset(ctx context.Context, id string) (time.Duration, error) {
	now := l.now()
	w, err := l.store.Window(ctx, id, now, l.window)
	if err != nil {
		return 0, err
	}
	return l.untilReset(w, now), nil
}

func (l *Limiter) untilReset(w Window, now time.Time) time.Duration {
	if w.Count < l.limit {
		return 0
	}
	left := w.Oldest.Add(l.window).Sub(now)
	if left <= 0 {
		return 0
	}
	secs := (left + time.Second - 1) / time.Second
	return secs * time.Second
}

// Reset forgets every action recorded for id.
func (l *Limiter) Reset(ctx context.Context, id string) error {
	return l.store.Reset(ctx, id)
}

// Sweep evicts identifiers whose windows are empty.
func (l *Limiter) Sweep(ctx context.Context) (int, error) {
	return l.store.Sweep(ctx, l.now(), l.window)
}

// Close stops the background sweep. It is safe to call more than once.
func (l *Limiter) Close() error {
	l.once.Do(func() {
		l.cancel()
		l.waitGroup.Wait()
	})
	return nil
}

func (l *Limiter) run(ctx context.Context) {
	defer l.waitGroup.Done()
	ticker := time.NewTicker(l.sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := l.Sweep(ctx)
			if err != nil {
				l.logger.Warn("sweep failed: %s", err)
				continue
			}
			if n > 0 {
				l.logger.Debug("evicted %d idle identifiers", n)
			}
		}
	}
}
