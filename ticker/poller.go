package ticker

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cyberfolio/folio-core/logger"
)

// DefaultPollInterval is the refresh cadence while the board is visible.
const DefaultPollInterval = 30 * time.Second

// DefaultIdleTimeout is how long the server keeps polling after the last
// board request.
const DefaultIdleTimeout = 5 * time.Minute

type snapshotter interface {
	Snapshot(ctx context.Context) (Snapshot, error)
}

// Poller refreshes the board on a fixed cadence while it is visible and hands
// each new snapshot to a callback. Fetches run one at a time on the goroutine
// that called Run.
type Poller struct {
	service  snapshotter
	interval time.Duration
	onUpdate func(Snapshot)
	logger   logger.Logger
	visible  atomic.Bool
	wake     chan struct{}
	idle     time.Duration
	now      func() time.Time

	idleMu sync.Mutex // orders Touch against the idle pause
	seen   time.Time

	mu     sync.RWMutex
	latest Snapshot
	ok     bool
}

type PollerOption func(*Poller)

// WithIdleTimeout hides the board once Touch has not been called for d.
// The poller then starts hidden and the first Touch shows it.
func WithIdleTimeout(d time.Duration) PollerOption {
	return func(p *Poller) { p.idle = d }
}

func NewPoller(log logger.Logger, service snapshotter, interval time.Duration, onUpdate func(Snapshot), opts ...PollerOption) *Poller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	p := &Poller{
		service:  service,
		interval: interval,
		onUpdate: onUpdate,
		logger:   log.WithPrefix("[ticker]"),
		wake:     make(chan struct{}, 1),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.visible.Store(p.idle <= 0)
	return p
}

// Touch records that someone is looking at the board and makes it visible.
func (p *Poller) Touch() {
	p.idleMu.Lock()
	defer p.idleMu.Unlock()
	p.seen = p.now()
	p.SetVisible(true)
}

// pauseIfIdle hides the board when nobody has touched it for the idle
// timeout. It reports whether it did.
func (p *Poller) pauseIfIdle() bool {
	if p.idle <= 0 {
		return false
	}
	p.idleMu.Lock()
	defer p.idleMu.Unlock()
	if p.now().Sub(p.seen) < p.idle {
		return false
	}
	return p.visible.CompareAndSwap(true, false)
}

// SetVisible pauses or resumes polling. Becoming visible triggers a refresh.
func (p *Poller) SetVisible(visible bool) {
	if p.visible.Swap(visible) == visible || !visible {
		return
	}
	select {
	case p.wake <- struct{}{}:
	default:
	}
}

func (p *Poller) Visible() bool {
	return p.visible.Load()
}

// Latest returns the last snapshot fetched, if any.
func (p *Poller) Latest() (Snapshot, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.latest, p.ok
}

func (p *Poller) refresh(ctx context.Context) {
	if p.pauseIfIdle() {
		p.logger.Debug("no viewers for %s, pausing", p.idle)
	}
	if !p.visible.Load() {
		return
	}
	snap, err := p.service.Snapshot(ctx)
	if err != nil {
		if ctx.Err() == nil {
			p.logger.Warn("refresh failed: %s", err)
		}
		return
	}
	p.mu.Lock()
	p.latest, p.ok = snap, true
	p.mu.Unlock()
	if p.onUpdate != nil {
		p.onUpdate(snap)
	}
}

// Run polls until ctx ends. It always returns nil.
func (p *Poller) Run(ctx context.Context) error {
	t := time.NewTicker(p.interval)
	defer t.Stop()
	p.refresh(ctx)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-p.wake:
			p.refresh(ctx)
		case <-t.C:
			p.refresh(ctx)
		}
	}
}
