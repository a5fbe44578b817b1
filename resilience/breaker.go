package resilience

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/cyberfolio/folio-core/logger"
)

// ErrCircuitOpen is returned without calling the operation while a breaker is open.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// BreakerState represents the state of a circuit breaker
type BreakerState int32

const (
	StateClosed BreakerState = iota
	StateHalfOpen
	StateOpen
)

func (s BreakerState) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateHalfOpen:
		return "HALF_OPEN"
	case StateOpen:
		return "OPEN"
	default:
		return "UNKNOWN"
	}
}

// BreakerConfig defines configuration for the circuit breaker
type BreakerConfig struct {
	// MaxFailures is the number of consecutive failures that opens the circuit
	MaxFailures int

	// OpenTimeout is how long the circuit stays open before letting a probe through
	OpenTimeout time.Duration

	// HalfOpenRequests is the number of concurrent probes allowed while half-open
	HalfOpenRequests int

	// SuccessThreshold is the number of probe successes that closes the circuit
	SuccessThreshold int

	// Trips decides whether an error counts as a failure. Nil counts every
	// error except cancellation.
	Trips func(error) bool
}

// DefaultBreakerConfig returns a default configuration
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		MaxFailures:      5,
		OpenTimeout:      30 * time.Second,
		HalfOpenRequests: 1,
		SuccessThreshold: 2,
	}
}

// BreakerStats is a snapshot of a breaker's counters.
type BreakerStats struct {
	State     BreakerState `json:"state"`
	Failures  int          `json:"failures"`
	Successes int          `json:"successes"`
	Probes    int          `json:"probes"`
}

// Breaker stops calling an upstream that keeps failing and lets a few probes
// through once OpenTimeout has passed.
type Breaker struct {
	config    BreakerConfig
	logger    logger.Logger
	mu        sync.Mutex
	state     BreakerState
	failures  int
	successes int
	probes    int
	openedAt  time.Time
	now       func() time.Time
}

// NewBreaker creates a circuit breaker. Zero config fields take their defaults.
func NewBreaker(config BreakerConfig, log logger.Logger) *Breaker {
	def := DefaultBreakerConfig()
	if config.MaxFailures <= 0 {
		config.MaxFailures = def.MaxFailures
	}
	if config.OpenTimeout <= 0 {
		config.OpenTimeout = def.OpenTimeout
	}
	if config.HalfOpenRequests <= 0 {
		config.HalfOpenRequests = def.HalfOpenRequests
	}
	if config.SuccessThreshold <= 0 {
		config.SuccessThreshold = def.SuccessThreshold
	}
	if config.Trips == nil {
		config.Trips = func(err error) bool { return !errors.Is(err, context.Canceled) }
	}
	return &Breaker{
		config: config,
		logger: log.WithPrefix("[breaker]"),
		now:    time.Now,
	}
}

// Execute runs fn unless the circuit is open.
func (b *Breaker) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	_, err := Guard(ctx, b, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// Guard is Execute for operations that produce a value.
func Guard[T any](ctx context.Context, b *Breaker, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	probe, err := b.before()
	if err != nil {
		return zero, err
	}
	val, err := fn(ctx)
	b.after(probe, err)
	return val, err
}

func (b *Breaker) before() (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch b.state {
	case StateOpen:
		if b.now().Sub(b.openedAt) < b.config.OpenTimeout {
			return false, ErrCircuitOpen
		}
		b.transition(StateHalfOpen)
		fallthrough
	case StateHalfOpen:
		if b.probes >= b.config.HalfOpenRequests {
			return false, ErrCircuitOpen
		}
		b.probes++
		return true, nil
	default:
		return false, nil
	}
}

func (b *Breaker) after(probe bool, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if probe {
		b.probes--
	}
	failed := err != nil && b.config.Trips(err)
	switch b.state {
	case StateClosed:
		if !failed {
			b.failures = 0
			return
		}
		b.failures++
		if b.failures >= b.config.MaxFailures {
			b.transition(StateOpen)
		}
	case StateHalfOpen:
		if failed {
			b.transition(StateOpen)
			return
		}
		b.successes++
		if b.successes >= b.config.SuccessThreshold {
			b.transition(StateClosed)
		}
	}
}

func (b *Breaker) transition(to BreakerState) {
	if b.state != to {
		b.logger.Info("circuit %s -> %s", b.state, to)
	}
	b.state = to
	b.successes = 0
	switch to {
	case StateOpen:
		b.openedAt = b.now()
	case StateClosed:
		b.failures = 0
	}
}

// State returns the current state.
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Stats returns current statistics
func (b *Breaker) Stats() BreakerStats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return BreakerStats{State: b.state, Failures: b.failures, Successes: b.successes, Probes: b.probes}
}

// Reset manually resets the circuit breaker to closed state
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.transition(StateClosed)
}
