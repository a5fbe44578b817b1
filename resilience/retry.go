package resilience

import (
	"context"
	"math"
	"math/rand/v2"
	"time"

	"github.com/cyberfolio/folio-core/logger"
)

// RetryConfig defines configuration for retry logic
type RetryConfig struct {
	// MaxRetries is the number of attempts after the first one
	MaxRetries int

	// InitialBackoff is the delay before the first retry
	InitialBackoff time.Duration

	// MaxBackoff caps the exponential delay, before jitter
	MaxBackoff time.Duration

	// BackoffMultiplier is the growth factor per attempt
	BackoffMultiplier float64

	// JitterFactor adds a random extra delay in [0, JitterFactor*delay)
	JitterFactor float64

	// RetryableErrors decides if an error is retryable. Nil means DefaultRetryableErrors.
	RetryableErrors func(error) bool

	// Logger receives one debug line per scheduled retry. Optional.
	Logger logger.Logger

	// OnRetry is called before each backoff sleep with the 1-based retry number. Optional.
	OnRetry func(retry int, delay time.Duration, err error)
}

// DefaultRetryConfig returns a default retry configuration
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:        3,
		InitialBackoff:    time.Second,
		MaxBackoff:        10 * time.Second,
		BackoffMultiplier: 2.0,
		JitterFactor:      0.3,
		RetryableErrors:   DefaultRetryableErrors,
	}
}

// RetryableFunc is a function that can be retried
type RetryableFunc func(ctx context.Context) error

// Retry runs fn until it succeeds, fails with a non-retryable error, or has
// been retried MaxRetries times. The returned error is fn's own last error,
// never wrapped. If ctx ends during a backoff the last error is returned
// without further attempts.
func Retry(ctx context.Context, config RetryConfig, fn RetryableFunc) error {
	_, err := RetryValue(ctx, config, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// RetryValue is Retry for operations that produce a value.
func RetryValue[T any](ctx context.Context, config RetryConfig, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	retryable := config.RetryableErrors
	if retryable == nil {
		retryable = DefaultRetryableErrors
	}
	// a negative budget still makes the first attempt
	config.MaxRetries = max(config.MaxRetries, 0)
	var lastErr error
	for attempt := 0; attempt <= config.MaxRetries; attempt++ {
		val, err := fn(ctx)
		if err == nil {
			return val, nil
		}
		lastErr = err

		if attempt == config.MaxRetries || ctx.Err() != nil {
			break
		}
		if !retryable(err) {
			return zero, err
		}

		delay := withJitter(calculateBackoff(attempt, config), config.JitterFactor)
		if config.Logger != nil {
			config.Logger.Debug("retry attempt %d/%d after %dms: %s", attempt+1, config.MaxRetries, delay.Milliseconds(), err)
		}
		if config.OnRetry != nil {
			config.OnRetry(attempt+1, delay, err)
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, lastErr
		case <-timer.C:
		}
	}
	return zero, lastErr
}

// calculateBackoff returns min(initial * multiplier^attempt, max) for a 0-based attempt
func calculateBackoff(attempt int, config RetryConfig) time.Duration {
	multiplier := config.BackoffMultiplier
	if multiplier <= 0 {
		multiplier = 1
	}
	backoff := float64(config.InitialBackoff) * math.Pow(multiplier, float64(attempt))
	if config.MaxBackoff > 0 && backoff > float64(config.MaxBackoff) {
		backoff = float64(config.MaxBackoff)
	}
	return time.Duration(backoff)
}

func withJitter(d time.Duration, factor float64) time.Duration {
	if factor <= 0 || d <= 0 {
		return d
	}
	return d + time.Duration(rand.Float64()*factor*float64(d))
}
