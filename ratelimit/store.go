package ratelimit

import (
	"context"
	"time"
)

// Window is an identifier's admitted timestamps after pruning, summarized.
type Window struct {
	// Admitted is set by Store.Admit when the call was recorded.
	Admitted bool
	// Count is the number of timestamps inside the window, including one just admitted.
	Count int
	// Oldest is the earliest timestamp inside the window. Zero when Count is 0.
	Oldest time.Time
}

// Store persists per-identifier admission timestamps. Every method prunes
// timestamps ts with now-ts >= window before answering, and Admit performs its
// prune, count and record as one atomic step per identifier.
type Store interface {
	// Admit records now for id when fewer than limit timestamps remain.
	Admit(ctx context.Context, id string, now time.Time, window time.Duration, limit int) (Window, error)
	// Window reports id's current window without recording anything.
	Window(ctx context.Context, id string, now time.Time, window time.Duration) (Window, error)
	// Reset forgets id.
	Reset(ctx context.Context, id string) error
	// Sweep prunes every identifier and evicts the empty ones, returning how many were evicted.
	Sweep(ctx context.Context, now time.Time, window time.Duration) (int, error)
}
