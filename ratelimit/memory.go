package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
)

const shardCount = 32

type shard struct {
	mu      sync.Mutex
	windows map[string][]time.Time
}

// memoryStore keeps windows in process memory, sharded by identifier hash so
// unrelated identifiers do not contend on one lock.
type memoryStore struct {
	shards [shardCount]*shard
}

var _ Store = (*memoryStore)(nil)

// NewMemoryStore returns a process-local Store.
func NewMemoryStore() Store {
	s := &memoryStore{}
	for i := range s.shards {
		s.shards[i] = &shard{windows: make(map[string][]time.Time)}
	}
	return s
}

func (s *memoryStore) shard(id string) *shard {
	return s.shards[xxhash.Sum64String(id)%shardCount]
}

// prune drops the leading timestamps that fell out of the window. Timestamps
// are kept in admission order, so the survivors are a suffix.
func prune(ts []time.Time, now time.Time, window time.Duration) []time.Time {
	i := 0
	for i < len(ts) && now.Sub(ts[i]) >= window {
		i++
	}
	if i == 0 {
		return ts
	}
	return append(ts[:0], ts[i:]...)
}

func summarize(ts []time.Time) Window {
	w := Window{Count: len(ts)}
	if len(ts) > 0 {
		w.Oldest = ts[0]
	}
	return w
}

func (s *memoryStore) Admit(_ context.Context, id string, now time.Time, window time.Duration, limit int) (Window, error) {
	sh := s.shard(id)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	ts := prune(sh.windows[id], now, window)
	admitted := len(ts) < limit
	if admitted {
		ts = append(ts, now)
	}
	if len(ts) == 0 {
		delete(sh.windows, id)
	} else {
		sh.windows[id] = ts
	}
	w := summarize(ts)
	w.Admitted = admitted
	return w, nil
}

func (s *memoryStore) Window(_ context.Context, id string, now time.Time, window time.Duration) (Window, error) {
	sh := s.shard(id)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	ts, ok := sh.windows[id]
	if !ok {
		return Window{}, nil
	}
	ts = prune(ts, now, window)
	if len(ts) == 0 {
		delete(sh.windows, id)
	} else {
		sh.windows[id] = ts
	}
	return summarize(ts), nil
}

func (s *memoryStore) Reset(_ context.Context, id string) error {
	sh := s.shard(id)
	sh.mu.Lock()
	delete(sh.windows, id)
	sh.mu.Unlock()
	return nil
}

func (s *memoryStore) Sweep(_ context.Context, now time.Time, window time.Duration) (int, error) {
	var evicted int
	for _, sh := range s.shards {
		sh.mu.Lock()
		for id, ts := range sh.windows {
			if ts = prune(ts, now, window); len(ts) == 0 {
				delete(sh.windows, id)
				evicted++
			} else {
				sh.windows[id] = ts
			}
		}
		sh.mu.Unlock()
	}
	return evicted, nil
}

func (s *memoryStore) len() int {
	var n int
	for _, sh := range s.shards {
		sh.mu.Lock()
		n += len(sh.windows)
		sh.mu.Unlock()
	}
	return n
}
