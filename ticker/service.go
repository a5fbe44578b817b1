package ticker

import (
	"context"
	"time"

	"github.com/cyberfolio/folio-core/cache"
	"github.com/cyberfolio/folio-core/logger"
)

// SnapshotKey is the request cache key for the price board.
const SnapshotKey = "ticker:snapshot"

// Service serves the price board through a shared request cache, so any
// number of readers inside one TTL cost a single upstream call.
type Service struct {
	source Source
	cache  *cache.RequestCache
	ttl    time.Duration
	logger logger.Logger
}

// NewService returns a Service. A negative ttl means cache.DefaultRequestTTL;
// zero fetches on every call, collapsing only concurrent readers.
func NewService(log logger.Logger, source Source, rc *cache.RequestCache, ttl time.Duration) *Service {
	if ttl < 0 {
		ttl = cache.DefaultRequestTTL
	}
	return &Service{
		source: source,
		cache:  rc,
		ttl:    ttl,
		logger: log.WithPrefix("[ticker]"),
	}
}

func (s *Service) Snapshot(ctx context.Context) (Snapshot, error) {
	return cache.Fetch(ctx, s.cache, SnapshotKey, s.ttl, s.source.Fetch)
}

// Refresh drops the cached board and fetches a new one.
func (s *Service) Refresh(ctx context.Context) (Snapshot, error) {
	if err := s.cache.Invalidate(ctx, SnapshotKey); err != nil {
		s.logger.Warn("invalidate %s: %s", SnapshotKey, err)
	}
	return s.Snapshot(ctx)
}
