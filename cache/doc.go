// Package cache memoizes asynchronous fetches by key and collapses concurrent
// requests for the same key into one.
//
// # Request Cache
//
// [RequestCache] is the entry point used by the rest of the module. [Fetch]
// returns a fresh entry when one exists, joins the in-flight fetch for the key
// when there is one, and otherwise calls the [Fetcher]:
//
//	snap, err := cache.Fetch(ctx, rc, "ticker:snapshot", 30*time.Second,
//	    func(ctx context.Context) (ticker.Snapshot, error) {
//	        return client.Fetch(ctx)
//	    },
//	)
//
// Successful results are stored as an [Entry] for the TTL. Errors are handed
// to every caller that was waiting on the fetch and are never stored, so the
// next call fetches again. A TTL of zero or less disables storage entirely;
// concurrent callers are still de-duplicated while a fetch is in flight.
//
// The fetch runs detached from the cancellation of the caller that started it.
// A caller whose context ends stops waiting and receives ctx.Err(), while the
// other callers still get the result.
//
// [RequestCache.Clear] drops every entry and every in-flight fetch. A fetch
// that was running at the time still answers the callers already waiting on
// it, but its result is discarded instead of stored.
//
// # Storage
//
// A RequestCache keeps its entries in a [Cache]:
//
//   - [NewInMemory]: a map guarded by a mutex. Values are stored as-is and
//     expired entries are removed by a background goroutine at the
//     [WithExpiryCheck] interval.
//
//   - [NewRedis]: Redis hashes (field "v" for the msgpack-encoded value, "h"
//     for the hit count) with native TTL. Keys live under "<prefix>:cache:"
//     ([WithPrefix]), and [Cache.Clear] only touches that namespace. Each
//     operation uses a per-query timeout ([DefaultQueryTimeout]).
//
//   - [NewComposite]: chains caches in order. Get returns the first hit and
//     Set writes to all, which gives an in-memory L1 in front of a shared
//     Redis L2:
//
//	store := cache.NewComposite(
//	    cache.NewInMemory(ctx),
//	    cache.NewRedis(client, cache.WithPrefix("folio")),
//	)
//
// [GetContext] reads a typed value from any backend, asserting the type for
// in-memory values and decoding msgpack for serialized ones. Struct fields
// must be exported to survive serialization.
package cache
