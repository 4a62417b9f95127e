package registry

import "time"

// EvictReason explains why an entry left the registry without Remove.
type EvictReason int

const (
	// EvictTTL: expired by TTL (lazy eviction on access).
	EvictTTL EvictReason = iota
	// EvictCapacity: removed to satisfy the entry count limit.
	EvictCapacity
	// EvictManual: dropped through Evict, e.g. after a failed initial fetch.
	EvictManual
)

// String returns a stable label for r.
func (r EvictReason) String() string {
	switch r {
	case EvictTTL:
		return "ttl"
	case EvictCapacity:
		return "capacity"
	default:
		return "manual"
	}
}

// Metrics exposes registry-level observability hooks.
// A NoopMetrics implementation is provided and used by default.
type Metrics interface {
	Hit()
	Miss()
	Evict(reason EvictReason)
	Size(entries int)
}

// Clock provides time in UnixNano; useful for deterministic tests.
type Clock interface{ NowUnixNano() int64 }

// Options configures a Registry. Zero values are safe:
//   - Capacity <= 0 => unbounded
//   - Shards <= 0   => auto (rounded up to power of two)
//   - TTL <= 0      => entries never expire
//   - nil Metrics   => NoopMetrics
type Options struct {
	// Capacity is the total entry count limit, split evenly across shards.
	// Least recently retrieved entries are evicted first.
	Capacity int

	// Shards defines the number of shards. If 0, an automatic value is chosen
	// (≈ 2*GOMAXPROCS) and rounded to the next power of two.
	Shards int

	// TTL bounds how long an entry answers Retrieve after it was stored.
	// An expired entry is dropped on access, so the next fetch goes remote.
	TTL time.Duration

	// OnEvict is called for every eviction under the shard lock; keep it light
	// and never call back into the registry from it.
	OnEvict func(key string, e Entry, reason EvictReason)
	Metrics Metrics

	// Clock allows overriding time source (tests). Nil => time.Now().
	Clock Clock
}
