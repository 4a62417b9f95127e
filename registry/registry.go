package registry

import (
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/IvanBrykalov/rescache/internal/util"
)

var (
	// ErrNoKey is returned by Store when the entry has no bound string key.
	ErrNoKey = errors.New("registry: cannot store an entry without a string key")
	// ErrCollision is returned by Store when a different entry already owns the key.
	ErrCollision = errors.New("registry: key already holds a different entry")
	// ErrUndefinedKey is returned by Remove for an empty key.
	ErrUndefinedKey = errors.New("registry: key must be defined")
	// ErrNotFound is returned by Remove when nothing is stored under the key.
	ErrNotFound = errors.New("registry: entry not found")
)

func collisionError(key string) error {
	return fmt.Errorf("%w: %s", ErrCollision, key)
}

// Entry is anything the registry can hold: a resource or a collection.
// Entries are compared by identity, so implementations should be pointers.
type Entry interface {
	// Key returns the bound key and whether one is bound yet.
	Key() (string, bool)
}

// Registry maps keys to the single live entry answering to each key.
// All methods are safe for concurrent use by multiple goroutines.
type Registry struct {
	shards []*shard
	size   atomic.Int64
	opt    Options
}

// New constructs a Registry with the provided Options.
// Defaults:
//   - nil Metrics  -> NoopMetrics
//   - Shards <= 0  -> auto, rounded up to the next power of two
func New(opt Options) *Registry {
	if opt.Metrics == nil {
		opt.Metrics = NoopMetrics{}
	}

	n := util.ShardCount(opt.Shards)
	perShardCap := 0
	if opt.Capacity > 0 {
		perShardCap = (opt.Capacity + n - 1) / n // split capacity evenly (ceil)
	}

	r := &Registry{shards: make([]*shard, n), opt: opt}
	for i := range r.shards {
		r.shards[i] = newShard(perShardCap, opt, &r.size)
	}
	return r
}

// Store records e under its own key and returns it.
// Re-storing the entry already held under that key is a no-op.
func (r *Registry) Store(e Entry) (Entry, error) {
	if e == nil {
		return nil, ErrNoKey
	}
	key, ok := e.Key()
	if !ok || key == "" {
		return nil, ErrNoKey
	}
	return r.shardFor(key).store(key, e, r.deadline())
}

// Retrieve returns the entry stored under key. It never fetches.
func (r *Registry) Retrieve(key string) (Entry, bool) {
	return r.shardFor(key).retrieve(key)
}

// LoadOrStore returns the entry under key, or stores the entry built by
// create and reports loaded=false. Exactly one of any set of racing callers
// runs create. create runs under the shard lock and must not block.
func (r *Registry) LoadOrStore(key string, create func() Entry) (e Entry, loaded bool) {
	return r.shardFor(key).loadOrStore(key, create, r.deadline())
}

// Remove deletes key and returns the entry it held.
func (r *Registry) Remove(key string) (Entry, error) {
	if key == "" {
		return nil, ErrUndefinedKey
	}
	e, ok := r.shardFor(key).remove(key)
	if !ok {
		return nil, ErrNotFound
	}
	return e, nil
}

// Evict removes key only if it still holds e, and reports whether it did.
func (r *Registry) Evict(key string, e Entry) bool {
	return r.shardFor(key).evictIf(key, e)
}

// Len returns the number of resident entries.
func (r *Registry) Len() int {
	total := 0
	for _, s := range r.shards {
		total += s.length()
	}
	return total
}

// Keys returns a snapshot of all resident keys in unspecified order.
func (r *Registry) Keys() []string {
	keys := make([]string, 0, r.size.Load())
	for _, s := range r.shards {
		keys = s.keys(keys)
	}
	return keys
}

// Reset drops every entry without eviction callbacks.
func (r *Registry) Reset() {
	for _, s := range r.shards {
		s.reset()
	}
	r.opt.Metrics.Size(0)
}

func (r *Registry) shardFor(key string) *shard {
	return r.shards[util.ShardIndex(util.HashKey(key), len(r.shards))]
}

// deadline converts Options.TTL into an absolute UnixNano deadline (0 = none).
func (r *Registry) deadline() int64 {
	if r.opt.TTL <= 0 {
		return 0
	}
	now := time.Now().UnixNano()
	if r.opt.Clock != nil {
		now = r.opt.Clock.NowUnixNano()
	}
	return now + int64(r.opt.TTL)
}
