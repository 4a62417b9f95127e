// Package registry is the keyed object registry behind rescache: a flat
// mapping from key (a resource path) to the one live entry answering to it.
//
// Design
//
//   - Identity: at most one entry per key. Storing a different entry under an
//     occupied key fails with ErrCollision; storing the same entry again is a
//     no-op. LoadOrStore makes "check, then create" atomic, which is how
//     concurrent fetches of one key collapse onto one object.
//
//   - Concurrency: the registry is split into shards, each protected by a
//     mutex. The default shard count is nextPow2(2*GOMAXPROCS) clamped to 256.
//
//   - Storage: each shard keeps a map[string]*node for lookups and an
//     intrusive MRU↔LRU doubly linked list for optional capacity eviction.
//
//   - TTL: with Options.TTL set, entries expire lazily on access so the next
//     fetch goes back to the remote source.
//
//   - Lifecycle: entries leave only through Remove, Evict, TTL or capacity
//     eviction. Dropping a reference elsewhere never removes an entry, since
//     other holders may still use it. Reset clears everything (tests).
//
// Basic usage
//
//	reg := registry.New(registry.Options{})
//	if _, err := reg.Store(res); err != nil {
//	    // ErrNoKey or ErrCollision
//	}
//	e, ok := reg.Retrieve("/items/1")
//	_, err := reg.Remove("/items/1")
package registry
