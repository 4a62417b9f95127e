package registry

// node is an intrusive doubly linked list element owned by a shard.
// Head is the most recently used entry, tail the eviction candidate.
type node struct {
	key string
	val Entry

	prev *node
	next *node

	// Absolute expiration deadline in UnixNano; zero means no TTL.
	exp int64
}
