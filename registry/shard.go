package registry

import (
	"sync"
	"sync/atomic"
	"time"
)

// shard is an independent partition of the registry with its own lock, map,
// and an intrusive doubly linked list (head=MRU, tail=LRU).
type shard struct {
	// ---- guarded by mu ----
	mu   sync.Mutex
	m    map[string]*node
	head *node // MRU
	tail *node // LRU
	len  int
	cap  int // per-shard entry capacity (0 = unbounded)

	opt  Options
	size *atomic.Int64 // registry-wide entry count
}

func newShard(capacity int, opt Options, size *atomic.Int64) *shard {
	return &shard{
		m:    make(map[string]*node),
		cap:  capacity,
		opt:  opt,
		size: size,
	}
}

// retrieve returns the live entry for key and promotes it to MRU.
// An expired entry is evicted and reported as a miss.
func (s *shard) retrieve(key string) (Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := s.liveLocked(key)
	if n == nil {
		s.opt.Metrics.Miss()
		return nil, false
	}
	s.moveToFront(n)
	s.opt.Metrics.Hit()
	return n.val, true
}

// store inserts e under key. A different live entry under key is a collision;
// the same entry is a no-op.
func (s *shard) store(key string, e Entry, exp int64) (Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if n := s.liveLocked(key); n != nil {
		if n.val == e {
			return e, nil
		}
		return nil, collisionError(key)
	}
	s.insertLocked(key, e, exp)
	return e, nil
}

// loadOrStore returns the live entry under key, or stores the one built by
// create. create runs under the shard lock and must not block.
func (s *shard) loadOrStore(key string, create func() Entry, exp int64) (Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if n := s.liveLocked(key); n != nil {
		s.moveToFront(n)
		s.opt.Metrics.Hit()
		return n.val, true
	}
	s.opt.Metrics.Miss()
	e := create()
	s.insertLocked(key, e, exp)
	return e, false
}

// remove deletes key and returns the removed entry.
// Explicit removal is not counted as an eviction.
func (s *shard) remove(key string) (Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.m[key]
	if !ok {
		return nil, false
	}
	s.unlinkLocked(n)
	s.opt.Metrics.Size(int(s.size.Load()))
	return n.val, true
}

// evictIf drops key only while it is still owned by e.
func (s *shard) evictIf(key string, e Entry) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.m[key]
	if !ok || n.val != e {
		return false
	}
	s.evictLocked(n, EvictManual)
	return true
}

func (s *shard) keys(dst []string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	for n := s.head; n != nil; n = n.next {
		dst = append(dst, n.key)
	}
	return dst
}

func (s *shard) length() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.len
}

func (s *shard) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.size.Add(-int64(s.len))
	s.m = make(map[string]*node)
	s.head, s.tail, s.len = nil, nil, 0
}

// -------------------- internals (mu held) --------------------

// liveLocked returns the node for key, evicting it first if it expired.
func (s *shard) liveLocked(key string) *node {
	n, ok := s.m[key]
	if !ok {
		return nil
	}
	if n.exp != 0 && s.now() > n.exp {
		s.evictLocked(n, EvictTTL)
		return nil
	}
	return n
}

func (s *shard) now() int64 {
	if s.opt.Clock != nil {
		return s.opt.Clock.NowUnixNano()
	}
	return time.Now().UnixNano()
}

func (s *shard) insertLocked(key string, e Entry, exp int64) {
	n := &node{key: key, val: e, exp: exp}
	s.m[key] = n
	s.insertFront(n)
	s.size.Add(1)
	s.enforceCapacityLocked()
	s.opt.Metrics.Size(int(s.size.Load()))
}

// insertFront links n at MRU in O(1).
func (s *shard) insertFront(n *node) {
	n.prev = nil
	n.next = s.head
	if s.head != nil {
		s.head.prev = n
	}
	s.head = n
	if s.tail == nil {
		s.tail = n
	}
	s.len++
}

// moveToFront promotes n to MRU in O(1).
func (s *shard) moveToFront(n *node) {
	if n == s.head {
		return
	}
	s.detach(n)
	n.next = s.head
	if s.head != nil {
		s.head.prev = n
	}
	s.head = n
	if s.tail == nil {
		s.tail = n
	}
}

// detach splices n out of the list without touching counters.
func (s *shard) detach(n *node) {
	if n.prev != nil {
		n.prev.next = n.next
	}
	if n.next != nil {
		n.next.prev = n.prev
	}
	if s.head == n {
		s.head = n.next
	}
	if s.tail == n {
		s.tail = n.prev
	}
	n.prev, n.next = nil, nil
}

// unlinkLocked removes n from both the list and the map.
func (s *shard) unlinkLocked(n *node) {
	s.detach(n)
	delete(s.m, n.key)
	s.len--
	s.size.Add(-1)
}

func (s *shard) evictLocked(n *node, reason EvictReason) {
	s.unlinkLocked(n)
	s.opt.Metrics.Evict(reason)
	s.opt.Metrics.Size(int(s.size.Load()))
	if cb := s.opt.OnEvict; cb != nil {
		cb(n.key, n.val, reason)
	}
}

// enforceCapacityLocked evicts LRU entries until the count limit holds.
func (s *shard) enforceCapacityLocked() {
	if s.cap <= 0 {
		return
	}
	for s.len > s.cap && s.tail != nil {
		s.evictLocked(s.tail, EvictCapacity)
	}
}
