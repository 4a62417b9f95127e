package registry

import (
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/sync/errgroup"
)

type fakeClock struct{ t int64 }

func (f *fakeClock) NowUnixNano() int64  { return f.t }
func (f *fakeClock) add(d time.Duration) { f.t += int64(d) }

// testEntry is a minimal Entry; pointer identity is what the registry compares.
type testEntry struct {
	key   string
	bound bool
}

func (e *testEntry) Key() (string, bool) { return e.key, e.bound }

func entry(key string) *testEntry { return &testEntry{key: key, bound: true} }

// Storing B under K after A fails; re-storing A is a no-op.
func TestRegistry_StoreCollision(t *testing.T) {
	t.Parallel()

	r := New(Options{})
	a, b := entry("/items/1"), entry("/items/1")

	got, err := r.Store(a)
	if err != nil || got != a {
		t.Fatalf("Store a: got %v err=%v", got, err)
	}
	if got, err := r.Store(a); err != nil || got != a {
		t.Fatalf("re-Store a must be a no-op, got %v err=%v", got, err)
	}
	if _, err := r.Store(b); !errors.Is(err, ErrCollision) {
		t.Fatalf("Store b: want ErrCollision, got %v", err)
	}
	if e, ok := r.Retrieve("/items/1"); !ok || e != a {
		t.Fatal("a must still own the key")
	}
	if r.Len() != 1 {
		t.Fatalf("Len want 1, got %d", r.Len())
	}
}

func TestRegistry_StoreWithoutKey(t *testing.T) {
	t.Parallel()

	r := New(Options{})
	for _, e := range []Entry{nil, &testEntry{}, &testEntry{bound: true}} {
		if _, err := r.Store(e); !errors.Is(err, ErrNoKey) {
			t.Fatalf("Store(%v): want ErrNoKey, got %v", e, err)
		}
	}
}

func TestRegistry_Remove(t *testing.T) {
	t.Parallel()

	r := New(Options{})
	a := entry("/a")
	if _, err := r.Store(a); err != nil {
		t.Fatal(err)
	}

	if _, err := r.Remove(""); !errors.Is(err, ErrUndefinedKey) {
		t.Fatalf("Remove(\"\"): want ErrUndefinedKey, got %v", err)
	}
	if got, err := r.Remove("/a"); err != nil || got != a {
		t.Fatalf("Remove /a: got %v err=%v", got, err)
	}
	if _, err := r.Remove("/a"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second Remove: want ErrNotFound, got %v", err)
	}
	if _, ok := r.Retrieve("/a"); ok {
		t.Fatal("/a must be gone")
	}
	// A removed key can be claimed by a new entry.
	if _, err := r.Store(entry("/a")); err != nil {
		t.Fatalf("Store after Remove: %v", err)
	}
}

// Evict only drops the key while it is still held by the given entry.
func TestRegistry_EvictIdentity(t *testing.T) {
	t.Parallel()

	var reasons []EvictReason
	r := New(Options{OnEvict: func(_ string, _ Entry, reason EvictReason) {
		reasons = append(reasons, reason)
	}})
	a := entry("/a")
	if _, err := r.Store(a); err != nil {
		t.Fatal(err)
	}
	if r.Evict("/a", entry("/a")) {
		t.Fatal("Evict with a foreign entry must fail")
	}
	if !r.Evict("/a", a) {
		t.Fatal("Evict with the owner must succeed")
	}
	if len(reasons) != 1 || reasons[0] != EvictManual {
		t.Fatalf("want one manual eviction, got %v", reasons)
	}
}

// Uses a fake clock to avoid timing flakiness.
func TestRegistry_TTL_FakeClock(t *testing.T) {
	t.Parallel()

	clk := &fakeClock{}
	r := New(Options{TTL: 100 * time.Millisecond, Clock: clk})

	a := entry("/x")
	if _, err := r.Store(a); err != nil {
		t.Fatal(err)
	}
	if _, ok := r.Retrieve("/x"); !ok {
		t.Fatal("fresh miss")
	}
	clk.add(200 * time.Millisecond)
	if _, ok := r.Retrieve("/x"); ok {
		t.Fatal("expired hit")
	}
	// An expired key is free again: no collision.
	if _, err := r.Store(entry("/x")); err != nil {
		t.Fatalf("Store after expiry: %v", err)
	}
}

// Deterministic LRU eviction: single shard, small capacity.
func TestRegistry_CapacityLRU(t *testing.T) {
	t.Parallel()

	r := New(Options{Capacity: 2, Shards: 1})
	a, b, c := entry("a"), entry("b"), entry("c")
	for _, e := range []Entry{a, b} {
		if _, err := r.Store(e); err != nil {
			t.Fatal(err)
		}
	}
	if _, ok := r.Retrieve("a"); !ok { // promote a -> MRU
		t.Fatal("expect hit for a")
	}
	if _, err := r.Store(c); err != nil { // overflow -> evict LRU (b)
		t.Fatal(err)
	}
	if _, ok := r.Retrieve("b"); ok {
		t.Fatal("b must be evicted")
	}
	if _, ok := r.Retrieve("a"); !ok {
		t.Fatal("a must survive (promoted)")
	}
	if r.Len() != 2 {
		t.Fatalf("Len want 2, got %d", r.Len())
	}
}

// Concurrent LoadOrStore calls for one key run create exactly once and all
// observe the same entry.
func TestRegistry_LoadOrStore_Concurrent(t *testing.T) {
	var creates int64
	r := New(Options{})

	const N = 64
	got := make([]Entry, N)
	var g errgroup.Group
	for i := 0; i < N; i++ {
		g.Go(func() error {
			e, _ := r.LoadOrStore("/k", func() Entry {
				atomic.AddInt64(&creates, 1)
				return entry("/k")
			})
			got[i] = e
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatal(err)
	}
	if n := atomic.LoadInt64(&creates); n != 1 {
		t.Fatalf("create must run exactly once, got %d", n)
	}
	for i := 1; i < N; i++ {
		if got[i] != got[0] {
			t.Fatalf("caller %d observed a different entry", i)
		}
	}
}

func TestRegistry_KeysAndReset(t *testing.T) {
	t.Parallel()

	r := New(Options{Shards: 4})
	for i := 0; i < 10; i++ {
		if _, err := r.Store(entry(fmt.Sprintf("/items/%d", i))); err != nil {
			t.Fatal(err)
		}
	}
	if n := len(r.Keys()); n != 10 {
		t.Fatalf("Keys want 10, got %d", n)
	}
	r.Reset()
	if r.Len() != 0 || len(r.Keys()) != 0 {
		t.Fatal("Reset must empty the registry")
	}
}
