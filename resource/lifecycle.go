package resource

import (
	"sync"
	"sync/atomic"

	"github.com/IvanBrykalov/rescache/future"
)

// lifecycle is the loaded flag plus the idle/reloading state machine shared
// by Resource and Collection.
//
//	idle ──begin──▶ reloading(handle) ──run done──▶ idle
//	                      │
//	                begin returns handle (no new run)
//
// The state returns to idle before the handle is resolved, so a waiter woken
// by the handle can start the next reload right away. A failed run resolves
// the handle with its error and still returns to idle.
type lifecycle[T any] struct {
	loaded atomic.Bool

	mu      sync.Mutex
	pending *future.Future[T] // nil while idle
}

func (l *lifecycle[T]) isLoaded() bool { return l.loaded.Load() }

func (l *lifecycle[T]) markLoaded() { l.loaded.Store(true) }

func (l *lifecycle[T]) current() (*future.Future[T], bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.pending, l.pending != nil
}

// begin starts run unless one is already in flight, in which case the
// in-flight handle is returned and started is false.
func (l *lifecycle[T]) begin(run func() (T, error)) (h *future.Future[T], started bool) {
	l.mu.Lock()
	if l.pending != nil {
		h = l.pending
		l.mu.Unlock()
		return h, false
	}
	h = future.New[T]()
	l.pending = h
	l.mu.Unlock()

	go func() {
		v, err := run()

		l.mu.Lock()
		l.pending = nil
		l.mu.Unlock()

		h.Resolve(v, err)
	}()
	return h, true
}

// track puts the state at reloading with f as the handle, unless a run is
// already in flight, and returns the handle callers now share. The state
// returns to idle once f settles; a producer that calls settle clears it
// before f resolves.
func (l *lifecycle[T]) track(f *future.Future[T]) *future.Future[T] {
	l.mu.Lock()
	if l.pending != nil {
		h := l.pending
		l.mu.Unlock()
		return h
	}
	l.pending = f
	l.mu.Unlock()

	go func() {
		<-f.Done()
		l.release(f)
	}()
	return f
}

// settle releases the reloading state held by f, then resolves f.
func (l *lifecycle[T]) settle(f *future.Future[T], v T, err error) {
	l.release(f)
	f.Resolve(v, err)
}

func (l *lifecycle[T]) release(f *future.Future[T]) {
	l.mu.Lock()
	if l.pending == f {
		l.pending = nil
	}
	l.mu.Unlock()
}
