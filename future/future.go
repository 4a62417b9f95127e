// Package future provides a write-once asynchronous result.
//
// A Future is published exactly once by its producer and may be awaited by any
// number of goroutines. Publishing (val, err) happens-before close(done), so
// reads after <-Done() observe the final values.
package future

import (
	"context"
	"sync"
)

// Future holds the eventual result of an asynchronous operation.
//
// Concurrency notes:
//   - Resolve may be called from any goroutine; only the first call wins.
//   - Cancelling ctx in Wait unblocks only that waiter. It does NOT cancel
//     the producer.
type Future[V any] struct {
	once sync.Once
	done chan struct{} // closed when val/err are published
	val  V
	err  error
}

// New returns an unresolved Future.
func New[V any]() *Future[V] {
	return &Future[V]{done: make(chan struct{})}
}

// Resolved returns a Future already settled with v.
func Resolved[V any](v V) *Future[V] {
	f := New[V]()
	f.Resolve(v, nil)
	return f
}

// Failed returns a Future already settled with err.
func Failed[V any](err error) *Future[V] {
	f := New[V]()
	var zero V
	f.Resolve(zero, err)
	return f
}

// Go runs fn on a new goroutine and returns a Future for its result.
func Go[V any](fn func() (V, error)) *Future[V] {
	f := New[V]()
	go func() { f.Resolve(fn()) }()
	return f
}

// Resolve publishes the result. It reports whether this call settled the
// Future; later calls are ignored.
func (f *Future[V]) Resolve(v V, err error) bool {
	settled := false
	f.once.Do(func() {
		f.val, f.err = v, err
		close(f.done)
		settled = true
	})
	return settled
}

// Done returns a channel closed once the result is published.
func (f *Future[V]) Done() <-chan struct{} { return f.done }

// Settled reports whether the result has been published.
func (f *Future[V]) Settled() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

// Wait blocks until the result is published or ctx is done.
func (f *Future[V]) Wait(ctx context.Context) (V, error) {
	select {
	case <-f.done:
		return f.val, f.err
	case <-ctx.Done():
		var zero V
		return zero, ctx.Err()
	}
}

// Await blocks until the result is published.
func (f *Future[V]) Await() (V, error) {
	<-f.done
	return f.val, f.err
}

// Then returns a Future resolved with fn applied to f's value.
// An error from f is passed through and fn is not called.
func Then[A, B any](f *Future[A], fn func(A) (B, error)) *Future[B] {
	return Go(func() (B, error) {
		a, err := f.Await()
		if err != nil {
			var zero B
			return zero, err
		}
		return fn(a)
	})
}
