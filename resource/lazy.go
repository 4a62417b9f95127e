package resource

import "sync"

// LazyFunc computes a lazy property's value on first read.
type LazyFunc func() any

// lazyProp is either unresolved (compute set) or resolved (value set).
type lazyProp struct {
	mu       sync.Mutex
	compute  LazyFunc
	value    any
	resolved bool
}

// get resolves the property at most once. Concurrent readers wait for the
// single computation. compute must not read the same property.
func (p *lazyProp) get() any {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.resolved {
		p.value = p.compute()
		p.resolved = true
		p.compute = nil
	}
	return p.value
}

func (p *lazyProp) set(v any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.value, p.resolved, p.compute = v, true, nil
}

func (p *lazyProp) isResolved() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.resolved
}
