package resource

import (
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/IvanBrykalov/rescache/future"
)

// Fields holds a resource's attributes as decoded from the remote source.
type Fields = map[string]any

// Initializer runs once on a resource after its data is merged and its key is
// bound, before it is marked loaded.
type Initializer func(*Resource)

// Options tunes how a Resource finishes loading.
type Options struct {
	// Initializer is the optional one-shot post-load hook.
	Initializer Initializer

	// Commit runs after Initializer and before the loaded flag flips.
	// An error fails readiness. The access layer stores created resources here.
	Commit func(*Resource) error
}

// Resource is a single cached entity. Every holder of a *Resource observes
// in-place changes made by Extend, Set and reloads.
type Resource struct {
	mu     sync.RWMutex
	key    string
	bound  bool
	fields Fields
	lazy   map[string]*lazyProp

	life  lifecycle[*Resource]
	ready *future.Future[*Resource]
}

// New returns an unloaded Resource whose fields arrive through data.
// Loading runs in the background; Ready reports when it is done.
func New(key KeySource, data *future.Future[Fields], opts Options) *Resource {
	r := newResource(key)
	go r.load(key, data, opts)
	return r
}

// FromFields returns a Resource with fields merged immediately. The key
// variant and opts still complete in the background as with New.
func FromFields(key KeySource, fields Fields, opts Options) *Resource {
	r := newResource(key)
	r.Extend(fields)
	go r.load(key, nil, opts)
	return r
}

func newResource(key KeySource) *Resource {
	r := &Resource{
		fields: make(Fields),
		lazy:   make(map[string]*lazyProp),
		ready:  future.New[*Resource](),
	}
	r.BindKey(key.literal)
	return r
}

// load runs merge → key bind → initializer → commit → loaded, in that order.
func (r *Resource) load(key KeySource, data *future.Future[Fields], opts Options) {
	if err := r.loadSteps(key, data, opts); err != nil {
		r.life.settle(r.ready, nil, err)
		return
	}
	r.life.settle(r.ready, r, nil)
}

func (r *Resource) loadSteps(key KeySource, data *future.Future[Fields], opts Options) error {
	if data != nil {
		fields, err := data.Await()
		if err != nil {
			return err
		}
		r.Extend(fields)
	}

	switch {
	case key.deferred != nil:
		k, err := key.deferred.Await()
		if err != nil {
			return fmt.Errorf("resource: deferred key: %w", err)
		}
		r.BindKey(k)
	case key.derive != nil:
		k, err := key.derive(r)
		if err != nil {
			return fmt.Errorf("resource: derive key: %w", err)
		}
		r.BindKey(k)
	}

	if opts.Initializer != nil {
		opts.Initializer(r)
	}
	if opts.Commit != nil {
		if err := opts.Commit(r); err != nil {
			return err
		}
	}
	r.life.markLoaded()
	return nil
}

// Extend merges data into the resource's fields and returns the resource.
// Names under ReservedPrefix and names declared lazy are skipped, so a remote
// refresh never overwrites a locally memoized value.
func (r *Resource) Extend(data Fields) *Resource {
	r.mu.Lock()
	defer r.mu.Unlock()
	for name, v := range data {
		if strings.HasPrefix(name, ReservedPrefix) {
			continue
		}
		if _, ok := r.lazy[name]; ok {
			continue
		}
		r.fields[name] = v
	}
	return r
}

// DeclareLazy installs name as a lazy property computed by compute on first
// read. A plain field of the same name is replaced. Declaring an existing lazy
// property again resets it to unresolved.
func (r *Resource) DeclareLazy(name string, compute LazyFunc) error {
	if strings.HasPrefix(name, ReservedPrefix) {
		return fmt.Errorf("%w: %s", ErrReservedField, name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.fields, name)
	r.lazy[name] = &lazyProp{compute: compute}
	return nil
}

// Get returns a field value. Reading a lazy property resolves it on first use.
func (r *Resource) Get(name string) (any, bool) {
	r.mu.RLock()
	p, isLazy := r.lazy[name]
	if !isLazy {
		v, ok := r.fields[name]
		r.mu.RUnlock()
		return v, ok
	}
	r.mu.RUnlock()
	return p.get(), true
}

// Set writes a field. Writing a lazy property stores the value directly and
// keeps the property protected from Extend.
func (r *Resource) Set(name string, v any) error {
	if strings.HasPrefix(name, ReservedPrefix) {
		return fmt.Errorf("%w: %s", ErrReservedField, name)
	}
	r.mu.Lock()
	p, isLazy := r.lazy[name]
	if !isLazy {
		r.fields[name] = v
		r.mu.Unlock()
		return nil
	}
	r.mu.Unlock()
	p.set(v)
	return nil
}

// Fields returns a copy of the plain fields. Lazy properties are not included.
func (r *Resource) Fields() Fields {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return maps.Clone(r.fields)
}

// Lazy returns the sorted names of the declared lazy properties.
func (r *Resource) Lazy() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Sorted(maps.Keys(r.lazy))
}

// Ready resolves once the initial data is merged, the key is bound, the
// initializer has run and the resource is marked loaded.
func (r *Resource) Ready() *future.Future[*Resource] { return r.ready }

// Loaded reports whether the initial load completed. It never reverts.
func (r *Resource) Loaded() bool { return r.life.isLoaded() }

// Reloading returns the in-flight refresh handle, if any.
func (r *Resource) Reloading() (*future.Future[*Resource], bool) { return r.life.current() }

// Reload refreshes the resource with the data returned by fetch.
// While a refresh is in flight, Reload returns that same handle and fetch is
// not called.
func (r *Resource) Reload(fetch func() (Fields, error)) *future.Future[*Resource] {
	h, _ := r.life.begin(func() (*Resource, error) {
		data, err := fetch()
		if err != nil {
			return nil, err
		}
		return r.Extend(data), nil
	})
	return h
}

// Track marks the resource as reloading until f settles and returns the
// handle that Reload hands out meanwhile. Tracking Ready holds the state for
// the initial load and releases it before Ready resolves.
func (r *Resource) Track(f *future.Future[*Resource]) *future.Future[*Resource] {
	return r.life.track(f)
}
