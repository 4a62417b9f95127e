package resource

import (
	"fmt"
	"slices"
	"sync"

	"github.com/IvanBrykalov/rescache/future"
)

// Predicate selects collection members.
type Predicate func(*Resource) bool

// CollectionOptions tunes how a Collection is populated.
type CollectionOptions struct {
	// Pathfinder keys each member; nil means DefaultPathfinder.
	Pathfinder Pathfinder

	// Initializer runs once per member before the collection is marked loaded.
	Initializer Initializer

	// Commit runs after population and after every reload sync, before the
	// collection reports ready. The access layer reconciles members with the
	// registry here.
	Commit func(*Collection) error
}

// Collection is an ordered, keyed set of Resources. Order is arrival order.
//
// Invariant: index is the exact inverse of members. keys[i] is the key of
// members[i] and index[keys[i]] == i for every i.
type Collection struct {
	mu      sync.RWMutex
	key     string
	members []*Resource
	keys    []string
	index   map[string]int
	opts    CollectionOptions

	life  lifecycle[*Collection]
	ready *future.Future[*Collection]
}

// NewCollection returns an unloaded Collection populated from data in the
// background. key may be empty for an anonymous collection.
func NewCollection(key string, data *future.Future[[]Fields], opts CollectionOptions) *Collection {
	c := newCollection(key, opts)
	go c.load(data)
	return c
}

// CollectionOf returns a loaded Collection holding members in order.
func CollectionOf(key string, members ...*Resource) (*Collection, error) {
	c := newCollection(key, CollectionOptions{})
	for _, m := range members {
		if err := c.Add(m); err != nil {
			return nil, err
		}
	}
	c.life.markLoaded()
	c.ready.Resolve(c, nil)
	return c, nil
}

func newCollection(key string, opts CollectionOptions) *Collection {
	if opts.Pathfinder == nil {
		opts.Pathfinder = DefaultPathfinder
	}
	return &Collection{
		key:   key,
		index: make(map[string]int),
		opts:  opts,
		ready: future.New[*Collection](),
	}
}

func (c *Collection) load(data *future.Future[[]Fields]) {
	if err := c.populate(data); err != nil {
		c.life.settle(c.ready, nil, err)
		return
	}
	c.life.markLoaded()
	c.life.settle(c.ready, c, nil)
}

// populate wraps every raw entity into a member, waits for each member's
// initializer, then commits.
func (c *Collection) populate(data *future.Future[[]Fields]) error {
	entities, err := data.Await()
	if err != nil {
		return err
	}
	for _, entity := range entities {
		k, err := c.opts.Pathfinder(c.key, entity)
		if err != nil {
			return err
		}
		// A payload repeating a key merges into the first member.
		if existing, ok := c.Get(k); ok {
			existing.Extend(entity)
			continue
		}
		m := FromFields(Key(k), entity, Options{Initializer: c.opts.Initializer})
		if err := c.Add(m); err != nil {
			return err
		}
	}
	for _, m := range c.Members() {
		if _, err := m.Ready().Await(); err != nil {
			return err
		}
	}
	if c.opts.Commit != nil {
		return c.opts.Commit(c)
	}
	return nil
}

// Key returns the collection key; anonymous collections report false.
func (c *Collection) Key() (string, bool) { return c.key, c.key != "" }

// Len returns the number of members.
func (c *Collection) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.members)
}

// Members returns a snapshot of the members in order.
func (c *Collection) Members() []*Resource {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.members)
}

// Keys returns a snapshot of the member keys in order.
func (c *Collection) Keys() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.keys)
}

// Add appends r. r's key must be bound and not already indexed.
func (c *Collection) Add(r *Resource) error {
	k, ok := r.Key()
	if !ok {
		return ErrUnboundKey
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, dup := c.index[k]; dup {
		return fmt.Errorf("%w: %s", ErrDuplicateMember, k)
	}
	c.appendLocked(k, r)
	return nil
}

// Get returns the member stored under key in O(1).
func (c *Collection) Get(key string) (*Resource, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	pos, ok := c.index[key]
	if !ok {
		return nil, false
	}
	return c.members[pos], true
}

// Remove removes r by identity and renumbers every later index entry.
// It reports whether r was a member.
func (c *Collection) Remove(r *Resource) bool {
	k, ok := r.Key()
	if !ok {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	pos, ok := c.index[k]
	if !ok || c.members[pos] != r {
		return false
	}
	c.members = slices.Delete(c.members, pos, pos+1)
	c.keys = slices.Delete(c.keys, pos, pos+1)
	delete(c.index, k)
	for i := pos; i < len(c.keys); i++ {
		c.index[c.keys[i]] = i
	}
	return true
}

// RemoveFunc removes every member matching pred and returns them in order.
// pred runs without the collection lock held.
func (c *Collection) RemoveFunc(pred Predicate) []*Resource {
	matched := c.Select(pred)
	for _, m := range matched {
		c.Remove(m)
	}
	return matched
}

// Select returns the members matching pred without changing the collection.
func (c *Collection) Select(pred Predicate) []*Resource {
	var out []*Resource
	for _, m := range c.Members() {
		if pred(m) {
			out = append(out, m)
		}
	}
	return out
}

// Replace puts r in place of the member holding r's key, keeping its
// position, and returns the previous member.
func (c *Collection) Replace(r *Resource) (*Resource, error) {
	k, ok := r.Key()
	if !ok {
		return nil, ErrUnboundKey
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	pos, ok := c.index[k]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotMember, k)
	}
	old := c.members[pos]
	c.members[pos] = r
	return old, nil
}

// Sync reconciles c against incoming and returns c:
//   - a member in both keeps its identity and position and takes the
//     incoming member's fields;
//   - a member only in incoming is appended;
//   - a member only in c is removed.
func (c *Collection) Sync(incoming *Collection) *Collection {
	inMembers, inKeys := incoming.snapshot()
	present := make(map[string]struct{}, len(inKeys))

	c.mu.Lock()
	defer c.mu.Unlock()

	for i, m := range inMembers {
		k := inKeys[i]
		present[k] = struct{}{}
		if pos, ok := c.index[k]; ok {
			if existing := c.members[pos]; existing != m {
				existing.Extend(m.Fields())
			}
			continue
		}
		c.appendLocked(k, m)
	}

	// Drop stale members, keeping relative order, then rebuild the index.
	n := 0
	for i, m := range c.members {
		if _, ok := present[c.keys[i]]; !ok {
			delete(c.index, c.keys[i])
			continue
		}
		c.members[n], c.keys[n] = m, c.keys[i]
		c.index[c.keys[n]] = n
		n++
	}
	clear(c.members[n:])
	c.members, c.keys = c.members[:n], c.keys[:n]
	return c
}

// Ready resolves once every member is initialized and the collection is
// marked loaded.
func (c *Collection) Ready() *future.Future[*Collection] { return c.ready }

// Loaded reports whether the initial population completed. It never reverts.
func (c *Collection) Loaded() bool { return c.life.isLoaded() }

// Reloading returns the in-flight refresh handle, if any.
func (c *Collection) Reloading() (*future.Future[*Collection], bool) { return c.life.current() }

// Reload syncs c against the collection returned by fetch and re-runs the
// commit hook. While a refresh is in flight, Reload returns that same handle
// and fetch is not called.
func (c *Collection) Reload(fetch func() (*Collection, error)) *future.Future[*Collection] {
	h, _ := c.life.begin(func() (*Collection, error) {
		fresh, err := fetch()
		if err != nil {
			return nil, err
		}
		c.Sync(fresh)
		if c.opts.Commit != nil {
			if err := c.opts.Commit(c); err != nil {
				return nil, err
			}
		}
		return c, nil
	})
	return h
}

// Track marks the collection as reloading until f settles.
func (c *Collection) Track(f *future.Future[*Collection]) *future.Future[*Collection] {
	return c.life.track(f)
}

func (c *Collection) appendLocked(k string, r *Resource) {
	c.members = append(c.members, r)
	c.keys = append(c.keys, k)
	c.index[k] = len(c.members) - 1
}

func (c *Collection) snapshot() ([]*Resource, []string) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.members), slices.Clone(c.keys)
}
