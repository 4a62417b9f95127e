package resource

import (
	"fmt"

	"github.com/IvanBrykalov/rescache/future"
)

// KeySource says how a Resource gets its key. Exactly one variant is set;
// the zero value leaves the key unbound.
type KeySource struct {
	literal  string
	deferred *future.Future[string]
	derive   func(*Resource) (string, error)
}

// Key binds k immediately at construction.
func Key(k string) KeySource { return KeySource{literal: k} }

// DeferredKey binds the key once f resolves; readiness waits for it.
func DeferredKey(f *future.Future[string]) KeySource { return KeySource{deferred: f} }

// DerivedKey binds the key from the loaded resource itself, e.g. when the
// server assigns the identifier and it only shows up in the response body.
func DerivedKey(fn func(*Resource) (string, error)) KeySource { return KeySource{derive: fn} }

// Key returns the bound key and whether one is bound.
func (r *Resource) Key() (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.key, r.bound
}

// BindKey binds k if no key is bound yet. An empty k is a no-op, and so is
// any call after the first successful bind. It reports whether k was bound.
func (r *Resource) BindKey(k string) bool {
	if k == "" {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.bound {
		return false
	}
	r.key, r.bound = k, true
	return true
}

// AssignKey binds a dynamically typed key value: nil is a no-op, a string is
// passed to BindKey, anything else fails with ErrInvalidKey.
func (r *Resource) AssignKey(v any) error {
	switch k := v.(type) {
	case nil:
		return nil
	case string:
		r.BindKey(k)
		return nil
	default:
		return fmt.Errorf("%w, given %T", ErrInvalidKey, v)
	}
}
