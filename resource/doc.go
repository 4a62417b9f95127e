// Package resource implements the cached entities of rescache: the single
// entity (Resource) and the ordered keyed set (Collection).
//
// Design
//
//   - Identity: a *Resource is the one live object for its key. Data merges
//     (Extend, reloads, Collection.Sync) mutate it in place, so every holder
//     observes fresh data without swapping references.
//
//   - Keys: a key is bound at most once. It can be a literal (Key), the
//     result of a future (DeferredKey), or derived from the loaded content
//     (DerivedKey) when the server picks the identifier.
//
//   - Readiness: Ready resolves after merge → key bind → initializer →
//     commit → loaded, strictly in that order. Reads before that observe a
//     partially merged entity.
//
//   - Lazy properties: DeclareLazy installs a value computed on first read
//     and memoized. Extend never overwrites a lazy property, so a remote
//     refresh cannot discard a locally derived value; only Set replaces it.
//
//   - Reload dedup: Reload on a resource or collection that is already
//     reloading returns the in-flight handle instead of fetching again. The
//     state returns to idle whether the refresh succeeds or fails.
//
//   - Sync: Collection.Sync is an order-preserving three-way merge. Retained
//     members keep identity and position, new members are appended, stale
//     members are removed, and the key index is kept the exact inverse of
//     the member list.
//
// Basic usage
//
//	r := resource.FromFields(resource.Key("/items/1"), resource.Fields{"id": 1}, resource.Options{})
//	_ = r.DeclareLazy("owner", func() any { return lookupOwner(r) })
//	if _, err := r.Ready().Await(); err != nil {
//	    // handle load failure
//	}
//	v, _ := r.Get("id")
//
// Thread-safety
//
// All methods are safe for concurrent use. Predicates and lazy compute
// functions run without collection locks held; a compute function must not
// read its own property.
package resource
