// Package access is the facade applications use to fetch and mutate remote
// entities through a transport while sharing one live object per key.
//
// Design
//
//   - Single instance per key: Get and Query go through
//     registry.LoadOrStore, so concurrent callers asking for the same key
//     receive the same pointer and only one remote call is made.
//
//   - Cross-granularity identity: once a collection is fetched its members
//     are reconciled with the registry. A member whose key is already
//     cached is replaced by the cached instance, which is extended with the
//     fresh data; otherwise the member becomes the cached instance.
//
//   - Cache bypass: every request is sent with caching disabled; the
//     registry is the only cache.
//
//   - Failures: a failed initial fetch rejects the entity's Ready handle and
//     removes it from the registry, so the next Get goes remote again.
//
// Config merge order
//
// Each call merges its Options over the Client defaults:
//   - path transforms: defaults, then call
//   - request transforms: call, then defaults
//   - response transforms: defaults, then call
//   - pathfinder and initializer: call if set, else default
//
// Basic usage
//
//	c := access.New(httpjson.New("https://api.example.com", nil), nil, access.Options{})
//	item, err := c.Get(ctx, "/items/1")
//	if err != nil {
//	    return err
//	}
//	if _, err := item.Ready().Wait(ctx); err != nil {
//	    return err
//	}
//
// Thread-safety
//
// Client is safe for concurrent use. Remote calls are detached from the
// caller's cancellation: ctx bounds how long the caller waits, not the call
// shared by other holders of the same entity.
package access
