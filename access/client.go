package access

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/IvanBrykalov/rescache/future"
	"github.com/IvanBrykalov/rescache/registry"
	"github.com/IvanBrykalov/rescache/resource"
	"github.com/IvanBrykalov/rescache/transport"
)

// ErrKindMismatch is returned when a key holds a collection where a resource
// is expected, or the reverse.
var ErrKindMismatch = errors.New("access: key holds a different kind of entry")

// Client fetches, creates, updates and deletes entities through a transport
// while keeping one live object per key in its registry.
// All methods are safe for concurrent use.
type Client struct {
	tr       transport.Transport
	reg      *registry.Registry
	defaults Config
	log      *slog.Logger
	metrics  Metrics
}

// New constructs a Client. A nil registry gets a fresh unbounded one.
func New(tr transport.Transport, reg *registry.Registry, opt Options) *Client {
	if reg == nil {
		reg = registry.New(registry.Options{})
	}
	if opt.Logger == nil {
		opt.Logger = slog.New(slog.DiscardHandler)
	}
	if opt.Metrics == nil {
		opt.Metrics = NoopMetrics{}
	}
	return &Client{
		tr:       tr,
		reg:      reg,
		defaults: opt.Defaults,
		log:      opt.Logger,
		metrics:  opt.Metrics,
	}
}

// Registry returns the registry backing c.
func (c *Client) Registry() *registry.Registry { return c.reg }

// Get returns the resource cached under key, or starts fetching it.
// A cached resource is returned as is, even while it is still loading; await
// Ready before relying on its fields. A failed initial fetch is evicted so
// the next Get retries.
func (c *Client) Get(ctx context.Context, key string, opts ...Option) (*resource.Resource, error) {
	if key == "" {
		return nil, registry.ErrUndefinedKey
	}
	cfg := merge(c.defaults, opts)

	var data *future.Future[resource.Fields]
	e, loaded := c.reg.LoadOrStore(key, func() registry.Entry {
		data = future.New[resource.Fields]()
		r := resource.New(resource.Key(key), data, resource.Options{Initializer: cfg.Initializer})
		r.Track(r.Ready())
		return r
	})
	r, ok := e.(*resource.Resource)
	if !ok {
		return nil, fmt.Errorf("%w: %s holds %T", ErrKindMismatch, key, e)
	}
	if loaded {
		if !r.Loaded() {
			c.metrics.Coalesced("get")
		}
		c.log.Debug("registry hit", "key", key, "loaded", r.Loaded())
		return r, nil
	}

	c.log.Debug("registry miss", "key", key)
	ctx = context.WithoutCancel(ctx)
	go func() { data.Resolve(c.fetchFields(ctx, http.MethodGet, key, nil, cfg)) }()
	evictOnFailure(c, key, r, r.Ready())
	return r, nil
}

// Query returns the collection cached under key, or starts fetching it.
// Once fetched, every member is reconciled with the registry: a member whose
// key is already cached individually is replaced by the cached instance,
// which takes the freshly fetched fields.
func (c *Client) Query(ctx context.Context, key string, opts ...Option) (*resource.Collection, error) {
	if key == "" {
		return nil, registry.ErrUndefinedKey
	}
	cfg := merge(c.defaults, opts)

	var data *future.Future[[]resource.Fields]
	e, loaded := c.reg.LoadOrStore(key, func() registry.Entry {
		data = future.New[[]resource.Fields]()
		col := resource.NewCollection(key, data, c.collectionOptions(cfg))
		col.Track(col.Ready())
		return col
	})
	col, ok := e.(*resource.Collection)
	if !ok {
		return nil, fmt.Errorf("%w: %s holds %T", ErrKindMismatch, key, e)
	}
	if loaded {
		if !col.Loaded() {
			c.metrics.Coalesced("query")
		}
		c.log.Debug("registry hit", "key", key, "loaded", col.Loaded())
		return col, nil
	}

	c.log.Debug("registry miss", "key", key)
	ctx = context.WithoutCancel(ctx)
	go func() { data.Resolve(c.fetchList(ctx, key, cfg)) }()
	evictOnFailure(c, key, col, col.Ready())
	return col, nil
}

// GetAll fetches keys concurrently and waits until every resource is ready.
func (c *Client) GetAll(ctx context.Context, keys []string, opts ...Option) ([]*resource.Resource, error) {
	out := make([]*resource.Resource, len(keys))
	for i, k := range keys {
		r, err := c.Get(ctx, k, opts...)
		if err != nil {
			return nil, err
		}
		out[i] = r
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, r := range out {
		g.Go(func() error {
			_, err := r.Ready().Wait(gctx)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// Post creates an entity under parentKey. The returned resource's key is
// derived from the response by the pathfinder; it is stored in the registry
// once bound, before it reports ready.
func (c *Client) Post(ctx context.Context, parentKey string, body resource.Fields, opts ...Option) *resource.Resource {
	cfg := merge(c.defaults, opts)
	data := future.New[resource.Fields]()
	r := resource.New(
		resource.DerivedKey(func(r *resource.Resource) (string, error) {
			return cfg.Pathfinder(parentKey, r.Fields())
		}),
		data,
		resource.Options{
			Initializer: cfg.Initializer,
			Commit: func(r *resource.Resource) error {
				_, err := c.reg.Store(r)
				return err
			},
		},
	)

	ctx = context.WithoutCancel(ctx)
	go func() { data.Resolve(c.fetchFields(ctx, http.MethodPost, parentKey, payload(body), cfg)) }()
	return r
}

// Put updates the entity at key. If a resource is already cached under key,
// the response is merged into that instance; otherwise a new resource is
// built and stored.
func (c *Client) Put(ctx context.Context, key string, body resource.Fields, opts ...Option) *future.Future[*resource.Resource] {
	if key == "" {
		return future.Failed[*resource.Resource](registry.ErrUndefinedKey)
	}
	cfg := merge(c.defaults, opts)
	ctx = context.WithoutCancel(ctx)

	return future.Go(func() (*resource.Resource, error) {
		fields, err := c.fetchFields(ctx, http.MethodPut, key, payload(body), cfg)
		if err != nil {
			return nil, err
		}
		var fresh *resource.Resource
		e, loaded := c.reg.LoadOrStore(key, func() registry.Entry {
			fresh = resource.FromFields(resource.Key(key), fields, resource.Options{Initializer: cfg.Initializer})
			return fresh
		})
		if !loaded {
			return fresh.Ready().Await()
		}
		stored, ok := e.(*resource.Resource)
		if !ok {
			return nil, fmt.Errorf("%w: %s holds %T", ErrKindMismatch, key, e)
		}
		return stored.Extend(fields), nil
	})
}

// Delete deletes the entity at key and, once the transport succeeds, removes
// key from the registry.
func (c *Client) Delete(ctx context.Context, key string, opts ...Option) *future.Future[*transport.Response] {
	if key == "" {
		return future.Failed[*transport.Response](registry.ErrUndefinedKey)
	}
	cfg := merge(c.defaults, opts)
	ctx = context.WithoutCancel(ctx)

	return future.Go(func() (*transport.Response, error) {
		res, err := c.do(ctx, http.MethodDelete, key, nil, cfg)
		if err != nil {
			return nil, err
		}
		if _, err := c.reg.Remove(key); err == nil {
			c.log.Debug("registry remove", "key", key)
		}
		return res, nil
	})
}

// Reload refreshes r from the remote source. While a refresh of r is in
// flight, the same handle is returned and no request is issued.
func (c *Client) Reload(ctx context.Context, r *resource.Resource, opts ...Option) *future.Future[*resource.Resource] {
	key, ok := r.Key()
	if !ok {
		return future.Failed[*resource.Resource](resource.ErrUnboundKey)
	}
	cfg := merge(c.defaults, opts)
	ctx = context.WithoutCancel(ctx)

	prev, reloading := r.Reloading()
	h := r.Reload(func() (resource.Fields, error) {
		return c.fetchFields(ctx, http.MethodGet, key, nil, cfg)
	})
	if reloading && prev == h {
		c.metrics.Coalesced("reload")
		c.log.Debug("reload coalesced", "key", key)
	}
	return h
}

// ReloadCollection refetches col and syncs it in place: retained members keep
// their identity, stale members are dropped, new members are appended.
func (c *Client) ReloadCollection(ctx context.Context, col *resource.Collection, opts ...Option) *future.Future[*resource.Collection] {
	key, ok := col.Key()
	if !ok {
		return future.Failed[*resource.Collection](resource.ErrUnboundKey)
	}
	cfg := merge(c.defaults, opts)
	ctx = context.WithoutCancel(ctx)

	prev, reloading := col.Reloading()
	h := col.Reload(func() (*resource.Collection, error) {
		data := future.Go(func() ([]resource.Fields, error) { return c.fetchList(ctx, key, cfg) })
		fresh := resource.NewCollection(key, data, resource.CollectionOptions{
			Pathfinder:  cfg.Pathfinder,
			Initializer: cfg.Initializer,
		})
		return fresh.Ready().Await()
	})
	if reloading && prev == h {
		c.metrics.Coalesced("reload")
		c.log.Debug("reload coalesced", "key", key)
	}
	return h
}

// ---- helpers ----

func (c *Client) collectionOptions(cfg Config) resource.CollectionOptions {
	return resource.CollectionOptions{
		Pathfinder:  cfg.Pathfinder,
		Initializer: cfg.Initializer,
		Commit:      c.reconcile,
	}
}

// reconcile keeps one object per key across granularities: each member
// either becomes the registry's entry for its key or is swapped for the
// instance already cached there, which takes the member's fresh fields.
func (c *Client) reconcile(col *resource.Collection) error {
	for _, m := range col.Members() {
		k, _ := m.Key()
		e, loaded := c.reg.LoadOrStore(k, func() registry.Entry { return m })
		if !loaded || e == registry.Entry(m) {
			continue
		}
		stored, ok := e.(*resource.Resource)
		if !ok {
			return fmt.Errorf("%w: member %s holds %T", ErrKindMismatch, k, e)
		}
		stored.Extend(m.Fields())
		if _, err := col.Replace(stored); err != nil {
			return err
		}
	}
	return nil
}

// do performs one transport call with cache bypass forced off.
func (c *Client) do(ctx context.Context, method, key string, body any, cfg Config) (*transport.Response, error) {
	req := &transport.Request{
		Method:            method,
		Addr:              cfg.address(key),
		Body:              body,
		Cache:             false,
		TransformRequest:  cfg.TransformRequest,
		TransformResponse: cfg.TransformResponse,
	}
	start := time.Now()
	res, err := c.tr.Do(ctx, req)
	d := time.Since(start)
	c.metrics.Request(method, d, err)
	if err != nil {
		c.log.Debug("transport call failed", "method", method, "addr", req.Addr, "dur", d, "err", err)
		return nil, err
	}
	c.log.Debug("transport call", "method", method, "addr", req.Addr, "status", res.Status, "dur", d)
	return res, nil
}

func (c *Client) fetchFields(ctx context.Context, method, key string, body any, cfg Config) (resource.Fields, error) {
	res, err := c.do(ctx, method, key, body, cfg)
	if err != nil {
		return nil, err
	}
	return resource.AsFields(res.Data)
}

func (c *Client) fetchList(ctx context.Context, key string, cfg Config) ([]resource.Fields, error) {
	res, err := c.do(ctx, http.MethodGet, key, nil, cfg)
	if err != nil {
		return nil, err
	}
	return resource.AsFieldList(res.Data)
}

// evictOnFailure drops e from the registry if its initial load fails, so a
// later fetch of key goes remote again instead of returning a dead entry.
func evictOnFailure[T any](c *Client, key string, e registry.Entry, ready *future.Future[T]) {
	go func() {
		if _, err := ready.Await(); err != nil && c.reg.Evict(key, e) {
			c.log.Debug("evicted failed fetch", "key", key, "err", err)
		}
	}()
}

// payload keeps a nil body a nil interface.
func payload(body resource.Fields) any {
	if body == nil {
		return nil
	}
	return body
}
