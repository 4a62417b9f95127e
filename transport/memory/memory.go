// Package memory is an in-memory REST backend implementing
// transport.Transport. It backs tests, examples and cmd/bench.
//
// Items live under paths. GET on an item path returns the item; GET on a
// parent path lists its children in insertion order. POST creates a child
// with a server-assigned id, PUT merges into an item, DELETE removes it.
package memory

import (
	"context"
	"fmt"
	"maps"
	"net/http"
	"path"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/IvanBrykalov/rescache/transport"
)

// Options configures a Backend. Zero values are safe.
type Options struct {
	// Latency delays every call; useful to widen race windows.
	Latency time.Duration
	// NewID assigns ids to POSTed items lacking one; nil => uuid.NewString.
	NewID func() string
}

// Backend is a concurrency-safe in-memory data source.
type Backend struct {
	mu          sync.Mutex
	items       map[string]map[string]any
	order       []string
	collections map[string]struct{}
	calls       map[string]int
	gate        chan struct{} // non-nil while calls are held

	opt Options
}

// New constructs an empty Backend.
func New(opt Options) *Backend {
	if opt.NewID == nil {
		opt.NewID = uuid.NewString
	}
	return &Backend{
		items:       make(map[string]map[string]any),
		collections: make(map[string]struct{}),
		calls:       make(map[string]int),
		opt:         opt,
	}
}

// Seed stores fields at p, replacing any previous item.
func (b *Backend) Seed(p string, fields map[string]any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.putLocked(p, maps.Clone(fields))
}

// Collection registers p as an (initially empty) listable collection.
func (b *Backend) Collection(p string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.collections[p] = struct{}{}
}

// Item returns a copy of the item stored at p.
func (b *Backend) Item(p string) (map[string]any, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	it, ok := b.items[p]
	return maps.Clone(it), ok
}

// Len returns the number of stored items.
func (b *Backend) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.items)
}

// Calls returns how many calls with method were received.
func (b *Backend) Calls(method string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls[method]
}

// TotalCalls returns the number of calls of any method.
func (b *Backend) TotalCalls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, c := range b.calls {
		n += c
	}
	return n
}

// Hold makes every call block after it is counted, until Release.
func (b *Backend) Hold() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.gate == nil {
		b.gate = make(chan struct{})
	}
}

// Release unblocks held calls.
func (b *Backend) Release() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.gate != nil {
		close(b.gate)
		b.gate = nil
	}
}

// Do implements transport.Transport.
func (b *Backend) Do(ctx context.Context, req *transport.Request) (*transport.Response, error) {
	b.mu.Lock()
	b.calls[req.Method]++
	gate := b.gate
	b.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if b.opt.Latency > 0 {
		select {
		case <-time.After(b.opt.Latency):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	header := make(http.Header)
	body, err := transport.ApplyRequest(req.Body, header, req.TransformRequest)
	if err != nil {
		return nil, err
	}

	status, data, err := b.dispatch(req, body)
	if err != nil {
		return nil, err
	}
	data, err = transport.ApplyResponse(data, header, req.TransformResponse)
	if err != nil {
		return nil, err
	}
	return &transport.Response{Status: status, Header: header, Data: data}, nil
}

func (b *Backend) dispatch(req *transport.Request, body any) (int, any, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch req.Method {
	case http.MethodGet, "":
		if it, ok := b.items[req.Addr]; ok {
			return http.StatusOK, maps.Clone(it), nil
		}
		if _, ok := b.collections[req.Addr]; ok {
			return http.StatusOK, b.listLocked(req.Addr), nil
		}
		return 0, nil, notFound(req)

	case http.MethodPost:
		fields, err := asObject(req, body)
		if err != nil {
			return 0, nil, err
		}
		id, ok := fields["id"]
		if !ok || id == nil || id == "" {
			id = b.opt.NewID()
			fields["id"] = id
		}
		b.putLocked(fmt.Sprintf("%s/%v", req.Addr, id), fields)
		return http.StatusCreated, maps.Clone(fields), nil

	case http.MethodPut:
		fields, err := asObject(req, body)
		if err != nil {
			return 0, nil, err
		}
		merged := b.items[req.Addr]
		if merged == nil {
			merged = make(map[string]any, len(fields))
		}
		maps.Copy(merged, fields)
		b.putLocked(req.Addr, merged)
		return http.StatusOK, maps.Clone(merged), nil

	case http.MethodDelete:
		if _, ok := b.items[req.Addr]; !ok {
			return 0, nil, notFound(req)
		}
		delete(b.items, req.Addr)
		b.order = slices.DeleteFunc(b.order, func(p string) bool { return p == req.Addr })
		return http.StatusNoContent, nil, nil

	default:
		return 0, nil, &transport.StatusError{Method: req.Method, Addr: req.Addr, Code: http.StatusMethodNotAllowed}
	}
}

func (b *Backend) putLocked(p string, fields map[string]any) {
	if _, ok := b.items[p]; !ok {
		b.order = append(b.order, p)
	}
	b.items[p] = fields
	b.collections[path.Dir(p)] = struct{}{}
}

func (b *Backend) listLocked(parent string) []any {
	out := []any{}
	for _, p := range b.order {
		if path.Dir(p) == parent {
			out = append(out, maps.Clone(b.items[p]))
		}
	}
	return out
}

func asObject(req *transport.Request, body any) (map[string]any, error) {
	switch v := body.(type) {
	case nil:
		return make(map[string]any), nil
	case map[string]any:
		if v == nil {
			return make(map[string]any), nil
		}
		return maps.Clone(v), nil
	default:
		return nil, &transport.StatusError{Method: req.Method, Addr: req.Addr, Code: http.StatusBadRequest,
			Body: fmt.Sprintf("want object, got %T", body)}
	}
}

func notFound(req *transport.Request) error {
	return &transport.StatusError{Method: req.Method, Addr: req.Addr, Code: http.StatusNotFound}
}

var _ transport.Transport = (*Backend)(nil)
