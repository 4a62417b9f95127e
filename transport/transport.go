// Package transport defines the contract between rescache and the remote
// data source. Implementations perform the actual call; the cache layer only
// builds requests and consumes decoded payloads.
package transport

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// RequestTransform rewrites an outgoing body before it is encoded.
type RequestTransform func(body any, header http.Header) (any, error)

// ResponseTransform rewrites a decoded response payload.
type ResponseTransform func(data any, header http.Header) (any, error)

// Request is one call to the remote source.
type Request struct {
	// Method is one of http.MethodGet, MethodPost, MethodPut, MethodDelete.
	Method string
	// Addr is the final address after path transforms.
	Addr string
	// Body is the unencoded payload for POST and PUT.
	Body any
	// Header carries extra request headers.
	Header http.Header
	// Cache permits the transport's own caching. The access layer always
	// sends false because its registry is the single source of truth.
	Cache bool

	TransformRequest  []RequestTransform
	TransformResponse []ResponseTransform
}

// Response is a decoded answer.
type Response struct {
	Status int
	Header http.Header
	// Data is the decoded payload, e.g. map[string]any or []any for JSON.
	Data any
}

// Transport performs calls. Implementations must be safe for concurrent use.
type Transport interface {
	Do(ctx context.Context, req *Request) (*Response, error)
}

// Func adapts a function to Transport.
type Func func(ctx context.Context, req *Request) (*Response, error)

// Do implements Transport.
func (f Func) Do(ctx context.Context, req *Request) (*Response, error) { return f(ctx, req) }

// StatusError reports a non-2xx answer.
type StatusError struct {
	Method string
	Addr   string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("transport: %s %s: status %d %s", e.Method, e.Addr, e.Code, e.Body)
}

// IsNotFound reports whether err is a 404 StatusError.
func IsNotFound(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Code == http.StatusNotFound
}

// ApplyRequest runs the request transforms in order.
func ApplyRequest(body any, header http.Header, fns []RequestTransform) (any, error) {
	for _, fn := range fns {
		var err error
		if body, err = fn(body, header); err != nil {
			return nil, err
		}
	}
	return body, nil
}

// ApplyResponse runs the response transforms in order.
func ApplyResponse(data any, header http.Header, fns []ResponseTransform) (any, error) {
	for _, fn := range fns {
		var err error
		if data, err = fn(data, header); err != nil {
			return nil, err
		}
	}
	return data, nil
}
