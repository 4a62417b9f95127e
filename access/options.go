package access

import (
	"log/slog"
	"slices"
	"time"

	"github.com/IvanBrykalov/rescache/resource"
	"github.com/IvanBrykalov/rescache/transport"
)

// PathTransform rewrites a logical key into a transport address.
type PathTransform func(path string) string

// Config is the effective per-call configuration.
type Config struct {
	// Cache is always forced off: the registry is the single source of truth.
	Cache bool

	TransformPath     []PathTransform
	TransformRequest  []transport.RequestTransform
	TransformResponse []transport.ResponseTransform

	// Pathfinder keys collection members and created resources.
	Pathfinder resource.Pathfinder
	// Initializer runs once per loaded resource.
	Initializer resource.Initializer
}

// Option adjusts the Config of a single call.
type Option func(*Config)

// WithCache is accepted for symmetry with transport options and ignored.
func WithCache(enabled bool) Option {
	return func(c *Config) { c.Cache = enabled }
}

// WithPathTransform appends path rewrites applied after the defaults.
func WithPathTransform(fns ...PathTransform) Option {
	return func(c *Config) { c.TransformPath = append(c.TransformPath, fns...) }
}

// WithRequestTransform appends request transforms run before the defaults.
func WithRequestTransform(fns ...transport.RequestTransform) Option {
	return func(c *Config) { c.TransformRequest = append(c.TransformRequest, fns...) }
}

// WithResponseTransform appends response transforms run after the defaults.
func WithResponseTransform(fns ...transport.ResponseTransform) Option {
	return func(c *Config) { c.TransformResponse = append(c.TransformResponse, fns...) }
}

// WithPathfinder overrides the pathfinder for this call.
func WithPathfinder(pf resource.Pathfinder) Option {
	return func(c *Config) { c.Pathfinder = pf }
}

// WithInitializer sets the one-shot post-load hook for this call.
func WithInitializer(init resource.Initializer) Option {
	return func(c *Config) { c.Initializer = init }
}

// Metrics exposes access-level observability hooks.
type Metrics interface {
	// Request observes one transport call.
	Request(method string, d time.Duration, err error)
	// Coalesced counts an operation served by an in-flight one ("get", "query", "reload").
	Coalesced(op string)
}

// NoopMetrics is the default Metrics.
type NoopMetrics struct{}

func (NoopMetrics) Request(string, time.Duration, error) {}
func (NoopMetrics) Coalesced(string)                     {}

var _ Metrics = NoopMetrics{}

// Options configures a Client. Zero values are safe:
//   - nil Logger  => discard
//   - nil Metrics => NoopMetrics
type Options struct {
	// Defaults are the process-wide settings every call is merged over.
	Defaults Config
	Logger   *slog.Logger
	Metrics  Metrics
}

// merge builds the effective Config: caller options over defaults.
//   - path transforms: defaults first, then the caller's
//   - request transforms: caller's first, defaults appended
//   - response transforms: defaults first, then the caller's
//   - pathfinder / initializer: caller's, else the default's
func merge(defaults Config, opts []Option) Config {
	var call Config
	for _, opt := range opts {
		if opt != nil {
			opt(&call)
		}
	}

	cfg := Config{
		Cache:             false,
		TransformPath:     slices.Concat(defaults.TransformPath, call.TransformPath),
		TransformRequest:  slices.Concat(call.TransformRequest, defaults.TransformRequest),
		TransformResponse: slices.Concat(defaults.TransformResponse, call.TransformResponse),
		Pathfinder:        call.Pathfinder,
		Initializer:       call.Initializer,
	}
	if cfg.Pathfinder == nil {
		cfg.Pathfinder = defaults.Pathfinder
	}
	if cfg.Pathfinder == nil {
		cfg.Pathfinder = resource.DefaultPathfinder
	}
	if cfg.Initializer == nil {
		cfg.Initializer = defaults.Initializer
	}
	return cfg
}

// address applies the path transforms left to right.
func (c Config) address(key string) string {
	for _, fn := range c.TransformPath {
		key = fn(key)
	}
	return key
}
