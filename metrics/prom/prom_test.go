package prom

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/IvanBrykalov/rescache/access"
	"github.com/IvanBrykalov/rescache/registry"
	"github.com/IvanBrykalov/rescache/transport/memory"
)

// value returns the sum of the samples of family name whose labels include want.
func value(t *testing.T, reg *prometheus.Registry, name string, want map[string]string) float64 {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatal(err)
	}
	var sum float64
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			if !hasLabels(m, want) {
				continue
			}
			switch {
			case m.GetCounter() != nil:
				sum += m.GetCounter().GetValue()
			case m.GetGauge() != nil:
				sum += m.GetGauge().GetValue()
			case m.GetHistogram() != nil:
				sum += float64(m.GetHistogram().GetSampleCount())
			}
		}
	}
	return sum
}

func hasLabels(m *dto.Metric, want map[string]string) bool {
	found := 0
	for _, lp := range m.GetLabel() {
		if v, ok := want[lp.GetName()]; ok && v == lp.GetValue() {
			found++
		}
	}
	return found == len(want)
}

func TestAdapter_RegistryAndAccess(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	a := New(reg, "rescache", "test", nil)

	b := memory.New(memory.Options{})
	b.Seed("/items/1", map[string]any{"id": 1})
	c := access.New(b, registry.New(registry.Options{Metrics: a}), access.Options{Metrics: a})
	ctx := context.Background()

	r, err := c.Get(ctx, "/items/1")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := r.Ready().Await(); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Get(ctx, "/items/1"); err != nil {
		t.Fatal(err)
	}
	missing, _ := c.Get(ctx, "/items/2")
	_, _ = missing.Ready().Await()

	if got := value(t, reg, "rescache_test_requests_total", map[string]string{"method": http.MethodGet, "outcome": "ok"}); got != 1 {
		t.Fatalf("ok GETs = %v", got)
	}
	if got := value(t, reg, "rescache_test_requests_total", map[string]string{"outcome": "error"}); got != 1 {
		t.Fatalf("failed GETs = %v", got)
	}
	if got := value(t, reg, "rescache_test_request_duration_seconds", map[string]string{"method": http.MethodGet}); got != 2 {
		t.Fatalf("latency samples = %v", got)
	}
	if got := value(t, reg, "rescache_test_hits_total", nil); got < 1 {
		t.Fatalf("hits = %v", got)
	}
	if got := value(t, reg, "rescache_test_misses_total", nil); got < 2 {
		t.Fatalf("misses = %v", got)
	}
}

func TestAdapter_EvictionsAndSize(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	a := New(reg, "", "", prometheus.Labels{"instance": "t"})

	a.Evict(registry.EvictTTL)
	a.Evict(registry.EvictCapacity)
	a.Evict(registry.EvictCapacity)
	a.Size(7)
	a.Coalesced("reload")
	a.Request(http.MethodPut, time.Millisecond, nil)

	if got := value(t, reg, "evictions_total", map[string]string{"reason": "capacity"}); got != 2 {
		t.Fatalf("capacity evictions = %v", got)
	}
	if got := value(t, reg, "evictions_total", map[string]string{"reason": "ttl"}); got != 1 {
		t.Fatalf("ttl evictions = %v", got)
	}
	if got := value(t, reg, "size_entries", map[string]string{"instance": "t"}); got != 7 {
		t.Fatalf("size = %v", got)
	}
	if got := value(t, reg, "coalesced_total", map[string]string{"op": "reload"}); got != 1 {
		t.Fatalf("coalesced = %v", got)
	}
}
