// Command bench runs a synthetic workload against an access client backed by
// the in-memory transport and exposes optional pprof/Prometheus endpoints.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"math/rand"
	"net/http"
	_ "net/http/pprof" // registers /debug/pprof/* on DefaultServeMux
	"os"
	"runtime"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/IvanBrykalov/rescache/access"
	pmet "github.com/IvanBrykalov/rescache/metrics/prom"
	"github.com/IvanBrykalov/rescache/query"
	"github.com/IvanBrykalov/rescache/registry"
	"github.com/IvanBrykalov/rescache/resource"
	"github.com/IvanBrykalov/rescache/transport/memory"
)

func main() {
	// ---- Flags ----
	var (
		capacity = flag.Int("cap", 0, "registry capacity (entries, 0=unbounded)")
		shards   = flag.Int("shards", 0, "number of shards (0=auto)")
		ttl      = flag.Duration("ttl", 0, "registry TTL (0=never expire)")

		workers  = flag.Int("workers", 2*runtime.GOMAXPROCS(0), "number of worker goroutines")
		duration = flag.Duration("duration", 10*time.Second, "benchmark duration")
		reloads  = flag.Int("reloads", 10, "reload percentage [0..100]")
		puts     = flag.Int("puts", 5, "put percentage [0..100]")
		latency  = flag.Duration("latency", time.Millisecond, "simulated backend latency")

		keys   = flag.Int("keys", 10_000, "keyspace size")
		zipfS  = flag.Float64("zipf_s", 1.1, "Zipf s > 1 (skew)")
		zipfV  = flag.Float64("zipf_v", 1.0, "Zipf v")
		seed   = flag.Int64("seed", time.Now().UnixNano(), "random seed")
		filter = flag.String("filter", "", "expr filter applied to /items after the run (e.g. `rev > 3`)")

		pprofAddr   = flag.String("pprof", "", "serve pprof at addr (e.g. :6060); empty = disabled")
		metricsAddr = flag.String("http", ":8080", "serve Prometheus metrics at addr; empty = disabled")
		verbose     = flag.Bool("v", false, "debug logging")
	)
	flag.Parse()

	var f *query.Filter
	if *filter != "" {
		var err error
		if f, err = query.Compile(*filter); err != nil {
			log.Fatal(err)
		}
	}

	// ---- pprof server (on DefaultServeMux) ----
	if *pprofAddr != "" {
		go func() {
			log.Printf("pprof: serving at %s", *pprofAddr)
			log.Println(http.ListenAndServe(*pprofAddr, nil))
		}()
	}

	// ---- Prometheus metrics (on DefaultServeMux) ----
	metrics := pmet.New(nil, "rescache", "bench", nil)
	if *metricsAddr != "" {
		http.Handle("/metrics", promhttp.Handler())
		go func() {
			log.Printf("metrics: serving at %s", *metricsAddr)
			log.Println(http.ListenAndServe(*metricsAddr, nil))
		}()
	}

	// ---- Backend + client ----
	backend := memory.New(memory.Options{Latency: *latency})
	for i := 0; i < *keys; i++ {
		backend.Seed("/items/"+strconv.Itoa(i), map[string]any{"id": i, "rev": 0})
	}

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	reg := registry.New(registry.Options{
		Capacity: *capacity,
		Shards:   *shards,
		TTL:      *ttl,
		Metrics:  metrics,
	})
	client := access.New(backend, reg, access.Options{Logger: logger, Metrics: metrics})

	// ---- Snapshot flags for goroutines ----
	reloadPct := *reloads
	putPct := *puts
	keysMax := uint64(*keys - 1)
	seedBase := *seed
	zipfSVal := *zipfS
	zipfVVal := *zipfV
	workersN := *workers
	if workersN <= 0 {
		workersN = 1
	}

	// ---- Load generation ----
	var gets, reloadsN, putsN, failures, total atomic.Uint64
	ctx, cancel := context.WithTimeout(context.Background(), *duration)
	defer cancel()

	start := time.Now()
	var g errgroup.Group
	for w := 0; w < workersN; w++ {
		g.Go(func() error {
			// Each worker gets its own RNG + Zipf (rand.Rand is NOT goroutine-safe).
			localR := rand.New(rand.NewSource(seedBase + int64(w)*9973))
			localZipf := rand.NewZipf(localR, zipfSVal, zipfVVal, keysMax)

			for ctx.Err() == nil {
				total.Add(1)
				key := "/items/" + strconv.FormatUint(localZipf.Uint64(), 10)

				r, err := client.Get(ctx, key)
				if err == nil {
					_, err = r.Ready().Wait(ctx)
				}
				if err != nil {
					if ctx.Err() == nil {
						failures.Add(1)
					}
					continue
				}
				gets.Add(1)

				switch p := int(localR.Int31n(100)); {
				case p < reloadPct:
					reloadsN.Add(1)
					_, err = client.Reload(ctx, r).Wait(ctx)
				case p < reloadPct+putPct:
					putsN.Add(1)
					rev, _ := r.Get("rev")
					next, _ := rev.(int)
					_, err = client.Put(ctx, key, resource.Fields{"rev": next + 1}).Wait(ctx)
				}
				if err != nil && ctx.Err() == nil {
					failures.Add(1)
				}
			}
			return nil
		})
	}
	_ = g.Wait()
	elapsed := time.Since(start)

	// ---- Report ----
	ops := total.Load()
	fmt.Printf("cap=%d shards=%d ttl=%v workers=%d keys=%d dur=%v seed=%d\n",
		*capacity, *shards, *ttl, workersN, *keys, elapsed, seedBase)
	fmt.Printf("ops=%d (%.0f ops/s)  gets=%d  reloads=%d  puts=%d  failures=%d\n",
		ops, float64(ops)/elapsed.Seconds(), gets.Load(), reloadsN.Load(), putsN.Load(), failures.Load())
	fmt.Printf("backend GET=%d PUT=%d  registry Len()=%d\n",
		backend.Calls(http.MethodGet), backend.Calls(http.MethodPut), reg.Len())

	if f != nil {
		col, err := client.Query(context.Background(), "/items")
		if err != nil {
			log.Fatal(err)
		}
		if _, err := col.Ready().Await(); err != nil {
			log.Fatal(err)
		}
		matched, err := f.Select(col)
		if err != nil {
			log.Fatal(err)
		}
		fmt.Printf("filter %q matched %d of %d\n", f, len(matched), col.Len())
	}
}
