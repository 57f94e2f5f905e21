// Command loadbench runs a synthetic chunk-loading workload against the
// engine and exposes optional pprof/Prometheus endpoints.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	_ "net/http/pprof" // registers /debug/pprof/* on DefaultServeMux
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/lmittmann/tint"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Meta-Boltz/metamon-sub008/lazyload"
	"github.com/Meta-Boltz/metamon-sub008/metrics/prom"
)

func main() {
	// ---- Flags ----
	var (
		configPath = flag.String("config", "", "optional YAML scenario file")
		keys       = flag.Int("keys", 1_000, "distinct resource keys")
		workers    = flag.Int("workers", 16, "concurrent load callers")
		duration   = flag.Duration("duration", 10*time.Second, "workload duration")
		errRate    = flag.Float64("err-rate", 0.05, "producer failure probability")
		minLat     = flag.Duration("min-latency", time.Millisecond, "minimum producer latency")
		maxLat     = flag.Duration("max-latency", 20*time.Millisecond, "maximum producer latency")
		preload    = flag.Float64("preload-share", 0.2, "fraction of requests issued as preloads")
		network    = flag.String("network", "fast", "network class: slow | medium | fast")
		addr       = flag.String("addr", "", "listen address for /metrics and /debug/pprof (empty = off)")
		debug      = flag.Bool("debug", false, "enable debug logging")
	)
	flag.Parse()

	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}
	logger := slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      level,
		TimeFormat: time.RFC3339,
	}))
	slog.SetDefault(logger)

	scn := scenario{
		Keys:         *keys,
		Workers:      *workers,
		Duration:     *duration,
		ErrRate:      *errRate,
		MinLatency:   *minLat,
		MaxLatency:   *maxLat,
		PreloadShare: *preload,
		NetworkClass: *network,
	}
	if *configPath != "" {
		if err := scn.load(*configPath); err != nil {
			logger.Error("failed to load scenario", "path", *configPath, "error", err)
			os.Exit(1)
		}
	}

	m := prom.New(nil, "lazyload", "bench", nil)
	eng := lazyload.New[[]byte](lazyload.Options[[]byte]{
		ChunkTimeout:       scn.Engine.ChunkTimeout,
		MaxConcurrentLoads: scn.Engine.MaxConcurrentLoads,
		MaxRetries:         scn.Engine.MaxRetries,
		RetryStrategy:      lazyload.Strategy(scn.Engine.RetryStrategy),
		BaseDelay:          scn.Engine.BaseDelay,
		MaxDelay:           scn.Engine.MaxDelay,
		Logger:             logger,
		Metrics:            m,
	})
	defer eng.Destroy()
	eng.SetNetworkClass(parseNetworkClass(scn.NetworkClass))

	if *addr != "" {
		http.Handle("/metrics", promhttp.Handler())
		go func() {
			logger.Info("serving metrics and pprof", "addr", *addr)
			if err := http.ListenAndServe(*addr, nil); err != nil {
				logger.Error("metrics server failed", "error", err)
			}
		}()
	}

	logger.Info("starting workload",
		"keys", scn.Keys, "workers", scn.Workers, "duration", scn.Duration,
		"err_rate", scn.ErrRate, "network", scn.NetworkClass)

	ctx, cancel := context.WithTimeout(context.Background(), scn.Duration)
	defer cancel()

	var wg sync.WaitGroup
	start := time.Now()
	for w := 0; w < scn.Workers; w++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(id)*7919))
			for ctx.Err() == nil {
				key := "chunk:" + strconv.Itoa(r.Intn(scn.Keys))
				p := producer(r.Int63(), scn)
				if r.Float64() < scn.PreloadShare {
					eng.Preload(key, p, lazyload.PriorityLow)
					continue
				}
				if _, err := eng.Load(ctx, key, p); err != nil && ctx.Err() == nil {
					logger.Debug("load failed", "key", key, "error", err)
				}
			}
		}(w)
	}
	wg.Wait()

	stats := eng.Stats()
	elapsed := time.Since(start)
	fmt.Printf("elapsed:        %v\n", elapsed.Round(time.Millisecond))
	fmt.Printf("loads:          %d (%.1f/s)\n", stats.TotalLoads, float64(stats.TotalLoads)/elapsed.Seconds())
	fmt.Printf("succeeded:      %d (%.2f%%)\n", stats.SuccessfulLoads, stats.SuccessRate()*100)
	fmt.Printf("failed:         %d\n", stats.FailedLoads)
	fmt.Printf("retries:        %d\n", stats.RetryAttempts)
	fmt.Printf("cache hits:     %d (%.2f%% hit rate)\n", stats.CacheHits, stats.CacheHitRate()*100)
}

// producer builds a synthetic chunk producer with the scenario's latency
// and failure characteristics. Each producer gets its own seed so
// concurrent invocations don't share rand state.
func producer(seed int64, scn scenario) lazyload.Producer[[]byte] {
	return func(ctx context.Context) ([]byte, error) {
		r := rand.New(rand.NewSource(seed))
		lat := scn.MinLatency
		if d := scn.MaxLatency - scn.MinLatency; d > 0 {
			lat += time.Duration(r.Int63n(int64(d)))
		}
		select {
		case <-time.After(lat):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		if r.Float64() < scn.ErrRate {
			return nil, fmt.Errorf("synthetic failure: connection refused")
		}
		return []byte("chunk-payload"), nil
	}
}

func parseNetworkClass(s string) lazyload.NetworkClass {
	switch s {
	case "slow":
		return lazyload.NetworkSlow
	case "medium":
		return lazyload.NetworkMedium
	default:
		return lazyload.NetworkFast
	}
}
