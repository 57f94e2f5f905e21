// Package prom exports engine metrics to Prometheus.
package prom

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Meta-Boltz/metamon-sub008/lazyload"
)

// Adapter implements lazyload.Metrics and exports Prometheus counters,
// a histogram, and a gauge. Safe for concurrent use; all Prometheus
// metric types are goroutine-safe.
type Adapter struct {
	cacheHits   prometheus.Counter
	cacheMisses prometheus.Counter
	loads       prometheus.Counter
	failures    *prometheus.CounterVec
	retries     *prometheus.CounterVec
	duration    prometheus.Histogram
	queueDepth  prometheus.Gauge
}

// New constructs a Prometheus metrics adapter.
//   - reg:          registry to register metrics with (nil => prometheus.DefaultRegisterer)
//   - ns, sub:      Prometheus namespace and subsystem
//   - constLabels:  static labels applied to all metrics (may be nil)
func New(reg prometheus.Registerer, ns, sub string, constLabels prometheus.Labels) *Adapter {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	a := &Adapter{
		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "cache_hits_total",
			Help:        "Loads served from the resource cache",
			ConstLabels: constLabels,
		}),
		cacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "cache_misses_total",
			Help:        "Load requests that missed the resource cache",
			ConstLabels: constLabels,
		}),
		loads: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "loads_total",
			Help:        "Producer-backed loads started",
			ConstLabels: constLabels,
		}),
		failures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   ns,
				Subsystem:   sub,
				Name:        "load_failures_total",
				Help:        "Terminal load failures by classified kind",
				ConstLabels: constLabels,
			},
			[]string{"kind"},
		),
		retries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   ns,
				Subsystem:   sub,
				Name:        "retries_total",
				Help:        "Retry attempts scheduled, by classified kind",
				ConstLabels: constLabels,
			},
			[]string{"kind"},
		),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "load_duration_seconds",
			Help:        "Wall time of successful loads (retries included)",
			Buckets:     prometheus.DefBuckets,
			ConstLabels: constLabels,
		}),
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "speculative_queue_depth",
			Help:        "Pending speculative load requests",
			ConstLabels: constLabels,
		}),
	}
	reg.MustRegister(a.cacheHits, a.cacheMisses, a.loads, a.failures, a.retries, a.duration, a.queueDepth)
	return a
}

// CacheHit increments the cache hit counter.
func (a *Adapter) CacheHit() { a.cacheHits.Inc() }

// CacheMiss increments the cache miss counter.
func (a *Adapter) CacheMiss() { a.cacheMisses.Inc() }

// LoadStarted increments the started-loads counter.
func (a *Adapter) LoadStarted() { a.loads.Inc() }

// LoadSucceeded records the duration of a successful load.
func (a *Adapter) LoadSucceeded(d time.Duration) { a.duration.Observe(d.Seconds()) }

// LoadFailed increments the failure counter with a kind label.
func (a *Adapter) LoadFailed(kind string) { a.failures.WithLabelValues(kind).Inc() }

// RetryScheduled increments the retry counter with a kind label.
func (a *Adapter) RetryScheduled(kind string) { a.retries.WithLabelValues(kind).Inc() }

// QueueDepth updates the speculative backlog gauge.
func (a *Adapter) QueueDepth(n int) { a.queueDepth.Set(float64(n)) }

// Compile-time check: ensure Adapter implements lazyload.Metrics.
var _ lazyload.Metrics = (*Adapter)(nil)
