package lazyload

import (
	"log/slog"
	"time"

	"github.com/benbjohnson/clock"
)

// Default engine parameters, applied by New for zero-valued fields.
const (
	DefaultChunkTimeout       = 30 * time.Second
	DefaultMaxConcurrentLoads = 3
	DefaultMaxRetries         = 3
	DefaultBaseDelay          = 1000 * time.Millisecond
	DefaultMaxDelay           = 30000 * time.Millisecond
	DefaultBackoffFactor      = 2.0
	DefaultJitter             = 0.1
	DefaultQueueLimit         = 1024
)

// Options configures the engine. Zero values are safe; sane defaults are
// applied in New():
//   - nil Metrics   => NoopMetrics
//   - nil Logger    => slog.Default()
//   - nil Clock     => real time
//   - nil Validate  => reject nil-ish values
type Options[V any] struct {
	// ChunkTimeout is the per-attempt producer deadline (default 30s).
	ChunkTimeout time.Duration

	// MaxConcurrentLoads bounds producer invocations active at once
	// across the whole engine (default 3). It is also the ceiling the
	// network-class signal resizes under.
	MaxConcurrentLoads int

	// MaxRetries is the number of retries after the first attempt
	// (default 3). Negative disables retries.
	MaxRetries int

	// RetryStrategy selects the backoff curve (default exponential).
	RetryStrategy Strategy

	// Backoff parameters. Defaults: BaseDelay 1s, MaxDelay 30s,
	// Factor 2, Jitter 0.1. A negative Jitter disables perturbation.
	BaseDelay time.Duration
	MaxDelay  time.Duration
	Factor    float64
	Jitter    float64

	// DisablePreloading / DisablePrefetching turn speculative work off
	// regardless of the network class. Zero value: both enabled (the
	// engine starts in the NetworkFast configuration).
	DisablePreloading  bool
	DisablePrefetching bool

	// QueueLimit caps the speculative backlog (default 1024). Past the
	// cap the oldest low-priority item is shed.
	QueueLimit int

	// Shards sets the cache shard count (0 = auto).
	Shards int

	// Validate decides whether a produced value is structurally usable.
	// An invalid value terminates the load with KindInvalidResult.
	// Nil => reject nil pointers/interfaces/maps/slices/funcs.
	Validate func(V) error

	// PrefetchHint, when set, is called once per accepted Prefetch so a
	// transport layer can warm up (e.g. an HTTP HEAD). Must not block.
	PrefetchHint func(key string)

	// Logger receives retry and speculative-failure diagnostics.
	Logger *slog.Logger

	// Clock allows overriding the time source (tests). Nil => real time.
	Clock clock.Clock

	// Metrics receives engine observability signals.
	Metrics Metrics
}

// withDefaults returns a copy of o with defaults filled in.
func (o Options[V]) withDefaults() Options[V] {
	if o.ChunkTimeout == 0 {
		o.ChunkTimeout = DefaultChunkTimeout
	}
	if o.MaxConcurrentLoads <= 0 {
		o.MaxConcurrentLoads = DefaultMaxConcurrentLoads
	}
	switch {
	case o.MaxRetries < 0:
		o.MaxRetries = 0
	case o.MaxRetries == 0:
		o.MaxRetries = DefaultMaxRetries
	}
	if !o.RetryStrategy.valid() {
		o.RetryStrategy = StrategyExponential
	}
	if o.BaseDelay <= 0 {
		o.BaseDelay = DefaultBaseDelay
	}
	if o.MaxDelay <= 0 {
		o.MaxDelay = DefaultMaxDelay
	}
	if o.Factor <= 0 {
		o.Factor = DefaultBackoffFactor
	}
	switch {
	case o.Jitter < 0:
		o.Jitter = 0
	case o.Jitter == 0:
		o.Jitter = DefaultJitter
	case o.Jitter > 1:
		o.Jitter = 1
	}
	if o.QueueLimit == 0 {
		o.QueueLimit = DefaultQueueLimit
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.Clock == nil {
		o.Clock = clock.New()
	}
	if o.Metrics == nil {
		o.Metrics = NoopMetrics{}
	}
	return o
}
