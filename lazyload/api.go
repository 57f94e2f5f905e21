package lazyload

import (
	"context"
	"time"
)

// Producer is a caller-supplied function that produces the resource for
// one key. It must honor ctx cancellation where possible; producers that
// don't are detached on timeout and their late results discarded.
type Producer[V any] func(ctx context.Context) (V, error)

// Priority orders speculative load requests. Within a priority tier,
// requests run in arrival order.
type Priority uint8

const (
	PriorityLow Priority = iota
	PriorityNormal
	PriorityHigh
)

func (p Priority) String() string {
	switch p {
	case PriorityHigh:
		return "high"
	case PriorityNormal:
		return "normal"
	default:
		return "low"
	}
}

// NetworkClass is the conditioning signal for adaptive scheduling.
type NetworkClass uint8

const (
	// NetworkFast enables preload and prefetch at full concurrency.
	NetworkFast NetworkClass = iota
	// NetworkMedium enables preload only, at reduced concurrency.
	NetworkMedium
	// NetworkSlow disables all speculative work and serializes loads.
	NetworkSlow
)

func (c NetworkClass) String() string {
	switch c {
	case NetworkSlow:
		return "slow"
	case NetworkMedium:
		return "medium"
	default:
		return "fast"
	}
}

// ScheduleConfig is the process-wide speculative-scheduling state. It is
// mutated only by the network-class signal handler.
type ScheduleConfig struct {
	// MaxConcurrentLoads bounds producer invocations active at once
	// across the whole engine, not per key.
	MaxConcurrentLoads int
	EnablePreload      bool
	EnablePrefetch     bool
}

// Loader loads named, asynchronously produced resources on demand,
// caches them, deduplicates concurrent requests for the same key, retries
// transient failures, and schedules speculative loads under an adaptive
// concurrency budget. All methods are safe for concurrent use.
type Loader[V any] interface {
	// Load returns the resource for key: the cached value on a hit, the
	// shared result of an in-flight load if one is running, or the
	// outcome of a fresh producer run with classified-error retry.
	// Terminal failures are a *LoadError.
	Load(ctx context.Context, key string, producer Producer[V], opts ...LoadOption) (V, error)

	// Preload enqueues a speculative load at the given priority and
	// returns immediately. Failures are logged and counted, never
	// surfaced, and never affect a later Load for the same key.
	Preload(key string, producer Producer[V], pri Priority)

	// Prefetch records intent to load key, optionally emitting a
	// transport-level hint. It consumes no concurrency slot until a
	// visibility or idle signal promotes it to a preload.
	Prefetch(key string, producer Producer[V])

	// OnVisible promotes the queued or prefetched item for key, even
	// while preloading is disabled: visibility signals imminent need.
	OnVisible(key string)

	// OnIdle promotes queued items up to the current concurrency budget.
	OnIdle()

	// SetNetworkClass resizes the concurrency budget and toggles
	// preload/prefetch according to the class.
	SetNetworkClass(c NetworkClass)

	// Schedule returns the current speculative-scheduling state.
	Schedule() ScheduleConfig

	// Stats returns a snapshot of the engine counters.
	Stats() Stats

	// ClearCache drops every cached resource.
	ClearCache()

	// Destroy stops the worker pool and drops the pending queue.
	// In-flight caller-initiated loads are left to settle.
	Destroy()
}

// LoadOption overrides per-call load parameters.
type LoadOption func(*loadConfig)

type loadConfig struct {
	timeout    time.Duration
	maxRetries int
	strategy   Strategy
}

// WithTimeout overrides the engine's ChunkTimeout for this call.
// A non-positive d disables the attempt deadline.
func WithTimeout(d time.Duration) LoadOption {
	return func(c *loadConfig) { c.timeout = d }
}

// WithMaxRetries overrides the engine's MaxRetries for this call.
// n is the number of retries after the first attempt; 0 disables retries.
func WithMaxRetries(n int) LoadOption {
	return func(c *loadConfig) {
		if n < 0 {
			n = 0
		}
		c.maxRetries = n
	}
}

// WithStrategy overrides the engine's RetryStrategy for this call.
func WithStrategy(s Strategy) LoadOption {
	return func(c *loadConfig) {
		if s.valid() {
			c.strategy = s
		}
	}
}
