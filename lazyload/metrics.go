package lazyload

import "time"

// Metrics exposes engine-level observability hooks.
// A NoopMetrics implementation is provided and used by default.
type Metrics interface {
	CacheHit()
	CacheMiss()
	// LoadStarted fires once per real load (cache hits don't count).
	LoadStarted()
	LoadSucceeded(d time.Duration)
	// LoadFailed fires on terminal failure; kind is the classified
	// ErrorKind label ("network", "timeout", ...).
	LoadFailed(kind string)
	// RetryScheduled fires each time a retry is scheduled, before the
	// backoff sleep.
	RetryScheduled(kind string)
	// QueueDepth reports the speculative backlog after each change.
	QueueDepth(n int)
}

// NoopMetrics is a drop-in Metrics implementation that does nothing.
// It is safe for concurrent use and intended as the default when
// no observability backend is configured.
type NoopMetrics struct{}

func (NoopMetrics) CacheHit()                   {}
func (NoopMetrics) CacheMiss()                  {}
func (NoopMetrics) LoadStarted()                {}
func (NoopMetrics) LoadSucceeded(time.Duration) {}
func (NoopMetrics) LoadFailed(string)           {}
func (NoopMetrics) RetryScheduled(string)       {}
func (NoopMetrics) QueueDepth(int)              {}

// Ensure NoopMetrics implements the Metrics interface at compile time.
var _ Metrics = NoopMetrics{}

// Stats is a read-only snapshot of the engine's cumulative counters.
type Stats struct {
	TotalLoads      uint64
	SuccessfulLoads uint64
	FailedLoads     uint64
	CacheHits       uint64
	RetryAttempts   uint64
}

// SuccessRate returns successfulLoads/totalLoads, or 0 before any load.
func (s Stats) SuccessRate() float64 {
	if s.TotalLoads == 0 {
		return 0
	}
	return float64(s.SuccessfulLoads) / float64(s.TotalLoads)
}

// CacheHitRate returns cacheHits/(totalLoads+cacheHits), or 0 before any
// activity.
func (s Stats) CacheHitRate() float64 {
	den := s.TotalLoads + s.CacheHits
	if den == 0 {
		return 0
	}
	return float64(s.CacheHits) / float64(den)
}
