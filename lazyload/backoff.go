package lazyload

import (
	"math"
	"math/rand"
	"sync"
	"time"
)

// Strategy selects how retry delays grow between attempts.
type Strategy string

const (
	// StrategyExponential: delay = min(base * factor^(attempt-1), max).
	StrategyExponential Strategy = "exponential"
	// StrategyLinear: delay = base * attempt.
	StrategyLinear Strategy = "linear"
	// StrategyNone: delay = base, constant.
	StrategyNone Strategy = "none"
)

func (s Strategy) valid() bool {
	switch s {
	case StrategyExponential, StrategyLinear, StrategyNone:
		return true
	}
	return false
}

// backoff computes retry delays. The computed delay is perturbed by a
// bounded random jitter so synchronized callers don't retry in lockstep.
type backoff struct {
	base   time.Duration
	max    time.Duration
	factor float64
	jitter float64 // 0..1 fraction of the ideal delay

	mu  sync.Mutex
	rng *rand.Rand
}

func newBackoff(base, max time.Duration, factor, jitter float64) *backoff {
	return &backoff{
		base:   base,
		max:    max,
		factor: factor,
		jitter: jitter,
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Delay returns the sleep before retry number attempt (1-based: the delay
// inserted after the attempt-th failure). Delays never exceed max.
func (b *backoff) Delay(attempt int, s Strategy) time.Duration {
	if attempt < 1 {
		attempt = 1
	}

	var d float64
	switch s {
	case StrategyLinear:
		d = float64(b.base) * float64(attempt)
	case StrategyNone:
		d = float64(b.base)
	default:
		d = float64(b.base) * math.Pow(b.factor, float64(attempt-1))
	}
	if d > float64(b.max) {
		d = float64(b.max)
	}

	if b.jitter > 0 {
		b.mu.Lock()
		f := b.rng.Float64()
		b.mu.Unlock()
		d *= 1 + (f*2-1)*b.jitter // uniform in [-jitter, +jitter]
	}
	if d < 0 {
		d = 0
	}
	return time.Duration(d)
}
