package lazyload

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"sync"
	"sync/atomic"

	"github.com/benbjohnson/clock"
	"github.com/hashicorp/go-multierror"

	"github.com/Meta-Boltz/metamon-sub008/internal/flight"
	"github.com/Meta-Boltz/metamon-sub008/internal/queue"
	"github.com/Meta-Boltz/metamon-sub008/internal/util"
	"github.com/Meta-Boltz/metamon-sub008/store"
)

// engine is the load coordinator plus the speculative scheduler.
// The cache and the in-flight group are the only shared mutable state of
// the load path; both are touched exclusively through Load, which keeps
// the check-cache → check-in-flight → start-load transition atomic per
// key (see flight.Group).
type engine[V any] struct {
	opt Options[V]
	log *slog.Logger
	clk clock.Clock
	met Metrics

	cache   *store.Store[V]
	flights flight.Group[V]
	gate    *gate
	delays  *backoff

	// Speculative scheduling state (scheduler.go).
	schedMu sync.Mutex
	sched   ScheduleConfig
	q       *queue.Queue[Producer[V]]
	intents map[string]Producer[V]
	wake    chan struct{}
	workers sync.WaitGroup
	root    context.Context
	stop    context.CancelFunc

	closed atomic.Bool

	// ---- cumulative counters (separate cache lines) ----
	_         util.CacheLinePad
	total     util.PaddedAtomicUint64
	succeeded util.PaddedAtomicUint64
	failed    util.PaddedAtomicUint64
	hits      util.PaddedAtomicUint64
	retries   util.PaddedAtomicUint64
}

// New constructs an engine with the provided Options and starts its
// speculative worker pool. Call Destroy to release it.
func New[V any](opt Options[V]) Loader[V] {
	opt = opt.withDefaults()

	e := &engine[V]{
		opt:     opt,
		log:     opt.Logger,
		clk:     opt.Clock,
		met:     opt.Metrics,
		cache:   store.New[V](opt.Shards),
		gate:    newGate(opt.MaxConcurrentLoads),
		delays:  newBackoff(opt.BaseDelay, opt.MaxDelay, opt.Factor, opt.Jitter),
		q:       queue.New[Producer[V]](opt.QueueLimit),
		intents: make(map[string]Producer[V]),
		wake:    make(chan struct{}, opt.MaxConcurrentLoads),
		sched: ScheduleConfig{
			MaxConcurrentLoads: opt.MaxConcurrentLoads,
			EnablePreload:      !opt.DisablePreloading,
			EnablePrefetch:     !opt.DisablePrefetching,
		},
	}
	e.root, e.stop = context.WithCancel(context.Background())

	for i := 0; i < opt.MaxConcurrentLoads; i++ {
		e.workers.Add(1)
		go e.worker()
	}
	return e
}

// Load implements Loader.
func (e *engine[V]) Load(ctx context.Context, key string, producer Producer[V], opts ...LoadOption) (V, error) {
	var zero V
	if e.closed.Load() {
		return zero, ErrClosed
	}
	if producer == nil {
		return zero, errors.New("lazyload: nil producer")
	}

	cfg := loadConfig{
		timeout:    e.opt.ChunkTimeout,
		maxRetries: e.opt.MaxRetries,
		strategy:   e.opt.RetryStrategy,
	}
	for _, o := range opts {
		o(&cfg)
	}

	// Fast path: cache hit is not a load.
	if v, ok := e.cache.Get(key); ok {
		e.hits.Add(1)
		e.met.CacheHit()
		return v, nil
	}
	e.met.CacheMiss()

	f, leader := e.flights.Join(key)
	if !leader {
		return f.Wait(ctx)
	}

	// Another leader may have committed between the cache check and the
	// flight election; don't run the producer again.
	if ent, ok := e.cache.Entry(key); ok {
		e.flights.Finish(f, ent.Value, nil, nil)
		e.hits.Add(1)
		e.met.CacheHit()
		return ent.Value, nil
	}

	// The caller's cancellation is shared with every subscriber.
	unlink := context.AfterFunc(ctx, f.Cancel)
	defer unlink()

	e.total.Add(1)
	e.met.LoadStarted()
	start := e.clk.Now()

	v, err := e.run(f, key, producer, cfg)
	if err != nil {
		e.flights.Finish(f, zero, err, nil)
		e.failed.Add(1)
		if le, ok := AsLoadError(err); ok {
			e.met.LoadFailed(le.Kind.String())
		} else {
			e.met.LoadFailed("unknown")
		}
		return zero, err
	}

	// The cache write and the in-flight removal commit together, so the
	// key is never observed as both cached and in flight, and never as
	// neither while a result exists.
	e.flights.Finish(f, v, nil, func() { e.cache.Put(key, v) })
	e.succeeded.Add(1)
	e.met.LoadSucceeded(e.clk.Since(start))
	return v, nil
}

// run executes the attempt loop for one load. Attempts are strictly
// sequential; the loop exits on success, a non-retryable failure, retry
// exhaustion, or shared cancellation.
func (e *engine[V]) run(f *flight.Flight[V], key string, producer Producer[V], cfg loadConfig) (V, error) {
	fctx := f.Context()
	var zero V
	var attemptErrs *multierror.Error
	maxAttempts := cfg.maxRetries + 1

	for attempt := 1; ; attempt++ {
		v, err := e.attempt(fctx, producer, cfg)
		if err == nil {
			if verr := e.validate(v); verr != nil {
				return zero, &LoadError{Key: key, Kind: KindInvalidResult, Attempt: attempt, Err: verr}
			}
			return v, nil
		}
		attemptErrs = multierror.Append(attemptErrs, fmt.Errorf("attempt %d: %w", attempt, err))

		kind := classifyKind(err)
		if fctx.Err() != nil {
			// Shared cancellation wins: an abort while retries remain
			// never triggers a retry.
			kind = KindAborted
		}
		if !kind.Retryable() || attempt >= maxAttempts {
			cause := err
			if attempt > 1 {
				cause = attemptErrs.ErrorOrNil()
			}
			return zero, &LoadError{Key: key, Kind: kind, Attempt: attempt, Err: cause}
		}

		delay := e.delays.Delay(attempt, cfg.strategy)
		e.retries.Add(1)
		e.met.RetryScheduled(kind.String())
		e.log.Debug("retrying load",
			"key", key, "attempt", attempt, "kind", kind.String(), "delay", delay, "error", err)

		if delay > 0 {
			t := e.clk.Timer(delay)
			select {
			case <-t.C:
			case <-fctx.Done():
				t.Stop()
				return zero, &LoadError{Key: key, Kind: KindAborted, Attempt: attempt, Err: attemptErrs.ErrorOrNil()}
			}
		}
	}
}

// attempt runs the producer once under the concurrency gate, racing it
// against the per-attempt deadline.
func (e *engine[V]) attempt(fctx context.Context, producer Producer[V], cfg loadConfig) (V, error) {
	var zero V

	// The gate covers only the producer invocation, never backoff
	// sleeps, so a retrying load doesn't starve the budget.
	if err := e.gate.acquire(fctx); err != nil {
		return zero, err
	}
	defer e.gate.release()

	actx := fctx
	cancel := context.CancelFunc(func() {})
	if cfg.timeout > 0 {
		actx, cancel = e.clk.WithTimeout(fctx, cfg.timeout)
	}
	defer cancel()

	type result struct {
		v   V
		err error
	}
	ch := make(chan result, 1)
	go func() {
		// A panicking producer must not strand the key as permanently
		// in flight (or crash the process from this goroutine); it
		// surfaces as a non-retryable error instead.
		defer func() {
			if r := recover(); r != nil {
				ch <- result{err: fmt.Errorf("%w: %v", errProducerPanic, r)}
			}
		}()
		v, err := producer(actx)
		ch <- result{v, err}
	}()

	select {
	case r := <-ch:
		return r.v, r.err
	case <-actx.Done():
		// Best effort: a producer that ignores ctx is detached here and
		// its late result discarded.
		return zero, actx.Err()
	}
}

// validate applies the configured structural check, defaulting to a
// nil-ish rejection: a loaded resource must at least exist.
func (e *engine[V]) validate(v V) error {
	if e.opt.Validate != nil {
		return e.opt.Validate(v)
	}
	rv := reflect.ValueOf(v)
	if !rv.IsValid() {
		return errNilResource
	}
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		if rv.IsNil() {
			return errNilResource
		}
	}
	return nil
}

// Stats implements Loader.
func (e *engine[V]) Stats() Stats {
	return Stats{
		TotalLoads:      e.total.Load(),
		SuccessfulLoads: e.succeeded.Load(),
		FailedLoads:     e.failed.Load(),
		CacheHits:       e.hits.Load(),
		RetryAttempts:   e.retries.Load(),
	}
}

// ClearCache implements Loader.
func (e *engine[V]) ClearCache() {
	e.cache.Clear()
}

// Destroy implements Loader. It is idempotent.
func (e *engine[V]) Destroy() {
	if !e.closed.CompareAndSwap(false, true) {
		return
	}
	e.stop()
	dropped := e.q.Drain()
	e.met.QueueDepth(0)
	e.gate.close()
	e.workers.Wait()

	e.schedMu.Lock()
	e.intents = nil
	e.schedMu.Unlock()

	if dropped > 0 {
		e.log.Debug("dropped queued speculative loads", "count", dropped)
	}
}
