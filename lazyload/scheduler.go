package lazyload

import (
	"github.com/Meta-Boltz/metamon-sub008/internal/queue"
)

// Speculative scheduling: preload/prefetch entry points, the external
// signal handlers, and the worker pool draining the queue into Load.

// Preload implements Loader.
func (e *engine[V]) Preload(key string, producer Producer[V], pri Priority) {
	if e.closed.Load() || producer == nil {
		return
	}
	// Already available, running, or queued: nothing to schedule.
	if e.cache.Has(key) || e.flights.InFlight(key) || e.q.Contains(key) {
		return
	}

	dropped, shed := e.q.Push(queue.Item[Producer[V]]{
		Key:        key,
		Val:        producer,
		Rank:       int(pri), // Priority and queue ranks share numbering
		EnqueuedAt: e.clk.Now(),
	})
	if shed {
		e.log.Debug("speculative backlog full, shed oldest", "dropped", dropped.Key, "for", key)
	}
	e.met.QueueDepth(e.q.Len())
	e.kick(1)
}

// Prefetch implements Loader. It only records intent; the producer runs
// when a visibility or idle signal promotes the key to a preload.
func (e *engine[V]) Prefetch(key string, producer Producer[V]) {
	if e.closed.Load() || producer == nil || e.cache.Has(key) {
		return
	}
	e.schedMu.Lock()
	if !e.sched.EnablePrefetch || e.intents == nil {
		e.schedMu.Unlock()
		return
	}
	e.intents[key] = producer
	hint := e.opt.PrefetchHint
	e.schedMu.Unlock()

	if hint != nil {
		hint(key)
	}
}

// OnVisible implements Loader. Promotion bypasses the preload-enabled
// check: an element entering the viewport signals imminent need.
func (e *engine[V]) OnVisible(key string) {
	if e.closed.Load() {
		return
	}
	if e.q.Promote(key) {
		e.kick(1)
		return
	}

	e.schedMu.Lock()
	producer, ok := e.intents[key]
	if ok {
		delete(e.intents, key)
	}
	e.schedMu.Unlock()
	if !ok {
		return
	}

	e.q.Push(queue.Item[Producer[V]]{
		Key:        key,
		Val:        producer,
		Rank:       queue.RankHigh,
		EnqueuedAt: e.clk.Now(),
		Urgent:     true,
	})
	e.met.QueueDepth(e.q.Len())
	e.kick(1)
}

// OnIdle implements Loader.
func (e *engine[V]) OnIdle() {
	if e.closed.Load() {
		return
	}
	budget := e.Schedule().MaxConcurrentLoads
	if n := e.q.PromoteOldest(budget); n > 0 {
		e.kick(n)
	}
}

// SetNetworkClass implements Loader.
func (e *engine[V]) SetNetworkClass(c NetworkClass) {
	if e.closed.Load() {
		return
	}

	var cfg ScheduleConfig
	switch c {
	case NetworkSlow:
		cfg = ScheduleConfig{MaxConcurrentLoads: 1}
	case NetworkMedium:
		cfg = ScheduleConfig{MaxConcurrentLoads: 2, EnablePreload: true}
	default:
		cfg = ScheduleConfig{MaxConcurrentLoads: 3, EnablePreload: true, EnablePrefetch: true}
	}
	if cfg.MaxConcurrentLoads > e.opt.MaxConcurrentLoads {
		cfg.MaxConcurrentLoads = e.opt.MaxConcurrentLoads
	}
	// Constructor-level disables stay authoritative.
	cfg.EnablePreload = cfg.EnablePreload && !e.opt.DisablePreloading
	cfg.EnablePrefetch = cfg.EnablePrefetch && !e.opt.DisablePrefetching

	e.schedMu.Lock()
	e.sched = cfg
	e.schedMu.Unlock()

	e.gate.resize(cfg.MaxConcurrentLoads)
	e.log.Debug("network class changed",
		"class", c.String(),
		"concurrency", cfg.MaxConcurrentLoads,
		"preload", cfg.EnablePreload,
		"prefetch", cfg.EnablePrefetch)
	e.kick(cfg.MaxConcurrentLoads)
}

// Schedule implements Loader.
func (e *engine[V]) Schedule() ScheduleConfig {
	e.schedMu.Lock()
	defer e.schedMu.Unlock()
	return e.sched
}

// kick wakes up to n idle workers without blocking.
func (e *engine[V]) kick(n int) {
	for i := 0; i < n; i++ {
		select {
		case e.wake <- struct{}{}:
		default:
			return
		}
	}
}

// worker drains the speculative queue into the load path until the
// engine is destroyed. The concurrency gate inside Load is the true
// bound on producer parallelism; workers merely provide the goroutines.
func (e *engine[V]) worker() {
	defer e.workers.Done()
	for {
		select {
		case <-e.root.Done():
			return
		case <-e.wake:
		}
		for {
			it, ok := e.nextQueued()
			if !ok {
				break
			}
			e.met.QueueDepth(e.q.Len())
			e.runSpeculative(it)
			if e.root.Err() != nil {
				return
			}
		}
	}
}

// nextQueued pops the next runnable item. While preloading is disabled
// only urgent (signal-promoted) items run; the rest stay queued for a
// later network-class upgrade.
func (e *engine[V]) nextQueued() (queue.Item[Producer[V]], bool) {
	e.schedMu.Lock()
	enabled := e.sched.EnablePreload
	e.schedMu.Unlock()

	if enabled {
		return e.q.Pop()
	}
	return e.q.PopWhere(func(it queue.Item[Producer[V]]) bool { return it.Urgent })
}

// runSpeculative executes one queued item. Failures are logged and
// counted, never surfaced; a failed speculative load leaves no cache or
// in-flight residue, so a later caller-initiated Load starts clean.
func (e *engine[V]) runSpeculative(it queue.Item[Producer[V]]) {
	if _, err := e.Load(e.root, it.Key, it.Val); err != nil && e.root.Err() == nil {
		e.log.Warn("speculative load failed", "key", it.Key, "error", err)
	}
}
