// Package flight tracks in-flight resource loads. It guarantees that at
// most one load per key runs at a time: the first caller for a key becomes
// the leader and runs the work, later callers join as subscribers and wait
// for the shared result.
//
// It differs from a classic singleflight group in two ways the loading
// engine needs:
//
//   - Each flight carries its own cancellable context. Cancellation is
//     shared: cancelling a flight settles every subscriber at once, there
//     is no partial cancellation.
//   - Subscriber counts are tracked, and the in-flight marker is removed
//     atomically with an optional commit callback (the cache write), so a
//     key is never observed as cached and in-flight simultaneously.
package flight

import (
	"context"
	"sync"
	"sync/atomic"
)

// Group coalesces concurrent loads per key.
// The zero value is ready to use.
type Group[V any] struct {
	mu sync.Mutex
	m  map[string]*Flight[V]
}

// Flight is a single in-flight load. It exists from the moment the leader
// is elected until Finish publishes a result; the group removes the
// marker before waiters observe the settled flight.
type Flight[V any] struct {
	key    string
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{} // closed when val/err are published
	val    V
	err    error
	subs   atomic.Int64
}

// Key returns the resource key this flight is loading.
func (f *Flight[V]) Key() string { return f.key }

// Context returns the flight's context. The leader must run the producer
// under it so a shared cancellation reaches the work in progress.
func (f *Flight[V]) Context() context.Context { return f.ctx }

// Cancel aborts the flight for all subscribers.
func (f *Flight[V]) Cancel() { f.cancel() }

// Subscribers returns the number of callers currently waiting on the
// flight (the leader included). It only reaches zero after the flight
// settles and every waiter has returned.
func (f *Flight[V]) Subscribers() int64 { return f.subs.Load() }

// Wait blocks until the flight settles or ctx is done. Because
// cancellation is shared, a ctx expiry cancels the whole flight; the
// waiter still returns only after the leader has settled it, so the
// result is identical for every subscriber.
func (f *Flight[V]) Wait(ctx context.Context) (V, error) {
	defer f.subs.Add(-1)
	select {
	case <-f.done:
	case <-ctx.Done():
		f.cancel()
		<-f.done
	}
	return f.val, f.err
}

// Join returns the flight for key, electing the caller as leader when no
// flight exists. Followers are registered as subscribers and must call
// Wait exactly once; the leader must call Finish exactly once.
func (g *Group[V]) Join(key string) (f *Flight[V], leader bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.m == nil {
		g.m = make(map[string]*Flight[V])
	}
	if f, ok := g.m[key]; ok {
		f.subs.Add(1)
		return f, false
	}
	ctx, cancel := context.WithCancel(context.Background())
	f = &Flight[V]{key: key, ctx: ctx, cancel: cancel, done: make(chan struct{})}
	f.subs.Add(1)
	g.m[key] = f
	return f, true
}

// Finish publishes (v, err) and removes the in-flight marker. When commit
// is non-nil it runs under the group lock before the marker is removed:
// a successful load's cache write goes here, so no concurrent Join can
// observe the key as neither cached nor in-flight and start a duplicate
// load, and no caller can see it as both.
func (g *Group[V]) Finish(f *Flight[V], v V, err error, commit func()) {
	f.val, f.err = v, err

	g.mu.Lock()
	if commit != nil {
		commit()
	}
	delete(g.m, f.key)
	g.mu.Unlock()

	close(f.done)
	f.cancel() // release the context's resources
	f.subs.Add(-1)
}

// Subscribers returns the subscriber count of the in-flight load for
// key, or 0 when none is running.
func (g *Group[V]) Subscribers(key string) int64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	if f, ok := g.m[key]; ok {
		return f.subs.Load()
	}
	return 0
}

// InFlight reports whether a load for key is currently running.
func (g *Group[V]) InFlight(key string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.m[key]
	return ok
}

// Len returns the number of in-flight loads.
func (g *Group[V]) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.m)
}
