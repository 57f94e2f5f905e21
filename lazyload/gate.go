package lazyload

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
)

// gate bounds concurrent producer invocations. It wraps a weighted
// semaphore of fixed capacity and shrinks the effective size by holding
// reserve permits, so the network-class handler can resize the budget
// without disturbing loads already in progress.
type gate struct {
	sem *semaphore.Weighted
	cap int64

	ctx    context.Context // cancelled on engine destroy
	cancel context.CancelFunc

	mu        sync.Mutex
	target    int64 // desired effective permits, 1..cap
	reserved  int64 // permits currently held back
	adjusting bool
}

func newGate(capacity int) *gate {
	ctx, cancel := context.WithCancel(context.Background())
	return &gate{
		sem:    semaphore.NewWeighted(int64(capacity)),
		cap:    int64(capacity),
		ctx:    ctx,
		cancel: cancel,
		target: int64(capacity),
	}
}

// acquire blocks until a permit is free or ctx is done.
func (g *gate) acquire(ctx context.Context) error {
	return g.sem.Acquire(ctx, 1)
}

func (g *gate) release() {
	g.sem.Release(1)
}

// resize sets the effective permit count, clamped to [1, cap]. Shrinking
// waits for in-progress loads to finish before permits disappear; the
// adjustment runs in the background so the signal handler never blocks.
func (g *gate) resize(n int) {
	t := int64(n)
	if t < 1 {
		t = 1
	}
	if t > g.cap {
		t = g.cap
	}

	g.mu.Lock()
	g.target = t
	if !g.adjusting {
		g.adjusting = true
		go g.adjust()
	}
	g.mu.Unlock()
}

// effective returns the current usable permit count.
func (g *gate) effective() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return int(g.cap - g.reserved)
}

func (g *gate) close() {
	g.cancel()
}

func (g *gate) adjust() {
	for {
		g.mu.Lock()
		want := g.cap - g.target
		switch {
		case g.reserved == want:
			g.adjusting = false
			g.mu.Unlock()
			return
		case g.reserved > want:
			g.reserved--
			g.mu.Unlock()
			g.sem.Release(1)
			continue
		}
		g.mu.Unlock()

		if err := g.sem.Acquire(g.ctx, 1); err != nil {
			// Engine destroyed; abandon the adjustment.
			g.mu.Lock()
			g.adjusting = false
			g.mu.Unlock()
			return
		}
		g.mu.Lock()
		g.reserved++
		g.mu.Unlock()
	}
}
