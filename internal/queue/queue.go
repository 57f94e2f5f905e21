// Package queue implements the pending-work queue for speculative loads:
// three priority tiers, FIFO within a tier, with a bounded backlog that
// sheds the oldest low-priority work first.
package queue

import (
	"sync"
	"time"

	"github.com/gammazero/deque"
)

// Priority ranks, lowest to highest. Kept as plain ints so the public
// package can map its own Priority type onto them.
const (
	RankLow = iota
	RankNormal
	RankHigh
	numRanks
)

// Item is one queued speculative load.
type Item[T any] struct {
	Key        string
	Val        T
	Rank       int
	EnqueuedAt time.Time

	// Urgent marks items promoted by a visibility or idle signal.
	// Urgent items may be drained even while preloading is disabled.
	Urgent bool
}

// Queue is a bounded three-tier priority queue. Pop returns the oldest
// item of the highest non-empty tier. Safe for concurrent use.
type Queue[T any] struct {
	mu    sync.Mutex
	tiers [numRanks]deque.Deque[Item[T]]
	max   int
}

// New constructs a queue holding at most max items (max <= 0 = unbounded).
func New[T any](max int) *Queue[T] {
	return &Queue[T]{max: max}
}

// Push enqueues it, clamping out-of-range ranks. When the backlog is
// full, the oldest item of the lowest non-empty tier is dropped to make
// room; the dropped item is returned so the caller can log it.
func (q *Queue[T]) Push(it Item[T]) (dropped Item[T], shed bool) {
	if it.Rank < RankLow {
		it.Rank = RankLow
	}
	if it.Rank >= numRanks {
		it.Rank = RankHigh
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if q.max > 0 && q.lenLocked() >= q.max {
		for r := RankLow; r < numRanks; r++ {
			if q.tiers[r].Len() > 0 {
				dropped = q.tiers[r].PopFront()
				shed = true
				break
			}
		}
	}
	q.tiers[it.Rank].PushBack(it)
	return dropped, shed
}

// Pop removes and returns the oldest item of the highest non-empty tier.
func (q *Queue[T]) Pop() (Item[T], bool) {
	return q.PopWhere(nil)
}

// PopWhere is Pop restricted to items matching the predicate; order is
// preserved among matching items. A nil match accepts everything.
func (q *Queue[T]) PopWhere(match func(Item[T]) bool) (Item[T], bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for r := numRanks - 1; r >= 0; r-- {
		d := &q.tiers[r]
		for i := 0; i < d.Len(); i++ {
			if match == nil || match(d.At(i)) {
				return d.Remove(i), true
			}
		}
	}
	var zero Item[T]
	return zero, false
}

// Promote moves the queued item for key to the high tier and marks it
// urgent. Returns false if key is not queued.
func (q *Queue[T]) Promote(key string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	for r := 0; r < numRanks; r++ {
		d := &q.tiers[r]
		for i := 0; i < d.Len(); i++ {
			if d.At(i).Key == key {
				it := d.Remove(i)
				it.Rank = RankHigh
				it.Urgent = true
				q.tiers[RankHigh].PushBack(it)
				return true
			}
		}
	}
	return false
}

// PromoteOldest marks up to n oldest items (highest tier first) urgent in
// place. Returns the number of items promoted.
func (q *Queue[T]) PromoteOldest(n int) int {
	q.mu.Lock()
	defer q.mu.Unlock()

	promoted := 0
	for r := numRanks - 1; r >= 0 && promoted < n; r-- {
		d := &q.tiers[r]
		for i := 0; i < d.Len() && promoted < n; i++ {
			it := d.At(i)
			if it.Urgent {
				continue
			}
			it.Urgent = true
			d.Set(i, it)
			promoted++
		}
	}
	return promoted
}

// Remove deletes the queued item for key, if any.
func (q *Queue[T]) Remove(key string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	for r := 0; r < numRanks; r++ {
		d := &q.tiers[r]
		for i := 0; i < d.Len(); i++ {
			if d.At(i).Key == key {
				d.Remove(i)
				return true
			}
		}
	}
	return false
}

// Contains reports whether an item for key is queued.
func (q *Queue[T]) Contains(key string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	for r := 0; r < numRanks; r++ {
		d := &q.tiers[r]
		for i := 0; i < d.Len(); i++ {
			if d.At(i).Key == key {
				return true
			}
		}
	}
	return false
}

// Len returns the number of queued items across all tiers.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.lenLocked()
}

// Drain empties the queue and returns how many items were dropped.
func (q *Queue[T]) Drain() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := q.lenLocked()
	for r := range q.tiers {
		q.tiers[r].Clear()
	}
	return n
}

func (q *Queue[T]) lenLocked() int {
	n := 0
	for r := range q.tiers {
		n += q.tiers[r].Len()
	}
	return n
}
