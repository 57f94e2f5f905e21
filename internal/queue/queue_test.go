package queue

import (
	"strconv"
	"testing"
)

func push(q *Queue[int], key string, rank int) (Item[int], bool) {
	return q.Push(Item[int]{Key: key, Rank: rank})
}

func TestQueue_TierOrdering(t *testing.T) {
	t.Parallel()

	q := New[int](0)
	push(q, "low-1", RankLow)
	push(q, "high-1", RankHigh)
	push(q, "norm-1", RankNormal)
	push(q, "high-2", RankHigh)
	push(q, "low-2", RankLow)

	want := []string{"high-1", "high-2", "norm-1", "low-1", "low-2"}
	for _, k := range want {
		it, ok := q.Pop()
		if !ok || it.Key != k {
			t.Fatalf("want %q, got %q ok=%v", k, it.Key, ok)
		}
	}
	if _, ok := q.Pop(); ok {
		t.Fatal("drained queue must report empty")
	}
}

func TestQueue_RankClamping(t *testing.T) {
	t.Parallel()

	q := New[int](0)
	push(q, "below", -3)
	push(q, "above", 99)

	it, _ := q.Pop()
	if it.Key != "above" || it.Rank != RankHigh {
		t.Fatalf("out-of-range rank must clamp high, got %+v", it)
	}
	it, _ = q.Pop()
	if it.Key != "below" || it.Rank != RankLow {
		t.Fatalf("out-of-range rank must clamp low, got %+v", it)
	}
}

func TestQueue_ShedsOldestLowFirst(t *testing.T) {
	t.Parallel()

	q := New[int](3)
	push(q, "low-old", RankLow)
	push(q, "low-new", RankLow)
	push(q, "high", RankHigh)

	dropped, shed := push(q, "norm", RankNormal)
	if !shed || dropped.Key != "low-old" {
		t.Fatalf("full queue must shed the oldest low item, got %q shed=%v", dropped.Key, shed)
	}
	if q.Len() != 3 {
		t.Fatalf("len=%d", q.Len())
	}

	// With no low items left, the lowest non-empty tier sheds.
	q.Remove("low-new")
	push(q, "norm-2", RankNormal)
	dropped, shed = push(q, "high-2", RankHigh)
	if !shed || dropped.Key != "norm" {
		t.Fatalf("want %q shed, got %q shed=%v", "norm", dropped.Key, shed)
	}
}

func TestQueue_PopWhere(t *testing.T) {
	t.Parallel()

	q := New[int](0)
	q.Push(Item[int]{Key: "a", Rank: RankLow})
	q.Push(Item[int]{Key: "b", Rank: RankLow, Urgent: true})
	q.Push(Item[int]{Key: "c", Rank: RankLow, Urgent: true})

	urgent := func(it Item[int]) bool { return it.Urgent }
	it, ok := q.PopWhere(urgent)
	if !ok || it.Key != "b" {
		t.Fatalf("want oldest matching %q, got %q", "b", it.Key)
	}
	it, ok = q.PopWhere(urgent)
	if !ok || it.Key != "c" {
		t.Fatalf("want %q, got %q", "c", it.Key)
	}
	if _, ok := q.PopWhere(urgent); ok {
		t.Fatal("no urgent items left")
	}
	if !q.Contains("a") {
		t.Fatal("non-matching item must stay queued")
	}
}

func TestQueue_Promote(t *testing.T) {
	t.Parallel()

	q := New[int](0)
	push(q, "a", RankLow)
	push(q, "b", RankHigh)

	if !q.Promote("a") {
		t.Fatal("promote of a queued key must succeed")
	}
	if q.Promote("missing") {
		t.Fatal("promote of an absent key must fail")
	}

	// Promotion appends to the high tier behind existing high items.
	it, _ := q.Pop()
	if it.Key != "b" {
		t.Fatalf("want %q first, got %q", "b", it.Key)
	}
	it, _ = q.Pop()
	if it.Key != "a" || !it.Urgent || it.Rank != RankHigh {
		t.Fatalf("promoted item wrong: %+v", it)
	}
}

func TestQueue_PromoteOldest(t *testing.T) {
	t.Parallel()

	q := New[int](0)
	push(q, "h", RankHigh)
	push(q, "n", RankNormal)
	push(q, "l", RankLow)

	if got := q.PromoteOldest(2); got != 2 {
		t.Fatalf("promoted %d, want 2", got)
	}
	urgent := func(it Item[int]) bool { return it.Urgent }
	a, _ := q.PopWhere(urgent)
	b, _ := q.PopWhere(urgent)
	if a.Key != "h" || b.Key != "n" {
		t.Fatalf("highest tiers promote first, got %q %q", a.Key, b.Key)
	}

	// Already-urgent items don't count against the budget.
	push(q, "h2", RankHigh)
	q.PromoteOldest(1)
	if got := q.PromoteOldest(1); got != 1 {
		t.Fatalf("want 1 fresh promotion, got %d", got)
	}
}

func TestQueue_RemoveContainsDrain(t *testing.T) {
	t.Parallel()

	q := New[int](0)
	for i := 0; i < 5; i++ {
		push(q, strconv.Itoa(i), i%numRanks)
	}
	if !q.Contains("3") || q.Contains("9") {
		t.Fatal("contains mismatch")
	}
	if !q.Remove("3") || q.Remove("3") {
		t.Fatal("remove must succeed once")
	}
	if got := q.Drain(); got != 4 {
		t.Fatalf("drain returned %d, want 4", got)
	}
	if q.Len() != 0 {
		t.Fatalf("len=%d after drain", q.Len())
	}
}

func TestQueue_Unbounded(t *testing.T) {
	t.Parallel()

	q := New[int](0)
	for i := 0; i < 10_000; i++ {
		if _, shed := push(q, strconv.Itoa(i), RankLow); shed {
			t.Fatal("unbounded queue must never shed")
		}
	}
	if q.Len() != 10_000 {
		t.Fatalf("len=%d", q.Len())
	}
}
