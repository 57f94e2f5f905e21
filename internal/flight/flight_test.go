package flight

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestGroup_LeaderElection(t *testing.T) {
	t.Parallel()

	var g Group[string]
	f, leader := g.Join("k")
	if !leader {
		t.Fatal("first caller must lead")
	}
	if _, leader := g.Join("k"); leader {
		t.Fatal("second caller must follow")
	}
	if !g.InFlight("k") || g.Len() != 1 {
		t.Fatalf("inflight=%v len=%d", g.InFlight("k"), g.Len())
	}
	if got := g.Subscribers("k"); got != 2 {
		t.Fatalf("subscribers=%d", got)
	}
	_ = f
}

func TestGroup_SharedResult(t *testing.T) {
	t.Parallel()

	var g Group[string]
	f, _ := g.Join("k")

	const followers = 8
	results := make(chan string, followers)
	var wg sync.WaitGroup
	for i := 0; i < followers; i++ {
		ff, leader := g.Join("k")
		if leader {
			t.Fatal("no follower may lead")
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := ff.Wait(context.Background())
			if err != nil {
				t.Errorf("wait: %v", err)
				return
			}
			results <- v
		}()
	}

	g.Finish(f, "v", nil, nil)
	wg.Wait()
	close(results)
	for v := range results {
		if v != "v" {
			t.Fatalf("follower saw %q", v)
		}
	}

	if g.InFlight("k") {
		t.Fatal("settled flight must be removed")
	}
	if got := f.Subscribers(); got != 0 {
		t.Fatalf("settled flight keeps %d subscribers", got)
	}
}

func TestGroup_FinishCommitOrdering(t *testing.T) {
	t.Parallel()

	var g Group[int]
	f, _ := g.Join("k")

	// At commit time the marker must still be present, so a concurrent
	// Join between the commit and the removal is impossible.
	g.Finish(f, 42, nil, func() {
		if !g.mLockedHas("k") {
			t.Error("commit must run before the marker is removed")
		}
	})
	if g.InFlight("k") {
		t.Fatal("marker must be gone after finish")
	}
}

// mLockedHas reads the map without locking; only safe from inside a
// commit callback, which already holds the group lock.
func (g *Group[V]) mLockedHas(key string) bool {
	_, ok := g.m[key]
	return ok
}

func TestFlight_WaitCancelIsShared(t *testing.T) {
	t.Parallel()

	var g Group[string]
	f, _ := g.Join("k")
	ff, _ := g.Join("k")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := ff.Wait(ctx)
		done <- err
	}()

	cancel()

	// The follower's expiry cancels the flight context the leader runs
	// under; the leader then settles it and the follower returns the
	// settled error.
	select {
	case <-f.Context().Done():
	case <-time.After(time.Second):
		t.Fatal("flight context must be cancelled by a waiter expiry")
	}

	sentinel := errors.New("aborted")
	g.Finish(f, "", sentinel, nil)

	select {
	case err := <-done:
		if !errors.Is(err, sentinel) {
			t.Fatalf("follower must see the settled error, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("follower did not return after settle")
	}
}

func TestGroup_KeysAreIndependent(t *testing.T) {
	t.Parallel()

	var g Group[int]
	fa, la := g.Join("a")
	_, lb := g.Join("b")
	if !la || !lb {
		t.Fatal("distinct keys elect distinct leaders")
	}
	fa.Cancel()
	if g.Len() != 2 {
		t.Fatal("cancelling one flight must not touch another")
	}
	g.Finish(fa, 0, context.Canceled, nil)
	if g.InFlight("a") || !g.InFlight("b") {
		t.Fatal("finish must remove only its own key")
	}
}

func TestGroup_RejoinAfterFinish(t *testing.T) {
	t.Parallel()

	var g Group[int]
	f, _ := g.Join("k")
	g.Finish(f, 1, nil, nil)

	f2, leader := g.Join("k")
	if !leader {
		t.Fatal("a settled key must elect a fresh leader")
	}
	if f2 == f {
		t.Fatal("rejoin must create a new flight")
	}
	g.Finish(f2, 2, nil, nil)
}
