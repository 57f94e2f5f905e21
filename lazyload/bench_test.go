package lazyload

import (
	"context"
	"io"
	"log/slog"
	"strconv"
	"testing"
)

// The hit path is the hot path: after warmup every Load resolves from
// the cache without touching the flight group.
func BenchmarkLoad_Hit(b *testing.B) {
	e := New[string](Options[string]{
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	b.Cleanup(e.Destroy)

	producer := func(ctx context.Context) (string, error) { return "v", nil }
	keys := make([]string, 1<<10)
	for i := range keys {
		keys[i] = "k:" + strconv.Itoa(i)
		if _, err := e.Load(context.Background(), keys[i], producer); err != nil {
			b.Fatal(err)
		}
	}

	b.ReportAllocs()
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		i := 0
		for pb.Next() {
			e.Load(context.Background(), keys[i&(len(keys)-1)], producer)
			i++
		}
	})
}

// Cold loads on distinct keys measure the full Join/run/commit path.
func BenchmarkLoad_Miss(b *testing.B) {
	e := New[string](Options[string]{
		MaxConcurrentLoads: 64,
		Logger:             slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	b.Cleanup(e.Destroy)

	producer := func(ctx context.Context) (string, error) { return "v", nil }

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := e.Load(context.Background(), strconv.Itoa(i), producer); err != nil {
			b.Fatal(err)
		}
	}
}
