// Package lazyload implements a lazy resource loading engine: named,
// asynchronously produced resources ("chunks") are loaded on demand,
// cached, and deduplicated so that concurrent requests for the same key
// share one producer run. Transient failures are retried with
// classified-error-aware backoff, and speculative (preload/prefetch)
// work is scheduled under a concurrency budget that adapts to network
// conditions and visibility signals.
//
// Design
//
//   - Dedup: the first Load for a key becomes the leader and runs the
//     producer; concurrent callers join the in-flight load and receive
//     the identical settled result. A key is either cached, in flight,
//     or absent — never two at once.
//
//   - Errors: every attempt failure is classified into one of five
//     kinds (network, timeout, parse, invalid_result, aborted).
//     Retryability is a pure function of the kind: network and timeout
//     failures retry transparently, the rest surface immediately.
//     Cancellation always terminates with an aborted error, even while
//     retries remain — it reflects caller intent, not resource
//     unavailability.
//
//   - Backoff: exponential (default), linear, or constant delays with
//     bounded random jitter, capped at MaxDelay.
//
//   - Scheduling: Preload enqueues into a three-tier priority queue
//     drained by a worker pool; a weighted-semaphore gate bounds
//     producer invocations engine-wide. The network-class signal
//     resizes the gate and toggles preload/prefetch; visibility and
//     idle signals promote queued items past a disabled preloader.
//
//   - Metrics: Options.Metrics receives hit/miss/load/retry/queue
//     signals. By default NoopMetrics is used; plug the Prometheus
//     adapter in metrics/prom to export them. Stats() returns a
//     snapshot of the cumulative counters either way.
//
// Basic usage
//
//	eng := lazyload.New[[]byte](lazyload.Options[[]byte]{})
//	defer eng.Destroy()
//
//	v, err := eng.Load(ctx, "widgets/table", func(ctx context.Context) ([]byte, error) {
//	    return fetchChunk(ctx, "widgets/table")
//	})
//
// Speculative loading
//
//	eng.Preload("widgets/chart", chartProducer, lazyload.PriorityNormal)
//	eng.Prefetch("widgets/map", mapProducer) // intent only
//	eng.OnVisible("widgets/map")             // promotes the prefetch
//	eng.SetNetworkClass(lazyload.NetworkSlow) // pauses speculation
//
// Per-call overrides
//
//	v, err := eng.Load(ctx, key, p,
//	    lazyload.WithTimeout(5*time.Second),
//	    lazyload.WithMaxRetries(1),
//	    lazyload.WithStrategy(lazyload.StrategyLinear),
//	)
//
// # Thread-safety
//
// All methods on Loader are safe for concurrent use. Among callers
// joining the same in-flight load, all receive the identical result; no
// caller re-triggers the producer. Across distinct keys no ordering is
// guaranteed, and caller-initiated loads always run ahead of the
// speculative queue.
package lazyload
