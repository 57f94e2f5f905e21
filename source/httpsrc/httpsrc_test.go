package httpsrc

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Meta-Boltz/metamon-sub008/lazyload"
)

func TestNew_RejectsBadURLs(t *testing.T) {
	t.Parallel()

	_, err := New("ftp://example.com/chunks", nil)
	require.Error(t, err)
	_, err = New("://nope", nil)
	require.Error(t, err)
	_, err = New("https://example.com/chunks", nil)
	require.NoError(t, err)
}

func TestProducer_FetchesBody(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/chunks/app.js", r.URL.Path)
		require.Equal(t, "token", r.Header.Get("X-Auth"))
		w.Write([]byte("payload"))
	}))
	t.Cleanup(srv.Close)

	s, err := New(srv.URL+"/chunks", nil)
	require.NoError(t, err)
	s.AddHeader("X-Auth", "token")

	body, err := s.Producer("app.js")(context.Background())
	require.NoError(t, err)
	require.Equal(t, []byte("payload"), body)
}

func TestProducer_StatusClassification(t *testing.T) {
	t.Parallel()

	var status atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(int(status.Load()))
	}))
	t.Cleanup(srv.Close)

	s, err := New(srv.URL, nil)
	require.NoError(t, err)
	producer := s.Producer("chunk.js")

	// Permanent client errors must not be retried.
	status.Store(http.StatusNotFound)
	_, err = producer(context.Background())
	require.ErrorIs(t, err, lazyload.ErrMalformed)
	le := lazyload.Classify("chunk.js", 1, err)
	require.Equal(t, lazyload.KindParse, le.Kind)
	require.False(t, le.Retryable())

	// Server errors stay retryable.
	status.Store(http.StatusInternalServerError)
	_, err = producer(context.Background())
	require.Error(t, err)
	require.NotErrorIs(t, err, lazyload.ErrMalformed)
	require.True(t, lazyload.Classify("chunk.js", 1, err).Retryable())

	// 408 and 429 are transient despite being 4xx.
	for _, code := range []int{http.StatusRequestTimeout, http.StatusTooManyRequests} {
		status.Store(int64(code))
		_, err = producer(context.Background())
		require.Error(t, err)
		require.NotErrorIs(t, err, lazyload.ErrMalformed, "status %d", code)
	}
}

func TestProducer_HonorsContext(t *testing.T) {
	t.Parallel()

	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-block
	}))
	t.Cleanup(srv.Close)
	t.Cleanup(func() { close(block) })

	s, err := New(srv.URL, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = s.Producer("slow.js")(ctx)
	require.Error(t, err)
	require.Equal(t, lazyload.KindTimeout, lazyload.Classify("slow.js", 1, err).Kind)
}

func TestHint_SendsHead(t *testing.T) {
	t.Parallel()

	got := make(chan *http.Request, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case got <- r.Clone(context.Background()):
		default:
		}
	}))
	t.Cleanup(srv.Close)

	s, err := New(srv.URL+"/chunks", nil)
	require.NoError(t, err)
	s.AddHeader("X-Auth", "token")

	s.Hint("app.js")
	select {
	case r := <-got:
		require.Equal(t, http.MethodHead, r.Method)
		require.Equal(t, "/chunks/app.js", r.URL.Path)
		require.Equal(t, "token", r.Header.Get("X-Auth"))
	case <-time.After(2 * time.Second):
		t.Fatal("hint never reached the server")
	}
}

// End to end with the engine: producers from this source load, cache,
// and classify through the full pipeline.
func TestSource_WithEngine(t *testing.T) {
	t.Parallel()

	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Write([]byte("chunk body"))
	}))
	t.Cleanup(srv.Close)

	s, err := New(srv.URL, nil)
	require.NoError(t, err)

	e := lazyload.New[[]byte](lazyload.Options[[]byte]{PrefetchHint: s.Hint})
	t.Cleanup(e.Destroy)

	for i := 0; i < 3; i++ {
		body, err := e.Load(context.Background(), "app.js", s.Producer("app.js"))
		require.NoError(t, err)
		require.Equal(t, []byte("chunk body"), body)
	}
	require.EqualValues(t, 1, hits.Load(), "cached chunk must fetch once")
	require.EqualValues(t, 2, e.Stats().CacheHits)
}
