// Package httpsrc adapts an HTTP endpoint to the loading engine: it
// builds producers that fetch chunk payloads by relative path, and
// exposes a prefetch hint that warms the transport with a HEAD request.
package httpsrc

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/Meta-Boltz/metamon-sub008/lazyload"
)

const hintTimeout = 5 * time.Second

// Source fetches chunk payloads from a base URL.
type Source struct {
	base   *url.URL
	client *retryablehttp.Client
	header http.Header
}

// New constructs a source for the given base URL. If client is nil a
// default retryablehttp client is used with transport-level retries
// disabled: the engine owns retry policy, and double-retrying beneath it
// would multiply attempts.
func New(baseURL string, client *retryablehttp.Client) (*Source, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("url must have http or https scheme: %s", baseURL)
	}

	if client == nil {
		client = retryablehttp.NewClient()
		client.RetryMax = 0
		client.Logger = nil
	}

	return &Source{
		base:   u,
		client: client,
	}, nil
}

// AddHeader adds a header sent with every request.
func (s *Source) AddHeader(key, value string) {
	if s.header == nil {
		s.header = make(http.Header)
	}
	s.header.Add(key, value)
}

// Producer returns a producer that fetches the chunk at path, relative
// to the source's base URL. Errors are shaped so the engine classifies
// them usefully: permanent client errors (404 and friends) wrap
// lazyload.ErrMalformed and are not retried; everything else stays
// retryable.
func (s *Source) Producer(path string) lazyload.Producer[[]byte] {
	u := s.base.JoinPath(path)
	return func(ctx context.Context) ([]byte, error) {
		req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
		if err != nil {
			return nil, err
		}
		s.applyHeader(req.Header)

		resp, err := s.client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			io.Copy(io.Discard, resp.Body)
			serr := fmt.Errorf("fetch %q: unexpected status %d", path, resp.StatusCode)
			if permanentStatus(resp.StatusCode) {
				return nil, fmt.Errorf("%w: %v", lazyload.ErrMalformed, serr)
			}
			return nil, serr
		}

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("fetch %q: read body: %w", path, err)
		}
		return body, nil
	}
}

// Hint issues a fire-and-forget HEAD for the chunk at path so caches
// along the transport path warm up. It never blocks and reports nothing;
// it is shaped to plug into lazyload.Options.PrefetchHint.
func (s *Source) Hint(path string) {
	u := s.base.JoinPath(path)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), hintTimeout)
		defer cancel()

		req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodHead, u.String(), nil)
		if err != nil {
			return
		}
		s.applyHeader(req.Header)

		resp, err := s.client.Do(req)
		if err != nil {
			return
		}
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}()
}

func (s *Source) applyHeader(h http.Header) {
	for key, vals := range s.header {
		for _, val := range vals {
			h.Add(key, val)
		}
	}
}

// permanentStatus reports whether a client-error status will keep
// happening on retry. 408 and 429 are transient by definition.
func permanentStatus(code int) bool {
	if code == http.StatusRequestTimeout || code == http.StatusTooManyRequests {
		return false
	}
	return code >= 400 && code < 500
}
