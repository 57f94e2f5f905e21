package lazyload

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"testing"
)

type fakeNetError struct{ timeout bool }

func (e *fakeNetError) Error() string   { return "fake net error" }
func (e *fakeNetError) Timeout() bool   { return e.timeout }
func (e *fakeNetError) Temporary() bool { return true }

var _ net.Error = (*fakeNetError)(nil)

func TestClassify_Kinds(t *testing.T) {
	t.Parallel()

	jsonErr := json.Unmarshal([]byte("{"), &struct{}{})

	tests := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{"cancellation", context.Canceled, KindAborted},
		{"wrapped cancellation", fmt.Errorf("load: %w", context.Canceled), KindAborted},
		{"deadline", context.DeadlineExceeded, KindTimeout},
		{"net error", &fakeNetError{}, KindNetwork},
		{"net timeout", &fakeNetError{timeout: true}, KindTimeout},
		{"malformed sentinel", fmt.Errorf("%w: trailing garbage", ErrMalformed), KindParse},
		{"json syntax", jsonErr, KindParse},
		{"refused string", errors.New("dial tcp: connection refused"), KindNetwork},
		{"dns string", errors.New("lookup cdn.example: no such host"), KindNetwork},
		{"offline string", errors.New("host is offline"), KindNetwork},
		{"timeout string", errors.New("request timed out"), KindTimeout},
		{"parse string", errors.New("unexpected end of input"), KindParse},
		{"unclassified fails open", errors.New("something odd"), KindNetwork},
		{"nil fails open", nil, KindNetwork},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := classifyKind(tc.err); got != tc.want {
				t.Fatalf("want %s, got %s", tc.want, got)
			}
		})
	}
}

func TestErrorKind_Retryable(t *testing.T) {
	t.Parallel()

	retryable := map[ErrorKind]bool{
		KindNetwork:       true,
		KindTimeout:       true,
		KindParse:         false,
		KindInvalidResult: false,
		KindAborted:       false,
	}
	for kind, want := range retryable {
		if got := kind.Retryable(); got != want {
			t.Errorf("%s: retryable want %v, got %v", kind, want, got)
		}
	}
}

func TestLoadError_Unwrap(t *testing.T) {
	t.Parallel()

	cause := errors.New("root cause")
	le := Classify("k", 2, fmt.Errorf("wrapped: %w", cause))
	if !errors.Is(le, cause) {
		t.Fatal("LoadError must unwrap to its cause")
	}
	if le.Key != "k" || le.Attempt != 2 {
		t.Fatalf("context lost: %+v", le)
	}

	got, ok := AsLoadError(fmt.Errorf("outer: %w", le))
	if !ok || got != le {
		t.Fatal("AsLoadError must find the wrapped *LoadError")
	}
}
