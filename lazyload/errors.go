package lazyload

import (
	"errors"
	"fmt"
)

// ErrClosed is returned by engine operations after Destroy.
var ErrClosed = errors.New("lazyload: engine closed")

// ErrMalformed is a sentinel that producers can wrap to mark a payload as
// unparseable. Classification maps it to KindParse (non-retryable).
var ErrMalformed = errors.New("malformed resource")

// errNilResource is the default structural-validation failure.
var errNilResource = errors.New("resource is nil")

// errProducerPanic wraps a recovered producer panic. Classified as
// invalid_result: a misbehaving producer is not a transient failure.
var errProducerPanic = errors.New("producer panicked")

// ErrorKind is the classified failure category of a load attempt.
// Retryability is a pure function of the kind.
type ErrorKind uint8

const (
	// KindNetwork — the transport/network layer failed (connection
	// refused, offline, DNS). Retryable.
	KindNetwork ErrorKind = iota
	// KindTimeout — the attempt exceeded its deadline. Retryable.
	KindTimeout
	// KindParse — the payload exists but is malformed. Not retryable.
	KindParse
	// KindInvalidResult — the producer returned a value that failed
	// structural validation. Not retryable.
	KindInvalidResult
	// KindAborted — the caller cancelled the load. Never retried:
	// cancellation reflects caller intent, not resource unavailability.
	KindAborted
)

// String returns a stable label, usable as a metrics tag.
func (k ErrorKind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindTimeout:
		return "timeout"
	case KindParse:
		return "parse"
	case KindInvalidResult:
		return "invalid_result"
	case KindAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// Retryable reports whether failures of this kind may be retried.
func (k ErrorKind) Retryable() bool {
	return k == KindNetwork || k == KindTimeout
}

// LoadError is the typed terminal error of a failed load. It carries
// enough context (key, kind, attempt count, cause) for the caller to
// render a fallback.
type LoadError struct {
	Key     string
	Kind    ErrorKind
	Attempt int
	Err     error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load %q: %s after %d attempt(s): %v", e.Key, e.Kind, e.Attempt, e.Err)
}

// Unwrap exposes the underlying cause for errors.Is/As.
func (e *LoadError) Unwrap() error { return e.Err }

// Retryable reports whether the error's kind is retryable.
func (e *LoadError) Retryable() bool { return e.Kind.Retryable() }

// AsLoadError unwraps err to a *LoadError, if it carries one.
func AsLoadError(err error) (*LoadError, bool) {
	var le *LoadError
	if errors.As(err, &le) {
		return le, true
	}
	return nil, false
}
