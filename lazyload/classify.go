package lazyload

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"strings"
)

// Classify wraps a raw attempt failure in a typed LoadError. It is a pure
// function; the engine decides what to do with the result.
func Classify(key string, attempt int, err error) *LoadError {
	return &LoadError{Key: key, Kind: classifyKind(err), Attempt: attempt, Err: err}
}

// classifyKind maps a raw error to an ErrorKind. Rules are checked in
// priority order: cancellation, deadline, transport failure, malformed
// payload. Anything unrecognized is treated as a network failure — an
// unclassified transient is more often recoverable than not, so the
// default leans retryable.
func classifyKind(err error) ErrorKind {
	if err == nil {
		return KindNetwork
	}
	if errors.Is(err, context.Canceled) {
		return KindAborted
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}

	var ne net.Error
	if errors.As(err, &ne) {
		if ne.Timeout() {
			return KindTimeout
		}
		return KindNetwork
	}

	if errors.Is(err, errProducerPanic) {
		return KindInvalidResult
	}
	if errors.Is(err, ErrMalformed) {
		return KindParse
	}
	var jsonErr *json.SyntaxError
	if errors.As(err, &jsonErr) {
		return KindParse
	}

	// Heuristics over the message, for errors that cross process or
	// library boundaries without type information.
	s := strings.ToLower(err.Error())
	switch {
	case strings.Contains(s, "connection refused"),
		strings.Contains(s, "connection reset"),
		strings.Contains(s, "no such host"),
		strings.Contains(s, "network is unreachable"),
		strings.Contains(s, "broken pipe"),
		strings.Contains(s, "offline"):
		return KindNetwork
	case strings.Contains(s, "timeout"),
		strings.Contains(s, "timed out"),
		strings.Contains(s, "deadline exceeded"):
		return KindTimeout
	case strings.Contains(s, "malformed"),
		strings.Contains(s, "unexpected end of"),
		strings.Contains(s, "invalid character"),
		strings.Contains(s, "parse error"):
		return KindParse
	}

	return KindNetwork
}
