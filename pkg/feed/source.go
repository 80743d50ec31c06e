package feed

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Source supplies fresh descriptors to the buffer.
//
// Fetch returns up to count descriptors. Returning fewer than count,
// including zero with a nil error, is not an error: it means the source is
// exhausted or momentarily short. The engine may deliver duplicates of
// previously returned descriptors without harm; the buffer drops anything it
// has already served or queued.
//
// Implementations classify failures by returning a *FetchError. Any other
// error is treated as transient.
type Source interface {
	Fetch(ctx context.Context, count int) ([]Descriptor, error)
}

// ErrorKind classifies a fetch failure for the controller's retry policy.
type ErrorKind int

const (
	// ErrTransient covers timeouts, connection resets, 5xx responses and
	// anything else worth retrying.
	ErrTransient ErrorKind = iota
	// ErrRateLimited means the source explicitly told us to back off. The
	// controller halts the session rather than hammer the source.
	ErrRateLimited
	// ErrInvalidRequest means the request itself was rejected (bad
	// credentials, malformed query). Retrying the same request cannot help.
	ErrInvalidRequest
)

// String returns the kind name for logs.
func (k ErrorKind) String() string {
	switch k {
	case ErrTransient:
		return "transient"
	case ErrRateLimited:
		return "rate_limited"
	case ErrInvalidRequest:
		return "invalid_request"
	default:
		return fmt.Sprintf("unknown(%d)", int(k))
	}
}

// FetchError is a classified source failure.
type FetchError struct {
	// Kind drives the controller's reaction.
	Kind ErrorKind
	// RetryAfter is an optional resume hint from a rate-limiting source.
	// Zero when the source gave none.
	RetryAfter time.Duration
	// Err is the underlying cause.
	Err error
}

// Error implements the error interface.
func (e *FetchError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("fetch %s (retry after %s): %v", e.Kind, e.RetryAfter, e.Err)
	}
	return fmt.Sprintf("fetch %s: %v", e.Kind, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As chains.
func (e *FetchError) Unwrap() error {
	return e.Err
}

// TransientError wraps err as a retryable fetch failure.
func TransientError(err error) *FetchError {
	return &FetchError{Kind: ErrTransient, Err: err}
}

// RateLimitError wraps err as an explicit rate-limit signal. retryAfter may
// be zero when the source gave no resume hint.
func RateLimitError(err error, retryAfter time.Duration) *FetchError {
	return &FetchError{Kind: ErrRateLimited, RetryAfter: retryAfter, Err: err}
}

// InvalidRequestError wraps err as a non-retryable request rejection.
func InvalidRequestError(err error) *FetchError {
	return &FetchError{Kind: ErrInvalidRequest, Err: err}
}

// KindOf extracts the error kind from err. Unclassified errors default to
// transient, which errs on the side of retrying.
func KindOf(err error) ErrorKind {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return ErrTransient
}

// RetryAfterHint extracts the rate-limit resume hint from err, or zero.
func RetryAfterHint(err error) time.Duration {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.RetryAfter
	}
	return 0
}
