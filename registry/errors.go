package registry

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
)

// Error is a non-2xx response from the registry.
type Error struct {
	Method     string
	URL        string
	StatusCode int
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("registry returned status %d for %s %s", e.StatusCode, e.Method, e.URL)
}

// Retryable reports whether the status code is worth retrying: 429 and 5xx.
func (e *Error) Retryable() bool {
	return e.StatusCode == 429 || e.StatusCode >= 500
}

// ErrMountUnavailable is returned when a cross-repository mount request is
// answered with 202: the registry could not find the blob in the source
// repository and opened a fresh upload session instead.
var ErrMountUnavailable = errors.New("cross-repository mount unavailable")

// IsRetryable classifies an error for the retry policy. Registry errors are
// retryable per their status code; transport errors (connection failures,
// timeouts) are retryable; everything else, including context cancellation
// and integrity failures, is final.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var regErr *Error
	if errors.As(err, &regErr) {
		return regErr.Retryable()
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var urlErr *url.Error
	return errors.As(err, &urlErr)
}
