package registry

import (
	"context"
	"errors"
	"net/url"
	"testing"
	"time"
)

func testPolicy() Policy {
	return Policy{
		MaxAttempts:     4,
		InitialInterval: time.Millisecond,
		MaxInterval:     2 * time.Millisecond,
	}
}

func TestPolicy_Do_RetriesRetryableErrors(t *testing.T) {
	attempts := 0
	err := testPolicy().Do(context.Background(), func() error {
		attempts++
		if attempts < 3 {
			return &Error{Method: "GET", URL: "http://example/v2/", StatusCode: 503}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
}

func TestPolicy_Do_StopsOnPermanentError(t *testing.T) {
	permanent := errors.New("bad digest")
	attempts := 0
	err := testPolicy().Do(context.Background(), func() error {
		attempts++
		return permanent
	})
	if !errors.Is(err, permanent) {
		t.Fatalf("error = %v, want %v", err, permanent)
	}
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1", attempts)
	}
}

func TestPolicy_Do_ExhaustsAttempts(t *testing.T) {
	attempts := 0
	err := testPolicy().Do(context.Background(), func() error {
		attempts++
		return &Error{Method: "GET", URL: "http://example/v2/", StatusCode: 500}
	})
	var regErr *Error
	if !errors.As(err, &regErr) {
		t.Fatalf("error = %v, want *Error", err)
	}
	if attempts != 4 {
		t.Errorf("attempts = %d, want 4", attempts)
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "429", err: &Error{StatusCode: 429}, want: true},
		{name: "500", err: &Error{StatusCode: 500}, want: true},
		{name: "503", err: &Error{StatusCode: 503}, want: true},
		{name: "404", err: &Error{StatusCode: 404}, want: false},
		{name: "401", err: &Error{StatusCode: 401}, want: false},
		{name: "wrapped registry error", err: errorsWrap(&Error{StatusCode: 502}), want: true},
		{name: "connection failure", err: &url.Error{Op: "Get", URL: "http://example", Err: errors.New("connection refused")}, want: true},
		{name: "context canceled", err: context.Canceled, want: false},
		{name: "plain error", err: errors.New("boom"), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRetryable(tt.err); got != tt.want {
				t.Errorf("IsRetryable(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func errorsWrap(err error) error {
	return &wrappedError{err: err}
}

type wrappedError struct{ err error }

func (w *wrappedError) Error() string { return "wrapped: " + w.err.Error() }
func (w *wrappedError) Unwrap() error { return w.err }
