package registry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Policy is the retry behavior shared by every network call: exponential
// backoff with a bounded delay ceiling and a fixed attempt count.
type Policy struct {
	MaxAttempts     uint64
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// DefaultPolicy mirrors the retry behavior used for registry pulls: up to 5
// attempts, 1s initial delay, doubling up to an 8s ceiling.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:     5,
		InitialInterval: time.Second,
		MaxInterval:     8 * time.Second,
	}
}

// Do runs op, retrying retryable failures per the policy. Non-retryable
// errors are returned immediately.
func (p Policy) Do(ctx context.Context, op func() error) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = p.InitialInterval
	bo.MaxInterval = p.MaxInterval
	bo.Multiplier = 2
	bo.RandomizationFactor = 0
	bo.MaxElapsedTime = 0

	attempts := p.MaxAttempts
	if attempts == 0 {
		attempts = 1
	}

	b := backoff.WithContext(backoff.WithMaxRetries(bo, attempts-1), ctx)
	return backoff.Retry(func() error {
		err := op()
		if err != nil && !IsRetryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}, b)
}
