// Package retry implements the exponential backoff policy of spec §4.C.
// Adapted from bot-service/internal/retry/retry.go, whose policy (factor 1.5,
// cap 30s, no error discrimination) is corrected here to the spec's exact
// numbers (factor 2, cap 10s, max 3 attempts) and taught to distinguish
// retryable transport errors from errors that must fail fast.
package retry

import (
	"context"
	"time"

	"github.com/XavierBriggs/fortuna/internal/apperror"
)

// Policy is an exponential backoff retry policy.
type Policy struct {
	MaxAttempts  int
	InitialDelay time.Duration
	Factor       float64
	MaxDelay     time.Duration
}

// Default returns the policy spec §4.C mandates: initial 1s, factor 2, cap
// 10s, max 3 attempts.
func Default() Policy {
	return Policy{
		MaxAttempts:  3,
		InitialDelay: 1 * time.Second,
		Factor:       2,
		MaxDelay:     10 * time.Second,
	}
}

// Execute runs fn, retrying on retryable errors (network, timeout, rate_limit) up to
// MaxAttempts times with exponential backoff. A non-retryable error (parse,
// any 4xx other than 429, ...) returns immediately without further attempts.
func (p Policy) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	delay := p.InitialDelay
	var lastErr error

	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if !apperror.IsRetryable(lastErr) {
			return lastErr
		}
		if attempt == p.MaxAttempts {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}

		delay = time.Duration(float64(delay) * p.Factor)
		if delay > p.MaxDelay {
			delay = p.MaxDelay
		}
	}

	return lastErr
}
