package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/XavierBriggs/fortuna/internal/apperror"
)

func TestExecuteRetriesRetryableErrors(t *testing.T) {
	p := Policy{MaxAttempts: 3, InitialDelay: time.Millisecond, Factor: 2, MaxDelay: 10 * time.Millisecond}

	attempts := 0
	err := p.Execute(context.Background(), func(ctx context.Context) error {
		attempts++
		if attempts < 3 {
			return apperror.Network("upstream unreachable", errors.New("dial tcp: refused"))
		}
		return nil
	})

	if err != nil {
		t.Fatalf("expected eventual success, got %v", err)
	}
	if attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts)
	}
}

func TestExecuteDoesNotRetryNonRetryableErrors(t *testing.T) {
	p := Default()

	attempts := 0
	err := p.Execute(context.Background(), func(ctx context.Context) error {
		attempts++
		return apperror.Parse("malformed payload", errors.New("unexpected EOF"))
	})

	if err == nil {
		t.Fatal("expected error")
	}
	if attempts != 1 {
		t.Fatalf("expected exactly 1 attempt for a non-retryable error, got %d", attempts)
	}
}

func TestExecuteGivesUpAfterMaxAttempts(t *testing.T) {
	p := Policy{MaxAttempts: 3, InitialDelay: time.Millisecond, Factor: 2, MaxDelay: 10 * time.Millisecond}

	attempts := 0
	err := p.Execute(context.Background(), func(ctx context.Context) error {
		attempts++
		return apperror.RateLimit("429", nil)
	})

	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts)
	}
}

func TestExecuteRespectsContextCancellation(t *testing.T) {
	p := Policy{MaxAttempts: 5, InitialDelay: 50 * time.Millisecond, Factor: 2, MaxDelay: time.Second}

	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0
	go func() {
		time.Sleep(5 * time.Millisecond)
		cancel()
	}()

	err := p.Execute(ctx, func(ctx context.Context) error {
		attempts++
		return apperror.Network("retry me", nil)
	})

	if err == nil {
		t.Fatal("expected context cancellation error")
	}
}
