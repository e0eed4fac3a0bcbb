package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// TokenBucket bounds the outbound request rate against one scrape source
// host, shared across every process instance via Redis.
type TokenBucket struct {
	client       *redis.Client
	key          string
	maxTokens    int
	refillPeriod time.Duration
}

// NewTokenBucket creates a bucket for one source host. maxTokens is refilled
// every refillPeriod.
func NewTokenBucket(client *redis.Client, host string, maxTokens int, refillPeriod time.Duration) *TokenBucket {
	return &TokenBucket{
		client:       client,
		key:          "scrape:ratelimit:" + host,
		maxTokens:    maxTokens,
		refillPeriod: refillPeriod,
	}
}

// Allow consumes one token if available.
func (tb *TokenBucket) Allow(ctx context.Context) (bool, error) {
	if err := tb.initialize(ctx); err != nil {
		return false, err
	}

	tokens, err := tb.client.Decr(ctx, tb.key).Result()
	if err != nil {
		return false, fmt.Errorf("failed to decrement tokens: %w", err)
	}

	if tokens < 0 {
		// Restore the token we tried to take.
		tb.client.Incr(ctx, tb.key)
		return false, nil
	}

	return true, nil
}

// Wait blocks until a token is available or ctx is done.
func (tb *TokenBucket) Wait(ctx context.Context) error {
	for {
		ok, err := tb.Allow(ctx)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(100 * time.Millisecond):
		}
	}
}

func (tb *TokenBucket) initialize(ctx context.Context) error {
	exists, err := tb.client.Exists(ctx, tb.key).Result()
	if err != nil {
		return fmt.Errorf("failed to check bucket existence: %w", err)
	}

	if exists == 0 {
		if err := tb.client.Set(ctx, tb.key, tb.maxTokens, 0).Err(); err != nil {
			return fmt.Errorf("failed to initialize bucket: %w", err)
		}
		go tb.refillLoop(context.Background())
	}

	return nil
}

func (tb *TokenBucket) refillLoop(ctx context.Context) {
	ticker := time.NewTicker(tb.refillPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			tb.client.Set(ctx, tb.key, tb.maxTokens, 0)
		}
	}
}

// Tokens returns the current token count, for monitoring.
func (tb *TokenBucket) Tokens(ctx context.Context) (int, error) {
	tokens, err := tb.client.Get(ctx, tb.key).Int()
	if err != nil {
		if err == redis.Nil {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to get tokens: %w", err)
	}
	return tokens, nil
}
