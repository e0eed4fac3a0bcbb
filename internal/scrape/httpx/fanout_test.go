package httpx

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
)

func TestFetchAllBoundsConcurrency(t *testing.T) {
	items := make([]string, 30)
	for i := range items {
		items[i] = "item"
	}

	var inFlight int32
	var maxObserved int32
	var mu sync.Mutex

	results := FetchAll(context.Background(), items, func(ctx context.Context, item string) (int, error) {
		n := atomic.AddInt32(&inFlight, 1)
		mu.Lock()
		if n > maxObserved {
			maxObserved = n
		}
		mu.Unlock()
		atomic.AddInt32(&inFlight, -1)
		return 1, nil
	})

	if len(results) != 30 {
		t.Fatalf("expected 30 results, got %d", len(results))
	}
	if maxObserved > MaxConcurrentFetches {
		t.Errorf("observed %d concurrent fetches, want <= %d", maxObserved, MaxConcurrentFetches)
	}
	for _, r := range results {
		if r.Err != nil {
			t.Errorf("unexpected error: %v", r.Err)
		}
	}
}

func TestFetchAllPreservesOrderingByIndex(t *testing.T) {
	items := []string{"a", "b", "c", "d"}

	results := FetchAll(context.Background(), items, func(ctx context.Context, item string) (string, error) {
		return item + "-done", nil
	})

	for i, item := range items {
		if results[i].Value != item+"-done" {
			t.Errorf("index %d: got %q", i, results[i].Value)
		}
	}
}
