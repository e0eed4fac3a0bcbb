package httpx

import (
	"context"
	"sync"
	"time"
)

// MaxConcurrentFetches bounds the number of simultaneous per-event detail
// fetches a single client may issue, per spec §4.C / §9 ("competitor scraper
// throughput" open question): an earlier sequential revision exceeded the
// scrape-run deadline, so this bound plus inter-request pacing is mandatory.
const MaxConcurrentFetches = 10

// InterRequestPause is the small delay between semaphore acquisitions that
// respects each source's rate limits.
const InterRequestPause = 50 * time.Millisecond

// FetchResult pairs one item's fetch outcome with its originating index, so
// callers can recover per-item errors without losing ordering information.
type FetchResult[T any] struct {
	Index int
	Value T
	Err   error
}

// FetchAll runs fetch once per item with a bounded semaphore of
// MaxConcurrentFetches concurrent goroutines and an inter-request pacing
// delay between acquisitions, per the fan_in pattern §4.C mandates. A
// cancelled ctx stops issuing new fetches but already-started ones still
// report their result.
func FetchAll[T any](ctx context.Context, items []string, fetch func(ctx context.Context, item string) (T, error)) []FetchResult[T] {
	results := make([]FetchResult[T], len(items))
	sem := make(chan struct{}, MaxConcurrentFetches)
	var wg sync.WaitGroup

	for i, item := range items {
		i, item := i, item

		select {
		case <-ctx.Done():
			results[i] = FetchResult[T]{Index: i, Err: ctx.Err()}
			continue
		case sem <- struct{}{}:
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() { <-sem }()

			value, err := fetch(ctx, item)
			results[i] = FetchResult[T]{Index: i, Value: value, Err: err}
		}()

		time.Sleep(InterRequestPause)
	}

	wg.Wait()
	return results
}
