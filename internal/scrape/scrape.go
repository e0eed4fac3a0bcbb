// Package scrape defines the shared Scraping Client contract (component C).
// Concrete clients live in the reference, sportybet, and bet9ja subpackages;
// all share the internal/scrape/httpx HTTP facade and internal/scrape/retry
// backoff policy.
package scrape

import (
	"context"
	"time"

	"github.com/XavierBriggs/fortuna/internal/domain"
	"github.com/XavierBriggs/fortuna/internal/normalize"
)

// EventSummary is one row from a platform's listing/discovery call.
type EventSummary struct {
	ExternalEventID string
	HomeTeam        string
	AwayTeam        string
	KickoffTime     time.Time
}

// SportSummary is one entry from a platform's fetch_sports() call.
type SportSummary struct {
	Key  string
	Name string
}

// Health is the result of a check_health() call.
type Health struct {
	OK        bool
	LatencyMs int64
}

// Client is the Scraping Client contract shared by all three sources.
// Clients return raw payloads only — normalization is component B's job.
type Client interface {
	Source() domain.Source
	// FetchEvent fetches one event's full raw markets.
	FetchEvent(ctx context.Context, externalEventID string) (normalize.RawEvent, error)
	// FetchEvents lists events for a listing. The orchestrator's discovery
	// phase calls it on every platform before the per-event FetchEvent calls.
	FetchEvents(ctx context.Context, listingID string) ([]EventSummary, error)
	// FetchSports lists available sports, where source-applicable.
	FetchSports(ctx context.Context) ([]SportSummary, error)
	CheckHealth(ctx context.Context) Health
}
