// Package reference implements the Scraping Client for the reference
// bookmaker, which returns all of an event's markets in a single detail call.
// Grounded on game-stats-service/internal/providers/espn/client.go's
// Client{httpClient, userAgent}/fetch(ctx, url) shape.
package reference

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/XavierBriggs/fortuna/internal/apperror"
	"github.com/XavierBriggs/fortuna/internal/domain"
	"github.com/XavierBriggs/fortuna/internal/normalize"
	"github.com/XavierBriggs/fortuna/internal/scrape"
	"github.com/XavierBriggs/fortuna/internal/scrape/httpx"
)

// Client is the reference-platform Scraping Client.
type Client struct {
	http *httpx.Client
}

// New constructs a reference Client against baseURL.
func New(baseURL string) *Client {
	return &Client{http: httpx.New(baseURL, "fortuna-scraper/reference")}
}

// Close releases the client's idle HTTP connections.
func (c *Client) Close() { c.http.Close() }

// Source identifies this client's platform.
func (c *Client) Source() domain.Source { return domain.SourceReference }

type marketPayload struct {
	MarketID string `json:"market_id"`
	Outcomes []struct {
		Name   string  `json:"name"`
		Odds   float64 `json:"odds"`
		Active bool    `json:"active"`
	} `json:"outcomes"`
}

type eventPayload struct {
	ExternalEventID string          `json:"external_event_id"`
	CorrelationID   *string         `json:"correlation_id"`
	HomeTeam        string          `json:"home_team"`
	AwayTeam        string          `json:"away_team"`
	KickoffTime     time.Time       `json:"kickoff_time"`
	Markets         []marketPayload `json:"markets"`
}

// FetchEvent fetches one event's markets in a single call.
func (c *Client) FetchEvent(ctx context.Context, externalEventID string) (normalize.RawEvent, error) {
	body, err := c.http.Get(ctx, fmt.Sprintf("/api/events/%s", externalEventID))
	if err != nil {
		return normalize.RawEvent{}, err
	}

	var payload eventPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return normalize.RawEvent{}, apperror.Parse("invalid reference event payload", err)
	}

	raw := normalize.RawEvent{
		ExternalEventID: payload.ExternalEventID,
		CorrelationID:   payload.CorrelationID,
		HomeTeam:        payload.HomeTeam,
		AwayTeam:        payload.AwayTeam,
		KickoffTime:     payload.KickoffTime,
	}
	for _, m := range payload.Markets {
		outcomes := make([]normalize.RawOutcome, len(m.Outcomes))
		for i, o := range m.Outcomes {
			outcomes[i] = normalize.RawOutcome{Name: o.Name, Odds: o.Odds, Active: o.Active}
		}
		raw.Markets = append(raw.Markets, normalize.RawMarket{SourceMarketKey: m.MarketID, Outcomes: outcomes})
	}

	return raw, nil
}

// FetchEvents lists the events in a listing. The orchestrator's discovery
// phase calls it on the reference platform as on the competitors, before
// fetching each event's markets with FetchEvent.
func (c *Client) FetchEvents(ctx context.Context, listingID string) ([]scrape.EventSummary, error) {
	body, err := c.http.Get(ctx, fmt.Sprintf("/api/listings/%s", listingID))
	if err != nil {
		return nil, err
	}

	var payload []struct {
		ExternalEventID string    `json:"external_event_id"`
		HomeTeam        string    `json:"home_team"`
		AwayTeam        string    `json:"away_team"`
		KickoffTime     time.Time `json:"kickoff_time"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, apperror.Parse("invalid reference listing payload", err)
	}

	summaries := make([]scrape.EventSummary, len(payload))
	for i, p := range payload {
		summaries[i] = scrape.EventSummary{ExternalEventID: p.ExternalEventID, HomeTeam: p.HomeTeam, AwayTeam: p.AwayTeam, KickoffTime: p.KickoffTime}
	}
	return summaries, nil
}

// FetchSports lists available sports on the reference platform.
func (c *Client) FetchSports(ctx context.Context) ([]scrape.SportSummary, error) {
	body, err := c.http.Get(ctx, "/api/sports")
	if err != nil {
		return nil, err
	}

	var payload []struct {
		Key  string `json:"key"`
		Name string `json:"name"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, apperror.Parse("invalid reference sports payload", err)
	}

	sports := make([]scrape.SportSummary, len(payload))
	for i, p := range payload {
		sports[i] = scrape.SportSummary{Key: p.Key, Name: p.Name}
	}
	return sports, nil
}

// CheckHealth probes the reference platform's health endpoint.
func (c *Client) CheckHealth(ctx context.Context) scrape.Health {
	ok, latency := c.http.CheckHealth(ctx, "/api/health")
	return scrape.Health{OK: ok, LatencyMs: latency}
}
