// Package bet9ja implements the Scraping Client for Bet9ja, a competitor
// platform whose per-event detail is a flat odds key->price dict normalized
// via internal/normalize/bet9ja's batch path.
package bet9ja

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

// Client is the Bet9ja Scraping Client.
type Client struct {
	http *httpx.Client
}

// New constructs a Bet9ja Client against baseURL.
func New(baseURL string) *Client {
	return &Client{http: httpx.New(baseURL, "fortuna-scraper/bet9ja")}
}

// Close releases the client's idle HTTP connections.
func (c *Client) Close() { c.http.Close() }

// Source identifies this client's platform.
func (c *Client) Source() domain.Source { return domain.SourceBet9ja }

// FetchEvents lists events in a listing (discovery step).
func (c *Client) FetchEvents(ctx context.Context, listingID string) ([]scrape.EventSummary, error) {
	body, err := c.http.Get(ctx, fmt.Sprintf("/api/v2/events?group=%s", listingID))
	if err != nil {
		return nil, err
	}

	var payload struct {
		Events []struct {
			ID    string    `json:"id"`
			Home  string    `json:"home"`
			Away  string    `json:"away"`
			Start time.Time `json:"start"`
		} `json:"events"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, apperror.Parse("invalid bet9ja listing payload", err)
	}

	summaries := make([]scrape.EventSummary, len(payload.Events))
	for i, e := range payload.Events {
		summaries[i] = scrape.EventSummary{ExternalEventID: e.ID, HomeTeam: e.Home, AwayTeam: e.Away, KickoffTime: e.Start}
	}
	return summaries, nil
}

// FetchEvent fetches one event's flat odds dict and packages it as a
// RawEvent whose Markets carry one entry per Bet9ja key, deferring the
// regex-based grouping to internal/normalize/bet9ja.NormalizeBatch.
func (c *Client) FetchEvent(ctx context.Context, externalEventID string) (normalize.RawEvent, error) {
	body, err := c.http.Get(ctx, fmt.Sprintf("/api/v2/events/%s/odds", externalEventID))
	if err != nil {
		return normalize.RawEvent{}, err
	}

	var payload struct {
		ID            string             `json:"id"`
		CorrelationID *string            `json:"srId"`
		Home          string             `json:"home"`
		Away          string             `json:"away"`
		Start         time.Time          `json:"start"`
		Odds          map[string]float64 `json:"odds"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return normalize.RawEvent{}, apperror.Parse("invalid bet9ja odds payload", err)
	}

	raw := normalize.RawEvent{
		ExternalEventID: payload.ID,
		CorrelationID:   payload.CorrelationID,
		HomeTeam:        payload.Home,
		AwayTeam:        payload.Away,
		KickoffTime:     payload.Start,
	}
	for key, price := range payload.Odds {
		raw.Markets = append(raw.Markets, normalize.RawMarket{
			SourceMarketKey: key,
			Outcomes:        []normalize.RawOutcome{{Name: "", Odds: price, Active: price > 0}},
		})
	}

	return raw, nil
}

// FetchSports lists available sports on Bet9ja.
func (c *Client) FetchSports(ctx context.Context) ([]scrape.SportSummary, error) {
	body, err := c.http.Get(ctx, "/api/v2/sports")
	if err != nil {
		return nil, err
	}

	var payload struct {
		Sports []struct {
			Key  string `json:"key"`
			Name string `json:"name"`
		} `json:"sports"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, apperror.Parse("invalid bet9ja sports payload", err)
	}

	sports := make([]scrape.SportSummary, len(payload.Sports))
	for i, s := range payload.Sports {
		sports[i] = scrape.SportSummary{Key: s.Key, Name: s.Name}
	}
	return sports, nil
}

// CheckHealth probes Bet9ja's health endpoint.
func (c *Client) CheckHealth(ctx context.Context) scrape.Health {
	ok, latency := c.http.CheckHealth(ctx, "/api/v2/health")
	return scrape.Health{OK: ok, LatencyMs: latency}
}
