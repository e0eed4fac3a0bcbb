// Package sportybet implements the Scraping Client for Sportybet, a
// competitor platform requiring the two-step discovery (listing) then detail
// (per-event) pattern of spec §4.C.
package sportybet

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

// Client is the Sportybet Scraping Client.
type Client struct {
	http *httpx.Client
}

// New constructs a Sportybet Client against baseURL.
func New(baseURL string) *Client {
	return &Client{http: httpx.New(baseURL, "fortuna-scraper/sportybet")}
}

// Close releases the client's idle HTTP connections.
func (c *Client) Close() { c.http.Close() }

// Source identifies this client's platform.
func (c *Client) Source() domain.Source { return domain.SourceSportybet }

// FetchEvents lists the events in a listing (discovery step).
func (c *Client) FetchEvents(ctx context.Context, listingID string) ([]scrape.EventSummary, error) {
	body, err := c.http.Get(ctx, fmt.Sprintf("/factsCenter/wapEvents?sportId=%s", listingID))
	if err != nil {
		return nil, err
	}

	var payload struct {
		Data []struct {
			EventID   string `json:"eventId"`
			HomeTeam  string `json:"homeTeamName"`
			AwayTeam  string `json:"awayTeamName"`
			StartTime int64  `json:"estimateStartTime"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, apperror.Parse("invalid sportybet listing payload", err)
	}

	summaries := make([]scrape.EventSummary, len(payload.Data))
	for i, e := range payload.Data {
		summaries[i] = scrape.EventSummary{
			ExternalEventID: e.EventID,
			HomeTeam:        e.HomeTeam,
			AwayTeam:        e.AwayTeam,
			KickoffTime:     time.UnixMilli(e.StartTime).UTC(),
		}
	}
	return summaries, nil
}

type sportybetMarket struct {
	MarketID  string `json:"id"`
	Specifier string `json:"specifier"`
	Outcomes  []struct {
		Desc   string  `json:"desc"`
		Odds   float64 `json:"odds,string"`
		Active int     `json:"isActive"`
	} `json:"outcomes"`
}

// FetchEvent fetches one event's detail (the per-event step of the discovery
// → detail pattern).
func (c *Client) FetchEvent(ctx context.Context, externalEventID string) (normalize.RawEvent, error) {
	body, err := c.http.Get(ctx, fmt.Sprintf("/factsCenter/wapGetMarkets?eventId=%s", externalEventID))
	if err != nil {
		return normalize.RawEvent{}, err
	}

	var payload struct {
		Data struct {
			EventID       string            `json:"eventId"`
			SRCorrelation *string           `json:"srId"`
			HomeTeamName  string            `json:"homeTeamName"`
			AwayTeamName  string            `json:"awayTeamName"`
			StartTime     int64             `json:"estimateStartTime"`
			Markets       []sportybetMarket `json:"markets"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return normalize.RawEvent{}, apperror.Parse("invalid sportybet event payload", err)
	}

	raw := normalize.RawEvent{
		ExternalEventID: payload.Data.EventID,
		CorrelationID:   payload.Data.SRCorrelation,
		HomeTeam:        payload.Data.HomeTeamName,
		AwayTeam:        payload.Data.AwayTeamName,
		KickoffTime:     time.UnixMilli(payload.Data.StartTime).UTC(),
	}
	for _, m := range payload.Data.Markets {
		outcomes := make([]normalize.RawOutcome, len(m.Outcomes))
		for i, o := range m.Outcomes {
			outcomes[i] = normalize.RawOutcome{Name: o.Desc, Odds: o.Odds, Active: o.Active == 1}
		}
		raw.Markets = append(raw.Markets, normalize.RawMarket{
			SourceMarketKey: m.MarketID,
			Specifier:       m.Specifier,
			Outcomes:        outcomes,
		})
	}

	return raw, nil
}

// FetchSports lists available sports on Sportybet.
func (c *Client) FetchSports(ctx context.Context) ([]scrape.SportSummary, error) {
	body, err := c.http.Get(ctx, "/factsCenter/wapSports")
	if err != nil {
		return nil, err
	}

	var payload struct {
		Data []struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, apperror.Parse("invalid sportybet sports payload", err)
	}

	sports := make([]scrape.SportSummary, len(payload.Data))
	for i, s := range payload.Data {
		sports[i] = scrape.SportSummary{Key: s.ID, Name: s.Name}
	}
	return sports, nil
}

// CheckHealth probes Sportybet's health endpoint.
func (c *Client) CheckHealth(ctx context.Context) scrape.Health {
	ok, latency := c.http.CheckHealth(ctx, "/factsCenter/wapHealth")
	return scrape.Health{OK: ok, LatencyMs: latency}
}
