// Package httpx is the shared HTTP facade underlying all three Scraping
// Clients (component C). Grounded on
// game-stats-service/internal/providers/espn/client.go's Client{httpClient,
// userAgent}/fetch(ctx, url) shape, extended with the retry/backoff policy
// and bounded-concurrency fan-out spec §4.C and §9 mandate.
package httpx

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/XavierBriggs/fortuna/internal/apperror"
	"github.com/XavierBriggs/fortuna/internal/scrape/retry"
)

// Client is the shared HTTP facade. One Client is constructed per source and
// kept alive across scrape runs; Close releases its idle connections on
// process shutdown.
type Client struct {
	httpClient *http.Client
	baseURL    string
	userAgent  string
	retryPolicy retry.Policy
}

// New constructs an httpx.Client pointed at baseURL. The underlying transport
// allows at least 10 idle connections per host so the bounded-concurrency
// fan-in of §4.C/§9 is not itself bottlenecked by the pool.
func New(baseURL, userAgent string) *Client {
	transport := &http.Transport{
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
	}
	return &Client{
		httpClient: &http.Client{Timeout: 15 * time.Second, Transport: transport},
		baseURL:    baseURL,
		userAgent:  userAgent,
		retryPolicy: retry.Default(),
	}
}

// Close releases idle connections held by the client.
func (c *Client) Close() {
	c.httpClient.CloseIdleConnections()
}

// Get performs a GET against baseURL+path with the client's retry policy,
// classifying failures per the §7 error taxonomy.
func (c *Client) Get(ctx context.Context, path string) ([]byte, error) {
	var body []byte

	err := c.retryPolicy.Execute(ctx, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
		if err != nil {
			return apperror.Parse("failed to build request", err)
		}
		req.Header.Set("User-Agent", c.userAgent)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return apperror.Network("request failed", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusTooManyRequests {
			return apperror.RateLimit("rate limited", nil)
		}
		if resp.StatusCode >= 500 {
			return apperror.Network("upstream server error", nil)
		}
		if resp.StatusCode != http.StatusOK {
			// Any other 4xx is not retried per §4.C.
			return &apperror.Error{Type: "parse", Message: "unexpected status", Recoverable: false}
		}

		b, err := io.ReadAll(resp.Body)
		if err != nil {
			return apperror.Network("failed reading response body", err)
		}
		body = b
		return nil
	})

	return body, err
}

// CheckHealth performs a lightweight health probe and reports latency,
// satisfying the check_health() → {ok, latency_ms} contract of §4.C.
func (c *Client) CheckHealth(ctx context.Context, path string) (ok bool, latencyMs int64) {
	start := time.Now()
	_, err := c.Get(ctx, path)
	return err == nil, time.Since(start).Milliseconds()
}
