package broadcast

import (
	"time"

	"github.com/XavierBriggs/fortuna/internal/domain"
)

// Topics subscribers can register for.
const (
	TopicScrapeProgress = "scrape_progress"
	TopicOddsUpdates    = "odds_updates"
)

// ErrorInfo is the error payload carried inside a progress event.
type ErrorInfo struct {
	Type        domain.ErrorType `json:"type"`
	Message     string           `json:"message"`
	Recoverable bool             `json:"recoverable"`
}

// Event is one progress or odds-update message. Phase events for one
// (run, platform) are delivered in causal order; the replay cache keeps the
// last event per (topic, run, platform) for new subscribers.
type Event struct {
	Topic       string         `json:"-"`
	RunID       int64          `json:"run_id"`
	Platform    *domain.Source `json:"platform,omitempty"`
	Phase       string         `json:"phase"`
	Current     int            `json:"current"`
	Total       int            `json:"total"`
	EventsCount int            `json:"events_count"`
	ElapsedMs   int64          `json:"elapsed_ms"`
	Message     string         `json:"message"`
	Error       *ErrorInfo     `json:"error,omitempty"`
	Timestamp   time.Time      `json:"timestamp"`

	// SnapshotID carries the cache-invalidation hint on odds_updates events.
	SnapshotID int64 `json:"snapshot_id,omitempty"`
	Bookmaker  string `json:"bookmaker,omitempty"`
}

// Envelope is the wire shape sent to WebSocket subscribers.
type Envelope struct {
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Data      Event     `json:"data"`
}
