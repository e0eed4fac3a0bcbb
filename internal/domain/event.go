package domain

import "time"

// Event is a real-world fixture, unified across sources by CorrelationID when present.
// An Event with a nil CorrelationID is unmatchable and appears in only one source's view.
type Event struct {
	ID            int64     `json:"id"`
	SportID       int64     `json:"sport_id"`
	TournamentID  int64     `json:"tournament_id"`
	HomeTeam      string    `json:"home_team"`
	AwayTeam      string    `json:"away_team"`
	KickoffTime   time.Time `json:"kickoff_time"`
	CorrelationID *string   `json:"correlation_id,omitempty"`
}

// FixtureLink ties a per-bookmaker external fixture row to a canonical Event.
// A FixtureLink may exist before its Event does; the Matcher resolves it lazily.
type FixtureLink struct {
	ID              int64   `json:"id"`
	EventID         int64   `json:"event_id"`
	BookmakerID     int64   `json:"bookmaker_id"`
	ExternalEventID string  `json:"external_event_id"`
	CorrelationID   *string `json:"correlation_id,omitempty"`
}
