package history

import (
	"context"
	"database/sql"

	"github.com/XavierBriggs/fortuna/internal/apperror"
	"github.com/XavierBriggs/fortuna/internal/domain"
)

// CoverageStats summarizes cross-bookmaker fixture coverage. All counts are
// distinct by correlation_id, not raw FixtureLink rows.
type CoverageStats struct {
	TotalEvents         int            `json:"total_events"`
	MatchedEvents       int            `json:"matched_events"`
	PerBookmakerCount   map[string]int `json:"per_bookmaker_count"`
	CompetitorOnlyCount int            `json:"competitor_only_count"`
}

// CoverageStats computes the coverage summary.
func (s *Service) CoverageStats(ctx context.Context) (CoverageStats, error) {
	stats := CoverageStats{PerBookmakerCount: make(map[string]int)}

	err := s.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM events),
			(SELECT COUNT(*) FROM (
				SELECT e.correlation_id
				FROM events e
				JOIN fixture_links fl ON fl.event_id = e.id
				WHERE e.correlation_id IS NOT NULL
				GROUP BY e.correlation_id
				HAVING COUNT(DISTINCT fl.bookmaker_id) >= 2) matched),
			(SELECT COUNT(*) FROM (
				SELECT e.correlation_id
				FROM events e
				JOIN fixture_links fl ON fl.event_id = e.id
				JOIN bookmakers b ON b.id = fl.bookmaker_id
				WHERE e.correlation_id IS NOT NULL
				GROUP BY e.correlation_id
				HAVING BOOL_AND(b.role = 'competitor')) competitor_only)`,
	).Scan(&stats.TotalEvents, &stats.MatchedEvents, &stats.CompetitorOnlyCount)
	if err != nil {
		return CoverageStats{}, apperror.Storage("failed to compute coverage stats", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT b.slug, COUNT(DISTINCT COALESCE(e.correlation_id, 'orphan:' || e.id::text))
		FROM fixture_links fl
		JOIN bookmakers b ON b.id = fl.bookmaker_id
		JOIN events e ON e.id = fl.event_id
		GROUP BY b.slug`)
	if err != nil {
		return CoverageStats{}, apperror.Storage("failed to compute per-bookmaker coverage", err)
	}
	defer rows.Close()

	for rows.Next() {
		var slug string
		var count int
		if err := rows.Scan(&slug, &count); err != nil {
			return CoverageStats{}, apperror.Storage("failed to scan coverage row", err)
		}
		stats.PerBookmakerCount[slug] = count
	}
	return stats, rows.Err()
}

// UnmatchedEvents returns events with partial platform coverage: fewer
// linked bookmakers than are registered.
func (s *Service) UnmatchedEvents(ctx context.Context, limit, offset int) ([]EventSummary, error) {
	if limit < 1 || limit > maxPageSize {
		limit = defaultPageSize
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT e.id, e.sport_id, e.tournament_id, e.home_team, e.away_team,
		       e.kickoff_time, e.correlation_id,
		       COUNT(DISTINCT fl.bookmaker_id) AS bookmaker_count
		FROM events e
		LEFT JOIN fixture_links fl ON fl.event_id = e.id
		GROUP BY e.id
		HAVING COUNT(DISTINCT fl.bookmaker_id) < (SELECT COUNT(*) FROM bookmakers)
		ORDER BY e.kickoff_time DESC
		LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, apperror.Storage("failed to list unmatched events", err)
	}
	defer rows.Close()

	var out []EventSummary
	for rows.Next() {
		var ev domain.Event
		var sportID, tournamentID sql.NullInt64
		var correlationID sql.NullString
		var count int
		if err := rows.Scan(&ev.ID, &sportID, &tournamentID, &ev.HomeTeam, &ev.AwayTeam,
			&ev.KickoffTime, &correlationID, &count); err != nil {
			return nil, apperror.Storage("failed to scan unmatched event", err)
		}
		ev.SportID = sportID.Int64
		ev.TournamentID = tournamentID.Int64
		if correlationID.Valid {
			c := correlationID.String
			ev.CorrelationID = &c
		}
		out = append(out, EventSummary{Event: ev, BookmakerCount: count})
	}
	return out, rows.Err()
}
