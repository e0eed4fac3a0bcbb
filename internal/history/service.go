// Package history implements the read-only History Query Service
// (component G): event listings with key-market summaries, per-bookmaker
// event detail, odds/margin time series, and coverage statistics.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/XavierBriggs/fortuna/internal/apperror"
	"github.com/XavierBriggs/fortuna/internal/cache"
	"github.com/XavierBriggs/fortuna/internal/domain"
	"github.com/XavierBriggs/fortuna/internal/registry"
	"github.com/XavierBriggs/fortuna/internal/store"
)

const (
	maxPageSize     = 100
	defaultPageSize = 25
	defaultWindow   = 30 * 24 * time.Hour
)

// keyMarketCanonicalIDs is the fixed set list_events summarizes per
// bookmaker: match result, total goals at the 2.5 line, both teams to score.
var keyMarketCanonicalIDs = []string{"1x2", "over_under", "btts"}

const keyOverUnderLine = 2.5

// Service answers historical queries. The snapshot cache is optional; when
// present, latest-snapshot reads go through it.
type Service struct {
	db        *sql.DB
	store     *store.Store
	reg       *registry.Registry
	snapshots *cache.Snapshots
}

// New constructs a Service. snapshots may be nil.
func New(db *sql.DB, st *store.Store, reg *registry.Registry, snapshots *cache.Snapshots) *Service {
	return &Service{db: db, store: st, reg: reg, snapshots: snapshots}
}

// ListParams filters the event listing.
type ListParams struct {
	KickoffFrom    *time.Time
	KickoffTo      *time.Time
	TournamentID   *int64
	SportID        *int64
	MinBookmakers  int
	IncludeStarted bool
	Page           int
	PageSize       int
}

// EventSummary is one listing row: the event plus the key-market odds from
// each bookmaker's latest snapshot.
type EventSummary struct {
	Event          domain.Event                   `json:"event"`
	BookmakerCount int                            `json:"bookmaker_count"`
	KeyMarkets     map[string][]domain.MarketOdds `json:"key_markets"`
}

// EventDetail is the full per-bookmaker market list from latest snapshots.
type EventDetail struct {
	Event              domain.Event                   `json:"event"`
	MarketsByBookmaker map[string][]domain.MarketOdds `json:"markets_by_bookmaker"`
}

// ListEvents returns a page of events within the kickoff window with their
// key-market summaries.
func (s *Service) ListEvents(ctx context.Context, p ListParams) ([]EventSummary, int, error) {
	normalizeListParams(&p)

	query := `
		SELECT e.id, e.sport_id, e.tournament_id, e.home_team, e.away_team,
		       e.kickoff_time, e.correlation_id,
		       COUNT(DISTINCT fl.bookmaker_id) AS bookmaker_count,
		       COUNT(*) OVER() AS total
		FROM events e
		LEFT JOIN fixture_links fl ON fl.event_id = e.id
		WHERE e.kickoff_time >= $1 AND e.kickoff_time <= $2`
	args := []interface{}{p.KickoffFrom.UTC(), p.KickoffTo.UTC()}

	if p.TournamentID != nil {
		query += fmt.Sprintf(" AND e.tournament_id = $%d", len(args)+1)
		args = append(args, *p.TournamentID)
	}
	if p.SportID != nil {
		query += fmt.Sprintf(" AND e.sport_id = $%d", len(args)+1)
		args = append(args, *p.SportID)
	}
	if !p.IncludeStarted {
		query += fmt.Sprintf(" AND e.kickoff_time > $%d", len(args)+1)
		args = append(args, time.Now().UTC())
	}

	query += " GROUP BY e.id"
	if p.MinBookmakers > 0 {
		query += fmt.Sprintf(" HAVING COUNT(DISTINCT fl.bookmaker_id) >= $%d", len(args)+1)
		args = append(args, p.MinBookmakers)
	}
	query += fmt.Sprintf(" ORDER BY e.kickoff_time ASC LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	args = append(args, p.PageSize, (p.Page-1)*p.PageSize)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, apperror.Storage("failed to list events", err)
	}
	defer rows.Close()

	var summaries []EventSummary
	total := 0
	for rows.Next() {
		var ev domain.Event
		var sportID, tournamentID sql.NullInt64
		var correlationID sql.NullString
		var count int
		if err := rows.Scan(&ev.ID, &sportID, &tournamentID, &ev.HomeTeam, &ev.AwayTeam,
			&ev.KickoffTime, &correlationID, &count, &total); err != nil {
			return nil, 0, apperror.Storage("failed to scan event", err)
		}
		ev.SportID = sportID.Int64
		ev.TournamentID = tournamentID.Int64
		if correlationID.Valid {
			c := correlationID.String
			ev.CorrelationID = &c
		}
		summaries = append(summaries, EventSummary{Event: ev, BookmakerCount: count})
	}
	if err := rows.Err(); err != nil {
		return nil, 0, apperror.Storage("failed iterating events", err)
	}

	bookmakers, err := s.store.Bookmakers(ctx)
	if err != nil {
		return nil, 0, err
	}

	for i := range summaries {
		summaries[i].KeyMarkets = make(map[string][]domain.MarketOdds, len(bookmakers))
		for _, b := range bookmakers {
			snap, err := s.latestSnapshot(ctx, summaries[i].Event.ID, b.ID)
			if err != nil {
				return nil, 0, err
			}
			if snap == nil {
				continue
			}
			if key := s.filterKeyMarkets(snap.MarketOdds); len(key) > 0 {
				summaries[i].KeyMarkets[b.Slug] = key
			}
		}
	}

	return summaries, total, nil
}

// GetEventDetail returns the event with every bookmaker's full market list
// from its latest snapshot, or nil when the event does not exist.
func (s *Service) GetEventDetail(ctx context.Context, eventID int64) (*EventDetail, error) {
	var ev domain.Event
	var sportID, tournamentID sql.NullInt64
	var correlationID sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT id, sport_id, tournament_id, home_team, away_team, kickoff_time, correlation_id
		FROM events WHERE id = $1`, eventID,
	).Scan(&ev.ID, &sportID, &tournamentID, &ev.HomeTeam, &ev.AwayTeam, &ev.KickoffTime, &correlationID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, apperror.Storage("failed to load event", err)
	}
	ev.SportID = sportID.Int64
	ev.TournamentID = tournamentID.Int64
	if correlationID.Valid {
		c := correlationID.String
		ev.CorrelationID = &c
	}

	detail := &EventDetail{Event: ev, MarketsByBookmaker: make(map[string][]domain.MarketOdds)}

	bookmakers, err := s.store.Bookmakers(ctx)
	if err != nil {
		return nil, err
	}
	for _, b := range bookmakers {
		snap, err := s.latestSnapshot(ctx, eventID, b.ID)
		if err != nil {
			return nil, err
		}
		if snap == nil {
			continue
		}
		detail.MarketsByBookmaker[b.Slug] = snap.MarketOdds
	}

	return detail, nil
}

// OddsHistory returns the outcome+margin time series for one market on one
// bookmaker. line MUST be passed for specifier markets; it is applied
// whenever non-nil.
func (s *Service) OddsHistory(ctx context.Context, eventID int64, referenceMarketID, bookmakerSlug string, line *float64, from, to time.Time) ([]store.HistoryPoint, error) {
	b, err := s.store.BookmakerBySlug(ctx, bookmakerSlug)
	if err != nil {
		return nil, err
	}
	return s.store.MarketHistory(ctx, eventID, b.ID, referenceMarketID, line, from, to)
}

// MarginPoint is one margin-only observation.
type MarginPoint struct {
	CaptureTime time.Time `json:"capture_time"`
	Margin      float64   `json:"margin"`
}

// MarginHistory is the lightweight margin-only series.
func (s *Service) MarginHistory(ctx context.Context, eventID int64, referenceMarketID, bookmakerSlug string, line *float64, from, to time.Time) ([]MarginPoint, error) {
	points, err := s.OddsHistory(ctx, eventID, referenceMarketID, bookmakerSlug, line, from, to)
	if err != nil {
		return nil, err
	}

	out := make([]MarginPoint, len(points))
	for i, p := range points {
		out[i] = MarginPoint{CaptureTime: p.CaptureTime, Margin: p.Margin}
	}
	return out, nil
}

func (s *Service) latestSnapshot(ctx context.Context, eventID, bookmakerID int64) (*domain.Snapshot, error) {
	if s.snapshots != nil {
		if snap, err := s.snapshots.Get(ctx, eventID, bookmakerID); err == nil && snap != nil {
			return snap, nil
		}
	}

	snap, err := s.store.LatestSnapshot(ctx, eventID, bookmakerID)
	if err != nil {
		return nil, err
	}
	if snap != nil && s.snapshots != nil {
		// Best effort; a cache write failure never fails the read.
		s.snapshots.Set(ctx, snap)
	}
	return snap, nil
}

// filterKeyMarkets keeps the fixed key-market set: 1X2, O/U 2.5, BTTS.
func (s *Service) filterKeyMarkets(markets []domain.MarketOdds) []domain.MarketOdds {
	wanted := make(map[string]bool, len(keyMarketCanonicalIDs))
	overUnderID := ""
	for _, canonical := range keyMarketCanonicalIDs {
		def, ok := s.reg.FindByCanonicalID(canonical)
		if !ok || def.ReferenceMarketID == nil {
			continue
		}
		wanted[*def.ReferenceMarketID] = true
		if canonical == "over_under" {
			overUnderID = *def.ReferenceMarketID
		}
	}

	var key []domain.MarketOdds
	for _, m := range markets {
		if !wanted[m.ReferenceMarketID] {
			continue
		}
		if m.ReferenceMarketID == overUnderID {
			if m.Line == nil || *m.Line != keyOverUnderLine {
				continue
			}
		}
		key = append(key, m)
	}
	return key
}

func normalizeListParams(p *ListParams) {
	now := time.Now().UTC()
	if p.KickoffFrom == nil {
		from := now.Add(-defaultWindow)
		p.KickoffFrom = &from
	}
	if p.KickoffTo == nil {
		to := now.Add(defaultWindow)
		p.KickoffTo = &to
	}
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PageSize < 1 {
		p.PageSize = defaultPageSize
	}
	if p.PageSize > maxPageSize {
		p.PageSize = maxPageSize
	}
}
