// Package store implements the Snapshot Store (component E): append-only,
// time-ordered odds snapshots over range-partitioned Postgres tables, with
// the read contracts the History Query Service builds on.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/XavierBriggs/fortuna/internal/apperror"
	"github.com/XavierBriggs/fortuna/internal/domain"
	"github.com/XavierBriggs/fortuna/internal/oddsmath"
)

// Store is the snapshot persistence layer. One Store shares the process-wide
// connection pool; a transaction is held only for the duration of one
// snapshot insert.
type Store struct {
	db *sql.DB
}

// New constructs a Store over the shared pool.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// AppendSnapshot persists one observation for (event, bookmaker) at
// captureTime, in a single transaction. Margin is computed here from the
// active outcomes, so stored margins are consistent regardless of what the
// caller precomputed. The store does not deduplicate identical snapshots;
// at-least-once callers dedupe with their own idempotency key.
func (s *Store) AppendSnapshot(ctx context.Context, eventID, bookmakerID int64, captureTime time.Time, markets []domain.MarketOdds) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, apperror.Storage("failed to begin snapshot transaction", err)
	}
	defer tx.Rollback()

	var snapshotID int64
	err = tx.QueryRowContext(ctx, `
		INSERT INTO snapshots (event_id, bookmaker_id, capture_time)
		VALUES ($1, $2, $3)
		RETURNING id`,
		eventID, bookmakerID, captureTime.UTC(),
	).Scan(&snapshotID)
	if err != nil {
		return 0, apperror.Storage("failed to insert snapshot", err)
	}

	for _, m := range markets {
		odds := make([]float64, len(m.Outcomes))
		active := make([]bool, len(m.Outcomes))
		for i, o := range m.Outcomes {
			odds[i] = o.Odds
			active[i] = o.Active
		}
		margin, err := oddsmath.Margin(odds, active)
		if err != nil {
			return 0, apperror.Storage(fmt.Sprintf("invalid outcomes for market %s", m.ReferenceMarketID), err)
		}

		outcomesJSON, err := json.Marshal(m.Outcomes)
		if err != nil {
			return 0, apperror.Storage("failed to encode outcomes", err)
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO market_odds
				(snapshot_id, capture_time, reference_market_id, reference_market_name, line, outcomes, margin)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			snapshotID, captureTime.UTC(), m.ReferenceMarketID, m.ReferenceMarketName,
			nullFloat(m.Line), outcomesJSON, margin,
		)
		if err != nil {
			return 0, apperror.Storage(fmt.Sprintf("failed to insert market odds for %s", m.ReferenceMarketID), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, apperror.Storage("failed to commit snapshot", err)
	}

	return snapshotID, nil
}

// LatestSnapshot returns the most recent snapshot for (event, bookmaker)
// with its market odds, or nil if none exists.
func (s *Store) LatestSnapshot(ctx context.Context, eventID, bookmakerID int64) (*domain.Snapshot, error) {
	var snap domain.Snapshot
	err := s.db.QueryRowContext(ctx, `
		SELECT id, event_id, bookmaker_id, capture_time
		FROM snapshots
		WHERE event_id = $1 AND bookmaker_id = $2
		ORDER BY capture_time DESC
		LIMIT 1`,
		eventID, bookmakerID,
	).Scan(&snap.ID, &snap.EventID, &snap.BookmakerID, &snap.CaptureTime)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, apperror.Storage("failed to query latest snapshot", err)
	}

	markets, err := s.marketOddsFor(ctx, snap.ID)
	if err != nil {
		return nil, err
	}
	snap.MarketOdds = markets
	return &snap, nil
}

// SnapshotsBetween returns the snapshots for (event, bookmaker) within
// [from, to], ordered by capture_time ascending. Market odds are not loaded.
func (s *Store) SnapshotsBetween(ctx context.Context, eventID, bookmakerID int64, from, to time.Time) ([]domain.Snapshot, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, event_id, bookmaker_id, capture_time
		FROM snapshots
		WHERE event_id = $1 AND bookmaker_id = $2
		  AND capture_time >= $3 AND capture_time <= $4
		ORDER BY capture_time ASC`,
		eventID, bookmakerID, from.UTC(), to.UTC(),
	)
	if err != nil {
		return nil, apperror.Storage("failed to query snapshots", err)
	}
	defer rows.Close()

	var snaps []domain.Snapshot
	for rows.Next() {
		var snap domain.Snapshot
		if err := rows.Scan(&snap.ID, &snap.EventID, &snap.BookmakerID, &snap.CaptureTime); err != nil {
			return nil, apperror.Storage("failed to scan snapshot", err)
		}
		snaps = append(snaps, snap)
	}
	return snaps, rows.Err()
}

// HistoryPoint is one observation in a market's time series.
type HistoryPoint struct {
	CaptureTime time.Time        `json:"capture_time"`
	Line        *float64         `json:"line,omitempty"`
	Outcomes    []domain.Outcome `json:"outcomes"`
	Margin      float64          `json:"margin"`
}

// MarketHistory returns the time series of one market on (event, bookmaker)
// within [from, to]. When line is non-nil it is applied as a filter; omitting
// it on a specifier market interleaves lines and makes the series meaningless,
// so callers querying a specifier market pass the line they care about.
func (s *Store) MarketHistory(ctx context.Context, eventID, bookmakerID int64, referenceMarketID string, line *float64, from, to time.Time) ([]HistoryPoint, error) {
	query, args := marketHistoryQuery(eventID, bookmakerID, referenceMarketID, line, from, to)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperror.Storage("failed to query market history", err)
	}
	defer rows.Close()

	var points []HistoryPoint
	for rows.Next() {
		var p HistoryPoint
		var lineVal sql.NullFloat64
		var outcomesJSON []byte
		if err := rows.Scan(&p.CaptureTime, &lineVal, &outcomesJSON, &p.Margin); err != nil {
			return nil, apperror.Storage("failed to scan history point", err)
		}
		if lineVal.Valid {
			v := lineVal.Float64
			p.Line = &v
		}
		if err := json.Unmarshal(outcomesJSON, &p.Outcomes); err != nil {
			return nil, apperror.Storage("failed to decode outcomes", err)
		}
		points = append(points, p)
	}
	return points, rows.Err()
}

// marketHistoryQuery builds the history query. Factored out so the
// line-filter behavior is testable without a database.
func marketHistoryQuery(eventID, bookmakerID int64, referenceMarketID string, line *float64, from, to time.Time) (string, []interface{}) {
	query := `
		SELECT s.capture_time, m.line, m.outcomes, m.margin
		FROM market_odds m
		JOIN snapshots s ON s.id = m.snapshot_id
		WHERE s.event_id = $1 AND s.bookmaker_id = $2
		  AND m.reference_market_id = $3
		  AND s.capture_time >= $4 AND s.capture_time <= $5`
	args := []interface{}{eventID, bookmakerID, referenceMarketID, from.UTC(), to.UTC()}

	if line != nil {
		query += fmt.Sprintf(" AND m.line = $%d", len(args)+1)
		args = append(args, *line)
	}

	query += " ORDER BY s.capture_time ASC"
	return query, args
}

func (s *Store) marketOddsFor(ctx context.Context, snapshotID int64) ([]domain.MarketOdds, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, snapshot_id, reference_market_id, reference_market_name, line, outcomes, margin
		FROM market_odds
		WHERE snapshot_id = $1
		ORDER BY reference_market_id, line NULLS FIRST`,
		snapshotID,
	)
	if err != nil {
		return nil, apperror.Storage("failed to query market odds", err)
	}
	defer rows.Close()

	var markets []domain.MarketOdds
	for rows.Next() {
		var m domain.MarketOdds
		var line sql.NullFloat64
		var outcomesJSON []byte
		if err := rows.Scan(&m.ID, &m.SnapshotID, &m.ReferenceMarketID, &m.ReferenceMarketName, &line, &outcomesJSON, &m.Margin); err != nil {
			return nil, apperror.Storage("failed to scan market odds", err)
		}
		if line.Valid {
			v := line.Float64
			m.Line = &v
		}
		if err := json.Unmarshal(outcomesJSON, &m.Outcomes); err != nil {
			return nil, apperror.Storage("failed to decode outcomes", err)
		}
		markets = append(markets, m)
	}
	return markets, rows.Err()
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}
