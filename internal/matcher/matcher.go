// Package matcher implements the Fixture Matcher (component F): it links a
// per-source fixture row to its canonical Event via the correlation ID,
// tolerating out-of-order arrival across bookmakers. Unification of
// duplicate events runs at ingest, not as an offline job.
package matcher

import (
	"context"
	"database/sql"
	"time"

	"github.com/lib/pq"

	"github.com/XavierBriggs/fortuna/internal/apperror"
)

// kickoffTolerance is the window for the best-effort fallback match when a
// fixture arrives without a correlation ID.
const kickoffTolerance = 30 * time.Minute

// pqUniqueViolation is Postgres error code 23505.
const pqUniqueViolation = "23505"

// Fixture is one source fixture row as observed during a scrape.
type Fixture struct {
	BookmakerID     int64
	ExternalEventID string
	CorrelationID   *string
	HomeTeam        string
	AwayTeam        string
	KickoffTime     time.Time
	SportID         *int64
	TournamentID    *int64
}

// Matcher resolves fixtures to canonical events.
type Matcher struct {
	db *sql.DB
}

// New constructs a Matcher over the shared pool.
func New(db *sql.DB) *Matcher {
	return &Matcher{db: db}
}

// Resolve returns the canonical event id for a fixture, creating the Event
// and/or FixtureLink as needed. The whole resolution is one transaction; a
// unique-constraint violation means a concurrent task won the race, so the
// resolution restarts from the top and finds that task's rows.
func (m *Matcher) Resolve(ctx context.Context, f Fixture) (int64, error) {
	for attempt := 0; attempt < 3; attempt++ {
		eventID, err := m.resolveOnce(ctx, f)
		if err == nil {
			return eventID, nil
		}
		if isUniqueViolation(err) {
			continue
		}
		return 0, err
	}
	return 0, apperror.Storage("fixture resolution kept losing races", nil)
}

func (m *Matcher) resolveOnce(ctx context.Context, f Fixture) (int64, error) {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, apperror.Storage("failed to begin matcher transaction", err)
	}
	defer tx.Rollback()

	// Step 1: an existing link for (bookmaker, external id) wins.
	var linkedEventID int64
	var linkedCorrelation sql.NullString
	err = tx.QueryRowContext(ctx, `
		SELECT fl.event_id, e.correlation_id
		FROM fixture_links fl
		JOIN events e ON e.id = fl.event_id
		WHERE fl.bookmaker_id = $1 AND fl.external_event_id = $2`,
		f.BookmakerID, f.ExternalEventID,
	).Scan(&linkedEventID, &linkedCorrelation)
	switch {
	case err == nil:
		// Out-of-order remediation: the link may point at an orphan event
		// created before the correlation ID was known. If a canonical event
		// with this correlation now exists, fold the orphan into it.
		if f.CorrelationID != nil && !linkedCorrelation.Valid {
			eventID, merged, mErr := m.mergeOrphan(ctx, tx, linkedEventID, *f.CorrelationID)
			if mErr != nil {
				return 0, mErr
			}
			if merged {
				if cErr := tx.Commit(); cErr != nil {
					return 0, apperror.Storage("failed to commit orphan merge", cErr)
				}
				return eventID, nil
			}
		}
		return linkedEventID, tx.Commit()
	case err != sql.ErrNoRows:
		return 0, apperror.Storage("failed to look up fixture link", err)
	}

	// Step 2: match by correlation ID.
	if f.CorrelationID != nil {
		var eventID int64
		err = tx.QueryRowContext(ctx, `SELECT id FROM events WHERE correlation_id = $1`, *f.CorrelationID).Scan(&eventID)
		switch {
		case err == nil:
			if err := insertLink(ctx, tx, eventID, f); err != nil {
				return 0, err
			}
			return eventID, tx.Commit()
		case err != sql.ErrNoRows:
			return 0, apperror.Storage("failed to look up event by correlation id", err)
		}

		eventID, err = insertEvent(ctx, tx, f, f.CorrelationID)
		if err != nil {
			return 0, err
		}
		if err := insertLink(ctx, tx, eventID, f); err != nil {
			return 0, err
		}
		return eventID, tx.Commit()
	}

	// Step 3: no correlation ID — best-effort match by teams and kickoff,
	// else create an orphan event visible only through this bookmaker.
	var eventID int64
	err = tx.QueryRowContext(ctx, `
		SELECT id FROM events
		WHERE home_team = $1 AND away_team = $2
		  AND kickoff_time BETWEEN $3 AND $4
		ORDER BY id
		LIMIT 1`,
		f.HomeTeam, f.AwayTeam,
		f.KickoffTime.Add(-kickoffTolerance).UTC(), f.KickoffTime.Add(kickoffTolerance).UTC(),
	).Scan(&eventID)
	switch {
	case err == sql.ErrNoRows:
		eventID, err = insertEvent(ctx, tx, f, nil)
		if err != nil {
			return 0, err
		}
	case err != nil:
		return 0, apperror.Storage("failed best-effort event lookup", err)
	}

	if err := insertLink(ctx, tx, eventID, f); err != nil {
		return 0, err
	}
	return eventID, tx.Commit()
}

// mergeOrphan unifies an orphan event (no correlation ID) with the canonical
// event carrying correlationID. If one exists, fixture links and snapshots
// move to it and the orphan row is deleted; if none exists, the orphan is
// promoted by stamping correlationID onto it. Returns the id to use and
// whether a merge or promotion happened.
func (m *Matcher) mergeOrphan(ctx context.Context, tx *sql.Tx, orphanID int64, correlationID string) (int64, bool, error) {
	var canonicalID int64
	err := tx.QueryRowContext(ctx, `SELECT id FROM events WHERE correlation_id = $1`, correlationID).Scan(&canonicalID)
	switch {
	case err == sql.ErrNoRows:
		// No canonical event yet: promote the orphan by stamping the
		// correlation ID onto it.
		_, err = tx.ExecContext(ctx, `UPDATE events SET correlation_id = $1 WHERE id = $2`, correlationID, orphanID)
		if err != nil {
			return 0, false, wrapStorage("failed to promote orphan event", err)
		}
		return orphanID, true, nil
	case err != nil:
		return 0, false, apperror.Storage("failed canonical event lookup", err)
	case canonicalID == orphanID:
		return orphanID, false, nil
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE fixture_links SET event_id = $1, correlation_id = $2
		WHERE event_id = $3`, canonicalID, correlationID, orphanID); err != nil {
		return 0, false, wrapStorage("failed to transfer fixture links", err)
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE snapshots SET event_id = $1 WHERE event_id = $2`, canonicalID, orphanID); err != nil {
		return 0, false, wrapStorage("failed to transfer snapshots", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM events WHERE id = $1`, orphanID); err != nil {
		return 0, false, wrapStorage("failed to delete orphan event", err)
	}

	return canonicalID, true, nil
}

func insertEvent(ctx context.Context, tx *sql.Tx, f Fixture, correlationID *string) (int64, error) {
	var eventID int64
	err := tx.QueryRowContext(ctx, `
		INSERT INTO events (sport_id, tournament_id, home_team, away_team, kickoff_time, correlation_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`,
		nullInt(f.SportID), nullInt(f.TournamentID), f.HomeTeam, f.AwayTeam, f.KickoffTime.UTC(), nullStr(correlationID),
	).Scan(&eventID)
	if err != nil {
		return 0, wrapStorage("failed to insert event", err)
	}
	return eventID, nil
}

func insertLink(ctx context.Context, tx *sql.Tx, eventID int64, f Fixture) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO fixture_links (event_id, bookmaker_id, external_event_id, correlation_id)
		VALUES ($1, $2, $3, $4)`,
		eventID, f.BookmakerID, f.ExternalEventID, nullStr(f.CorrelationID),
	)
	if err != nil {
		return wrapStorage("failed to insert fixture link", err)
	}
	return nil
}

// wrapStorage keeps unique violations detectable through the apperror wrap
// so Resolve can restart the transaction instead of failing the event.
func wrapStorage(msg string, err error) error {
	if isUniqueViolation(err) {
		return err
	}
	return apperror.Storage(msg, err)
}

func isUniqueViolation(err error) bool {
	if pqErr, ok := err.(*pq.Error); ok {
		return string(pqErr.Code) == pqUniqueViolation
	}
	return false
}

func nullStr(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullInt(i *int64) sql.NullInt64 {
	if i == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *i, Valid: true}
}
