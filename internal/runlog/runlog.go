// Package runlog persists ScrapeRun lifecycle records (component I): run
// status, per-platform timings, the append-only phase audit log, and the
// error list with its taxonomy.
package runlog

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/XavierBriggs/fortuna/internal/apperror"
	"github.com/XavierBriggs/fortuna/internal/domain"
)

// Store persists run metadata over the shared pool.
type Store struct {
	db *sql.DB
}

// New constructs a Store.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// OpenRun creates a run in status running with every requested platform
// pending, and returns its id.
func (s *Store) OpenRun(ctx context.Context, trigger domain.RunTrigger, platforms []domain.Source) (int64, error) {
	status := make(map[domain.Source]domain.PlatformStatus, len(platforms))
	for _, p := range platforms {
		status[p] = domain.PlatformPending
	}
	statusJSON, err := json.Marshal(status)
	if err != nil {
		return 0, apperror.Storage("failed to encode platform status", err)
	}

	var runID int64
	err = s.db.QueryRowContext(ctx, `
		INSERT INTO scrape_runs (started_at, status, trigger, platform_timings, platform_status)
		VALUES ($1, 'running', $2, '{}', $3)
		RETURNING id`,
		time.Now().UTC(), string(trigger), statusJSON,
	).Scan(&runID)
	if err != nil {
		return 0, apperror.Storage("failed to open run", err)
	}
	return runID, nil
}

// RecordPhase appends a phase-log row and updates the run's current phase
// and platform pointers.
func (s *Store) RecordPhase(ctx context.Context, runID int64, platform *domain.Source, phase domain.Phase, eventsProcessed *int, message string, errDetails *string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return apperror.Storage("failed to begin phase transaction", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO scrape_phase_logs (run_id, platform, phase, started_at, events_processed, message, error_details)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		runID, nullSource(platform), string(phase), time.Now().UTC(),
		nullIntp(eventsProcessed), message, nullStr(errDetails),
	)
	if err != nil {
		return apperror.Storage("failed to append phase log", err)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE scrape_runs SET current_phase = $1, current_platform = $2 WHERE id = $3`,
		string(phase), nullSource(platform), runID,
	)
	if err != nil {
		return apperror.Storage("failed to update run phase", err)
	}

	return tx.Commit()
}

// SetPlatformStatus updates one platform's lifecycle state within the run.
func (s *Store) SetPlatformStatus(ctx context.Context, runID int64, platform domain.Source, status domain.PlatformStatus) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE scrape_runs
		SET platform_status = jsonb_set(platform_status, ARRAY[$1::text], to_jsonb($2::text))
		WHERE id = $3`,
		string(platform), string(status), runID,
	)
	if err != nil {
		return apperror.Storage("failed to set platform status", err)
	}
	return nil
}

// RecordPlatformTiming writes one platform's duration and event count into
// the run's platform_timings map.
func (s *Store) RecordPlatformTiming(ctx context.Context, runID int64, platform domain.Source, durationMs int64, eventsCount int) error {
	timing, err := json.Marshal(domain.PlatformTiming{DurationMs: durationMs, EventsCount: eventsCount})
	if err != nil {
		return apperror.Storage("failed to encode platform timing", err)
	}

	_, err = s.db.ExecContext(ctx, `
		UPDATE scrape_runs
		SET platform_timings = jsonb_set(platform_timings, ARRAY[$1::text], $2::jsonb)
		WHERE id = $3`,
		string(platform), timing, runID,
	)
	if err != nil {
		return apperror.Storage("failed to record platform timing", err)
	}
	return nil
}

// AddEventCounts accumulates scraped/failed event counters on the run.
func (s *Store) AddEventCounts(ctx context.Context, runID int64, scraped, failed int) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE scrape_runs
		SET events_scraped = events_scraped + $1, events_failed = events_failed + $2
		WHERE id = $3`,
		scraped, failed, runID,
	)
	if err != nil {
		return apperror.Storage("failed to add event counts", err)
	}
	return nil
}

// RecordError persists one ScrapeError, truncating the message to the
// 1000-character row-size bound.
func (s *Store) RecordError(ctx context.Context, runID int64, platform *domain.Source, errType domain.ErrorType, message string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO scrape_errors (run_id, platform, error_type, message, occurred_at)
		VALUES ($1, $2, $3, $4, $5)`,
		runID, nullSource(platform), string(errType), domain.TruncateMessage(message), time.Now().UTC(),
	)
	if err != nil {
		return apperror.Storage("failed to record scrape error", err)
	}
	return nil
}

// CloseRun moves the run to its terminal status and clears the current
// phase/platform pointers.
func (s *Store) CloseRun(ctx context.Context, runID int64, finalStatus domain.RunStatus) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE scrape_runs
		SET status = $1, completed_at = $2, current_phase = NULL, current_platform = NULL
		WHERE id = $3`,
		string(finalStatus), time.Now().UTC(), runID,
	)
	if err != nil {
		return apperror.Storage("failed to close run", err)
	}
	return nil
}

// GetRun loads one run with its timing and status maps.
func (s *Store) GetRun(ctx context.Context, runID int64) (*domain.ScrapeRun, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, started_at, completed_at, status, trigger, events_scraped, events_failed,
		       platform_timings, platform_status, current_phase, current_platform
		FROM scrape_runs WHERE id = $1`, runID)

	run, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, apperror.Storage("failed to load run", err)
	}
	return run, nil
}

// ListRuns returns runs newest-first.
func (s *Store) ListRuns(ctx context.Context, limit, offset int) ([]domain.ScrapeRun, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, started_at, completed_at, status, trigger, events_scraped, events_failed,
		       platform_timings, platform_status, current_phase, current_platform
		FROM scrape_runs
		ORDER BY started_at DESC
		LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, apperror.Storage("failed to list runs", err)
	}
	defer rows.Close()

	var runs []domain.ScrapeRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, apperror.Storage("failed to scan run", err)
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

// RunStats is the aggregate the /scrape/stats endpoint serves.
type RunStats struct {
	TotalRuns          int     `json:"total_runs"`
	Runs24h            int     `json:"runs_24h"`
	AvgDurationSeconds float64 `json:"avg_duration_seconds"`
}

// Stats24h reports the total number of runs, the number started in the last
// 24 hours, and the average duration of those recent runs that have completed.
func (s *Store) Stats24h(ctx context.Context) (RunStats, error) {
	var stats RunStats
	err := s.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE started_at > NOW() - INTERVAL '24 hours'),
			COALESCE(AVG(EXTRACT(EPOCH FROM (completed_at - started_at)))
				FILTER (WHERE completed_at IS NOT NULL AND started_at > NOW() - INTERVAL '24 hours'), 0)
		FROM scrape_runs`,
	).Scan(&stats.TotalRuns, &stats.Runs24h, &stats.AvgDurationSeconds)
	if err != nil {
		return RunStats{}, apperror.Storage("failed to aggregate run stats", err)
	}
	return stats, nil
}

// RetryPlatforms opens a new run restricted to the given platforms with
// trigger retry. The platforms must be a subset of the source run's.
func (s *Store) RetryPlatforms(ctx context.Context, runID int64, platforms []domain.Source) (int64, error) {
	source, err := s.GetRun(ctx, runID)
	if err != nil {
		return 0, err
	}
	if source == nil {
		return 0, apperror.Storage("run not found", sql.ErrNoRows)
	}
	for _, p := range platforms {
		if _, ok := source.PlatformStatus[p]; !ok {
			return 0, apperror.Storage("platform "+string(p)+" was not part of run", nil)
		}
	}

	return s.OpenRun(ctx, domain.TriggerRetry, platforms)
}

// ListErrors returns a run's recorded errors, oldest first.
func (s *Store) ListErrors(ctx context.Context, runID int64, limit, offset int) ([]domain.ScrapeError, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, run_id, platform, error_type, message, occurred_at
		FROM scrape_errors
		WHERE run_id = $1
		ORDER BY occurred_at ASC
		LIMIT $2 OFFSET $3`, runID, limit, offset)
	if err != nil {
		return nil, apperror.Storage("failed to list scrape errors", err)
	}
	defer rows.Close()

	var errsOut []domain.ScrapeError
	for rows.Next() {
		var e domain.ScrapeError
		var platform sql.NullString
		if err := rows.Scan(&e.ID, &e.RunID, &platform, &e.ErrorType, &e.Message, &e.OccurredAt); err != nil {
			return nil, apperror.Storage("failed to scan scrape error", err)
		}
		if platform.Valid {
			src := domain.Source(platform.String)
			e.Platform = &src
		}
		errsOut = append(errsOut, e)
	}
	return errsOut, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row rowScanner) (*domain.ScrapeRun, error) {
	var run domain.ScrapeRun
	var completedAt sql.NullTime
	var timingsJSON, statusJSON []byte
	var currentPhase, currentPlatform sql.NullString

	err := row.Scan(&run.ID, &run.StartedAt, &completedAt, &run.Status, &run.Trigger,
		&run.EventsScraped, &run.EventsFailed, &timingsJSON, &statusJSON,
		&currentPhase, &currentPlatform)
	if err != nil {
		return nil, err
	}

	if completedAt.Valid {
		t := completedAt.Time
		run.CompletedAt = &t
	}
	if currentPhase.Valid {
		p := domain.Phase(currentPhase.String)
		run.CurrentPhase = &p
	}
	if currentPlatform.Valid {
		s := domain.Source(currentPlatform.String)
		run.CurrentPlatform = &s
	}
	if err := json.Unmarshal(timingsJSON, &run.PlatformTimings); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(statusJSON, &run.PlatformStatus); err != nil {
		return nil, err
	}
	return &run, nil
}

func nullSource(s *domain.Source) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: string(*s), Valid: true}
}

func nullStr(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullIntp(i *int) sql.NullInt32 {
	if i == nil {
		return sql.NullInt32{}
	}
	return sql.NullInt32{Int32: int32(*i), Valid: true}
}
