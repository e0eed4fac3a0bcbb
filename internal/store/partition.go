package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// partitionLookahead is how many daily partitions are pre-provisioned ahead
// of today.
const partitionLookahead = 7

var partitionedTables = []string{"snapshots", "market_odds"}

// PartitionManager maintains the daily range partitions of snapshots and
// market_odds: it pre-provisions partitions 7 days ahead and drops whole
// partitions older than the retention horizon, so retention never needs a
// per-row delete.
type PartitionManager struct {
	db            *sql.DB
	retentionDays int
	interval      time.Duration
	log           zerolog.Logger
}

// NewPartitionManager builds a manager with the given retention horizon in days.
func NewPartitionManager(db *sql.DB, retentionDays int, log zerolog.Logger) *PartitionManager {
	return &PartitionManager{
		db:            db,
		retentionDays: retentionDays,
		interval:      1 * time.Hour,
		log:           log.With().Str("component", "partition-manager").Logger(),
	}
}

// Run ticks until ctx is cancelled, maintaining partitions on each tick.
func (m *PartitionManager) Run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	if err := m.Maintain(ctx); err != nil {
		m.log.Error().Err(err).Msg("initial partition maintenance failed")
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := m.Maintain(ctx); err != nil {
				m.log.Error().Err(err).Msg("partition maintenance failed")
			}
		}
	}
}

// Maintain provisions upcoming partitions and drops expired ones.
func (m *PartitionManager) Maintain(ctx context.Context) error {
	now := time.Now().UTC()

	if err := ensurePartitions(ctx, m.db, now, partitionLookahead); err != nil {
		return err
	}
	return m.dropExpired(ctx, now)
}

func (m *PartitionManager) dropExpired(ctx context.Context, now time.Time) error {
	horizon := dayStart(now).AddDate(0, 0, -m.retentionDays)

	for _, table := range partitionedTables {
		rows, err := m.db.QueryContext(ctx, `
			SELECT c.relname
			FROM pg_inherits i
			JOIN pg_class c ON c.oid = i.inhrelid
			JOIN pg_class p ON p.oid = i.inhparent
			WHERE p.relname = $1`, table)
		if err != nil {
			return fmt.Errorf("failed to list partitions of %s: %w", table, err)
		}

		var names []string
		for rows.Next() {
			var name string
			if err := rows.Scan(&name); err != nil {
				rows.Close()
				return err
			}
			names = append(names, name)
		}
		rows.Close()

		for _, name := range names {
			day, ok := partitionDay(table, name)
			if !ok {
				continue
			}
			// The partition's upper bound must be at or before the horizon
			// for every row in it to be expired.
			if day.AddDate(0, 0, 1).After(horizon) {
				continue
			}
			if _, err := m.db.ExecContext(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %s", name)); err != nil {
				return fmt.Errorf("failed to drop partition %s: %w", name, err)
			}
			m.log.Info().Str("partition", name).Msg("dropped expired partition")
		}
	}

	return nil
}

// ensurePartitions creates the daily partitions for today through today+days.
func ensurePartitions(ctx context.Context, db *sql.DB, now time.Time, days int) error {
	for offset := 0; offset <= days; offset++ {
		day := dayStart(now).AddDate(0, 0, offset)
		for _, table := range partitionedTables {
			stmt := fmt.Sprintf(
				"CREATE TABLE IF NOT EXISTS %s PARTITION OF %s FOR VALUES FROM ('%s') TO ('%s')",
				partitionName(table, day), table,
				day.Format("2006-01-02"), day.AddDate(0, 0, 1).Format("2006-01-02"),
			)
			if _, err := db.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("failed to create partition of %s for %s: %w", table, day.Format("2006-01-02"), err)
			}
		}
	}
	return nil
}

// partitionName returns the daily partition identifier, e.g. snapshots_20260801.
func partitionName(table string, day time.Time) string {
	return fmt.Sprintf("%s_%s", table, day.Format("20060102"))
}

// partitionDay parses a partition name back into the UTC day it covers.
func partitionDay(table, name string) (time.Time, bool) {
	prefix := table + "_"
	if len(name) != len(prefix)+8 || name[:len(prefix)] != prefix {
		return time.Time{}, false
	}
	day, err := time.Parse("20060102", name[len(prefix):])
	if err != nil {
		return time.Time{}, false
	}
	return day.UTC(), true
}

func dayStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
