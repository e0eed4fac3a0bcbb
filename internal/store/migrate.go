package store

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"time"
)

//go:embed schema.sql
var schemaFS embed.FS

// Migrate applies the embedded schema. Every statement is idempotent
// (CREATE ... IF NOT EXISTS), so it is safe to run on every boot. The
// partitions for today and the next partitionLookahead days are provisioned
// immediately so inserts work before the PartitionManager's first tick.
func Migrate(ctx context.Context, db *sql.DB) error {
	schema, err := schemaFS.ReadFile("schema.sql")
	if err != nil {
		return fmt.Errorf("failed to read embedded schema: %w", err)
	}

	if _, err := db.ExecContext(ctx, string(schema)); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}

	return ensurePartitions(ctx, db, time.Now().UTC(), partitionLookahead)
}

// Connect opens the shared connection pool with the sizing the concurrency
// model prescribes (~10 open, held only for the duration of a transaction).
func Connect(dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}
