//go:build integration
// +build integration

package runlog

import (
	"context"
	"database/sql"
	"os"
	"strings"
	"testing"

	_ "github.com/lib/pq"

	"github.com/XavierBriggs/fortuna/internal/domain"
	"github.com/XavierBriggs/fortuna/internal/store"
)

func testDB(t *testing.T) *sql.DB {
	t.Helper()

	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	ctx := context.Background()
	if err := store.Migrate(ctx, db); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	t.Cleanup(func() {
		for _, table := range []string{"scrape_phase_logs", "scrape_errors", "scrape_runs"} {
			db.Exec("DELETE FROM " + table)
		}
		db.Close()
	})
	return db
}

var allPlatforms = []domain.Source{domain.SourceReference, domain.SourceSportybet, domain.SourceBet9ja}

func TestRunLifecycle(t *testing.T) {
	db := testDB(t)
	s := New(db)
	ctx := context.Background()

	runID, err := s.OpenRun(ctx, domain.TriggerManual, allPlatforms)
	if err != nil {
		t.Fatalf("OpenRun: %v", err)
	}

	run, err := s.GetRun(ctx, runID)
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if run.Status != domain.RunStatusRunning {
		t.Errorf("fresh run status = %s, want running", run.Status)
	}
	for _, p := range allPlatforms {
		if run.PlatformStatus[p] != domain.PlatformPending {
			t.Errorf("platform %s status = %s, want pending", p, run.PlatformStatus[p])
		}
	}

	ref := domain.SourceReference
	count := 12
	if err := s.RecordPhase(ctx, runID, &ref, domain.PhaseScraping, &count, "fetching events", nil); err != nil {
		t.Fatalf("RecordPhase: %v", err)
	}
	if err := s.SetPlatformStatus(ctx, runID, ref, domain.PlatformCompleted); err != nil {
		t.Fatalf("SetPlatformStatus: %v", err)
	}
	if err := s.RecordPlatformTiming(ctx, runID, ref, 1234, 12); err != nil {
		t.Fatalf("RecordPlatformTiming: %v", err)
	}
	if err := s.CloseRun(ctx, runID, domain.RunStatusPartial); err != nil {
		t.Fatalf("CloseRun: %v", err)
	}

	run, err = s.GetRun(ctx, runID)
	if err != nil {
		t.Fatalf("GetRun after close: %v", err)
	}
	if run.Status != domain.RunStatusPartial {
		t.Errorf("closed status = %s, want partial", run.Status)
	}
	if run.CompletedAt == nil || run.CompletedAt.Before(run.StartedAt) {
		t.Errorf("completed_at %v must follow started_at %v", run.CompletedAt, run.StartedAt)
	}
	if got := run.PlatformTimings[ref]; got.DurationMs != 1234 || got.EventsCount != 12 {
		t.Errorf("platform timing = %+v", got)
	}
	if run.CurrentPhase != nil || run.CurrentPlatform != nil {
		t.Error("terminal run must clear current phase/platform")
	}
}

func TestErrorMessageTruncated(t *testing.T) {
	db := testDB(t)
	s := New(db)
	ctx := context.Background()

	runID, err := s.OpenRun(ctx, domain.TriggerManual, allPlatforms)
	if err != nil {
		t.Fatalf("OpenRun: %v", err)
	}

	ref := domain.SourceReference
	long := strings.Repeat("x", 5000)
	if err := s.RecordError(ctx, runID, &ref, domain.ErrParse, long); err != nil {
		t.Fatalf("RecordError: %v", err)
	}

	errs, err := s.ListErrors(ctx, runID, 10, 0)
	if err != nil {
		t.Fatalf("ListErrors: %v", err)
	}
	if len(errs) != 1 {
		t.Fatalf("expected 1 error, got %d", len(errs))
	}
	if len(errs[0].Message) != 1000 {
		t.Errorf("message length = %d, want 1000", len(errs[0].Message))
	}
}

func TestRetryPlatforms(t *testing.T) {
	db := testDB(t)
	s := New(db)
	ctx := context.Background()

	runID, err := s.OpenRun(ctx, domain.TriggerManual, allPlatforms)
	if err != nil {
		t.Fatalf("OpenRun: %v", err)
	}

	newRunID, err := s.RetryPlatforms(ctx, runID, []domain.Source{domain.SourceSportybet})
	if err != nil {
		t.Fatalf("RetryPlatforms: %v", err)
	}
	if newRunID == runID {
		t.Fatal("retry must create a new run")
	}

	retry, err := s.GetRun(ctx, newRunID)
	if err != nil {
		t.Fatalf("GetRun(retry): %v", err)
	}
	if retry.Trigger != domain.TriggerRetry {
		t.Errorf("retry trigger = %s, want retry", retry.Trigger)
	}
	if len(retry.PlatformStatus) != 1 {
		t.Errorf("retry platforms = %v, want exactly the requested subset", retry.PlatformStatus)
	}
	if _, ok := retry.PlatformStatus[domain.SourceSportybet]; !ok {
		t.Error("retry run missing sportybet")
	}

	// A platform outside the source run is rejected.
	if _, err := s.RetryPlatforms(ctx, runID, []domain.Source{"betway"}); err == nil {
		t.Error("expected retry with unknown platform to fail")
	}
}

func TestStats24h(t *testing.T) {
	db := testDB(t)
	s := New(db)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		runID, err := s.OpenRun(ctx, domain.TriggerScheduled, allPlatforms)
		if err != nil {
			t.Fatalf("OpenRun: %v", err)
		}
		if err := s.CloseRun(ctx, runID, domain.RunStatusCompleted); err != nil {
			t.Fatalf("CloseRun: %v", err)
		}
	}

	stats, err := s.Stats24h(ctx)
	if err != nil {
		t.Fatalf("Stats24h: %v", err)
	}
	if stats.TotalRuns < 3 || stats.Runs24h < 3 {
		t.Errorf("stats = %+v, want at least 3 runs counted", stats)
	}
}
