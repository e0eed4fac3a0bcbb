//go:build integration
// +build integration

package store

import (
	"context"
	"database/sql"
	"math"
	"os"
	"testing"
	"time"

	_ "github.com/lib/pq"

	"github.com/XavierBriggs/fortuna/internal/domain"
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
	if err := Migrate(ctx, db); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	t.Cleanup(func() {
		for _, table := range []string{"market_odds", "snapshots", "fixture_links", "events"} {
			db.Exec("DELETE FROM " + table)
		}
		db.Close()
	})
	return db
}

func seedEvent(t *testing.T, db *sql.DB) int64 {
	t.Helper()
	var id int64
	err := db.QueryRow(`
		INSERT INTO events (home_team, away_team, kickoff_time)
		VALUES ('Arsenal', 'Chelsea', NOW() + INTERVAL '2 hours')
		RETURNING id`).Scan(&id)
	if err != nil {
		t.Fatalf("failed to seed event: %v", err)
	}
	return id
}

func fp(f float64) *float64 { return &f }

func overUnder(line float64, over, under float64) domain.MarketOdds {
	return domain.MarketOdds{
		ReferenceMarketID:   "1096783",
		ReferenceMarketName: "Total Goals Over/Under",
		Line:                &line,
		Outcomes: []domain.Outcome{
			{Name: "over", Odds: over, Active: true},
			{Name: "under", Odds: under, Active: true},
		},
	}
}

// Three snapshots with lines 7.5/8.5/9.5; querying line=8.5 returns exactly
// that series, and a nil line returns all three interleaved.
func TestOverUnderLineDisambiguation(t *testing.T) {
	db := testDB(t)
	s := New(db)
	ctx := context.Background()

	eventID := seedEvent(t, db)
	bookmaker, err := s.EnsureBookmaker(ctx, domain.SourceReference)
	if err != nil {
		t.Fatalf("EnsureBookmaker: %v", err)
	}

	base := time.Now().UTC().Add(-time.Hour)
	for i, line := range []float64{7.5, 8.5, 9.5} {
		// Distinct odds per line so margins differ per series.
		_, err := s.AppendSnapshot(ctx, eventID, bookmaker.ID, base.Add(time.Duration(i)*time.Minute),
			[]domain.MarketOdds{overUnder(line, 1.90+float64(i)*0.01, 1.90)})
		if err != nil {
			t.Fatalf("AppendSnapshot line %v: %v", line, err)
		}
	}

	from := base.Add(-time.Hour)
	to := base.Add(time.Hour)

	one, err := s.MarketHistory(ctx, eventID, bookmaker.ID, "1096783", fp(8.5), from, to)
	if err != nil {
		t.Fatalf("MarketHistory(line=8.5): %v", err)
	}
	if len(one) != 1 {
		t.Fatalf("line=8.5 returned %d rows, want 1", len(one))
	}
	if one[0].Line == nil || *one[0].Line != 8.5 {
		t.Errorf("returned row has line %v, want 8.5", one[0].Line)
	}

	all, err := s.MarketHistory(ctx, eventID, bookmaker.ID, "1096783", nil, from, to)
	if err != nil {
		t.Fatalf("MarketHistory(line=nil): %v", err)
	}
	if len(all) != 3 {
		t.Errorf("nil line returned %d rows, want 3", len(all))
	}
}

// Stored margin equals (Σ 1/odds − 1) × 100 within 1e-6.
func TestMarginComputedAtIngest(t *testing.T) {
	db := testDB(t)
	s := New(db)
	ctx := context.Background()

	eventID := seedEvent(t, db)
	bookmaker, err := s.EnsureBookmaker(ctx, domain.SourceReference)
	if err != nil {
		t.Fatalf("EnsureBookmaker: %v", err)
	}

	_, err = s.AppendSnapshot(ctx, eventID, bookmaker.ID, time.Now().UTC(), []domain.MarketOdds{{
		ReferenceMarketID:   "1",
		ReferenceMarketName: "Match Result (1X2)",
		Outcomes: []domain.Outcome{
			{Name: "home", Odds: 1.85, Active: true},
			{Name: "draw", Odds: 3.40, Active: true},
			{Name: "away", Odds: 4.20, Active: true},
		},
	}})
	if err != nil {
		t.Fatalf("AppendSnapshot: %v", err)
	}

	snap, err := s.LatestSnapshot(ctx, eventID, bookmaker.ID)
	if err != nil {
		t.Fatalf("LatestSnapshot: %v", err)
	}
	if snap == nil || len(snap.MarketOdds) != 1 {
		t.Fatalf("expected one market, got %+v", snap)
	}

	want := (1/1.85 + 1/3.40 + 1/4.20 - 1) * 100
	if math.Abs(snap.MarketOdds[0].Margin-want) > 1e-6 {
		t.Errorf("stored margin = %v, want %v", snap.MarketOdds[0].Margin, want)
	}
}

// Snapshots inserted in capture order come back time-ordered, and the
// latest-snapshot read returns the newest.
func TestSnapshotOrdering(t *testing.T) {
	db := testDB(t)
	s := New(db)
	ctx := context.Background()

	eventID := seedEvent(t, db)
	bookmaker, err := s.EnsureBookmaker(ctx, domain.SourceSportybet)
	if err != nil {
		t.Fatalf("EnsureBookmaker: %v", err)
	}

	base := time.Now().UTC().Add(-30 * time.Minute)
	var lastID int64
	for i := 0; i < 3; i++ {
		lastID, err = s.AppendSnapshot(ctx, eventID, bookmaker.ID, base.Add(time.Duration(i)*10*time.Minute), nil)
		if err != nil {
			t.Fatalf("AppendSnapshot %d: %v", i, err)
		}
	}

	snaps, err := s.SnapshotsBetween(ctx, eventID, bookmaker.ID, base.Add(-time.Hour), base.Add(time.Hour))
	if err != nil {
		t.Fatalf("SnapshotsBetween: %v", err)
	}
	if len(snaps) != 3 {
		t.Fatalf("expected 3 snapshots, got %d", len(snaps))
	}
	for i := 1; i < len(snaps); i++ {
		if snaps[i].CaptureTime.Before(snaps[i-1].CaptureTime) {
			t.Errorf("snapshots out of capture order at index %d", i)
		}
	}

	latest, err := s.LatestSnapshot(ctx, eventID, bookmaker.ID)
	if err != nil {
		t.Fatalf("LatestSnapshot: %v", err)
	}
	if latest.ID != lastID {
		t.Errorf("latest snapshot id = %d, want %d", latest.ID, lastID)
	}
}

func TestRejectsNonPositiveOdds(t *testing.T) {
	db := testDB(t)
	s := New(db)
	ctx := context.Background()

	eventID := seedEvent(t, db)
	bookmaker, err := s.EnsureBookmaker(ctx, domain.SourceBet9ja)
	if err != nil {
		t.Fatalf("EnsureBookmaker: %v", err)
	}

	_, err = s.AppendSnapshot(ctx, eventID, bookmaker.ID, time.Now().UTC(), []domain.MarketOdds{{
		ReferenceMarketID:   "1",
		ReferenceMarketName: "Match Result (1X2)",
		Outcomes:            []domain.Outcome{{Name: "home", Odds: 0, Active: true}},
	}})
	if err == nil {
		t.Fatal("expected non-positive odds to be rejected")
	}

	if snap, _ := s.LatestSnapshot(ctx, eventID, bookmaker.ID); snap != nil {
		t.Error("rejected snapshot must roll back entirely")
	}
}
