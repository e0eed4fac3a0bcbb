//go:build integration
// +build integration

package matcher

import (
	"context"
	"database/sql"
	"os"
	"testing"
	"time"

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
		for _, table := range []string{"market_odds", "snapshots", "fixture_links", "events", "scrape_phase_logs", "scrape_errors", "scrape_runs"} {
			db.Exec("DELETE FROM " + table)
		}
		db.Close()
	})
	return db
}

func ensureBookmaker(t *testing.T, db *sql.DB, source domain.Source) int64 {
	t.Helper()
	b, err := store.New(db).EnsureBookmaker(context.Background(), source)
	if err != nil {
		t.Fatalf("EnsureBookmaker(%s): %v", source, err)
	}
	return b.ID
}

func strp(s string) *string { return &s }

// Sportybet publishes a fixture before the reference platform does; when the
// reference row arrives with the same correlation id, no duplicate event may
// be created and the reference link must attach to the first event.
func TestOutOfOrderFixtureUnified(t *testing.T) {
	db := testDB(t)
	m := New(db)
	ctx := context.Background()

	sporty := ensureBookmaker(t, db, domain.SourceSportybet)
	ref := ensureBookmaker(t, db, domain.SourceReference)

	kickoff := time.Now().Add(4 * time.Hour).UTC()
	corr := "sr:match:42"

	first, err := m.Resolve(ctx, Fixture{
		BookmakerID: sporty, ExternalEventID: "spo-42", CorrelationID: strp(corr),
		HomeTeam: "Arsenal", AwayTeam: "Chelsea", KickoffTime: kickoff,
	})
	if err != nil {
		t.Fatalf("first resolve: %v", err)
	}

	second, err := m.Resolve(ctx, Fixture{
		BookmakerID: ref, ExternalEventID: "ref-42", CorrelationID: strp(corr),
		HomeTeam: "Arsenal", AwayTeam: "Chelsea", KickoffTime: kickoff,
	})
	if err != nil {
		t.Fatalf("second resolve: %v", err)
	}

	if first != second {
		t.Errorf("same correlation id resolved to different events: %d vs %d", first, second)
	}

	var eventCount int
	db.QueryRow("SELECT COUNT(*) FROM events WHERE correlation_id = $1", corr).Scan(&eventCount)
	if eventCount != 1 {
		t.Errorf("expected 1 event for %s, found %d", corr, eventCount)
	}

	var linkCount int
	db.QueryRow("SELECT COUNT(*) FROM fixture_links WHERE event_id = $1", first).Scan(&linkCount)
	if linkCount != 2 {
		t.Errorf("expected 2 fixture links on event %d, found %d", first, linkCount)
	}
}

func TestResolveReusesExistingLink(t *testing.T) {
	db := testDB(t)
	m := New(db)
	ctx := context.Background()

	sporty := ensureBookmaker(t, db, domain.SourceSportybet)
	f := Fixture{
		BookmakerID: sporty, ExternalEventID: "spo-7", CorrelationID: strp("sr:match:7"),
		HomeTeam: "Barcelona", AwayTeam: "Real Madrid", KickoffTime: time.Now().Add(time.Hour).UTC(),
	}

	first, err := m.Resolve(ctx, f)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	again, err := m.Resolve(ctx, f)
	if err != nil {
		t.Fatalf("re-resolve: %v", err)
	}
	if first != again {
		t.Errorf("re-resolving the same fixture produced a new event: %d vs %d", first, again)
	}
}

// A fixture without a correlation id falls back to a (teams, kickoff ±30min)
// match, and creates an orphan on miss.
func TestNullCorrelationFallback(t *testing.T) {
	db := testDB(t)
	m := New(db)
	ctx := context.Background()

	sporty := ensureBookmaker(t, db, domain.SourceSportybet)
	b9j := ensureBookmaker(t, db, domain.SourceBet9ja)

	kickoff := time.Now().Add(6 * time.Hour).UTC()

	orphan, err := m.Resolve(ctx, Fixture{
		BookmakerID: sporty, ExternalEventID: "spo-9",
		HomeTeam: "Kano Pillars", AwayTeam: "Enyimba", KickoffTime: kickoff,
	})
	if err != nil {
		t.Fatalf("orphan resolve: %v", err)
	}

	// Same teams, kickoff 10 minutes apart: inside the tolerance window.
	matched, err := m.Resolve(ctx, Fixture{
		BookmakerID: b9j, ExternalEventID: "b9j-9",
		HomeTeam: "Kano Pillars", AwayTeam: "Enyimba", KickoffTime: kickoff.Add(10 * time.Minute),
	})
	if err != nil {
		t.Fatalf("fallback resolve: %v", err)
	}
	if orphan != matched {
		t.Errorf("best-effort match failed: %d vs %d", orphan, matched)
	}
}

// An orphan event created before the correlation id was known is unified
// with the canonical event once the fixture reappears carrying the id.
func TestOrphanMergedOnLaterCorrelation(t *testing.T) {
	db := testDB(t)
	m := New(db)
	ctx := context.Background()

	sporty := ensureBookmaker(t, db, domain.SourceSportybet)
	ref := ensureBookmaker(t, db, domain.SourceReference)

	kickoff := time.Now().Add(3 * time.Hour).UTC()
	corr := "sr:match:99"

	// Sportybet saw the fixture before its correlation id was published.
	orphan, err := m.Resolve(ctx, Fixture{
		BookmakerID: sporty, ExternalEventID: "spo-99",
		HomeTeam: "Ajax", AwayTeam: "PSV", KickoffTime: kickoff,
	})
	if err != nil {
		t.Fatalf("orphan resolve: %v", err)
	}

	// Reference publishes the canonical event. Different kickoff bucket so
	// the team fallback cannot have linked them.
	canonical, err := m.Resolve(ctx, Fixture{
		BookmakerID: ref, ExternalEventID: "ref-99", CorrelationID: strp(corr),
		HomeTeam: "Ajax", AwayTeam: "PSV", KickoffTime: kickoff.Add(2 * time.Hour),
	})
	if err != nil {
		t.Fatalf("canonical resolve: %v", err)
	}

	// Sportybet re-scrapes, now carrying the correlation id: its orphan
	// must fold into the canonical event.
	unified, err := m.Resolve(ctx, Fixture{
		BookmakerID: sporty, ExternalEventID: "spo-99", CorrelationID: strp(corr),
		HomeTeam: "Ajax", AwayTeam: "PSV", KickoffTime: kickoff,
	})
	if err != nil {
		t.Fatalf("unifying resolve: %v", err)
	}
	if unified != canonical {
		t.Errorf("orphan not merged into canonical event: got %d, want %d", unified, canonical)
	}

	var orphanExists int
	db.QueryRow("SELECT COUNT(*) FROM events WHERE id = $1", orphan).Scan(&orphanExists)
	if orphanExists != 0 {
		t.Errorf("orphan event %d still exists after merge", orphan)
	}
}
