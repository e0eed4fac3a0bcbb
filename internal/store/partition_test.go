package store

import (
	"strings"
	"testing"
	"time"
)

func TestPartitionNameRoundTrip(t *testing.T) {
	day := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

	name := partitionName("snapshots", day)
	if name != "snapshots_20260801" {
		t.Errorf("partitionName = %q, want snapshots_20260801", name)
	}

	parsed, ok := partitionDay("snapshots", name)
	if !ok {
		t.Fatalf("partitionDay failed to parse %q", name)
	}
	if !parsed.Equal(day) {
		t.Errorf("partitionDay = %v, want %v", parsed, day)
	}
}

func TestPartitionDayRejectsForeignNames(t *testing.T) {
	cases := []struct {
		table string
		name  string
	}{
		{"snapshots", "market_odds_20260801"},
		{"snapshots", "snapshots_default"},
		{"snapshots", "snapshots_2026080"},
		{"market_odds", "market_odds_notaday"},
	}

	for _, tc := range cases {
		if _, ok := partitionDay(tc.table, tc.name); ok {
			t.Errorf("partitionDay(%q, %q) parsed unexpectedly", tc.table, tc.name)
		}
	}
}

func TestMarketHistoryQueryLineFilter(t *testing.T) {
	from := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 7, 31, 0, 0, 0, 0, time.UTC)

	t.Run("line omitted", func(t *testing.T) {
		query, args := marketHistoryQuery(2610, 1, "1096783", nil, from, to)
		if len(args) != 5 {
			t.Fatalf("expected 5 args without line filter, got %d", len(args))
		}
		if strings.Contains(query, "m.line = $6") {
			t.Error("query should not filter by line when line is nil")
		}
	})

	t.Run("line applied", func(t *testing.T) {
		line := 8.5
		query, args := marketHistoryQuery(2610, 1, "1096783", &line, from, to)
		if len(args) != 6 {
			t.Fatalf("expected 6 args with line filter, got %d", len(args))
		}
		if args[5] != 8.5 {
			t.Errorf("line arg = %v, want 8.5", args[5])
		}
		if !strings.Contains(query, "m.line = $6") {
			t.Error("query must filter by line when line is set")
		}
	})
}
