package reference

import (
	"context"
	"testing"

	"github.com/XavierBriggs/fortuna/internal/normalize"
	"github.com/XavierBriggs/fortuna/internal/registry"
)

// TestMarginMonotonicClamp is scenario E4 from spec §8.
func TestMarginMonotonicClamp(t *testing.T) {
	n := New(registry.New(registry.DefaultDefinitions()))

	raw := normalize.RawEvent{
		ExternalEventID: "evt-1",
		Markets: []normalize.RawMarket{
			{
				SourceMarketKey: "1",
				Outcomes: []normalize.RawOutcome{
					{Name: "Home", Odds: 1.85, Active: true},
					{Name: "Draw", Odds: 3.40, Active: true},
					{Name: "Away", Odds: 4.20, Active: true},
				},
			},
		},
	}

	mapped, errs := n.Normalize(context.Background(), raw)
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if len(mapped) != 1 {
		t.Fatalf("expected 1 mapped market, got %d", len(mapped))
	}

	want := 7.28
	if diff := mapped[0].Margin - want; diff > 0.01 || diff < -0.01 {
		t.Errorf("margin = %v, want ~%v", mapped[0].Margin, want)
	}
}

func TestUnknownReferenceMarketIsStructuredError(t *testing.T) {
	n := New(registry.New(registry.DefaultDefinitions()))

	raw := normalize.RawEvent{
		Markets: []normalize.RawMarket{
			{SourceMarketKey: "does-not-exist", Outcomes: []normalize.RawOutcome{{Name: "X", Odds: 1.5, Active: true}}},
		},
	}

	mapped, errs := n.Normalize(context.Background(), raw)
	if len(mapped) != 0 {
		t.Fatalf("expected no mapped markets, got %d", len(mapped))
	}
	if len(errs) != 1 || errs[0].Kind != normalize.UnknownMarket {
		t.Fatalf("expected a single UnknownMarket error, got %v", errs)
	}
}

func TestNormalizeIsPureAndDeterministic(t *testing.T) {
	n := New(registry.New(registry.DefaultDefinitions()))
	raw := normalize.RawEvent{
		Markets: []normalize.RawMarket{
			{
				SourceMarketKey: "1",
				Outcomes: []normalize.RawOutcome{
					{Name: "Home", Odds: 1.85, Active: true},
					{Name: "Draw", Odds: 3.40, Active: true},
					{Name: "Away", Odds: 4.20, Active: true},
				},
			},
		},
	}

	first, _ := n.Normalize(context.Background(), raw)
	second, _ := n.Normalize(context.Background(), raw)

	if len(first) != len(second) {
		t.Fatalf("normalize is not deterministic: %d vs %d markets", len(first), len(second))
	}
	for i := range first {
		if first[i].Margin != second[i].Margin || first[i].ReferenceMarketID != second[i].ReferenceMarketID {
			t.Errorf("normalize produced different output on repeated calls")
		}
	}
}
