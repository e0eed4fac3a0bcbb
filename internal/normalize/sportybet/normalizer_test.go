package sportybet

import (
	"context"
	"strings"
	"testing"

	"github.com/XavierBriggs/fortuna/internal/normalize"
	"github.com/XavierBriggs/fortuna/internal/registry"
)

func TestOverUnderSpecifierProducesLine(t *testing.T) {
	n := New(registry.New(registry.DefaultDefinitions()))

	raw := normalize.RawEvent{
		Markets: []normalize.RawMarket{
			{
				SourceMarketKey: "18",
				Specifier:       "total=2.5",
				Outcomes: []normalize.RawOutcome{
					{Name: "Over", Odds: 1.9, Active: true},
					{Name: "Under", Odds: 1.9, Active: true},
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
	if mapped[0].Line == nil || *mapped[0].Line != 2.5 {
		t.Fatalf("expected line 2.5, got %v", mapped[0].Line)
	}
}

func TestHandicapPairSplitsIntoTwoMarkets(t *testing.T) {
	n := New(registry.New(registry.DefaultDefinitions()))

	raw := normalize.RawEvent{
		Markets: []normalize.RawMarket{
			{
				SourceMarketKey: "16",
				Specifier:       "hcp=1,2",
				Outcomes: []normalize.RawOutcome{
					{Name: "1", Odds: 1.95, Active: true},
					{Name: "2", Odds: 1.95, Active: true},
				},
			},
		},
	}

	mapped, errs := n.Normalize(context.Background(), raw)
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if len(mapped) != 2 {
		t.Fatalf("expected 2 mapped markets (one per half-line), got %d", len(mapped))
	}
	if *mapped[0].Line != 1 || *mapped[1].Line != 2 {
		t.Fatalf("expected lines [1, 2], got [%v, %v]", *mapped[0].Line, *mapped[1].Line)
	}
}

func TestSpecifierGuardRejectsOverlongStrings(t *testing.T) {
	n := New(registry.New(registry.DefaultDefinitions()))

	raw := normalize.RawEvent{
		Markets: []normalize.RawMarket{
			{
				SourceMarketKey: "18",
				Specifier:       "total=" + strings.Repeat("2", 1001),
				Outcomes:        []normalize.RawOutcome{{Name: "Over", Odds: 1.9, Active: true}},
			},
		},
	}

	mapped, errs := n.Normalize(context.Background(), raw)
	if len(mapped) != 0 {
		t.Fatalf("expected no mapped markets for an overlong specifier")
	}
	if len(errs) != 1 || errs[0].Kind != normalize.InvalidSpecifier {
		t.Fatalf("expected InvalidSpecifier, got %v", errs)
	}
}
