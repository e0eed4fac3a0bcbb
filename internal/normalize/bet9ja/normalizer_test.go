package bet9ja

import (
	"context"
	"testing"

	"github.com/XavierBriggs/fortuna/internal/registry"
)

// TestGroupedKeyNormalization is scenario E5 from spec §8.
func TestGroupedKeyNormalization(t *testing.T) {
	n := New(registry.New(registry.DefaultDefinitions()))

	oddsMap := map[string]float64{
		"S_OU@2.5_O": 1.9,
		"S_OU@2.5_U": 1.9,
		"S_OU@3.5_O": 2.6,
		"S_OU@3.5_U": 1.45,
	}

	mapped, errs := n.NormalizeBatch(context.Background(), oddsMap)
	if len(errs) != 0 {
		t.Fatalf("unexpected mapping errors: %v", errs)
	}
	if len(mapped) != 2 {
		t.Fatalf("expected 2 mapped markets, got %d", len(mapped))
	}

	lines := map[float64]bool{}
	for _, m := range mapped {
		if m.Line == nil {
			t.Fatalf("expected a line on every mapped market, got nil")
		}
		lines[*m.Line] = true
		if len(m.Outcomes) != 2 {
			t.Errorf("expected 2 outcomes, got %d", len(m.Outcomes))
		}
		if m.ReferenceMarketID == "" {
			t.Errorf("expected a resolved reference_market_id")
		}
	}
	if !lines[2.5] || !lines[3.5] {
		t.Errorf("expected lines {2.5, 3.5}, got %v", lines)
	}
}

func TestInvalidKeyFormatRejected(t *testing.T) {
	n := New(registry.New(registry.DefaultDefinitions()))

	_, errs := n.NormalizeBatch(context.Background(), map[string]float64{
		"garbage-key": 1.5,
	})
	if len(errs) != 1 {
		t.Fatalf("expected 1 error, got %d", len(errs))
	}
	if errs[0].Kind != "InvalidKeyFormat" {
		t.Errorf("expected InvalidKeyFormat, got %s", errs[0].Kind)
	}
}

func TestUnknownMarketPrefixIsPartialFailure(t *testing.T) {
	n := New(registry.New(registry.DefaultDefinitions()))

	mapped, errs := n.NormalizeBatch(context.Background(), map[string]float64{
		"S_OU@2.5_O":  1.9,
		"S_OU@2.5_U":  1.9,
		"S_ZZZ_1":     1.5,
	})
	if len(mapped) != 1 {
		t.Fatalf("expected the OU market to succeed despite the unknown ZZZ market, got %d mapped", len(mapped))
	}
	if len(errs) != 1 {
		t.Fatalf("expected exactly 1 error for unknown prefix, got %d", len(errs))
	}
}
