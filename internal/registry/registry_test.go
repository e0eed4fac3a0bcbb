package registry

import "testing"

func TestRegistryConsistency(t *testing.T) {
	// Property 1 (spec §8): for every MarketDefinition M with non-null
	// sportybet_market_id, FindBySportybetID(M.sportybet_market_id) == M.
	// Same for reference and bet9ja keys.
	r := New(DefaultDefinitions())

	for _, m := range r.All() {
		if m.SportybetMarketID != nil {
			got, ok := r.FindBySportybetID(*m.SportybetMarketID)
			if !ok || got.CanonicalID != m.CanonicalID {
				t.Errorf("sportybet index inconsistent for %s", m.CanonicalID)
			}
		}
		if m.ReferenceMarketID != nil {
			got, ok := r.FindByReferenceID(*m.ReferenceMarketID)
			if !ok || got.CanonicalID != m.CanonicalID {
				t.Errorf("reference index inconsistent for %s", m.CanonicalID)
			}
		}
		if m.Bet9jaMarketKey != nil {
			got, ok := r.FindByBet9jaKey(*m.Bet9jaMarketKey)
			if !ok || got.CanonicalID != m.CanonicalID {
				t.Errorf("bet9ja index inconsistent for %s", m.CanonicalID)
			}
		}
	}
}

func TestRegistryMissingSourceIDSkipsOnlyThatIndex(t *testing.T) {
	r := New(DefaultDefinitions())

	// double_chance has no Bet9ja key in the seed data.
	if _, ok := r.FindByCanonicalID("double_chance"); !ok {
		t.Fatal("double_chance should still be reachable by canonical id")
	}
	if _, ok := r.FindByBet9jaKey(""); ok {
		t.Fatal("empty bet9ja key should not resolve")
	}
}

func TestRegistryClassificationFlags(t *testing.T) {
	r := New(DefaultDefinitions())

	if !r.IsOverUnder("18") {
		t.Error("expected sportybet market 18 to be classified over_under")
	}
	if !r.IsHandicap("16") {
		t.Error("expected sportybet market 16 to be classified handicap")
	}
	if r.IsOverUnder("16") {
		t.Error("handicap market should not also be over_under")
	}
}

func TestRegistryBuildIsDeterministic(t *testing.T) {
	r1 := New(DefaultDefinitions())
	r2 := New(DefaultDefinitions())

	if r1.Count() != r2.Count() {
		t.Fatalf("non-deterministic registry size: %d vs %d", r1.Count(), r2.Count())
	}
	for _, m := range r1.All() {
		if _, ok := r2.FindByCanonicalID(m.CanonicalID); !ok {
			t.Errorf("market %s missing from second build", m.CanonicalID)
		}
	}
}
