package history

import (
	"testing"

	"github.com/XavierBriggs/fortuna/internal/domain"
	"github.com/XavierBriggs/fortuna/internal/registry"
)

func fp(f float64) *float64 { return &f }

func testService() *Service {
	return New(nil, nil, registry.New(registry.DefaultDefinitions()), nil)
}

func refID(t *testing.T, canonical string) string {
	t.Helper()
	def, ok := registry.New(registry.DefaultDefinitions()).FindByCanonicalID(canonical)
	if !ok || def.ReferenceMarketID == nil {
		t.Fatalf("registry has no reference id for %q", canonical)
	}
	return *def.ReferenceMarketID
}

func TestFilterKeyMarkets(t *testing.T) {
	s := testService()

	oneXTwo := refID(t, "1x2")
	overUnder := refID(t, "over_under")
	btts := refID(t, "btts")

	markets := []domain.MarketOdds{
		{ReferenceMarketID: oneXTwo},
		{ReferenceMarketID: overUnder, Line: fp(1.5)},
		{ReferenceMarketID: overUnder, Line: fp(2.5)},
		{ReferenceMarketID: overUnder, Line: fp(3.5)},
		{ReferenceMarketID: btts},
		{ReferenceMarketID: "999"},
	}

	key := s.filterKeyMarkets(markets)
	if len(key) != 3 {
		t.Fatalf("expected 3 key markets (1X2, O/U 2.5, BTTS), got %d", len(key))
	}

	for _, m := range key {
		if m.ReferenceMarketID == overUnder {
			if m.Line == nil || *m.Line != 2.5 {
				t.Errorf("over/under key market carries line %v, want 2.5", m.Line)
			}
		}
		if m.ReferenceMarketID == "999" {
			t.Error("non-key market leaked into the summary")
		}
	}
}

func TestNormalizeListParams(t *testing.T) {
	p := ListParams{PageSize: 5000}
	normalizeListParams(&p)

	if p.Page != 1 {
		t.Errorf("page = %d, want 1", p.Page)
	}
	if p.PageSize != maxPageSize {
		t.Errorf("page_size = %d, want clamped to %d", p.PageSize, maxPageSize)
	}
	if p.KickoffFrom == nil || p.KickoffTo == nil {
		t.Fatal("kickoff window must default to 30 days either side of now")
	}
	if !p.KickoffFrom.Before(*p.KickoffTo) {
		t.Error("kickoff_from must precede kickoff_to")
	}
}
