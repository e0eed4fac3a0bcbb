// Package registry implements the Market Mapping Registry (component A): an
// immutable, process-wide table of canonical markets with O(1) lookup by any
// source identifier. Grounded on normalizer/internal/registry/registry.go's
// map-based Register/Get pattern, generalized from one sport-key index to four
// parallel indexes and stripped of its mutex since this registry never accepts
// writes after New() returns.
package registry

import "github.com/XavierBriggs/fortuna/internal/domain"

// Registry is the read-only Market Mapping Registry.
type Registry struct {
	all          []domain.MarketDefinition
	byReference  map[string]*domain.MarketDefinition
	bySportybet  map[string]*domain.MarketDefinition
	byBet9ja     map[string]*domain.MarketDefinition
	byCanonical  map[string]*domain.MarketDefinition
}

// New builds the registry from a static slice of market definitions in one
// pass. Missing source ids on a definition simply skip that index.
func New(defs []domain.MarketDefinition) *Registry {
	r := &Registry{
		all:         make([]domain.MarketDefinition, len(defs)),
		byReference: make(map[string]*domain.MarketDefinition, len(defs)),
		bySportybet: make(map[string]*domain.MarketDefinition, len(defs)),
		byBet9ja:    make(map[string]*domain.MarketDefinition, len(defs)),
		byCanonical: make(map[string]*domain.MarketDefinition, len(defs)),
	}
	copy(r.all, defs)

	for i := range r.all {
		d := &r.all[i]
		r.byCanonical[d.CanonicalID] = d
		if d.ReferenceMarketID != nil {
			r.byReference[*d.ReferenceMarketID] = d
		}
		if d.SportybetMarketID != nil {
			r.bySportybet[*d.SportybetMarketID] = d
		}
		if d.Bet9jaMarketKey != nil {
			r.byBet9ja[*d.Bet9jaMarketKey] = d
		}
	}

	return r
}

// FindByReferenceID looks up a MarketDefinition by the reference bookmaker's market id.
func (r *Registry) FindByReferenceID(id string) (*domain.MarketDefinition, bool) {
	d, ok := r.byReference[id]
	return d, ok
}

// FindBySportybetID looks up a MarketDefinition by Sportybet's market id.
func (r *Registry) FindBySportybetID(id string) (*domain.MarketDefinition, bool) {
	d, ok := r.bySportybet[id]
	return d, ok
}

// FindByBet9jaKey looks up a MarketDefinition by Bet9ja's key prefix.
func (r *Registry) FindByBet9jaKey(keyPrefix string) (*domain.MarketDefinition, bool) {
	d, ok := r.byBet9ja[keyPrefix]
	return d, ok
}

// FindByCanonicalID looks up a MarketDefinition by its canonical id.
func (r *Registry) FindByCanonicalID(id string) (*domain.MarketDefinition, bool) {
	d, ok := r.byCanonical[id]
	return d, ok
}

// IsOverUnder reports whether the Sportybet market id maps to an Over/Under market.
func (r *Registry) IsOverUnder(sportybetID string) bool {
	return r.hasFlag(sportybetID, domain.FlagOverUnder)
}

// IsHandicap reports whether the Sportybet market id maps to a handicap market.
func (r *Registry) IsHandicap(sportybetID string) bool {
	return r.hasFlag(sportybetID, domain.FlagHandicap)
}

// IsVariant reports whether the Sportybet market id maps to a variant market.
func (r *Registry) IsVariant(sportybetID string) bool {
	return r.hasFlag(sportybetID, domain.FlagVariant)
}

// IsTimeBased reports whether the Sportybet market id maps to a time-based market.
func (r *Registry) IsTimeBased(sportybetID string) bool {
	return r.hasFlag(sportybetID, domain.FlagTimeBased)
}

func (r *Registry) hasFlag(sportybetID string, flag domain.ClassificationFlag) bool {
	d, ok := r.bySportybet[sportybetID]
	if !ok {
		return false
	}
	return d.HasFlag(flag)
}

// All returns every registered market definition. Callers must not mutate the
// returned slice's backing array; it is shared across calls.
func (r *Registry) All() []domain.MarketDefinition {
	return r.all
}

// Count returns the number of registered market definitions.
func (r *Registry) Count() int {
	return len(r.all)
}
