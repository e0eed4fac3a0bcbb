package domain

// ClassificationFlag describes structural properties of a market.
type ClassificationFlag string

const (
	FlagOverUnder ClassificationFlag = "over_under"
	FlagHandicap  ClassificationFlag = "handicap"
	FlagVariant   ClassificationFlag = "variant"
	FlagTimeBased ClassificationFlag = "time_based"
	FlagComposite ClassificationFlag = "composite"
)

// OutcomeDefinition cross-references one outcome of a market across sources.
// Position is the source-independent ordinal used as a last-resort match.
type OutcomeDefinition struct {
	CanonicalID          string  `json:"canonical_id"`
	ReferenceOutcomeName *string `json:"reference_outcome_name,omitempty"`
	SportybetDescription *string `json:"sportybet_description,omitempty"`
	Bet9jaSuffix         *string `json:"bet9ja_suffix,omitempty"`
	Position             int     `json:"position"`
}

// MarketDefinition is one row of the immutable Market Mapping Registry (component A).
// Built from a static tuple at startup; any source id may be absent.
type MarketDefinition struct {
	CanonicalID        string               `json:"canonical_id"`
	DisplayName        string               `json:"display_name"`
	ReferenceMarketID  *string              `json:"reference_market_id,omitempty"`
	SportybetMarketID  *string              `json:"sportybet_market_id,omitempty"`
	Bet9jaMarketKey    *string              `json:"bet9ja_market_key,omitempty"`
	OutcomeMapping     []OutcomeDefinition  `json:"outcome_mapping"`
	ClassificationFlags []ClassificationFlag `json:"classification_flags"`
}

// HasFlag reports whether the market carries the given classification flag.
func (m MarketDefinition) HasFlag(f ClassificationFlag) bool {
	for _, flag := range m.ClassificationFlags {
		if flag == f {
			return true
		}
	}
	return false
}
