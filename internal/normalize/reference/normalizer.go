// Package reference normalizes the reference bookmaker's raw events, which
// carry all of an event's markets from a single detail call and need no specifier
// parsing: a market's source key is already the registry's reference_market_id.
package reference

import (
	"context"

	"github.com/XavierBriggs/fortuna/internal/domain"
	"github.com/XavierBriggs/fortuna/internal/normalize"
	"github.com/XavierBriggs/fortuna/internal/oddsmath"
	"github.com/XavierBriggs/fortuna/internal/registry"
)

// Normalizer implements normalize.SourceNormalizer for the reference platform.
type Normalizer struct {
	reg *registry.Registry
}

// New constructs a reference Normalizer backed by the given Market Mapping Registry.
func New(reg *registry.Registry) *Normalizer {
	return &Normalizer{reg: reg}
}

// Source identifies this normalizer's platform.
func (n *Normalizer) Source() domain.Source { return domain.SourceReference }

// Normalize converts one raw reference-platform event into canonical markets.
func (n *Normalizer) Normalize(ctx context.Context, raw normalize.RawEvent) ([]normalize.MappedMarket, []*normalize.MappingError) {
	var mapped []normalize.MappedMarket
	var errs []*normalize.MappingError

	for _, rm := range raw.Markets {
		def, ok := n.reg.FindByReferenceID(rm.SourceMarketKey)
		if !ok {
			errs = append(errs, &normalize.MappingError{
				Kind:            normalize.UnknownMarket,
				SourceMarketKey: rm.SourceMarketKey,
				Message:         "no market definition for reference market id " + rm.SourceMarketKey,
			})
			continue
		}

		outcomes, mErr := matchOutcomes(def, rm)
		if mErr != nil {
			errs = append(errs, mErr)
			continue
		}

		odds := make([]float64, len(outcomes))
		active := make([]bool, len(outcomes))
		for i, o := range outcomes {
			odds[i] = o.Odds
			active[i] = o.Active
		}
		margin, err := oddsmath.Margin(odds, active)
		if err != nil {
			errs = append(errs, &normalize.MappingError{
				Kind:            normalize.InvalidOddsValue,
				SourceMarketKey: rm.SourceMarketKey,
				Message:         err.Error(),
			})
			continue
		}

		mapped = append(mapped, normalize.MappedMarket{
			ReferenceMarketID:   *def.ReferenceMarketID,
			ReferenceMarketName: def.DisplayName,
			Outcomes:            outcomes,
			Margin:              margin,
		})
	}

	return mapped, errs
}

func matchOutcomes(def *domain.MarketDefinition, rm normalize.RawMarket) ([]domain.Outcome, *normalize.MappingError) {
	outcomes := make([]domain.Outcome, 0, len(rm.Outcomes))
	for pos, raw := range rm.Outcomes {
		od, ok := normalize.MatchOutcome(def.OutcomeMapping, raw.Name, pos, func(o domain.OutcomeDefinition) *string {
			return o.ReferenceOutcomeName
		})
		if !ok {
			return nil, &normalize.MappingError{
				Kind:            normalize.NoMatchingOutcomes,
				SourceMarketKey: rm.SourceMarketKey,
				Message:         "no outcome definition matched \"" + raw.Name + "\"",
			}
		}
		outcomes = append(outcomes, domain.Outcome{Name: od.CanonicalID, Odds: raw.Odds, Active: raw.Active})
	}
	return outcomes, nil
}
