// Package sportybet normalizes Sportybet's raw events. Sportybet encodes
// market parameters as a "key=value|key=value" specifier string and requires
// a two-step discovery/detail fetch upstream (component C's concern, not
// this package's); this package only maps already-fetched raw markets.
package sportybet

import (
	"context"

	"github.com/XavierBriggs/fortuna/internal/domain"
	"github.com/XavierBriggs/fortuna/internal/normalize"
	"github.com/XavierBriggs/fortuna/internal/oddsmath"
	"github.com/XavierBriggs/fortuna/internal/registry"
)

// Normalizer implements normalize.SourceNormalizer for Sportybet.
type Normalizer struct {
	reg *registry.Registry
}

// New constructs a Sportybet Normalizer backed by the given Market Mapping Registry.
func New(reg *registry.Registry) *Normalizer {
	return &Normalizer{reg: reg}
}

// Source identifies this normalizer's platform.
func (n *Normalizer) Source() domain.Source { return domain.SourceSportybet }

// Normalize converts one raw Sportybet event into canonical markets. A market
// with a handicap pair specifier ("hcp=1,2") yields two MappedMarket rows,
// one per half-line, per spec §4.B.
func (n *Normalizer) Normalize(ctx context.Context, raw normalize.RawEvent) ([]normalize.MappedMarket, []*normalize.MappingError) {
	var mapped []normalize.MappedMarket
	var errs []*normalize.MappingError

	for _, rm := range raw.Markets {
		def, ok := n.reg.FindBySportybetID(rm.SourceMarketKey)
		if !ok {
			kind := normalize.UnknownMarket
			if rm.Specifier != "" {
				kind = normalize.UnknownParamMarket
			}
			errs = append(errs, &normalize.MappingError{
				Kind:            kind,
				SourceMarketKey: rm.SourceMarketKey,
				Message:         "no market definition for sportybet market id " + rm.SourceMarketKey,
			})
			continue
		}

		spec, specErr := parseSpecifier(rm.Specifier)
		if specErr != nil {
			errs = append(errs, specErr)
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

		lines := resolveLines(spec)
		if len(lines) == 0 {
			mapped = append(mapped, normalize.MappedMarket{
				ReferenceMarketID:   *def.ReferenceMarketID,
				ReferenceMarketName: def.DisplayName,
				Outcomes:            outcomes,
				Margin:              margin,
			})
			continue
		}

		for _, line := range lines {
			l := line
			mapped = append(mapped, normalize.MappedMarket{
				ReferenceMarketID:   *def.ReferenceMarketID,
				ReferenceMarketName: def.DisplayName,
				Line:                &l,
				Outcomes:            outcomes,
				Margin:              margin,
			})
		}
	}

	return mapped, errs
}

// resolveLines returns the set of lines a parsed specifier implies: one line
// for "total", one or two (split) lines for "hcp", none otherwise.
func resolveLines(spec parsedSpecifier) []float64 {
	if spec.Total != nil {
		return []float64{*spec.Total}
	}
	if spec.HcpLow != nil && spec.HcpHigh != nil {
		return []float64{*spec.HcpLow, *spec.HcpHigh}
	}
	if spec.HcpLow != nil {
		return []float64{*spec.HcpLow}
	}
	return nil
}

func matchOutcomes(def *domain.MarketDefinition, rm normalize.RawMarket) ([]domain.Outcome, *normalize.MappingError) {
	outcomes := make([]domain.Outcome, 0, len(rm.Outcomes))
	for pos, raw := range rm.Outcomes {
		od, ok := normalize.MatchOutcome(def.OutcomeMapping, raw.Name, pos, func(o domain.OutcomeDefinition) *string {
			return o.SportybetDescription
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
