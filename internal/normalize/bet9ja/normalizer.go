// Package bet9ja normalizes Bet9ja's batch odds feed. Bet9ja keys encode
// market, parameter, and outcome in one string
// ("^S_([A-Z0-9_\-]+?)(?:@([^_]+))?_(.+)$"); this package groups the flat
// odds map by (market_prefix, param) before mapping to the canonical taxonomy.
package bet9ja

import (
	"context"
	"regexp"
	"sort"
	"strconv"

	"github.com/XavierBriggs/fortuna/internal/domain"
	"github.com/XavierBriggs/fortuna/internal/normalize"
	"github.com/XavierBriggs/fortuna/internal/oddsmath"
	"github.com/XavierBriggs/fortuna/internal/registry"
)

var keyPattern = regexp.MustCompile(`^S_([A-Z0-9_\-]+?)(?:@([^_]+))?_(.+)$`)

// Normalizer implements normalize.SourceNormalizer and normalize.BatchNormalizer
// for Bet9ja.
type Normalizer struct {
	reg *registry.Registry
}

// New constructs a Bet9ja Normalizer backed by the given Market Mapping Registry.
func New(reg *registry.Registry) *Normalizer {
	return &Normalizer{reg: reg}
}

// Source identifies this normalizer's platform.
func (n *Normalizer) Source() domain.Source { return domain.SourceBet9ja }

// Normalize is not the primary entry point for Bet9ja (see NormalizeBatch) but
// is implemented to satisfy normalize.SourceNormalizer. It rebuilds the flat
// odds map from raw.Markets and delegates to the batch path: an outcome with a
// name is keyed SourceMarketKey+"_"+Name (a pre-grouped market), and an
// outcome with an empty name is keyed by SourceMarketKey alone (one full
// Bet9ja key per market, as the Bet9ja scraping client produces).
func (n *Normalizer) Normalize(ctx context.Context, raw normalize.RawEvent) ([]normalize.MappedMarket, []*normalize.MappingError) {
	oddsMap := make(map[string]float64)
	for _, m := range raw.Markets {
		for _, o := range m.Outcomes {
			key := m.SourceMarketKey
			if o.Name != "" {
				key += "_" + o.Name
			}
			oddsMap[key] = o.Odds
		}
	}
	return n.NormalizeBatch(ctx, oddsMap)
}

type groupKey struct {
	prefix string
	param  string
}

// NormalizeBatch maps a flat Bet9ja odds dict into canonical markets. It
// returns all successfully normalized markets AND a parallel list of
// structured errors for the failed ones; the caller decides whether to
// persist the successes (§4.B "partial batch success").
func (n *Normalizer) NormalizeBatch(ctx context.Context, oddsMap map[string]float64) ([]normalize.MappedMarket, []*normalize.MappingError) {
	groups := make(map[groupKey]map[string]float64)
	var errs []*normalize.MappingError

	for key, price := range oddsMap {
		m := keyPattern.FindStringSubmatch(key)
		if m == nil {
			errs = append(errs, &normalize.MappingError{
				Kind:            normalize.InvalidKeyFormat,
				SourceMarketKey: key,
				Message:         "key does not match expected S_PREFIX[@param]_SUFFIX format",
			})
			continue
		}
		gk := groupKey{prefix: m[1], param: m[2]}
		if groups[gk] == nil {
			groups[gk] = make(map[string]float64)
		}
		groups[gk][m[3]] = price
	}

	// Deterministic iteration order for reproducible MappedMarket ordering.
	keys := make([]groupKey, 0, len(groups))
	for gk := range groups {
		keys = append(keys, gk)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].prefix != keys[j].prefix {
			return keys[i].prefix < keys[j].prefix
		}
		return keys[i].param < keys[j].param
	})

	var mapped []normalize.MappedMarket
	for _, gk := range keys {
		suffixOdds := groups[gk]

		def, ok := n.reg.FindByBet9jaKey(gk.prefix)
		if !ok {
			errs = append(errs, &normalize.MappingError{
				Kind:            normalize.UnknownMarket,
				SourceMarketKey: gk.prefix,
				Message:         "no market definition for bet9ja prefix " + gk.prefix,
			})
			continue
		}

		outcomes, mErr := matchOutcomes(def, gk.prefix, suffixOdds)
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
				SourceMarketKey: gk.prefix,
				Message:         err.Error(),
			})
			continue
		}

		mm := normalize.MappedMarket{
			ReferenceMarketID:   *def.ReferenceMarketID,
			ReferenceMarketName: def.DisplayName,
			Outcomes:            outcomes,
			Margin:              margin,
		}
		if gk.param != "" {
			line, lErr := parseLine(gk.param)
			if lErr != nil {
				errs = append(errs, &normalize.MappingError{
					Kind:            normalize.InvalidSpecifier,
					SourceMarketKey: gk.prefix + "@" + gk.param,
					Message:         lErr.Error(),
				})
				continue
			}
			mm.Line = &line
		}

		mapped = append(mapped, mm)
	}

	return mapped, errs
}

func matchOutcomes(def *domain.MarketDefinition, prefix string, suffixOdds map[string]float64) ([]domain.Outcome, *normalize.MappingError) {
	suffixes := make([]string, 0, len(suffixOdds))
	for s := range suffixOdds {
		suffixes = append(suffixes, s)
	}
	sort.Strings(suffixes)

	outcomes := make([]domain.Outcome, 0, len(suffixes))
	for pos, suffix := range suffixes {
		price := suffixOdds[suffix]
		od, ok := normalize.MatchOutcome(def.OutcomeMapping, suffix, pos, func(o domain.OutcomeDefinition) *string {
			return o.Bet9jaSuffix
		})
		if !ok {
			return nil, &normalize.MappingError{
				Kind:            normalize.NoMatchingOutcomes,
				SourceMarketKey: prefix,
				Message:         "no outcome definition matched suffix \"" + suffix + "\"",
			}
		}
		outcomes = append(outcomes, domain.Outcome{Name: od.CanonicalID, Odds: price, Active: price > 0})
	}
	return outcomes, nil
}

func parseLine(param string) (float64, error) {
	return strconv.ParseFloat(param, 64)
}
