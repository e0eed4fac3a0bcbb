// Package normalize implements the three Source Normalizers (component B):
// reference, sportybet, and bet9ja. Each converts a source's raw response
// into a canonical MappedMarket sequence. Contract shape grounded on
// normalizer/pkg/contracts/sport_normalizer.go; dispatch-by-market-type
// structure grounded on normalizer/sports/basketball_nba/normalizer.go.
package normalize

import (
	"context"
	"time"

	"github.com/XavierBriggs/fortuna/internal/domain"
)

// RawOutcome is one priced selection as it arrives from a source, before
// canonicalization.
type RawOutcome struct {
	Name   string
	Odds   float64
	Active bool
}

// RawMarket is one market as it arrives from a source, keyed by the source's
// own market identifier (which may be a compound specifier string for
// Sportybet, or a grouped key prefix for Bet9ja).
type RawMarket struct {
	SourceMarketKey string
	// Specifier is Sportybet's "key=value|key=value" parameter string
	// (e.g. "total=2.5" or "hcp=1,2"). Empty for sources with no specifiers.
	Specifier string
	Outcomes  []RawOutcome
}

// RawEvent is the raw, source-specific payload fed to a normalizer.
type RawEvent struct {
	ExternalEventID string
	CorrelationID   *string
	HomeTeam        string
	AwayTeam        string
	KickoffTime     time.Time
	Markets         []RawMarket
}

// MappedMarket is one market after normalization into the canonical taxonomy.
type MappedMarket struct {
	ReferenceMarketID   string
	ReferenceMarketName string
	Line                *float64
	Outcomes            []domain.Outcome
	Margin              float64
}

// MappingErrorKind is the component-B-specific error taxonomy of spec §4.B.
type MappingErrorKind string

const (
	UnknownMarket      MappingErrorKind = "UnknownMarket"
	UnknownParamMarket MappingErrorKind = "UnknownParamMarket"
	UnsupportedPlatform MappingErrorKind = "UnsupportedPlatform"
	NoMatchingOutcomes MappingErrorKind = "NoMatchingOutcomes"
	InvalidSpecifier   MappingErrorKind = "InvalidSpecifier"
	InvalidOddsValue   MappingErrorKind = "InvalidOddsValue"
	InvalidKeyFormat   MappingErrorKind = "InvalidKeyFormat"
	UnsupportedSport   MappingErrorKind = "UnsupportedSport"
)

// MappingError is a structured per-market failure. Normalizers never return
// silent nulls for a market they could not map.
type MappingError struct {
	Kind            MappingErrorKind
	SourceMarketKey string
	Message         string
}

func (e *MappingError) Error() string {
	return string(e.Kind) + " (" + e.SourceMarketKey + "): " + e.Message
}

// SourceNormalizer is the per-source normalization contract shared by
// reference, sportybet, and bet9ja.
type SourceNormalizer interface {
	Source() domain.Source
	Normalize(ctx context.Context, raw RawEvent) ([]MappedMarket, []*MappingError)
}

// BatchNormalizer is implemented by sources (Bet9ja) whose odds arrive as a
// flat key->price map rather than one RawEvent per market.
type BatchNormalizer interface {
	NormalizeBatch(ctx context.Context, oddsMap map[string]float64) ([]MappedMarket, []*MappingError)
}

// MatchOutcome resolves a raw outcome's canonical id by the source-appropriate
// display field first, falling back to position. Returns false if neither
// resolves, per the §4.B "NoMatchingOutcomes, not a null outcome" rule.
func MatchOutcome(defs []domain.OutcomeDefinition, displayName string, position int, field func(domain.OutcomeDefinition) *string) (domain.OutcomeDefinition, bool) {
	lower := toLower(displayName)
	for _, d := range defs {
		if f := field(d); f != nil && toLower(*f) == lower {
			return d, true
		}
	}
	for _, d := range defs {
		if d.Position == position {
			return d, true
		}
	}
	return domain.OutcomeDefinition{}, false
}

func toLower(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}
