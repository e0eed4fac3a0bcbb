package registry

import "github.com/XavierBriggs/fortuna/internal/domain"

func strp(s string) *string { return &s }

// DefaultDefinitions returns the compiled-in market table. A production
// deployment carries the full ~108-row table negotiated with the data team;
// this seed carries one representative definition per classification flag
// plus the "key markets" set (1X2, O/U 2.5, BTTS) list_events summarizes,
// enough to exercise every lookup path and the full normalizer dispatch.
func DefaultDefinitions() []domain.MarketDefinition {
	return []domain.MarketDefinition{
		{
			CanonicalID:       "1x2",
			DisplayName:       "Match Result (1X2)",
			ReferenceMarketID: strp("1"),
			SportybetMarketID: strp("1"),
			Bet9jaMarketKey:   strp("1X2"),
			OutcomeMapping:    OutcomeDefinitions3Way(),
		},
		{
			CanonicalID:        "over_under",
			DisplayName:        "Total Goals Over/Under",
			ReferenceMarketID:  strp("18"),
			SportybetMarketID:  strp("18"),
			Bet9jaMarketKey:    strp("OU"),
			ClassificationFlags: []domain.ClassificationFlag{domain.FlagOverUnder},
			OutcomeMapping: []domain.OutcomeDefinition{
				{CanonicalID: "over", ReferenceOutcomeName: strp("Over"), SportybetDescription: strp("Over"), Bet9jaSuffix: strp("O"), Position: 0},
				{CanonicalID: "under", ReferenceOutcomeName: strp("Under"), SportybetDescription: strp("Under"), Bet9jaSuffix: strp("U"), Position: 1},
			},
		},
		{
			CanonicalID:        "asian_handicap",
			DisplayName:        "Asian Handicap",
			ReferenceMarketID:  strp("16"),
			SportybetMarketID:  strp("16"),
			Bet9jaMarketKey:    strp("AH"),
			ClassificationFlags: []domain.ClassificationFlag{domain.FlagHandicap},
			OutcomeMapping: []domain.OutcomeDefinition{
				{CanonicalID: "home", ReferenceOutcomeName: strp("Home"), SportybetDescription: strp("1"), Bet9jaSuffix: strp("1"), Position: 0},
				{CanonicalID: "away", ReferenceOutcomeName: strp("Away"), SportybetDescription: strp("2"), Bet9jaSuffix: strp("2"), Position: 1},
			},
		},
		{
			CanonicalID:       "btts",
			DisplayName:       "Both Teams To Score",
			ReferenceMarketID: strp("29"),
			SportybetMarketID: strp("29"),
			Bet9jaMarketKey:   strp("GG"),
			OutcomeMapping: []domain.OutcomeDefinition{
				{CanonicalID: "yes", ReferenceOutcomeName: strp("Yes"), SportybetDescription: strp("Yes"), Bet9jaSuffix: strp("Y"), Position: 0},
				{CanonicalID: "no", ReferenceOutcomeName: strp("No"), SportybetDescription: strp("No"), Bet9jaSuffix: strp("N"), Position: 1},
			},
		},
		{
			CanonicalID:        "correct_score",
			DisplayName:        "Correct Score",
			ReferenceMarketID:  strp("8"),
			SportybetMarketID:  strp("8"),
			Bet9jaMarketKey:    strp("CS"),
			ClassificationFlags: []domain.ClassificationFlag{domain.FlagVariant},
			OutcomeMapping:     []domain.OutcomeDefinition{},
		},
		{
			CanonicalID:        "half_time_result",
			DisplayName:        "Half Time Result",
			ReferenceMarketID:  strp("60"),
			SportybetMarketID:  strp("60"),
			Bet9jaMarketKey:    strp("HT"),
			ClassificationFlags: []domain.ClassificationFlag{domain.FlagTimeBased},
			OutcomeMapping:     OutcomeDefinitions3Way(),
		},
		{
			CanonicalID:        "double_chance",
			DisplayName:        "Double Chance",
			ReferenceMarketID:  strp("10"),
			SportybetMarketID:  strp("10"),
			Bet9jaMarketKey:    nil, // unsupported on Bet9ja - exercises the "absent source id" rule
			ClassificationFlags: []domain.ClassificationFlag{domain.FlagComposite},
			OutcomeMapping: []domain.OutcomeDefinition{
				{CanonicalID: "1x", ReferenceOutcomeName: strp("1X"), SportybetDescription: strp("1X"), Position: 0},
				{CanonicalID: "12", ReferenceOutcomeName: strp("12"), SportybetDescription: strp("12"), Position: 1},
				{CanonicalID: "x2", ReferenceOutcomeName: strp("X2"), SportybetDescription: strp("X2"), Position: 2},
			},
		},
	}
}

// OutcomeDefinitions3Way is the shared three-outcome (home/draw/away) mapping
// used by 1X2-style markets.
func OutcomeDefinitions3Way() []domain.OutcomeDefinition {
	return []domain.OutcomeDefinition{
		{CanonicalID: "home", ReferenceOutcomeName: strp("Home"), SportybetDescription: strp("1"), Bet9jaSuffix: strp("1"), Position: 0},
		{CanonicalID: "draw", ReferenceOutcomeName: strp("Draw"), SportybetDescription: strp("X"), Bet9jaSuffix: strp("X"), Position: 1},
		{CanonicalID: "away", ReferenceOutcomeName: strp("Away"), SportybetDescription: strp("2"), Bet9jaSuffix: strp("2"), Position: 2},
	}
}
