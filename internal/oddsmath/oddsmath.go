// Package oddsmath implements the margin/overround arithmetic shared by every
// source normalizer and by the Snapshot Store at ingest time.
package oddsmath

import (
	"fmt"
	"math"
)

// Margin computes the bookmaker's overround over the active outcomes of one
// market: (Σ 1/odds_i − 1) × 100. Inactive outcomes are excluded from the sum.
// A non-positive odds value is rejected, matching the §4.B InvalidOddsValue rule.
func Margin(odds []float64, active []bool) (float64, error) {
	if len(odds) != len(active) {
		return 0, fmt.Errorf("odds and active slices must have equal length")
	}

	total := 0.0
	counted := 0
	for i, o := range odds {
		if o <= 0 {
			return 0, fmt.Errorf("invalid odds value: %v", o)
		}
		if !active[i] {
			continue
		}
		total += 1.0 / o
		counted++
	}

	if counted == 0 {
		return 0, fmt.Errorf("no active outcomes to compute margin from")
	}

	return (total - 1.0) * 100.0, nil
}

// AmericanToDecimal converts an American odds price to decimal odds.
func AmericanToDecimal(american int) (float64, error) {
	if american == 0 {
		return 0, fmt.Errorf("american odds cannot be zero")
	}
	if american > 0 {
		return 1.0 + float64(american)/100.0, nil
	}
	return 1.0 + 100.0/float64(-american), nil
}

// DecimalToAmerican converts decimal odds back to an American odds price.
func DecimalToAmerican(decimal float64) (int, error) {
	if decimal <= 1.0 {
		return 0, fmt.Errorf("decimal odds must be greater than 1.0")
	}
	if decimal >= 2.0 {
		return int(math.Round((decimal - 1.0) * 100.0)), nil
	}
	return int(math.Round(-100.0 / (decimal - 1.0))), nil
}

// DecimalToImpliedProbability converts decimal odds to an implied probability.
func DecimalToImpliedProbability(decimal float64) (float64, error) {
	if decimal <= 1.0 {
		return 0, fmt.Errorf("decimal odds must be greater than 1.0")
	}
	return 1.0 / decimal, nil
}

// RoundToNearestCent rounds a monetary/odds value to two decimal places.
func RoundToNearestCent(v float64) float64 {
	return math.Round(v*100) / 100
}
