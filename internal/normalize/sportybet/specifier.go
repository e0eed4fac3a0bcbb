package sportybet

import (
	"strconv"
	"strings"

	"github.com/XavierBriggs/fortuna/internal/normalize"
)

const maxSpecifierLen = 1000

// parsedSpecifier is the decoded form of Sportybet's "key=value|key=value"
// specifier string.
type parsedSpecifier struct {
	Total   *float64 // "total" key, the line for Over/Under markets
	HcpLow  *float64 // "hcp" key, low half when the pair form "1,2" is used
	HcpHigh *float64 // "hcp" key, high half when the pair form "1,2" is used
	Variant string   // "variant" key, opaque string
}

// parseSpecifier decodes a Sportybet specifier string per spec §4.B.
// Recognized keys: total (float -> line for O/U), hcp (handicap, may be a
// pair "1,2" split into two half-lines), variant (string). Guards against
// pathologically long specifier strings to bound regex/parse cost.
func parseSpecifier(raw string) (parsedSpecifier, *normalize.MappingError) {
	var result parsedSpecifier

	if len(raw) > maxSpecifierLen {
		return result, &normalize.MappingError{
			Kind:            normalize.InvalidSpecifier,
			SourceMarketKey: raw,
			Message:         "specifier exceeds 1000 characters",
		}
	}

	if raw == "" {
		return result, nil
	}

	for _, pair := range strings.Split(raw, "|") {
		if pair == "" {
			continue
		}
		kv := strings.SplitN(pair, "=", 2)
		if len(kv) != 2 {
			return result, &normalize.MappingError{
				Kind:            normalize.InvalidSpecifier,
				SourceMarketKey: raw,
				Message:         "malformed key=value pair: " + pair,
			}
		}
		key, value := kv[0], kv[1]

		switch key {
		case "total":
			v, err := strconv.ParseFloat(value, 64)
			if err != nil {
				return result, &normalize.MappingError{
					Kind:            normalize.InvalidSpecifier,
					SourceMarketKey: raw,
					Message:         "invalid total value: " + value,
				}
			}
			result.Total = &v
		case "hcp":
			if strings.Contains(value, ",") {
				parts := strings.SplitN(value, ",", 2)
				low, errLow := strconv.ParseFloat(parts[0], 64)
				high, errHigh := strconv.ParseFloat(parts[1], 64)
				if errLow != nil || errHigh != nil {
					return result, &normalize.MappingError{
						Kind:            normalize.InvalidSpecifier,
						SourceMarketKey: raw,
						Message:         "invalid hcp pair: " + value,
					}
				}
				result.HcpLow = &low
				result.HcpHigh = &high
			} else {
				v, err := strconv.ParseFloat(value, 64)
				if err != nil {
					return result, &normalize.MappingError{
						Kind:            normalize.InvalidSpecifier,
						SourceMarketKey: raw,
						Message:         "invalid hcp value: " + value,
					}
				}
				result.HcpLow = &v
			}
		case "variant":
			result.Variant = value
		}
	}

	return result, nil
}
