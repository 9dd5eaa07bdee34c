// Package ticker normalizes free-form user text into canonical B3
// exchange tickers (alphanumeric root plus the ".SA" suffix).
package ticker

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrInvalidTicker is returned when no B3 ticker can be extracted from
// the input text.
var ErrInvalidTicker = errors.New("invalid ticker format")

var tickerPattern = regexp.MustCompile(`[A-Z0-9]+\.SA`)

// Normalize extracts the first B3 ticker from raw text, uppercased.
// "petr4.sa" and "a ação PETR4.SA da Petrobras" both yield "PETR4.SA".
func Normalize(raw string) (string, error) {
	match := tickerPattern.FindString(strings.ToUpper(raw))
	if match == "" {
		return "", fmt.Errorf("%w: %q (expected something like 'PETR4.SA')", ErrInvalidTicker, raw)
	}
	return match, nil
}

// NormalizeOrRaw extracts a ticker like Normalize but falls back to the
// raw input when no match is found. Tools that let the store decide
// whether the symbol exists use this lenient path.
func NormalizeOrRaw(raw string) string {
	if t, err := Normalize(raw); err == nil {
		return t
	}
	return raw
}
