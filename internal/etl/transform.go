package etl

import (
	"github.com/vmaraujo/b3analyst/internal/market"
)

// Clean drops rows an analyst query cannot use: zero or negative
// closes, and duplicate dates (last one wins). The result is in
// chronological order.
func Clean(bars []market.Bar) []market.Bar {
	market.SortChronological(bars)

	cleaned := make([]market.Bar, 0, len(bars))
	for _, b := range bars {
		if b.Close <= 0 {
			continue
		}
		if n := len(cleaned); n > 0 && cleaned[n-1].Date.Equal(b.Date) {
			cleaned[n-1] = b
			continue
		}
		cleaned = append(cleaned, b)
	}
	return cleaned
}
