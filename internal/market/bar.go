// Package market defines the historical price data model shared by the
// store, the analytics engine and the agent tools.
package market

import (
	"sort"
	"time"
)

// DateLayout is the canonical date format used across the system.
const DateLayout = "2006-01-02"

// Bar represents one daily OHLCV record for a ticker. Rows are unique
// per (ticker, date) in the acoes_historico table.
type Bar struct {
	Ticker string    `json:"ticker,omitempty"`
	Date   time.Time `json:"-"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume int64     `json:"volume"`
}

// FinancialVolume is the traded financial volume for the session
// (closing price times share volume). Computed on read, never stored.
func (b Bar) FinancialVolume() float64 {
	return b.Close * float64(b.Volume)
}

// DateString returns the bar date formatted as YYYY-MM-DD.
func (b Bar) DateString() string {
	return b.Date.Format(DateLayout)
}

// SortChronological orders bars oldest first, in place. The sort is
// stable so same-date rows keep their input order.
func SortChronological(bars []Bar) {
	sort.SliceStable(bars, func(i, j int) bool {
		return bars[i].Date.Before(bars[j].Date)
	})
}
