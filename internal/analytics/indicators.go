package analytics

import (
	"fmt"

	"github.com/cinar/indicator/v2/momentum"
	"github.com/cinar/indicator/v2/trend"
	"github.com/rs/zerolog/log"

	"github.com/vmaraujo/b3analyst/internal/market"
)

const (
	// DefaultRSIPeriod is the default RSI lookback window.
	DefaultRSIPeriod = 14

	// DefaultSMAPeriod is the default simple-moving-average window.
	DefaultSMAPeriod = 21

	// RSI interpretation thresholds.
	RSIOverbought = 70
	RSIOversold   = 30
)

// IndicatorReport holds the latest technical indicator values for one
// asset, plus the interpretation fed back to the planner.
type IndicatorReport struct {
	Ticker      string
	LatestClose float64
	RSI         float64
	RSIPeriod   int
	RSISignal   string // "sobrecomprado", "sobrevendido", "neutro"
	SMA         float64
	SMAPeriod   int
	AboveSMA    bool
}

// AssetIndicators computes RSI and SMA over chronologically ordered bars.
// Requires at least smaPeriod bars.
func AssetIndicators(tickerSymbol string, bars []market.Bar, rsiPeriod, smaPeriod int) (*IndicatorReport, error) {
	if rsiPeriod <= 0 {
		rsiPeriod = DefaultRSIPeriod
	}
	if smaPeriod <= 0 {
		smaPeriod = DefaultSMAPeriod
	}

	if len(bars) < smaPeriod {
		return nil, fmt.Errorf("%w: %d sessions available for %s, need at least %d for the %d-day SMA",
			ErrInsufficientHistory, len(bars), tickerSymbol, smaPeriod, smaPeriod)
	}

	market.SortChronological(bars)

	closes := make([]float64, len(bars))
	for i, b := range bars {
		closes[i] = b.Close
	}

	latestRSI, err := lastValue(momentum.NewRsiWithPeriod[float64](rsiPeriod).Compute, closes)
	if err != nil {
		return nil, fmt.Errorf("rsi(%d) for %s: %w", rsiPeriod, tickerSymbol, err)
	}

	latestSMA, err := lastValue(trend.NewSmaWithPeriod[float64](smaPeriod).Compute, closes)
	if err != nil {
		return nil, fmt.Errorf("sma(%d) for %s: %w", smaPeriod, tickerSymbol, err)
	}

	signal := "neutro"
	switch {
	case latestRSI > RSIOverbought:
		signal = "sobrecomprado"
	case latestRSI < RSIOversold:
		signal = "sobrevendido"
	}

	latestClose := closes[len(closes)-1]

	log.Debug().
		Str("ticker", tickerSymbol).
		Float64("rsi", latestRSI).
		Str("rsi_signal", signal).
		Float64("sma", latestSMA).
		Msg("Computed asset indicators")

	return &IndicatorReport{
		Ticker:      tickerSymbol,
		LatestClose: latestClose,
		RSI:         latestRSI,
		RSIPeriod:   rsiPeriod,
		RSISignal:   signal,
		SMA:         latestSMA,
		SMAPeriod:   smaPeriod,
		AboveSMA:    latestClose > latestSMA,
	}, nil
}

// lastValue runs a channel-based cinar indicator over a price slice and
// returns the most recent computed value.
func lastValue(compute func(<-chan float64) <-chan float64, prices []float64) (float64, error) {
	in := make(chan float64, len(prices))
	for _, p := range prices {
		in <- p
	}
	close(in)

	var (
		last float64
		any  bool
	)
	for v := range compute(in) {
		last = v
		any = true
	}

	if !any {
		return 0, fmt.Errorf("indicator produced no values over %d prices", len(prices))
	}
	return last, nil
}
