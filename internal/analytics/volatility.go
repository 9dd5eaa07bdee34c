// Package analytics implements the quantitative computations behind the
// agent tools: volatility-cone projection, technical indicators,
// cross-asset comparison, rankings and market-wide aggregation. All
// functions are pure; callers feed them bars read from the price store.
package analytics

import (
	"fmt"
	"math"

	"github.com/rs/zerolog/log"

	"github.com/vmaraujo/b3analyst/internal/market"
)

const (
	// TradingDaysPerYear is the annualization factor for daily volatility.
	TradingDaysPerYear = 252

	// MinConeSessions is the minimum number of daily closes required to
	// compute a volatility cone.
	MinConeSessions = 20

	// MaxWindowSessions caps the trailing history window fed into the
	// cone computation.
	MaxWindowSessions = 252

	// DefaultProjectionDays is the default cone horizon.
	DefaultProjectionDays = 30
)

// HistoricalPoint is one (date, close) observation in the cone payload.
type HistoricalPoint struct {
	Date  string  `json:"date"`
	Close float64 `json:"close"`
}

// ConePoint is one projected step of the uncertainty cone.
type ConePoint struct {
	Date           string  `json:"date"`
	PredictedPrice float64 `json:"predicted_price"`
	UpperBound95   float64 `json:"upper_bound_95"`
	LowerBound95   float64 `json:"lower_bound_95"`
	UpperBound70   float64 `json:"upper_bound_70"`
	LowerBound70   float64 `json:"lower_bound_70"`
}

// VolatilityConeResult is the structured chart payload for a cone
// projection. Cone length always equals the requested horizon.
type VolatilityConeResult struct {
	Historical []HistoricalPoint `json:"historical"`
	Cone       []ConePoint       `json:"cone"`
	Analysis   string            `json:"analysis"`
}

// VolatilityCone projects a price trajectory with 70% and 95% confidence
// bands. It computes annualized volatility from daily log returns, fits
// an OLS trend of close against a zero-based time index, and widens the
// bands with the square root of the horizon. Requires at least
// MinConeSessions chronologically ordered closes.
func VolatilityCone(tickerSymbol string, bars []market.Bar, daysToPredict int) (*VolatilityConeResult, error) {
	if daysToPredict <= 0 {
		daysToPredict = DefaultProjectionDays
	}

	if len(bars) < MinConeSessions {
		return nil, fmt.Errorf("%w: %d sessions available for %s, need at least %d",
			ErrInsufficientHistory, len(bars), tickerSymbol, MinConeSessions)
	}

	market.SortChronological(bars)
	if len(bars) > MaxWindowSessions {
		bars = bars[len(bars)-MaxWindowSessions:]
	}

	closes := make([]float64, len(bars))
	for i, b := range bars {
		closes[i] = b.Close
	}

	logReturns := make([]float64, 0, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		logReturns = append(logReturns, math.Log(closes[i]/closes[i-1]))
	}

	annualVol := sampleStdDev(logReturns) * math.Sqrt(TradingDaysPerYear)

	slope, intercept := linearFit(closes)

	log.Debug().
		Str("ticker", tickerSymbol).
		Int("sessions", len(bars)).
		Float64("annual_volatility", annualVol).
		Float64("trend_slope", slope).
		Msg("Computing volatility cone")

	historical := make([]HistoricalPoint, len(bars))
	for i, b := range bars {
		historical[i] = HistoricalPoint{Date: b.DateString(), Close: b.Close}
	}

	lastDate := bars[len(bars)-1].Date
	cone := make([]ConePoint, 0, daysToPredict)
	for i := 0; i < daysToPredict; i++ {
		daysAhead := i + 1
		stdDev := annualVol * math.Sqrt(float64(daysAhead)/TradingDaysPerYear)
		price := intercept + slope*float64(len(closes)+i)

		cone = append(cone, ConePoint{
			Date:           lastDate.AddDate(0, 0, daysAhead).Format(market.DateLayout),
			PredictedPrice: price,
			UpperBound95:   price * (1 + 1.96*stdDev),
			LowerBound95:   price * (1 - 1.96*stdDev),
			UpperBound70:   price * (1 + 1.04*stdDev),
			LowerBound70:   price * (1 - 1.04*stdDev),
		})
	}

	analysis := fmt.Sprintf(
		"A volatilidade anualizada calculada para %s é de %.2f%%. Com base na tendência linear, projetamos os preços para os próximos %d dias com bandas de confiança de 70%% e 95%%.",
		tickerSymbol, annualVol*100, daysToPredict)

	return &VolatilityConeResult{
		Historical: historical,
		Cone:       cone,
		Analysis:   analysis,
	}, nil
}

// sampleStdDev returns the sample standard deviation (n-1 denominator).
func sampleStdDev(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}

	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))

	var sqDiff float64
	for _, v := range values {
		d := v - mean
		sqDiff += d * d
	}

	return math.Sqrt(sqDiff / float64(len(values)-1))
}

// linearFit computes the ordinary least-squares line y = intercept +
// slope*x for y indexed by x = 0..len(y)-1.
func linearFit(y []float64) (slope, intercept float64) {
	n := float64(len(y))

	var sumX, sumY, sumXY, sumXX float64
	for i, v := range y {
		x := float64(i)
		sumX += x
		sumY += v
		sumXY += x * v
		sumXX += x * x
	}

	denom := n*sumXX - sumX*sumX
	if denom == 0 {
		return 0, sumY / n
	}

	slope = (n*sumXY - sumX*sumY) / denom
	intercept = (sumY - slope*sumX) / n
	return slope, intercept
}
