// Package intraday serves the current session's 1-minute price series
// with a VWAP overlay, in the shape the frontend chart consumes.
package intraday

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/vmaraujo/b3analyst/internal/etl"
	"github.com/vmaraujo/b3analyst/internal/ticker"
)

// ErrNoData means the quote API returned no candles for the session,
// typically because the market is closed.
var ErrNoData = errors.New("no intraday data")

// Fetcher pulls the current session's 1-minute candles. Satisfied by
// *etl.QuoteFetcher.
type Fetcher interface {
	FetchIntraday(ctx context.Context, tickerSymbol string) ([]etl.Candle, error)
}

// ChartData carries parallel label, price and VWAP series indexed by
// minute.
type ChartData struct {
	Labels []string  `json:"labels"`
	Price  []float64 `json:"price"`
	VWAP   []float64 `json:"vwap"`
}

// Service builds intraday charts for B3 tickers.
type Service struct {
	fetcher  Fetcher
	location *time.Location
}

// NewService creates the service. Labels use São Paulo local time,
// matching the exchange's trading hours.
func NewService(fetcher Fetcher) *Service {
	loc, err := time.LoadLocation("America/Sao_Paulo")
	if err != nil {
		loc = time.UTC
	}
	return &Service{fetcher: fetcher, location: loc}
}

// Chart fetches the session's candles and computes the cumulative
// VWAP at each minute.
func (s *Service) Chart(ctx context.Context, raw string) (*ChartData, error) {
	symbol, err := ticker.Normalize(raw)
	if err != nil {
		return nil, err
	}

	candles, err := s.fetcher.FetchIntraday(ctx, symbol)
	if err != nil {
		return nil, err
	}
	if len(candles) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoData, symbol)
	}

	chart := &ChartData{
		Labels: make([]string, len(candles)),
		Price:  make([]float64, len(candles)),
		VWAP:   VWAP(candles),
	}
	for i, candle := range candles {
		chart.Labels[i] = candle.Time.In(s.location).Format("15:04")
		chart.Price[i] = candle.Close
	}

	log.Debug().
		Str("ticker", symbol).
		Int("minutes", len(candles)).
		Msg("Built intraday chart")

	return chart, nil
}

// VWAP returns the running volume-weighted average price: cumulative
// typical price times volume over cumulative volume. Minutes before
// any volume has traded fall back to the candle's close.
func VWAP(candles []etl.Candle) []float64 {
	vwap := make([]float64, len(candles))
	var cumValue, cumVolume float64
	for i, candle := range candles {
		typical := (candle.High + candle.Low + candle.Close) / 3
		cumValue += typical * float64(candle.Volume)
		cumVolume += float64(candle.Volume)
		if cumVolume > 0 {
			vwap[i] = cumValue / cumVolume
		} else {
			vwap[i] = candle.Close
		}
	}
	return vwap
}
