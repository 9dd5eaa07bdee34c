// Package etl ingests daily OHLCV history for B3 tickers from a quote
// API into the acoes_historico table.
package etl

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/vmaraujo/b3analyst/internal/market"
)

// QuoteFetcher pulls daily candles from a Yahoo-style chart endpoint,
// rate limited across all callers.
type QuoteFetcher struct {
	endpoint   string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewQuoteFetcher creates a fetcher. requestsPerSecond throttles the
// whole process, not individual workers.
func NewQuoteFetcher(endpoint string, requestsPerSecond float64) *QuoteFetcher {
	if requestsPerSecond <= 0 {
		requestsPerSecond = 2
	}
	return &QuoteFetcher{
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		limiter:    rate.NewLimiter(rate.Limit(requestsPerSecond), 1),
	}
}

// chartResponse mirrors the relevant slice of the chart API payload.
// Null entries appear for halted sessions, hence the pointer slices.
type chartResponse struct {
	Chart struct {
		Result []chartResult `json:"result"`
		Error  *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

type chartResult struct {
	Meta struct {
		Symbol string `json:"symbol"`
	} `json:"meta"`
	Timestamp  []int64 `json:"timestamp"`
	Indicators struct {
		Quote []chartQuote `json:"quote"`
	} `json:"indicators"`
}

type chartQuote struct {
	Open   []*float64 `json:"open"`
	High   []*float64 `json:"high"`
	Low    []*float64 `json:"low"`
	Close  []*float64 `json:"close"`
	Volume []*int64   `json:"volume"`
}

// fetchChart issues one rate-limited request against the chart API
// and unwraps the payload down to the first result, or nil when the
// response carries no quotes.
func (f *QuoteFetcher) fetchChart(ctx context.Context, tickerSymbol, query string) (*chartResult, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/%s?%s", f.endpoint, tickerSymbol, query)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", "b3analyst-etl/0.1")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", tickerSymbol, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response for %s: %w", tickerSymbol, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("quote API returned status %d for %s: %s",
			resp.StatusCode, tickerSymbol, string(body[:min(len(body), 256)]))
	}

	var chart chartResponse
	if err := json.Unmarshal(body, &chart); err != nil {
		return nil, fmt.Errorf("failed to parse chart response for %s: %w", tickerSymbol, err)
	}
	if chart.Chart.Error != nil {
		return nil, fmt.Errorf("quote API error for %s: %s", tickerSymbol, chart.Chart.Error.Description)
	}
	if len(chart.Chart.Result) == 0 || len(chart.Chart.Result[0].Indicators.Quote) == 0 {
		return nil, nil
	}
	return &chart.Chart.Result[0], nil
}

// Fetch downloads up to lookbackDays of daily candles for one ticker.
func (f *QuoteFetcher) Fetch(ctx context.Context, tickerSymbol string, lookbackDays int) ([]market.Bar, error) {
	start := time.Now()
	result, err := f.fetchChart(ctx, tickerSymbol, fmt.Sprintf("interval=1d&range=%dd", lookbackDays))
	if err != nil {
		return nil, err
	}
	if result == nil {
		return nil, nil
	}
	quote := result.Indicators.Quote[0]

	bars := make([]market.Bar, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		if i >= len(quote.Close) || quote.Close[i] == nil {
			continue
		}
		bar := market.Bar{
			Ticker: tickerSymbol,
			Date:   time.Unix(ts, 0).UTC().Truncate(24 * time.Hour),
			Close:  *quote.Close[i],
		}
		if i < len(quote.Open) && quote.Open[i] != nil {
			bar.Open = *quote.Open[i]
		}
		if i < len(quote.High) && quote.High[i] != nil {
			bar.High = *quote.High[i]
		}
		if i < len(quote.Low) && quote.Low[i] != nil {
			bar.Low = *quote.Low[i]
		}
		if i < len(quote.Volume) && quote.Volume[i] != nil {
			bar.Volume = *quote.Volume[i]
		}
		bars = append(bars, bar)
	}

	log.Debug().
		Str("ticker", tickerSymbol).
		Int("bars", len(bars)).
		Dur("duration", time.Since(start)).
		Msg("Fetched daily candles")

	return bars, nil
}

// Candle is a single intraday bar, timestamped to the minute.
type Candle struct {
	Time   time.Time
	High   float64
	Low    float64
	Close  float64
	Volume int64
}

// FetchIntraday downloads the current session's 1-minute candles for
// one ticker. Minutes without a traded price are dropped.
func (f *QuoteFetcher) FetchIntraday(ctx context.Context, tickerSymbol string) ([]Candle, error) {
	start := time.Now()
	result, err := f.fetchChart(ctx, tickerSymbol, "interval=1m&range=1d")
	if err != nil {
		return nil, err
	}
	if result == nil {
		return nil, nil
	}
	quote := result.Indicators.Quote[0]

	candles := make([]Candle, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		if i >= len(quote.Close) || quote.Close[i] == nil {
			continue
		}
		candle := Candle{
			Time:  time.Unix(ts, 0).UTC(),
			Close: *quote.Close[i],
		}
		if i < len(quote.High) && quote.High[i] != nil {
			candle.High = *quote.High[i]
		}
		if i < len(quote.Low) && quote.Low[i] != nil {
			candle.Low = *quote.Low[i]
		}
		if i < len(quote.Volume) && quote.Volume[i] != nil {
			candle.Volume = *quote.Volume[i]
		}
		candles = append(candles, candle)
	}

	log.Debug().
		Str("ticker", tickerSymbol).
		Int("candles", len(candles)).
		Dur("duration", time.Since(start)).
		Msg("Fetched intraday candles")

	return candles, nil
}
