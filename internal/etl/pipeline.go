package etl

import (
	"context"
	"sync/atomic"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/vmaraujo/b3analyst/internal/market"
)

// Fetcher is the extraction stage. Satisfied by *QuoteFetcher.
type Fetcher interface {
	Fetch(ctx context.Context, tickerSymbol string, lookbackDays int) ([]market.Bar, error)
}

// Sink is the load stage. Satisfied by *Loader.
type Sink interface {
	Load(ctx context.Context, tickerSymbol string, bars []market.Bar) (int64, error)
}

// Pipeline runs fetch-clean-load for a set of tickers with a bounded
// worker pool.
type Pipeline struct {
	fetcher      Fetcher
	sink         Sink
	workers      int
	lookbackDays int
}

// Summary reports a pipeline run. TickersSkipped counts tickers with
// no usable candles; TickersFailed counts fetch or load errors.
type Summary struct {
	TickersProcessed int
	TickersSkipped   int
	TickersFailed    int
	RowsLoaded       int64
}

// NewPipeline assembles the pipeline.
func NewPipeline(fetcher Fetcher, sink Sink, workers, lookbackDays int) *Pipeline {
	if workers <= 0 {
		workers = 4
	}
	if lookbackDays <= 0 {
		lookbackDays = 5
	}
	return &Pipeline{
		fetcher:      fetcher,
		sink:         sink,
		workers:      workers,
		lookbackDays: lookbackDays,
	}
}

// Run processes every ticker. Per-ticker failures are logged and
// counted, never fatal, so one bad symbol does not stop the rest of
// the universe from loading. Only context cancellation aborts the run.
func (p *Pipeline) Run(ctx context.Context, tickers []string) (*Summary, error) {
	var processed, skipped, failed, rowsLoaded int64

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)

	for _, tickerSymbol := range tickers {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			bars, err := p.fetcher.Fetch(ctx, tickerSymbol, p.lookbackDays)
			if err != nil {
				log.Error().Err(err).Str("ticker", tickerSymbol).Msg("Fetch failed, skipping ticker")
				atomic.AddInt64(&failed, 1)
				return nil
			}

			bars = Clean(bars)
			if len(bars) == 0 {
				log.Warn().Str("ticker", tickerSymbol).Msg("No usable candles, skipping")
				atomic.AddInt64(&skipped, 1)
				return nil
			}

			loaded, err := p.sink.Load(ctx, tickerSymbol, bars)
			if err != nil {
				log.Error().Err(err).Str("ticker", tickerSymbol).Msg("Load failed, skipping ticker")
				atomic.AddInt64(&failed, 1)
				return nil
			}

			atomic.AddInt64(&processed, 1)
			atomic.AddInt64(&rowsLoaded, loaded)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	summary := &Summary{
		TickersProcessed: int(processed),
		TickersSkipped:   int(skipped),
		TickersFailed:    int(failed),
		RowsLoaded:       rowsLoaded,
	}

	log.Info().
		Int("processed", summary.TickersProcessed).
		Int("skipped", summary.TickersSkipped).
		Int("failed", summary.TickersFailed).
		Int64("rows", summary.RowsLoaded).
		Msg("Ingestion pipeline finished")

	return summary, nil
}
