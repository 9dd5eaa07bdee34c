package etl

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"

	"github.com/vmaraujo/b3analyst/internal/db"
	"github.com/vmaraujo/b3analyst/internal/market"
)

// Loader bulk-writes bars into acoes_historico.
type Loader struct {
	pool db.PoolInterface
}

// NewLoader creates a loader over a pgx pool.
func NewLoader(pool db.PoolInterface) *Loader {
	return &Loader{pool: pool}
}

// Load replaces the stored rows for one ticker over the span of the
// given bars, then copies the new rows in. Replacing first keeps
// repeated runs idempotent.
func (l *Loader) Load(ctx context.Context, tickerSymbol string, bars []market.Bar) (int64, error) {
	if len(bars) == 0 {
		return 0, nil
	}

	first := bars[0].DateString()
	last := bars[len(bars)-1].DateString()

	_, err := l.pool.Exec(ctx,
		`DELETE FROM acoes_historico WHERE ticker = $1 AND date BETWEEN $2::date AND $3::date`,
		tickerSymbol, first, last)
	if err != nil {
		return 0, fmt.Errorf("failed to clear existing rows for %s: %w", tickerSymbol, err)
	}

	rows := make([][]interface{}, len(bars))
	for i, b := range bars {
		rows[i] = []interface{}{b.Ticker, b.Date, b.Open, b.High, b.Low, b.Close, b.Volume}
	}

	copied, err := l.pool.CopyFrom(ctx,
		pgx.Identifier{"acoes_historico"},
		[]string{"ticker", "date", "open", "high", "low", "close", "volume"},
		pgx.CopyFromRows(rows))
	if err != nil {
		return 0, fmt.Errorf("failed to copy rows for %s: %w", tickerSymbol, err)
	}

	log.Info().
		Str("ticker", tickerSymbol).
		Str("from", first).
		Str("to", last).
		Int64("rows", copied).
		Msg("Loaded daily candles")

	return copied, nil
}
