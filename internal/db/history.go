package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"

	"github.com/vmaraujo/b3analyst/internal/market"
)

// DefaultRangeLimit caps per-ticker range queries at one trading year.
const DefaultRangeLimit = 252

// HistoryStore is the query surface the agent tools read prices
// through. Implementations must apply the fallback policy described on
// each method; all storage failures wrap ErrDataUnavailable.
type HistoryStore interface {
	// QueryRange returns bars for one ticker, date-descending. With
	// both bounds set it filters inclusively; when a bounded query
	// matches nothing it retries with the single most recent bar and
	// reports usedFallback=true.
	QueryRange(ctx context.Context, tickerSymbol, startDate, endDate string, limit int) (bars []market.Bar, usedFallback bool, err error)

	// QueryPoint returns the bar for one ticker on one date, or nil.
	QueryPoint(ctx context.Context, tickerSymbol, date string) (*market.Bar, error)

	// QueryMarket returns every ticker's bar for one date. When the
	// date has no rows it retries with the most recent date that has
	// any; usedDate reports the date actually queried.
	QueryMarket(ctx context.Context, date string) (bars []market.Bar, usedDate string, err error)

	// QueryRangeAll returns all tickers' bars inside a date range.
	QueryRangeAll(ctx context.Context, startDate, endDate string) ([]market.Bar, error)

	// ListTickers returns the distinct known tickers, sorted.
	ListTickers(ctx context.Context) ([]string, error)

	// LatestDate returns the most recent date with any data, or ""
	// when the store is empty.
	LatestDate(ctx context.Context) (string, error)
}

// PgHistoryStore implements HistoryStore over the acoes_historico table.
type PgHistoryStore struct {
	pool PoolInterface
}

// NewHistoryStore creates a price history store backed by a pgx pool.
func NewHistoryStore(pool PoolInterface) *PgHistoryStore {
	return &PgHistoryStore{pool: pool}
}

const barColumns = "ticker, date, open, high, low, close, volume"

func (s *PgHistoryStore) QueryRange(ctx context.Context, tickerSymbol, startDate, endDate string, limit int) ([]market.Bar, bool, error) {
	if limit <= 0 {
		limit = DefaultRangeLimit
	}

	bounded := startDate != "" && endDate != ""

	var (
		rows pgx.Rows
		err  error
	)
	if bounded {
		rows, err = s.pool.Query(ctx, `
			SELECT `+barColumns+`
			FROM acoes_historico
			WHERE ticker = $1 AND date >= $2::date AND date <= $3::date
			ORDER BY date DESC
			LIMIT $4
		`, tickerSymbol, startDate, endDate, limit)
	} else {
		rows, err = s.pool.Query(ctx, `
			SELECT `+barColumns+`
			FROM acoes_historico
			WHERE ticker = $1
			ORDER BY date DESC
			LIMIT $2
		`, tickerSymbol, limit)
	}
	if err != nil {
		return nil, false, fmt.Errorf("%w: range query for %s: %w", ErrDataUnavailable, tickerSymbol, err)
	}

	bars, err := scanBars(rows)
	if err != nil {
		return nil, false, fmt.Errorf("%w: range query for %s: %w", ErrDataUnavailable, tickerSymbol, err)
	}

	if len(bars) > 0 || !bounded {
		return bars, false, nil
	}

	// Nothing inside the requested period: fall back to the most
	// recent session for this ticker. The caller must tell the user
	// the original period had no data.
	log.Warn().
		Str("ticker", tickerSymbol).
		Str("start_date", startDate).
		Str("end_date", endDate).
		Msg("No data in requested period, falling back to most recent session")

	rows, err = s.pool.Query(ctx, `
		SELECT `+barColumns+`
		FROM acoes_historico
		WHERE ticker = $1
		ORDER BY date DESC
		LIMIT 1
	`, tickerSymbol)
	if err != nil {
		return nil, false, fmt.Errorf("%w: fallback query for %s: %w", ErrDataUnavailable, tickerSymbol, err)
	}

	bars, err = scanBars(rows)
	if err != nil {
		return nil, false, fmt.Errorf("%w: fallback query for %s: %w", ErrDataUnavailable, tickerSymbol, err)
	}

	return bars, len(bars) > 0, nil
}

func (s *PgHistoryStore) QueryPoint(ctx context.Context, tickerSymbol, date string) (*market.Bar, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+barColumns+`
		FROM acoes_historico
		WHERE ticker = $1 AND date = $2::date
	`, tickerSymbol, date)

	var b market.Bar
	err := row.Scan(&b.Ticker, &b.Date, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: point query for %s on %s: %w", ErrDataUnavailable, tickerSymbol, date, err)
	}
	return &b, nil
}

func (s *PgHistoryStore) QueryMarket(ctx context.Context, date string) ([]market.Bar, string, error) {
	bars, err := s.queryMarketDate(ctx, date)
	if err != nil {
		return nil, "", err
	}
	if len(bars) > 0 {
		return bars, date, nil
	}

	latest, err := s.LatestDate(ctx)
	if err != nil {
		return nil, "", err
	}
	if latest == "" || latest == date {
		return nil, date, nil
	}

	log.Warn().
		Str("requested_date", date).
		Str("latest_date", latest).
		Msg("No market data for requested date, using latest available")

	bars, err = s.queryMarketDate(ctx, latest)
	if err != nil {
		return nil, "", err
	}
	return bars, latest, nil
}

func (s *PgHistoryStore) queryMarketDate(ctx context.Context, date string) ([]market.Bar, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+barColumns+`
		FROM acoes_historico
		WHERE date = $1::date AND close IS NOT NULL AND volume IS NOT NULL
	`, date)
	if err != nil {
		return nil, fmt.Errorf("%w: market query for %s: %w", ErrDataUnavailable, date, err)
	}

	bars, err := scanBars(rows)
	if err != nil {
		return nil, fmt.Errorf("%w: market query for %s: %w", ErrDataUnavailable, date, err)
	}
	return bars, nil
}

func (s *PgHistoryStore) QueryRangeAll(ctx context.Context, startDate, endDate string) ([]market.Bar, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+barColumns+`
		FROM acoes_historico
		WHERE date >= $1::date AND date <= $2::date
		  AND close IS NOT NULL AND volume IS NOT NULL
	`, startDate, endDate)
	if err != nil {
		return nil, fmt.Errorf("%w: range query %s to %s: %w", ErrDataUnavailable, startDate, endDate, err)
	}

	bars, err := scanBars(rows)
	if err != nil {
		return nil, fmt.Errorf("%w: range query %s to %s: %w", ErrDataUnavailable, startDate, endDate, err)
	}
	return bars, nil
}

func (s *PgHistoryStore) ListTickers(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT DISTINCT ticker FROM acoes_historico ORDER BY ticker
	`)
	if err != nil {
		return nil, fmt.Errorf("%w: listing tickers: %w", ErrDataUnavailable, err)
	}
	defer rows.Close()

	var tickers []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, fmt.Errorf("%w: scanning ticker: %w", ErrDataUnavailable, err)
		}
		tickers = append(tickers, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: listing tickers: %w", ErrDataUnavailable, err)
	}
	return tickers, nil
}

func (s *PgHistoryStore) LatestDate(ctx context.Context) (string, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT date FROM acoes_historico ORDER BY date DESC LIMIT 1
	`)

	var b market.Bar
	err := row.Scan(&b.Date)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("%w: latest date query: %w", ErrDataUnavailable, err)
	}
	return b.DateString(), nil
}

func scanBars(rows pgx.Rows) ([]market.Bar, error) {
	defer rows.Close()

	var bars []market.Bar
	for rows.Next() {
		var b market.Bar
		if err := rows.Scan(&b.Ticker, &b.Date, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume); err != nil {
			return nil, fmt.Errorf("failed to scan bar: %w", err)
		}
		bars = append(bars, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating bars: %w", err)
	}
	return bars, nil
}
