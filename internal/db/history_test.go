package db

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockStore(t *testing.T) (pgxmock.PgxPoolIface, *PgHistoryStore) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock, NewHistoryStore(mock)
}

func barRows() *pgxmock.Rows {
	return pgxmock.NewRows([]string{"ticker", "date", "open", "high", "low", "close", "volume"})
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestQueryRangeMostRecent(t *testing.T) {
	mock, store := newMockStore(t)

	rows := barRows().
		AddRow("PETR4.SA", day(2024, 6, 10), 35.0, 36.0, 34.5, 35.8, int64(1_000_000)).
		AddRow("PETR4.SA", day(2024, 6, 7), 34.0, 35.5, 33.9, 35.0, int64(900_000))

	mock.ExpectQuery("FROM acoes_historico").
		WithArgs("PETR4.SA", DefaultRangeLimit).
		WillReturnRows(rows)

	bars, usedFallback, err := store.QueryRange(context.Background(), "PETR4.SA", "", "", 0)
	require.NoError(t, err)
	assert.False(t, usedFallback)
	require.Len(t, bars, 2)
	assert.Equal(t, "2024-06-10", bars[0].DateString())
	assert.Equal(t, 35.8, bars[0].Close)
	assert.Equal(t, int64(1_000_000), bars[0].Volume)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestQueryRangeBounded(t *testing.T) {
	mock, store := newMockStore(t)

	rows := barRows().
		AddRow("VALE3.SA", day(2024, 1, 15), 60.0, 61.0, 59.5, 60.5, int64(2_000_000))

	mock.ExpectQuery("date >= \\$2::date AND date <= \\$3::date").
		WithArgs("VALE3.SA", "2024-01-01", "2024-01-31", 100).
		WillReturnRows(rows)

	bars, usedFallback, err := store.QueryRange(context.Background(), "VALE3.SA", "2024-01-01", "2024-01-31", 100)
	require.NoError(t, err)
	assert.False(t, usedFallback)
	require.Len(t, bars, 1)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestQueryRangeFallbackToMostRecentBar(t *testing.T) {
	mock, store := newMockStore(t)

	// The requested period matches nothing.
	mock.ExpectQuery("date >= \\$2::date AND date <= \\$3::date").
		WithArgs("PETR4.SA", "2024-01-01", "2024-01-31", DefaultRangeLimit).
		WillReturnRows(barRows())

	// The store retries with the single most recent bar.
	mock.ExpectQuery("ORDER BY date DESC\\s+LIMIT 1").
		WithArgs("PETR4.SA").
		WillReturnRows(barRows().
			AddRow("PETR4.SA", day(2023, 12, 28), 33.0, 34.0, 32.8, 33.5, int64(800_000)))

	bars, usedFallback, err := store.QueryRange(context.Background(), "PETR4.SA", "2024-01-01", "2024-01-31", 0)
	require.NoError(t, err)
	assert.True(t, usedFallback)
	require.Len(t, bars, 1)
	assert.Equal(t, "2023-12-28", bars[0].DateString())

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestQueryRangeNoDataAtAll(t *testing.T) {
	mock, store := newMockStore(t)

	mock.ExpectQuery("date >= \\$2::date").
		WithArgs("XXXX9.SA", "2024-01-01", "2024-01-31", DefaultRangeLimit).
		WillReturnRows(barRows())
	mock.ExpectQuery("LIMIT 1").
		WithArgs("XXXX9.SA").
		WillReturnRows(barRows())

	bars, usedFallback, err := store.QueryRange(context.Background(), "XXXX9.SA", "2024-01-01", "2024-01-31", 0)
	require.NoError(t, err)
	assert.False(t, usedFallback)
	assert.Empty(t, bars)
}

func TestQueryRangeStoreFailure(t *testing.T) {
	mock, store := newMockStore(t)

	mock.ExpectQuery("FROM acoes_historico").
		WithArgs("PETR4.SA", DefaultRangeLimit).
		WillReturnError(errors.New("connection refused"))

	_, _, err := store.QueryRange(context.Background(), "PETR4.SA", "", "", 0)
	assert.True(t, errors.Is(err, ErrDataUnavailable))
}

func TestQueryPoint(t *testing.T) {
	mock, store := newMockStore(t)

	mock.ExpectQuery("WHERE ticker = \\$1 AND date = \\$2::date").
		WithArgs("PETR4.SA", "2024-06-10").
		WillReturnRows(barRows().
			AddRow("PETR4.SA", day(2024, 6, 10), 35.0, 36.0, 34.5, 35.8, int64(1_000_000)))

	bar, err := store.QueryPoint(context.Background(), "PETR4.SA", "2024-06-10")
	require.NoError(t, err)
	require.NotNil(t, bar)
	assert.Equal(t, 35.8, bar.Close)
}

func TestQueryPointMissing(t *testing.T) {
	mock, store := newMockStore(t)

	mock.ExpectQuery("WHERE ticker = \\$1 AND date = \\$2::date").
		WithArgs("PETR4.SA", "2024-06-11").
		WillReturnError(pgx.ErrNoRows)

	bar, err := store.QueryPoint(context.Background(), "PETR4.SA", "2024-06-11")
	require.NoError(t, err)
	assert.Nil(t, bar)
}

func TestQueryMarket(t *testing.T) {
	mock, store := newMockStore(t)

	mock.ExpectQuery("WHERE date = \\$1::date").
		WithArgs("2024-06-10").
		WillReturnRows(barRows().
			AddRow("PETR4.SA", day(2024, 6, 10), 35.0, 36.0, 34.5, 35.8, int64(1_000_000)).
			AddRow("VALE3.SA", day(2024, 6, 10), 60.0, 61.0, 59.5, 60.5, int64(2_000_000)))

	bars, usedDate, err := store.QueryMarket(context.Background(), "2024-06-10")
	require.NoError(t, err)
	assert.Equal(t, "2024-06-10", usedDate)
	assert.Len(t, bars, 2)
}

func TestQueryMarketFallsBackToLatestDate(t *testing.T) {
	mock, store := newMockStore(t)

	mock.ExpectQuery("WHERE date = \\$1::date").
		WithArgs("2024-01-01").
		WillReturnRows(barRows())

	mock.ExpectQuery("ORDER BY date DESC LIMIT 1").
		WillReturnRows(pgxmock.NewRows([]string{"date"}).AddRow(day(2023, 12, 28)))

	mock.ExpectQuery("WHERE date = \\$1::date").
		WithArgs("2023-12-28").
		WillReturnRows(barRows().
			AddRow("PETR4.SA", day(2023, 12, 28), 33.0, 34.0, 32.8, 33.5, int64(800_000)))

	bars, usedDate, err := store.QueryMarket(context.Background(), "2024-01-01")
	require.NoError(t, err)
	assert.Equal(t, "2023-12-28", usedDate, "result must reflect the substituted date")
	assert.Len(t, bars, 1)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestQueryMarketEmptyStore(t *testing.T) {
	mock, store := newMockStore(t)

	mock.ExpectQuery("WHERE date = \\$1::date").
		WithArgs("2024-01-01").
		WillReturnRows(barRows())
	mock.ExpectQuery("ORDER BY date DESC LIMIT 1").
		WillReturnError(pgx.ErrNoRows)

	bars, usedDate, err := store.QueryMarket(context.Background(), "2024-01-01")
	require.NoError(t, err)
	assert.Equal(t, "2024-01-01", usedDate)
	assert.Empty(t, bars)
}

func TestListTickers(t *testing.T) {
	mock, store := newMockStore(t)

	mock.ExpectQuery("SELECT DISTINCT ticker").
		WillReturnRows(pgxmock.NewRows([]string{"ticker"}).
			AddRow("ABEV3.SA").
			AddRow("PETR4.SA").
			AddRow("VALE3.SA"))

	tickers, err := store.ListTickers(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"ABEV3.SA", "PETR4.SA", "VALE3.SA"}, tickers)
}

func TestQueryRangeAll(t *testing.T) {
	mock, store := newMockStore(t)

	mock.ExpectQuery("date >= \\$1::date AND date <= \\$2::date").
		WithArgs("2024-05-01", "2024-05-31").
		WillReturnRows(barRows().
			AddRow("PETR4.SA", day(2024, 5, 2), 35.0, 36.0, 34.5, 35.8, int64(1_000_000)).
			AddRow("VALE3.SA", day(2024, 5, 2), 60.0, 61.0, 59.5, 60.5, int64(2_000_000)))

	bars, err := store.QueryRangeAll(context.Background(), "2024-05-01", "2024-05-31")
	require.NoError(t, err)
	assert.Len(t, bars, 2)
}
