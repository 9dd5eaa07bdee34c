package tools

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vmaraujo/b3analyst/internal/market"
)

// fakeStore is an in-memory HistoryStore for tool tests.
type fakeStore struct {
	series     map[string][]market.Bar
	marketBars []market.Bar
	marketDate string
	tickers    []string
	fallback   bool
	err        error
}

func (f *fakeStore) QueryRange(_ context.Context, tickerSymbol, _, _ string, _ int) ([]market.Bar, bool, error) {
	if f.err != nil {
		return nil, false, f.err
	}
	return f.series[tickerSymbol], f.fallback, nil
}

func (f *fakeStore) QueryPoint(_ context.Context, tickerSymbol, date string) (*market.Bar, error) {
	if f.err != nil {
		return nil, f.err
	}
	for _, b := range f.series[tickerSymbol] {
		if b.DateString() == date {
			return &b, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) QueryMarket(_ context.Context, _ string) ([]market.Bar, string, error) {
	if f.err != nil {
		return nil, "", f.err
	}
	return f.marketBars, f.marketDate, nil
}

func (f *fakeStore) QueryRangeAll(_ context.Context, _, _ string) ([]market.Bar, error) {
	if f.err != nil {
		return nil, f.err
	}
	var all []market.Bar
	for _, bars := range f.series {
		all = append(all, bars...)
	}
	return all, nil
}

func (f *fakeStore) ListTickers(_ context.Context) ([]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.tickers, nil
}

func (f *fakeStore) LatestDate(_ context.Context) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.marketDate, nil
}

type fakeNotifier struct {
	received []string
	err      error
}

func (f *fakeNotifier) Notify(_ context.Context, requiredAnalysis string) error {
	if f.err != nil {
		return f.err
	}
	f.received = append(f.received, requiredAnalysis)
	return nil
}

func seriesBars(tickerSymbol string, closes []float64) []market.Bar {
	start := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	bars := make([]market.Bar, len(closes))
	for i, c := range closes {
		bars[i] = market.Bar{
			Ticker: tickerSymbol,
			Date:   start.AddDate(0, 0, i),
			Open:   c * 0.99,
			High:   c * 1.01,
			Low:    c * 0.98,
			Close:  c,
			Volume: 1_000_000,
		}
	}
	return bars
}

func trendCloses(n int) []float64 {
	closes := make([]float64, n)
	for i := range closes {
		closes[i] = 30 + 0.1*float64(i)
	}
	return closes
}

func newTestRegistry(store *fakeStore, notifier Notifier) (*Registry, *Service) {
	svc := NewService(store, notifier)
	svc.now = func() time.Time {
		return time.Date(2024, 9, 18, 17, 30, 0, 0, time.UTC) // a Wednesday
	}
	return NewRegistry(svc), svc
}

func args(t *testing.T, v interface{}) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(v)
	require.NoError(t, err)
	return raw
}

func TestRegistryCatalogue(t *testing.T) {
	registry, _ := newTestRegistry(&fakeStore{}, nil)

	list := registry.List()
	require.Len(t, list, 9)
	assert.Equal(t, "get_stock_data", list[0].Name)
	assert.Equal(t, "notify_developer_of_missing_tool", list[len(list)-1].Name)

	for _, d := range list {
		assert.NotEmpty(t, d.Description, d.Name)
		assert.NotNil(t, d.Handler, d.Name)
		assert.Equal(t, "object", d.Parameters["type"], d.Name)
	}
}

func TestDispatchUnknownTool(t *testing.T) {
	registry, _ := newTestRegistry(&fakeStore{}, nil)

	result := registry.Dispatch(context.Background(), "get_weather", nil)
	assert.Equal(t, KindError, result.Kind)
	assert.Contains(t, result.Text, "Ferramenta desconhecida")
}

func TestGetStockData(t *testing.T) {
	store := &fakeStore{series: map[string][]market.Bar{
		"PETR4.SA": seriesBars("PETR4.SA", []float64{38.5, 39.1, 38.9}),
	}}
	registry, _ := newTestRegistry(store, nil)

	result := registry.Dispatch(context.Background(), "get_stock_data",
		args(t, map[string]string{"ticker": "petr4.sa"}))

	require.Equal(t, KindText, result.Kind)

	var records []barRecord
	require.NoError(t, json.Unmarshal([]byte(result.Text), &records))
	require.Len(t, records, 3)
	assert.Equal(t, "2024-01-02", records[0].Date)
	assert.InDelta(t, 38.5*1_000_000, records[0].VolumeFinanceiro, 1e-6)
}

func TestGetStockDataFallbackAnnotates(t *testing.T) {
	store := &fakeStore{
		series:   map[string][]market.Bar{"PETR4.SA": seriesBars("PETR4.SA", []float64{38.5})},
		fallback: true,
	}
	registry, _ := newTestRegistry(store, nil)

	result := registry.Dispatch(context.Background(), "get_stock_data",
		args(t, map[string]string{"ticker": "PETR4.SA", "start_date": "2030-01-01", "end_date": "2030-01-31"}))

	require.Equal(t, KindText, result.Kind)
	assert.Contains(t, result.Text, "pregão mais recente disponível")
	assert.Contains(t, result.Text, "2024-01-02")
}

func TestGetStockDataMissingTicker(t *testing.T) {
	registry, _ := newTestRegistry(&fakeStore{series: map[string][]market.Bar{}}, nil)

	result := registry.Dispatch(context.Background(), "get_stock_data",
		args(t, map[string]string{"ticker": "XPTO3.SA"}))

	assert.Equal(t, KindError, result.Kind)
	assert.Contains(t, result.Text, "Nenhum dado encontrado para o ticker XPTO3.SA")
}

func TestGetStockDataStoreError(t *testing.T) {
	registry, _ := newTestRegistry(&fakeStore{err: errors.New("connection refused")}, nil)

	result := registry.Dispatch(context.Background(), "get_stock_data",
		args(t, map[string]string{"ticker": "PETR4.SA"}))

	assert.Equal(t, KindError, result.Kind)
	assert.Contains(t, result.Text, "Ocorreu um erro ao buscar os dados")
}

func TestVolatilityConeStructuredResult(t *testing.T) {
	store := &fakeStore{series: map[string][]market.Bar{
		"VALE3.SA": seriesBars("VALE3.SA", trendCloses(60)),
	}}
	registry, _ := newTestRegistry(store, nil)

	result := registry.Dispatch(context.Background(), "get_volatility_cone",
		args(t, map[string]interface{}{"ticker": "VALE3.SA", "days_to_predict": 10}))

	require.Equal(t, KindVolatilityCone, result.Kind)
	assert.True(t, result.Structured())

	// The observation fed back to the planner is the JSON payload.
	var payload map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(result.Observation()), &payload))
	assert.Contains(t, payload, "cone")
	assert.Contains(t, payload, "analysis")
}

func TestVolatilityConeInsufficientHistory(t *testing.T) {
	store := &fakeStore{series: map[string][]market.Bar{
		"VALE3.SA": seriesBars("VALE3.SA", trendCloses(5)),
	}}
	registry, _ := newTestRegistry(store, nil)

	result := registry.Dispatch(context.Background(), "get_volatility_cone",
		args(t, map[string]string{"ticker": "VALE3.SA"}))

	assert.Equal(t, KindError, result.Kind)
	assert.Contains(t, result.Text, "insuficientes")
	assert.Contains(t, result.Text, "20")
}

func TestVolatilityConeRejectsInvalidTicker(t *testing.T) {
	registry, _ := newTestRegistry(&fakeStore{}, nil)

	result := registry.Dispatch(context.Background(), "get_volatility_cone",
		args(t, map[string]string{"ticker": "???"}))

	assert.Equal(t, KindError, result.Kind)
	assert.Contains(t, result.Text, "Ticker inválido")
}

func TestMarketSummarySubstitutedDate(t *testing.T) {
	store := &fakeStore{
		marketBars: seriesBars("PETR4.SA", []float64{38.5}),
		marketDate: "2024-01-02",
	}
	registry, _ := newTestRegistry(store, nil)

	result := registry.Dispatch(context.Background(), "get_market_summary",
		args(t, map[string]string{"date": "2024-01-05"}))

	require.Equal(t, KindMarketSummary, result.Kind)
	assert.Contains(t, result.Observation(), "2024-01-02")
}

func TestTopStocksInvalidCriterion(t *testing.T) {
	store := &fakeStore{series: map[string][]market.Bar{
		"PETR4.SA": seriesBars("PETR4.SA", []float64{38.5}),
	}}
	registry, _ := newTestRegistry(store, nil)

	result := registry.Dispatch(context.Background(), "get_top_stocks_by_criteria",
		args(t, map[string]string{"start_date": "2024-01-01", "end_date": "2024-01-31", "criteria": "lucro"}))

	assert.Equal(t, KindError, result.Kind)
	assert.Contains(t, result.Text, "Critério 'lucro' inválido")
}

func TestTopStocksRanking(t *testing.T) {
	store := &fakeStore{series: map[string][]market.Bar{
		"PETR4.SA": seriesBars("PETR4.SA", []float64{38.5}),
		"VALE3.SA": seriesBars("VALE3.SA", []float64{61.2}),
	}}
	registry, _ := newTestRegistry(store, nil)

	result := registry.Dispatch(context.Background(), "get_top_stocks_by_criteria",
		args(t, map[string]string{"start_date": "2024-01-01", "end_date": "2024-01-31"}))

	require.Equal(t, KindRanking, result.Kind)
	obs := result.Observation()
	assert.Contains(t, obs, "VALE3.SA")
	assert.Contains(t, obs, "PETR4.SA")
}

func TestCurrentDatetimePortugueseWeekday(t *testing.T) {
	registry, _ := newTestRegistry(&fakeStore{}, nil)

	result := registry.Dispatch(context.Background(), "get_current_datetime", nil)

	require.Equal(t, KindText, result.Kind)
	// 2024-09-18 17:30 UTC is 14:30 on a Wednesday in São Paulo.
	assert.Contains(t, result.Text, "2024-09-18")
	assert.Contains(t, result.Text, "Quarta-feira")
}

func TestListAvailableTickers(t *testing.T) {
	store := &fakeStore{tickers: []string{"VALE3.SA", "PETR4.SA"}}
	registry, _ := newTestRegistry(store, nil)

	result := registry.Dispatch(context.Background(), "list_available_tickers", nil)

	require.Equal(t, KindText, result.Kind)
	assert.Contains(t, result.Text, "2 tickers")
	petr := strings.Index(result.Text, "PETR4.SA")
	vale := strings.Index(result.Text, "VALE3.SA")
	require.GreaterOrEqual(t, petr, 0)
	assert.Less(t, petr, vale, "tickers must be listed sorted")
}

func TestListAvailableTickersEmpty(t *testing.T) {
	registry, _ := newTestRegistry(&fakeStore{}, nil)

	result := registry.Dispatch(context.Background(), "list_available_tickers", nil)
	assert.Equal(t, KindError, result.Kind)
}

func TestAssetAnalyticsReport(t *testing.T) {
	store := &fakeStore{series: map[string][]market.Bar{
		"ITUB4.SA": seriesBars("ITUB4.SA", trendCloses(60)),
	}}
	registry, _ := newTestRegistry(store, nil)

	result := registry.Dispatch(context.Background(), "get_asset_analytics",
		args(t, map[string]string{"ticker": "ITUB4.SA"}))

	require.Equal(t, KindText, result.Kind)
	assert.Contains(t, result.Text, "Análise Técnica de ITUB4.SA")
	assert.Contains(t, result.Text, "RSI (14 períodos)")
	assert.Contains(t, result.Text, "SMA (21 períodos)")
	// Monotonically rising closes sit above their own moving average.
	assert.Contains(t, result.Text, "**acima**")
}

func TestCompareAssets(t *testing.T) {
	store := &fakeStore{series: map[string][]market.Bar{
		"PETR4.SA": seriesBars("PETR4.SA", trendCloses(30)),
		"VALE3.SA": seriesBars("VALE3.SA", []float64{60, 61, 59, 62, 63, 62, 64, 65, 64, 66, 67, 66, 68, 69, 68, 70, 71, 70, 72, 73, 72, 74, 75, 74, 76, 77, 76, 78, 79, 78}),
	}}
	registry, _ := newTestRegistry(store, nil)

	result := registry.Dispatch(context.Background(), "compare_assets",
		args(t, map[string]interface{}{
			"tickers":    []string{"PETR4.SA", "VALE3.SA"},
			"start_date": "2024-01-02",
			"end_date":   "2024-02-15",
		}))

	require.Equal(t, KindText, result.Kind)
	assert.Contains(t, result.Text, "PETR4.SA")
	assert.Contains(t, result.Text, "VALE3.SA")
	assert.Contains(t, result.Text, "Correlação")
}

func TestCompareAssetsRejectsFallbackSeries(t *testing.T) {
	store := &fakeStore{
		series: map[string][]market.Bar{
			"PETR4.SA": seriesBars("PETR4.SA", trendCloses(30)),
			"VALE3.SA": seriesBars("VALE3.SA", trendCloses(30)),
		},
		fallback: true,
	}
	registry, _ := newTestRegistry(store, nil)

	result := registry.Dispatch(context.Background(), "compare_assets",
		args(t, map[string]interface{}{
			"tickers":    []string{"PETR4.SA", "VALE3.SA"},
			"start_date": "2030-01-01",
			"end_date":   "2030-01-31",
		}))

	assert.Equal(t, KindError, result.Kind)
	assert.Contains(t, result.Text, "Nenhum dado encontrado")
}

func TestCompareAssetsRequiresTwoTickers(t *testing.T) {
	registry, _ := newTestRegistry(&fakeStore{}, nil)

	result := registry.Dispatch(context.Background(), "compare_assets",
		args(t, map[string]interface{}{
			"tickers":    []string{"PETR4.SA"},
			"start_date": "2024-01-01",
			"end_date":   "2024-01-31",
		}))

	assert.Equal(t, KindError, result.Kind)
	assert.Contains(t, result.Text, "pelo menos dois tickers")
}

func TestNotifyDeveloper(t *testing.T) {
	notifier := &fakeNotifier{}
	registry, _ := newTestRegistry(&fakeStore{}, notifier)

	result := registry.Dispatch(context.Background(), "notify_developer_of_missing_tool",
		args(t, map[string]string{"required_analysis": "análise de dividendos"}))

	require.Equal(t, KindText, result.Kind)
	assert.Contains(t, result.Text, "desenvolvedor foi notificado")
	require.Len(t, notifier.received, 1)
	assert.Equal(t, "análise de dividendos", notifier.received[0])
}

func TestNotifyDeveloperDeliveryFailure(t *testing.T) {
	notifier := &fakeNotifier{err: errors.New("webhook 500")}
	registry, _ := newTestRegistry(&fakeStore{}, notifier)

	result := registry.Dispatch(context.Background(), "notify_developer_of_missing_tool",
		args(t, map[string]string{"required_analysis": "análise de dividendos"}))

	assert.Equal(t, KindError, result.Kind)
	assert.Contains(t, result.Text, "erro ao tentar notificar o desenvolvedor")
}

func TestNotifyDeveloperWithoutNotifier(t *testing.T) {
	registry, _ := newTestRegistry(&fakeStore{}, nil)

	result := registry.Dispatch(context.Background(), "notify_developer_of_missing_tool",
		args(t, map[string]string{"required_analysis": "análise de dividendos"}))

	assert.Equal(t, KindError, result.Kind)
	assert.Contains(t, result.Text, "não está configurada")
}
