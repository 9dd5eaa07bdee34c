package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/vmaraujo/b3analyst/internal/analytics"
	"github.com/vmaraujo/b3analyst/internal/market"
	"github.com/vmaraujo/b3analyst/internal/ticker"
)

// barRecord is the per-session record shape returned by get_stock_data,
// including the derived financial volume.
type barRecord struct {
	Date             string  `json:"date"`
	Open             float64 `json:"open"`
	High             float64 `json:"high"`
	Low              float64 `json:"low"`
	Close            float64 `json:"close"`
	Volume           int64   `json:"volume"`
	VolumeFinanceiro float64 `json:"volume_financeiro"`
}

func toRecords(bars []market.Bar) []barRecord {
	records := make([]barRecord, len(bars))
	for i, b := range bars {
		records[i] = barRecord{
			Date:             b.DateString(),
			Open:             b.Open,
			High:             b.High,
			Low:              b.Low,
			Close:            b.Close,
			Volume:           b.Volume,
			VolumeFinanceiro: b.FinancialVolume(),
		}
	}
	return records
}

func stringProp(description string) map[string]interface{} {
	return map[string]interface{}{"type": "string", "description": description}
}

func intProp(description string) map[string]interface{} {
	return map[string]interface{}{"type": "integer", "description": description}
}

func objectSchema(properties map[string]interface{}, required ...string) map[string]interface{} {
	schema := map[string]interface{}{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

func (s *Service) stockDataTool() Descriptor {
	return Descriptor{
		Name: "get_stock_data",
		Description: "Busca dados históricos de uma ação (OHLCV) no banco de dados. " +
			"Pode filtrar por um período específico usando start_date e end_date (formato: 'AAAA-MM-DD'). " +
			"Se nenhuma data for fornecida, busca os dados mais recentes disponíveis. " +
			"Se as datas fornecidas não retornarem dados, a função tentará encontrar o pregão mais recente disponível. " +
			"Retorna também o 'volume_financeiro' (Preço de Fechamento * Volume). " +
			"Use esta ferramenta para perguntas sobre preços, volumes ou performance de ações. " +
			"O ticker deve ser o código da ação na bolsa brasileira, como 'PETR4.SA'.",
		Parameters: objectSchema(map[string]interface{}{
			"ticker":     stringProp("Código da ação na B3, como 'PETR4.SA'."),
			"start_date": stringProp("Data inicial do período, formato 'AAAA-MM-DD'."),
			"end_date":   stringProp("Data final do período, formato 'AAAA-MM-DD'."),
		}, "ticker"),
		Handler: s.getStockData,
	}
}

func (s *Service) getStockData(ctx context.Context, args json.RawMessage) Result {
	var params struct {
		Ticker    string `json:"ticker"`
		StartDate string `json:"start_date"`
		EndDate   string `json:"end_date"`
	}
	if err := json.Unmarshal(args, &params); err != nil {
		return errorResult("Parâmetros inválidos para get_stock_data: %v", err)
	}

	// Lenient normalization: the store decides whether the raw symbol
	// exists when no B3 ticker can be extracted.
	cleaned := ticker.NormalizeOrRaw(params.Ticker)

	log.Debug().
		Str("ticker", cleaned).
		Str("start_date", params.StartDate).
		Str("end_date", params.EndDate).
		Msg("get_stock_data called")

	bars, usedFallback, err := s.store.QueryRange(ctx, cleaned, params.StartDate, params.EndDate, 0)
	if err != nil {
		return errorResult("Ocorreu um erro ao buscar os dados: %v", err)
	}
	if len(bars) == 0 {
		return errorResult("Nenhum dado encontrado para o ticker %s.", cleaned)
	}

	data, err := json.Marshal(toRecords(bars))
	if err != nil {
		return errorResult("Ocorreu um erro ao serializar os dados: %v", err)
	}

	if usedFallback {
		return textResult(fmt.Sprintf(
			"Nenhum dado encontrado para %s no período de %s a %s. Retornando o pregão mais recente disponível (%s): %s",
			cleaned, params.StartDate, params.EndDate, bars[0].DateString(), string(data)))
	}
	return textResult(string(data))
}

func (s *Service) volatilityConeTool() Descriptor {
	return Descriptor{
		Name: "get_volatility_cone",
		Description: "Calcula e projeta a volatilidade de uma ação para criar um \"cone de incerteza\" para o futuro. " +
			"Use esta ferramenta quando o usuário pedir uma projeção, previsão, ou algo sobre a volatilidade futura de uma ação. " +
			"São necessários pelo menos 20 pregões de histórico. " +
			"O ticker deve ser o código da ação na bolsa brasileira, como 'PETR4.SA' ou 'VALE3.SA'.",
		Parameters: objectSchema(map[string]interface{}{
			"ticker":          stringProp("Código da ação na B3, como 'PETR4.SA'."),
			"days_to_predict": intProp("Horizonte da projeção em dias (padrão: 30)."),
		}, "ticker"),
		Handler: s.getVolatilityCone,
	}
}

func (s *Service) getVolatilityCone(ctx context.Context, args json.RawMessage) Result {
	var params struct {
		Ticker        string `json:"ticker"`
		DaysToPredict int    `json:"days_to_predict"`
	}
	if err := json.Unmarshal(args, &params); err != nil {
		return errorResult("Parâmetros inválidos para get_volatility_cone: %v", err)
	}

	cleaned, err := ticker.Normalize(params.Ticker)
	if err != nil {
		return errorResult("Ticker inválido: %s. O formato deve ser como 'PETR4.SA'.", params.Ticker)
	}

	bars, _, err := s.store.QueryRange(ctx, cleaned, "", "", analytics.MaxWindowSessions)
	if err != nil {
		return errorResult("Ocorreu um erro ao calcular o cone de volatilidade: %v", err)
	}

	cone, err := analytics.VolatilityCone(cleaned, bars, params.DaysToPredict)
	if err != nil {
		return errorResult("Dados históricos insuficientes para calcular a volatilidade para %s. São necessários pelo menos %d dias.",
			cleaned, analytics.MinConeSessions)
	}

	return coneResult(cone)
}

func (s *Service) marketSummaryTool() Descriptor {
	return Descriptor{
		Name: "get_market_summary",
		Description: "Calcula o volume financeiro total negociado em um dia específico. " +
			"Se não encontrar dados para a data fornecida, busca automaticamente o último dia com dados disponíveis e informa o usuário. " +
			"Use para perguntas sobre o mercado geral, como 'volume total da bolsa'. Formato da data: 'AAAA-MM-DD'.",
		Parameters: objectSchema(map[string]interface{}{
			"date": stringProp("Data do pregão, formato 'AAAA-MM-DD'."),
		}, "date"),
		Handler: s.getMarketSummary,
	}
}

func (s *Service) getMarketSummary(ctx context.Context, args json.RawMessage) Result {
	var params struct {
		Date string `json:"date"`
	}
	if err := json.Unmarshal(args, &params); err != nil {
		return errorResult("Parâmetros inválidos para get_market_summary: %v", err)
	}

	bars, usedDate, err := s.store.QueryMarket(ctx, params.Date)
	if err != nil {
		return errorResult("Ocorreu um erro ao calcular o resumo do mercado: %v", err)
	}
	if len(bars) == 0 {
		return errorResult("Não há nenhum dado histórico no banco de dados.")
	}

	summary := analytics.MarketSummary(bars, usedDate, params.Date)
	if summary.TickersConsidered == 0 {
		return errorResult("Os dados para %s estão incompletos e não foi possível calcular o volume.", usedDate)
	}
	return summaryResult(summary)
}

func (s *Service) topStocksTool() Descriptor {
	return Descriptor{
		Name: "get_top_stocks_by_criteria",
		Description: "Analisa todas as ações em um período e retorna um ranking das 'top_n' melhores com base em um critério. " +
			"Use esta ferramenta para perguntas comparativas ou de ranking, como 'qual ação teve o maior volume' ou 'quais as 5 ações com maior volume financeiro'. " +
			"O critério pode ser 'volume_financeiro' ou 'volume'. " +
			"As datas devem estar no formato 'AAAA-MM-DD'.",
		Parameters: objectSchema(map[string]interface{}{
			"start_date": stringProp("Data inicial do período, formato 'AAAA-MM-DD'."),
			"end_date":   stringProp("Data final do período, formato 'AAAA-MM-DD'."),
			"criteria":   stringProp("Critério do ranking: 'volume_financeiro' (padrão) ou 'volume'."),
			"top_n":      intProp("Tamanho do ranking (padrão: 5)."),
		}, "start_date", "end_date"),
		Handler: s.getTopStocks,
	}
}

func (s *Service) getTopStocks(ctx context.Context, args json.RawMessage) Result {
	params := struct {
		StartDate string `json:"start_date"`
		EndDate   string `json:"end_date"`
		Criteria  string `json:"criteria"`
		TopN      int    `json:"top_n"`
	}{Criteria: analytics.CriterionFinancialVolume}
	if err := json.Unmarshal(args, &params); err != nil {
		return errorResult("Parâmetros inválidos para get_top_stocks_by_criteria: %v", err)
	}

	bars, err := s.store.QueryRangeAll(ctx, params.StartDate, params.EndDate)
	if err != nil {
		return errorResult("Ocorreu um erro ao gerar o ranking: %v", err)
	}
	if len(bars) == 0 {
		return errorResult("Nenhum dado encontrado no período de %s a %s.", params.StartDate, params.EndDate)
	}

	ranking, err := analytics.Rank(bars, params.StartDate, params.EndDate, params.Criteria, params.TopN)
	if err != nil {
		return errorResult("Critério '%s' inválido. Use 'volume_financeiro' ou 'volume'.", params.Criteria)
	}
	return rankingResult(ranking)
}

// weekdaysPT maps English weekday names to Portuguese.
var weekdaysPT = map[string]string{
	"Monday": "Segunda-feira", "Tuesday": "Terça-feira", "Wednesday": "Quarta-feira",
	"Thursday": "Quinta-feira", "Friday": "Sexta-feira", "Saturday": "Sábado", "Sunday": "Domingo",
}

// CurrentDatetimeSP formats the current São Paulo time with the
// Portuguese weekday, as injected into the planner's system prompt.
func CurrentDatetimeSP(now time.Time) string {
	loc, err := time.LoadLocation("America/Sao_Paulo")
	if err != nil {
		loc = time.UTC
	}
	t := now.In(loc)
	return fmt.Sprintf("%s (%s)", t.Format("2006-01-02 15:04:05"), weekdaysPT[t.Weekday().String()])
}

func (s *Service) currentDatetimeTool() Descriptor {
	return Descriptor{
		Name: "get_current_datetime",
		Description: "Retorna a data e hora atuais no fuso horário de São Paulo (America/Sao_Paulo), " +
			"incluindo o dia da semana. Use como referência para datas relativas como 'ontem' ou 'semana passada'.",
		Parameters: objectSchema(map[string]interface{}{}),
		Handler: func(_ context.Context, _ json.RawMessage) Result {
			return textResult(CurrentDatetimeSP(s.now()))
		},
	}
}

func (s *Service) listTickersTool() Descriptor {
	return Descriptor{
		Name: "list_available_tickers",
		Description: "Retorna uma lista completa de todos os tickers de ações para os quais há dados históricos disponíveis. " +
			"Use esta ferramenta sempre que o usuário perguntar quais ações você conhece, sobre quais empresas tem dados, " +
			"ou qual a abrangência dos dados.",
		Parameters: objectSchema(map[string]interface{}{}),
		Handler:    s.listAvailableTickers,
	}
}

func (s *Service) listAvailableTickers(ctx context.Context, _ json.RawMessage) Result {
	tickers, err := s.store.ListTickers(ctx)
	if err != nil {
		return errorResult("Ocorreu um erro ao tentar buscar a lista de tickers disponíveis: %v", err)
	}
	if len(tickers) == 0 {
		return errorResult("Não foram encontrados tickers de ações no banco de dados.")
	}

	sort.Strings(tickers)
	return textResult(fmt.Sprintf("Tenho acesso aos dados históricos dos seguintes %d tickers: %s.",
		len(tickers), strings.Join(tickers, ", ")))
}
