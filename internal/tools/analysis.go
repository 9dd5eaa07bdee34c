package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/vmaraujo/b3analyst/internal/analytics"
	"github.com/vmaraujo/b3analyst/internal/market"
	"github.com/vmaraujo/b3analyst/internal/ticker"
)

func (s *Service) assetAnalyticsTool() Descriptor {
	return Descriptor{
		Name: "get_asset_analytics",
		Description: "Calcula indicadores de análise técnica (RSI e Média Móvel Simples) para uma ação. " +
			"RSI acima de 70 indica sobrecompra e abaixo de 30 indica sobrevenda. " +
			"Use esta ferramenta para perguntas sobre análise técnica, força relativa ou tendência de uma ação. " +
			"O ticker deve ser o código da ação na bolsa brasileira, como 'PETR4.SA'.",
		Parameters: objectSchema(map[string]interface{}{
			"ticker":     stringProp("Código da ação na B3, como 'PETR4.SA'."),
			"rsi_period": intProp("Período do RSI (padrão: 14)."),
			"sma_period": intProp("Período da média móvel simples (padrão: 21)."),
		}, "ticker"),
		Handler: s.getAssetAnalytics,
	}
}

func (s *Service) getAssetAnalytics(ctx context.Context, args json.RawMessage) Result {
	var params struct {
		Ticker    string `json:"ticker"`
		RSIPeriod int    `json:"rsi_period"`
		SMAPeriod int    `json:"sma_period"`
	}
	if err := json.Unmarshal(args, &params); err != nil {
		return errorResult("Parâmetros inválidos para get_asset_analytics: %v", err)
	}

	cleaned, err := ticker.Normalize(params.Ticker)
	if err != nil {
		return errorResult("Ticker inválido: %s. O formato deve ser como 'PETR4.SA'.", params.Ticker)
	}

	bars, _, err := s.store.QueryRange(ctx, cleaned, "", "", analytics.MaxWindowSessions)
	if err != nil {
		return errorResult("Ocorreu um erro ao calcular os indicadores: %v", err)
	}

	report, err := analytics.AssetIndicators(cleaned, bars, params.RSIPeriod, params.SMAPeriod)
	if err != nil {
		return errorResult("Dados históricos insuficientes para calcular os indicadores de %s.", cleaned)
	}

	trend := "acima"
	if !report.AboveSMA {
		trend = "abaixo"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "### Análise Técnica de %s\n\n", report.Ticker)
	fmt.Fprintf(&b, "- **Último fechamento:** %s\n", analytics.FormatBRL(report.LatestClose))
	fmt.Fprintf(&b, "- **RSI (%d períodos):** %.2f — %s\n", report.RSIPeriod, report.RSI, report.RSISignal)
	fmt.Fprintf(&b, "- **SMA (%d períodos):** %s\n", report.SMAPeriod, analytics.FormatBRL(report.SMA))
	fmt.Fprintf(&b, "- O preço atual está **%s** da média móvel.\n", trend)
	return textResult(b.String())
}

func (s *Service) compareAssetsTool() Descriptor {
	return Descriptor{
		Name: "compare_assets",
		Description: "Compara duas ou mais ações em um período: performance (variação percentual), volatilidade anualizada " +
			"e correlação entre os retornos diários. Use para perguntas como 'compare PETR4 e VALE3'. " +
			"Os tickers devem estar no formato da B3, como 'PETR4.SA'. Datas no formato 'AAAA-MM-DD'.",
		Parameters: objectSchema(map[string]interface{}{
			"tickers": map[string]interface{}{
				"type":        "array",
				"items":       map[string]interface{}{"type": "string"},
				"description": "Lista de códigos de ações na B3, como ['PETR4.SA', 'VALE3.SA'].",
			},
			"start_date": stringProp("Data inicial do período, formato 'AAAA-MM-DD'."),
			"end_date":   stringProp("Data final do período, formato 'AAAA-MM-DD'."),
		}, "tickers", "start_date", "end_date"),
		Handler: s.compareAssets,
	}
}

func (s *Service) compareAssets(ctx context.Context, args json.RawMessage) Result {
	var params struct {
		Tickers   []string `json:"tickers"`
		StartDate string   `json:"start_date"`
		EndDate   string   `json:"end_date"`
	}
	if err := json.Unmarshal(args, &params); err != nil {
		return errorResult("Parâmetros inválidos para compare_assets: %v", err)
	}
	if len(params.Tickers) < 2 {
		return errorResult("São necessários pelo menos dois tickers para a comparação.")
	}

	series := make(map[string][]market.Bar, len(params.Tickers))
	for _, raw := range params.Tickers {
		cleaned, err := ticker.Normalize(raw)
		if err != nil {
			return errorResult("Ticker inválido: %s. O formato deve ser como 'PETR4.SA'.", raw)
		}
		bars, usedFallback, err := s.store.QueryRange(ctx, cleaned, params.StartDate, params.EndDate, 0)
		if err != nil {
			return errorResult("Ocorreu um erro ao buscar os dados de %s: %v", cleaned, err)
		}
		// A fallback series is from outside the requested window and
		// cannot be aligned with the others.
		if usedFallback || len(bars) == 0 {
			return errorResult("Nenhum dado encontrado para %s no período de %s a %s.",
				cleaned, params.StartDate, params.EndDate)
		}
		series[cleaned] = bars
	}

	comparison, err := analytics.CompareAssets(series)
	if err != nil {
		return errorResult("Não há pregões em comum suficientes entre os ativos no período solicitado.")
	}
	return textResult(comparison.Analysis(params.StartDate, params.EndDate))
}
