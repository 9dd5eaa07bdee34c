package analytics

import (
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/vmaraujo/b3analyst/internal/market"
)

// MarketSummaryResult is the structured payload for a whole-market
// financial volume summary of a single trading date. Date reflects the
// date actually summarized, which may be a fallback when the requested
// date has no data.
type MarketSummaryResult struct {
	Date                  string `json:"date"`
	TotalVolumeFinanceiro string `json:"total_volume_financeiro"`
	TickersConsidered     int    `json:"tickers_considerados"`
	Analysis              string `json:"analysis"`
}

// MarketSummary sums the financial volume of every bar traded on
// usedDate. When usedDate differs from requestedDate the analysis text
// says the summary refers to the latest session with data instead.
func MarketSummary(bars []market.Bar, usedDate, requestedDate string) *MarketSummaryResult {
	var total float64
	count := 0
	for _, b := range bars {
		if b.Close == 0 || b.Volume == 0 {
			continue
		}
		total += b.FinancialVolume()
		count++
	}

	formatted := FormatBRL(total)
	analysis := fmt.Sprintf("O volume financeiro total negociado em %s, com base em %d tickers, foi de %s.",
		usedDate, count, formatted)
	if usedDate != requestedDate {
		analysis = fmt.Sprintf("Não foram encontrados dados para a data solicitada (%s). O resumo do último pregão disponível (%s) é o seguinte: %s",
			requestedDate, usedDate, analysis)
	}

	log.Debug().
		Str("date", usedDate).
		Str("requested_date", requestedDate).
		Int("tickers", count).
		Msg("Computed market summary")

	return &MarketSummaryResult{
		Date:                  usedDate,
		TotalVolumeFinanceiro: formatted,
		TickersConsidered:     count,
		Analysis:              analysis,
	}
}
