package analytics

import (
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/vmaraujo/b3analyst/internal/market"
)

// Ranking criteria accepted by Rank.
const (
	CriterionVolume          = "volume"
	CriterionFinancialVolume = "volume_financeiro"

	// DefaultTopN is the default ranking size.
	DefaultTopN = 5
)

// RankingResult is the structured payload for a top-N ranking over a
// date range. Ranking entries are "TICKER: value" strings, value
// formatted per the criterion (currency for financial volume).
type RankingResult struct {
	Period   string   `json:"period"`
	Criteria string   `json:"criteria"`
	Ranking  []string `json:"ranking"`
	Analysis string   `json:"analysis"`
}

// Rank sums the chosen criterion per ticker across the given bars and
// returns the top N tickers sorted by descending total. Bars with a
// zero close and volume are skipped.
func Rank(bars []market.Bar, startDate, endDate, criterion string, topN int) (*RankingResult, error) {
	if criterion != CriterionVolume && criterion != CriterionFinancialVolume {
		return nil, fmt.Errorf("%w: %q (use '%s' or '%s')",
			ErrInvalidCriterion, criterion, CriterionFinancialVolume, CriterionVolume)
	}
	if topN <= 0 {
		topN = DefaultTopN
	}

	totals := make(map[string]float64)
	for _, b := range bars {
		if b.Close == 0 && b.Volume == 0 {
			continue
		}
		if criterion == CriterionFinancialVolume {
			totals[b.Ticker] += b.FinancialVolume()
		} else {
			totals[b.Ticker] += float64(b.Volume)
		}
	}

	type entry struct {
		ticker string
		value  float64
	}
	entries := make([]entry, 0, len(totals))
	for t, v := range totals {
		entries = append(entries, entry{t, v})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].value != entries[j].value {
			return entries[i].value > entries[j].value
		}
		return entries[i].ticker < entries[j].ticker
	})

	if len(entries) > topN {
		entries = entries[:topN]
	}

	ranking := make([]string, 0, len(entries))
	for _, e := range entries {
		var formatted string
		if criterion == CriterionFinancialVolume {
			formatted = FormatBRL(e.value)
		} else {
			formatted = FormatCountBR(int64(e.value))
		}
		ranking = append(ranking, fmt.Sprintf("%s: %s", e.ticker, formatted))
	}

	log.Debug().
		Str("criteria", criterion).
		Int("tickers_ranked", len(totals)).
		Int("top_n", len(ranking)).
		Msg("Computed ranking")

	period := fmt.Sprintf("%s a %s", startDate, endDate)
	return &RankingResult{
		Period:   period,
		Criteria: criterion,
		Ranking:  ranking,
		Analysis: fmt.Sprintf("O ranking das %d ações com maior '%s' entre %s e %s é: %s.",
			len(ranking), criterion, startDate, endDate, strings.Join(ranking, "; ")),
	}, nil
}
