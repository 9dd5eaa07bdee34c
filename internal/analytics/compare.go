package analytics

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/vmaraujo/b3analyst/internal/market"
)

// Comparison holds the cross-asset comparison of two or more tickers
// over a date range: period performance, annualized volatility and the
// pairwise correlation matrix of daily returns. All slices are indexed
// by the Tickers order.
type Comparison struct {
	Tickers        []string
	Performance    []float64
	Volatility     []float64
	Correlation    [][]float64
	Winner         string
	CommonSessions int
}

// CompareAssets aligns the close series of every ticker on their common
// trading dates (inner join) and computes period return, annualized
// volatility of daily returns and the full correlation matrix. Tickers
// with no data are dropped; fewer than two usable tickers is an
// ErrInsufficientAssets failure.
func CompareAssets(series map[string][]market.Bar) (*Comparison, error) {
	tickers := make([]string, 0, len(series))
	closesByDate := make(map[string]map[string]float64)

	for t, bars := range series {
		if len(bars) == 0 {
			continue
		}
		tickers = append(tickers, t)
		for _, b := range bars {
			d := b.DateString()
			if closesByDate[d] == nil {
				closesByDate[d] = make(map[string]float64)
			}
			closesByDate[d][t] = b.Close
		}
	}

	if len(tickers) < 2 {
		return nil, fmt.Errorf("%w: usable data found for %d of the requested tickers",
			ErrInsufficientAssets, len(tickers))
	}
	sort.Strings(tickers)

	// Keep only the dates where every ticker traded.
	var commonDates []string
	for d, m := range closesByDate {
		if len(m) == len(tickers) {
			commonDates = append(commonDates, d)
		}
	}
	sort.Strings(commonDates)

	if len(commonDates) < 2 {
		return nil, fmt.Errorf("%w: only %d overlapping trading sessions across %s",
			ErrInsufficientHistory, len(commonDates), strings.Join(tickers, ", "))
	}

	aligned := make([][]float64, len(tickers))
	for i, t := range tickers {
		aligned[i] = make([]float64, len(commonDates))
		for j, d := range commonDates {
			aligned[i][j] = closesByDate[d][t]
		}
	}

	performance := make([]float64, len(tickers))
	volatility := make([]float64, len(tickers))
	returns := make([][]float64, len(tickers))
	for i, closes := range aligned {
		performance[i] = closes[len(closes)-1]/closes[0] - 1

		r := make([]float64, 0, len(closes)-1)
		for j := 1; j < len(closes); j++ {
			r = append(r, closes[j]/closes[j-1]-1)
		}
		returns[i] = r
		volatility[i] = sampleStdDev(r) * math.Sqrt(TradingDaysPerYear)
	}

	correlation := make([][]float64, len(tickers))
	for i := range tickers {
		correlation[i] = make([]float64, len(tickers))
		for j := range tickers {
			switch {
			case i == j:
				correlation[i][j] = 1
			case j < i:
				correlation[i][j] = correlation[j][i]
			default:
				correlation[i][j] = pearson(returns[i], returns[j])
			}
		}
	}

	winner := tickers[0]
	best := performance[0]
	for i, p := range performance {
		if p > best {
			best = p
			winner = tickers[i]
		}
	}

	log.Debug().
		Strs("tickers", tickers).
		Int("common_sessions", len(commonDates)).
		Str("winner", winner).
		Msg("Compared assets")

	return &Comparison{
		Tickers:        tickers,
		Performance:    performance,
		Volatility:     volatility,
		Correlation:    correlation,
		Winner:         winner,
		CommonSessions: len(commonDates),
	}, nil
}

// Analysis renders the comparison as the report text returned to the
// planner, mirroring the structure users see in the final answer.
func (c *Comparison) Analysis(startDate, endDate string) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "Análise Comparativa entre %s de %s a %s:\n\n",
		strings.Join(c.Tickers, ", "), startDate, endDate)

	sb.WriteString("**Performance no Período:**\n")
	for i, t := range c.Tickers {
		fmt.Fprintf(&sb, "- %s: %+.2f%%\n", t, c.Performance[i]*100)
	}

	sb.WriteString("\n**Volatilidade Anualizada:**\n")
	for i, t := range c.Tickers {
		fmt.Fprintf(&sb, "- %s: %.2f%%\n", t, c.Volatility[i]*100)
	}

	sb.WriteString("\n**Matriz de Correlação:**\n```\n")
	fmt.Fprintf(&sb, "%-10s", "")
	for _, t := range c.Tickers {
		fmt.Fprintf(&sb, "%10s", t)
	}
	sb.WriteString("\n")
	for i, t := range c.Tickers {
		fmt.Fprintf(&sb, "%-10s", t)
		for j := range c.Tickers {
			fmt.Fprintf(&sb, "%10.2f", c.Correlation[i][j])
		}
		sb.WriteString("\n")
	}
	sb.WriteString("```\n\n")

	winnerIdx := 0
	for i, t := range c.Tickers {
		if t == c.Winner {
			winnerIdx = i
		}
	}
	fmt.Fprintf(&sb, "**Conclusão:** No período analisado, **%s** teve a melhor performance com um retorno de **%+.2f%%**.",
		c.Winner, c.Performance[winnerIdx]*100)

	return sb.String()
}

// pearson computes the Pearson correlation coefficient of two equally
// sized samples. Zero-variance inputs yield 0.
func pearson(a, b []float64) float64 {
	n := len(a)
	if n == 0 || n != len(b) {
		return 0
	}

	var meanA, meanB float64
	for i := 0; i < n; i++ {
		meanA += a[i]
		meanB += b[i]
	}
	meanA /= float64(n)
	meanB /= float64(n)

	var cov, varA, varB float64
	for i := 0; i < n; i++ {
		da := a[i] - meanA
		db := b[i] - meanB
		cov += da * db
		varA += da * da
		varB += db * db
	}

	if varA == 0 || varB == 0 {
		return 0
	}
	return cov / math.Sqrt(varA*varB)
}
