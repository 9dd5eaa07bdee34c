package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/vmaraujo/b3analyst/internal/agent"
	"github.com/vmaraujo/b3analyst/internal/analytics"
	"github.com/vmaraujo/b3analyst/internal/intraday"
	"github.com/vmaraujo/b3analyst/internal/ticker"
)

const defaultSessionID = "default_user"

// historyLimit bounds the /acoes endpoint response.
const historyLimit = 100

// QueryRequest is the /query request body.
type QueryRequest struct {
	Question  string `json:"question"`
	SessionID string `json:"session_id"`
}

func (s *Server) handleRoot(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"service": "b3analyst API",
		"version": s.version,
		"status":  "running",
		"time":    time.Now().UTC(),
	})
}

func (s *Server) handleHealth(c *gin.Context) {
	if s.db != nil {
		if err := s.db.Health(c.Request.Context()); err != nil {
			log.Warn().Err(err).Msg("Database health check failed")
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "unhealthy",
				"error":  "database unavailable",
			})
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().UTC(),
	})
}

// handleQuery forwards a natural-language question to the agent.
func (s *Server) handleQuery(c *gin.Context) {
	var req QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Corpo da requisição inválido."})
		return
	}
	if req.Question == "" {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "A pergunta não pode estar vazia."})
		return
	}

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = defaultSessionID
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), s.timeout)
	defer cancel()

	answer, err := s.agent.Ask(ctx, sessionID, req.Question)
	switch {
	case errors.Is(err, agent.ErrAmbiguousDate):
		// The clarification is a normal conversational reply.
		c.JSON(http.StatusOK, gin.H{"answer": answer.Text})
		return
	case err != nil:
		log.Error().Err(err).Str("session_id", sessionID).Msg("Agent query failed")
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Erro ao processar a pergunta: " + err.Error()})
		return
	}

	if answer.Chart != nil {
		c.JSON(http.StatusOK, gin.H{"chart_data": answer.Chart, "answer": answer.Text})
		return
	}
	c.JSON(http.StatusOK, gin.H{"answer": answer.Text})
}

// handleVolatilityCone serves the cone chart directly, bypassing the
// planner.
func (s *Server) handleVolatilityCone(c *gin.Context) {
	symbol, err := ticker.Normalize(c.Param("ticker"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Ticker inválido. O formato deve ser como 'PETR4.SA'."})
		return
	}

	bars, _, err := s.store.QueryRange(c.Request.Context(), symbol, "", "", analytics.MaxWindowSessions)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"detail": err.Error()})
		return
	}

	cone, err := analytics.VolatilityCone(symbol, bars, 0)
	if err != nil {
		if errors.Is(err, analytics.ErrInsufficientHistory) {
			c.JSON(http.StatusNotFound, gin.H{"detail": "Dados históricos insuficientes para " + symbol + "."})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"detail": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"chart_data": cone})
}

// handleIntraday serves the session's 1-minute prices and VWAP.
func (s *Server) handleIntraday(c *gin.Context) {
	if s.intraday == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"detail": "Dados intraday indisponíveis."})
		return
	}

	symbol, err := ticker.Normalize(c.Param("ticker"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Ticker inválido. O formato deve ser como 'PETR4.SA'."})
		return
	}

	chart, err := s.intraday.Chart(c.Request.Context(), symbol)
	switch {
	case errors.Is(err, intraday.ErrNoData):
		c.JSON(http.StatusNotFound, gin.H{
			"detail": "Não foram encontrados dados intraday para " + symbol + ". O mercado pode estar fechado.",
		})
		return
	case err != nil:
		log.Error().Err(err).Str("ticker", symbol).Msg("Intraday chart failed")
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Erro ao buscar os dados intraday: " + err.Error()})
		return
	}

	c.JSON(http.StatusOK, chart)
}

// handleStockHistory returns the most recent bars for one ticker.
func (s *Server) handleStockHistory(c *gin.Context) {
	symbol, err := ticker.Normalize(c.Param("ticker"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Ticker inválido. O formato deve ser como 'PETR4.SA'."})
		return
	}

	bars, usedFallback, err := s.store.QueryRange(c.Request.Context(), symbol, "", "", historyLimit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"detail": err.Error()})
		return
	}
	if len(bars) == 0 || usedFallback {
		c.JSON(http.StatusNotFound, gin.H{"detail": "Dados não encontrados para o ticker " + symbol})
		return
	}

	type row struct {
		Date             string  `json:"date"`
		Open             float64 `json:"open"`
		High             float64 `json:"high"`
		Low              float64 `json:"low"`
		Close            float64 `json:"close"`
		Volume           int64   `json:"volume"`
		VolumeFinanceiro float64 `json:"volume_financeiro"`
	}
	rows := make([]row, len(bars))
	for i, b := range bars {
		rows[i] = row{
			Date:             b.DateString(),
			Open:             b.Open,
			High:             b.High,
			Low:              b.Low,
			Close:            b.Close,
			Volume:           b.Volume,
			VolumeFinanceiro: b.FinancialVolume(),
		}
	}

	c.JSON(http.StatusOK, gin.H{"ticker": symbol, "data": rows})
}
