// Package api exposes the question-answering agent and the price
// history over a REST surface.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/vmaraujo/b3analyst/internal/agent"
	"github.com/vmaraujo/b3analyst/internal/db"
	"github.com/vmaraujo/b3analyst/internal/intraday"
	"github.com/vmaraujo/b3analyst/internal/metrics"
)

// QuestionService resolves natural-language questions. Satisfied by
// *agent.Agent.
type QuestionService interface {
	Ask(ctx context.Context, sessionID, question string) (*agent.Answer, error)
}

// IntradayService serves 1-minute charts with VWAP. Satisfied by
// *intraday.Service.
type IntradayService interface {
	Chart(ctx context.Context, tickerSymbol string) (*intraday.ChartData, error)
}

// Server represents the REST API server
type Server struct {
	router   *gin.Engine
	db       *db.DB
	store    db.HistoryStore
	agent    QuestionService
	intraday IntradayService
	addr     string
	version  string
	timeout  time.Duration
	server   *http.Server
}

// Config contains server configuration
type Config struct {
	Host           string
	Port           int
	AllowedOrigins []string
	RequestTimeout time.Duration
	Version        string
	DB             *db.DB
	Store          db.HistoryStore
	Agent          QuestionService
	Intraday       IntradayService
}

// NewServer creates a new API server
func NewServer(config Config) *Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(RequestIDMiddleware())
	router.Use(LoggerMiddleware())

	origins := config.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost", "http://localhost:3000"}
	}
	router.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	if config.RequestTimeout <= 0 {
		config.RequestTimeout = 120 * time.Second
	}
	if config.Version == "" {
		config.Version = "0.1.0"
	}

	server := &Server{
		router:   router,
		db:       config.DB,
		store:    config.Store,
		agent:    config.Agent,
		intraday: config.Intraday,
		addr:     fmt.Sprintf("%s:%d", config.Host, config.Port),
		version:  config.Version,
		timeout:  config.RequestTimeout,
	}

	server.setupRoutes()

	return server
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: s.timeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	log.Info().Str("addr", s.addr).Msg("Starting API server")

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop(ctx context.Context) error {
	log.Info().Msg("Stopping API server")

	if s.server != nil {
		if err := s.server.Shutdown(ctx); err != nil {
			return fmt.Errorf("failed to stop server: %w", err)
		}
	}

	return nil
}

// Router exposes the underlying engine for tests.
func (s *Server) Router() http.Handler {
	return s.router
}

// setupRoutes configures all API routes
func (s *Server) setupRoutes() {
	v1 := s.router.Group("/api/v1")
	{
		v1.POST("/query", s.handleQuery)
		v1.GET("/volatility-cone/:ticker", s.handleVolatilityCone)
		v1.GET("/intraday/:ticker", s.handleIntraday)
		v1.GET("/acoes/:ticker", s.handleStockHistory)
		v1.GET("/health", s.handleHealth)
	}

	s.router.GET("/", s.handleRoot)
	s.router.GET("/metrics", gin.WrapH(metrics.Handler()))
}

// RequestIDMiddleware tags each request with a correlation id.
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Set("request_id", requestID)
		c.Header("X-Request-ID", requestID)
		c.Next()
	}
}

// LoggerMiddleware is a custom logging middleware for Gin
func LoggerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		latency := time.Since(start)
		statusCode := c.Writer.Status()
		clientIP := c.ClientIP()
		method := c.Request.Method

		logEvent := log.Info().
			Str("request_id", c.GetString("request_id")).
			Str("method", method).
			Str("path", path).
			Str("query", query).
			Int("status", statusCode).
			Dur("latency", latency).
			Str("client_ip", clientIP)

		if len(c.Errors) > 0 {
			logEvent.Str("errors", c.Errors.String())
		}

		logEvent.Msg("API request")
	}
}
