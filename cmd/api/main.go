package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/vmaraujo/b3analyst/internal/agent"
	"github.com/vmaraujo/b3analyst/internal/api"
	"github.com/vmaraujo/b3analyst/internal/config"
	"github.com/vmaraujo/b3analyst/internal/db"
	"github.com/vmaraujo/b3analyst/internal/etl"
	"github.com/vmaraujo/b3analyst/internal/intraday"
	"github.com/vmaraujo/b3analyst/internal/notify"
	"github.com/vmaraujo/b3analyst/internal/session"
	"github.com/vmaraujo/b3analyst/internal/tools"
)

func main() {
	configPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	config.InitLogger(cfg.App.LogLevel, cfg.App.LogFormat)
	log.Info().Str("version", cfg.App.Version).Msg("Starting b3analyst API server")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	database, err := db.New(ctx, cfg.Database.GetDSN())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer database.Close()

	store := db.NewHistoryStore(database.Pool())

	var notifier tools.Notifier
	if cfg.Notifier.DiscordWebhookURL != "" {
		discord, err := notify.NewDiscordNotifier(cfg.Notifier.DiscordWebhookURL)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create escalation notifier")
		}
		notifier = discord
	} else {
		log.Warn().Msg("No Discord webhook configured, escalations will fail softly")
	}

	registry := tools.NewRegistry(tools.NewService(store, notifier))

	planner := agent.NewOpenAIPlanner(agent.PlannerConfig{
		Endpoint:    cfg.LLM.Endpoint,
		APIKey:      cfg.LLM.APIKey,
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.Temperature,
		MaxTokens:   cfg.LLM.MaxTokens,
		MaxRetries:  cfg.LLM.MaxRetries,
		Timeout:     cfg.LLM.GetTimeout(),
	})

	questionAgent := agent.New(planner, registry, session.NewStore(), cfg.Agent.MaxRounds)

	intradayService := intraday.NewService(
		etl.NewQuoteFetcher(cfg.ETL.QuoteEndpoint, cfg.ETL.RequestsPerSecond))

	server := api.NewServer(api.Config{
		Host:           cfg.API.Host,
		Port:           cfg.API.Port,
		AllowedOrigins: cfg.API.AllowedOrigins,
		RequestTimeout: cfg.API.GetRequestTimeout(),
		Version:        cfg.App.Version,
		DB:             database,
		Store:          store,
		Agent:          questionAgent,
		Intraday:       intradayService,
	})

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- server.Start()
	}()

	select {
	case err := <-serverErrors:
		log.Error().Err(err).Msg("Server error")
	case sig := <-sigChan:
		log.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
	}

	log.Info().Msg("Shutting down server...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Failed to stop server gracefully")
		os.Exit(1)
	}

	log.Info().Msg("Server stopped successfully")
}
