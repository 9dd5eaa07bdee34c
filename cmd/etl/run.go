package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/vmaraujo/b3analyst/internal/db"
	"github.com/vmaraujo/b3analyst/internal/etl"
	"github.com/vmaraujo/b3analyst/internal/ticker"
)

var (
	lookbackDays int
	workers      int
)

var runCmd = &cobra.Command{
	Use:   "run [tickers...]",
	Short: "Run the ingestion pipeline",
	Long: `Fetches and loads daily candles for the given tickers. With no
arguments, the configured etl.tickers list is used. Tickers must be in
B3 format, like PETR4.SA.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		tickers := args
		if len(tickers) == 0 {
			tickers = cfg.ETL.Tickers
		}
		if len(tickers) == 0 {
			return fmt.Errorf("no tickers given and etl.tickers is empty")
		}

		normalized := make([]string, len(tickers))
		for i, raw := range tickers {
			symbol, err := ticker.Normalize(raw)
			if err != nil {
				return fmt.Errorf("invalid ticker %q: must look like PETR4.SA", raw)
			}
			normalized[i] = symbol
		}

		if lookbackDays <= 0 {
			lookbackDays = cfg.ETL.LookbackDays
		}
		if workers <= 0 {
			workers = cfg.ETL.Workers
		}

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		database, err := db.New(ctx, cfg.Database.GetDSN())
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer database.Close()

		fetcher := etl.NewQuoteFetcher(cfg.ETL.QuoteEndpoint, cfg.ETL.RequestsPerSecond)
		loader := etl.NewLoader(database.Pool())
		pipeline := etl.NewPipeline(fetcher, loader, workers, lookbackDays)

		log.Info().
			Int("tickers", len(normalized)).
			Int("lookback_days", lookbackDays).
			Int("workers", workers).
			Msg("Starting ingestion")

		summary, err := pipeline.Run(ctx, normalized)
		if err != nil {
			return err
		}

		fmt.Printf("Ingestion finished: %d tickers processed, %d skipped, %d failed, %d rows loaded\n",
			summary.TickersProcessed, summary.TickersSkipped, summary.TickersFailed, summary.RowsLoaded)
		return nil
	},
}

func init() {
	runCmd.Flags().IntVar(&lookbackDays, "lookback-days", 0, "Days of history to fetch (default from config)")
	runCmd.Flags().IntVar(&workers, "workers", 0, "Concurrent tickers (default from config)")
}
