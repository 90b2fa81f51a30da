package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"mowakeb/internal/arxiv"
	"mowakeb/internal/config"
	"mowakeb/internal/ingest"
	"mowakeb/internal/observability"
	"mowakeb/internal/storage"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	_ = godotenv.Load(".env")
	cfg := config.Load()
	logger := observability.NewLogger(observability.LoggingConfig{Level: cfg.LogLevel, Format: cfg.LogFormat}, "ingest-weekly")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tax, err := config.LoadTaxonomy(cfg.TaxonomyFile)
	if err != nil {
		logger.Fatal().Err(err).Msg("load taxonomy")
	}
	db, err := storage.NewDB(ctx, cfg.PostgresURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("open database")
	}
	defer db.Close()

	reg := prometheus.NewRegistry()
	metrics := observability.NewMetrics(reg)

	client := arxiv.New(arxiv.Config{
		APIURL:     cfg.ArxivAPIURL,
		MaxResults: cfg.ArxivMaxResults,
		HTTP: arxiv.HTTPClientConfig{
			RatePerSecond: cfg.ArxivRatePerSecond,
			MaxRetries:    cfg.ArxivMaxRetries,
			BackoffFactor: cfg.ArxivBackoffFactor,
			UserAgent:     cfg.ArxivUserAgent,
		},
	}, logger)

	runner := ingest.NewRunner(tax, client, storage.NewPaperRepo(db.Pool), ingest.RunnerConfig{
		MaxResults: cfg.ArxivMaxResults,
		Window:     time.Duration(cfg.RecencyDays) * 24 * time.Hour,
		Delay:      seconds(cfg.MainFieldDelaySecs),
		Jitter:     seconds(cfg.MainFieldJitterSec),
	}, logger, metrics)

	logger.Info().Int("main_fields", tax.Len()).Msg("weekly ingestion starting")
	summary, runErr := runner.Run(ctx)

	if err := observability.Push(cfg.PushgatewayURL, "mowakeb_ingest_weekly", reg); err != nil {
		logger.Warn().Err(err).Msg("metrics push failed")
	}
	if runErr != nil {
		logger.Fatal().Err(runErr).Msg("weekly ingestion aborted")
	}
	logger.Info().
		Int("upserted", summary.Succeeded).
		Int("skipped", summary.Skipped).
		Int("failed", summary.Failed).
		Interface("reasons", summary.Reasons).
		Msg("weekly ingestion finished")
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
