package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"mowakeb/internal/config"
	"mowakeb/internal/htmlresults"
	"mowakeb/internal/objectstore"
	"mowakeb/internal/observability"
	"mowakeb/internal/storage"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	_ = godotenv.Load(".env")
	cfg := config.Load()
	logger := observability.NewLogger(observability.LoggingConfig{Level: cfg.LogLevel, Format: cfg.LogFormat}, "ingest-html")

	if err := cfg.ValidateStorage(); err != nil {
		logger.Fatal().Err(err).Str("backend", cfg.StorageBackend).Msg("invalid storage configuration")
	}
	if _, err := os.Stat(cfg.HTMLZipPath); err != nil {
		logger.Fatal().Err(err).Str("zip", cfg.HTMLZipPath).Msg("html archive not found")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := storage.NewDB(ctx, cfg.PostgresURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("open database")
	}
	defer db.Close()

	store, err := objectstore.FromConfig(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("open object store")
	}

	reg := prometheus.NewRegistry()
	metrics := observability.NewMetrics(reg)

	in := htmlresults.NewIngester(storage.NewPaperRepo(db.Pool), store, htmlresults.Config{
		Bucket:   cfg.HTMLBucket,
		BasePath: cfg.HTMLResultsBasePath,
		WorkDir:  cfg.HTMLWorkDir,
	}, logger, metrics)

	summary, runErr := in.Run(ctx, cfg.HTMLZipPath)

	if err := observability.Push(cfg.PushgatewayURL, "mowakeb_ingest_html", reg); err != nil {
		logger.Warn().Err(err).Msg("metrics push failed")
	}
	if runErr != nil {
		logger.Fatal().Err(runErr).Msg("html ingestion aborted")
	}
	logger.Info().
		Int("db_updated", summary.DBUpdated).
		Int("html_uploaded", summary.Uploaded).
		Int("missing", summary.Missing).
		Int("bad_filenames", summary.BadFilenames).
		Int("failed", summary.Failed).
		Msg("html ingestion finished")
}
