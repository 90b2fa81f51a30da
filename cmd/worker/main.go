package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"mowakeb/internal/config"
	"mowakeb/internal/objectstore"
	"mowakeb/internal/observability"
	"mowakeb/internal/pdfsync"
	"mowakeb/internal/storage"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	_ = godotenv.Load(".env")
	cfg := config.Load()
	logger := observability.NewLogger(observability.LoggingConfig{Level: cfg.LogLevel, Format: cfg.LogFormat}, "pdf-worker")

	if err := cfg.ValidateStorage(); err != nil {
		logger.Fatal().Err(err).Str("backend", cfg.StorageBackend).Msg("invalid storage configuration")
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

	dl := pdfsync.NewHTTPDownloader(time.Duration(cfg.DownloadTimeoutSecs)*time.Second, cfg.ArxivUserAgent)
	w := pdfsync.NewWorker(storage.NewPaperRepo(db.Pool), store, dl, pdfsync.WorkerConfig{
		Bucket:    cfg.PDFBucket,
		BatchSize: cfg.PDFBatchSize,
	}, logger, metrics)

	summary, runErr := w.Run(ctx)

	if err := observability.Push(cfg.PushgatewayURL, "mowakeb_pdf_worker", reg); err != nil {
		logger.Warn().Err(err).Msg("metrics push failed")
	}
	if runErr != nil {
		logger.Fatal().Err(runErr).Msg("pdf worker aborted")
	}
	logger.Info().
		Int("stored", summary.Succeeded).
		Int("failed", summary.Failed).
		Interface("reasons", summary.Reasons).
		Msg("pdf worker finished")
}
