package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

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
	logger := observability.NewLogger(observability.LoggingConfig{Level: cfg.LogLevel, Format: cfg.LogFormat}, "export-pdfs")

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

	exp := pdfsync.NewExporter(storage.NewPaperRepo(db.Pool), store, cfg.PDFBucket, cfg.ExportLimit, logger, metrics)
	summary, runErr := exp.Export(ctx, cfg.ExportZipPath)

	if err := observability.Push(cfg.PushgatewayURL, "mowakeb_export_pdfs", reg); err != nil {
		logger.Warn().Err(err).Msg("metrics push failed")
	}
	if errors.Is(runErr, pdfsync.ErrNothingToExport) {
		logger.Fatal().Err(runErr).Msg("no rows with stored_pdf_path")
	}
	if runErr != nil {
		logger.Fatal().Err(runErr).Msg("export aborted")
	}
	logger.Info().
		Int("rows", summary.Rows).
		Int("exported", summary.Exported).
		Int("failed", summary.Failed).
		Str("zip", summary.Path).
		Msg("export finished")
}
