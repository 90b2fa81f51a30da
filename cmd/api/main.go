package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"mowakeb/internal/api"
	"mowakeb/internal/config"
	"mowakeb/internal/observability"
	"mowakeb/internal/providers"
	"mowakeb/internal/qa"
	"mowakeb/internal/vision"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

func main() {
	_ = godotenv.Load(".env")
	cfg := config.Load()
	logger := observability.NewLogger(observability.LoggingConfig{Level: cfg.LogLevel, Format: cfg.LogFormat}, "api")

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := observability.NewMetrics(reg)

	pm, err := providers.NewManager(cfg, logger, metrics)
	if err != nil {
		logger.Fatal().Err(err).Msg("configure providers")
	}

	pipeline := qa.NewPipeline(qa.Deps{
		Extractor: qa.PDFTextExtractor{},
		Renderer:  vision.NewRenderer(),
		Detector:  vision.NewContourDetector(cfg.RegionMinArea),
		LLM:       pm,
		Embedder:  pm,
		Vision:    pm,
	}, qa.Config{
		ChunkSize:      cfg.ChunkSize,
		ChunkOverlap:   cfg.ChunkOverlap,
		DPI:            cfg.RenderDPI,
		K:              cfg.RetrievalK,
		FiguresEnabled: cfg.FiguresEnabled,
		EmbedDim:       pm.EmbedDim(),
	}, logger, metrics)

	srv, err := api.NewServer(cfg, pipeline, reg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("create server")
	}

	httpSrv := &http.Server{
		Addr:              cfg.APIAddr,
		Handler:           srv.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = httpSrv.Shutdown(shutdownCtx)
	}()

	logger.Info().
		Str("addr", cfg.APIAddr).
		Str("llm_providers", cfg.LLMProviders).
		Str("embed_providers", cfg.EmbedProviders).
		Str("vision_providers", cfg.VisionProviders).
		Bool("figures", cfg.FiguresEnabled).
		Msg("mowakeb api listening")
	if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal().Err(err).Msg("serve")
	}
}
