package main

import (
	"context"
	"os"
	"time"

	"mowakeb/internal/config"
	"mowakeb/internal/observability"
	"mowakeb/internal/storage"

	"github.com/joho/godotenv"
)

// Usage: migrate [up|down]. Defaults to up.
func main() {
	_ = godotenv.Load(".env")
	cfg := config.Load()
	logger := observability.NewLogger(observability.LoggingConfig{Level: cfg.LogLevel, Format: cfg.LogFormat}, "migrate")

	direction := "up"
	if len(os.Args) > 1 {
		direction = os.Args[1]
	}
	if direction != "up" && direction != "down" {
		logger.Fatal().Str("direction", direction).Msg("usage: migrate [up|down]")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	db, err := storage.NewDB(ctx, cfg.PostgresURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("open database")
	}
	defer db.Close()

	if err := storage.Migrate(db, direction == "up", logger); err != nil {
		logger.Fatal().Err(err).Str("direction", direction).Msg("migration failed")
	}
}
