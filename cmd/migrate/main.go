package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/noticing/internal/db"
	"github.com/noticing/internal/logger"
	"go.uber.org/zap"
)

func main() {
	var direction string
	flag.StringVar(&direction, "direction", "up", "Migration direction: up or down")
	flag.Parse()

	log, err := logger.New(getEnv("LOG_LEVEL", "info"), getEnv("LOG_FORMAT", "console"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "migrate: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if direction != "up" && direction != "down" {
		log.Fatal("invalid direction; use 'up' or 'down'", zap.String("direction", direction))
	}

	ctx := context.Background()
	database, err := db.NewConnection(ctx,
		getEnv("DB_HOST", "localhost"),
		getEnv("DB_PORT", "5432"),
		getEnv("DB_USER", "postgres"),
		getEnv("DB_PASSWORD", ""),
		getEnv("DB_NAME", "noticing"),
		log,
	)
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}
	defer database.Close()

	if direction == "down" {
		log.Warn("down migrations not implemented yet")
		return
	}

	if err := database.RunMigrations(ctx, log); err != nil {
		log.Fatal("failed to run migrations", zap.Error(err))
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
