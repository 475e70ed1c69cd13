package main

import (
	"context"
	"os"

	"gallery/internal/config"
	"gallery/internal/database"
	"gallery/internal/logging"
	"gallery/internal/migrations"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.New(os.Stderr, "info", "text").Error("load config", "error", err)
		os.Exit(1)
	}
	logger := logging.New(os.Stdout, cfg.LogLevel, cfg.LogFormat)

	ctx := context.Background()
	db, err := database.Connect(ctx, cfg, logger)
	if err != nil {
		logger.Error("connect database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	ran, err := migrations.Apply(ctx, db, logger)
	if err != nil {
		logger.Error("apply migrations", "error", err)
		db.Close()
		os.Exit(1)
	}
	logger.Info("migrations applied", "count", len(ran))
}
