package main

import (
	"context"
	"flag"
	"time"

	"github.com/cindychow0101/Portfolio-tracker/internal/config"
	"github.com/cindychow0101/Portfolio-tracker/internal/database"
	"github.com/cindychow0101/Portfolio-tracker/pkg/logger"
)

func main() {
	confirm := flag.Bool("yes", false, "confirm deleting every table except users")
	flag.Parse()

	cfg := config.Load()
	log := logger.New(logger.Config{Level: cfg.Log.Level, Pretty: true})

	if !*confirm {
		log.Fatal().Msg("Refusing to reset without -yes")
	}

	db, err := database.New(cfg.Database.ConnectionString())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := db.ClearAllExceptUsers(ctx); err != nil {
		log.Fatal().Err(err).Msg("Reset failed")
	}

	log.Info().Str("database", cfg.Database.DBName).Msg("Cleared all data except users")
}
