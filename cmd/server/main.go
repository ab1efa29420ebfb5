package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cindychow0101/Portfolio-tracker/internal/api"
	"github.com/cindychow0101/Portfolio-tracker/internal/app"
	"github.com/cindychow0101/Portfolio-tracker/internal/config"
	"github.com/cindychow0101/Portfolio-tracker/internal/portfolio"
	"github.com/cindychow0101/Portfolio-tracker/pkg/logger"
)

func main() {
	cfg := config.Load()

	log := logger.New(logger.Config{Level: cfg.Log.Level, Pretty: cfg.Log.Pretty})
	logger.SetGlobalLogger(log)

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	log.Info().Msg("Starting portfolio tracker API")

	a, err := app.New(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize")
	}
	defer a.Close()

	svc := portfolio.NewService(portfolio.Deps{
		Store:      a.DB,
		Provider:   a.Provider,
		Converter:  a.Converter,
		Recomputer: a.Pipeline,
		Events:     a.Events,
	}, cfg.FX.ReportingCurrency, log)

	srv := &http.Server{
		Addr:              net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler:           api.SetupRoutes(api.NewHandler(svc, a.DB, log)),
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped")
}
