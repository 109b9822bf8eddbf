package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"investtrack/internal/config"
	"investtrack/internal/engine"
	"investtrack/internal/marketdata"
	"investtrack/internal/repository"
	"investtrack/internal/server"
	"investtrack/internal/trading"
	"investtrack/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallback := logger.New(logger.Config{Level: "info"})
		fallback.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})
	logger.SetGlobalLogger(log)

	log.Info().Msg("Starting invest-track")

	ctx := context.Background()

	db, err := repository.NewDatabase(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer db.Close()

	if err := db.EnsureSchema(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to apply schema")
	}

	analytics := engine.NewEngine(db, cfg.RiskFreeRate, log)
	trader := trading.NewService(db, int64(cfg.MaxPositions), log)
	prices := marketdata.NewClient(
		cfg.AlphaVantageURL,
		cfg.AlphaVantageAPIKey,
		time.Duration(cfg.RequestTimeoutSecs)*time.Second,
		log,
	)

	srv := server.New(server.Config{
		Port:      cfg.Port,
		Log:       log,
		Store:     db,
		Trader:    trader,
		Analytics: analytics,
		Prices:    prices,
		DevMode:   cfg.DevMode,
	})

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	log.Info().Int("port", cfg.Port).Msg("Server started successfully")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(),
		time.Duration(cfg.ShutdownTimeoutSecs)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped")
}
