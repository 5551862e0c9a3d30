package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/ubhp-protocol/agenthub/internal/api"
	"github.com/ubhp-protocol/agenthub/internal/bridge"
	"github.com/ubhp-protocol/agenthub/internal/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		println("config error:", err.Error())
		os.Exit(1)
	}

	var logger zerolog.Logger
	if cfg.IsDevelopment() {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).
			With().
			Timestamp().
			Logger()
	} else {
		logger = zerolog.New(os.Stdout).
			With().
			Timestamp().
			Logger()
	}

	if cfg.JWTSecret == "" && cfg.APIKey == "" {
		logger.Warn().Msg("no JWT_SECRET or API_KEY configured, bridge ingress is open")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hubClient := bridge.NewHubClient(cfg.HubURL, os.Getenv("HUB_PEER_TOKEN"), logger)
	go hubClient.Run(ctx)

	b := bridge.NewHandler(hubClient, logger)
	router := api.NewBridgeRouter(logger, cfg, b)

	srv := &http.Server{
		Addr:         ":" + cfg.BridgePort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info().
			Str("port", cfg.BridgePort).
			Str("hub_url", cfg.HubURL).
			Str("env", cfg.Env).
			Float64("rate_limit_rps", cfg.RateLimitRPS).
			Int("rate_limit_burst", cfg.RateLimitBurst).
			Msg("starting UBHP bridge")

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server failed to start")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down bridge...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server forced to shutdown")
	}

	logger.Info().Msg("bridge stopped")
}
