package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/adi-253/Talkie/chatsync/internal/config"
	"github.com/adi-253/Talkie/chatsync/internal/handlers"
	"github.com/adi-253/Talkie/chatsync/internal/services"
)

func main() {
	var (
		configPath = flag.String("config", "config.toml", "Path to config file")
		debug      = flag.Bool("debug", false, "Enable debug logging")
	)
	flag.Parse()

	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly}).With().Timestamp().Logger()
	if *debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	// Load configuration from .env, config file and environment
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}

	// Initialize services
	messageService := services.NewMessageService()
	cleanupService := services.NewCleanupService(
		messageService,
		cfg.Server.CleanupInterval.Duration,
		cfg.Server.Retention.Duration,
	)

	// Start background cleanup worker
	go cleanupService.Start()
	defer cleanupService.Stop()

	log.Info().Strs("origins", cfg.Server.CORSOrigins).Msg("CORS allowed origins")

	addr := fmt.Sprintf(":%s", cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           handlers.NewRouter(messageService, cfg.Server.CORSOrigins),
		ReadHeaderTimeout: 10 * time.Second,
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Info().Msg("Received shutdown signal")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			log.Error().Err(err).Msg("Graceful shutdown failed")
		}
	}()

	log.Info().Str("addr", addr).Msg("Talkie devserver starting")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("Server error")
	}
	log.Info().Msg("Talkie devserver stopped")
}
