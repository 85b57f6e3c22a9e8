package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"ImageHarvester/internal/app"
	"ImageHarvester/internal/database"
	"ImageHarvester/internal/metrics"
	"ImageHarvester/internal/server"
	"ImageHarvester/pkg/config"
)

func main() {
	configPath := flag.String("config", "config.yml", "Path to the config file")
	flag.Parse()

	// The server loads its own config
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}
	if err := app.SetupLogger(cfg.Logging, os.Stderr); err != nil {
		log.Fatal().Err(err).Msg("Failed to set up logging")
	}

	journal, err := database.InitDB(cfg.Storage.JournalDB)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open run journal")
	}
	defer journal.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := server.Start(ctx, cfg.Server.Addr, server.NewHandler(journal, metrics.New())); err != nil {
		log.Error().Err(err).Msg("Server stopped")
	}
}
