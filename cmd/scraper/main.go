package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"ImageHarvester/internal/app"
	"ImageHarvester/internal/models"
	"ImageHarvester/internal/server"
	"ImageHarvester/pkg/config"
	"ImageHarvester/utils"
)

func main() {
	task := flag.String("task", "run", "Task to run: check, run or single")
	configPath := flag.String("config", "config.yml", "Path to the config file")
	metricsAddr := flag.String("metrics-addr", "", "Serve /metrics on this address while running")
	imageURL := flag.String("url", "", "Image URL for the single task")
	productID := flag.String("product", "", "Product ID for the single task")
	suffix := flag.String("suffix", "0", "File suffix for the single task")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}
	if err := app.SetupLogger(cfg.Logging, os.Stderr); err != nil {
		log.Fatal().Err(err).Msg("Failed to set up logging")
	}

	application, err := app.New(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialise application")
	}
	defer application.Close()

	// The first interrupt cancels the run; in-flight work still completes.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *metricsAddr != "" {
		go func() {
			if err := server.Start(ctx, *metricsAddr, server.NewHandler(nil, application.Metrics)); err != nil {
				log.Error().Err(err).Msg("Metrics server stopped")
			}
		}()
	}

	log.Info().Str("task", *task).Msg("Running task")

	var runErr error
	switch *task {
	case "check":
		var res *models.ScanResult
		res, runErr = application.RunCheck(ctx)
		if res != nil {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			if err := enc.Encode(res.Candidates); err != nil {
				log.Error().Err(err).Msg("Failed to write candidates")
			}
		}

	case "run":
		_, runErr = application.RunAll(ctx)

	case "single":
		if *imageURL == "" || *productID == "" {
			log.Error().Msg("The single task needs -url and -product")
			runErr = flag.ErrHelp
			break
		}
		pid := utils.PadProductID(utils.CleanProductID(*productID))
		_, runErr = application.DownloadSingle(ctx, models.ImageCandidate{URL: *imageURL, ProductID: pid, Suffix: *suffix})

	default:
		log.Error().Str("task", *task).Msg("Unknown task")
		runErr = flag.ErrHelp
	}

	if runErr != nil {
		application.Close()
		log.Fatal().Err(runErr).Msg("Task failed")
	}
}
