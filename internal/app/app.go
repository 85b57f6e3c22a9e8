// Package app wires configuration, the session pool and the orchestrators
// into the check and download workflows.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"ImageHarvester/internal/browser"
	"ImageHarvester/internal/database"
	"ImageHarvester/internal/downloader"
	"ImageHarvester/internal/input"
	"ImageHarvester/internal/metrics"
	"ImageHarvester/internal/models"
	"ImageHarvester/internal/progress"
	"ImageHarvester/internal/scraper"
	"ImageHarvester/internal/storage"
	"ImageHarvester/pkg/config"
	"ImageHarvester/utils"
)

// ErrNothingToDownload ends a run whose check found no images.
var ErrNothingToDownload = errors.New("no images found to download")

// App is the main application structure holding all dependencies.
type App struct {
	Config     *config.Config
	Journal    *database.RunJournal // nil when the journal is disabled
	Pool       *browser.Pool
	Store      *storage.Store
	Metrics    *metrics.Metrics
	Progress   *progress.Broadcaster
	Scanner    *scraper.Scanner
	Downloader *downloader.Downloader

	driverName string
}

// New creates an application using the driver named in cfg.
func New(cfg *config.Config) (*App, error) {
	driver, err := browser.NewDriver(cfg.Browser)
	if err != nil {
		return nil, err
	}
	return NewWithDriver(cfg, driver)
}

// NewWithDriver creates an application around an explicit driver.
func NewWithDriver(cfg *config.Config, driver browser.Driver) (*App, error) {
	store, err := storage.NewStore(cfg.Storage.Path)
	if err != nil {
		return nil, err
	}

	var journal *database.RunJournal
	if cfg.Storage.JournalDB != "" {
		journal, err = database.InitDB(cfg.Storage.JournalDB)
		if err != nil {
			return nil, err
		}
	}

	m := metrics.New()
	events := &progress.Broadcaster{}
	events.Subscribe(progress.Logger())

	pool := browser.NewPool(browser.PoolConfigFrom(cfg.Browser), driver, m)
	wait := browser.WaitPolicyFrom(cfg.Browser)

	return &App{
		Config:   cfg,
		Journal:  journal,
		Pool:     pool,
		Store:    store,
		Metrics:  m,
		Progress: events,
		Scanner: scraper.New(pool, scraper.Options{
			Selector: cfg.Scraper.ImageSelector,
			Wait:     wait,
			Strategy: scraper.Strategy(cfg.Scraper.Strategy),
		}, events, m),
		Downloader: downloader.New(pool, store, wait, events, m),
		driverName: driver.Name(),
	}, nil
}

// Close shuts the pool down and closes the journal.
func (a *App) Close() error {
	a.Pool.Shutdown()
	if a.Journal != nil {
		return a.Journal.Close()
	}
	return nil
}

// LoadTasks reads the configured CSV and derives the product tasks.
func (a *App) LoadTasks() ([]models.ProductTask, error) {
	in := a.Config.Input
	if in.File == "" {
		return nil, &models.StructuralError{Field: "input.file", Message: "no CSV file configured"}
	}
	headers, rows, err := input.ReadFile(in.File, in.Encoding)
	if err != nil {
		return nil, err
	}
	return input.BuildTasks(in.IDField, in.SampleURL, headers, rows)
}

// RunCheck runs the checking stage only.
func (a *App) RunCheck(ctx context.Context) (*models.ScanResult, error) {
	log.Info().Msg("--- Starting Image Check Task ---")
	tasks, err := a.LoadTasks()
	if err != nil {
		return nil, err
	}
	return a.Scanner.Scan(ctx, tasks, utils.GetOptimalWorkerCount(a.Config.Scraper.Workers))
}

// RunAll checks every product, downloads the unique images into the domain
// folder and journals the run. The record is returned even on failure.
func (a *App) RunAll(ctx context.Context) (*models.RunRecord, error) {
	record := &models.RunRecord{
		ID:        uuid.NewString(),
		Domain:    utils.DomainFolderName(a.Config.Input.SampleURL),
		SampleURL: a.Config.Input.SampleURL,
		Driver:    a.driverName,
		StartedAt: time.Now(),
	}
	err := a.runAll(ctx, record)
	record.FinishedAt = time.Now()
	if err != nil && record.StatusMessage == "" {
		record.StatusMessage = fmt.Sprintf("Error during download process: %v", err)
	}
	a.journal(record)

	if err != nil {
		log.Error().Err(err).Str("run", record.ID).Msg(record.StatusMessage)
	} else {
		log.Info().Str("run", record.ID).Msg(record.StatusMessage)
	}
	return record, err
}

func (a *App) runAll(ctx context.Context, record *models.RunRecord) error {
	tasks, err := a.LoadTasks()
	if err != nil {
		return err
	}
	record.Products = len(tasks)

	scan, err := a.Scanner.Scan(ctx, tasks, utils.GetOptimalWorkerCount(a.Config.Scraper.Workers))
	if scan != nil {
		record.Candidates = len(scan.Candidates)
	}
	if err != nil {
		return err
	}
	if scan.Cancelled {
		record.Cancelled = true
		record.StatusMessage = CancelledMessage(0)
		return nil
	}
	if len(scan.Candidates) == 0 {
		return ErrNothingToDownload
	}

	folder, err := a.Store.DomainFolder(a.Config.Input.SampleURL)
	if err != nil {
		return err
	}

	res, err := a.Downloader.DownloadAll(ctx, scan.Candidates, folder)
	record.Downloaded = res.SuccessCount
	record.Failed = res.FailureCount
	record.Skipped = res.SkippedCount
	record.Cancelled = res.Cancelled
	record.Files = res.Files
	record.StatusMessage = Summarize(res)
	return err
}

// DownloadSingle downloads one image URL into the configured domain folder.
func (a *App) DownloadSingle(ctx context.Context, cand models.ImageCandidate) (string, error) {
	folder, err := a.Store.DomainFolder(a.Config.Input.SampleURL)
	if err != nil {
		return "", err
	}
	out, err := a.Downloader.DownloadSingle(ctx, cand, folder)
	if err != nil {
		return "", err
	}
	if out.Status != downloader.Downloaded {
		return "", fmt.Errorf("failed to download image for product ID %s: %s", cand.ProductID, out.Status)
	}
	log.Info().Str("path", out.Path).Msgf("Successfully downloaded image for product ID: %s", cand.ProductID)
	return out.Path, nil
}

func (a *App) journal(record *models.RunRecord) {
	if a.Journal == nil {
		return
	}
	if err := a.Journal.SaveRun(*record); err != nil {
		log.Warn().Err(err).Str("run", record.ID).Msg("Failed to journal run")
	}
}

// Summarize phrases the final status of a download stage.
func Summarize(res *models.DownloadResult) string {
	switch {
	case res.Cancelled:
		return CancelledMessage(res.SuccessCount)
	case res.SuccessCount == res.Total:
		return fmt.Sprintf("All %d images downloaded, organised in per-product folders", res.Total)
	default:
		return fmt.Sprintf("Downloaded %d images, %d failed; images are organised in per-product folders", res.SuccessCount, res.FailureCount)
	}
}

// CancelledMessage reports a cancelled run.
func CancelledMessage(downloaded int) string {
	return fmt.Sprintf("Download cancelled. %d images were downloaded", downloaded)
}
