// Package downloader fetches image candidates through pooled sessions and
// writes them to storage.
package downloader

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog/log"

	"ImageHarvester/internal/browser"
	"ImageHarvester/internal/metrics"
	"ImageHarvester/internal/models"
	"ImageHarvester/internal/progress"
	"ImageHarvester/internal/storage"
)

// Status is the result of one candidate download.
type Status int

const (
	Downloaded Status = iota
	Failed
	Skipped
)

func (s Status) String() string {
	switch s {
	case Downloaded:
		return "downloaded"
	case Failed:
		return "failed"
	case Skipped:
		return "skipped"
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

// Outcome describes what happened to one candidate.
type Outcome struct {
	Status Status
	Path   string
	Bytes  int
	Err    error
}

// SessionSource hands out automation sessions. *browser.Pool satisfies it.
type SessionSource interface {
	Acquire(ctx context.Context) (*browser.Session, error)
	Release(s *browser.Session)
}

// Downloader saves candidates below a domain folder.
type Downloader struct {
	pool    SessionSource
	store   *storage.Store
	wait    browser.WaitPolicy
	sink    progress.Sink
	metrics *metrics.Metrics
}

// New creates a Downloader. A nil sink discards progress events.
func New(pool SessionSource, store *storage.Store, wait browser.WaitPolicy, sink progress.Sink, m *metrics.Metrics) *Downloader {
	if wait.Timeout <= 0 {
		wait = browser.DefaultWaitPolicy
	}
	if sink == nil {
		sink = progress.Discard
	}
	return &Downloader{pool: pool, store: store, wait: wait, sink: sink, metrics: m}
}

// DownloadOne fetches cand with h and writes it to
// domainFolder/<productId>/<productId>_<suffix>.jpg. Cancellation is honoured
// before the product folder is created, before the fetch and before the write;
// a fetch that already started always completes.
func (d *Downloader) DownloadOne(ctx context.Context, h browser.Handle, cand models.ImageCandidate, domainFolder string) Outcome {
	out := d.downloadOne(ctx, h, cand, domainFolder)
	d.metrics.IncDownload(out.Status.String(), out.Bytes)
	return out
}

func (d *Downloader) downloadOne(ctx context.Context, h browser.Handle, cand models.ImageCandidate, domainFolder string) Outcome {
	if ctx.Err() != nil {
		log.Debug().Str("url", cand.URL).Msg("Download cancelled, skipping image")
		return Outcome{Status: Skipped}
	}

	dir, err := d.store.ProductDir(domainFolder, cand.ProductID)
	if err != nil {
		log.Error().Err(err).Str("product_id", cand.ProductID).Msg("Error creating product folder")
		return Outcome{Status: Failed, Err: err}
	}

	if ctx.Err() != nil {
		log.Debug().Str("url", cand.URL).Msg("Download cancelled, skipping image")
		return Outcome{Status: Skipped}
	}

	body, err := h.FetchBinary(context.WithoutCancel(ctx), cand.URL, d.wait)
	if err != nil {
		log.Warn().Err(err).Str("url", cand.URL).Str("product_id", cand.ProductID).Msg("Failed to fetch image")
		return Outcome{Status: Failed, Err: err}
	}

	if ctx.Err() != nil {
		log.Debug().Str("url", cand.URL).Msg("Download cancelled, discarding fetched image")
		return Outcome{Status: Skipped}
	}

	path, err := d.store.SaveExclusive(dir, cand.ProductID, cand.Suffix, body)
	if err != nil {
		log.Error().Err(err).Str("product_id", cand.ProductID).Msg("Error saving image")
		return Outcome{Status: Failed, Err: err}
	}

	log.Info().
		Str("product_id", cand.ProductID).
		Str("path", path).
		Str("size", humanize.Bytes(uint64(len(body)))).
		Msg("Successfully downloaded image")
	return Outcome{Status: Downloaded, Path: path, Bytes: len(body)}
}

// DownloadAll downloads every candidate concurrently, each on its own pooled
// session, so the pool bound limits parallelism. The returned error is the
// first session acquisition failure not caused by ctx; the result is always
// complete: SuccessCount+FailureCount+SkippedCount == len(candidates).
func (d *Downloader) DownloadAll(ctx context.Context, candidates []models.ImageCandidate, domainFolder string) (*models.DownloadResult, error) {
	total := len(candidates)
	res := &models.DownloadResult{Total: total}
	log.Info().Int("images", total).Str("folder", domainFolder).Msg("Starting image download")
	if total == 0 {
		return res, nil
	}

	var (
		success, failure, skipped atomic.Int64
		processed                 atomic.Int64
		bytes                     atomic.Int64

		mu       sync.Mutex
		firstErr error
		wg       sync.WaitGroup
	)
	start := time.Now()

	for _, cand := range candidates {
		wg.Add(1)
		go func() {
			defer wg.Done()

			var out Outcome
			sess, err := d.pool.Acquire(ctx)
			switch {
			case err != nil && ctx.Err() != nil:
				out = Outcome{Status: Skipped}
			case err != nil:
				out = Outcome{Status: Failed, Err: err}
				mu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
				d.metrics.IncDownload(Failed.String(), 0)
			default:
				out = d.DownloadOne(ctx, sess, cand, domainFolder)
				d.pool.Release(sess)
			}

			switch out.Status {
			case Downloaded:
				success.Add(1)
				bytes.Add(int64(out.Bytes))
				mu.Lock()
				res.Files = append(res.Files, out.Path)
				mu.Unlock()
			case Failed:
				failure.Add(1)
			case Skipped:
				skipped.Add(1)
			}

			current := int(processed.Add(1))
			d.sink.Emit(models.ProgressEvent{
				Stage:       models.StageDownloading,
				Current:     current,
				Total:       total,
				ProgressPct: models.Percent(current, total),
				Message:     fmt.Sprintf("Downloading images (%d/%d)", current, total),
			})
		}()
	}
	wg.Wait()

	res.SuccessCount = int(success.Load())
	res.FailureCount = int(failure.Load())
	res.SkippedCount = int(skipped.Load())
	res.Bytes = bytes.Load()
	res.Cancelled = ctx.Err() != nil

	log.Info().
		Int("downloaded", res.SuccessCount).
		Int("failed", res.FailureCount).
		Int("skipped", res.SkippedCount).
		Str("size", humanize.Bytes(uint64(res.Bytes))).
		Dur("elapsed", time.Since(start)).
		Bool("cancelled", res.Cancelled).
		Msg("Image download finished")
	return res, firstErr
}

// DownloadSingle downloads one candidate on a pooled session.
func (d *Downloader) DownloadSingle(ctx context.Context, cand models.ImageCandidate, domainFolder string) (Outcome, error) {
	sess, err := d.pool.Acquire(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return Outcome{Status: Skipped}, nil
		}
		return Outcome{Status: Failed, Err: err}, fmt.Errorf("could not obtain session: %w", err)
	}
	defer d.pool.Release(sess)

	out := d.DownloadOne(ctx, sess, cand, domainFolder)
	if out.Status == Failed && errors.Is(out.Err, models.ErrEmptyPayload) {
		log.Warn().Str("url", cand.URL).Msg("No image data received")
	}
	return out, nil
}
