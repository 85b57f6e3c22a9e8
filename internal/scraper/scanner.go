package scraper

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"ImageHarvester/internal/browser"
	"ImageHarvester/internal/metrics"
	"ImageHarvester/internal/models"
	"ImageHarvester/internal/progress"
)

// Options configures a Scanner.
type Options struct {
	Selector string
	Wait     browser.WaitPolicy
	Strategy Strategy
}

// Scanner checks product pages for image candidates.
type Scanner struct {
	pool    SessionSource
	opts    Options
	sink    progress.Sink
	metrics *metrics.Metrics
}

// New creates a Scanner. A nil sink discards progress events.
func New(pool SessionSource, opts Options, sink progress.Sink, m *metrics.Metrics) *Scanner {
	if opts.Selector == "" {
		opts.Selector = DefaultImageSelector
	}
	if opts.Strategy == "" {
		opts.Strategy = StrategyQueue
	}
	if opts.Wait.Timeout <= 0 {
		opts.Wait = browser.DefaultWaitPolicy
	}
	if sink == nil {
		sink = progress.Discard
	}
	return &Scanner{pool: pool, opts: opts, sink: sink, metrics: m}
}

// scanState is shared by the workers of one Scan call.
type scanState struct {
	total     int
	processed atomic.Int64
	failed    atomic.Int64
	warned    atomic.Int64

	mu         sync.Mutex
	candidates []models.ImageCandidate
}

// Scan visits every task with up to concurrency sessions and returns the
// deduplicated candidates. Cancelling ctx stops workers between tasks; pages
// already being checked are finished. The error is non-nil only when a worker
// could not obtain a session; the partial result is still returned.
func (s *Scanner) Scan(ctx context.Context, tasks []models.ProductTask, concurrency int) (*models.ScanResult, error) {
	total := len(tasks)
	s.emit(0, total, fmt.Sprintf("Checking images for %d products...", total))
	log.Info().Int("products", total).Int("concurrency", concurrency).Str("strategy", string(s.opts.Strategy)).Msg("Starting image check")

	if total == 0 {
		return &models.ScanResult{}, nil
	}
	if concurrency < 1 {
		concurrency = 1
	}
	if concurrency > total {
		concurrency = total
	}

	st := &scanState{total: total}
	var g errgroup.Group

	switch s.opts.Strategy {
	case StrategyShards:
		for i, shard := range Shard(tasks, concurrency) {
			var pos int
			next := func() (models.ProductTask, bool) {
				if pos >= len(shard) {
					return models.ProductTask{}, false
				}
				pos++
				return shard[pos-1], true
			}
			worker := i + 1
			g.Go(func() error { return s.work(ctx, worker, next, st) })
		}
	default:
		var idx atomic.Int64
		next := func() (models.ProductTask, bool) {
			i := int(idx.Add(1) - 1)
			if i >= total {
				return models.ProductTask{}, false
			}
			return tasks[i], true
		}
		for i := 0; i < concurrency; i++ {
			worker := i + 1
			g.Go(func() error { return s.work(ctx, worker, next, st) })
		}
	}

	err := g.Wait()

	unique, dupes := Dedup(st.candidates)
	if dupes > 0 {
		log.Info().Int("duplicates", dupes).Msg("Removed duplicate image URLs")
	}
	s.metrics.AddDuplicates(dupes)

	processed := int(st.processed.Load())
	res := &models.ScanResult{
		Candidates:     unique,
		Total:          total,
		ProcessedCount: processed,
		FailedCount:    int(st.failed.Load()),
		WarningCount:   int(st.warned.Load()),
		SkippedCount:   total - processed,
		DuplicateCount: dupes,
		// A cancel that lands after the last task leaves nothing unvisited.
		Cancelled: ctx.Err() != nil && processed < total,
	}

	s.emit(processed, total, fmt.Sprintf("Found %d unique images to download", len(unique)))
	log.Info().
		Int("processed", res.ProcessedCount).
		Int("failed", res.FailedCount).
		Int("no_images", res.WarningCount).
		Int("skipped", res.SkippedCount).
		Int("unique_images", len(unique)).
		Bool("cancelled", res.Cancelled).
		Msg("Image check finished")
	return res, err
}

// work binds one session and processes tasks sequentially until next runs dry
// or ctx is cancelled.
func (s *Scanner) work(ctx context.Context, worker int, next func() (models.ProductTask, bool), st *scanState) error {
	sess, err := s.pool.Acquire(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("worker %d: %w", worker, err)
	}
	defer s.pool.Release(sess)

	// In-flight page work is never pre-empted by cancellation.
	pageCtx := context.WithoutCancel(ctx)

	for {
		if ctx.Err() != nil {
			log.Info().Int("worker", worker).Msg("Image check cancelled, worker stopping")
			return nil
		}
		task, ok := next()
		if !ok {
			return nil
		}

		start := time.Now()
		candidates, err := s.checkProduct(pageCtx, sess, task)
		switch {
		case errors.Is(err, models.ErrNoImages):
			st.warned.Add(1)
			s.metrics.ObservePage("empty", time.Since(start))
			log.Warn().Str("product_id", task.ID).Str("url", task.URL).Msg("No images found for product")
		case err != nil:
			st.failed.Add(1)
			s.metrics.ObservePage("error", time.Since(start))
			log.Error().Err(err).Int("worker", worker).Str("product_id", task.ID).Msg("Error checking images for product")
		default:
			s.metrics.ObservePage("ok", time.Since(start))
			s.metrics.AddCandidates(len(candidates))
			st.mu.Lock()
			st.candidates = append(st.candidates, candidates...)
			st.mu.Unlock()
		}

		current := int(st.processed.Add(1))
		s.emit(current, st.total, fmt.Sprintf("Checking images (%d/%d products)", current, st.total))
	}
}

// checkProduct opens the task page and extracts its image candidates.
func (s *Scanner) checkProduct(ctx context.Context, h browser.Handle, task models.ProductTask) ([]models.ImageCandidate, error) {
	log.Debug().Str("url", task.URL).Msg("Checking images")

	page, err := h.Navigate(ctx, task.URL, s.opts.Wait)
	if err != nil {
		return nil, err
	}
	defer page.Close()

	els, err := page.QueryAll(s.opts.Selector)
	if err != nil {
		return nil, fmt.Errorf("query %q on %s: %w", s.opts.Selector, task.URL, err)
	}
	if len(els) == 0 {
		return nil, models.ErrNoImages
	}
	log.Debug().Int("images", len(els)).Str("product_id", task.ID).Msg("Found images for product")

	srcs := make([]*string, len(els))
	for i, el := range els {
		src, err := el.Attribute("src")
		if err != nil {
			log.Warn().Err(err).Str("product_id", task.ID).Msg("Error getting image source")
			continue
		}
		srcs[i] = src
	}
	return extractCandidates(task.ID, page.URL(), srcs), nil
}

func (s *Scanner) emit(current, total int, msg string) {
	s.sink.Emit(models.ProgressEvent{
		Stage:       models.StageChecking,
		Current:     current,
		Total:       total,
		ProgressPct: models.Percent(current, total),
		Message:     msg,
	})
}
