package scraper_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ImageHarvester/internal/browser"
	"ImageHarvester/internal/browser/browsertest"
	"ImageHarvester/internal/models"
	"ImageHarvester/internal/progress"
	"ImageHarvester/internal/scraper"
)

const cdn = "https://makeshop-multi-images.akamaized.net/shop/shopimages"

type recorder struct {
	mu     sync.Mutex
	events []models.ProgressEvent
}

func (r *recorder) Emit(e models.ProgressEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) last() models.ProgressEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.events[len(r.events)-1]
}

func productID(i int) string { return fmt.Sprintf("%012d", i) }

func productURL(id string) string { return "https://shop.example.com/shopdetail/" + id }

// catalog builds n products: the first `empty` pages have no images, the next
// `dupes` pages list the same image twice, the rest carry two distinct images.
func catalog(d *browsertest.Driver, n, empty, dupes int) []models.ProductTask {
	tasks := make([]models.ProductTask, n)
	for i := range tasks {
		id := productID(i + 1)
		tasks[i] = models.ProductTask{ID: id, URL: productURL(id)}
		switch {
		case i < empty:
			d.AddPage(tasks[i].URL)
		case i < empty+dupes:
			src := fmt.Sprintf("%s/%s_main.jpg", cdn, id)
			d.AddPage(tasks[i].URL, src, src)
		default:
			d.AddPage(tasks[i].URL,
				fmt.Sprintf("%s/%s.jpg", cdn, id),
				fmt.Sprintf("%s/%s_back.jpg", cdn, id))
		}
	}
	return tasks
}

func newPool(t *testing.T, d browser.Driver, max int) *browser.Pool {
	t.Helper()
	p := browser.NewPool(browser.PoolConfig{MaxInstances: max}, d, nil)
	t.Cleanup(p.Shutdown)
	return p
}

func TestScanCollectsAndDeduplicates(t *testing.T) {
	for _, strategy := range []scraper.Strategy{scraper.StrategyQueue, scraper.StrategyShards} {
		t.Run(string(strategy), func(t *testing.T) {
			d := browsertest.NewDriver()
			tasks := catalog(d, 100, 3, 10)
			rec := &recorder{}
			s := scraper.New(newPool(t, d, 4), scraper.Options{Strategy: strategy}, rec, nil)

			res, err := s.Scan(context.Background(), tasks, 4)
			require.NoError(t, err)

			assert.Equal(t, 100, res.Total)
			assert.Equal(t, 100, res.ProcessedCount)
			assert.Equal(t, 3, res.WarningCount)
			assert.Equal(t, 0, res.FailedCount)
			assert.Equal(t, 0, res.SkippedCount)
			assert.Equal(t, 10, res.DuplicateCount)
			assert.Len(t, res.Candidates, 184)
			assert.False(t, res.Cancelled)

			seen := make(map[string]bool)
			for _, c := range res.Candidates {
				assert.False(t, seen[c.URL], "duplicate %s", c.URL)
				seen[c.URL] = true
				assert.Contains(t, c.URL, c.ProductID)
			}

			last := rec.last()
			assert.Equal(t, models.StageChecking, last.Stage)
			assert.Equal(t, 100, last.Current)
			assert.Equal(t, 100, last.ProgressPct)
			assert.Equal(t, "Found 184 unique images to download", last.Message)

			assert.EqualValues(t, 0, d.OpenPages.Load(), "every page must be closed")
			assert.LessOrEqual(t, int(d.Launches.Load()), 4)
		})
	}
}

func TestScanSuffixes(t *testing.T) {
	d := browsertest.NewDriver()
	id := productID(1234)
	url := productURL(id)
	d.AddPage(url,
		cdn+"/0"+id+"_red.jpg",
		cdn+"/logo.png",
		cdn+"/"+id+".jpg")
	s := scraper.New(newPool(t, d, 1), scraper.Options{}, nil, nil)

	res, err := s.Scan(context.Background(), []models.ProductTask{{ID: id, URL: url}}, 1)
	require.NoError(t, err)

	require.Len(t, res.Candidates, 2)
	assert.Equal(t, "red", res.Candidates[0].Suffix)
	assert.Equal(t, "2", res.Candidates[1].Suffix)
}

func TestScanIsolatesFailures(t *testing.T) {
	d := browsertest.NewDriver()
	tasks := catalog(d, 10, 0, 0)
	// Two products whose pages cannot be opened.
	tasks = append(tasks,
		models.ProductTask{ID: productID(901), URL: productURL(productID(901))},
		models.ProductTask{ID: productID(902), URL: productURL(productID(902))},
	)
	s := scraper.New(newPool(t, d, 3), scraper.Options{}, nil, nil)

	res, err := s.Scan(context.Background(), tasks, 3)
	require.NoError(t, err)

	assert.Equal(t, 12, res.ProcessedCount)
	assert.Equal(t, 2, res.FailedCount)
	assert.Len(t, res.Candidates, 20)
	assert.EqualValues(t, 0, d.OpenPages.Load())
}

func TestScanEmptyTaskList(t *testing.T) {
	d := browsertest.NewDriver()
	rec := &recorder{}
	s := scraper.New(newPool(t, d, 2), scraper.Options{}, rec, nil)

	res, err := s.Scan(context.Background(), nil, 4)
	require.NoError(t, err)
	assert.Empty(t, res.Candidates)
	assert.Zero(t, res.Total)
	assert.EqualValues(t, 0, d.Launches.Load())
	assert.Equal(t, "Checking images for 0 products...", rec.last().Message)
}

func TestScanStopsBetweenTasksOnCancel(t *testing.T) {
	d := browsertest.NewDriver()
	tasks := catalog(d, 20, 0, 0)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sink := progress.SinkFunc(func(e models.ProgressEvent) {
		if e.Current == 5 {
			cancel()
		}
	})
	s := scraper.New(newPool(t, d, 1), scraper.Options{}, sink, nil)

	res, err := s.Scan(ctx, tasks, 1)
	require.NoError(t, err)

	assert.True(t, res.Cancelled)
	assert.Equal(t, 5, res.ProcessedCount)
	assert.Equal(t, 15, res.SkippedCount)
	assert.Len(t, res.Candidates, 10)
	assert.EqualValues(t, 0, d.OpenPages.Load())
}

func TestScanCancelAfterLastTaskIsComplete(t *testing.T) {
	d := browsertest.NewDriver()
	tasks := catalog(d, 4, 0, 0)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sink := progress.SinkFunc(func(e models.ProgressEvent) {
		if e.Total > 0 && e.Current == e.Total {
			cancel()
		}
	})
	s := scraper.New(newPool(t, d, 1), scraper.Options{}, sink, nil)

	res, err := s.Scan(ctx, tasks, 1)
	require.NoError(t, err)

	assert.Error(t, ctx.Err())
	assert.False(t, res.Cancelled, "every task was visited")
	assert.Equal(t, 4, res.ProcessedCount)
	assert.Equal(t, 0, res.SkippedCount)
	assert.Len(t, res.Candidates, 8)
}

func TestScanReportsSessionCreationFailure(t *testing.T) {
	d := browsertest.NewDriver()
	tasks := catalog(d, 4, 0, 0)
	d.FailLaunches(1)
	s := scraper.New(newPool(t, d, 1), scraper.Options{}, nil, nil)

	res, err := s.Scan(context.Background(), tasks, 1)

	var sce *models.SessionCreationError
	require.True(t, errors.As(err, &sce), "got %v", err)
	require.NotNil(t, res)
	assert.Equal(t, 0, res.ProcessedCount)
	assert.Equal(t, 4, res.SkippedCount)
}
