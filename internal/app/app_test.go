package app

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ImageHarvester/internal/browser/browsertest"
	"ImageHarvester/internal/database"
	"ImageHarvester/internal/models"
	"ImageHarvester/pkg/config"
)

const (
	sampleURL = "https://shop.example.jp/shopdetail/000000000001/"
	cdn       = "https://makeshop-multi-images.akamaized.net/shop/shopimages"
)

func testConfig(t *testing.T, csv string) *config.Config {
	t.Helper()
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "products.csv")
	require.NoError(t, os.WriteFile(csvPath, []byte(csv), 0o644))

	cfg := config.Default()
	cfg.Scraper.Workers = "2"
	cfg.Storage.Path = filepath.Join(dir, "images")
	cfg.Storage.JournalDB = filepath.Join(dir, "runs.db")
	cfg.Input = config.InputConfig{File: csvPath, Encoding: "utf-8", IDField: "id", SampleURL: sampleURL}
	cfg.Browser.MaxInstances = 2
	return cfg
}

func addProduct(d *browsertest.Driver, id string, suffixes ...string) {
	var srcs []string
	for _, s := range suffixes {
		src := fmt.Sprintf("%s/%s_%s.jpg", cdn, id, s)
		srcs = append(srcs, src)
		d.AddImage(src, []byte("jpeg-"+s))
	}
	d.AddPage("https://shop.example.jp/shopdetail/"+id+"/", srcs...)
}

func TestRunAllDownloadsAndJournals(t *testing.T) {
	d := browsertest.NewDriver()
	addProduct(d, "000000000011", "a", "b")
	addProduct(d, "000000000012", "a")
	d.AddPage("https://shop.example.jp/shopdetail/000000000013/")

	cfg := testConfig(t, "id,name\n11,x\n\"12\",y\n13,z\n,blank\n")
	a, err := NewWithDriver(cfg, d)
	require.NoError(t, err)
	defer a.Close()

	rec, err := a.RunAll(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "shop.example.jp", rec.Domain)
	assert.Equal(t, "fake", rec.Driver)
	assert.Equal(t, 3, rec.Products)
	assert.Equal(t, 3, rec.Candidates)
	assert.Equal(t, 3, rec.Downloaded)
	assert.Equal(t, "All 3 images downloaded, organised in per-product folders", rec.StatusMessage)
	assert.FileExists(t, filepath.Join(cfg.Storage.Path, "shop.example.jp", "000000000011", "000000000011_b.jpg"))

	saved, err := a.Journal.ListRuns(database.RunFilters{})
	require.NoError(t, err)
	require.Len(t, saved, 1)
	assert.Equal(t, rec.ID, saved[0].ID)
	assert.Len(t, saved[0].Files, 3)
}

func TestRunAllNothingToDownload(t *testing.T) {
	d := browsertest.NewDriver()
	d.AddPage("https://shop.example.jp/shopdetail/000000000011/")

	a, err := NewWithDriver(testConfig(t, "id\n11\n"), d)
	require.NoError(t, err)
	defer a.Close()

	rec, err := a.RunAll(context.Background())
	assert.True(t, errors.Is(err, ErrNothingToDownload))
	assert.Contains(t, rec.StatusMessage, "no images found")
}

func TestRunAllStructuralError(t *testing.T) {
	d := browsertest.NewDriver()
	a, err := NewWithDriver(testConfig(t, "sku\n11\n"), d)
	require.NoError(t, err)
	defer a.Close()

	_, err = a.RunAll(context.Background())
	assert.True(t, models.IsFatal(err))
	assert.EqualValues(t, 0, d.Launches.Load(), "no session is started for bad input")
}

func TestRunCheck(t *testing.T) {
	d := browsertest.NewDriver()
	addProduct(d, "000000000011", "a", "b")

	a, err := NewWithDriver(testConfig(t, "id\n11\n"), d)
	require.NoError(t, err)
	defer a.Close()

	res, err := a.RunCheck(context.Background())
	require.NoError(t, err)
	assert.Len(t, res.Candidates, 2)
	assert.Equal(t, 1, res.ProcessedCount)
}

func TestDownloadSingle(t *testing.T) {
	d := browsertest.NewDriver()
	url := cdn + "/000000000042_top.jpg"
	d.AddImage(url, []byte("img"))

	a, err := NewWithDriver(testConfig(t, "id\n"), d)
	require.NoError(t, err)
	defer a.Close()

	path, err := a.DownloadSingle(context.Background(), models.ImageCandidate{URL: url, ProductID: "000000000042", Suffix: "top"})
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(path, filepath.Join("000000000042", "000000000042_top.jpg")))

	_, err = a.DownloadSingle(context.Background(), models.ImageCandidate{URL: cdn + "/missing.jpg", ProductID: "000000000042", Suffix: "x"})
	assert.Error(t, err)
}

func TestSummarize(t *testing.T) {
	assert.Equal(t, "Download cancelled. 4 images were downloaded",
		Summarize(&models.DownloadResult{Total: 10, SuccessCount: 4, SkippedCount: 6, Cancelled: true}))
	assert.Equal(t, "Downloaded 8 images, 2 failed; images are organised in per-product folders",
		Summarize(&models.DownloadResult{Total: 10, SuccessCount: 8, FailureCount: 2}))
}

func TestSetupLogger(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, SetupLogger(config.LoggingConfig{Level: "warn"}, &buf))
	assert.Error(t, SetupLogger(config.LoggingConfig{Level: "loud"}, &buf))
}
