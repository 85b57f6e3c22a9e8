package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ImageHarvester/internal/database"
	"ImageHarvester/internal/metrics"
	"ImageHarvester/internal/models"
)

func newTestServer(t *testing.T) (*httptest.Server, *metrics.Metrics) {
	t.Helper()
	journal, err := database.InitDB(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { journal.Close() })

	base := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"r1", "r2", "r3"} {
		require.NoError(t, journal.SaveRun(models.RunRecord{
			ID:         id,
			Domain:     "shop.example.jp",
			Downloaded: i,
			StartedAt:  base.Add(time.Duration(i) * time.Minute),
		}))
	}

	m := metrics.New()
	srv := httptest.NewServer(NewHandler(journal, m))
	t.Cleanup(srv.Close)
	return srv, m
}

func TestRunsPagination(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/runs?page=2&limit=2")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json; charset=utf-8", resp.Header.Get("Content-Type"))

	var body RunsResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, Pagination{TotalItems: 3, TotalPages: 2, CurrentPage: 2}, body.Pagination)
	require.Len(t, body.Data, 1)
	assert.Equal(t, "r1", body.Data[0].ID)
}

func TestRunsEmptyDomain(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/runs?domain=other.jp")
	require.NoError(t, err)
	defer resp.Body.Close()

	var body RunsResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.NotNil(t, body.Data)
	assert.Empty(t, body.Data)
}

func TestRunByID(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/runs/r2")
	require.NoError(t, err)
	defer resp.Body.Close()
	var run models.RunRecord
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&run))
	assert.Equal(t, 1, run.Downloaded)

	resp, err = http.Get(srv.URL + "/runs/missing")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestMetricsEndpoint(t *testing.T) {
	srv, m := newTestServer(t)
	m.IncDownload("downloaded", 2048)

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `harvester_downloads_total{outcome="downloaded"} 1`)
}

func TestStartStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Start(ctx, "127.0.0.1:0", http.NotFoundHandler()) }()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
