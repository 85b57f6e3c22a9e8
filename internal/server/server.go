// Package server exposes the run journal and metrics over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"ImageHarvester/internal/database"
	"ImageHarvester/internal/metrics"
	"ImageHarvester/internal/models"
)

// Journal is the read side of the run journal.
type Journal interface {
	CountRuns(filters database.RunFilters) (int, error)
	ListRuns(filters database.RunFilters) ([]models.RunRecord, error)
	GetRun(id string) (*models.RunRecord, error)
}

// Pagination describes the page returned by /runs.
type Pagination struct {
	TotalItems  int `json:"totalItems"`
	TotalPages  int `json:"totalPages"`
	CurrentPage int `json:"currentPage"`
}

// RunsResponse is the body of GET /runs.
type RunsResponse struct {
	Data       []models.RunRecord `json:"data"`
	Pagination Pagination         `json:"pagination"`
}

// NewHandler routes /runs, /runs/{id} and /metrics. Either dependency may be
// nil, in which case its routes are not registered.
func NewHandler(journal Journal, m *metrics.Metrics) http.Handler {
	mux := http.NewServeMux()
	if journal != nil {
		mux.HandleFunc("GET /runs", runsHandler(journal))
		mux.HandleFunc("GET /runs/{id}", runHandler(journal))
	}
	if m != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{}))
	}
	return mux
}

// Start serves h on addr until ctx is cancelled.
func Start(ctx context.Context, addr string, h http.Handler) error {
	srv := &http.Server{Addr: addr, Handler: h, ReadHeaderTimeout: 10 * time.Second}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("Starting API server")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		log.Info().Msg("Shutting down API server")
		return srv.Shutdown(shutdownCtx)
	}
}

func runsHandler(journal Journal) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		queryParams := r.URL.Query()
		page, _ := strconv.Atoi(queryParams.Get("page"))
		if page < 1 {
			page = 1
		}
		limit, _ := strconv.Atoi(queryParams.Get("limit"))
		if limit < 1 {
			limit = 20
		}
		filters := database.RunFilters{
			Domain: queryParams.Get("domain"),
			Limit:  limit,
			Offset: (page - 1) * limit,
		}

		total, err := journal.CountRuns(filters)
		if err != nil {
			log.Error().Err(err).Msg("Failed to count runs")
			http.Error(w, "Failed to count runs", http.StatusInternalServerError)
			return
		}

		runs, err := journal.ListRuns(filters)
		if err != nil {
			log.Error().Err(err).Msg("Failed to list runs")
			http.Error(w, "Failed to get runs", http.StatusInternalServerError)
			return
		}
		if runs == nil {
			runs = []models.RunRecord{}
		}

		writeJSON(w, RunsResponse{
			Data: runs,
			Pagination: Pagination{
				TotalItems:  total,
				TotalPages:  int(math.Ceil(float64(total) / float64(limit))),
				CurrentPage: page,
			},
		})
	}
}

func runHandler(journal Journal) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		run, err := journal.GetRun(r.PathValue("id"))
		if errors.Is(err, database.ErrRunNotFound) {
			http.Error(w, "Run not found", http.StatusNotFound)
			return
		}
		if err != nil {
			log.Error().Err(err).Msg("Failed to get run")
			http.Error(w, "Failed to get run", http.StatusInternalServerError)
			return
		}
		writeJSON(w, run)
	}
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}
