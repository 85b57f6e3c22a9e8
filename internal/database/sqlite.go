// Package database keeps a journal of finished runs in SQLite.
package database

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"

	"ImageHarvester/internal/models"
)

// ErrRunNotFound is returned by GetRun for an unknown id.
var ErrRunNotFound = errors.New("run not found")

// RunJournal wraps the journal connection.
type RunJournal struct {
	DB *sql.DB
}

// RunFilters narrows ListRuns. Zero values mean no filter.
type RunFilters struct {
	Domain string
	Limit  int
	Offset int
}

// InitDB opens the journal at path and creates its table.
func InitDB(path string) (*RunJournal, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}
	if err = db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("error pinging database: %w", err)
	}
	// One writer at a time; sqlite serialises anyway.
	db.SetMaxOpenConns(1)

	createRunsTableSQL := `
	CREATE TABLE IF NOT EXISTS runs (
		"id" TEXT NOT NULL PRIMARY KEY,
		"domain" TEXT,
		"sample_url" TEXT,
		"driver" TEXT,
		"products" INTEGER DEFAULT 0,
		"candidates" INTEGER DEFAULT 0,
		"downloaded" INTEGER DEFAULT 0,
		"failed" INTEGER DEFAULT 0,
		"skipped" INTEGER DEFAULT 0,
		"cancelled" BOOLEAN DEFAULT 0,
		"files" TEXT,
		"started_at" INTEGER,
		"finished_at" INTEGER,
		"status_message" TEXT
	);`
	if _, err = db.Exec(createRunsTableSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("error creating runs table: %w", err)
	}

	log.Debug().Str("path", path).Msg("Run journal initialized")
	return &RunJournal{DB: db}, nil
}

// Close closes the database connection.
func (repo *RunJournal) Close() error {
	return repo.DB.Close()
}

// SaveRun inserts a run or replaces the record with the same id.
func (repo *RunJournal) SaveRun(run models.RunRecord) error {
	query := `
	INSERT INTO runs (
		id, domain, sample_url, driver, products, candidates, downloaded,
		failed, skipped, cancelled, files, started_at, finished_at, status_message
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		candidates=excluded.candidates,
		downloaded=excluded.downloaded,
		failed=excluded.failed,
		skipped=excluded.skipped,
		cancelled=excluded.cancelled,
		files=excluded.files,
		finished_at=excluded.finished_at,
		status_message=excluded.status_message;
	`
	_, err := repo.DB.Exec(query,
		run.ID, run.Domain, run.SampleURL, run.Driver, run.Products, run.Candidates, run.Downloaded,
		run.Failed, run.Skipped, run.Cancelled, run.Files,
		toMillis(run.StartedAt), toMillis(run.FinishedAt), run.StatusMessage,
	)
	if err != nil {
		return fmt.Errorf("failed to save run %s: %w", run.ID, err)
	}
	return nil
}

const selectRuns = `SELECT id, domain, sample_url, driver, products, candidates, downloaded,
	failed, skipped, cancelled, files, started_at, finished_at, status_message FROM runs`

// GetRun returns one run by id.
func (repo *RunJournal) GetRun(id string) (*models.RunRecord, error) {
	row := repo.DB.QueryRow(selectRuns+" WHERE id = ?", id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, err
	}
	return run, nil
}

// CountRuns returns how many runs match the domain filter.
func (repo *RunJournal) CountRuns(filters RunFilters) (int, error) {
	query := "SELECT COUNT(*) FROM runs"
	var args []interface{}
	if filters.Domain != "" {
		query += " WHERE domain = ?"
		args = append(args, filters.Domain)
	}
	var n int
	if err := repo.DB.QueryRow(query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count runs: %w", err)
	}
	return n, nil
}

// ListRuns returns runs newest first.
func (repo *RunJournal) ListRuns(filters RunFilters) ([]models.RunRecord, error) {
	var args []interface{}
	var conditions []string

	query := selectRuns + " WHERE 1=1"
	if filters.Domain != "" {
		conditions = append(conditions, "domain = ?")
		args = append(args, filters.Domain)
	}
	if len(conditions) > 0 {
		query += " AND " + strings.Join(conditions, " AND ")
	}

	query += " ORDER BY started_at DESC"
	if filters.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filters.Limit)
		if filters.Offset > 0 {
			query += " OFFSET ?"
			args = append(args, filters.Offset)
		}
	}

	rows, err := repo.DB.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute runs query: %w", err)
	}
	defer rows.Close()

	var runs []models.RunRecord
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			log.Warn().Err(err).Msg("Error scanning run row")
			continue
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(s scanner) (*models.RunRecord, error) {
	var (
		r                   models.RunRecord
		started, finished   sql.NullInt64
		domain, sample, drv sql.NullString
		message             sql.NullString
	)
	err := s.Scan(&r.ID, &domain, &sample, &drv, &r.Products, &r.Candidates, &r.Downloaded,
		&r.Failed, &r.Skipped, &r.Cancelled, &r.Files, &started, &finished, &message)
	if err != nil {
		return nil, err
	}
	r.Domain, r.SampleURL, r.Driver, r.StatusMessage = domain.String, sample.String, drv.String, message.String
	r.StartedAt = fromMillis(started)
	r.FinishedAt = fromMillis(finished)
	return &r, nil
}

func toMillis(t time.Time) interface{} {
	if t.IsZero() {
		return nil
	}
	return t.UnixMilli()
}

func fromMillis(v sql.NullInt64) time.Time {
	if !v.Valid {
		return time.Time{}
	}
	return time.UnixMilli(v.Int64).UTC()
}
