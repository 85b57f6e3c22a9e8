package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

// ProductTask is one product page to visit. ID is the zero-padded 12-digit product id.
type ProductTask struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// ImageCandidate is an image discovered on a product page, pending download.
type ImageCandidate struct {
	URL       string `json:"url"`
	ProductID string `json:"productId"`
	Suffix    string `json:"suffix"`
}

// ScanResult is the output of the checking stage.
type ScanResult struct {
	Candidates     []ImageCandidate
	Total          int
	ProcessedCount int
	FailedCount    int
	WarningCount   int // pages with no matching images
	SkippedCount   int // tasks never started because the run was cancelled
	DuplicateCount int
	Cancelled      bool
}

// DownloadResult aggregates the downloading stage.
// SuccessCount + FailureCount + SkippedCount always equals Total.
type DownloadResult struct {
	Total        int
	SuccessCount int
	FailureCount int
	SkippedCount int
	Bytes        int64
	Cancelled    bool
	Files        JSONStringSlice
}

// RunRecord is one finished run as kept in the journal.
type RunRecord struct {
	ID            string          `db:"id" json:"id"`
	Domain        string          `db:"domain" json:"domain"`
	SampleURL     string          `db:"sample_url" json:"sampleUrl"`
	Driver        string          `db:"driver" json:"driver"`
	Products      int             `db:"products" json:"products"`
	Candidates    int             `db:"candidates" json:"candidates"`
	Downloaded    int             `db:"downloaded" json:"downloaded"`
	Failed        int             `db:"failed" json:"failed"`
	Skipped       int             `db:"skipped" json:"skipped"`
	Cancelled     bool            `db:"cancelled" json:"cancelled"`
	Files         JSONStringSlice `db:"files" json:"files"`
	StartedAt     time.Time       `db:"started_at" json:"startedAt"`
	FinishedAt    time.Time       `db:"finished_at" json:"finishedAt"`
	StatusMessage string          `db:"status_message" json:"statusMessage"`
}

// JSONStringSlice is a custom type to handle JSON serialization/deserialization for []string
type JSONStringSlice []string

// Value implements the driver.Valuer interface to convert []string to JSON for database storage
func (j JSONStringSlice) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	b, err := json.Marshal(j)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements the sql.Scanner interface to convert JSON from database to []string
func (j *JSONStringSlice) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}
	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return errors.New("unsupported type for JSONStringSlice")
	}
	return json.Unmarshal(bytes, j)
}
