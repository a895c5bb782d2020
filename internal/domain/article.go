package domain

import (
	"time"

	"github.com/google/uuid"
)

// Article is the core entity flowing through the ingestion pipeline.
// ID identifies the article within a single run (fingerprint index,
// duplicate reporting); storage identity is derived from URL and title.
type Article struct {
	ID          uuid.UUID
	Title       string
	URL         string
	Summary     string
	Content     string
	Source      string
	Category    string
	Keywords    string
	PublishedAt *time.Time
	CrawledAt   time.Time
}

// Body returns the text used for content similarity: full content when
// available, otherwise the summary.
func (a Article) Body() string {
	if a.Content != "" {
		return a.Content
	}
	return a.Summary
}

// FilterPolicy configures the freshness window applied after deduplication.
type FilterPolicy struct {
	MaxAgeDays int  `json:"max_age_days"`
	Enabled    bool `json:"enabled"`
}

// CutoffTime resolves the oldest admissible publication time.
func (p FilterPolicy) CutoffTime(now time.Time) time.Time {
	return now.AddDate(0, 0, -p.MaxAgeDays)
}

// SourceResult records the outcome of one adapter within one run.
type SourceResult struct {
	Source    string `json:"source"`
	Success   bool   `json:"success"`
	NewsCount int    `json:"news_count"`
	Message   string `json:"message"`
	Err       error  `json:"-"`
}

// RunReport aggregates one orchestration pass. It is immutable after the
// run completes and is handed to callers by value.
type RunReport struct {
	Status          string         `json:"status"`
	Message         string         `json:"message"`
	StartedAt       time.Time      `json:"started_at"`
	DurationSeconds float64        `json:"duration_seconds"`
	Results         []SourceResult `json:"results"`
	TotalFetched    int            `json:"total_fetched"`
	TotalAdmitted   int            `json:"total_admitted"`
	TotalPersisted  int            `json:"total_persisted"`
}

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// RunStats accumulates counters across runs for the status endpoint.
type RunStats struct {
	Runs              int `json:"runs"`
	TotalPersisted    int `json:"total_persisted"`
	SuccessfulFetches int `json:"successful_fetches"`
	FailedFetches     int `json:"failed_fetches"`
}
