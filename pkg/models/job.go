package models

import (
	"fmt"
	"time"
)

// JobStatus represents the state of a remote crawl or batch scrape job.
type JobStatus string

const (
	JobStatusQueued    JobStatus = "queued"
	JobStatusScraping  JobStatus = "scraping" // wire name for the running state
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

// IsTerminal reports whether no further progress will occur for this status.
func (s JobStatus) IsTerminal() bool {
	switch s {
	case JobStatusCompleted, JobStatusFailed, JobStatusCancelled:
		return true
	}
	return false
}

// WatchKind selects which job family an id belongs to. The service exposes
// crawl jobs and batch scrape jobs on separate endpoint prefixes but with
// identical status and streaming semantics.
type WatchKind string

const (
	WatchKindCrawl WatchKind = "crawl"
	WatchKindBatch WatchKind = "batch"
)

// PathPrefix returns the endpoint prefix for this job kind.
func (k WatchKind) PathPrefix() (string, error) {
	switch k {
	case WatchKindCrawl:
		return "crawl", nil
	case WatchKindBatch:
		return "batch/scrape", nil
	}
	return "", fmt.Errorf("unknown watch kind: %q", k)
}

// JobSnapshot is a point-in-time description of job progress. Snapshots are
// value types: they are built once and never mutated after being handed to a
// consumer. Within one watch session Completed is non-decreasing and
// Documents is non-shrinking; a terminal snapshot is always the last one.
type JobSnapshot struct {
	Status      JobStatus  `json:"status"`
	Completed   int        `json:"completed"`
	Total       int        `json:"total"`
	CreditsUsed int        `json:"credits_used,omitempty"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
	// Next is an opaque pagination token; non-empty means more result
	// pages exist upstream.
	Next      string     `json:"next,omitempty"`
	Documents []Document `json:"documents"`
}

// StatusResponse is the wire shape of the job status endpoint.
type StatusResponse struct {
	Success     bool             `json:"success"`
	Status      string           `json:"status"`
	Completed   int              `json:"completed"`
	Total       int              `json:"total"`
	CreditsUsed int              `json:"creditsUsed"`
	ExpiresAt   string           `json:"expiresAt"`
	Next        string           `json:"next"`
	Error       string           `json:"error"`
	Data        []map[string]any `json:"data"`
}

// ExpiresAtTime parses the expiresAt field, returning nil when absent or
// unparseable.
func (r *StatusResponse) ExpiresAtTime() *time.Time {
	if r.ExpiresAt == "" {
		return nil
	}
	if t, err := time.Parse(time.RFC3339, r.ExpiresAt); err == nil {
		return &t
	}
	return nil
}
