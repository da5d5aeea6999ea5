package models

import (
	"time"
)

// JobStatus is the lifecycle state of a posted job.
type JobStatus string

const (
	JobStatusOpen       JobStatus = "OPEN"
	JobStatusInProgress JobStatus = "IN_PROGRESS"
	JobStatusCompleted  JobStatus = "COMPLETED"
	JobStatusCancelled  JobStatus = "CANCELLED"
)

// Valid reports whether s is a known job status.
func (s JobStatus) Valid() bool {
	switch s {
	case JobStatusOpen, JobStatusInProgress, JobStatusCompleted, JobStatusCancelled:
		return true
	}
	return false
}

// Job represents a task posted by a user seeking quotes.
type Job struct {
	ID          string    `bson:"_id" json:"id"`
	UserID      string    `bson:"user_id" json:"user_id"`
	Title       string    `bson:"title" json:"title"`
	Description string    `bson:"description" json:"description"`
	Category    string    `bson:"category" json:"category"`
	Location    string    `bson:"location" json:"location"`
	Budget      *float64  `bson:"budget,omitempty" json:"budget,omitempty"`
	Status      JobStatus `bson:"status" json:"status"`
	// AverageQuote is nil until the first quote lands and is only ever replaced wholesale
	// by the quote recompute.
	AverageQuote *float64  `bson:"average_quote,omitempty" json:"average_quote"`
	QuoteVersion int64     `bson:"quote_version" json:"-"`
	CreatedAt    time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt    time.Time `bson:"updated_at" json:"updated_at"`
}

// JobUpdate carries the owner-editable job fields. Nil fields are left untouched.
type JobUpdate struct {
	Title       *string    `json:"title"`
	Description *string    `json:"description"`
	Category    *string    `json:"category"`
	Location    *string    `json:"location"`
	Budget      *float64   `json:"budget"`
	Status      *JobStatus `json:"status"`
}

// JobFilter narrows job listings.
type JobFilter struct {
	Category string
	Location string // case-insensitive substring
	Page     int    // 1-based
	Limit    int    // 0 means no limit
}

// JobSummary is a job row as returned by listings.
type JobSummary struct {
	Job
	Owner      *UserSummary `json:"owner,omitempty"`
	QuoteCount int          `json:"quote_count"`
}

// JobDetail is a job with its owner and every quote.
type JobDetail struct {
	Job
	Owner      *UserSummary    `json:"owner,omitempty"`
	Quotes     []QuoteWithUser `json:"quotes"`
	QuoteCount int             `json:"quote_count"`
}

// Pagination describes a page of results.
type Pagination struct {
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
	Total int64 `json:"total"`
	Pages int64 `json:"pages"`
}
