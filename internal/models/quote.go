package models

import (
	"time"
)

// QuoteStatus classifies a quote against the job's average quote.
type QuoteStatus string

const (
	QuoteStatusLower      QuoteStatus = "LOWER"
	QuoteStatusAboutRight QuoteStatus = "ABOUT_RIGHT"
	QuoteStatusHigher     QuoteStatus = "HIGHER"
)

// Label returns the human readable form shown next to a quote.
func (s QuoteStatus) Label() string {
	switch s {
	case QuoteStatusLower:
		return "Lower than average"
	case QuoteStatusAboutRight:
		return "About right"
	case QuoteStatusHigher:
		return "Higher than average"
	}
	return "Unknown"
}

// Color returns the display color for the status.
func (s QuoteStatus) Color() string {
	switch s {
	case QuoteStatusLower:
		return "green"
	case QuoteStatusAboutRight:
		return "blue"
	case QuoteStatusHigher:
		return "red"
	}
	return "gray"
}

// Quote is a professional's priced offer against a job.
// A (JobID, ProID) pair is unique.
type Quote struct {
	ID        string      `bson:"_id" json:"id"`
	JobID     string      `bson:"job_id" json:"job_id"`
	ProID     string      `bson:"pro_id" json:"pro_id"`
	Amount    float64     `bson:"amount" json:"amount"`
	Comment   string      `bson:"comment,omitempty" json:"comment,omitempty"`
	Status    QuoteStatus `bson:"status" json:"status"`
	CreatedAt time.Time   `bson:"created_at" json:"created_at"`
}

// QuoteFilter narrows quote listings. Empty fields match everything.
type QuoteFilter struct {
	JobID string
	ProID string
}

// JobRef is the short job projection embedded in quote listings.
type JobRef struct {
	ID           string   `json:"id"`
	Title        string   `json:"title"`
	AverageQuote *float64 `json:"average_quote"`
}

// QuoteWithUser is a quote enriched for display.
type QuoteWithUser struct {
	Quote
	StatusLabel string       `json:"status_label"`
	Pro         *UserSummary `json:"pro,omitempty"`
	Job         *JobRef      `json:"job,omitempty"`
}
