// Package store persists jobs, quotes, users and subscriptions.
//
// Quote writes for a job go through RunInJobTx, which runs the duplicate check and the
// average/status recompute as one atomic unit per job. Units for the same job serialize and
// see every quote committed before them; units for different jobs never wait on each other.
package store

import (
	"context"
	"time"

	"github.com/quoteajob/quoteajob/internal/models"
)

// QuoteTx is the view of the store available inside a job unit of work.
type QuoteTx interface {
	// GetJobWithQuotes returns the job and all of its quotes, oldest first.
	GetJobWithQuotes(ctx context.Context, jobID string) (*models.Job, []models.Quote, error)
	// InsertQuote fails with a Conflict error if the (job, pro) pair already quoted.
	InsertQuote(ctx context.Context, q *models.Quote) error
	UpdateJobAverage(ctx context.Context, jobID string, average float64) error
	UpdateQuoteStatuses(ctx context.Context, statuses map[string]models.QuoteStatus) error
}

// JobTxRunner runs fn atomically against a single job. A NotFound error is returned
// without calling fn when the job does not exist. Any error from fn discards every write
// fn made.
type JobTxRunner interface {
	RunInJobTx(ctx context.Context, jobID string, fn func(ctx context.Context, tx QuoteTx) error) error
}

type JobStore interface {
	CreateJob(ctx context.Context, job *models.Job) error
	GetJob(ctx context.Context, jobID string) (*models.Job, error)
	// GetJobWithQuotes returns the job and its quotes, newest first.
	GetJobWithQuotes(ctx context.Context, jobID string) (*models.Job, []models.Quote, error)
	ListJobs(ctx context.Context, filter models.JobFilter) ([]models.Job, int64, error)
	UpdateJob(ctx context.Context, jobID string, upd models.JobUpdate) (*models.Job, error)
	// DeleteJob removes the job and its quotes.
	DeleteJob(ctx context.Context, jobID string) error
	CountJobs(ctx context.Context) (int64, error)
}

type QuoteStore interface {
	// ListQuotes returns matching quotes, newest first.
	ListQuotes(ctx context.Context, filter models.QuoteFilter) ([]models.Quote, error)
	CountQuotesByJob(ctx context.Context, jobIDs []string) (map[string]int, error)
	CountQuotes(ctx context.Context) (int64, error)
	// AverageQuoteAmount is the mean over every quote, 0 when there are none.
	AverageQuoteAmount(ctx context.Context) (float64, error)
}

type UserStore interface {
	// CreateUser fails with a Conflict error when the email is taken.
	CreateUser(ctx context.Context, u *models.User) error
	GetProfile(ctx context.Context, userID string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUsers(ctx context.Context, userIDs []string) (map[string]*models.User, error)
	UpdateProfileFields(ctx context.Context, userID string, fields models.ProfileFields) (*models.User, error)
	SetInsuranceDoc(ctx context.Context, userID, objectKey string) (*models.User, error)
	MarkEmailVerified(ctx context.Context, userID string, at time.Time) (*models.User, error)
	UpdateProfileDerivedScores(ctx context.Context, userID string, trustScore, profileCompletion int) error
	SetSubscribed(ctx context.Context, userID string, subscribed bool) error
	CountUsers(ctx context.Context, filter models.UserFilter) (int64, error)
}

type SubscriptionStore interface {
	GetSubscriptionByCustomer(ctx context.Context, customerID string) (*models.Subscription, error)
	// ApplySubscriptionState writes sub unless the stored record already reflects a newer
	// provider event. A record is only created when sub.UserID is set. It reports whether
	// the write happened.
	ApplySubscriptionState(ctx context.Context, sub *models.Subscription) (bool, error)
	IsEventProcessed(ctx context.Context, eventID string) (bool, error)
	MarkEventProcessed(ctx context.Context, ev *models.ProcessedEvent) error
}

// Store is the full storage contract.
type Store interface {
	JobTxRunner
	JobStore
	QuoteStore
	UserStore
	SubscriptionStore
}
