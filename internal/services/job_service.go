package services

import (
	"context"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/quoteajob/quoteajob/internal/apperr"
	"github.com/quoteajob/quoteajob/internal/models"
	"github.com/quoteajob/quoteajob/internal/store"
)

const (
	DefaultPageLimit = 10
	MaxPageLimit     = 100
)

// NewJob carries the fields a user supplies when posting a job.
type NewJob struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Category    string   `json:"category"`
	Location    string   `json:"location"`
	Budget      *float64 `json:"budget"`
}

// JobPage is one page of the public job listing.
type JobPage struct {
	Jobs       []models.JobSummary `json:"jobs"`
	Pagination models.Pagination   `json:"pagination"`
}

// IJobService defines job posting and browsing operations.
type IJobService interface {
	ListJobs(ctx context.Context, filter models.JobFilter) (*JobPage, error)
	CreateJob(ctx context.Context, ownerID string, in NewJob) (*models.Job, error)
	GetJob(ctx context.Context, jobID string) (*models.JobDetail, error)
	UpdateJob(ctx context.Context, jobID, callerID string, upd models.JobUpdate) (*models.Job, error)
	DeleteJob(ctx context.Context, jobID, callerID string) error
}

type jobStorage interface {
	store.JobStore
	CountQuotesByJob(ctx context.Context, jobIDs []string) (map[string]int, error)
	GetUsers(ctx context.Context, userIDs []string) (map[string]*models.User, error)
}

type jobService struct {
	store  jobStorage
	logger *zap.Logger
}

// NewJobService creates a new JobService.
func NewJobService(s jobStorage, logger *zap.Logger) IJobService {
	return &jobService{store: s, logger: logger}
}

// NormalizePage applies the listing defaults: page 1, limit 10, limit capped at 100.
func NormalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = DefaultPageLimit
	}
	if limit > MaxPageLimit {
		limit = MaxPageLimit
	}
	return page, limit
}

func (s *jobService) ListJobs(ctx context.Context, filter models.JobFilter) (*JobPage, error) {
	filter.Page, filter.Limit = NormalizePage(filter.Page, filter.Limit)

	jobs, total, err := s.store.ListJobs(ctx, filter)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(jobs))
	owners := make([]string, 0, len(jobs))
	for _, j := range jobs {
		ids = append(ids, j.ID)
		owners = append(owners, j.UserID)
	}
	counts, err := s.store.CountQuotesByJob(ctx, ids)
	if err != nil {
		return nil, err
	}
	users, err := s.store.GetUsers(ctx, owners)
	if err != nil {
		return nil, err
	}

	out := make([]models.JobSummary, 0, len(jobs))
	for _, j := range jobs {
		out = append(out, models.JobSummary{Job: j, Owner: users[j.UserID].Summary(), QuoteCount: counts[j.ID]})
	}
	limit := int64(filter.Limit)
	return &JobPage{
		Jobs: out,
		Pagination: models.Pagination{
			Page:  filter.Page,
			Limit: filter.Limit,
			Total: total,
			Pages: (total + limit - 1) / limit,
		},
	}, nil
}

func validBudget(b *float64) bool {
	return b == nil || (!math.IsNaN(*b) && !math.IsInf(*b, 0) && *b > 0)
}

func (s *jobService) CreateJob(ctx context.Context, ownerID string, in NewJob) (*models.Job, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	in.Category = strings.TrimSpace(in.Category)
	in.Location = strings.TrimSpace(in.Location)
	if in.Title == "" || in.Description == "" || in.Category == "" || in.Location == "" {
		return nil, apperr.InvalidInput("Missing required fields")
	}
	if !validBudget(in.Budget) {
		return nil, apperr.InvalidInput("Budget must be greater than zero")
	}

	now := time.Now().UTC()
	job := &models.Job{
		ID:          uuid.NewString(),
		UserID:      ownerID,
		Title:       in.Title,
		Description: in.Description,
		Category:    in.Category,
		Location:    in.Location,
		Budget:      in.Budget,
		Status:      models.JobStatusOpen,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.CreateJob(ctx, job); err != nil {
		return nil, err
	}
	s.logger.Info("job created", zap.String("job_id", job.ID), zap.String("user_id", ownerID))
	return job, nil
}

func (s *jobService) GetJob(ctx context.Context, jobID string) (*models.JobDetail, error) {
	job, quotes, err := s.store.GetJobWithQuotes(ctx, jobID)
	if err != nil {
		return nil, err
	}

	ids := []string{job.UserID}
	for _, q := range quotes {
		ids = append(ids, q.ProID)
	}
	users, err := s.store.GetUsers(ctx, ids)
	if err != nil {
		return nil, err
	}

	detail := &models.JobDetail{
		Job:        *job,
		Owner:      users[job.UserID].Summary(),
		Quotes:     make([]models.QuoteWithUser, 0, len(quotes)),
		QuoteCount: len(quotes),
	}
	for _, q := range quotes {
		detail.Quotes = append(detail.Quotes, models.QuoteWithUser{
			Quote:       q,
			StatusLabel: q.Status.Label(),
			Pro:         users[q.ProID].Summary(),
		})
	}
	return detail, nil
}

// ownedJob loads the job and checks callerID owns it.
func (s *jobService) ownedJob(ctx context.Context, jobID, callerID string) (*models.Job, error) {
	job, err := s.store.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.UserID != callerID {
		return nil, apperr.PermissionDenied("Forbidden")
	}
	return job, nil
}

func (s *jobService) UpdateJob(ctx context.Context, jobID, callerID string, upd models.JobUpdate) (*models.Job, error) {
	if _, err := s.ownedJob(ctx, jobID, callerID); err != nil {
		return nil, err
	}
	if upd.Status != nil && !upd.Status.Valid() {
		return nil, apperr.InvalidInput("Invalid job status")
	}
	if !validBudget(upd.Budget) {
		return nil, apperr.InvalidInput("Budget must be greater than zero")
	}
	for _, f := range []*string{upd.Title, upd.Description, upd.Category, upd.Location} {
		if f != nil && strings.TrimSpace(*f) == "" {
			return nil, apperr.InvalidInput("Fields cannot be empty")
		}
	}
	job, err := s.store.UpdateJob(ctx, jobID, upd)
	if err != nil {
		return nil, err
	}
	s.logger.Info("job updated", zap.String("job_id", jobID))
	return job, nil
}

func (s *jobService) DeleteJob(ctx context.Context, jobID, callerID string) error {
	if _, err := s.ownedJob(ctx, jobID, callerID); err != nil {
		return err
	}
	if err := s.store.DeleteJob(ctx, jobID); err != nil {
		return err
	}
	s.logger.Info("job deleted", zap.String("job_id", jobID))
	return nil
}
