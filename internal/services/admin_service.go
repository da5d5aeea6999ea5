package services

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/quoteajob/quoteajob/internal/models"
)

// RecomputeScheduler queues an asynchronous job recompute.
type RecomputeScheduler interface {
	EnqueueRecompute(ctx context.Context, jobID string) error
}

// AdminJobRow is a job line on the admin dashboard.
type AdminJobRow struct {
	ID         string           `json:"id"`
	Title      string           `json:"title"`
	Category   string           `json:"category"`
	Status     models.JobStatus `json:"status"`
	CreatedAt  time.Time        `json:"created_at"`
	QuoteCount int              `json:"quote_count"`
}

// IAdminService defines the administrator dashboard operations.
type IAdminService interface {
	Stats(ctx context.Context) (*models.AdminStats, error)
	ListJobs(ctx context.Context) ([]AdminJobRow, error)
	RequestRecompute(ctx context.Context, jobID string) error
}

type adminStorage interface {
	CountUsers(ctx context.Context, filter models.UserFilter) (int64, error)
	CountJobs(ctx context.Context) (int64, error)
	CountQuotes(ctx context.Context) (int64, error)
	AverageQuoteAmount(ctx context.Context) (float64, error)
	ListJobs(ctx context.Context, filter models.JobFilter) ([]models.Job, int64, error)
	CountQuotesByJob(ctx context.Context, jobIDs []string) (map[string]int, error)
	GetJob(ctx context.Context, jobID string) (*models.Job, error)
}

type adminService struct {
	store     adminStorage
	scheduler RecomputeScheduler
	logger    *zap.Logger
}

// NewAdminService creates a new AdminService.
func NewAdminService(s adminStorage, scheduler RecomputeScheduler, logger *zap.Logger) IAdminService {
	return &adminService{store: s, scheduler: scheduler, logger: logger}
}

func (s *adminService) Stats(ctx context.Context) (*models.AdminStats, error) {
	var (
		stats models.AdminStats
		err   error
	)
	if stats.TotalUsers, err = s.store.CountUsers(ctx, models.UserFilter{}); err != nil {
		return nil, err
	}
	if stats.TotalJobs, err = s.store.CountJobs(ctx); err != nil {
		return nil, err
	}
	if stats.TotalQuotes, err = s.store.CountQuotes(ctx); err != nil {
		return nil, err
	}
	subscribed := true
	if stats.ActivePros, err = s.store.CountUsers(ctx, models.UserFilter{Role: models.RolePro, Subscribed: &subscribed}); err != nil {
		return nil, err
	}
	if stats.AverageQuoteValue, err = s.store.AverageQuoteAmount(ctx); err != nil {
		return nil, err
	}
	return &stats, nil
}

func (s *adminService) ListJobs(ctx context.Context) ([]AdminJobRow, error) {
	jobs, _, err := s.store.ListJobs(ctx, models.JobFilter{})
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(jobs))
	for _, j := range jobs {
		ids = append(ids, j.ID)
	}
	counts, err := s.store.CountQuotesByJob(ctx, ids)
	if err != nil {
		return nil, err
	}
	rows := make([]AdminJobRow, 0, len(jobs))
	for _, j := range jobs {
		rows = append(rows, AdminJobRow{
			ID:         j.ID,
			Title:      j.Title,
			Category:   j.Category,
			Status:     j.Status,
			CreatedAt:  j.CreatedAt,
			QuoteCount: counts[j.ID],
		})
	}
	return rows, nil
}

func (s *adminService) RequestRecompute(ctx context.Context, jobID string) error {
	if _, err := s.store.GetJob(ctx, jobID); err != nil {
		return err
	}
	if err := s.scheduler.EnqueueRecompute(ctx, jobID); err != nil {
		return err
	}
	s.logger.Info("job recompute requested", zap.String("job_id", jobID))
	return nil
}
