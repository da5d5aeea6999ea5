package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/quoteajob/quoteajob/internal/apperr"
	"github.com/quoteajob/quoteajob/internal/metrics"
	"github.com/quoteajob/quoteajob/internal/models"
	"github.com/quoteajob/quoteajob/internal/scoring"
	"github.com/quoteajob/quoteajob/internal/store"
)

// QuoteObserver is told about every quote after it commits. Errors are logged only.
type QuoteObserver interface {
	QuoteSubmitted(ctx context.Context, job *models.Job, quote *models.Quote, average float64) error
}

// SubmitResult is the committed quote together with the job's new average.
type SubmitResult struct {
	Quote        models.Quote `json:"quote"`
	StatusLabel  string       `json:"status_label"`
	AverageQuote float64      `json:"average_quote"`
}

// IQuoteService defines quote submission and the job average recompute.
type IQuoteService interface {
	SubmitQuote(ctx context.Context, proID, jobID string, amount float64, comment string) (*SubmitResult, error)
	ListQuotes(ctx context.Context, filter models.QuoteFilter) ([]models.QuoteWithUser, error)
	// RecomputeJob reclassifies an existing quote set. Running it twice changes nothing.
	RecomputeJob(ctx context.Context, jobID string) (*scoring.Result, error)
}

// quoteStorage is the slice of store.Store the quote service needs.
type quoteStorage interface {
	store.JobTxRunner
	store.QuoteStore
	GetJob(ctx context.Context, jobID string) (*models.Job, error)
	GetProfile(ctx context.Context, userID string) (*models.User, error)
	GetUsers(ctx context.Context, userIDs []string) (map[string]*models.User, error)
}

type quoteService struct {
	store     quoteStorage
	observers []QuoteObserver
	logger    *zap.Logger
	now       func() time.Time
}

// NewQuoteService creates a new QuoteService. Observers run in order after each commit.
func NewQuoteService(s quoteStorage, logger *zap.Logger, observers ...QuoteObserver) IQuoteService {
	return &quoteService{store: s, observers: observers, logger: logger, now: time.Now}
}

func (s *quoteService) SubmitQuote(ctx context.Context, proID, jobID string, amount float64, comment string) (*SubmitResult, error) {
	res, err := s.submit(ctx, proID, jobID, amount, comment)
	metrics.QuoteSubmissions.WithLabelValues(submitOutcome(err)).Inc()
	return res, err
}

func (s *quoteService) submit(ctx context.Context, proID, jobID string, amount float64, comment string) (*SubmitResult, error) {
	if jobID == "" {
		return nil, apperr.InvalidInput("Missing required fields")
	}
	pro, err := s.store.GetProfile(ctx, proID)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return nil, apperr.PermissionDenied("Only subscribed professionals can submit quotes")
		}
		return nil, err
	}
	if !pro.CanSubmitQuotes() {
		return nil, apperr.PermissionDenied("Only subscribed professionals can submit quotes")
	}
	if err := scoring.ValidateAmount(amount); err != nil {
		return nil, err
	}

	quote := models.Quote{
		ID:        uuid.NewString(),
		JobID:     jobID,
		ProID:     proID,
		Amount:    amount,
		Comment:   comment,
		Status:    models.QuoteStatusAboutRight,
		CreatedAt: s.now().UTC(),
	}

	var (
		job    *models.Job
		result *scoring.Result
	)
	start := time.Now()
	err = s.store.RunInJobTx(ctx, jobID, func(ctx context.Context, tx store.QuoteTx) error {
		var existing []models.Quote
		var err error
		job, existing, err = tx.GetJobWithQuotes(ctx, jobID)
		if err != nil {
			return err
		}
		for _, q := range existing {
			if q.ProID == proID {
				return apperr.Conflict("Quote already exists for this job")
			}
		}
		result, err = scoring.RecomputeJob(job, existing, quote)
		if err != nil {
			return err
		}
		if err := tx.InsertQuote(ctx, &quote); err != nil {
			return err
		}
		if err := tx.UpdateJobAverage(ctx, jobID, result.Average); err != nil {
			return err
		}
		return tx.UpdateQuoteStatuses(ctx, result.Statuses)
	})
	metrics.RecomputeDuration.WithLabelValues("submit").Observe(time.Since(start).Seconds())
	if err != nil {
		if apperr.KindOf(err) == apperr.KindInvariant {
			s.logger.Error("quote recompute violated an invariant",
				zap.String("job_id", jobID), zap.String("pro_id", proID), zap.Error(err))
		}
		return nil, err
	}

	quote.Status = result.Statuses[quote.ID]
	avg := result.Average
	job.AverageQuote = &avg
	for _, st := range result.Statuses {
		metrics.QuoteClassifications.WithLabelValues(string(st)).Inc()
	}
	s.logger.Info("quote submitted",
		zap.String("job_id", jobID),
		zap.String("pro_id", proID),
		zap.String("quote_id", quote.ID),
		zap.String("status", string(quote.Status)),
		zap.Float64("average_quote", avg),
	)

	s.notify(ctx, job, &quote, avg)

	return &SubmitResult{Quote: quote, StatusLabel: quote.Status.Label(), AverageQuote: avg}, nil
}

func (s *quoteService) notify(ctx context.Context, job *models.Job, quote *models.Quote, average float64) {
	for _, o := range s.observers {
		if err := o.QuoteSubmitted(ctx, job, quote, average); err != nil {
			s.logger.Warn("quote observer failed",
				zap.String("job_id", job.ID), zap.String("quote_id", quote.ID), zap.Error(err))
		}
	}
}

func submitOutcome(err error) string {
	if err == nil {
		return metrics.OutcomeOK
	}
	switch apperr.KindOf(err) {
	case apperr.KindConflict:
		return metrics.OutcomeConflict
	case apperr.KindInvalidInput, apperr.KindPermissionDenied, apperr.KindNotFound:
		return metrics.OutcomeRejected
	}
	return metrics.OutcomeError
}

func (s *quoteService) ListQuotes(ctx context.Context, filter models.QuoteFilter) ([]models.QuoteWithUser, error) {
	quotes, err := s.store.ListQuotes(ctx, filter)
	if err != nil {
		return nil, err
	}

	proIDs := make([]string, 0, len(quotes))
	jobs := make(map[string]*models.JobRef)
	for _, q := range quotes {
		proIDs = append(proIDs, q.ProID)
		if _, ok := jobs[q.JobID]; ok {
			continue
		}
		job, err := s.store.GetJob(ctx, q.JobID)
		if err != nil {
			if errors.Is(err, apperr.ErrNotFound) {
				jobs[q.JobID] = nil
				continue
			}
			return nil, err
		}
		jobs[q.JobID] = &models.JobRef{ID: job.ID, Title: job.Title, AverageQuote: job.AverageQuote}
	}
	pros, err := s.store.GetUsers(ctx, proIDs)
	if err != nil {
		return nil, err
	}

	out := make([]models.QuoteWithUser, 0, len(quotes))
	for _, q := range quotes {
		out = append(out, models.QuoteWithUser{
			Quote:       q,
			StatusLabel: q.Status.Label(),
			Pro:         pros[q.ProID].Summary(),
			Job:         jobs[q.JobID],
		})
	}
	return out, nil
}

func (s *quoteService) RecomputeJob(ctx context.Context, jobID string) (*scoring.Result, error) {
	var result *scoring.Result
	start := time.Now()
	err := s.store.RunInJobTx(ctx, jobID, func(ctx context.Context, tx store.QuoteTx) error {
		_, quotes, err := tx.GetJobWithQuotes(ctx, jobID)
		if err != nil {
			return err
		}
		if len(quotes) == 0 {
			result = &scoring.Result{Statuses: map[string]models.QuoteStatus{}}
			return nil
		}
		result, err = scoring.Reclassify(quotes)
		if err != nil {
			return err
		}
		if err := tx.UpdateJobAverage(ctx, jobID, result.Average); err != nil {
			return err
		}
		if changed := result.Changed(quotes); len(changed) > 0 {
			return tx.UpdateQuoteStatuses(ctx, changed)
		}
		return nil
	})
	metrics.RecomputeDuration.WithLabelValues("recompute").Observe(time.Since(start).Seconds())
	if err != nil {
		if apperr.KindOf(err) == apperr.KindInvariant {
			s.logger.Error("job recompute violated an invariant", zap.String("job_id", jobID), zap.Error(err))
		}
		return nil, fmt.Errorf("recompute job %s: %w", jobID, err)
	}
	s.logger.Info("job recomputed", zap.String("job_id", jobID), zap.Int("quotes", len(result.Statuses)))
	return result, nil
}
