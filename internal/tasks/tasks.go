package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/quoteajob/quoteajob/internal/apperr"
	"github.com/quoteajob/quoteajob/internal/auth"
	"github.com/quoteajob/quoteajob/internal/email"
	"github.com/quoteajob/quoteajob/internal/metrics"
	"github.com/quoteajob/quoteajob/internal/models"
	"github.com/quoteajob/quoteajob/internal/services"
)

// Task types.
const (
	TypeQuoteNotify  = "quote:notify"
	TypeEmailVerify  = "email:verify"
	TypeJobRecompute = "job:recompute"
)

// Queues.
const (
	QueueCritical = "critical"
	QueueDefault  = "default"
	QueueLow      = "low"
)

// --- Task Client (Enqueuing tasks) ---

// Enqueuer is the part of *asynq.Client used to queue tasks.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Client queues background work. It implements services.QuoteObserver,
// services.VerificationMailer and services.RecomputeScheduler.
type Client struct {
	enq Enqueuer
}

var (
	_ services.QuoteObserver      = (*Client)(nil)
	_ services.VerificationMailer = (*Client)(nil)
	_ services.RecomputeScheduler = (*Client)(nil)
)

func NewClient(enq Enqueuer) *Client {
	return &Client{enq: enq}
}

type QuoteNotifyPayload struct {
	JobID        string             `json:"job_id"`
	QuoteID      string             `json:"quote_id"`
	ProID        string             `json:"pro_id"`
	Amount       float64            `json:"amount"`
	Status       models.QuoteStatus `json:"status"`
	AverageQuote float64            `json:"average_quote"`
}

type EmailVerifyPayload struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Name   string `json:"name"`
}

type JobRecomputePayload struct {
	JobID string `json:"job_id"`
}

func (c *Client) enqueue(ctx context.Context, taskType string, payload interface{}, opts ...asynq.Option) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal %s payload: %w", taskType, err)
	}
	if _, err := c.enq.EnqueueContext(ctx, asynq.NewTask(taskType, b), opts...); err != nil {
		return fmt.Errorf("failed to enqueue %s: %w", taskType, err)
	}
	return nil
}

// QuoteSubmitted queues the job owner notification.
func (c *Client) QuoteSubmitted(ctx context.Context, job *models.Job, quote *models.Quote, average float64) error {
	return c.enqueue(ctx, TypeQuoteNotify, QuoteNotifyPayload{
		JobID:        job.ID,
		QuoteID:      quote.ID,
		ProID:        quote.ProID,
		Amount:       quote.Amount,
		Status:       quote.Status,
		AverageQuote: average,
	}, asynq.Queue(QueueDefault), asynq.MaxRetry(5))
}

func (c *Client) EnqueueVerificationEmail(ctx context.Context, userID, emailAddr, name string) error {
	return c.enqueue(ctx, TypeEmailVerify, EmailVerifyPayload{UserID: userID, Email: emailAddr, Name: name},
		asynq.Queue(QueueCritical), asynq.MaxRetry(10))
}

// EnqueueRecompute queues a job recompute. Requests for the same job within a minute collapse.
func (c *Client) EnqueueRecompute(ctx context.Context, jobID string) error {
	err := c.enqueue(ctx, TypeJobRecompute, JobRecomputePayload{JobID: jobID},
		asynq.Queue(QueueLow), asynq.Unique(time.Minute))
	if errors.Is(err, asynq.ErrDuplicateTask) {
		return nil
	}
	return err
}

// --- Task Server (Processing tasks) ---

type jobReader interface {
	GetJob(ctx context.Context, jobID string) (*models.Job, error)
}

type profileReader interface {
	GetProfile(ctx context.Context, userID string) (*models.User, error)
}

// ProcessorSettings carries the values used to render emails.
type ProcessorSettings struct {
	FromAddress    string
	AppName        string
	AppBaseURL     string
	JwtSecret      string
	EmailVerifyTTL time.Duration
}

// TaskProcessor handles the processing of tasks.
type TaskProcessor struct {
	settings     ProcessorSettings
	emailSender  email.Sender
	jobs         jobReader
	users        profileReader
	quoteService services.IQuoteService
	logger       *zap.Logger
}

func NewTaskProcessor(
	settings ProcessorSettings,
	emailSender email.Sender,
	jobs jobReader,
	users profileReader,
	quoteService services.IQuoteService,
	logger *zap.Logger,
) *TaskProcessor {
	return &TaskProcessor{
		settings:     settings,
		emailSender:  emailSender,
		jobs:         jobs,
		users:        users,
		quoteService: quoteService,
		logger:       logger,
	}
}

// SetupServer configures an Asynq server. The caller runs it with the processor's Mux.
func SetupServer(opt asynq.RedisClientOpt, logger *zap.Logger) *asynq.Server {
	return asynq.NewServer(
		opt,
		asynq.Config{
			Queues: map[string]int{
				QueueCritical: 6,
				QueueDefault:  3,
				QueueLow:      1,
			},
			Logger: logger.Sugar(),
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				logger.Error("task failed",
					zap.String("task_type", task.Type()),
					zap.ByteString("payload", task.Payload()),
					zap.Error(err),
				)
			}),
		},
	)
}

// Mux routes task types to their handlers.
func (p *TaskProcessor) Mux() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.Use(countTasks)
	mux.HandleFunc(TypeQuoteNotify, p.HandleQuoteNotifyTask)
	mux.HandleFunc(TypeEmailVerify, p.HandleEmailVerifyTask)
	mux.HandleFunc(TypeJobRecompute, p.HandleJobRecomputeTask)
	return mux
}

func countTasks(next asynq.Handler) asynq.Handler {
	return asynq.HandlerFunc(func(ctx context.Context, t *asynq.Task) error {
		err := next.ProcessTask(ctx, t)
		outcome := metrics.OutcomeOK
		switch {
		case errors.Is(err, asynq.SkipRetry):
			outcome = metrics.OutcomeRejected
		case err != nil:
			outcome = metrics.OutcomeError
		}
		metrics.TasksProcessed.WithLabelValues(t.Type(), outcome).Inc()
		return err
	})
}

// skipIfNotFound turns a NotFound error into a non-retryable one.
func skipIfNotFound(err error, what string) error {
	if errors.Is(err, apperr.ErrNotFound) {
		return fmt.Errorf("%s not found: %v: %w", what, err, asynq.SkipRetry)
	}
	return err
}

// --- Task Handlers ---

// HandleQuoteNotifyTask emails the job owner about a new quote.
func (p *TaskProcessor) HandleQuoteNotifyTask(ctx context.Context, t *asynq.Task) error {
	var payload QuoteNotifyPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal quote notify payload: %v: %w", err, asynq.SkipRetry)
	}

	job, err := p.jobs.GetJob(ctx, payload.JobID)
	if err != nil {
		return skipIfNotFound(err, "job")
	}
	owner, err := p.users.GetProfile(ctx, job.UserID)
	if err != nil {
		return skipIfNotFound(err, "job owner")
	}

	subject := fmt.Sprintf("%s %s", email.SubjectNewQuote, job.Title)
	body := fmt.Sprintf(
		"Hi %s,\n\nA professional quoted %.2f on \"%s\" (%s).\nThe average quote for this job is now %.2f.\n\nView it at %s/jobs/%s\n\n%s\n",
		owner.Name, payload.Amount, job.Title, payload.Status.Label(), payload.AverageQuote,
		p.settings.AppBaseURL, job.ID, p.settings.AppName,
	)
	to := []string{owner.Email}
	if err := p.emailSender.Send(ctx, to, subject, email.Compose(p.settings.FromAddress, to, subject, body)); err != nil {
		return fmt.Errorf("failed to send quote notification: %w", err)
	}
	p.logger.Info("quote notification sent", zap.String("job_id", job.ID), zap.String("quote_id", payload.QuoteID))
	return nil
}

// HandleEmailVerifyTask sends the verification link to a new account.
func (p *TaskProcessor) HandleEmailVerifyTask(ctx context.Context, t *asynq.Task) error {
	var payload EmailVerifyPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal email verify payload: %v: %w", err, asynq.SkipRetry)
	}
	if payload.UserID == "" || payload.Email == "" {
		return fmt.Errorf("email verify payload missing user or address: %w", asynq.SkipRetry)
	}

	token, err := auth.GenerateEmailVerificationToken(payload.UserID, p.settings.JwtSecret, p.settings.EmailVerifyTTL)
	if err != nil {
		return err
	}
	link := fmt.Sprintf("%s/auth/verify?token=%s", p.settings.AppBaseURL, url.QueryEscape(token))

	subject := fmt.Sprintf("%s for %s", email.SubjectVerifyEmail, p.settings.AppName)
	body := fmt.Sprintf("Hi %s,\n\nConfirm your email address to complete your profile:\n%s\n\nThe link expires in %s.\n\n%s\n",
		payload.Name, link, p.settings.EmailVerifyTTL, p.settings.AppName)
	to := []string{payload.Email}
	if err := p.emailSender.Send(ctx, to, subject, email.Compose(p.settings.FromAddress, to, subject, body)); err != nil {
		return fmt.Errorf("failed to send verification email: %w", err)
	}
	p.logger.Info("verification email sent", zap.String("user_id", payload.UserID))
	return nil
}

// HandleJobRecomputeTask reclassifies every quote of a job.
func (p *TaskProcessor) HandleJobRecomputeTask(ctx context.Context, t *asynq.Task) error {
	var payload JobRecomputePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal job recompute payload: %v: %w", err, asynq.SkipRetry)
	}
	if _, err := p.quoteService.RecomputeJob(ctx, payload.JobID); err != nil {
		if errors.Is(err, apperr.ErrInvariant) {
			return fmt.Errorf("job %s cannot be recomputed: %v: %w", payload.JobID, err, asynq.SkipRetry)
		}
		return skipIfNotFound(err, "job")
	}
	return nil
}
