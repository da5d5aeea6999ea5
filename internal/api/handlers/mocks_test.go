package handlers_test

import (
	"context"

	"github.com/stretchr/testify/mock"
	"github.com/stripe/stripe-go/v76"

	"github.com/quoteajob/quoteajob/internal/models"
	"github.com/quoteajob/quoteajob/internal/scoring"
	"github.com/quoteajob/quoteajob/internal/services"
)

// --- Mocks ---

// MockUserService
type MockUserService struct {
	mock.Mock
}

func (m *MockUserService) Register(ctx context.Context, in services.Registration) (*models.User, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserService) Authenticate(ctx context.Context, email, password string) (*services.Session, error) {
	args := m.Called(ctx, email, password)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.Session), args.Error(1)
}

func (m *MockUserService) VerifyEmail(ctx context.Context, token string) (*models.User, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

// MockJobService
type MockJobService struct {
	mock.Mock
}

func (m *MockJobService) ListJobs(ctx context.Context, filter models.JobFilter) (*services.JobPage, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.JobPage), args.Error(1)
}

func (m *MockJobService) CreateJob(ctx context.Context, ownerID string, in services.NewJob) (*models.Job, error) {
	args := m.Called(ctx, ownerID, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Job), args.Error(1)
}

func (m *MockJobService) GetJob(ctx context.Context, jobID string) (*models.JobDetail, error) {
	args := m.Called(ctx, jobID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.JobDetail), args.Error(1)
}

func (m *MockJobService) UpdateJob(ctx context.Context, jobID, callerID string, upd models.JobUpdate) (*models.Job, error) {
	args := m.Called(ctx, jobID, callerID, upd)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Job), args.Error(1)
}

func (m *MockJobService) DeleteJob(ctx context.Context, jobID, callerID string) error {
	args := m.Called(ctx, jobID, callerID)
	return args.Error(0)
}

// MockQuoteService
type MockQuoteService struct {
	mock.Mock
}

func (m *MockQuoteService) SubmitQuote(ctx context.Context, proID, jobID string, amount float64, comment string) (*services.SubmitResult, error) {
	args := m.Called(ctx, proID, jobID, amount, comment)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.SubmitResult), args.Error(1)
}

func (m *MockQuoteService) ListQuotes(ctx context.Context, filter models.QuoteFilter) ([]models.QuoteWithUser, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.QuoteWithUser), args.Error(1)
}

func (m *MockQuoteService) RecomputeJob(ctx context.Context, jobID string) (*scoring.Result, error) {
	args := m.Called(ctx, jobID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*scoring.Result), args.Error(1)
}

// MockProfileService
type MockProfileService struct {
	mock.Mock
}

func (m *MockProfileService) GetProfile(ctx context.Context, userID string) (*models.User, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockProfileService) UpdateProfile(ctx context.Context, userID string, fields models.ProfileFields) (*models.User, error) {
	args := m.Called(ctx, userID, fields)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockProfileService) RequestInsuranceUpload(ctx context.Context, userID, filename, contentType string) (*services.InsuranceUpload, error) {
	args := m.Called(ctx, userID, filename, contentType)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.InsuranceUpload), args.Error(1)
}

// MockSubscriptionService
type MockSubscriptionService struct {
	mock.Mock
}

func (m *MockSubscriptionService) HandleWebhook(ctx context.Context, payload []byte, signature string) (string, error) {
	args := m.Called(ctx, payload, signature)
	return args.String(0), args.Error(1)
}

func (m *MockSubscriptionService) ApplyEvent(ctx context.Context, event stripe.Event) (string, error) {
	args := m.Called(ctx, event)
	return args.String(0), args.Error(1)
}

// MockAdminService
type MockAdminService struct {
	mock.Mock
}

func (m *MockAdminService) Stats(ctx context.Context) (*models.AdminStats, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.AdminStats), args.Error(1)
}

func (m *MockAdminService) ListJobs(ctx context.Context) ([]services.AdminJobRow, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]services.AdminJobRow), args.Error(1)
}

func (m *MockAdminService) RequestRecompute(ctx context.Context, jobID string) error {
	args := m.Called(ctx, jobID)
	return args.Error(0)
}
