package services

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/quoteajob/quoteajob/internal/models"
	"github.com/quoteajob/quoteajob/internal/store"
)

func seedUser(t *testing.T, s *store.MemoryStore, id string, role models.Role, subscribed bool) *models.User {
	t.Helper()
	u := &models.User{
		ID:           id,
		Name:         "User " + id,
		Email:        fmt.Sprintf("%s@example.com", id),
		Role:         role,
		IsSubscribed: subscribed,
		CreatedAt:    time.Now().UTC(),
	}
	require.NoError(t, s.CreateUser(context.Background(), u))
	return u
}

func seedJob(t *testing.T, s *store.MemoryStore, id, ownerID string, createdAt time.Time) *models.Job {
	t.Helper()
	j := &models.Job{
		ID:          id,
		UserID:      ownerID,
		Title:       "Job " + id,
		Description: "Fix it",
		Category:    "Plumbing",
		Location:    "London",
		Status:      models.JobStatusOpen,
		CreatedAt:   createdAt,
		UpdatedAt:   createdAt,
	}
	require.NoError(t, s.CreateJob(context.Background(), j))
	return j
}

type mockQuoteObserver struct {
	mock.Mock
}

func (m *mockQuoteObserver) QuoteSubmitted(ctx context.Context, job *models.Job, quote *models.Quote, average float64) error {
	args := m.Called(ctx, job, quote, average)
	return args.Error(0)
}

type mockVerificationMailer struct {
	mock.Mock
}

func (m *mockVerificationMailer) EnqueueVerificationEmail(ctx context.Context, userID, email, name string) error {
	args := m.Called(ctx, userID, email, name)
	return args.Error(0)
}

type mockRecomputeScheduler struct {
	mock.Mock
}

func (m *mockRecomputeScheduler) EnqueueRecompute(ctx context.Context, jobID string) error {
	args := m.Called(ctx, jobID)
	return args.Error(0)
}

type mockDocumentStorage struct {
	mock.Mock
}

func (m *mockDocumentStorage) GenerateInsuranceUploadURL(ctx context.Context, userID, filename, contentType string) (string, string, error) {
	args := m.Called(ctx, userID, filename, contentType)
	return args.String(0), args.String(1), args.Error(2)
}
