package store_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quoteajob/quoteajob/internal/apperr"
	"github.com/quoteajob/quoteajob/internal/models"
	"github.com/quoteajob/quoteajob/internal/store"
)

func seedJob(t *testing.T, s store.Store, id, category, location string, createdAt time.Time) {
	t.Helper()
	require.NoError(t, s.CreateJob(context.Background(), &models.Job{
		ID:        id,
		UserID:    "owner",
		Title:     "Job " + id,
		Category:  category,
		Location:  location,
		Status:    models.JobStatusOpen,
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}))
}

func TestMemoryStore_RunInJobTx_Commits(t *testing.T) {
	s := store.NewMemoryStore()
	ctx := context.Background()
	seedJob(t, s, "j1", "Plumbing", "London", time.Now())

	err := s.RunInJobTx(ctx, "j1", func(ctx context.Context, tx store.QuoteTx) error {
		require.NoError(t, tx.InsertQuote(ctx, &models.Quote{ID: "q1", JobID: "j1", ProID: "p1", Amount: 100, CreatedAt: time.Now()}))
		_, quotes, err := tx.GetJobWithQuotes(ctx, "j1")
		require.NoError(t, err)
		assert.Len(t, quotes, 1, "staged inserts are visible inside the unit")
		require.NoError(t, tx.UpdateJobAverage(ctx, "j1", 100))
		return tx.UpdateQuoteStatuses(ctx, map[string]models.QuoteStatus{"q1": models.QuoteStatusAboutRight})
	})
	require.NoError(t, err)

	job, quotes, err := s.GetJobWithQuotes(ctx, "j1")
	require.NoError(t, err)
	require.NotNil(t, job.AverageQuote)
	assert.Equal(t, 100.0, *job.AverageQuote)
	assert.Len(t, quotes, 1)
}

func TestMemoryStore_RunInJobTx_RollsBackOnError(t *testing.T) {
	s := store.NewMemoryStore()
	ctx := context.Background()
	seedJob(t, s, "j1", "Plumbing", "London", time.Now())

	boom := errors.New("boom")
	err := s.RunInJobTx(ctx, "j1", func(ctx context.Context, tx store.QuoteTx) error {
		require.NoError(t, tx.InsertQuote(ctx, &models.Quote{ID: "q1", JobID: "j1", ProID: "p1", Amount: 100}))
		require.NoError(t, tx.UpdateJobAverage(ctx, "j1", 100))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	job, quotes, err := s.GetJobWithQuotes(ctx, "j1")
	require.NoError(t, err)
	assert.Nil(t, job.AverageQuote)
	assert.Empty(t, quotes)
}

func TestMemoryStore_RunInJobTx_MissingJob(t *testing.T) {
	s := store.NewMemoryStore()
	called := false
	err := s.RunInJobTx(context.Background(), "missing", func(ctx context.Context, tx store.QuoteTx) error {
		called = true
		return nil
	})
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
	assert.False(t, called)
}

func TestMemoryStore_InsertQuote_Duplicate(t *testing.T) {
	s := store.NewMemoryStore()
	ctx := context.Background()
	seedJob(t, s, "j1", "Plumbing", "London", time.Now())

	insert := func(id string) error {
		return s.RunInJobTx(ctx, "j1", func(ctx context.Context, tx store.QuoteTx) error {
			return tx.InsertQuote(ctx, &models.Quote{ID: id, JobID: "j1", ProID: "p1", Amount: 100})
		})
	}
	require.NoError(t, insert("q1"))
	err := insert("q2")
	assert.True(t, errors.Is(err, apperr.ErrConflict))
}

func TestMemoryStore_ListJobs_FilterAndPaginate(t *testing.T) {
	s := store.NewMemoryStore()
	ctx := context.Background()
	base := time.Now()
	seedJob(t, s, "a", "Kitchen", "North London", base.Add(-3*time.Hour))
	seedJob(t, s, "b", "Kitchen", "Manchester", base.Add(-2*time.Hour))
	seedJob(t, s, "c", "Bathroom", "london", base.Add(-1*time.Hour))
	seedJob(t, s, "d", "Kitchen", "LONDON Bridge", base)

	jobs, total, err := s.ListJobs(ctx, models.JobFilter{Category: "Kitchen", Location: "london", Page: 1, Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	require.Len(t, jobs, 1)
	assert.Equal(t, "d", jobs[0].ID)

	jobs, _, err = s.ListJobs(ctx, models.JobFilter{Category: "Kitchen", Location: "london", Page: 2, Limit: 1})
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, "a", jobs[0].ID)

	jobs, total, err = s.ListJobs(ctx, models.JobFilter{Page: 9, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(4), total)
	assert.Empty(t, jobs)
}

func TestMemoryStore_DeleteJobCascades(t *testing.T) {
	s := store.NewMemoryStore()
	ctx := context.Background()
	seedJob(t, s, "j1", "Plumbing", "London", time.Now())
	seedJob(t, s, "j2", "Plumbing", "London", time.Now())
	for _, jobID := range []string{"j1", "j2"} {
		jobID := jobID
		require.NoError(t, s.RunInJobTx(ctx, jobID, func(ctx context.Context, tx store.QuoteTx) error {
			return tx.InsertQuote(ctx, &models.Quote{ID: "q-" + jobID, JobID: jobID, ProID: "p1", Amount: 10})
		}))
	}

	require.NoError(t, s.DeleteJob(ctx, "j1"))

	_, err := s.GetJob(ctx, "j1")
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
	n, err := s.CountQuotes(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.True(t, errors.Is(s.DeleteJob(ctx, "j1"), apperr.ErrNotFound))
}

func TestMemoryStore_ApplySubscriptionState_Ordering(t *testing.T) {
	s := store.NewMemoryStore()
	ctx := context.Background()
	t0 := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	// Unknown customer without a user cannot create a record.
	applied, err := s.ApplySubscriptionState(ctx, &models.Subscription{StripeCustomerID: "cus_1", Status: "past_due", LastEventAt: t0})
	require.NoError(t, err)
	assert.False(t, applied)

	applied, err = s.ApplySubscriptionState(ctx, &models.Subscription{UserID: "u1", StripeCustomerID: "cus_1", Status: "active", LastEventAt: t0})
	require.NoError(t, err)
	assert.True(t, applied)

	applied, err = s.ApplySubscriptionState(ctx, &models.Subscription{StripeCustomerID: "cus_1", Status: "canceled", LastEventAt: t0.Add(time.Minute)})
	require.NoError(t, err)
	assert.True(t, applied)

	// An older event arriving late is ignored.
	applied, err = s.ApplySubscriptionState(ctx, &models.Subscription{StripeCustomerID: "cus_1", Status: "active", LastEventAt: t0.Add(30 * time.Second)})
	require.NoError(t, err)
	assert.False(t, applied)

	sub, err := s.GetSubscriptionByCustomer(ctx, "cus_1")
	require.NoError(t, err)
	assert.Equal(t, "canceled", sub.Status)
	assert.Equal(t, "u1", sub.UserID)

	// Same second as the cancellation: an active state does not override it.
	applied, err = s.ApplySubscriptionState(ctx, &models.Subscription{StripeCustomerID: "cus_1", Status: "active", LastEventAt: t0.Add(time.Minute)})
	require.NoError(t, err)
	assert.False(t, applied)

	sub, err = s.GetSubscriptionByCustomer(ctx, "cus_1")
	require.NoError(t, err)
	assert.Equal(t, "canceled", sub.Status)
}

func TestMemoryStore_UserCountsAndAverages(t *testing.T) {
	s := store.NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, s.CreateUser(ctx, &models.User{ID: "u1", Email: "a@example.com", Role: models.RolePro, IsSubscribed: true}))
	require.NoError(t, s.CreateUser(ctx, &models.User{ID: "u2", Email: "b@example.com", Role: models.RolePro}))
	require.NoError(t, s.CreateUser(ctx, &models.User{ID: "u3", Email: "c@example.com", Role: models.RoleUser}))
	assert.True(t, errors.Is(s.CreateUser(ctx, &models.User{ID: "u4", Email: "a@example.com"}), apperr.ErrConflict))

	subscribed := true
	n, err := s.CountUsers(ctx, models.UserFilter{Role: models.RolePro, Subscribed: &subscribed})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	avg, err := s.AverageQuoteAmount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0.0, avg)
}
