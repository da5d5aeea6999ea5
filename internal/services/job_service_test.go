package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/quoteajob/quoteajob/internal/apperr"
	"github.com/quoteajob/quoteajob/internal/models"
	"github.com/quoteajob/quoteajob/internal/store"
)

func TestNormalizePage(t *testing.T) {
	tests := []struct {
		page, limit         int
		wantPage, wantLimit int
	}{
		{0, 0, 1, 10},
		{-3, 5, 1, 5},
		{2, 500, 2, 100},
		{4, 100, 4, 100},
	}
	for _, tt := range tests {
		p, l := NormalizePage(tt.page, tt.limit)
		assert.Equal(t, tt.wantPage, p)
		assert.Equal(t, tt.wantLimit, l)
	}
}

func TestCreateJob(t *testing.T) {
	s := store.NewMemoryStore()
	svc := NewJobService(s, zap.NewNop())
	ctx := context.Background()

	budget := 250.0
	job, err := svc.CreateJob(ctx, "owner", NewJob{Title: " Leaky tap ", Description: "Kitchen", Category: "Plumbing", Location: "Leeds", Budget: &budget})
	require.NoError(t, err)
	assert.Equal(t, "Leaky tap", job.Title)
	assert.Equal(t, models.JobStatusOpen, job.Status)
	assert.Nil(t, job.AverageQuote)

	_, err = svc.CreateJob(ctx, "owner", NewJob{Title: "x", Description: "y", Category: "z"})
	assert.True(t, errors.Is(err, apperr.ErrInvalidInput))

	for _, b := range []float64{0, -1, math.NaN(), math.Inf(1)} {
		b := b
		_, err = svc.CreateJob(ctx, "owner", NewJob{Title: "x", Description: "y", Category: "z", Location: "w", Budget: &b})
		assert.True(t, errors.Is(err, apperr.ErrInvalidInput), "budget %v", b)
	}
}

func TestListJobs_PaginationAndEnrichment(t *testing.T) {
	s := store.NewMemoryStore()
	seedUser(t, s, "owner", models.RoleUser, false)
	seedUser(t, s, "p1", models.RolePro, true)
	base := time.Now().Add(-time.Hour)
	for i := 0; i < 12; i++ {
		seedJob(t, s, fmt.Sprintf("job-%02d", i), "owner", base.Add(time.Duration(i)*time.Minute))
	}
	_, err := NewQuoteService(s, zap.NewNop()).SubmitQuote(context.Background(), "p1", "job-11", 80, "")
	require.NoError(t, err)

	svc := NewJobService(s, zap.NewNop())
	page, err := svc.ListJobs(context.Background(), models.JobFilter{})
	require.NoError(t, err)
	assert.Equal(t, models.Pagination{Page: 1, Limit: 10, Total: 12, Pages: 2}, page.Pagination)
	require.Len(t, page.Jobs, 10)
	assert.Equal(t, "job-11", page.Jobs[0].ID, "newest first")
	assert.Equal(t, 1, page.Jobs[0].QuoteCount)
	require.NotNil(t, page.Jobs[0].Owner)
	assert.Equal(t, "owner", page.Jobs[0].Owner.ID)

	page, err = svc.ListJobs(context.Background(), models.JobFilter{Page: 2, Limit: 10, Location: "lond"})
	require.NoError(t, err)
	assert.Len(t, page.Jobs, 2)

	page, err = svc.ListJobs(context.Background(), models.JobFilter{Category: "Electrical"})
	require.NoError(t, err)
	assert.Empty(t, page.Jobs)
	assert.Equal(t, int64(0), page.Pagination.Pages)
}

func TestGetJob_Detail(t *testing.T) {
	s := store.NewMemoryStore()
	seedUser(t, s, "owner", models.RoleUser, false)
	seedUser(t, s, "p1", models.RolePro, true)
	seedUser(t, s, "p2", models.RolePro, true)
	seedJob(t, s, "job-1", "owner", time.Now())
	qs := NewQuoteService(s, zap.NewNop())
	_, err := qs.SubmitQuote(context.Background(), "p1", "job-1", 100, "")
	require.NoError(t, err)
	time.Sleep(2 * time.Millisecond)
	_, err = qs.SubmitQuote(context.Background(), "p2", "job-1", 200, "")
	require.NoError(t, err)

	detail, err := NewJobService(s, zap.NewNop()).GetJob(context.Background(), "job-1")
	require.NoError(t, err)
	assert.Equal(t, 2, detail.QuoteCount)
	require.Len(t, detail.Quotes, 2)
	assert.Equal(t, "p2", detail.Quotes[0].ProID, "newest first")
	assert.Equal(t, "Higher than average", detail.Quotes[0].StatusLabel)
	assert.Equal(t, "p2", detail.Quotes[0].Pro.ID)
	assert.Equal(t, "owner", detail.Owner.ID)

	_, err = NewJobService(s, zap.NewNop()).GetJob(context.Background(), "missing")
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
}

func TestUpdateAndDeleteJob_OwnerOnly(t *testing.T) {
	s := store.NewMemoryStore()
	seedJob(t, s, "job-1", "owner", time.Now())
	svc := NewJobService(s, zap.NewNop())
	ctx := context.Background()

	title := "New title"
	_, err := svc.UpdateJob(ctx, "job-1", "intruder", models.JobUpdate{Title: &title})
	assert.True(t, errors.Is(err, apperr.ErrPermissionDenied))

	job, err := svc.UpdateJob(ctx, "job-1", "owner", models.JobUpdate{Title: &title})
	require.NoError(t, err)
	assert.Equal(t, "New title", job.Title)

	bad := models.JobStatus("ARCHIVED")
	_, err = svc.UpdateJob(ctx, "job-1", "owner", models.JobUpdate{Status: &bad})
	assert.True(t, errors.Is(err, apperr.ErrInvalidInput))

	empty := "  "
	_, err = svc.UpdateJob(ctx, "job-1", "owner", models.JobUpdate{Location: &empty})
	assert.True(t, errors.Is(err, apperr.ErrInvalidInput))

	_, err = svc.UpdateJob(ctx, "missing", "owner", models.JobUpdate{Title: &title})
	assert.True(t, errors.Is(err, apperr.ErrNotFound))

	assert.True(t, errors.Is(svc.DeleteJob(ctx, "job-1", "intruder"), apperr.ErrPermissionDenied))
	require.NoError(t, svc.DeleteJob(ctx, "job-1", "owner"))
	_, err = s.GetJob(ctx, "job-1")
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
}
