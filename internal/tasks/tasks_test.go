package tasks_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/quoteajob/quoteajob/internal/auth"
	"github.com/quoteajob/quoteajob/internal/models"
	"github.com/quoteajob/quoteajob/internal/services"
	"github.com/quoteajob/quoteajob/internal/store"
	"github.com/quoteajob/quoteajob/internal/tasks"
)

// --- Mocks ---

type MockEmailSender struct {
	mock.Mock
}

func (m *MockEmailSender) Send(ctx context.Context, to []string, subject string, rawMessage []byte) error {
	args := m.Called(ctx, to, subject, rawMessage)
	return args.Error(0)
}

type MockEnqueuer struct {
	mock.Mock
}

func (m *MockEnqueuer) EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	args := m.Called(ctx, task)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*asynq.TaskInfo), args.Error(1)
}

var settings = tasks.ProcessorSettings{
	FromAddress:    "noreply@quoteajob.com",
	AppName:        "QuoteAJob",
	AppBaseURL:     "https://quoteajob.test",
	JwtSecret:      "secret",
	EmailVerifyTTL: 48 * time.Hour,
}

type fixture struct {
	store  *store.MemoryStore
	sender *MockEmailSender
	p      *tasks.TaskProcessor
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	s := store.NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, s.CreateUser(ctx, &models.User{ID: "owner", Name: "Olive", Email: "olive@example.com", Role: models.RoleUser}))
	require.NoError(t, s.CreateUser(ctx, &models.User{ID: "pro", Name: "Pat", Email: "pat@example.com", Role: models.RolePro, IsSubscribed: true}))
	require.NoError(t, s.CreateJob(ctx, &models.Job{ID: "job-1", UserID: "owner", Title: "Fix sink", Status: models.JobStatusOpen, CreatedAt: time.Now()}))

	sender := new(MockEmailSender)
	qs := services.NewQuoteService(s, zap.NewNop())
	return &fixture{store: s, sender: sender, p: tasks.NewTaskProcessor(settings, sender, s, s, qs, zap.NewNop())}
}

func task(t *testing.T, typ string, payload interface{}) *asynq.Task {
	t.Helper()
	b, err := json.Marshal(payload)
	require.NoError(t, err)
	return asynq.NewTask(typ, b)
}

// --- Client ---

func TestClient_EnqueuesTasks(t *testing.T) {
	enq := new(MockEnqueuer)
	enq.On("EnqueueContext", mock.Anything, mock.MatchedBy(func(tk *asynq.Task) bool {
		return tk.Type() == tasks.TypeQuoteNotify
	})).Return(&asynq.TaskInfo{ID: "t1"}, nil)
	enq.On("EnqueueContext", mock.Anything, mock.MatchedBy(func(tk *asynq.Task) bool {
		var p tasks.EmailVerifyPayload
		return tk.Type() == tasks.TypeEmailVerify && json.Unmarshal(tk.Payload(), &p) == nil && p.Email == "a@b.com"
	})).Return(&asynq.TaskInfo{ID: "t2"}, nil)
	enq.On("EnqueueContext", mock.Anything, mock.MatchedBy(func(tk *asynq.Task) bool {
		return tk.Type() == tasks.TypeJobRecompute
	})).Return(nil, asynq.ErrDuplicateTask)

	c := tasks.NewClient(enq)
	ctx := context.Background()
	require.NoError(t, c.QuoteSubmitted(ctx, &models.Job{ID: "job-1"}, &models.Quote{ID: "q1", Amount: 10}, 10))
	require.NoError(t, c.EnqueueVerificationEmail(ctx, "u1", "a@b.com", "A"))
	require.NoError(t, c.EnqueueRecompute(ctx, "job-1"), "a recompute already queued is not an error")
	enq.AssertNumberOfCalls(t, "EnqueueContext", 3)
}

func TestClient_EnqueueFailure(t *testing.T) {
	enq := new(MockEnqueuer)
	enq.On("EnqueueContext", mock.Anything, mock.Anything).Return(nil, errors.New("redis down"))
	err := tasks.NewClient(enq).EnqueueRecompute(context.Background(), "job-1")
	assert.ErrorContains(t, err, "redis down")
}

// --- Handlers ---

func TestHandleQuoteNotifyTask(t *testing.T) {
	f := newFixture(t)
	f.sender.On("Send", mock.Anything, []string{"olive@example.com"}, "New quote on Fix sink",
		mock.MatchedBy(func(raw []byte) bool {
			msg := string(raw)
			return strings.Contains(msg, "quoted 70.00") &&
				strings.Contains(msg, "Lower than average") &&
				strings.Contains(msg, "now 92.50") &&
				strings.Contains(msg, "https://quoteajob.test/jobs/job-1")
		})).Return(nil)

	err := f.p.HandleQuoteNotifyTask(context.Background(), task(t, tasks.TypeQuoteNotify, tasks.QuoteNotifyPayload{
		JobID: "job-1", QuoteID: "q1", ProID: "pro", Amount: 70, Status: models.QuoteStatusLower, AverageQuote: 92.5,
	}))
	require.NoError(t, err)
	f.sender.AssertExpectations(t)
}

func TestHandleQuoteNotifyTask_SkipsRetry(t *testing.T) {
	f := newFixture(t)

	err := f.p.HandleQuoteNotifyTask(context.Background(), asynq.NewTask(tasks.TypeQuoteNotify, []byte("{")))
	assert.True(t, errors.Is(err, asynq.SkipRetry))

	err = f.p.HandleQuoteNotifyTask(context.Background(), task(t, tasks.TypeQuoteNotify, tasks.QuoteNotifyPayload{JobID: "gone"}))
	assert.True(t, errors.Is(err, asynq.SkipRetry))
	f.sender.AssertNotCalled(t, "Send", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestHandleQuoteNotifyTask_SendFailureRetries(t *testing.T) {
	f := newFixture(t)
	f.sender.On("Send", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(errors.New("smtp down"))

	err := f.p.HandleQuoteNotifyTask(context.Background(), task(t, tasks.TypeQuoteNotify, tasks.QuoteNotifyPayload{JobID: "job-1"}))
	require.Error(t, err)
	assert.False(t, errors.Is(err, asynq.SkipRetry))
}

func TestHandleEmailVerifyTask(t *testing.T) {
	f := newFixture(t)
	var link string
	f.sender.On("Send", mock.Anything, []string{"pat@example.com"}, "Verify your email for QuoteAJob", mock.Anything).
		Run(func(args mock.Arguments) {
			msg := string(args.Get(3).([]byte))
			i := strings.Index(msg, "https://quoteajob.test/auth/verify?token=")
			require.GreaterOrEqual(t, i, 0)
			link = strings.Fields(msg[i:])[0]
		}).Return(nil)

	err := f.p.HandleEmailVerifyTask(context.Background(), task(t, tasks.TypeEmailVerify, tasks.EmailVerifyPayload{
		UserID: "pro", Email: "pat@example.com", Name: "Pat",
	}))
	require.NoError(t, err)

	u, err := url.Parse(link)
	require.NoError(t, err)
	claims, err := auth.ValidateEmailVerificationToken(u.Query().Get("token"), settings.JwtSecret)
	require.NoError(t, err)
	assert.Equal(t, "pro", claims.UserID)

	err = f.p.HandleEmailVerifyTask(context.Background(), task(t, tasks.TypeEmailVerify, tasks.EmailVerifyPayload{UserID: "pro"}))
	assert.True(t, errors.Is(err, asynq.SkipRetry))
}

func TestHandleJobRecomputeTask(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := services.NewQuoteService(f.store, zap.NewNop()).SubmitQuote(ctx, "pro", "job-1", 120, "")
	require.NoError(t, err)

	require.NoError(t, f.p.HandleJobRecomputeTask(ctx, task(t, tasks.TypeJobRecompute, tasks.JobRecomputePayload{JobID: "job-1"})))
	job, err := f.store.GetJob(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, 120.0, *job.AverageQuote)

	err = f.p.HandleJobRecomputeTask(ctx, task(t, tasks.TypeJobRecompute, tasks.JobRecomputePayload{JobID: "gone"}))
	assert.True(t, errors.Is(err, asynq.SkipRetry))
}

func TestMux_RoutesAllTypes(t *testing.T) {
	f := newFixture(t)
	mux := f.p.Mux()
	for _, typ := range []string{tasks.TypeQuoteNotify, tasks.TypeEmailVerify, tasks.TypeJobRecompute} {
		h, pattern := mux.Handler(asynq.NewTask(typ, []byte("{")))
		assert.NotNil(t, h)
		assert.Equal(t, typ, pattern)
	}
}
