package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/quoteajob/quoteajob/internal/apperr"
	"github.com/quoteajob/quoteajob/internal/models"
)

var (
	_ Store = (*MongoStore)(nil)
	_ Store = (*MemoryStore)(nil)
)

// MemoryStore implements Store in process memory. Job units of work take a per-job lock and
// stage their writes, applying them only when fn succeeds.
type MemoryStore struct {
	mu            sync.RWMutex
	jobs          map[string]models.Job
	quotes        map[string]models.Quote
	users         map[string]models.User
	subscriptions map[string]models.Subscription // keyed by customer ID
	events        map[string]models.ProcessedEvent

	locksMu  sync.Mutex
	jobLocks map[string]*sync.Mutex
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		jobs:          make(map[string]models.Job),
		quotes:        make(map[string]models.Quote),
		users:         make(map[string]models.User),
		subscriptions: make(map[string]models.Subscription),
		events:        make(map[string]models.ProcessedEvent),
		jobLocks:      make(map[string]*sync.Mutex),
	}
}

func (s *MemoryStore) jobLock(jobID string) *sync.Mutex {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	l, ok := s.jobLocks[jobID]
	if !ok {
		l = &sync.Mutex{}
		s.jobLocks[jobID] = l
	}
	return l
}

func (s *MemoryStore) RunInJobTx(ctx context.Context, jobID string, fn func(ctx context.Context, tx QuoteTx) error) error {
	l := s.jobLock(jobID)
	l.Lock()
	defer l.Unlock()

	s.mu.RLock()
	_, ok := s.jobs[jobID]
	s.mu.RUnlock()
	if !ok {
		return apperr.NotFound("Job not found")
	}

	tx := &memoryQuoteTx{s: s, statuses: make(map[string]models.QuoteStatus)}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	tx.commit()
	return nil
}

type memoryQuoteTx struct {
	s        *MemoryStore
	inserts  []models.Quote
	average  *float64
	avgJobID string
	statuses map[string]models.QuoteStatus
}

func (t *memoryQuoteTx) GetJobWithQuotes(ctx context.Context, jobID string) (*models.Job, []models.Quote, error) {
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()
	job, ok := t.s.jobs[jobID]
	if !ok {
		return nil, nil, apperr.NotFound("Job not found")
	}
	quotes := t.s.quotesWhere(func(q models.Quote) bool { return q.JobID == jobID })
	for _, q := range t.inserts {
		if q.JobID == jobID {
			quotes = append(quotes, q)
		}
	}
	sortQuotes(quotes, false)
	return &job, quotes, nil
}

func (t *memoryQuoteTx) InsertQuote(ctx context.Context, q *models.Quote) error {
	t.s.mu.RLock()
	dup := len(t.s.quotesWhere(func(e models.Quote) bool { return e.JobID == q.JobID && e.ProID == q.ProID })) > 0
	t.s.mu.RUnlock()
	for _, staged := range t.inserts {
		if staged.JobID == q.JobID && staged.ProID == q.ProID {
			dup = true
		}
	}
	if dup {
		return apperr.Conflict("Quote already exists for this job")
	}
	t.inserts = append(t.inserts, *q)
	return nil
}

func (t *memoryQuoteTx) UpdateJobAverage(ctx context.Context, jobID string, average float64) error {
	t.average = &average
	t.avgJobID = jobID
	return nil
}

func (t *memoryQuoteTx) UpdateQuoteStatuses(ctx context.Context, statuses map[string]models.QuoteStatus) error {
	for id, st := range statuses {
		t.statuses[id] = st
	}
	return nil
}

func (t *memoryQuoteTx) commit() {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	for _, q := range t.inserts {
		t.s.quotes[q.ID] = q
	}
	for id, st := range t.statuses {
		if q, ok := t.s.quotes[id]; ok {
			q.Status = st
			t.s.quotes[id] = q
		}
	}
	if t.average != nil {
		if job, ok := t.s.jobs[t.avgJobID]; ok {
			avg := *t.average
			job.AverageQuote = &avg
			job.QuoteVersion++
			job.UpdatedAt = time.Now().UTC()
			t.s.jobs[t.avgJobID] = job
		}
	}
}

// quotesWhere must be called with s.mu held.
func (s *MemoryStore) quotesWhere(match func(models.Quote) bool) []models.Quote {
	out := []models.Quote{}
	for _, q := range s.quotes {
		if match(q) {
			out = append(out, q)
		}
	}
	return out
}

func sortQuotes(quotes []models.Quote, newestFirst bool) {
	sort.SliceStable(quotes, func(i, j int) bool {
		a, b := quotes[i], quotes[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			if newestFirst {
				return a.CreatedAt.After(b.CreatedAt)
			}
			return a.CreatedAt.Before(b.CreatedAt)
		}
		if newestFirst {
			return a.ID > b.ID
		}
		return a.ID < b.ID
	})
}

// --- Jobs ---

func (s *MemoryStore) CreateJob(ctx context.Context, job *models.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = *job
	return nil
}

func (s *MemoryStore) GetJob(ctx context.Context, jobID string) (*models.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return nil, apperr.NotFound("Job not found")
	}
	return &job, nil
}

func (s *MemoryStore) GetJobWithQuotes(ctx context.Context, jobID string) (*models.Job, []models.Quote, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return nil, nil, apperr.NotFound("Job not found")
	}
	quotes := s.quotesWhere(func(q models.Quote) bool { return q.JobID == jobID })
	sortQuotes(quotes, true)
	return &job, quotes, nil
}

func (s *MemoryStore) ListJobs(ctx context.Context, f models.JobFilter) ([]models.Job, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	location := strings.ToLower(f.Location)
	matched := []models.Job{}
	for _, j := range s.jobs {
		if f.Category != "" && j.Category != f.Category {
			continue
		}
		if location != "" && !strings.Contains(strings.ToLower(j.Location), location) {
			continue
		}
		matched = append(matched, j)
	}
	sort.SliceStable(matched, func(i, k int) bool {
		if !matched[i].CreatedAt.Equal(matched[k].CreatedAt) {
			return matched[i].CreatedAt.After(matched[k].CreatedAt)
		}
		return matched[i].ID > matched[k].ID
	})
	total := int64(len(matched))
	if f.Limit > 0 {
		page := f.Page
		if page < 1 {
			page = 1
		}
		start := (page - 1) * f.Limit
		if start >= len(matched) {
			return []models.Job{}, total, nil
		}
		end := start + f.Limit
		if end > len(matched) {
			end = len(matched)
		}
		matched = matched[start:end]
	}
	return matched, total, nil
}

func (s *MemoryStore) UpdateJob(ctx context.Context, jobID string, upd models.JobUpdate) (*models.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return nil, apperr.NotFound("Job not found")
	}
	if upd.Title != nil {
		job.Title = *upd.Title
	}
	if upd.Description != nil {
		job.Description = *upd.Description
	}
	if upd.Category != nil {
		job.Category = *upd.Category
	}
	if upd.Location != nil {
		job.Location = *upd.Location
	}
	if upd.Budget != nil {
		b := *upd.Budget
		job.Budget = &b
	}
	if upd.Status != nil {
		job.Status = *upd.Status
	}
	job.UpdatedAt = time.Now().UTC()
	s.jobs[jobID] = job
	return &job, nil
}

func (s *MemoryStore) DeleteJob(ctx context.Context, jobID string) error {
	l := s.jobLock(jobID)
	l.Lock()
	defer l.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[jobID]; !ok {
		return apperr.NotFound("Job not found")
	}
	for id, q := range s.quotes {
		if q.JobID == jobID {
			delete(s.quotes, id)
		}
	}
	delete(s.jobs, jobID)
	return nil
}

func (s *MemoryStore) CountJobs(ctx context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.jobs)), nil
}

// --- Quotes ---

func (s *MemoryStore) ListQuotes(ctx context.Context, f models.QuoteFilter) ([]models.Quote, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	quotes := s.quotesWhere(func(q models.Quote) bool {
		return (f.JobID == "" || q.JobID == f.JobID) && (f.ProID == "" || q.ProID == f.ProID)
	})
	sortQuotes(quotes, true)
	return quotes, nil
}

func (s *MemoryStore) CountQuotesByJob(ctx context.Context, jobIDs []string) (map[string]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	wanted := make(map[string]bool, len(jobIDs))
	for _, id := range jobIDs {
		wanted[id] = true
	}
	counts := make(map[string]int, len(jobIDs))
	for _, q := range s.quotes {
		if wanted[q.JobID] {
			counts[q.JobID]++
		}
	}
	return counts, nil
}

func (s *MemoryStore) CountQuotes(ctx context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.quotes)), nil
}

func (s *MemoryStore) AverageQuoteAmount(ctx context.Context) (float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.quotes) == 0 {
		return 0, nil
	}
	var sum float64
	for _, q := range s.quotes {
		sum += q.Amount
	}
	return sum / float64(len(s.quotes)), nil
}

// --- Users ---

func (s *MemoryStore) CreateUser(ctx context.Context, u *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.users {
		if existing.Email == u.Email {
			return apperr.Conflict("Email already registered")
		}
	}
	s.users[u.ID] = *u
	return nil
}

func (s *MemoryStore) GetProfile(ctx context.Context, userID string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[userID]
	if !ok {
		return nil, apperr.NotFound("User not found")
	}
	return &u, nil
}

func (s *MemoryStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if u.Email == email {
			u := u
			return &u, nil
		}
	}
	return nil, apperr.NotFound("User not found")
}

func (s *MemoryStore) GetUsers(ctx context.Context, userIDs []string) (map[string]*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]*models.User, len(userIDs))
	for _, id := range userIDs {
		if u, ok := s.users[id]; ok {
			u := u
			out[id] = &u
		}
	}
	return out, nil
}

func (s *MemoryStore) updateUser(userID string, mutate func(u *models.User)) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return nil, apperr.NotFound("User not found")
	}
	mutate(&u)
	u.UpdatedAt = time.Now().UTC()
	s.users[userID] = u
	return &u, nil
}

func (s *MemoryStore) UpdateProfileFields(ctx context.Context, userID string, f models.ProfileFields) (*models.User, error) {
	return s.updateUser(userID, func(u *models.User) {
		u.Name = f.Name
		u.CompanyName = f.CompanyName
		u.TradeCategory = f.TradeCategory
		u.Description = f.Description
		u.Qualifications = f.Qualifications
	})
}

func (s *MemoryStore) SetInsuranceDoc(ctx context.Context, userID, objectKey string) (*models.User, error) {
	return s.updateUser(userID, func(u *models.User) { u.InsuranceDoc = objectKey })
}

func (s *MemoryStore) MarkEmailVerified(ctx context.Context, userID string, at time.Time) (*models.User, error) {
	return s.updateUser(userID, func(u *models.User) { u.EmailVerifiedAt = &at })
}

func (s *MemoryStore) UpdateProfileDerivedScores(ctx context.Context, userID string, trustScore, profileCompletion int) error {
	_, err := s.updateUser(userID, func(u *models.User) {
		u.TrustScore = trustScore
		u.ProfileCompletion = profileCompletion
	})
	return err
}

func (s *MemoryStore) SetSubscribed(ctx context.Context, userID string, subscribed bool) error {
	_, err := s.updateUser(userID, func(u *models.User) { u.IsSubscribed = subscribed })
	return err
}

func (s *MemoryStore) CountUsers(ctx context.Context, f models.UserFilter) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var n int64
	for _, u := range s.users {
		if f.Role != "" && u.Role != f.Role {
			continue
		}
		if f.Subscribed != nil && u.IsSubscribed != *f.Subscribed {
			continue
		}
		n++
	}
	return n, nil
}

// --- Subscriptions ---

func (s *MemoryStore) GetSubscriptionByCustomer(ctx context.Context, customerID string) (*models.Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sub, ok := s.subscriptions[customerID]
	if !ok {
		return nil, apperr.NotFound("Subscription not found")
	}
	return &sub, nil
}

func (s *MemoryStore) ApplySubscriptionState(ctx context.Context, sub *models.Subscription) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	existing, ok := s.subscriptions[sub.StripeCustomerID]
	if !ok {
		if sub.UserID == "" {
			return false, nil
		}
		created := *sub
		if created.ID == "" {
			created.ID = uuid.NewString()
		}
		created.CreatedAt, created.UpdatedAt = now, now
		s.subscriptions[sub.StripeCustomerID] = created
		sub.ID = created.ID
		return true, nil
	}
	if !sub.Supersedes(&existing) {
		return false, nil
	}
	existing.Status = sub.Status
	existing.LastEventAt = sub.LastEventAt
	if sub.StripeSubscriptionID != "" {
		existing.StripeSubscriptionID = sub.StripeSubscriptionID
	}
	if sub.UserID != "" {
		existing.UserID = sub.UserID
	}
	existing.UpdatedAt = now
	s.subscriptions[sub.StripeCustomerID] = existing
	return true, nil
}

func (s *MemoryStore) IsEventProcessed(ctx context.Context, eventID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.events[eventID]
	return ok, nil
}

func (s *MemoryStore) MarkEventProcessed(ctx context.Context, ev *models.ProcessedEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[ev.ID] = *ev
	return nil
}
