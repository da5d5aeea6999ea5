package store

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readconcern"
	"go.mongodb.org/mongo-driver/mongo/writeconcern"

	"github.com/quoteajob/quoteajob/internal/apperr"
	"github.com/quoteajob/quoteajob/internal/db"
	"github.com/quoteajob/quoteajob/internal/models"
)

// MongoStore implements Store on MongoDB.
type MongoStore struct {
	client *mongo.Client
	db     *mongo.Database
}

// NewMongoStore creates a store over database. client is used to open transaction sessions.
func NewMongoStore(client *mongo.Client, database *mongo.Database) *MongoStore {
	return &MongoStore{client: client, db: database}
}

func (s *MongoStore) jobs() *mongo.Collection   { return s.db.Collection(db.JobsCollection) }
func (s *MongoStore) quotes() *mongo.Collection { return s.db.Collection(db.QuotesCollection) }
func (s *MongoStore) users() *mongo.Collection  { return s.db.Collection(db.UsersCollection) }
func (s *MongoStore) subscriptions() *mongo.Collection {
	return s.db.Collection(db.SubscriptionsCollection)
}
func (s *MongoStore) events() *mongo.Collection {
	return s.db.Collection(db.ProcessedEventsCollection)
}

func (s *MongoStore) txnOptions() *options.TransactionOptions {
	return options.Transaction().
		SetReadConcern(readconcern.Snapshot()).
		SetWriteConcern(writeconcern.Majority())
}

// RunInJobTx opens a transaction whose first write bumps the job's quote_version. A second
// transaction on the same job then fails with a write conflict, which the driver labels
// TransientTransactionError and WithTransaction retries against a fresh snapshot.
func (s *MongoStore) RunInJobTx(ctx context.Context, jobID string, fn func(ctx context.Context, tx QuoteTx) error) error {
	session, err := s.client.StartSession()
	if err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		res, err := s.jobs().UpdateOne(sc, bson.M{"_id": jobID}, bson.M{"$inc": bson.M{"quote_version": 1}})
		if err != nil {
			return nil, fmt.Errorf("failed to lock job %s: %w", jobID, err)
		}
		if res.MatchedCount == 0 {
			return nil, apperr.NotFound("Job not found")
		}
		return nil, fn(sc, &mongoQuoteTx{s: s})
	}, s.txnOptions())
	return err
}

type mongoQuoteTx struct {
	s *MongoStore
}

func (t *mongoQuoteTx) GetJobWithQuotes(ctx context.Context, jobID string) (*models.Job, []models.Quote, error) {
	job, err := t.s.GetJob(ctx, jobID)
	if err != nil {
		return nil, nil, err
	}
	quotes, err := t.s.findQuotes(ctx, bson.M{"job_id": jobID}, 1)
	if err != nil {
		return nil, nil, err
	}
	return job, quotes, nil
}

func (t *mongoQuoteTx) InsertQuote(ctx context.Context, q *models.Quote) error {
	if _, err := t.s.quotes().InsertOne(ctx, q); err != nil {
		if db.IsMongoDuplicateKeyError(err) {
			return apperr.Wrap(apperr.KindConflict, err, "Quote already exists for this job")
		}
		return fmt.Errorf("failed to insert quote for job %s: %w", q.JobID, err)
	}
	return nil
}

func (t *mongoQuoteTx) UpdateJobAverage(ctx context.Context, jobID string, average float64) error {
	_, err := t.s.jobs().UpdateOne(ctx, bson.M{"_id": jobID}, bson.M{"$set": bson.M{
		"average_quote": average,
		"updated_at":    time.Now().UTC(),
	}})
	if err != nil {
		return fmt.Errorf("failed to update average for job %s: %w", jobID, err)
	}
	return nil
}

func (t *mongoQuoteTx) UpdateQuoteStatuses(ctx context.Context, statuses map[string]models.QuoteStatus) error {
	if len(statuses) == 0 {
		return nil
	}
	writes := make([]mongo.WriteModel, 0, len(statuses))
	for id, status := range statuses {
		writes = append(writes, mongo.NewUpdateOneModel().
			SetFilter(bson.M{"_id": id}).
			SetUpdate(bson.M{"$set": bson.M{"status": status}}))
	}
	if _, err := t.s.quotes().BulkWrite(ctx, writes, options.BulkWrite().SetOrdered(false)); err != nil {
		return fmt.Errorf("failed to update quote statuses: %w", err)
	}
	return nil
}

// --- Jobs ---

func (s *MongoStore) CreateJob(ctx context.Context, job *models.Job) error {
	if _, err := s.jobs().InsertOne(ctx, job); err != nil {
		return fmt.Errorf("failed to insert job: %w", err)
	}
	return nil
}

func (s *MongoStore) GetJob(ctx context.Context, jobID string) (*models.Job, error) {
	var job models.Job
	if err := s.jobs().FindOne(ctx, bson.M{"_id": jobID}).Decode(&job); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperr.NotFound("Job not found")
		}
		return nil, fmt.Errorf("error finding job by ID %s: %w", jobID, err)
	}
	return &job, nil
}

func (s *MongoStore) GetJobWithQuotes(ctx context.Context, jobID string) (*models.Job, []models.Quote, error) {
	job, err := s.GetJob(ctx, jobID)
	if err != nil {
		return nil, nil, err
	}
	quotes, err := s.findQuotes(ctx, bson.M{"job_id": jobID}, -1)
	if err != nil {
		return nil, nil, err
	}
	return job, quotes, nil
}

func jobFilter(f models.JobFilter) bson.M {
	filter := bson.M{}
	if f.Category != "" {
		filter["category"] = f.Category
	}
	if f.Location != "" {
		filter["location"] = bson.M{"$regex": regexp.QuoteMeta(f.Location), "$options": "i"}
	}
	return filter
}

func (s *MongoStore) ListJobs(ctx context.Context, f models.JobFilter) ([]models.Job, int64, error) {
	filter := jobFilter(f)
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	if f.Limit > 0 {
		page := f.Page
		if page < 1 {
			page = 1
		}
		opts.SetSkip(int64((page - 1) * f.Limit)).SetLimit(int64(f.Limit))
	}

	cursor, err := s.jobs().Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list jobs: %w", err)
	}
	jobs := []models.Job{}
	if err := cursor.All(ctx, &jobs); err != nil {
		return nil, 0, fmt.Errorf("failed to decode jobs: %w", err)
	}

	total, err := s.jobs().CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count jobs: %w", err)
	}
	return jobs, total, nil
}

func (s *MongoStore) UpdateJob(ctx context.Context, jobID string, upd models.JobUpdate) (*models.Job, error) {
	set := bson.M{"updated_at": time.Now().UTC()}
	if upd.Title != nil {
		set["title"] = *upd.Title
	}
	if upd.Description != nil {
		set["description"] = *upd.Description
	}
	if upd.Category != nil {
		set["category"] = *upd.Category
	}
	if upd.Location != nil {
		set["location"] = *upd.Location
	}
	if upd.Budget != nil {
		set["budget"] = *upd.Budget
	}
	if upd.Status != nil {
		set["status"] = *upd.Status
	}

	var job models.Job
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	if err := s.jobs().FindOneAndUpdate(ctx, bson.M{"_id": jobID}, bson.M{"$set": set}, opts).Decode(&job); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperr.NotFound("Job not found")
		}
		return nil, fmt.Errorf("failed to update job %s: %w", jobID, err)
	}
	return &job, nil
}

// DeleteJob removes the job and its quotes in one transaction. It goes through the same
// quote_version bump as quote submission so it cannot interleave with one.
func (s *MongoStore) DeleteJob(ctx context.Context, jobID string) error {
	session, err := s.client.StartSession()
	if err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		res, err := s.jobs().UpdateOne(sc, bson.M{"_id": jobID}, bson.M{"$inc": bson.M{"quote_version": 1}})
		if err != nil {
			return nil, fmt.Errorf("failed to lock job %s: %w", jobID, err)
		}
		if res.MatchedCount == 0 {
			return nil, apperr.NotFound("Job not found")
		}
		if _, err := s.quotes().DeleteMany(sc, bson.M{"job_id": jobID}); err != nil {
			return nil, fmt.Errorf("failed to delete quotes of job %s: %w", jobID, err)
		}
		if _, err := s.jobs().DeleteOne(sc, bson.M{"_id": jobID}); err != nil {
			return nil, fmt.Errorf("failed to delete job %s: %w", jobID, err)
		}
		return nil, nil
	}, s.txnOptions())
	return err
}

func (s *MongoStore) CountJobs(ctx context.Context) (int64, error) {
	n, err := s.jobs().CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, fmt.Errorf("failed to count jobs: %w", err)
	}
	return n, nil
}

// --- Quotes ---

func (s *MongoStore) findQuotes(ctx context.Context, filter bson.M, order int) ([]models.Quote, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: order}, {Key: "_id", Value: order}})
	cursor, err := s.quotes().Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find quotes: %w", err)
	}
	quotes := []models.Quote{}
	if err := cursor.All(ctx, &quotes); err != nil {
		return nil, fmt.Errorf("failed to decode quotes: %w", err)
	}
	return quotes, nil
}

func (s *MongoStore) ListQuotes(ctx context.Context, f models.QuoteFilter) ([]models.Quote, error) {
	filter := bson.M{}
	if f.JobID != "" {
		filter["job_id"] = f.JobID
	}
	if f.ProID != "" {
		filter["pro_id"] = f.ProID
	}
	return s.findQuotes(ctx, filter, -1)
}

func (s *MongoStore) CountQuotesByJob(ctx context.Context, jobIDs []string) (map[string]int, error) {
	counts := make(map[string]int, len(jobIDs))
	if len(jobIDs) == 0 {
		return counts, nil
	}
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"job_id": bson.M{"$in": jobIDs}}}},
		{{Key: "$group", Value: bson.M{"_id": "$job_id", "count": bson.M{"$sum": 1}}}},
	}
	cursor, err := s.quotes().Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("failed to count quotes by job: %w", err)
	}
	var rows []struct {
		JobID string `bson:"_id"`
		Count int    `bson:"count"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("failed to decode quote counts: %w", err)
	}
	for _, r := range rows {
		counts[r.JobID] = r.Count
	}
	return counts, nil
}

func (s *MongoStore) CountQuotes(ctx context.Context) (int64, error) {
	n, err := s.quotes().CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, fmt.Errorf("failed to count quotes: %w", err)
	}
	return n, nil
}

func (s *MongoStore) AverageQuoteAmount(ctx context.Context) (float64, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$group", Value: bson.M{"_id": nil, "avg": bson.M{"$avg": "$amount"}}}},
	}
	cursor, err := s.quotes().Aggregate(ctx, pipeline)
	if err != nil {
		return 0, fmt.Errorf("failed to average quotes: %w", err)
	}
	var rows []struct {
		Avg float64 `bson:"avg"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return 0, fmt.Errorf("failed to decode quote average: %w", err)
	}
	if len(rows) == 0 {
		return 0, nil
	}
	return rows[0].Avg, nil
}

// --- Users ---

func (s *MongoStore) CreateUser(ctx context.Context, u *models.User) error {
	if _, err := s.users().InsertOne(ctx, u); err != nil {
		if db.IsMongoDuplicateKeyError(err) {
			return apperr.Wrap(apperr.KindConflict, err, "Email already registered")
		}
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

func (s *MongoStore) findUser(ctx context.Context, filter bson.M) (*models.User, error) {
	var u models.User
	err := db.Try(func() error {
		return s.users().FindOne(ctx, filter).Decode(&u)
	})
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperr.NotFound("User not found")
		}
		return nil, fmt.Errorf("error finding user: %w", err)
	}
	return &u, nil
}

func (s *MongoStore) GetProfile(ctx context.Context, userID string) (*models.User, error) {
	return s.findUser(ctx, bson.M{"_id": userID})
}

func (s *MongoStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.findUser(ctx, bson.M{"email": email})
}

func (s *MongoStore) GetUsers(ctx context.Context, userIDs []string) (map[string]*models.User, error) {
	out := make(map[string]*models.User, len(userIDs))
	if len(userIDs) == 0 {
		return out, nil
	}
	cursor, err := s.users().Find(ctx, bson.M{"_id": bson.M{"$in": userIDs}})
	if err != nil {
		return nil, fmt.Errorf("failed to find users: %w", err)
	}
	var users []models.User
	if err := cursor.All(ctx, &users); err != nil {
		return nil, fmt.Errorf("failed to decode users: %w", err)
	}
	for i := range users {
		out[users[i].ID] = &users[i]
	}
	return out, nil
}

func (s *MongoStore) updateUser(ctx context.Context, userID string, set bson.M) (*models.User, error) {
	set["updated_at"] = time.Now().UTC()
	var u models.User
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	// A plain $set is idempotent, so transient failures are retried.
	err := db.Try(func() error {
		return s.users().FindOneAndUpdate(ctx, bson.M{"_id": userID}, bson.M{"$set": set}, opts).Decode(&u)
	})
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperr.NotFound("User not found")
		}
		return nil, fmt.Errorf("failed to update user %s: %w", userID, err)
	}
	return &u, nil
}

func (s *MongoStore) UpdateProfileFields(ctx context.Context, userID string, f models.ProfileFields) (*models.User, error) {
	return s.updateUser(ctx, userID, bson.M{
		"name":           f.Name,
		"company_name":   f.CompanyName,
		"trade_category": f.TradeCategory,
		"description":    f.Description,
		"qualifications": f.Qualifications,
	})
}

func (s *MongoStore) SetInsuranceDoc(ctx context.Context, userID, objectKey string) (*models.User, error) {
	return s.updateUser(ctx, userID, bson.M{"insurance_doc": objectKey})
}

func (s *MongoStore) MarkEmailVerified(ctx context.Context, userID string, at time.Time) (*models.User, error) {
	return s.updateUser(ctx, userID, bson.M{"email_verified_at": at})
}

func (s *MongoStore) UpdateProfileDerivedScores(ctx context.Context, userID string, trustScore, profileCompletion int) error {
	_, err := s.updateUser(ctx, userID, bson.M{
		"trust_score":        trustScore,
		"profile_completion": profileCompletion,
	})
	return err
}

func (s *MongoStore) SetSubscribed(ctx context.Context, userID string, subscribed bool) error {
	_, err := s.updateUser(ctx, userID, bson.M{"is_subscribed": subscribed})
	return err
}

func (s *MongoStore) CountUsers(ctx context.Context, f models.UserFilter) (int64, error) {
	filter := bson.M{}
	if f.Role != "" {
		filter["role"] = f.Role
	}
	if f.Subscribed != nil {
		filter["is_subscribed"] = *f.Subscribed
	}
	n, err := s.users().CountDocuments(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("failed to count users: %w", err)
	}
	return n, nil
}

// --- Subscriptions ---

func (s *MongoStore) GetSubscriptionByCustomer(ctx context.Context, customerID string) (*models.Subscription, error) {
	var sub models.Subscription
	if err := s.subscriptions().FindOne(ctx, bson.M{"stripe_customer_id": customerID}).Decode(&sub); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperr.NotFound("Subscription not found")
		}
		return nil, fmt.Errorf("error finding subscription for customer %s: %w", customerID, err)
	}
	return &sub, nil
}

func (s *MongoStore) ApplySubscriptionState(ctx context.Context, sub *models.Subscription) (bool, error) {
	now := time.Now().UTC()
	set := bson.M{
		"status":        sub.Status,
		"last_event_at": sub.LastEventAt,
		"updated_at":    now,
	}
	if sub.StripeSubscriptionID != "" {
		set["stripe_subscription_id"] = sub.StripeSubscriptionID
	}
	if sub.UserID != "" {
		set["user_id"] = sub.UserID
	}

	var applied bool
	// A concurrent first delivery for the same customer can win the insert; the retry then
	// goes down the conditional update path.
	err := db.WithRetries(func() error {
		res, err := s.subscriptions().UpdateOne(ctx, supersededFilter(sub), bson.M{"$set": set})
		if err != nil {
			return err
		}
		if res.MatchedCount > 0 {
			applied = true
			return nil
		}
		n, err := s.subscriptions().CountDocuments(ctx, bson.M{"stripe_customer_id": sub.StripeCustomerID})
		if err != nil {
			return err
		}
		if n > 0 || sub.UserID == "" {
			applied = false
			return nil
		}
		if sub.ID == "" {
			sub.ID = uuid.NewString()
		}
		sub.CreatedAt, sub.UpdatedAt = now, now
		if _, err := s.subscriptions().InsertOne(ctx, sub); err != nil {
			return err
		}
		applied = true
		return nil
	}, 1, db.IsMongoDuplicateKeyError)
	if err != nil {
		return false, fmt.Errorf("failed to apply subscription state for customer %s: %w", sub.StripeCustomerID, err)
	}
	return applied, nil
}

// supersededFilter matches the stored subscription only when sub replaces it, following
// the same-second rule of models.Subscription.Supersedes.
func supersededFilter(sub *models.Subscription) bson.M {
	if sub.Status == models.SubscriptionStatusCanceled {
		return bson.M{"stripe_customer_id": sub.StripeCustomerID, "last_event_at": bson.M{"$lte": sub.LastEventAt}}
	}
	return bson.M{
		"stripe_customer_id": sub.StripeCustomerID,
		"$or": bson.A{
			bson.M{"last_event_at": bson.M{"$lt": sub.LastEventAt}},
			bson.M{"last_event_at": sub.LastEventAt, "status": bson.M{"$ne": models.SubscriptionStatusCanceled}},
		},
	}
}

func (s *MongoStore) IsEventProcessed(ctx context.Context, eventID string) (bool, error) {
	n, err := s.events().CountDocuments(ctx, bson.M{"_id": eventID})
	if err != nil {
		return false, fmt.Errorf("failed to look up event %s: %w", eventID, err)
	}
	return n > 0, nil
}

func (s *MongoStore) MarkEventProcessed(ctx context.Context, ev *models.ProcessedEvent) error {
	if _, err := s.events().InsertOne(ctx, ev); err != nil && !db.IsMongoDuplicateKeyError(err) {
		return fmt.Errorf("failed to record event %s: %w", ev.ID, err)
	}
	return nil
}
