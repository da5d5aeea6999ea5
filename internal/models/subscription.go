package models

import (
	"time"
)

const (
	SubscriptionStatusActive   = "active"
	SubscriptionStatusCanceled = "canceled"
)

// Subscription mirrors a payment provider subscription for a user.
// StripeCustomerID is unique.
type Subscription struct {
	ID                   string    `bson:"_id" json:"id"`
	UserID               string    `bson:"user_id" json:"user_id"`
	StripeCustomerID     string    `bson:"stripe_customer_id" json:"stripe_customer_id"`
	StripeSubscriptionID string    `bson:"stripe_subscription_id,omitempty" json:"stripe_subscription_id,omitempty"`
	Status               string    `bson:"status" json:"status"`
	LastEventAt          time.Time `bson:"last_event_at" json:"last_event_at"` // creation time of the newest applied provider event
	CreatedAt            time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt            time.Time `bson:"updated_at" json:"updated_at"`
}

// Active reports whether the subscription grants quoting rights.
func (s *Subscription) Active() bool {
	return s != nil && s.Status == SubscriptionStatusActive
}

// Supersedes reports whether s, built from a newer event, replaces the stored state.
// Provider event times have one second resolution, so within the same second a
// cancellation outranks every other status and is never overwritten.
func (s *Subscription) Supersedes(stored *Subscription) bool {
	if stored == nil {
		return true
	}
	if s.LastEventAt.Equal(stored.LastEventAt) {
		return s.Status == SubscriptionStatusCanceled || stored.Status != SubscriptionStatusCanceled
	}
	return s.LastEventAt.After(stored.LastEventAt)
}

// ProcessedEvent records a provider webhook event that has been applied.
type ProcessedEvent struct {
	ID          string    `bson:"_id" json:"id"`
	Type        string    `bson:"type" json:"type"`
	ProcessedAt time.Time `bson:"processed_at" json:"processed_at"`
}

// AdminStats aggregates marketplace counters for the admin dashboard.
type AdminStats struct {
	TotalUsers        int64   `json:"total_users"`
	TotalJobs         int64   `json:"total_jobs"`
	TotalQuotes       int64   `json:"total_quotes"`
	ActivePros        int64   `json:"active_pros"`
	AverageQuoteValue float64 `json:"average_quote_value"`
}
