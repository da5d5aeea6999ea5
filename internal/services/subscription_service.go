package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/webhook"
	"go.uber.org/zap"

	"github.com/quoteajob/quoteajob/internal/apperr"
	"github.com/quoteajob/quoteajob/internal/metrics"
	"github.com/quoteajob/quoteajob/internal/models"
)

// Handled provider event types.
const (
	EventCheckoutCompleted   = "checkout.session.completed"
	EventSubscriptionUpdated = "customer.subscription.updated"
	EventSubscriptionDeleted = "customer.subscription.deleted"
)

// ISubscriptionService applies payment provider webhooks to subscription state.
// Delivery is at-least-once and unordered: duplicates and events older than the state
// already stored for the customer are acknowledged without effect.
type ISubscriptionService interface {
	// HandleWebhook verifies the signature and applies the event. It returns the outcome
	// label (ok, duplicate, stale, ignored).
	HandleWebhook(ctx context.Context, payload []byte, signature string) (string, error)
	ApplyEvent(ctx context.Context, event stripe.Event) (string, error)
}

type subscriptionStorage interface {
	GetProfile(ctx context.Context, userID string) (*models.User, error)
	GetSubscriptionByCustomer(ctx context.Context, customerID string) (*models.Subscription, error)
	ApplySubscriptionState(ctx context.Context, sub *models.Subscription) (bool, error)
	IsEventProcessed(ctx context.Context, eventID string) (bool, error)
	MarkEventProcessed(ctx context.Context, ev *models.ProcessedEvent) error
	SetSubscribed(ctx context.Context, userID string, subscribed bool) error
}

type subscriptionService struct {
	store     subscriptionStorage
	secret    string
	tolerance time.Duration
	logger    *zap.Logger
}

// NewSubscriptionService creates a new SubscriptionService.
func NewSubscriptionService(s subscriptionStorage, webhookSecret string, tolerance time.Duration, logger *zap.Logger) ISubscriptionService {
	return &subscriptionService{store: s, secret: webhookSecret, tolerance: tolerance, logger: logger}
}

func (s *subscriptionService) HandleWebhook(ctx context.Context, payload []byte, signature string) (string, error) {
	if s.secret == "" {
		return "", errors.New("webhook secret is not configured")
	}
	event, err := webhook.ConstructEventWithOptions(payload, signature, s.secret, webhook.ConstructEventOptions{
		Tolerance: s.tolerance,
		// The account may pin a different API version; only the fields read below matter.
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		metrics.WebhookEvents.WithLabelValues("unknown", metrics.OutcomeRejected).Inc()
		s.logger.Warn("webhook signature verification failed", zap.Error(err))
		return "", apperr.Wrap(apperr.KindInvalidInput, err, "Invalid signature")
	}
	return s.ApplyEvent(ctx, event)
}

func (s *subscriptionService) ApplyEvent(ctx context.Context, event stripe.Event) (string, error) {
	eventType := string(event.Type)
	outcome, err := s.apply(ctx, event)
	if err != nil {
		metrics.WebhookEvents.WithLabelValues(eventType, metrics.OutcomeError).Inc()
		s.logger.Error("webhook processing failed",
			zap.String("event_id", event.ID), zap.String("event_type", eventType), zap.Error(err))
		return "", err
	}
	metrics.WebhookEvents.WithLabelValues(eventType, outcome).Inc()
	s.logger.Info("webhook processed",
		zap.String("event_id", event.ID), zap.String("event_type", eventType), zap.String("outcome", outcome))
	return outcome, nil
}

func (s *subscriptionService) apply(ctx context.Context, event stripe.Event) (string, error) {
	seen, err := s.store.IsEventProcessed(ctx, event.ID)
	if err != nil {
		return "", err
	}
	if seen {
		return metrics.OutcomeDuplicate, nil
	}

	eventAt := time.Unix(event.Created, 0).UTC()
	var outcome string
	switch string(event.Type) {
	case EventCheckoutCompleted:
		outcome, err = s.checkoutCompleted(ctx, event, eventAt)
	case EventSubscriptionUpdated:
		outcome, err = s.subscriptionChanged(ctx, event, eventAt, false)
	case EventSubscriptionDeleted:
		outcome, err = s.subscriptionChanged(ctx, event, eventAt, true)
	default:
		outcome = metrics.OutcomeIgnored
	}
	if err != nil {
		return "", err
	}

	if err := s.store.MarkEventProcessed(ctx, &models.ProcessedEvent{
		ID:          event.ID,
		Type:        string(event.Type),
		ProcessedAt: time.Now().UTC(),
	}); err != nil {
		return "", err
	}
	return outcome, nil
}

func decodeObject(event stripe.Event, into interface{}) error {
	if event.Data == nil || len(event.Data.Raw) == 0 {
		return apperr.InvalidInput("event %s has no data object", event.ID)
	}
	if err := json.Unmarshal(event.Data.Raw, into); err != nil {
		return apperr.Wrap(apperr.KindInvalidInput, err, "malformed %s payload", event.Type)
	}
	return nil
}

func (s *subscriptionService) checkoutCompleted(ctx context.Context, event stripe.Event, eventAt time.Time) (string, error) {
	var session stripe.CheckoutSession
	if err := decodeObject(event, &session); err != nil {
		return "", err
	}
	userID := session.Metadata["userId"]
	if userID == "" || session.Customer == nil || session.Customer.ID == "" {
		s.logger.Warn("checkout session without user or customer", zap.String("event_id", event.ID))
		return metrics.OutcomeIgnored, nil
	}
	if _, err := s.store.GetProfile(ctx, userID); err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			s.logger.Warn("checkout session for unknown user",
				zap.String("event_id", event.ID), zap.String("user_id", userID))
			return metrics.OutcomeIgnored, nil
		}
		return "", err
	}

	sub := &models.Subscription{
		UserID:           userID,
		StripeCustomerID: session.Customer.ID,
		Status:           models.SubscriptionStatusActive,
		LastEventAt:      eventAt,
	}
	if session.Subscription != nil {
		sub.StripeSubscriptionID = session.Subscription.ID
	}
	applied, err := s.store.ApplySubscriptionState(ctx, sub)
	if err != nil {
		return "", err
	}
	if !applied {
		return metrics.OutcomeStale, nil
	}
	if err := s.store.SetSubscribed(ctx, userID, true); err != nil {
		return "", fmt.Errorf("failed to mark user %s subscribed: %w", userID, err)
	}
	return metrics.OutcomeOK, nil
}

func (s *subscriptionService) subscriptionChanged(ctx context.Context, event stripe.Event, eventAt time.Time, deleted bool) (string, error) {
	var stripeSub stripe.Subscription
	if err := decodeObject(event, &stripeSub); err != nil {
		return "", err
	}
	if stripeSub.Customer == nil || stripeSub.Customer.ID == "" {
		return metrics.OutcomeIgnored, nil
	}
	customerID := stripeSub.Customer.ID

	existing, err := s.store.GetSubscriptionByCustomer(ctx, customerID)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			s.logger.Warn("webhook for unknown customer",
				zap.String("event_id", event.ID), zap.String("customer_id", customerID))
			return metrics.OutcomeIgnored, nil
		}
		return "", err
	}

	status := string(stripeSub.Status)
	if deleted {
		status = models.SubscriptionStatusCanceled
	}
	applied, err := s.store.ApplySubscriptionState(ctx, &models.Subscription{
		StripeCustomerID:     customerID,
		StripeSubscriptionID: stripeSub.ID,
		Status:               status,
		LastEventAt:          eventAt,
	})
	if err != nil {
		return "", err
	}
	if !applied {
		return metrics.OutcomeStale, nil
	}
	active := status == models.SubscriptionStatusActive
	if err := s.store.SetSubscribed(ctx, existing.UserID, active); err != nil {
		return "", fmt.Errorf("failed to update subscription flag for user %s: %w", existing.UserID, err)
	}
	return metrics.OutcomeOK, nil
}
