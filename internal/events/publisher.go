package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/quoteajob/quoteajob/internal/models"
)

const (
	// QuotesChannel carries quote events for live job pages.
	QuotesChannel = "quotes.events"

	TypeQuoteSubmitted = "QUOTE_SUBMITTED"
)

// QuoteSubmitted is published after a quote commits.
type QuoteSubmitted struct {
	Type         string             `json:"type"`
	JobID        string             `json:"job_id"`
	JobOwnerID   string             `json:"job_owner_id"`
	QuoteID      string             `json:"quote_id"`
	ProID        string             `json:"pro_id"`
	Amount       float64            `json:"amount"`
	Status       models.QuoteStatus `json:"status"`
	AverageQuote float64            `json:"average_quote"`
	OccurredAt   time.Time          `json:"occurred_at"`
}

// Publisher fans quote events out over Redis pub/sub.
type Publisher struct {
	rdb *redis.Client
}

func NewPublisher(rdb *redis.Client) *Publisher {
	return &Publisher{rdb: rdb}
}

// QuoteSubmitted publishes the event for a committed quote.
func (p *Publisher) QuoteSubmitted(ctx context.Context, job *models.Job, quote *models.Quote, average float64) error {
	payload, err := json.Marshal(QuoteSubmitted{
		Type:         TypeQuoteSubmitted,
		JobID:        job.ID,
		JobOwnerID:   job.UserID,
		QuoteID:      quote.ID,
		ProID:        quote.ProID,
		Amount:       quote.Amount,
		Status:       quote.Status,
		AverageQuote: average,
		OccurredAt:   time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", TypeQuoteSubmitted, err)
	}
	if err := p.rdb.Publish(ctx, QuotesChannel, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish %s: %w", TypeQuoteSubmitted, err)
	}
	return nil
}
