package email

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const mockEmailTTL = 5 * time.Minute

// MockEmailKey is where RedisSender stores the last message of a kind sent to an address.
func MockEmailKey(to, kind string) string {
	return fmt.Sprintf("mockemail:%s:%s", to, kind)
}

// RedisSender stores emails in Redis instead of sending them, so integration tests can read
// them back through the service API.
type RedisSender struct {
	client *redis.Client
	from   string
	logger *zap.Logger
}

func NewRedisSender(client *redis.Client, from string, logger *zap.Logger) *RedisSender {
	return &RedisSender{client: client, from: from, logger: logger}
}

func (s *RedisSender) Send(ctx context.Context, to []string, subject string, rawMessage []byte) error {
	primaryTo := ""
	if len(to) > 0 {
		primaryTo = to[0]
	}
	kind := KindOf(subject)

	jsonData, err := json.Marshal(map[string]string{
		"to":      strings.Join(to, ", "),
		"from":    s.from,
		"subject": subject,
		"body":    string(rawMessage),
		"sent_at": time.Now().UTC().Format(time.RFC3339Nano),
		"kind":    kind,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal email data: %w", err)
	}

	key := MockEmailKey(primaryTo, kind)
	if err := s.client.Set(ctx, key, jsonData, mockEmailTTL).Err(); err != nil {
		return fmt.Errorf("failed to store email in Redis key '%s': %w", key, err)
	}
	s.logger.Debug("mock email stored", zap.String("key", key), zap.String("subject", subject))
	return nil
}
