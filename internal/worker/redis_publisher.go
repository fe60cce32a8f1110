package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/streetfix/resolve-service/internal/domain"
)

// DefaultChannelPrefix is used when no prefix is configured.
const DefaultChannelPrefix = "notifications"

// RealtimeMessage is the JSON pushed to a user's channel.
type RealtimeMessage struct {
	ID        string                  `json:"id"`
	Title     string                  `json:"title"`
	Body      string                  `json:"body"`
	Type      domain.NotificationType `json:"type"`
	TicketID  *string                 `json:"ticket_id,omitempty"`
	CreatedAt int64                   `json:"created_at"`
}

// RedisPublisher fans delivered notifications out over Redis Pub/Sub, one channel per user.
type RedisPublisher struct {
	client *redis.Client
	prefix string
}

// NewRedisPublisher creates a publisher. A nil client yields nil.
func NewRedisPublisher(client *redis.Client, prefix string) *RedisPublisher {
	if client == nil {
		return nil
	}
	if prefix == "" {
		prefix = DefaultChannelPrefix
	}
	return &RedisPublisher{client: client, prefix: prefix}
}

// Channel names the Pub/Sub channel of userID.
func (p *RedisPublisher) Channel(userID string) string {
	return p.prefix + ":" + userID
}

// Publish sends n to its recipient's channel.
func (p *RedisPublisher) Publish(ctx context.Context, n domain.Notification) error {
	created := n.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	data, err := json.Marshal(RealtimeMessage{
		ID:        n.ID,
		Title:     n.Title,
		Body:      n.Body,
		Type:      n.Type,
		TicketID:  n.TicketID,
		CreatedAt: created.Unix(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}
	if err := p.client.Publish(ctx, p.Channel(n.UserID), data).Err(); err != nil {
		return fmt.Errorf("failed to publish notification: %w", err)
	}
	return nil
}
