package notification

import (
	model "auction-engine/internal/models"
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisPublisher publishes notifications as JSON on a per-user channel
// (user:<id>) for websocket or push gateways to pick up
type RedisPublisher struct {
	client *redis.Client
	prefix string
}

// NewRedisPublisher creates a publisher on an existing client
func NewRedisPublisher(client *redis.Client) *RedisPublisher {
	return &RedisPublisher{client: client, prefix: "user:"}
}

// Channel returns the pub/sub channel for userID
func (p *RedisPublisher) Channel(userID string) string {
	return p.prefix + userID
}

// Notify publishes n to the user's channel
func (p *RedisPublisher) Notify(ctx context.Context, n model.Notification) error {
	body, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}
	if err := p.client.Publish(ctx, p.Channel(n.UserID), body).Err(); err != nil {
		return fmt.Errorf("publish notification to %s: %w", p.Channel(n.UserID), err)
	}
	return nil
}
