// Package notify publishes push notification events for the notification
// service to deliver. Dispatch is fire-and-forget: reconciliation never
// waits on, or fails because of, this transport.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/brandlinkhq/payment-service/internal/config"
)

const pushChannel = "notifications:push"

// PushEvent is the payload consumed by the notification service.
type PushEvent struct {
	RecipientID uuid.UUID `json:"recipient_id"`
	DealID      int64     `json:"deal_id"`
	Title       string    `json:"title"`
	Body        string    `json:"body"`
	SentAt      time.Time `json:"sent_at"`
}

// RedisDispatcher publishes push events on a Redis channel.
type RedisDispatcher struct {
	client *redis.Client
	logger *zap.Logger
}

// NewRedisDispatcher connects to Redis and returns a dispatcher.
func NewRedisDispatcher(cfg config.RedisConfig, logger *zap.Logger) (*RedisDispatcher, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisDispatcher{
		client: client,
		logger: logger,
	}, nil
}

// DispatchPaymentReceived publishes one push event for an influencer on a
// freshly paid deal. Errors are returned for logging only; callers never
// propagate them.
func (d *RedisDispatcher) DispatchPaymentReceived(ctx context.Context, influencerID uuid.UUID, dealID int64, dealTitle string) error {
	event := PushEvent{
		RecipientID: influencerID,
		DealID:      dealID,
		Title:       "Payment received",
		Body:        fmt.Sprintf("The brand has paid for %q. You can start working on it now.", dealTitle),
		SentAt:      time.Now(),
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal push event: %w", err)
	}

	if err := d.client.Publish(ctx, pushChannel, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish push event: %w", err)
	}

	d.logger.Debug("Push event published",
		zap.String("recipient_id", influencerID.String()),
		zap.Int64("deal_id", dealID))

	return nil
}

// Close releases the Redis connection.
func (d *RedisDispatcher) Close() error {
	return d.client.Close()
}
