package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/lumeworks/billing-reconciler/internal/usecase"
)

// RedisSink publishes notifications to a Redis channel where the
// notification service picks them up. Messages carry subscription and user
// identifiers only.
type RedisSink struct {
	client  *redis.Client
	channel string
}

// NewRedisSink connects to Redis and verifies the connection
func NewRedisSink(addr, password string, db int, channel string) (*RedisSink, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisSink{
		client:  client,
		channel: channel,
	}, nil
}

type notificationMessage struct {
	Kind           string    `json:"kind"`
	SubscriptionID int64     `json:"subscription_id"`
	UserID         string    `json:"user_id"`
	OccurredAt     time.Time `json:"occurred_at"`
}

// Deliver publishes one notification
func (s *RedisSink) Deliver(ctx context.Context, n usecase.Notification) error {
	payload, err := json.Marshal(notificationMessage{
		Kind:           string(n.Kind),
		SubscriptionID: n.SubscriptionID,
		UserID:         n.UserID.String(),
		OccurredAt:     time.Now(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	if err := s.client.Publish(ctx, s.channel, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish notification: %w", err)
	}

	return nil
}

// Close closes the Redis connection
func (s *RedisSink) Close() error {
	return s.client.Close()
}

// LogSink writes notifications to the log. Used when no Redis address is
// configured, typically in development.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink creates a logging sink
func NewLogSink(logger *zap.Logger) *LogSink {
	return &LogSink{logger: logger}
}

// Deliver logs one notification
func (s *LogSink) Deliver(_ context.Context, n usecase.Notification) error {
	s.logger.Info("Notification",
		zap.String("kind", string(n.Kind)),
		zap.Int64("subscription_id", n.SubscriptionID),
		zap.String("user_id", n.UserID.String()))
	return nil
}

// Close is a no-op
func (s *LogSink) Close() error {
	return nil
}
