package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"bugx/internal/config"
	"bugx/internal/retry"
)

// Publisher is the part of a Redis client RedisNotifier uses
type Publisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// RedisNotifier publishes notifications as JSON on a Redis channel
type RedisNotifier struct {
	client  Publisher
	channel string
}

// NewRedisNotifier creates a notifier publishing through client
func NewRedisNotifier(client Publisher, channel string) *RedisNotifier {
	return &RedisNotifier{client: client, channel: channel}
}

// NewRedisClient connects to the configured Redis server, retrying the first
// ping a few times while the server comes up
func NewRedisClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ping := func(ctx context.Context) error {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		return rdb.Ping(pingCtx).Err()
	}
	policy := retry.DefaultConfig()
	policy.InitialDelay = 200 * time.Millisecond
	if err := retry.New(policy).Do(ctx, ping).Err; err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return rdb, nil
}

// Channel is the channel notifications are published on
func (r *RedisNotifier) Channel() string {
	return r.channel
}

// Notify publishes n
func (r *RedisNotifier) Notify(ctx context.Context, n Notification) error {
	payload, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("failed to encode notification: %w", err)
	}
	if err := r.client.Publish(ctx, r.channel, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish notification to %s: %w", r.channel, err)
	}
	return nil
}
