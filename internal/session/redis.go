package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	redisChangeChannel = "practice:identity-changes"
	redisRevokedPrefix = "practice:revoked:"
)

// NewRedisClient connects to Redis and verifies the connection.
func NewRedisClient(ctx context.Context, address, password string, db int) (*redis.Client, error) {
	if strings.TrimSpace(address) == "" {
		return nil, errors.New("redis address is required")
	}
	client := redis.NewClient(&redis.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return client, nil
}

// RedisBus relays changes through Redis pub/sub so every server instance
// notifies its own subscribers.
type RedisBus struct {
	client   *redis.Client
	pubsub   *redis.PubSub
	notifier *Notifier
	logger   *zap.Logger
	done     chan struct{}
}

// NewRedisBus subscribes to the change channel and forwards every message
// to notifier until Close is called.
func NewRedisBus(ctx context.Context, client *redis.Client, notifier *Notifier, logger *zap.Logger) (*RedisBus, error) {
	pubsub := client.Subscribe(ctx, redisChangeChannel)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", redisChangeChannel, err)
	}

	b := &RedisBus{
		client:   client,
		pubsub:   pubsub,
		notifier: notifier,
		logger:   logger,
		done:     make(chan struct{}),
	}
	go b.run()
	return b, nil
}

func (b *RedisBus) run() {
	defer close(b.done)
	for msg := range b.pubsub.Channel() {
		var change Change
		if err := json.Unmarshal([]byte(msg.Payload), &change); err != nil {
			b.logger.Warn("dropping malformed identity change", zap.Error(err))
			continue
		}
		b.notifier.Notify(change)
	}
}

func (b *RedisBus) Publish(ctx context.Context, change Change) error {
	payload, err := json.Marshal(change)
	if err != nil {
		return err
	}
	return b.client.Publish(ctx, redisChangeChannel, payload).Err()
}

// Close unsubscribes and waits for the relay loop to drain.
func (b *RedisBus) Close() error {
	err := b.pubsub.Close()
	<-b.done
	return err
}

// RedisRevoker keeps revoked token ids as expiring Redis keys.
type RedisRevoker struct {
	client *redis.Client
}

func NewRedisRevoker(client *redis.Client) *RedisRevoker {
	return &RedisRevoker{client: client}
}

func (r *RedisRevoker) Revoke(ctx context.Context, tokenID string, until time.Time) error {
	ttl := time.Until(until)
	if ttl <= 0 {
		return nil
	}
	return r.client.Set(ctx, redisRevokedPrefix+tokenID, "1", ttl).Err()
}

func (r *RedisRevoker) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	n, err := r.client.Exists(ctx, redisRevokedPrefix+tokenID).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
