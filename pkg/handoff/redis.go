package handoff

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrNotFound is returned by Lookup for an unknown or expired design.
var ErrNotFound = errors.New("design summary not found")

// DefaultQueue is the list checkout consumers pop summaries from.
const DefaultQueue = "bangle:checkout"

// designTTL bounds how long a published summary stays retrievable by id.
const designTTL = 24 * time.Hour

// RedisPublisher pushes summaries onto a Redis list and keeps a copy
// under a per-design key.
type RedisPublisher struct {
	client *redis.Client
	queue  string
	prefix string
}

// NewRedisPublisher connects to redisURL and verifies the connection.
func NewRedisPublisher(redisURL, queue string) (*RedisPublisher, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return NewRedisPublisherWithClient(client, queue), nil
}

// NewRedisPublisherWithClient creates a publisher from an existing client.
// An empty queue selects DefaultQueue.
func NewRedisPublisherWithClient(client *redis.Client, queue string) *RedisPublisher {
	if queue == "" {
		queue = DefaultQueue
	}
	return &RedisPublisher{client: client, queue: queue, prefix: "bangle:design:"}
}

func (p *RedisPublisher) key(designID string) string {
	return p.prefix + designID
}

// Publish stores the summary under its design key and appends it to the
// checkout queue in one transaction.
func (p *RedisPublisher) Publish(ctx context.Context, s Summary) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal summary: %w", err)
	}
	_, err = p.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, p.key(s.DesignID), data, designTTL)
		pipe.RPush(ctx, p.queue, data)
		return nil
	})
	if err != nil {
		return fmt.Errorf("publish summary: %w", err)
	}
	return nil
}

// Lookup returns the last summary published for designID.
func (p *RedisPublisher) Lookup(ctx context.Context, designID string) (Summary, error) {
	data, err := p.client.Get(ctx, p.key(designID)).Result()
	if err == redis.Nil {
		return Summary{}, ErrNotFound
	}
	if err != nil {
		return Summary{}, fmt.Errorf("lookup summary: %w", err)
	}
	var s Summary
	if err := json.Unmarshal([]byte(data), &s); err != nil {
		return Summary{}, fmt.Errorf("unmarshal summary: %w", err)
	}
	return s, nil
}

// Close closes the Redis connection.
func (p *RedisPublisher) Close() error {
	return p.client.Close()
}

// Ping checks if Redis is reachable.
func (p *RedisPublisher) Ping(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}
