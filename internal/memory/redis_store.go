package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore implements Store interface using Redis.
// Each transcript is a list of JSON messages plus a metadata hash.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration // Transcript TTL (time to live)
}

// NewRedisStore creates a new Redis-backed transcript archive
func NewRedisStore(redisURL string, ttl time.Duration) (*RedisStore, error) {
	// Parse Redis URL
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opt)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisStore{
		client: client,
		ttl:    ttl,
	}, nil
}

// transcriptKey generates Redis key for a transcript
func transcriptKey(sessionID string) string {
	return fmt.Sprintf("transcript:%s", sessionID)
}

// metadataKey generates Redis key for a transcript's metadata hash
func metadataKey(sessionID string) string {
	return transcriptKey(sessionID) + ":meta"
}

// SaveMessages appends messages to a session transcript in one transaction and refreshes its TTL
func (r *RedisStore) SaveMessages(ctx context.Context, sessionID, topicName string, msgs ...Message) error {
	if len(msgs) == 0 {
		return nil
	}

	values := make([]any, 0, len(msgs))
	for _, msg := range msgs {
		data, err := json.Marshal(msg)
		if err != nil {
			return fmt.Errorf("failed to marshal transcript message: %w", err)
		}
		values = append(values, data)
	}

	list, meta := transcriptKey(sessionID), metadataKey(sessionID)
	last := msgs[len(msgs)-1].Timestamp.UTC().Format(time.RFC3339Nano)

	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, list, values...)
		pipe.HSetNX(ctx, meta, "topic_name", topicName)
		pipe.HSetNX(ctx, meta, "started_at", msgs[0].Timestamp.UTC().Format(time.RFC3339Nano))
		pipe.HSet(ctx, meta, "last_activity", last)
		if r.ttl > 0 {
			pipe.Expire(ctx, list, r.ttl)
			pipe.Expire(ctx, meta, r.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save transcript to Redis: %w", err)
	}
	return nil
}

// GetMessages retrieves all archived messages for a session
func (r *RedisStore) GetMessages(ctx context.Context, sessionID string) ([]Message, error) {
	items, err := r.client.LRange(ctx, transcriptKey(sessionID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load transcript from Redis: %w", err)
	}
	if len(items) == 0 {
		return nil, nil
	}

	messages := make([]Message, 0, len(items))
	for _, item := range items {
		var msg Message
		if err := json.Unmarshal([]byte(item), &msg); err != nil {
			return nil, fmt.Errorf("failed to parse transcript data: %w", err)
		}
		messages = append(messages, msg)
	}
	return messages, nil
}

// Ping verifies the Redis connection is alive
func (r *RedisStore) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close closes the Redis connection
func (r *RedisStore) Close() error {
	return r.client.Close()
}
