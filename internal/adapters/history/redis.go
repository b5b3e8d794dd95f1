package history

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/0xcro3dile/ragchat-go/internal/domain/entities"
)

// RedisOptions configuration for Redis connection
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	Prefix   string        // Key prefix, default "ragchat:"
	TTL      time.Duration // Expiration of idle transcripts, default 0 (no expiration)
}

// RedisStore keeps each transcript in a Redis list of JSON turns.
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisStore creates a new Redis history store
func NewRedisStore(opts RedisOptions) *RedisStore {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	prefix := opts.Prefix
	if prefix == "" {
		prefix = "ragchat:"
	}

	return &RedisStore{
		client: client,
		prefix: prefix,
		ttl:    opts.TTL,
	}
}

func (s *RedisStore) historyKey(sessionID string) string {
	return fmt.Sprintf("%shistory:%s", s.prefix, sessionID)
}

// Ping checks the connection.
func (s *RedisStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to reach redis: %w", err)
	}
	return nil
}

// Append adds turns in one transaction, so a pair is never split.
func (s *RedisStore) Append(ctx context.Context, sessionID string, turns ...entities.Turn) error {
	if len(turns) == 0 {
		return nil
	}

	values := make([]any, len(turns))
	for i, t := range turns {
		data, err := json.Marshal(t)
		if err != nil {
			return fmt.Errorf("failed to marshal turn: %w", err)
		}
		values[i] = data
	}

	key := s.historyKey(sessionID)
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, key, values...)
		if s.ttl > 0 {
			pipe.Expire(ctx, key, s.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to append history to redis: %w", err)
	}
	return nil
}

// Load returns the session's turns in conversational order.
func (s *RedisStore) Load(ctx context.Context, sessionID string) ([]entities.Turn, error) {
	items, err := s.client.LRange(ctx, s.historyKey(sessionID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load history from redis: %w", err)
	}

	turns := make([]entities.Turn, len(items))
	for i, item := range items {
		if err := json.Unmarshal([]byte(item), &turns[i]); err != nil {
			return nil, fmt.Errorf("failed to unmarshal turn %d: %w", i, err)
		}
	}
	return turns, nil
}

// Delete drops the transcript.
func (s *RedisStore) Delete(ctx context.Context, sessionID string) error {
	if err := s.client.Del(ctx, s.historyKey(sessionID)).Err(); err != nil {
		return fmt.Errorf("failed to delete history from redis: %w", err)
	}
	return nil
}

// Close closes the Redis client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
