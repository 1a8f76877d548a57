package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/MrWwei/rag-agent/errors"
)

// RedisStore persists turns in Redis, one list per session.
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Addr     string        // Redis server address (e.g., "localhost:6379")
	Password string        // Redis password (if any)
	DB       int           // Redis database number
	Prefix   string        // Key prefix for namespacing
	TTL      time.Duration // Time-to-live per session (0 means no expiration)
}

// NewRedisStore creates a new Redis-backed session store.
func NewRedisStore(config *RedisConfig) *RedisStore {
	if config == nil {
		config = &RedisConfig{
			Addr:   "localhost:6379",
			Prefix: "medqa:session:",
		}
	}
	if config.Prefix == "" {
		config.Prefix = "medqa:session:"
	}

	client := redis.NewClient(&redis.Options{
		Addr:     config.Addr,
		Password: config.Password,
		DB:       config.DB,
	})

	return &RedisStore{
		client: client,
		prefix: config.Prefix,
		ttl:    config.TTL,
	}
}

func (s *RedisStore) key(sessionID string) string {
	return s.prefix + sessionID
}

// AppendTurn records a completed turn.
func (s *RedisStore) AppendTurn(ctx context.Context, turn *Turn) error {
	if turn == nil {
		return fmt.Errorf("turn cannot be nil: %w", errors.ErrInvalidInput)
	}
	if turn.SessionID == "" {
		return fmt.Errorf("turn session ID cannot be empty: %w", errors.ErrInvalidInput)
	}
	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = time.Now()
	}

	data, err := json.Marshal(turn)
	if err != nil {
		return fmt.Errorf("failed to marshal turn: %w", err)
	}

	key := s.key(turn.SessionID)
	if err := s.client.RPush(ctx, key, data).Err(); err != nil {
		return fmt.Errorf("failed to store turn in Redis: %w", err)
	}
	if s.ttl > 0 {
		if err := s.client.Expire(ctx, key, s.ttl).Err(); err != nil {
			return fmt.Errorf("failed to set session TTL: %w", err)
		}
	}
	return nil
}

// Turns returns the most recent turns of a session in chronological order.
func (s *RedisStore) Turns(ctx context.Context, sessionID string, limit int) ([]*Turn, error) {
	start := int64(0)
	if limit > 0 {
		start = int64(-limit)
	}

	values, err := s.client.LRange(ctx, s.key(sessionID), start, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read turns from Redis: %w", err)
	}

	turns := make([]*Turn, 0, len(values))
	for _, v := range values {
		var turn Turn
		if err := json.Unmarshal([]byte(v), &turn); err != nil {
			return nil, fmt.Errorf("failed to unmarshal turn: %w", err)
		}
		turns = append(turns, &turn)
	}
	return turns, nil
}

// Clear removes all turns of a session.
func (s *RedisStore) Clear(ctx context.Context, sessionID string) error {
	if err := s.client.Del(ctx, s.key(sessionID)).Err(); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	return nil
}

// Close closes the Redis connection.
func (s *RedisStore) Close(ctx context.Context) error {
	return s.client.Close()
}
