package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/coverdeskhq/coverdesk/internal/models"
	"github.com/redis/go-redis/v9"
)

const throttleKeyPrefix = "coverdesk:throttle:"

// RedisThrottleStore shares login-throttle state across API replicas.
type RedisThrottleStore struct {
	client *redis.Client
}

// NewRedisThrottleStore wraps an existing Redis client.
func NewRedisThrottleStore(client *redis.Client) *RedisThrottleStore {
	return &RedisThrottleStore{client: client}
}

func (s *RedisThrottleStore) Get(ctx context.Context, ip string) (*AttemptRecord, error) {
	raw, err := s.client.Get(ctx, throttleKeyPrefix+ip).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("get throttle record: %w", err)
	}

	var rec AttemptRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("decode throttle record: %w", err)
	}
	return &rec, nil
}

func (s *RedisThrottleStore) Put(ctx context.Context, ip string, rec *AttemptRecord, ttl time.Duration) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode throttle record: %w", err)
	}

	if err := s.client.Set(ctx, throttleKeyPrefix+ip, raw, ttl).Err(); err != nil {
		return fmt.Errorf("put throttle record: %w", err)
	}
	return nil
}

func (s *RedisThrottleStore) Delete(ctx context.Context, ip string) error {
	if err := s.client.Del(ctx, throttleKeyPrefix+ip).Err(); err != nil {
		return fmt.Errorf("delete throttle record: %w", err)
	}
	return nil
}
