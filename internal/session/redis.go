package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/coverdeskhq/coverdesk/internal/models"
	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "coverdesk:session:"

// RedisStore persists sessions in Redis so multiple API replicas share
// session state. TTL handling is delegated to Redis key expiry.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore wraps an existing Redis client after verifying the
// connection.
func NewRedisStore(ctx context.Context, client *redis.Client) (*RedisStore, error) {
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("unable to ping redis: %w", err)
	}

	return &RedisStore{client: client}, nil
}

func (s *RedisStore) Load(ctx context.Context, id string) (*Session, error) {
	raw, err := s.client.Get(ctx, redisKeyPrefix+id).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("load session: %w", err)
	}

	var sess Session
	if err := json.Unmarshal(raw, &sess); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	return &sess, nil
}

func (s *RedisStore) Save(ctx context.Context, sess *Session, ttl time.Duration) error {
	raw, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}

	if err := s.client.Set(ctx, redisKeyPrefix+sess.ID, raw, ttl).Err(); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

func (s *RedisStore) Destroy(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, redisKeyPrefix+id).Err(); err != nil {
		return fmt.Errorf("destroy session: %w", err)
	}
	return nil
}
