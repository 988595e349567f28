package keybackend

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sagarc03/stowfront"
	"github.com/sagarc03/stowfront/internal/redisconn"
)

// DefaultRedisPrefix namespaces credential keys in a shared redis.
const DefaultRedisPrefix = "stowfront:cred:"

// RedisStore shares the credential between processes through redis. Expiry
// is left to redis.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore connects to rawURL and pings it.
func NewRedisStore(ctx context.Context, rawURL, prefix string) (*RedisStore, error) {
	client, err := redisconn.Connect(ctx, rawURL)
	if err != nil {
		return nil, fmt.Errorf("credential store: %w", err)
	}
	return NewRedisStoreFromClient(client, prefix), nil
}

// NewRedisStoreFromClient wraps an existing client.
func NewRedisStoreFromClient(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	value, err := s.client.Get(ctx, s.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, stowfront.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}
	return value, nil
}

func (s *RedisStore) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	if err := s.client.Set(ctx, s.prefix+key, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
