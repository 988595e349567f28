package respcache

import (
	"context"
	"crypto/sha1" //#nosec G505 -- key hashing, not security
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sagarc03/stowfront/internal/redisconn"
)

// DefaultRedisPrefix namespaces response entries in a shared redis.
const DefaultRedisPrefix = "stowfront:resp:"

// Redis stores snapshots in redis so several front processes share one cache.
type Redis struct {
	client *redis.Client
	prefix string
}

// NewRedis connects to rawURL and pings it.
func NewRedis(ctx context.Context, rawURL, prefix string) (*Redis, error) {
	client, err := redisconn.Connect(ctx, rawURL)
	if err != nil {
		return nil, fmt.Errorf("response cache: %w", err)
	}
	return NewRedisFromClient(client, prefix), nil
}

// NewRedisFromClient wraps an existing client.
func NewRedisFromClient(client *redis.Client, prefix string) *Redis {
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &Redis{client: client, prefix: prefix}
}

// redisKey maps a request identity to a fixed-length key.
func (r *Redis) redisKey(key string) string {
	sum := sha1.Sum([]byte(key)) //#nosec G401
	return r.prefix + hex.EncodeToString(sum[:])
}

func (r *Redis) Match(ctx context.Context, key string) (Snapshot, error) {
	payload, err := r.client.Get(ctx, r.redisKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Snapshot{}, ErrMiss
	}
	if err != nil {
		return Snapshot{}, fmt.Errorf("redis get failed: %w", err)
	}

	var snap Snapshot
	if err := json.Unmarshal(payload, &snap); err != nil {
		return Snapshot{}, fmt.Errorf("decode cached response: %w", err)
	}
	return snap, nil
}

func (r *Redis) Put(ctx context.Context, key string, snap Snapshot, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}

	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode cached response: %w", err)
	}

	if err := r.client.Set(ctx, r.redisKey(key), payload, ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (r *Redis) Close() error {
	return r.client.Close()
}
