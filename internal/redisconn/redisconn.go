// Package redisconn builds go-redis clients from a URL and checks them once
// before handing them out.
package redisconn

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// PingTimeout bounds the startup connectivity check.
const PingTimeout = 5 * time.Second

// ErrURLRequired is returned when no redis URL was configured.
var ErrURLRequired = errors.New("redis url is required")

// Options parses a redis:// or rediss:// URL.
func Options(rawURL string) (*redis.Options, error) {
	if rawURL == "" {
		return nil, ErrURLRequired
	}

	opt, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	return opt, nil
}

// Connect creates a client and pings it. The client is closed again when the
// ping fails.
func Connect(ctx context.Context, rawURL string) (*redis.Client, error) {
	opts, err := Options(rawURL)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, PingTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return client, nil
}
