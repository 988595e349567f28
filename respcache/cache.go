// Package respcache stores whole response snapshots for the request pipeline.
// Entries expire on their own according to the lifetime carried in the
// response's Cache-Control or Expires header; nothing deletes them explicitly.
package respcache

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// ErrMiss is returned by Match when no live entry exists for a key.
var ErrMiss = errors.New("cache miss")

// Snapshot is a buffered response.
type Snapshot struct {
	Status   int         `json:"status"`
	Header   http.Header `json:"header"`
	Body     []byte      `json:"body"`
	StoredAt time.Time   `json:"stored_at"`
}

// Cache is a shared response cache.
type Cache interface {
	// Match returns the snapshot stored under key, or ErrMiss.
	Match(ctx context.Context, key string) (Snapshot, error)
	// Put stores snap under key for ttl, superseding any previous entry.
	Put(ctx context.Context, key string, snap Snapshot, ttl time.Duration) error
	Close() error
}

// Config selects and configures a Cache implementation.
type Config struct {
	Type     string `mapstructure:"type" validate:"oneof=none memory redis"`
	Path     string `mapstructure:"path"`
	RedisURL string `mapstructure:"redis_url" validate:"required_if=Type redis"`
	Prefix   string `mapstructure:"prefix"`
}

// New builds the cache named by cfg.Type.
func New(ctx context.Context, cfg Config) (Cache, error) {
	switch cfg.Type {
	case "", "none":
		return Noop{}, nil
	case "memory":
		return NewMemory(cfg.Path)
	case "redis":
		return NewRedis(ctx, cfg.RedisURL, cfg.Prefix)
	default:
		return nil, fmt.Errorf("unsupported cache type: %s", cfg.Type)
	}
}

// TTL derives the cache lifetime of a response from its headers. no-store,
// no-cache and private responses get zero. max-age wins over Expires.
func TTL(h http.Header, now time.Time) time.Duration {
	if cc := h.Get("Cache-Control"); cc != "" {
		for _, directive := range strings.Split(cc, ",") {
			directive = strings.ToLower(strings.TrimSpace(directive))
			switch {
			case directive == "no-store", directive == "no-cache", directive == "private":
				return 0
			case strings.HasPrefix(directive, "s-maxage="), strings.HasPrefix(directive, "max-age="):
				_, v, _ := strings.Cut(directive, "=")
				secs, err := strconv.Atoi(v)
				if err != nil || secs <= 0 {
					return 0
				}
				return time.Duration(secs) * time.Second
			}
		}
	}

	if exp := h.Get("Expires"); exp != "" {
		t, err := http.ParseTime(exp)
		if err != nil {
			return 0
		}
		if d := t.Sub(now); d > 0 {
			return d
		}
	}

	return 0
}

// Noop never stores anything.
type Noop struct{}

func (Noop) Match(context.Context, string) (Snapshot, error) { return Snapshot{}, ErrMiss }

func (Noop) Put(context.Context, string, Snapshot, time.Duration) error { return nil }

func (Noop) Close() error { return nil }
