package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sagarc03/stowfront"
)

// Repo is a stowfront.CredentialStore on a PostgreSQL table.
type Repo struct {
	pool      *pgxpool.Pool
	tableName string
	now       func() time.Time
}

func newRepo(pool *pgxpool.Pool, tableName string) *Repo {
	return &Repo{pool: pool, tableName: tableName, now: time.Now}
}

// NewRepo creates a Repo on an already migrated database.
func NewRepo(pool *pgxpool.Pool, tables stowfront.Tables) (*Repo, error) {
	if err := tables.Validate(); err != nil {
		return nil, fmt.Errorf("new repo: %w", err)
	}
	return newRepo(pool, tables.Credentials), nil
}

// Ping verifies database connectivity
func (r *Repo) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

// Get returns the live value under key.
func (r *Repo) Get(ctx context.Context, key string) ([]byte, error) {
	query := fmt.Sprintf(`
		SELECT value
		FROM %s
		WHERE key = $1 AND (expires_at IS NULL OR expires_at > $2)
	`, pgx.Identifier{r.tableName}.Sanitize())

	var value string
	if err := r.pool.QueryRow(ctx, query, key, r.now()).Scan(&value); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, stowfront.ErrNotFound
		}
		return nil, fmt.Errorf("get: %w", err)
	}

	return []byte(value), nil
}

// Put upserts value under key. A ttl of zero or less stores it without expiry.
func (r *Repo) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	now := r.now()

	var expiresAt *time.Time
	if ttl > 0 {
		exp := now.Add(ttl)
		expiresAt = &exp
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (key, value, expires_at, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (key) DO UPDATE
		SET value = EXCLUDED.value,
			expires_at = EXCLUDED.expires_at,
			updated_at = EXCLUDED.updated_at
	`, pgx.Identifier{r.tableName}.Sanitize())

	if _, err := r.pool.Exec(ctx, query, key, string(value), expiresAt, now); err != nil {
		return fmt.Errorf("put: %w", err)
	}
	return nil
}
