// Package postgres stores the credential record in a PostgreSQL table.
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sagarc03/stowfront"
)

type database struct {
	pool   *pgxpool.Pool
	tables stowfront.Tables
}

// Connect creates a connection pool. Tables should be validated before
// calling Connect.
func Connect(ctx context.Context, dsn string, tables stowfront.Tables) (*database, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	return &database{
		pool:   pool,
		tables: tables,
	}, nil
}

// Ping verifies the database connection is alive.
func (d *database) Ping(ctx context.Context) error {
	return d.pool.Ping(ctx)
}

// Migrate creates the credential table.
func (d *database) Migrate(ctx context.Context) error {
	if err := Migrate(ctx, d.pool, d.tables); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// Validate checks that the credential table has the expected columns.
func (d *database) Validate(ctx context.Context) error {
	return ValidateSchema(ctx, d.pool, d.tables)
}

// GetRepo returns the credential store backed by this database.
func (d *database) GetRepo() stowfront.CredentialStore {
	return newRepo(d.pool, d.tables.Credentials)
}

// Close closes the connection pool.
func (d *database) Close() error {
	d.pool.Close()
	return nil
}
