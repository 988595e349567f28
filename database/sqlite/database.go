// Package sqlite stores the credential record in a SQLite table.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/sagarc03/stowfront"

	_ "modernc.org/sqlite" // SQLite driver
)

// database provides SQLite database operations.
type database struct {
	db     *sql.DB
	tables stowfront.Tables
}

// Connect opens a SQLite database. Tables should be validated before
// calling Connect.
func Connect(ctx context.Context, dsn string, tables stowfront.Tables) (*database, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect sqlite: %w", err)
	}

	// an in-memory database lives only as long as its single connection
	db.SetMaxOpenConns(1)

	return &database{
		db:     db,
		tables: tables,
	}, nil
}

// Ping verifies the database connection is alive.
func (d *database) Ping(ctx context.Context) error {
	return d.db.PingContext(ctx)
}

// Migrate creates the credential table.
func (d *database) Migrate(ctx context.Context) error {
	if err := Migrate(ctx, d.db, d.tables); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// Validate checks that the credential table has the expected columns.
func (d *database) Validate(ctx context.Context) error {
	return ValidateSchema(ctx, d.db, d.tables)
}

// GetRepo returns the credential store backed by this database.
func (d *database) GetRepo() stowfront.CredentialStore {
	return newRepo(d.db, d.tables.Credentials)
}

// Close closes the database connection.
func (d *database) Close() error {
	return d.db.Close()
}
