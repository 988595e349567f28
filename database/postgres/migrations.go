package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sagarc03/stowfront"
)

// Migrate creates the credential table if it does not exist.
func Migrate(ctx context.Context, pool *pgxpool.Pool, tables stowfront.Tables) error {
	if err := createCredentialTable(ctx, pool, tables.Credentials); err != nil {
		return fmt.Errorf("migrate up %s: %w", tables.Credentials, err)
	}
	return nil
}

// DropTables removes the credential table.
func DropTables(ctx context.Context, pool *pgxpool.Pool, tables stowfront.Tables) error {
	sql := fmt.Sprintf("DROP TABLE IF EXISTS %s", pgx.Identifier{tables.Credentials}.Sanitize())
	if _, err := pool.Exec(ctx, sql); err != nil {
		return fmt.Errorf("migrate down %s: %w", tables.Credentials, err)
	}
	return nil
}

func createCredentialTable(ctx context.Context, pool *pgxpool.Pool, tableName string) error {
	sql := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			expires_at TIMESTAMPTZ,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`, pgx.Identifier{tableName}.Sanitize())

	if _, err := pool.Exec(ctx, sql); err != nil {
		return fmt.Errorf("create credential table: %w", err)
	}
	return nil
}
