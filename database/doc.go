// Package database connects the SQL credential stores.
//
// Both backends keep the credential record in a single key/value table
// (key, value, expires_at, updated_at) whose name is configurable.
//
// # Supported Backends
//
//   - PostgreSQL: shared store for several instances, using a pgx connection pool
//   - SQLite: single-node store using modernc.org/sqlite
//
// # Usage
//
//	cfg := database.Config{
//	    Type:   "sqlite",
//	    DSN:    "stowfront.db",
//	    Tables: stowfront.Tables{Credentials: "stowfront_credentials"},
//	}
//
//	db, err := database.Open(ctx, cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer db.Close()
//
//	manager := stowfront.NewCredentialManager(db.GetRepo(), client, policy)
//
// Connect only opens the connection. Open also pings, migrates and validates
// the schema.
package database
