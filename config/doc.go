// Package config provides configuration loading and validation for stowfront.
//
// The package handles YAML configuration files, environment variables, and CLI flags
// with automatic merging and validation using go-playground/validator.
//
// # Configuration Precedence
//
// Values are loaded in this order (later sources override earlier ones):
//
//  1. Default values
//  2. Configuration file(s) - multiple files merged left-to-right
//  3. Environment variables (STOWFRONT_ prefix)
//  4. CLI flags
//
// # Usage
//
//	cfg, err := config.Load([]string{"config.yaml"}, cmd.Flags())
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	// Store in context for subcommands
//	ctx = config.WithContext(ctx, cfg)
//
//	// Retrieve later
//	cfg, err = config.FromContext(ctx)
//
// # Environment Variables
//
// All config keys map to environment variables with STOWFRONT_ prefix:
//   - server.port → STOWFRONT_SERVER_PORT
//   - backend.application_key → STOWFRONT_BACKEND_APPLICATION_KEY
//   - store.type → STOWFRONT_STORE_TYPE
//
// # Configuration Structure
//
// The Config struct contains:
//   - Server: port, timeouts, canonical and alias hosts
//   - Backend: application key (inline or key_file), bucket, timeouts
//   - Credentials: staleness thresholds and the optional refresh interval
//   - Store: where the credential is persisted (sqlite, postgres, redis, file, memory)
//   - Cache: the shared response cache (none, memory, redis)
//   - CORS: optional cross-origin preflight handling
//   - Metrics: the prometheus listener
//   - Log: logging level
//
// # Validation
//
// Configuration is validated using struct tags plus two cross-field rules:
// table names must be valid identifiers, and
// stale_after < invalid_after < store_ttl.
package config
