package stowfront

import (
	"errors"
	"fmt"
	"regexp"
	"time"
)

// Credential is the renewable token set needed to call the backend's
// authenticated APIs. It is replaced as a whole on refresh, never mutated.
type Credential struct {
	APIURL             string    `json:"apiUrl"`
	DownloadURL        string    `json:"downloadUrl"`
	AuthorizationToken string    `json:"authorizationToken"`
	BucketID           string    `json:"bucketId"`
	IssuedAt           time.Time `json:"issuedAt"`
}

// IsZero reports whether c carries no usable token.
func (c Credential) IsZero() bool {
	return c.AuthorizationToken == "" || c.APIURL == "" || c.DownloadURL == ""
}

// Tier classifies a cached credential by age.
type Tier int

const (
	TierFresh Tier = iota
	TierStale
	TierInvalid
)

func (t Tier) String() string {
	switch t {
	case TierFresh:
		return "fresh"
	case TierStale:
		return "stale"
	default:
		return "invalid"
	}
}

// Tables holds configurable table names for credential storage.
type Tables struct {
	Credentials string `mapstructure:"credentials"`
}

var validTableNameRegex = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// IsValidTableName checks if a table name is valid (lowercase, alphanumeric with underscores, max 63 chars).
func IsValidTableName(name string) bool {
	return validTableNameRegex.MatchString(name) && len(name) <= 63
}

// Validate checks that all required table names are set and valid.
func (t Tables) Validate() error {
	if t.Credentials == "" {
		return errors.New("validate tables: credentials table name cannot be empty")
	}

	if !IsValidTableName(t.Credentials) {
		return fmt.Errorf("validate tables: invalid credentials table name: %s (must match ^[a-z_][a-z0-9_]*$ and be <= 63 chars)", t.Credentials)
	}

	return nil
}
