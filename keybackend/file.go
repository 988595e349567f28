package keybackend

import (
	"encoding/json"
	"fmt"
	"os"
)

// KeyPair is a backend application key.
type KeyPair struct {
	KeyID          string `json:"key_id" mapstructure:"key_id"`
	ApplicationKey string `json:"application_key" mapstructure:"application_key"`
}

// IsZero reports whether neither half of the pair is set.
func (p KeyPair) IsZero() bool {
	return p.KeyID == "" && p.ApplicationKey == ""
}

// LoadKeyFile reads an application key from a JSON file, keeping the secret
// out of the main config file:
//
//	{"key_id": "0012ab...", "application_key": "K001..."}
func LoadKeyFile(path string) (KeyPair, error) {
	data, err := os.ReadFile(path) //nolint:gosec // Path is from trusted config file
	if err != nil {
		return KeyPair{}, fmt.Errorf("read key file: %w", err)
	}

	var pair KeyPair
	if err := json.Unmarshal(data, &pair); err != nil {
		return KeyPair{}, fmt.Errorf("parse key file: %w", err)
	}

	if pair.KeyID == "" || pair.ApplicationKey == "" {
		return KeyPair{}, fmt.Errorf("parse key file %s: %w", path, ErrKeyFileIncomplete)
	}

	return pair, nil
}

// ResolveKey returns the pair from path when set, otherwise inline. A file
// replaces the inline pair as a whole.
func ResolveKey(inline KeyPair, path string) (KeyPair, error) {
	if path == "" {
		return inline, nil
	}
	return LoadKeyFile(path)
}
