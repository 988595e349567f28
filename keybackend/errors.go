package keybackend

import "errors"

var (
	// ErrKeyFileIncomplete is returned when a key file lacks the key id or the application key.
	ErrKeyFileIncomplete = errors.New("key file must set key_id and application_key")
	// ErrUnsupportedStore is returned for an unknown store type.
	ErrUnsupportedStore = errors.New("unsupported store type")
)
