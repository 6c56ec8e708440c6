// Package keystore defines the small key-value contract the token store and
// the settings repository persist through.
package keystore

import (
	"context"
	"errors"
	"regexp"
)

// ErrUnavailable is returned when the underlying storage cannot be used,
// e.g. a locked keystore or an unreachable server.
var ErrUnavailable = errors.New("keystore unavailable")

// ErrInvalidKey is returned for keys outside of [A-Za-z0-9_.-].
var ErrInvalidKey = errors.New("invalid keystore key")

// Keystore stores opaque values under string keys.
type Keystore interface {
	// Get returns serviceerr.ErrNotFound when nothing is stored under key.
	Get(ctx context.Context, key string) ([]byte, error)
	// Set replaces any value stored under key.
	Set(ctx context.Context, key string, value []byte) error
	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
}

var keyPattern = regexp.MustCompile(`^[A-Za-z0-9_.-]{1,128}$`)

// ValidateKey checks that key is usable by every backend.
func ValidateKey(key string) error {
	if !keyPattern.MatchString(key) {
		return ErrInvalidKey
	}

	return nil
}
