// Package token persists the single bearer token of the client.
package token

import (
	"context"
	"errors"
	"strings"

	slogctx "github.com/veqryn/slog-context"

	"github.com/openkcm/session-client/internal/keystore"
	"github.com/openkcm/session-client/internal/serviceerr"
)

// Key is the keystore entry holding the bearer token.
const Key = "auth_token"

// Store owns the session token. At most one token is persisted; an absent
// entry means unauthenticated.
type Store struct {
	keystore keystore.Keystore
}

func NewStore(ks keystore.Keystore) *Store {
	return &Store{keystore: ks}
}

// Store replaces any previously stored token.
func (s *Store) Store(ctx context.Context, token string) error {
	if strings.TrimSpace(token) == "" {
		return serviceerr.Validation("Token must not be empty")
	}

	if err := s.keystore.Set(ctx, Key, []byte(token)); err != nil {
		return serviceerr.Storage(err)
	}

	return nil
}

// Retrieve returns the stored token. Storage failures are logged and
// reported as no token.
func (s *Store) Retrieve(ctx context.Context) (string, bool) {
	value, err := s.keystore.Get(ctx, Key)
	if err != nil {
		if !errors.Is(err, serviceerr.ErrNotFound) {
			slogctx.Warn(ctx, "Could not read the session token", "error", err)
		}
		return "", false
	}

	if len(value) == 0 {
		return "", false
	}

	return string(value), true
}

// Clear removes the stored token. Clearing an empty store succeeds.
func (s *Store) Clear(ctx context.Context) error {
	if err := s.keystore.Delete(ctx, Key); err != nil && !errors.Is(err, serviceerr.ErrNotFound) {
		return serviceerr.Storage(err)
	}

	return nil
}
