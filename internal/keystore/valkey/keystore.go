// Package keystorevalkey stores keystore values in Valkey, for deployments
// where the client runs on a host without a local keystore.
package keystorevalkey

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/valkey-io/valkey-go"

	"github.com/openkcm/session-client/internal/keystore"
	"github.com/openkcm/session-client/internal/serviceerr"
)

const objectType = "keystore"

type Keystore struct {
	valkey valkey.Client
	prefix string
	ttl    time.Duration
}

var _ = keystore.Keystore(&Keystore{})

// NewKeystore creates a keystore writing keys as <prefix>:keystore:<key>.
// A zero ttl stores values without expiration.
func NewKeystore(valkeyClient valkey.Client, prefix string, ttl time.Duration) *Keystore {
	prefix = strings.TrimSuffix(prefix, ":")
	return &Keystore{
		valkey: valkeyClient,
		prefix: prefix,
		ttl:    ttl,
	}
}

func (k *Keystore) Get(ctx context.Context, key string) ([]byte, error) {
	if err := keystore.ValidateKey(key); err != nil {
		return nil, err
	}

	bytes, err := k.valkey.Do(ctx, k.valkey.B().Get().Key(k.key(key)).Build()).AsBytes()
	if err != nil {
		valkeyErr, ok := valkey.IsValkeyErr(err)
		if ok && valkeyErr.IsNil() {
			return nil, errors.Join(valkeyErr, serviceerr.ErrNotFound)
		}

		return nil, errors.Join(keystore.ErrUnavailable, fmt.Errorf("executing get command: %w", err))
	}

	return bytes, nil
}

func (k *Keystore) Set(ctx context.Context, key string, value []byte) error {
	if err := keystore.ValidateKey(key); err != nil {
		return err
	}

	var cmd valkey.Completed
	if k.ttl > 0 {
		cmd = k.valkey.B().Set().Key(k.key(key)).Value(valkey.BinaryString(value)).PxMilliseconds(k.ttl.Milliseconds()).Build()
	} else {
		cmd = k.valkey.B().Set().Key(k.key(key)).Value(valkey.BinaryString(value)).Build()
	}

	if err := k.valkey.Do(ctx, cmd).Error(); err != nil {
		return errors.Join(keystore.ErrUnavailable, fmt.Errorf("executing set command: %w", err))
	}

	return nil
}

func (k *Keystore) Delete(ctx context.Context, key string) error {
	if err := keystore.ValidateKey(key); err != nil {
		return err
	}

	if err := k.valkey.Do(ctx, k.valkey.B().Del().Key(k.key(key)).Build()).Error(); err != nil {
		return errors.Join(keystore.ErrUnavailable, fmt.Errorf("executing del command: %w", err))
	}

	return nil
}

func (k *Keystore) key(key string) string {
	if k.prefix == "" {
		return fmt.Sprintf("%s:%s", objectType, key)
	}

	return fmt.Sprintf("%s:%s:%s", k.prefix, objectType, key)
}
