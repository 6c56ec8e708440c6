// Package sealed encrypts the values of a keystore.Keystore so the
// underlying storage only ever sees ciphertext.
package sealed

import (
	"context"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"

	"github.com/openkcm/session-client/internal/keystore"
)

const (
	minMasterKeyLength = 32
	hkdfInfo           = "session-client keystore v1"
)

var (
	ErrMasterKeyTooShort = fmt.Errorf("master key must be at least %d bytes", minMasterKeyLength)
	ErrCorrupted         = errors.New("sealed value is corrupted")
)

// Keystore seals values with XChaCha20-Poly1305 before handing them to the
// wrapped keystore. The key name is bound as associated data.
type Keystore struct {
	next keystore.Keystore
	aead cipher.AEAD
}

var _ = keystore.Keystore(&Keystore{})

// New derives the data key from masterKey and salt with HKDF-SHA256.
func New(next keystore.Keystore, masterKey, salt []byte) (*Keystore, error) {
	if len(masterKey) < minMasterKeyLength {
		return nil, ErrMasterKeyTooShort
	}

	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, masterKey, salt, []byte(hkdfInfo)), key); err != nil {
		return nil, fmt.Errorf("deriving data key: %w", err)
	}

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("creating cipher: %w", err)
	}

	return &Keystore{next: next, aead: aead}, nil
}

func (k *Keystore) Get(ctx context.Context, key string) ([]byte, error) {
	sealedValue, err := k.next.Get(ctx, key)
	if err != nil {
		return nil, err
	}

	nonceSize := k.aead.NonceSize()
	if len(sealedValue) < nonceSize+k.aead.Overhead() {
		return nil, ErrCorrupted
	}

	value, err := k.aead.Open(nil, sealedValue[:nonceSize], sealedValue[nonceSize:], []byte(key))
	if err != nil {
		return nil, errors.Join(ErrCorrupted, err)
	}

	return value, nil
}

func (k *Keystore) Set(ctx context.Context, key string, value []byte) error {
	nonce := make([]byte, k.aead.NonceSize(), k.aead.NonceSize()+len(value)+k.aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return errors.Join(keystore.ErrUnavailable, fmt.Errorf("reading nonce: %w", err))
	}

	return k.next.Set(ctx, key, k.aead.Seal(nonce, nonce, value, []byte(key)))
}

func (k *Keystore) Delete(ctx context.Context, key string) error {
	return k.next.Delete(ctx, key)
}
