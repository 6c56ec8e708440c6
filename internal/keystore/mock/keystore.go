package keystoremock

import (
	"context"
	"sync"

	"github.com/openkcm/session-client/internal/keystore"
	"github.com/openkcm/session-client/internal/serviceerr"
)

type KeystoreOption func(*Keystore)

// Keystore is an in-memory keystore.Keystore with error injection.
type Keystore struct {
	mu     sync.Mutex
	values map[string][]byte

	getErr, setErr, deleteErr error

	gets, sets, deletes int
}

var _ = keystore.Keystore(&Keystore{})

func WithValue(key string, value []byte) KeystoreOption {
	return func(k *Keystore) { k.values[key] = append([]byte(nil), value...) }
}
func WithGetError(err error) KeystoreOption {
	return func(k *Keystore) { k.getErr = err }
}
func WithSetError(err error) KeystoreOption {
	return func(k *Keystore) { k.setErr = err }
}
func WithDeleteError(err error) KeystoreOption {
	return func(k *Keystore) { k.deleteErr = err }
}

func NewInMemKeystore(opts ...KeystoreOption) *Keystore {
	k := &Keystore{
		values: make(map[string][]byte),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(k)
		}
	}
	return k
}

func (k *Keystore) Get(_ context.Context, key string) ([]byte, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	k.gets++
	if k.getErr != nil {
		return nil, k.getErr
	}
	v, ok := k.values[key]
	if !ok {
		return nil, serviceerr.ErrNotFound
	}
	return append([]byte(nil), v...), nil
}

func (k *Keystore) Set(_ context.Context, key string, value []byte) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	k.sets++
	if k.setErr != nil {
		return k.setErr
	}
	k.values[key] = append([]byte(nil), value...)
	return nil
}

func (k *Keystore) Delete(_ context.Context, key string) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	k.deletes++
	if k.deleteErr != nil {
		return k.deleteErr
	}
	delete(k.values, key)
	return nil
}

// Raw returns the stored bytes for key as they were written.
func (k *Keystore) Raw(key string) ([]byte, bool) {
	k.mu.Lock()
	defer k.mu.Unlock()

	v, ok := k.values[key]
	return v, ok
}

// Calls returns how many times Get, Set and Delete were invoked.
func (k *Keystore) Calls() (gets, sets, deletes int) {
	k.mu.Lock()
	defer k.mu.Unlock()

	return k.gets, k.sets, k.deletes
}
