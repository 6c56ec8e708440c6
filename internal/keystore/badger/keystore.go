// Package keystorebadger persists keystore values in an embedded Badger
// database on the local device.
package keystorebadger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dgraph-io/badger/v3"

	slogctx "github.com/veqryn/slog-context"

	"github.com/openkcm/session-client/internal/keystore"
	"github.com/openkcm/session-client/internal/serviceerr"
)

type Keystore struct {
	db *badger.DB
}

var _ = keystore.Keystore(&Keystore{})

// Open opens (or creates) the database in dir. An empty dir opens an
// in-memory database.
func Open(ctx context.Context, dir string) (*Keystore, error) {
	opts := badger.DefaultOptions(dir)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	opts.Logger = &badgerLogger{ctx: ctx}
	opts.SyncWrites = true

	db, err := badger.Open(opts)
	if err != nil {
		return nil, errors.Join(keystore.ErrUnavailable, fmt.Errorf("opening badger database: %w", err))
	}

	return &Keystore{db: db}, nil
}

func (k *Keystore) Get(_ context.Context, key string) ([]byte, error) {
	if err := keystore.ValidateKey(key); err != nil {
		return nil, err
	}

	var value []byte
	err := k.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}

		value, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, serviceerr.ErrNotFound
	}
	if err != nil {
		return nil, errors.Join(keystore.ErrUnavailable, fmt.Errorf("reading key %q: %w", key, err))
	}

	return value, nil
}

func (k *Keystore) Set(_ context.Context, key string, value []byte) error {
	if err := keystore.ValidateKey(key); err != nil {
		return err
	}

	err := k.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), value)
	})
	if err != nil {
		return errors.Join(keystore.ErrUnavailable, fmt.Errorf("writing key %q: %w", key, err))
	}

	return nil
}

func (k *Keystore) Delete(_ context.Context, key string) error {
	if err := keystore.ValidateKey(key); err != nil {
		return err
	}

	err := k.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
	if err != nil {
		return errors.Join(keystore.ErrUnavailable, fmt.Errorf("deleting key %q: %w", key, err))
	}

	return nil
}

func (k *Keystore) Close() error {
	return k.db.Close()
}

// badgerLogger routes Badger's internal logging to slog. Info and debug
// output is demoted to debug.
type badgerLogger struct {
	ctx context.Context
}

func (l *badgerLogger) Errorf(format string, args ...any) {
	slogctx.Error(l.ctx, fmt.Sprintf(format, args...), slog.String("component", "badger"))
}

func (l *badgerLogger) Warningf(format string, args ...any) {
	slogctx.Warn(l.ctx, fmt.Sprintf(format, args...), slog.String("component", "badger"))
}

func (l *badgerLogger) Infof(format string, args ...any) {
	slogctx.Debug(l.ctx, fmt.Sprintf(format, args...), slog.String("component", "badger"))
}

func (l *badgerLogger) Debugf(format string, args ...any) {
	slogctx.Debug(l.ctx, fmt.Sprintf(format, args...), slog.String("component", "badger"))
}
