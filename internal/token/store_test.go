package token_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	keystoremock "github.com/openkcm/session-client/internal/keystore/mock"
	"github.com/openkcm/session-client/internal/serviceerr"
	"github.com/openkcm/session-client/internal/token"
)

func TestStore_RoundTrip(t *testing.T) {
	ctx := t.Context()
	s := token.NewStore(keystoremock.NewInMemKeystore())

	_, ok := s.Retrieve(ctx)
	assert.False(t, ok, "empty store has no token")

	require.NoError(t, s.Store(ctx, "first.token.value"))
	require.NoError(t, s.Store(ctx, "second.token.value"))

	got, ok := s.Retrieve(ctx)
	require.True(t, ok)
	assert.Equal(t, "second.token.value", got)

	require.NoError(t, s.Clear(ctx))
	_, ok = s.Retrieve(ctx)
	assert.False(t, ok)

	require.NoError(t, s.Clear(ctx), "clearing an empty store succeeds")
}

func TestStore_Store(t *testing.T) {
	tests := []struct {
		name     string
		keystore *keystoremock.Keystore
		token    string
		wantErr  error
	}{
		{
			name:     "Success",
			keystore: keystoremock.NewInMemKeystore(),
			token:    "a.b.c",
		},
		{
			name:     "Empty token",
			keystore: keystoremock.NewInMemKeystore(),
			token:    "  ",
			wantErr:  serviceerr.ErrValidation,
		},
		{
			name:     "Storage unavailable",
			keystore: keystoremock.NewInMemKeystore(keystoremock.WithSetError(errors.New("device locked"))),
			token:    "a.b.c",
			wantErr:  serviceerr.ErrStorage,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := token.NewStore(tt.keystore).Store(t.Context(), tt.token)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}

			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestStore_RetrieveNeverFails(t *testing.T) {
	s := token.NewStore(keystoremock.NewInMemKeystore(keystoremock.WithGetError(errors.New("no keystore"))))

	got, ok := s.Retrieve(t.Context())
	assert.False(t, ok)
	assert.Empty(t, got)
}

func TestStore_Clear(t *testing.T) {
	t.Run("missing key is ignored", func(t *testing.T) {
		s := token.NewStore(keystoremock.NewInMemKeystore(keystoremock.WithDeleteError(serviceerr.ErrNotFound)))
		assert.NoError(t, s.Clear(t.Context()))
	})

	t.Run("storage failure", func(t *testing.T) {
		s := token.NewStore(keystoremock.NewInMemKeystore(keystoremock.WithDeleteError(errors.New("device locked"))))
		assert.ErrorIs(t, s.Clear(t.Context()), serviceerr.ErrStorage)
	})
}
