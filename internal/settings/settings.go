// Package settings persists the notification preferences of the client.
package settings

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"

	slogctx "github.com/veqryn/slog-context"

	"github.com/openkcm/session-client/internal/keystore"
	"github.com/openkcm/session-client/internal/serviceerr"
)

// Key is the keystore entry holding the settings document.
const Key = "notification_settings"

const DefaultCacheTTL = 5 * time.Minute

type Settings struct {
	PushEnabled      bool `json:"pushEnabled" yaml:"pushEnabled"`
	SoundEnabled     bool `json:"soundEnabled" yaml:"soundEnabled"`
	VibrationEnabled bool `json:"vibrationEnabled" yaml:"vibrationEnabled"`
	BadgeEnabled     bool `json:"badgeEnabled" yaml:"badgeEnabled"`
}

// Default enables every notification channel.
func Default() Settings {
	return Settings{
		PushEnabled:      true,
		SoundEnabled:     true,
		VibrationEnabled: true,
		BadgeEnabled:     true,
	}
}

// Store reads and writes Settings through a keystore, keeping the last
// known value in memory.
type Store struct {
	keystore keystore.Keystore
	cache    *cache.Cache

	mu sync.Mutex
}

type StoreOption func(*storeOptions)

type storeOptions struct {
	ttl time.Duration
}

// WithCacheTTL sets how long a loaded value is served from memory. Zero
// disables caching.
func WithCacheTTL(ttl time.Duration) StoreOption {
	return func(o *storeOptions) { o.ttl = ttl }
}

func NewStore(ks keystore.Keystore, opts ...StoreOption) *Store {
	o := storeOptions{ttl: DefaultCacheTTL}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}

	var c *cache.Cache
	if o.ttl > 0 {
		c = cache.New(o.ttl, 2*o.ttl)
	}

	return &Store{keystore: ks, cache: c}
}

// Load returns the stored settings. A missing or unreadable document yields
// the defaults; only storage failures are returned as errors.
func (s *Store) Load(ctx context.Context) (Settings, error) {
	if cached, ok := s.cached(); ok {
		return cached, nil
	}

	data, err := s.keystore.Get(ctx, Key)
	if errors.Is(err, serviceerr.ErrNotFound) {
		return Default(), nil
	}
	if err != nil {
		return Default(), serviceerr.Storage(err)
	}

	settings := Default()
	if err := json.Unmarshal(data, &settings); err != nil {
		slogctx.Warn(ctx, "Stored notification settings are corrupt, using defaults", "error", err)
		return Default(), nil
	}

	s.remember(settings)

	return settings, nil
}

func (s *Store) Save(ctx context.Context, settings Settings) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.save(ctx, settings)
}

// Update applies fn to the current settings and saves the result.
func (s *Store) Update(ctx context.Context, fn func(*Settings)) (Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	settings, err := s.Load(ctx)
	if err != nil {
		return settings, err
	}

	fn(&settings)

	if err := s.save(ctx, settings); err != nil {
		return settings, err
	}

	return settings, nil
}

func (s *Store) save(ctx context.Context, settings Settings) error {
	data, err := json.Marshal(settings)
	if err != nil {
		return serviceerr.New(serviceerr.KindValidation, "Invalid notification settings", err)
	}

	if err := s.keystore.Set(ctx, Key, data); err != nil {
		s.forget()
		return serviceerr.Storage(err)
	}

	s.remember(settings)
	slogctx.Debug(ctx, "Saved notification settings", "settings", settings)

	return nil
}

func (s *Store) cached() (Settings, bool) {
	if s.cache == nil {
		return Settings{}, false
	}

	v, ok := s.cache.Get(Key)
	if !ok {
		return Settings{}, false
	}

	settings, ok := v.(Settings)
	return settings, ok
}

func (s *Store) remember(settings Settings) {
	if s.cache != nil {
		s.cache.SetDefault(Key, settings)
	}
}

func (s *Store) forget() {
	if s.cache != nil {
		s.cache.Delete(Key)
	}
}
