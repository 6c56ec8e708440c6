package business

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/openkcm/common-sdk/pkg/commoncfg"
	"github.com/valkey-io/valkey-go"

	slogctx "github.com/veqryn/slog-context"

	"github.com/openkcm/session-client/internal/apiclient"
	"github.com/openkcm/session-client/internal/config"
	"github.com/openkcm/session-client/internal/jwtpayload"
	"github.com/openkcm/session-client/internal/keystore"
	keystorebadger "github.com/openkcm/session-client/internal/keystore/badger"
	"github.com/openkcm/session-client/internal/keystore/sealed"
	keystorevalkey "github.com/openkcm/session-client/internal/keystore/valkey"
	"github.com/openkcm/session-client/internal/session"
	"github.com/openkcm/session-client/internal/settings"
	"github.com/openkcm/session-client/internal/token"
)

// Client bundles the components a command works with.
type Client struct {
	Tokens    *token.Store
	Validator *jwtpayload.Validator
	API       *apiclient.Client
	Guard     *session.Guard
	Settings  *settings.Store

	closeFn func()
}

func (c *Client) Close() {
	if c.closeFn != nil {
		c.closeFn()
	}
}

// NewClient opens the configured keystore and wires every component on
// top of it. The token is sealed with the master key; settings are not.
func NewClient(ctx context.Context, cfg *config.Config) (*Client, error) {
	plain, closeFn, err := openKeystore(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("opening keystore: %w", err)
	}

	c, err := newClient(ctx, cfg, plain)
	if err != nil {
		closeFn()
		return nil, err
	}
	c.closeFn = closeFn

	return c, nil
}

func newClient(ctx context.Context, cfg *config.Config, plain keystore.Keystore) (*Client, error) {
	masterKey, err := config.LoadMasterKey(cfg.Keystore)
	if err != nil {
		return nil, err
	}

	secure, err := sealed.New(plain, masterKey, []byte(cfg.Keystore.Salt))
	if err != nil {
		return nil, fmt.Errorf("creating sealed keystore: %w", err)
	}

	httpClient, err := loadHTTPClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("loading http client: %w", err)
	}

	tokens := token.NewStore(secure)
	validator := jwtpayload.NewValidator()

	api, err := apiclient.New(cfg.API.BaseURL, tokens,
		apiclient.WithHTTPClient(httpClient),
		apiclient.WithTimeout(cfg.API.Timeout),
		apiclient.WithUploadField(cfg.API.UploadField),
	)
	if err != nil {
		return nil, fmt.Errorf("creating api client: %w", err)
	}

	return &Client{
		Tokens:    tokens,
		Validator: validator,
		API:       api,
		Guard:     session.NewGuard(ctx, tokens, validator),
		Settings:  settings.NewStore(plain, settings.WithCacheTTL(cfg.Settings.CacheTTL)),
	}, nil
}

func openKeystore(ctx context.Context, cfg *config.Config) (keystore.Keystore, func(), error) {
	switch cfg.Keystore.Type {
	case config.KeystoreTypeFile:
		ks, err := keystorebadger.Open(ctx, cfg.Keystore.Path)
		if err != nil {
			return nil, nil, err
		}

		closeFn := func() {
			if err := ks.Close(); err != nil {
				slogctx.Error(ctx, "Could not close the keystore", "error", err)
			}
		}

		return ks, closeFn, nil
	case config.KeystoreTypeValkey:
		opts, err := config.MakeValkeyOptions(cfg.Keystore.ValKey)
		if err != nil {
			return nil, nil, err
		}

		valkeyClient, err := valkey.NewClient(opts)
		if err != nil {
			return nil, nil, fmt.Errorf("creating a new valkey client: %w", err)
		}

		return keystorevalkey.NewKeystore(valkeyClient, cfg.Keystore.ValKey.Prefix, cfg.Keystore.ValKey.TTL), valkeyClient.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown keystore type %q", cfg.Keystore.Type)
	}
}

func loadHTTPClient(cfg *config.Config) (*http.Client, error) {
	if cfg.API.MTLS == nil {
		return &http.Client{}, nil
	}

	tlsConfig, err := commoncfg.LoadMTLSConfig(cfg.API.MTLS)
	if err != nil {
		return nil, errors.Join(errors.New("failed to load mTLS config"), err)
	}

	return &http.Client{
		Transport: &http.Transport{
			TLSClientConfig: tlsConfig,
		},
	}, nil
}
