// Package config defines the necessary types to configure the application.
// An example config file config.yaml is provided in the repository.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/openkcm/common-sdk/pkg/commoncfg"
)

type KeystoreType string

const (
	KeystoreTypeFile   KeystoreType = "file"
	KeystoreTypeValkey KeystoreType = "valkey"
)

var ErrInvalidConfig = errors.New("invalid configuration")

type Config struct {
	commoncfg.BaseConfig `mapstructure:",squash" yaml:",inline"`

	API      API      `yaml:"api"`
	Keystore Keystore `yaml:"keystore"`
	Session  Session  `yaml:"session"`
	Settings Settings `yaml:"settings"`
}

type API struct {
	BaseURL     string        `yaml:"baseURL"`
	Timeout     time.Duration `yaml:"timeout" default:"15s"`
	UploadField string        `yaml:"uploadField" default:"image"`

	// MTLS enables client certificate authentication towards the API.
	MTLS *commoncfg.MTLS `yaml:"mtls"`
}

type Keystore struct {
	Type KeystoreType `yaml:"type" default:"file"`
	// Path is the directory of the file keystore. Empty keeps it in memory.
	Path string `yaml:"path"`
	// MasterKey seals every secret in the keystore, at least 32 bytes.
	MasterKey commoncfg.SourceRef `yaml:"masterKey"`
	Salt      string              `yaml:"salt"`

	ValKey ValKey `yaml:"valkey"`
}

type ValKey struct {
	Host     commoncfg.SourceRef `yaml:"host"`
	User     commoncfg.SourceRef `yaml:"user"`
	Password commoncfg.SourceRef `yaml:"password"`
	Prefix   string              `yaml:"prefix" default:"session-client"`
	TTL      time.Duration       `yaml:"ttl"`
}

type Session struct {
	WatchInterval time.Duration `yaml:"watchInterval" default:"1m"`
}

type Settings struct {
	CacheTTL time.Duration `yaml:"cacheTTL" default:"5m"`
}

// Validate reports the first setting that would keep the client from
// starting.
func (c *Config) Validate() error {
	if c.API.BaseURL == "" {
		return fmt.Errorf("%w: api.baseURL is required", ErrInvalidConfig)
	}

	u, err := url.Parse(c.API.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: api.baseURL %q is not an http(s) URL", ErrInvalidConfig, c.API.BaseURL)
	}

	if c.API.Timeout < 0 {
		return fmt.Errorf("%w: api.timeout must not be negative", ErrInvalidConfig)
	}

	switch c.Keystore.Type {
	case KeystoreTypeFile, KeystoreTypeValkey:
	default:
		return fmt.Errorf("%w: unknown keystore.type %q", ErrInvalidConfig, c.Keystore.Type)
	}

	if c.Session.WatchInterval <= 0 {
		return fmt.Errorf("%w: session.watchInterval must be positive", ErrInvalidConfig)
	}

	if c.Settings.CacheTTL < 0 {
		return fmt.Errorf("%w: settings.cacheTTL must not be negative", ErrInvalidConfig)
	}

	return nil
}

// LogValue lists the settings worth logging. Secret references only show
// their source.
func (c *Config) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Any("application", c.Application),
		slog.Group("api",
			slog.String("baseURL", c.API.BaseURL),
			slog.Duration("timeout", c.API.Timeout),
			slog.String("uploadField", c.API.UploadField),
			slog.Bool("mtls", c.API.MTLS != nil),
		),
		slog.Group("keystore",
			slog.String("type", string(c.Keystore.Type)),
			slog.String("path", c.Keystore.Path),
			slog.String("masterKeySource", string(c.Keystore.MasterKey.Source)),
			slog.String("valkeyPrefix", c.Keystore.ValKey.Prefix),
		),
		slog.Duration("watchInterval", c.Session.WatchInterval),
		slog.Duration("settingsCacheTTL", c.Settings.CacheTTL),
	)
}
