package apistore_sdk

import (
	"fmt"
	"strings"

	"github.com/Ratio1/apistore_sdk_go/internal/config"
	"github.com/Ratio1/apistore_sdk_go/internal/devseed"
	"github.com/Ratio1/apistore_sdk_go/pkg/apistore"
	"github.com/Ratio1/apistore_sdk_go/pkg/apistore/mock"
)

// Config is the store configuration read by NewFromConfig.
type Config = config.Config

// Runtime modes reported by NewFromEnv and NewFromConfig.
const (
	ModeHTTP = config.ModeHTTP
	ModeMock = config.ModeMock
)

// LoadConfig reads a YAML configuration file.
func LoadConfig(path string) (*Config, error) {
	return config.Load(path)
}

// NewFromEnv builds a store from APISTORE_CONFIG, APISTORE_BASE_URL,
// APISTORE_RUNTIME_MODE and APISTORE_MOCK_SEED. It returns the resolved mode
// ("http" or "mock"). opts are applied after the configured options.
func NewFromEnv(opts ...apistore.Option) (*apistore.Store, string, error) {
	cfg, err := config.FromEnv()
	if err != nil {
		return nil, "", fmt.Errorf("apistore_sdk: %w", err)
	}
	return NewFromConfig(cfg, opts...)
}

// NewFromConfig builds a store for cfg. In auto mode a base URL selects the
// HTTP backend and its absence the in-memory mock.
func NewFromConfig(cfg *Config, opts ...apistore.Option) (*apistore.Store, string, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", fmt.Errorf("apistore_sdk: %w", err)
	}
	baseURL := strings.TrimSpace(cfg.BaseURL)

	var (
		backend apistore.Backend
		mode    string
		err     error
	)
	switch cfg.Mode() {
	case config.ModeAuto:
		if baseURL != "" {
			backend, mode, err = newHTTPBackend(cfg, baseURL)
		} else {
			backend, mode, err = newMockBackend(cfg)
		}
	case config.ModeHTTP:
		backend, mode, err = newHTTPBackend(cfg, baseURL)
	case config.ModeMock:
		backend, mode, err = newMockBackend(cfg)
	}
	if err != nil {
		return nil, "", err
	}

	all := storeOptions(cfg)
	all = append(all, apistore.WithBackend(backend))
	all = append(all, opts...)
	return apistore.New(all...), mode, nil
}

func storeOptions(cfg *Config) []apistore.Option {
	var opts []apistore.Option
	if len(cfg.Headers) > 0 {
		opts = append(opts, apistore.WithHeaders(cfg.Header()))
	}
	if cfg.DefaultPageSize > 0 {
		opts = append(opts, apistore.WithDefaultPageSize(cfg.DefaultPageSize))
	}
	if cfg.RemoveAfterDelete {
		opts = append(opts, apistore.WithRemoveAfterDelete(true))
	}
	if len(cfg.NeverMissing) > 0 {
		opts = append(opts, apistore.WithNeverMissing(cfg.NeverMissing...))
	}
	return opts
}

func newHTTPBackend(cfg *Config, baseURL string) (apistore.Backend, string, error) {
	b, err := apistore.NewHTTPBackend(baseURL, cfg.HTTPOptions()...)
	if err != nil {
		return nil, "", fmt.Errorf("apistore_sdk: init HTTP backend: %w", err)
	}
	return b, ModeHTTP, nil
}

func newMockBackend(cfg *Config) (apistore.Backend, string, error) {
	m := mock.New(mock.WithPrefix(cfg.BaseURL))
	if path := strings.TrimSpace(cfg.MockSeed); path != "" {
		seed, err := devseed.Load(path)
		if err != nil {
			return nil, "", fmt.Errorf("apistore_sdk: load mock seed: %w", err)
		}
		if err := m.Seed(seed); err != nil {
			return nil, "", fmt.Errorf("apistore_sdk: apply mock seed: %w", err)
		}
	}
	return m, ModeMock, nil
}
