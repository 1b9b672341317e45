// Package config loads store configuration from a YAML file and overlays the
// APISTORE_* environment variables.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Ratio1/apistore_sdk_go/internal/httpx"
)

// Environment variables understood by FromEnv.
const (
	EnvConfig   = "APISTORE_CONFIG"
	EnvBaseURL  = "APISTORE_BASE_URL"
	EnvMode     = "APISTORE_RUNTIME_MODE"
	EnvMockSeed = "APISTORE_MOCK_SEED"
)

// Runtime modes.
const (
	ModeAuto = "auto"
	ModeHTTP = "http"
	ModeMock = "mock"
)

// Config describes how to build a store.
type Config struct {
	BaseURL     string `yaml:"base_url"`
	RuntimeMode string `yaml:"runtime_mode"`
	// MockSeed is a devseed file loaded into the mock backend.
	MockSeed          string            `yaml:"mock_seed"`
	Headers           map[string]string `yaml:"headers"`
	DefaultPageSize   int               `yaml:"default_page_size"`
	RemoveAfterDelete bool              `yaml:"remove_after_delete"`
	NeverMissing      []string          `yaml:"never_missing"`
	Timeout           time.Duration     `yaml:"timeout"`
	Retry             Retry             `yaml:"retry"`
}

// Retry mirrors httpx.RetryPolicy. A zero value disables retries.
type Retry struct {
	MaxRetries int           `yaml:"max_retries"`
	BaseDelay  time.Duration `yaml:"base_delay"`
	MaxDelay   time.Duration `yaml:"max_delay"`
	Jitter     float64       `yaml:"jitter"`
}

// Load reads a YAML configuration file. Unknown keys are rejected.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML configuration. Empty input yields the zero Config.
func Parse(data []byte) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode: %w", err)
	}
	return cfg, nil
}

// FromEnv loads the file named by APISTORE_CONFIG, if any, then applies the
// remaining APISTORE_* variables on top.
func FromEnv() (*Config, error) {
	cfg := &Config{}
	if path := strings.TrimSpace(os.Getenv(EnvConfig)); path != "" {
		loaded, err := Load(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	cfg.ApplyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides fields with the non-empty APISTORE_* variables.
func (c *Config) ApplyEnv() {
	if v := strings.TrimSpace(os.Getenv(EnvBaseURL)); v != "" {
		c.BaseURL = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvMode)); v != "" {
		c.RuntimeMode = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvMockSeed)); v != "" {
		c.MockSeed = v
	}
}

// Mode returns the normalized runtime mode, auto when unset.
func (c *Config) Mode() string {
	mode := strings.ToLower(strings.TrimSpace(c.RuntimeMode))
	if mode == "" {
		return ModeAuto
	}
	return mode
}

// Validate checks the mode and numeric settings.
func (c *Config) Validate() error {
	switch c.Mode() {
	case ModeAuto, ModeMock:
	case ModeHTTP:
		if strings.TrimSpace(c.BaseURL) == "" {
			return fmt.Errorf("config: %s mode requires %s", ModeHTTP, EnvBaseURL)
		}
	default:
		return fmt.Errorf("config: unsupported runtime mode %q", c.RuntimeMode)
	}
	if c.DefaultPageSize < 0 {
		return fmt.Errorf("config: default_page_size must not be negative")
	}
	if c.Retry.MaxRetries < 0 {
		return fmt.Errorf("config: retry.max_retries must not be negative")
	}
	if c.Retry.Jitter < 0 || c.Retry.Jitter > 1 {
		return fmt.Errorf("config: retry.jitter must be within [0,1]")
	}
	return nil
}

// Header converts Headers into an http.Header.
func (c *Config) Header() http.Header {
	h := make(http.Header, len(c.Headers))
	for k, v := range c.Headers {
		h.Set(k, v)
	}
	return h
}

// HTTPOptions returns the transport options implied by the configuration.
func (c *Config) HTTPOptions() []httpx.Option {
	var opts []httpx.Option
	if c.Timeout > 0 {
		opts = append(opts, httpx.WithTimeout(c.Timeout))
	}
	if c.Retry.MaxRetries > 0 {
		policy := httpx.DefaultRetryPolicy
		policy.MaxRetries = c.Retry.MaxRetries
		if c.Retry.BaseDelay > 0 {
			policy.BaseDelay = c.Retry.BaseDelay
		}
		if c.Retry.MaxDelay > 0 {
			policy.MaxDelay = c.Retry.MaxDelay
		}
		if c.Retry.Jitter > 0 {
			policy.Jitter = c.Retry.Jitter
		}
		opts = append(opts, httpx.WithRetryPolicy(policy))
	}
	return opts
}
