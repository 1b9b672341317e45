package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{EnvConfig, EnvBaseURL, EnvMode, EnvMockSeed} {
		t.Setenv(k, "")
	}
}

func TestParse(t *testing.T) {
	cfg, err := Parse([]byte(`
base_url: https://api.example.test/v1
runtime_mode: HTTP
headers:
  x-tenant: acme
default_page_size: 50
remove_after_delete: true
never_missing: [error, audit]
timeout: 5s
retry:
  max_retries: 2
  base_delay: 100ms
`))
	require.NoError(t, err)
	assert.Equal(t, "https://api.example.test/v1", cfg.BaseURL)
	assert.Equal(t, ModeHTTP, cfg.Mode())
	assert.Equal(t, "acme", cfg.Header().Get("X-Tenant"))
	assert.Equal(t, 50, cfg.DefaultPageSize)
	assert.True(t, cfg.RemoveAfterDelete)
	assert.Equal(t, []string{"error", "audit"}, cfg.NeverMissing)
	assert.Equal(t, 5*time.Second, cfg.Timeout)
	assert.Equal(t, 100*time.Millisecond, cfg.Retry.BaseDelay)
	assert.Len(t, cfg.HTTPOptions(), 2)
	require.NoError(t, cfg.Validate())
}

func TestParseRejectsUnknownKeys(t *testing.T) {
	_, err := Parse([]byte("base_url: x\nbogus: 1\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bogus")
}

func TestParseEmpty(t *testing.T) {
	cfg, err := Parse(nil)
	require.NoError(t, err)
	assert.Equal(t, ModeAuto, cfg.Mode())
	assert.Empty(t, cfg.HTTPOptions())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want string
	}{
		{"http without url", Config{RuntimeMode: "http"}, "requires"},
		{"unknown mode", Config{RuntimeMode: "grpc"}, "unsupported"},
		{"negative page size", Config{DefaultPageSize: -1}, "default_page_size"},
		{"negative retries", Config{Retry: Retry{MaxRetries: -1}}, "max_retries"},
		{"jitter", Config{Retry: Retry{Jitter: 2}}, "jitter"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestFromEnvOverlaysFile(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, "apistore.yaml", "base_url: http://file.test\nruntime_mode: auto\ndefault_page_size: 10\n")
	t.Setenv(EnvConfig, path)
	t.Setenv(EnvBaseURL, "http://env.test")
	t.Setenv(EnvMockSeed, "seed.yaml")

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, "http://env.test", cfg.BaseURL)
	assert.Equal(t, "seed.yaml", cfg.MockSeed)
	assert.Equal(t, 10, cfg.DefaultPageSize)
}

func TestFromEnvErrors(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvConfig, filepath.Join(t.TempDir(), "missing.yaml"))
	_, err := FromEnv()
	require.Error(t, err)

	clearEnv(t)
	t.Setenv(EnvMode, "http")
	_, err = FromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), EnvBaseURL)
}
