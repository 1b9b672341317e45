package apistore_sdk_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ratio1/apistore_sdk_go/pkg/apistore"
	"github.com/Ratio1/apistore_sdk_go/pkg/apistore/mock"
	"github.com/Ratio1/apistore_sdk_go/pkg/apistore_sdk"
)

const seedYAML = `
types:
  - name: project
    fields:
      title: {type: string}
    records:
      - {id: p1, title: first}
      - {id: p2, title: second}
`

func writeTempFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"APISTORE_CONFIG", "APISTORE_BASE_URL", "APISTORE_RUNTIME_MODE", "APISTORE_MOCK_SEED"} {
		t.Setenv(k, "")
	}
}

func TestNewFromEnvHTTPMode(t *testing.T) {
	clearEnv(t)
	backend := mock.New()
	backend.AddType(mock.TypeDef{Name: "project"}, map[string]any{"id": "p1", "title": "remote"})
	srv := httptest.NewServer(backend)
	defer srv.Close()

	cfgFile := writeTempFile(t, "apistore.yaml", "headers:\n  X-Tenant: acme\n")
	t.Setenv("APISTORE_CONFIG", cfgFile)
	t.Setenv("APISTORE_RUNTIME_MODE", "http")
	t.Setenv("APISTORE_BASE_URL", srv.URL)

	s, mode, err := apistore_sdk.NewFromEnv(apistore.WithName("remote"))
	require.NoError(t, err)
	assert.Equal(t, apistore_sdk.ModeHTTP, mode)
	assert.Equal(t, "remote", s.Name())
	_, ok := s.Backend().(*apistore.HTTPBackend)
	assert.True(t, ok)

	rec, err := s.FindByID(context.Background(), "project", "p1", nil)
	require.NoError(t, err)
	assert.Equal(t, "remote", rec.Base().Get("title"))
	calls := backend.Requests()
	require.NotEmpty(t, calls)
	assert.Equal(t, "acme", calls[0].Header.Get("X-Tenant"))
	assert.NotEmpty(t, calls[0].Header.Get("X-Request-Id"))
}

func TestNewFromEnvHTTPModeRequiresURL(t *testing.T) {
	clearEnv(t)
	t.Setenv("APISTORE_RUNTIME_MODE", "http")
	_, _, err := apistore_sdk.NewFromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "APISTORE_BASE_URL")
}

func TestNewFromEnvUnsupportedMode(t *testing.T) {
	clearEnv(t)
	t.Setenv("APISTORE_RUNTIME_MODE", "carrier-pigeon")
	_, _, err := apistore_sdk.NewFromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported")
}

func TestNewFromEnvMockAutoFallback(t *testing.T) {
	clearEnv(t)
	s, mode, err := apistore_sdk.NewFromEnv()
	require.NoError(t, err)
	assert.Equal(t, apistore_sdk.ModeMock, mode)
	_, ok := s.Backend().(*mock.Mock)
	assert.True(t, ok)

	_, err = s.FindSchema(context.Background(), "nothing")
	assert.True(t, apistore.IsNotFound(err))
}

func TestNewFromEnvSeeds(t *testing.T) {
	clearEnv(t)
	t.Setenv("APISTORE_RUNTIME_MODE", "mock")
	t.Setenv("APISTORE_MOCK_SEED", writeTempFile(t, "seed.yaml", seedYAML))

	s, mode, err := apistore_sdk.NewFromEnv()
	require.NoError(t, err)
	assert.Equal(t, apistore_sdk.ModeMock, mode)

	all, err := s.FindAll(context.Background(), "project", nil)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "first", all[0].Base().Get("title"))
}

func TestNewFromEnvBadSeed(t *testing.T) {
	clearEnv(t)
	t.Setenv("APISTORE_RUNTIME_MODE", "mock")
	t.Setenv("APISTORE_MOCK_SEED", writeTempFile(t, "seed.yaml", "types: [{records: []}]\n"))
	_, _, err := apistore_sdk.NewFromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mock seed")
}

func TestNewFromConfigAppliesStoreOptions(t *testing.T) {
	cfg := &apistore_sdk.Config{
		RuntimeMode:       "mock",
		MockSeed:          writeTempFile(t, "seed.yaml", seedYAML),
		DefaultPageSize:   1,
		RemoveAfterDelete: true,
	}
	s, _, err := apistore_sdk.NewFromConfig(cfg)
	require.NoError(t, err)
	m := s.Backend().(*mock.Mock)

	ctx := context.Background()
	rec, err := s.FindByID(ctx, "project", "p2", nil)
	require.NoError(t, err)
	require.NoError(t, rec.Base().Delete(ctx, nil))
	assert.False(t, s.HasRecordFor("project", "p2"))

	_, err = s.FindAll(ctx, "project", nil)
	require.NoError(t, err)
	assert.Equal(t, 1, m.Calls(http.MethodGet, "project?limit=1"))
}
