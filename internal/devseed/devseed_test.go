package devseed

import (
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseYAML(t *testing.T) {
	seed, err := Parse([]byte(`
types:
  - name: user
    fields:
      name: {type: string, required: true}
    records:
      - {id: 1, name: alice}
      - {id: 2, name: bob}
routes:
  - path: /ping
    body: {ok: true}
  - method: post
    path: /boom
    status: 503
`))
	require.NoError(t, err)
	require.Len(t, seed.Types, 1)
	assert.Equal(t, "user", seed.Types[0].Name)
	assert.Len(t, seed.Types[0].Records, 2)
	assert.Equal(t, "alice", seed.Types[0].Records[0]["name"])
	field, ok := seed.Types[0].Fields["name"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, true, field["required"])

	require.Len(t, seed.Routes, 2)
	assert.Equal(t, http.MethodGet, seed.Routes[0].Method)
	assert.Equal(t, http.StatusOK, seed.Routes[0].Status)
	assert.Equal(t, map[string]any{"ok": true}, seed.Routes[0].Body)
	assert.Equal(t, http.MethodPost, seed.Routes[1].Method)
	assert.Equal(t, 503, seed.Routes[1].Status)
}

func TestParseJSON(t *testing.T) {
	seed, err := Parse([]byte(`{"routes":[{"path":"schemas","body":{"type":"collection","data":[]}}]}`))
	require.NoError(t, err)
	require.Len(t, seed.Routes, 1)
	body, ok := seed.Routes[0].Body.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "collection", body["type"])
}

func TestParseRejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"unknown field": "typos: []",
		"missing name":  "types: [{records: []}]",
		"duplicate":     "types: [{name: a}, {name: a}]",
		"missing path":  "routes: [{method: GET}]",
		"bad status":    "routes: [{path: x, status: 42}]",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestParseEmpty(t *testing.T) {
	seed, err := Parse(nil)
	require.NoError(t, err)
	assert.Empty(t, seed.Types)
	assert.Empty(t, seed.Routes)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seed.yaml")
	require.NoError(t, os.WriteFile(path, []byte("routes:\n  - path: ping\n"), 0o600))
	seed, err := Load(path)
	require.NoError(t, err)
	require.Len(t, seed.Routes, 1)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
