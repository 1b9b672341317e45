package mock

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ratio1/apistore_sdk_go/internal/devseed"
	"github.com/Ratio1/apistore_sdk_go/pkg/apistore"
)

func get(t *testing.T, m *Mock, url string) (*apistore.BackendResponse, map[string]any) {
	t.Helper()
	return send(t, m, http.MethodGet, url, nil)
}

func send(t *testing.T, m *Mock, method, url string, body []byte) (*apistore.BackendResponse, map[string]any) {
	t.Helper()
	resp, err := m.Do(context.Background(), &apistore.BackendRequest{Method: method, URL: url, Body: body})
	require.NoError(t, err)
	var out map[string]any
	if len(resp.Body) > 0 {
		require.NoError(t, json.Unmarshal(resp.Body, &out))
	}
	return resp, out
}

func TestHandleMatchesCanonicalPath(t *testing.T) {
	m := New()
	m.Handle(http.MethodGet, "/things?b=2&a=1", Response{Body: map[string]any{"exact": true}})
	m.Handle(http.MethodGet, "things", Response{Body: map[string]any{"exact": false}})

	_, body := get(t, m, "things?a=1&b=2")
	assert.Equal(t, true, body["exact"])

	_, body = get(t, m, "/things/?z=9")
	assert.Equal(t, false, body["exact"])

	assert.Equal(t, 2, m.Calls(http.MethodGet, "things"))
	assert.Equal(t, 1, m.Calls(http.MethodGet, "things?a=1&b=2"))
	assert.Equal(t, 2, m.TotalCalls())
}

func TestUnknownRouteIsErrorBody(t *testing.T) {
	m := New()
	resp, body := get(t, m, "nowhere")
	assert.Equal(t, http.StatusNotFound, resp.Status)
	assert.Equal(t, "error", body["type"])
	assert.Equal(t, "NotFound", body["code"])
}

func TestWithPrefixStripsBasePath(t *testing.T) {
	m := New(WithPrefix("http://example.test/v1/"))
	m.Handle(http.MethodGet, "ping", Response{Body: map[string]any{"ok": true}})
	resp, _ := get(t, m, "http://example.test/v1/ping")
	assert.Equal(t, http.StatusOK, resp.Status)
	resp, _ = get(t, m, "/v1/ping")
	assert.Equal(t, http.StatusOK, resp.Status)
}

func TestTypeEmulation(t *testing.T) {
	ids := []string{"new-1"}
	m := New(WithPageSize(2), WithIDGenerator(func() string {
		id := ids[0]
		ids = ids[1:]
		return id
	}))
	m.AddType(TypeDef{Name: "User", Fields: map[string]any{"name": map[string]any{"type": "string"}}},
		map[string]any{"id": 1, "name": "alice", "role": "admin"},
		map[string]any{"id": "2", "name": "bob", "role": "user"},
		map[string]any{"id": "3", "name": "carol", "role": "admin"},
	)

	_, schema := get(t, m, "schemas/user")
	assert.Equal(t, "schema", schema["type"])
	assert.Equal(t, "user", schema["links"].(map[string]any)["collection"])

	_, page := get(t, m, "user")
	assert.Len(t, page["data"], 2)
	next := page["pagination"].(map[string]any)["next"].(string)
	assert.Contains(t, next, "marker=2")

	_, page2 := get(t, m, next)
	assert.Len(t, page2["data"], 1)
	assert.NotContains(t, page2["pagination"], "next")

	_, filtered := get(t, m, "user?role=admin")
	assert.Len(t, filtered["data"], 2)

	_, rec := get(t, m, "user/1")
	assert.Equal(t, "1", rec["id"])
	assert.Equal(t, "user/1", rec["links"].(map[string]any)["self"])

	resp, created := send(t, m, http.MethodPost, "user", []byte(`{"name":"dave","links":{"self":"ignored"}}`))
	assert.Equal(t, http.StatusCreated, resp.Status)
	assert.Equal(t, "new-1", created["id"])
	assert.Equal(t, "user/new-1", created["links"].(map[string]any)["self"])

	resp, updated := send(t, m, http.MethodPut, "user/2", []byte(`{"name":"robert"}`))
	assert.Equal(t, http.StatusOK, resp.Status)
	assert.Equal(t, "robert", updated["name"])
	assert.NotContains(t, updated, "role")

	resp, _ = send(t, m, http.MethodDelete, "user/3", nil)
	assert.Equal(t, http.StatusNoContent, resp.Status)
	resp, _ = get(t, m, "user/3")
	assert.Equal(t, http.StatusNotFound, resp.Status)

	assert.Len(t, m.Records("user"), 3)
}

func TestSeed(t *testing.T) {
	seed, err := devseed.Parse([]byte(`
types:
  - name: project
    records:
      - {id: p1, name: one}
routes:
  - path: version
    headers: {X-Api: v3}
    body: {version: "3"}
`))
	require.NoError(t, err)
	m := New()
	require.NoError(t, m.Seed(seed))

	resp, body := get(t, m, "version")
	assert.Equal(t, "3", body["version"])
	assert.Equal(t, "v3", resp.Header.Get("X-Api"))

	_, rec := get(t, m, "project/p1")
	assert.Equal(t, "one", rec["name"])

	_, schemas := get(t, m, "schemas")
	assert.Len(t, schemas["data"], 1)
}

func TestBlockHoldsUntilRelease(t *testing.T) {
	m := New()
	m.Handle(http.MethodGet, "slow", Response{Body: map[string]any{"ok": true}})
	release := m.Block(http.MethodGet, "slow")

	var wg sync.WaitGroup
	done := make(chan struct{})
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, err := m.Do(context.Background(), &apistore.BackendRequest{Method: http.MethodGet, URL: "slow"})
		assert.NoError(t, err)
		close(done)
	}()

	require.Eventually(t, func() bool { return m.Calls(http.MethodGet, "slow") == 1 }, time.Second, 5*time.Millisecond)
	select {
	case <-done:
		t.Fatal("request completed before release")
	default:
	}
	release()
	release()
	wg.Wait()
}

func TestBlockHonoursContext(t *testing.T) {
	m := New()
	release := m.Block(http.MethodGet, "slow")
	defer release()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := m.Do(ctx, &apistore.BackendRequest{Method: http.MethodGet, URL: "slow"})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestServeHTTP(t *testing.T) {
	m := New()
	m.AddType(TypeDef{Name: "note"}, map[string]any{"id": "n1", "text": "hi"})
	srv := httptest.NewServer(m)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/note/n1")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), `"text":"hi"`))
}
