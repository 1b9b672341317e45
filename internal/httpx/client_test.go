package httpx

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveURL(t *testing.T) {
	c, err := NewClient("http://api.local/v1/")
	require.NoError(t, err)

	tests := []struct {
		name     string
		path     string
		query    url.Values
		expected string
	}{
		{name: "relative", path: "schemas/user", expected: "http://api.local/v1/schemas/user"},
		{name: "leading slash", path: "/users", expected: "http://api.local/v1/users"},
		{name: "absolute", path: "http://other.local/x?y=1", expected: "http://other.local/x?y=1"},
		{name: "query merge", path: "users?limit=5", query: url.Values{"name": {"a"}}, expected: "http://api.local/v1/users?limit=5&name=a"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := c.ResolveURL(tt.path, tt.query)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestDoRetriesTransientFailures(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			http.Error(w, "busy", http.StatusServiceUnavailable)
			return
		}
		io.WriteString(w, "ok")
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL, WithRetryPolicy(RetryPolicy{MaxRetries: 3, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}))
	require.NoError(t, err)

	resp, err := c.Do(context.Background(), &Request{Method: http.MethodGet, Path: "/"})
	require.NoError(t, err)
	body, err := ReadAllAndClose(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "ok", string(body))
	assert.EqualValues(t, 3, calls.Load())
}

func TestDoDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		io.WriteString(w, `{"type":"error","status":404,"message":"missing"}`)
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL, WithRetryPolicy(RetryPolicy{MaxRetries: 3, BaseDelay: time.Millisecond}))
	require.NoError(t, err)

	_, err = c.Do(context.Background(), &Request{Method: http.MethodGet, Path: "users/9"})
	var httpErr *HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusNotFound, httpErr.StatusCode)
	assert.Equal(t, http.MethodGet, httpErr.Method)
	assert.True(t, strings.HasSuffix(httpErr.URL, "/users/9"))
	assert.Equal(t, map[string]any{"type": "error", "status": float64(404), "message": "missing"}, httpErr.JSON)
	assert.False(t, httpErr.Retryable())
	assert.EqualValues(t, 1, calls.Load())
}

func TestDoSetsRequestIDAndHeaders(t *testing.T) {
	var gotID, gotAuth, gotCustom string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotID = r.Header.Get(HeaderRequestID)
		gotAuth = r.Header.Get("Authorization")
		gotCustom = r.Header.Get("X-Custom")
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL, WithHeaders(http.Header{"Authorization": {"Bearer a"}}))
	require.NoError(t, err)

	resp, err := c.Do(context.Background(), &Request{
		Method: http.MethodDelete,
		Path:   "x",
		Header: http.Header{"X-Custom": {"1"}, "Authorization": {"Bearer b"}},
	})
	require.NoError(t, err)
	resp.Body.Close()
	assert.NotEmpty(t, gotID)
	assert.Equal(t, "Bearer b", gotAuth)
	assert.Equal(t, "1", gotCustom)
}

func TestDoReplaysBodyOnRetry(t *testing.T) {
	var bodies []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		bodies = append(bodies, string(data))
		if len(bodies) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL, WithRetryPolicy(RetryPolicy{MaxRetries: 1, BaseDelay: time.Millisecond}))
	require.NoError(t, err)

	resp, err := c.Do(context.Background(), &Request{Method: http.MethodPost, Path: "items", Body: strings.NewReader(`{"a":1}`)})
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, []string{`{"a":1}`, `{"a":1}`}, bodies)
}

func TestNewClientRequiresBaseURL(t *testing.T) {
	_, err := NewClient("  ")
	require.Error(t, err)
}

func TestBackoffBounds(t *testing.T) {
	b := NewBackoff(10*time.Millisecond, 40*time.Millisecond, 0)
	assert.Equal(t, 10*time.Millisecond, b.ForAttempt(0))
	assert.Equal(t, 20*time.Millisecond, b.ForAttempt(1))
	assert.Equal(t, 40*time.Millisecond, b.ForAttempt(2))
	assert.Equal(t, 40*time.Millisecond, b.ForAttempt(10))

	jittered := NewBackoff(100*time.Millisecond, time.Second, 0.5)
	for i := 0; i < 20; i++ {
		d := jittered.ForAttempt(0)
		assert.GreaterOrEqual(t, d, 50*time.Millisecond)
		assert.LessOrEqual(t, d, 150*time.Millisecond)
	}
}
