package main

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ratio1/apistore_sdk_go/pkg/apistore/mock"
)

func TestParseFailConfig(t *testing.T) {
	tests := []struct {
		raw     string
		want    failConfig
		wantErr bool
	}{
		{raw: "", want: failConfig{}},
		{raw: "rate=0.5", want: failConfig{rate: 0.5, code: http.StatusInternalServerError}},
		{raw: " rate=0.1 , code=503 ", want: failConfig{rate: 0.1, code: http.StatusServiceUnavailable}},
		{raw: "rate", wantErr: true},
		{raw: "rate=x", wantErr: true},
		{raw: "rate=2", wantErr: true},
		{raw: "code=abc", wantErr: true},
		{raw: "speed=1", wantErr: true},
	}
	for _, tc := range tests {
		t.Run(tc.raw, func(t *testing.T) {
			got, err := parseFailConfig(tc.raw)
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestHandlerServesMockAndMetrics(t *testing.T) {
	m := mock.New()
	m.AddType(mock.TypeDef{Name: "note"}, map[string]any{"id": "n1", "text": "hi"})
	reg := prometheus.NewRegistry()
	srv := httptest.NewServer(newHandler(m, 0, failConfig{}, reg))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/note/n1")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/note/missing")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Contains(t, string(body), "apistore_sandbox_requests_total")
	series, err := testutil.GatherAndCount(reg, "apistore_sandbox_requests_total")
	require.NoError(t, err)
	assert.Equal(t, 2, series)
}

func TestHandlerInjectsFailures(t *testing.T) {
	m := mock.New()
	reg := prometheus.NewRegistry()
	srv := httptest.NewServer(newHandler(m, 0, failConfig{rate: 1, code: http.StatusBadGateway}, reg))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/anything")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	assert.Zero(t, m.TotalCalls())
}
