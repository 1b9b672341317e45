package apistore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/Ratio1/apistore_sdk_go/internal/httpx"
)

// BackendRequest is one outbound request as prepared by the store.
type BackendRequest struct {
	Method string
	// URL is either absolute (server-provided links) or relative to the
	// backend's base URL.
	URL    string
	Header http.Header
	Body   []byte
}

// BackendResponse is the raw outcome of a BackendRequest.
type BackendResponse struct {
	Status int
	Header http.Header
	Body   []byte
}

// Backend executes requests on behalf of a store. Implementations may either
// return a response with a non-2xx status or an error; the store normalizes
// both into *Error.
type Backend interface {
	Do(ctx context.Context, req *BackendRequest) (*BackendResponse, error)
}

// BackendFunc adapts a function to Backend.
type BackendFunc func(ctx context.Context, req *BackendRequest) (*BackendResponse, error)

// Do implements Backend.
func (f BackendFunc) Do(ctx context.Context, req *BackendRequest) (*BackendResponse, error) {
	return f(ctx, req)
}

// HTTPBackend executes requests through the module's HTTP client.
type HTTPBackend struct {
	client *httpx.Client
}

// NewHTTPBackend constructs an HTTPBackend bound to baseURL. Retries are
// disabled unless a retry policy option is supplied.
func NewHTTPBackend(baseURL string, opts ...httpx.Option) (*HTTPBackend, error) {
	all := append([]httpx.Option{httpx.WithRetryPolicy(httpx.NoRetryPolicy)}, opts...)
	cl, err := httpx.NewClient(baseURL, all...)
	if err != nil {
		return nil, err
	}
	return NewHTTPBackendWithClient(cl), nil
}

// NewHTTPBackendWithClient wraps an existing httpx.Client.
func NewHTTPBackendWithClient(cl *httpx.Client) *HTTPBackend {
	return &HTTPBackend{client: cl}
}

// Do implements Backend.
func (b *HTTPBackend) Do(ctx context.Context, req *BackendRequest) (*BackendResponse, error) {
	if b == nil || b.client == nil {
		return nil, fmt.Errorf("apistore: http backend not configured")
	}
	hreq := &httpx.Request{
		Method: req.Method,
		Path:   req.URL,
		Header: req.Header,
	}
	if len(req.Body) > 0 {
		body := req.Body
		hreq.Body = bytes.NewReader(body)
		hreq.GetBody = func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(body)), nil
		}
	}
	resp, err := b.client.Do(ctx, hreq)
	if err != nil {
		return nil, err
	}
	data, err := httpx.ReadAllAndClose(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("apistore: read response body: %w", err)
	}
	return &BackendResponse{
		Status: resp.StatusCode,
		Header: resp.Header,
		Body:   data,
	}, nil
}
