// Package mock provides an in-memory REST API for exercising apistore
// without a server. A Mock serves canned routes and emulated resource types
// (schema, collection, item) and implements both apistore.Backend and
// http.Handler.
package mock

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/Ratio1/apistore_sdk_go/internal/apibody"
	"github.com/Ratio1/apistore_sdk_go/internal/devseed"
	"github.com/Ratio1/apistore_sdk_go/pkg/apistore"
)

// Response is a canned answer.
type Response struct {
	Status int
	Header http.Header
	// Body is JSON-encoded unless it is a []byte.
	Body any
}

// HandlerFunc computes a response for a request.
type HandlerFunc func(req *apistore.BackendRequest) *Response

// Call records one request seen by the mock.
type Call struct {
	Method string
	// Path is the canonical route key path, including the sorted query.
	Path   string
	Header http.Header
	Body   []byte
}

// Mock is an in-memory REST backend. It is safe for concurrent use.
type Mock struct {
	mu       sync.Mutex
	prefix   string
	pageSize int
	routes   map[string]HandlerFunc
	types    map[string]*typeTable
	gates    map[string]chan struct{}
	calls    []Call
	newID    func() string
}

// Option configures the mock instance.
type Option func(*Mock)

// WithPrefix strips the path of prefix (an absolute base URL or a path)
// from incoming request paths before matching.
func WithPrefix(prefix string) Option {
	return func(m *Mock) {
		u, err := url.Parse(strings.TrimSpace(prefix))
		if err != nil {
			return
		}
		if p := strings.Trim(u.Path, "/"); p != "" {
			m.prefix = "/" + p
		}
	}
}

// WithPageSize caps the number of records per emulated collection page.
func WithPageSize(n int) Option {
	return func(m *Mock) {
		if n > 0 {
			m.pageSize = n
		}
	}
}

// WithIDGenerator overrides the id assigned to created records.
func WithIDGenerator(fn func() string) Option {
	return func(m *Mock) {
		if fn != nil {
			m.newID = fn
		}
	}
}

// New creates an empty mock.
func New(opts ...Option) *Mock {
	m := &Mock{
		pageSize: 100,
		routes:   make(map[string]HandlerFunc),
		types:    make(map[string]*typeTable),
		gates:    make(map[string]chan struct{}),
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Seed loads routes and resource types from a seed.
func (m *Mock) Seed(seed *devseed.Seed) error {
	if seed == nil {
		return nil
	}
	if err := seed.Validate(); err != nil {
		return fmt.Errorf("mock: %w", err)
	}
	for _, t := range seed.Types {
		m.AddType(TypeDef{Name: t.Name, Fields: t.Fields, BaseType: t.BaseType}, t.Records...)
	}
	for _, r := range seed.Routes {
		header := make(http.Header, len(r.Headers))
		for k, v := range r.Headers {
			header.Set(k, v)
		}
		m.Handle(r.Method, r.Path, Response{Status: r.Status, Header: header, Body: r.Body})
	}
	return nil
}

// Handle registers a canned response. path may carry a query string; a
// route without a query matches any query on that path.
func (m *Mock) Handle(method, path string, resp Response) {
	r := resp
	m.HandleFunc(method, path, func(*apistore.BackendRequest) *Response {
		out := r
		return &out
	})
}

// HandleFunc registers a dynamic route.
func (m *Mock) HandleFunc(method, path string, fn HandlerFunc) {
	key := routeKey(method, m.canonical(path))
	m.mu.Lock()
	defer m.mu.Unlock()
	m.routes[key] = fn
}

// Block holds every request to method and path until the returned release
// function is called. Blocked requests are counted as calls immediately.
func (m *Mock) Block(method, path string) (release func()) {
	key := routeKey(method, m.canonical(path))
	gate := make(chan struct{})
	m.mu.Lock()
	m.gates[key] = gate
	m.mu.Unlock()
	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			if m.gates[key] == gate {
				delete(m.gates, key)
			}
			m.mu.Unlock()
			close(gate)
		})
	}
}

// Calls returns how many requests matched method and path. A path without a
// query counts requests with any query.
func (m *Mock) Calls(method, path string) int {
	want := m.canonical(path)
	wantPath, _, hasQuery := strings.Cut(want, "?")
	method = strings.ToUpper(method)
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		if c.Method != method {
			continue
		}
		if hasQuery {
			if c.Path == want {
				n++
			}
			continue
		}
		if p, _, _ := strings.Cut(c.Path, "?"); p == wantPath {
			n++
		}
	}
	return n
}

// Requests returns every recorded call in arrival order.
func (m *Mock) Requests() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Call(nil), m.calls...)
}

// TotalCalls returns the number of requests received.
func (m *Mock) TotalCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// Reset forgets recorded calls.
func (m *Mock) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
}

// Do implements apistore.Backend.
func (m *Mock) Do(ctx context.Context, req *apistore.BackendRequest) (*apistore.BackendResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	method := strings.ToUpper(req.Method)
	if method == "" {
		method = http.MethodGet
	}
	path := m.canonical(req.URL)
	bare, _, _ := strings.Cut(path, "?")

	m.mu.Lock()
	m.calls = append(m.calls, Call{
		Method: method,
		Path:   path,
		Header: req.Header.Clone(),
		Body:   append([]byte(nil), req.Body...),
	})
	gate := m.gates[routeKey(method, path)]
	if gate == nil {
		gate = m.gates[routeKey(method, bare)]
	}
	handler := m.routes[routeKey(method, path)]
	if handler == nil {
		handler = m.routes[routeKey(method, bare)]
	}
	m.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	var resp *Response
	if handler != nil {
		resp = handler(req)
	} else {
		resp = m.serveType(method, path, req.Body)
	}
	if resp == nil {
		resp = notFound(method, path)
	}
	return encode(resp)
}

// ServeHTTP exposes the mock over HTTP.
func (m *Mock) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	target := r.URL.Path
	if r.URL.RawQuery != "" {
		target += "?" + r.URL.RawQuery
	}
	resp, err := m.Do(r.Context(), &apistore.BackendRequest{
		Method: r.Method,
		URL:    target,
		Header: r.Header,
		Body:   body,
	})
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	for k, values := range resp.Header {
		for _, v := range values {
			w.Header().Add(k, v)
		}
	}
	w.WriteHeader(resp.Status)
	_, _ = w.Write(resp.Body)
}

// canonical strips the prefix path and surrounding slashes and sorts the
// query. Scheme and host are ignored.
func (m *Mock) canonical(raw string) string {
	raw = strings.TrimSpace(raw)
	u, err := url.Parse(raw)
	if err != nil {
		return strings.Trim(raw, "/")
	}
	path := "/" + strings.TrimLeft(u.Path, "/")
	if m.prefix != "" && (path == m.prefix || strings.HasPrefix(path, m.prefix+"/")) {
		path = strings.TrimPrefix(path, m.prefix)
	}
	path = strings.Trim(path, "/")
	q := u.Query()
	if len(q) == 0 {
		return path
	}
	for _, values := range q {
		sort.Strings(values)
	}
	return path + "?" + q.Encode()
}

func routeKey(method, path string) string {
	if method == "" {
		method = http.MethodGet
	}
	return strings.ToUpper(method) + " " + path
}

func encode(resp *Response) (*apistore.BackendResponse, error) {
	status := resp.Status
	if status == 0 {
		status = http.StatusOK
	}
	header := resp.Header.Clone()
	if header == nil {
		header = make(http.Header)
	}
	var body []byte
	switch b := resp.Body.(type) {
	case nil:
	case []byte:
		body = append([]byte(nil), b...)
	default:
		data, err := apibody.Encode(b)
		if err != nil {
			return nil, fmt.Errorf("mock: encode response: %w", err)
		}
		body = data
		if header.Get("Content-Type") == "" {
			header.Set("Content-Type", "application/json")
		}
	}
	return &apistore.BackendResponse{Status: status, Header: header, Body: body}, nil
}

func errorBody(status int, code, message string) map[string]any {
	return map[string]any{
		"type":    "error",
		"status":  status,
		"code":    code,
		"message": message,
	}
}

func notFound(method, path string) *Response {
	return &Response{
		Status: http.StatusNotFound,
		Body:   errorBody(http.StatusNotFound, "NotFound", fmt.Sprintf("no route for %s %s", method, path)),
	}
}

func atoiDefault(s string, def int) int {
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return def
	}
	return n
}
