package apistore

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Ratio1/apistore_sdk_go/internal/apibody"
	"github.com/Ratio1/apistore_sdk_go/internal/httpx"
)

// RequestOptions describe one request issued through a store.
type RequestOptions struct {
	// Method defaults to GET.
	Method string
	// URL is relative to the backend base URL, or absolute.
	URL    string
	Header http.Header
	// Body is encoded as JSON. A Model is serialized first; []byte is sent
	// verbatim.
	Body any
	// NoDepaginate keeps a collection response to its first page.
	NoDepaginate bool
	// Include names the links that were requested inline. They are recorded
	// on every returned record.
	Include []string
	// ForceRemove evicts the record after a delete regardless of store
	// policy.
	ForceRemove bool
	// NoStoreUpdate hydrates the response without touching the cache.
	NoStoreUpdate bool
}

func (o *RequestOptions) clone() *RequestOptions {
	if o == nil {
		return &RequestOptions{}
	}
	c := *o
	c.Header = o.Header.Clone()
	c.Include = append([]string(nil), o.Include...)
	return &c
}

// Request sends a request through the backend and hydrates the response.
// A 204 yields nil, JSON bodies are typeified, and collections are
// depaginated unless opts.NoDepaginate is set. Failures are returned as
// *Error.
func (s *Store) Request(ctx context.Context, opts *RequestOptions) (any, error) {
	o := opts.clone()
	if o.Method == "" {
		o.Method = http.MethodGet
	}
	if s.mungeRequest != nil {
		if munged := s.mungeRequest(o); munged != nil {
			o = munged
		}
	}
	if s.backend == nil {
		return nil, ErrNoBackend
	}

	body, err := encodeBody(o.Body)
	if err != nil {
		return nil, fmt.Errorf("apistore: encode request body: %w", err)
	}
	req := &BackendRequest{
		Method: o.Method,
		URL:    o.URL,
		Header: s.requestHeaders(o.Header),
		Body:   body,
	}

	ctx, span := s.tracer.Start(ctx, "apistore.request",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("apistore.store", s.name),
			attribute.String("http.method", req.Method),
			attribute.String("http.url", req.URL),
		),
	)
	defer span.End()

	s.logger.Debug("apistore: request", "method", req.Method, "url", req.URL)
	resp, err := s.backend.Do(ctx, req)
	if err == nil && (resp.Status < 200 || resp.Status > 299) {
		err = &httpx.HTTPError{
			Method:     req.Method,
			URL:        req.URL,
			StatusCode: resp.Status,
			Body:       resp.Body,
			Header:     resp.Header,
		}
	}
	if err != nil {
		failure := s.requestFailed(err, req)
		s.metrics.request(req.Method, "error")
		span.RecordError(failure)
		span.SetStatus(codes.Error, failure.Error())
		if failure.Status != 0 {
			span.SetAttributes(attribute.Int("http.status_code", failure.Status))
		}
		return nil, failure
	}
	s.metrics.request(req.Method, "ok")
	span.SetAttributes(attribute.Int("http.status_code", resp.Status))

	if resp.Status == http.StatusNoContent || len(resp.Body) == 0 {
		return nil, nil
	}
	raw, err := apibody.Decode(resp.Body)
	if err != nil {
		failure := &Error{
			Status:  resp.Status,
			Message: "undecodable response body",
			Detail:  req.Method + " " + req.URL,
			Cause:   err,
		}
		span.RecordError(failure)
		span.SetStatus(codes.Error, failure.Error())
		return nil, failure
	}
	if _, ok := raw.(map[string]any); !ok {
		if _, ok := raw.([]any); !ok {
			return raw, nil
		}
	}

	out := s.Typeify(raw, &TypeifyOptions{NoStoreUpdate: o.NoStoreUpdate})
	if len(o.Include) > 0 {
		markIncluded(out, o.Include)
	}
	if col, ok := out.(*Collection); ok && !o.NoDepaginate {
		if err := col.Depaginate(ctx); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
	}
	return out, nil
}

// requestHeaders builds the outbound headers: JSON defaults, then the call's
// headers, then the store's defaults, each replacing earlier values per key.
func (s *Store) requestHeaders(call http.Header) http.Header {
	base := http.Header{
		"Accept":       {"application/json"},
		"Content-Type": {"application/json"},
	}
	return mergeHeaders(base, call, s.headers)
}

// requestFailed normalizes a backend failure into *Error. A JSON error body
// is hydrated and attached as the payload.
func (s *Store) requestFailed(err error, req *BackendRequest) *Error {
	var already *Error
	if errors.As(err, &already) {
		return already
	}
	out := &Error{
		Detail: req.Method + " " + req.URL,
		Cause:  err,
	}
	var httpErr *httpx.HTTPError
	if !errors.As(err, &httpErr) {
		out.Message = err.Error()
		return out
	}
	out.Status = httpErr.StatusCode
	data := httpErr.JSON
	if data == nil && len(httpErr.Body) > 0 {
		if decoded, derr := apibody.Decode(httpErr.Body); derr == nil {
			data = decoded
		}
	}
	switch payload := data.(type) {
	case map[string]any:
		hydrated := s.Typeify(payload, nil)
		out.Payload = hydrated
		if m, ok := hydrated.(Model); ok {
			out.Message = m.Base().GetString("message")
		} else {
			out.Message, _ = payload["message"].(string)
		}
	case nil:
		if len(httpErr.Body) > 0 {
			out.Message = string(httpErr.Body)
		}
	default:
		out.Payload = payload
		if str, ok := payload.(string); ok {
			out.Message = str
		}
	}
	return out
}

func encodeBody(body any) ([]byte, error) {
	switch b := body.(type) {
	case nil:
		return nil, nil
	case []byte:
		return b, nil
	case string:
		return []byte(b), nil
	case Model:
		return apibody.Encode(b.Base().Serialize())
	default:
		return apibody.Encode(b)
	}
}

func markIncluded(v any, include []string) {
	switch val := v.(type) {
	case Model:
		val.Base().addIncludedKeys(include)
	case *Collection:
		for _, m := range val.Records() {
			m.Base().addIncludedKeys(include)
		}
	case []any:
		for _, item := range val {
			if m, ok := item.(Model); ok {
				m.Base().addIncludedKeys(include)
			}
		}
	}
}

// mergeHeaders merges header sets in increasing precedence. A key present in
// a later set replaces every value of that key from earlier sets.
func mergeHeaders(sets ...http.Header) http.Header {
	out := make(http.Header)
	for _, h := range sets {
		for k, values := range h {
			name := http.CanonicalHeaderKey(k)
			out[name] = append([]string(nil), values...)
		}
	}
	return out
}
