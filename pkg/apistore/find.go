package apistore

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/Ratio1/apistore_sdk_go/internal/urlopts"
)

// FindOptions control Find.
type FindOptions struct {
	// Filter narrows a listing by field values.
	Filter url.Values
	// Include names links to embed in the response.
	Include []string
	// ForceReload asks the server even when the cache could answer.
	ForceReload bool
	// Limit is the page size; listings default to the store page size.
	Limit int
	// NoDepaginate returns only the first page of a listing.
	NoDepaginate bool
	// Header is sent with the request, above the type's headers.
	Header http.Header
	// URL is fetched as-is instead of resolving the type's schema. It is
	// meant for bootstrapping.
	URL string
	// RemoveMissing evicts cached records of the type that a full listing
	// no longer returns.
	RemoveMissing bool
	SortBy        string
	SortOrder     string
	// NoStoreUpdate hydrates the response without touching the cache.
	NoStoreUpdate bool
}

func (o *FindOptions) clone() *FindOptions {
	if o == nil {
		return &FindOptions{}
	}
	c := *o
	return &c
}

// Find fetches a record by id, or every record of a type when id is empty.
// Cached records and completed listings are answered without network
// access unless opts.ForceReload is set. Concurrent identical fetches share
// one request.
func (s *Store) Find(ctx context.Context, typeName, id string, opts *FindOptions) (any, error) {
	t := NormalizeType(typeName)
	if t == "" {
		return nil, ErrMissingType
	}
	o := opts.clone()
	if id == "" && o.Limit <= 0 {
		o.Limit = s.defaultPageSize
	}

	cacheable := s.IsCacheable(o)
	forAll := id == "" && cacheable
	if !o.ForceReload {
		if forAll && s.HaveAll(t) {
			s.metrics.cacheHit("all")
			s.logger.Debug("apistore: cache hit", "type", t)
			return s.All(t), nil
		}
		if cacheable && id != "" {
			if existing := s.GetByID(t, id); existing != nil {
				s.metrics.cacheHit("id")
				s.logger.Debug("apistore: cache hit", "type", t, "id", id)
				return existing, nil
			}
		}
	}

	if o.URL != "" {
		return s.findWithURL(ctx, o.URL, t, forAll, o)
	}

	schema, err := s.FindSchema(ctx, t)
	if err != nil {
		return nil, err
	}
	collectionURL := schema.CollectionURL()
	if collectionURL == "" {
		return nil, fmt.Errorf("%w: schema %s has no collection link", ErrUnknownLink, t)
	}
	if id != "" {
		collectionURL += "/" + url.PathEscape(id)
	}
	return s.findWithURL(ctx, collectionURL, t, forAll, o)
}

// FindByID fetches one record.
func (s *Store) FindByID(ctx context.Context, typeName, id string, opts *FindOptions) (Model, error) {
	if id == "" {
		return nil, fmt.Errorf("apistore: find %s: id is required", NormalizeType(typeName))
	}
	res, err := s.Find(ctx, typeName, id, opts)
	if err != nil {
		return nil, err
	}
	m, ok := res.(Model)
	if !ok {
		return nil, fmt.Errorf("apistore: find %s/%s: unexpected %T response", NormalizeType(typeName), id, res)
	}
	return m, nil
}

// FindAll lists every record of a type. A completed unfiltered listing is
// answered from the cache unless opts.ForceReload is set.
func (s *Store) FindAll(ctx context.Context, typeName string, opts *FindOptions) ([]Model, error) {
	t := NormalizeType(typeName)
	if t == "" {
		return nil, ErrMissingType
	}
	res, err := s.Find(ctx, t, "", opts)
	if err != nil {
		return nil, err
	}
	if s.IsCacheable(opts) && !(opts != nil && opts.NoStoreUpdate) {
		return s.All(t), nil
	}
	switch v := res.(type) {
	case *Collection:
		return v.Records(), nil
	case []Model:
		return v, nil
	case Model:
		return []Model{v}, nil
	default:
		return nil, nil
	}
}

// FindSchema returns the schema of a type, fetching schemas/<type> when it
// is not cached.
func (s *Store) FindSchema(ctx context.Context, typeName string) (*Schema, error) {
	t := NormalizeType(typeName)
	if t == "" {
		return nil, ErrMissingType
	}
	res, err := s.Find(ctx, TypeSchema, t, &FindOptions{URL: "schemas/" + url.PathEscape(t)})
	if err != nil {
		return nil, err
	}
	switch v := res.(type) {
	case *Schema:
		return v, nil
	case Model:
		return &Schema{Resource: v.Base()}, nil
	default:
		return nil, fmt.Errorf("apistore: schema %s: unexpected %T response", t, res)
	}
}

// findWithURL builds the query, then runs the request through the
// find-queue so identical concurrent fetches share one network call.
func (s *Store) findWithURL(ctx context.Context, rawURL, t string, forAll bool, o *FindOptions) (any, error) {
	cfg := s.ModelFor(t)
	full := urlopts.Build(rawURL, urlopts.Options{
		Filter:    o.Filter,
		Include:   o.Include,
		Limit:     o.Limit,
		SortBy:    o.SortBy,
		SortOrder: o.SortOrder,
	}, urlopts.Defaults{
		AlwaysInclude:    cfg.AlwaysInclude,
		DefaultLimit:     cfg.DefaultLimit,
		DefaultSortBy:    cfg.DefaultSortBy,
		DefaultSortOrder: cfg.DefaultSortOrder,
	})
	header := mergeHeaders(cfg.Headers, o.Header)
	key := queueKey(mergeHeaders(header, s.headers), full)
	include := urlopts.Includes(o.Include, cfg.AlwaysInclude)

	res, joined, err := s.queue.do(ctx, key, t, func(ctx context.Context) (any, error) {
		result, err := s.Request(ctx, &RequestOptions{
			Method:        http.MethodGet,
			URL:           full,
			Header:        header,
			NoDepaginate:  o.NoDepaginate,
			Include:       include,
			NoStoreUpdate: o.NoStoreUpdate,
		})
		if err != nil {
			return nil, err
		}
		if forAll && !o.NoStoreUpdate {
			s.setFoundAll(t)
			if col, ok := result.(*Collection); ok && o.RemoveMissing {
				s.removeMissing(t, col)
			}
		}
		return result, nil
	})
	if joined {
		s.metrics.dedupJoin()
		s.logger.Debug("apistore: joined in-flight request", "type", t, "url", full)
	}
	return res, err
}

// removeMissing evicts cached records of t that col does not contain.
func (s *Store) removeMissing(t string, col *Collection) {
	var stale []Model
	for _, m := range s.All(t) {
		if !col.Includes(m) {
			stale = append(stale, m)
		}
	}
	for _, m := range stale {
		s.Remove(t, m)
	}
	if len(stale) > 0 {
		s.logger.Debug("apistore: removed stale records", "type", t, "count", len(stale))
	}
}
