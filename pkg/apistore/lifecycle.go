package apistore

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/Ratio1/apistore_sdk_go/internal/apibody"
	"github.com/Ratio1/apistore_sdk_go/internal/urlopts"
)

// Request sends a request on behalf of the record, adding its type's
// headers beneath the call's headers.
func (r *Resource) Request(ctx context.Context, opts *RequestOptions) (any, error) {
	if r.store == nil {
		return nil, ErrNoStore
	}
	o := opts.clone()
	cfg := r.store.ModelFor(r.Type())
	o.Header = mergeHeaders(cfg.Headers, o.Header)
	return r.store.Request(ctx, o)
}

// Save creates the record with a POST when it has no id and updates it with
// a PUT to its self link otherwise. Without an explicit body the record is
// serialized minus its link and action metadata. A created record keeps the
// caller's instance as the cached one for the id the server assigned.
func (r *Resource) Save(ctx context.Context, opts *RequestOptions) (Model, error) {
	s := r.store
	if s == nil {
		return nil, ErrNoStore
	}
	o := opts.clone()
	creating := r.ID() == ""
	t := NormalizeType(r.Type())

	if o.URL == "" {
		if creating {
			target, err := r.createURL(ctx)
			if err != nil {
				return nil, err
			}
			o.URL = target
		} else {
			o.URL = r.LinkFor("self")
			if o.URL == "" {
				return nil, ErrNoSelfLink
			}
		}
	}
	if o.Method == "" {
		o.Method = http.MethodPut
		if creating {
			o.Method = http.MethodPost
		}
	}
	if o.Body == nil {
		o.Body = r.saveBody()
	}

	res, err := r.Request(ctx, o)
	if err != nil {
		return nil, err
	}
	if creating {
		r.adoptCreated(t, res)
	} else if m, ok := res.(Model); ok && m.Base() != r {
		r.ReplaceWith(m)
	}
	return r.Model(), nil
}

// createURL returns the collection link of the record's schema, falling
// back to the type name.
func (r *Resource) createURL(ctx context.Context) (string, error) {
	t := NormalizeType(r.Type())
	if t == "" {
		return "", ErrNoType
	}
	if sc := r.store.schemaFor(t); sc != nil {
		if u := sc.CollectionURL(); u != "" {
			return u, nil
		}
	}
	sc, err := r.store.FindSchema(ctx, t)
	if err != nil {
		// APIs without a schema for the type still accept creates at the
		// type's own path. Other failures are real and surface.
		if IsNotFound(err) {
			return url.PathEscape(t), nil
		}
		return "", err
	}
	if u := sc.CollectionURL(); u != "" {
		return u, nil
	}
	return url.PathEscape(t), nil
}

func (r *Resource) saveBody() map[string]any {
	data := r.Serialize()
	links := r.Links()
	delete(data, KeyLinks)
	delete(data, KeyActions)
	for name := range links {
		delete(data, name)
	}
	return data
}

// adoptCreated merges the server's answer into r and makes r the cached
// instance for the new id under the type and base type. An answer of another
// type, or one without an id, is left as the server returned it.
func (r *Resource) adoptCreated(t string, res any) {
	s := r.store
	m, ok := res.(Model)
	if !ok {
		return
	}
	created := m.Base()
	if NormalizeType(created.Type()) != t || created.ID() == "" {
		return
	}
	if created != r {
		r.Merge(m, false)
	}
	id := r.ID()
	self := r.Model()
	types := []string{t}
	if bt := NormalizeType(r.BaseType()); bt != "" && bt != t {
		types = append(types, bt)
	}

	var removed []Model
	s.mu.Lock()
	for _, typ := range types {
		if existing := s.state.cacheMap[typ][id]; existing != nil && existing.Base() != r {
			s.removeLocked(typ, existing)
			removed = append(removed, existing)
		}
		// r may already sit in the sequence from before it had an id.
		s.removeFromSeqLocked(typ, self)
		s.addLocked(typ, self)
	}
	s.mu.Unlock()

	for _, e := range removed {
		runRemoved(e)
	}
	runAdded(self)
}

// Delete sends a DELETE to opts.URL, or to the self link when unset. The record is evicted when the
// store removes after delete or opts.ForceRemove is set.
func (r *Resource) Delete(ctx context.Context, opts *RequestOptions) error {
	s := r.store
	if s == nil {
		return ErrNoStore
	}
	o := opts.clone()
	o.Method = http.MethodDelete
	if o.URL == "" {
		o.URL = r.LinkFor("self")
		if o.URL == "" {
			return ErrNoSelfLink
		}
	}
	if _, err := r.Request(ctx, o); err != nil {
		return err
	}
	if s.removeAfterDelete || o.ForceRemove {
		t := NormalizeType(r.Type())
		s.Remove(t, r.Model())
		if bt := NormalizeType(r.BaseType()); bt != "" && bt != t {
			s.Remove(bt, r.Model())
		}
	}
	return nil
}

// Reload fetches the self link again, requesting the type's always-included
// links, and merges the fresh data into this instance.
func (r *Resource) Reload(ctx context.Context, opts *RequestOptions) (Model, error) {
	s := r.store
	if s == nil {
		return nil, ErrNoStore
	}
	self := r.LinkFor("self")
	if self == "" {
		return nil, ErrNoSelfLink
	}
	cfg := s.ModelFor(r.Type())
	o := opts.clone()
	o.Method = http.MethodGet
	if o.URL == "" {
		o.URL = urlopts.AppendIncludes(self, cfg.AlwaysInclude)
	}
	o.Include = urlopts.Includes(o.Include, cfg.AlwaysInclude)
	res, err := r.Request(ctx, o)
	if err != nil {
		return nil, err
	}
	if m, ok := res.(Model); ok && m.Base() != r {
		r.ReplaceWith(m)
	}
	return r.Model(), nil
}

// FollowLink fetches a named link. Included links already present as
// fields are returned from the record.
func (r *Resource) FollowLink(ctx context.Context, name string, opts *FindOptions) (any, error) {
	target := r.LinkFor(name)
	if target == "" {
		return nil, fmt.Errorf("%w: %s", ErrUnknownLink, name)
	}
	if r.store == nil {
		return nil, ErrNoStore
	}
	o := opts.clone()
	if !o.ForceReload {
		if v, ok := r.Lookup(name); ok && v != nil {
			return v, nil
		}
	}
	built := urlopts.Build(target, urlopts.Options{
		Filter:    o.Filter,
		Include:   o.Include,
		Limit:     o.Limit,
		SortBy:    o.SortBy,
		SortOrder: o.SortOrder,
	}, urlopts.Defaults{})
	return r.Request(ctx, &RequestOptions{
		Method:        http.MethodGet,
		URL:           built,
		Header:        o.Header,
		NoDepaginate:  o.NoDepaginate,
		Include:       o.Include,
		NoStoreUpdate: o.NoStoreUpdate,
	})
}

// ImportLink follows a link and stores the result on the record under as,
// or under the link name when as is empty.
func (r *Resource) ImportLink(ctx context.Context, name, as string, opts *FindOptions) (any, error) {
	o := opts.clone()
	o.ForceReload = true
	res, err := r.FollowLink(ctx, name, o)
	if err != nil {
		return nil, err
	}
	if as == "" {
		as = name
	}
	r.Set(as, res)
	return res, nil
}

// FollowPagination fetches one pagination cursor of the record.
func (r *Resource) FollowPagination(ctx context.Context, name string) (any, error) {
	target := r.PageFor(name)
	if target == "" {
		return nil, fmt.Errorf("%w: %s", ErrUnknownLink, name)
	}
	return r.Request(ctx, &RequestOptions{Method: http.MethodGet, URL: target, NoDepaginate: true})
}

// DoAction posts to a named action. The delete and remove actions go
// through Delete so that cache policy applies.
func (r *Resource) DoAction(ctx context.Context, name string, opts *RequestOptions) (any, error) {
	target := r.ActionFor(name)
	if target == "" {
		return nil, fmt.Errorf("%w: %s", ErrUnknownAction, name)
	}
	o := opts.clone()
	if name == "delete" || name == "remove" {
		if o.URL == "" {
			o.URL = target
		}
		return nil, r.Delete(ctx, o)
	}
	if o.Method == "" {
		o.Method = http.MethodPost
	}
	if o.URL == "" {
		o.URL = target
	}
	return r.Request(ctx, o)
}

// Clone returns a detached copy of the record with the same data. The copy
// is not cached.
func (r *Resource) Clone() Model {
	fields := make(map[string]any)
	for k, v := range r.Fields() {
		fields[k] = apibody.Clone(v)
	}
	c := newResource(r.store, fields)
	var cfg *TypeConfig
	if r.store != nil {
		cfg = r.store.ModelFor(r.Type())
	}
	m := cfg.construct(c)
	c.self = m
	return m
}

// IsInStore reports whether this instance is the cached record for its id.
func (r *Resource) IsInStore() bool {
	if r.store == nil {
		return false
	}
	return r.store.HasRecord(r)
}
