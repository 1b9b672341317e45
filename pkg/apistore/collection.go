package apistore

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/Ratio1/apistore_sdk_go/internal/urlopts"
)

// Collection is a list response: ordered content plus the collection
// metadata (links, actions, pagination, filters, sort...). Collections are
// response envelopes and are never cached by id.
type Collection struct {
	mu      sync.RWMutex
	store   *Store
	meta    map[string]any
	content []any
}

// Store returns the store that hydrated the collection.
func (c *Collection) Store() *Store {
	return c.store
}

// Meta returns a metadata value, e.g. "filters" or "sortLinks".
func (c *Collection) Meta(key string) any {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.meta[key]
}

// Type returns the body's type tag, normally "collection".
func (c *Collection) Type() string {
	s, _ := c.Meta(KeyType).(string)
	return s
}

// ResourceType returns the declared type of the content.
func (c *Collection) ResourceType() string {
	s, _ := c.Meta("resourceType").(string)
	return s
}

// Links returns the collection links.
func (c *Collection) Links() map[string]string {
	return stringMap(c.Meta(KeyLinks))
}

// LinkFor returns a collection link, or "".
func (c *Collection) LinkFor(name string) string {
	return c.Links()[name]
}

// ActionFor returns a collection action URL, or "".
func (c *Collection) ActionFor(name string) string {
	return stringMap(c.Meta(KeyActions))[name]
}

// Pagination returns the pagination cursors.
func (c *Collection) Pagination() map[string]any {
	p, _ := c.Meta(KeyPagination).(map[string]any)
	return p
}

// PageFor returns a pagination cursor URL, e.g. "next".
func (c *Collection) PageFor(name string) string {
	return stringMap(c.Meta(KeyPagination))[name]
}

// Len returns the number of content items.
func (c *Collection) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.content)
}

// At returns the content item at idx, or nil when out of range.
func (c *Collection) At(idx int) any {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if idx < 0 || idx >= len(c.content) {
		return nil
	}
	return c.content[idx]
}

// Content returns a snapshot of the content in server order.
func (c *Collection) Content() []any {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]any(nil), c.content...)
}

// Records returns the content items that are records.
func (c *Collection) Records() []Model {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Model, 0, len(c.content))
	for _, item := range c.content {
		if m, ok := item.(Model); ok {
			out = append(out, m)
		}
	}
	return out
}

// GetByID returns the first record with the given id.
func (c *Collection) GetByID(id string) Model {
	for _, m := range c.Records() {
		if m.Base().ID() == id {
			return m
		}
	}
	return nil
}

// Includes reports whether m is one of the content records, by identity.
func (c *Collection) Includes(m Model) bool {
	if m == nil {
		return false
	}
	for _, item := range c.Records() {
		if item.Base() == m.Base() {
			return true
		}
	}
	return false
}

// Push appends items to the content.
func (c *Collection) Push(items ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.content = append(c.content, items...)
}

// Request sends a request on behalf of the collection's resource type,
// adding that type's headers and always-included links.
func (c *Collection) Request(ctx context.Context, opts *RequestOptions) (any, error) {
	if c.store == nil {
		return nil, ErrNoStore
	}
	o := RequestOptions{}
	if opts != nil {
		o = *opts
	}
	cfg := c.store.ModelFor(c.ResourceType())
	o.Header = mergeHeaders(cfg.Headers, o.Header)
	o.Include = urlopts.Includes(o.Include, cfg.AlwaysInclude)
	return c.store.Request(ctx, &o)
}

// Depaginate follows pagination.next until the server reports no further
// page, appending each page's content in order. Pages are fetched strictly
// one after another.
func (c *Collection) Depaginate(ctx context.Context) error {
	seen := make(map[string]struct{})
	for {
		next := c.PageFor("next")
		if next == "" {
			return nil
		}
		if _, dup := seen[next]; dup {
			return fmt.Errorf("apistore: pagination loop at %s", next)
		}
		seen[next] = struct{}{}

		res, err := c.Request(ctx, &RequestOptions{
			Method:       http.MethodGet,
			URL:          next,
			NoDepaginate: true,
		})
		if err != nil {
			return err
		}
		page, ok := res.(*Collection)
		if !ok {
			return fmt.Errorf("apistore: page %s is %T, not a collection", next, res)
		}
		pageContent := page.Content()
		pagination := page.Meta(KeyPagination)

		c.mu.Lock()
		if pagination == nil {
			delete(c.meta, KeyPagination)
		} else {
			c.meta[KeyPagination] = pagination
		}
		c.content = append(c.content, pageContent...)
		c.mu.Unlock()
	}
}

// FollowPagination fetches a single pagination cursor without depaginating.
func (c *Collection) FollowPagination(ctx context.Context, name string) (any, error) {
	url := c.PageFor(name)
	if url == "" {
		return nil, fmt.Errorf("%w: %s", ErrUnknownLink, name)
	}
	return c.Request(ctx, &RequestOptions{Method: http.MethodGet, URL: url, NoDepaginate: true})
}

// FollowLink fetches a collection link.
func (c *Collection) FollowLink(ctx context.Context, name string) (any, error) {
	url := c.LinkFor(name)
	if url == "" {
		return nil, fmt.Errorf("%w: %s", ErrUnknownLink, name)
	}
	return c.Request(ctx, &RequestOptions{Method: http.MethodGet, URL: url})
}

// DoAction posts to a collection action.
func (c *Collection) DoAction(ctx context.Context, name string, opts *RequestOptions) (any, error) {
	url := c.ActionFor(name)
	if url == "" {
		return nil, fmt.Errorf("%w: %s", ErrUnknownAction, name)
	}
	o := RequestOptions{}
	if opts != nil {
		o = *opts
	}
	o.Method = http.MethodPost
	if o.URL == "" {
		o.URL = url
	}
	return c.Request(ctx, &o)
}

// MarshalJSON serializes the metadata plus the content under "data".
func (c *Collection) MarshalJSON() ([]byte, error) {
	c.mu.RLock()
	out := make(map[string]any, len(c.meta)+1)
	for k, v := range c.meta {
		out[k] = v
	}
	c.mu.RUnlock()
	out["data"] = newSerializer().value(c, 0)
	return json.Marshal(out)
}

func (c *Collection) String() string {
	return fmt.Sprintf("collection:%s[%d]", c.ResourceType(), c.Len())
}
