package apistore

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// Well-known record keys.
const (
	KeyType       = "type"
	KeyID         = "id"
	KeyBaseType   = "baseType"
	KeyLinks      = "links"
	KeyActions    = "actions"
	KeyPagination = "pagination"
)

var reservedKeys = []string{"includedKeys", "reservedKeys", "store"}

// Resource is the generic hydrated record: a type tag, an optional id,
// arbitrary fields and the links/actions/pagination metadata the server
// attached. It is safe for concurrent use.
type Resource struct {
	mu           sync.RWMutex
	fields       map[string]any
	includedKeys []string
	observers    []func(key string)

	store *Store
	self  Model
}

func newResource(s *Store, fields map[string]any) *Resource {
	if fields == nil {
		fields = make(map[string]any)
	}
	r := &Resource{fields: fields, store: s}
	r.self = r
	return r
}

// Base implements Model.
func (r *Resource) Base() *Resource {
	return r
}

// Model returns the outermost model wrapping this resource.
func (r *Resource) Model() Model {
	if r.self == nil {
		return r
	}
	return r.self
}

// Store returns the store the record was created by.
func (r *Resource) Store() *Store {
	return r.store
}

// Type returns the declared type tag as sent by the server.
func (r *Resource) Type() string {
	s, _ := r.Get(KeyType).(string)
	return s
}

// ID returns the record id, formatting numeric ids without a fraction.
func (r *Resource) ID() string {
	return idString(r.Get(KeyID))
}

// BaseType returns the secondary type the record is also indexed under.
func (r *Resource) BaseType() string {
	s, _ := r.Get(KeyBaseType).(string)
	return s
}

// Get returns the value stored under key.
func (r *Resource) Get(key string) any {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.fields[key]
}

// Lookup returns the value stored under key and whether it is present.
func (r *Resource) Lookup(key string) (any, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.fields[key]
	return v, ok
}

// GetString returns the value under key if it is a string.
func (r *Resource) GetString(key string) string {
	s, _ := r.Get(key).(string)
	return s
}

// Set stores value under key and notifies change observers.
func (r *Resource) Set(key string, value any) {
	r.mu.Lock()
	r.fields[key] = value
	r.mu.Unlock()
	r.NotifyPropertyChange(key)
}

// Unset removes key.
func (r *Resource) Unset(key string) {
	r.mu.Lock()
	delete(r.fields, key)
	r.mu.Unlock()
	r.NotifyPropertyChange(key)
}

// Fields returns a shallow copy of all stored fields, including reserved and
// underscore-prefixed keys.
func (r *Resource) Fields() map[string]any {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]any, len(r.fields))
	for k, v := range r.fields {
		out[k] = v
	}
	return out
}

// Keys returns the sorted data keys: underscore-prefixed, reserved and
// included-link keys are left out.
func (r *Resource) Keys() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.keysLocked()
}

func (r *Resource) keysLocked() []string {
	skip := make(map[string]struct{}, len(reservedKeys)+len(r.includedKeys))
	for _, k := range reservedKeys {
		skip[k] = struct{}{}
	}
	for _, k := range r.includedKeys {
		skip[k] = struct{}{}
	}
	if r.store != nil {
		if cfg := r.store.ModelFor(typeOfFields(r.fields)); cfg != nil {
			for _, k := range cfg.ReservedKeys {
				skip[k] = struct{}{}
			}
		}
	}
	out := make([]string, 0, len(r.fields))
	for k := range r.fields {
		if strings.HasPrefix(k, "_") {
			continue
		}
		if _, ok := skip[k]; ok {
			continue
		}
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// IncludedKeys returns the link names that were included when this record
// was last fetched.
func (r *Resource) IncludedKeys() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.includedKeys...)
}

func (r *Resource) addIncludedKeys(keys []string) {
	if len(keys) == 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, k := range keys {
		found := false
		for _, existing := range r.includedKeys {
			if existing == k {
				found = true
				break
			}
		}
		if !found {
			r.includedKeys = append(r.includedKeys, k)
		}
	}
}

// Links returns the named link URLs.
func (r *Resource) Links() map[string]string {
	return stringMap(r.Get(KeyLinks))
}

// LinkFor returns the URL of a named link, or "".
func (r *Resource) LinkFor(name string) string {
	return r.Links()[name]
}

// HasLink reports whether a named link is present.
func (r *Resource) HasLink(name string) bool {
	return r.LinkFor(name) != ""
}

// Actions returns the named action URLs.
func (r *Resource) Actions() map[string]string {
	return stringMap(r.Get(KeyActions))
}

// ActionFor returns the URL of a named action, or "".
func (r *Resource) ActionFor(name string) string {
	return r.Actions()[name]
}

// HasAction reports whether a named action is present.
func (r *Resource) HasAction(name string) bool {
	return r.ActionFor(name) != ""
}

// PageFor returns the pagination cursor URL for name, e.g. "next".
func (r *Resource) PageFor(name string) string {
	return stringMap(r.Get(KeyPagination))[name]
}

// Merge copies every data key of src onto r. With unionArrays set, keys
// holding a slice on both sides are concatenated instead of overwritten.
func (r *Resource) Merge(src Model, unionArrays bool) *Resource {
	if src == nil || src.Base() == r {
		return r
	}
	incoming := src.Base().dataSnapshot()
	r.mergeFields(incoming, unionArrays)
	return r
}

func (r *Resource) mergeFields(incoming map[string]any, unionArrays bool) {
	changed := make([]string, 0, len(incoming))
	r.mu.Lock()
	for k, v := range incoming {
		if unionArrays {
			cur, curOK := r.fields[k].([]any)
			next, nextOK := v.([]any)
			if curOK && nextOK {
				joined := make([]any, 0, len(cur)+len(next))
				joined = append(joined, cur...)
				joined = append(joined, next...)
				r.fields[k] = joined
				changed = append(changed, k)
				continue
			}
		}
		r.fields[k] = v
		changed = append(changed, k)
	}
	r.mu.Unlock()
	r.notifyAll(changed)
}

// ReplaceWith makes r mirror src: every data key of src is copied and data
// keys of r that src lacks are cleared. Link metadata, keys named after a
// current link, and the type/id identity keys are never cleared.
func (r *Resource) ReplaceWith(src Model) *Resource {
	if src == nil || src.Base() == r {
		return r
	}
	incoming := src.Base().dataSnapshot()

	changed := make([]string, 0, len(incoming))
	r.mu.Lock()
	for k, v := range incoming {
		r.fields[k] = v
		changed = append(changed, k)
	}
	links := stringMap(r.fields[KeyLinks])
	for _, k := range r.keysLocked() {
		if _, ok := incoming[k]; ok {
			continue
		}
		if k == KeyLinks || k == KeyType || k == KeyID || links[k] != "" {
			continue
		}
		delete(r.fields, k)
		changed = append(changed, k)
	}
	r.mu.Unlock()
	r.notifyAll(changed)
	return r
}

func (r *Resource) dataSnapshot() map[string]any {
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := r.keysLocked()
	out := make(map[string]any, len(keys))
	for _, k := range keys {
		out[k] = r.fields[k]
	}
	return out
}

// OnChange registers fn to be called whenever a field changes or a
// referenced record arrives.
func (r *Resource) OnChange(fn func(key string)) {
	if fn == nil {
		return
	}
	r.mu.Lock()
	r.observers = append(r.observers, fn)
	r.mu.Unlock()
}

// NotifyPropertyChange implements Notifier.
func (r *Resource) NotifyPropertyChange(key string) {
	r.mu.RLock()
	observers := append([]func(string){}, r.observers...)
	r.mu.RUnlock()
	for _, fn := range observers {
		fn(key)
	}
}

func (r *Resource) notifyAll(keys []string) {
	for _, k := range keys {
		r.NotifyPropertyChange(k)
	}
}

// Serialize returns the plain JSON form of the record. Nested models are
// serialized recursively; nesting beyond the depth bound and cycles become
// null.
func (r *Resource) Serialize() map[string]any {
	out := newSerializer().resource(r, 0)
	if m, ok := r.Model().(OutMangler); ok {
		out = m.MangleOut(out)
	}
	return out
}

// MarshalJSON implements json.Marshaler.
func (r *Resource) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.Serialize())
}

// Schema returns the cached schema describing the record's type.
func (r *Resource) Schema() *Schema {
	if r.store == nil {
		return nil
	}
	return r.store.schemaFor(NormalizeType(r.Type()))
}

// OptionsFor returns the enumerated options of a field from the schema.
func (r *Resource) OptionsFor(field string) []string {
	if s := r.Schema(); s != nil {
		return s.OptionsFor(field)
	}
	return nil
}

// DefaultFor returns the schema default of a field.
func (r *Resource) DefaultFor(field string) any {
	if s := r.Schema(); s != nil {
		return s.DefaultFor(field)
	}
	return nil
}

// IsRequired reports whether the schema marks a field as required.
func (r *Resource) IsRequired(field string) bool {
	if s := r.Schema(); s != nil {
		return s.IsRequired(field)
	}
	return false
}

func (r *Resource) String() string {
	str := "resource:" + r.Type()
	if id := r.ID(); id != "" {
		str += ":" + id
	}
	return str
}

func typeOfFields(fields map[string]any) string {
	return normalizeValue(fields[KeyType])
}

func idString(v any) string {
	switch id := v.(type) {
	case nil:
		return ""
	case string:
		return id
	case float64:
		return strconv.FormatFloat(id, 'f', -1, 64)
	case int:
		return strconv.Itoa(id)
	case int64:
		return strconv.FormatInt(id, 10)
	case json.Number:
		return id.String()
	default:
		return fmt.Sprint(id)
	}
}

func stringMap(v any) map[string]string {
	switch m := v.(type) {
	case map[string]string:
		return m
	case map[string]any:
		out := make(map[string]string, len(m))
		for k, val := range m {
			if s, ok := val.(string); ok {
				out[k] = s
			}
		}
		return out
	default:
		return map[string]string{}
	}
}
