package apistore

// collectionMetaKeys are copied from a raw collection body onto the
// Collection value.
var collectionMetaKeys = []string{
	"type",
	"actions",
	"createDefaults",
	"createTypes",
	"filters",
	"links",
	"pagination",
	"resourceType",
	"sort",
	"sortLinks",
}

// TypeifyOptions control hydration.
type TypeifyOptions struct {
	// NoStoreUpdate returns fresh instances without touching the cache.
	NoStoreUpdate bool
	// ApplyDefaults seeds missing fields from schema create defaults.
	ApplyDefaults bool
	// Key names the content array of collection bodies; "data" by default.
	Key string
	// Type overrides the record type of the top-level input.
	Type string
}

// CreateOptions control CreateRecord.
type CreateOptions struct {
	// Type overrides data["type"].
	Type string
	// NoDefaults skips schema create defaults.
	NoDefaults bool
}

// Typeify hydrates a decoded JSON value. Scalars pass through, arrays are
// mapped element-wise, collection bodies become *Collection, bodies with a
// type become records reconciled with the cache, and bodies without a type
// stay plain maps.
func (s *Store) Typeify(raw any, opts *TypeifyOptions) any {
	o := TypeifyOptions{}
	if opts != nil {
		o = *opts
	}
	w := &typeifier{store: s, opts: o, path: pathTracker{}}
	return w.value(raw, 0)
}

// CreateRecord builds a typed record from data without adding it to the
// cache. Schema defaults are applied unless opts.NoDefaults is set.
func (s *Store) CreateRecord(data map[string]any, opts *CreateOptions) (Model, error) {
	o := CreateOptions{}
	if opts != nil {
		o = *opts
	}
	t := NormalizeType(o.Type)
	if t == "" {
		t = normalizeValue(data[KeyType])
	}
	if t == "" {
		return nil, ErrNoType
	}
	w := &typeifier{
		store: s,
		opts:  TypeifyOptions{ApplyDefaults: !o.NoDefaults, Type: o.Type},
		path:  pathTracker{},
	}
	return w.createRecord(data, t, 0), nil
}

type typeifier struct {
	store *Store
	opts  TypeifyOptions
	path  pathTracker
}

func (w *typeifier) value(raw any, depth int) any {
	switch val := raw.(type) {
	case map[string]any:
		if depth > maxDepth {
			return map[string]any{}
		}
		leave, ok := w.path.enter(val)
		if !ok {
			return map[string]any{}
		}
		defer leave()
		return w.object(val, depth)
	case []any:
		if depth > maxDepth {
			return map[string]any{}
		}
		leave, ok := w.path.enter(val)
		if !ok {
			return map[string]any{}
		}
		defer leave()
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = w.value(item, depth+1)
		}
		return out
	default:
		return raw
	}
}

func (w *typeifier) object(input map[string]any, depth int) any {
	t := normalizeValue(input[KeyType])
	if depth == 0 && w.opts.Type != "" {
		t = NormalizeType(w.opts.Type)
	}
	switch t {
	case TypeCollection:
		return w.collection(input, depth)
	case "":
		return input
	}

	rec := w.createRecord(input, t, depth)
	w.store.metrics.typeified()
	id := rec.Base().ID()
	if id == "" || w.opts.NoStoreUpdate {
		return rec
	}
	return w.store.reconcile(t, rec)
}

func (w *typeifier) collection(input map[string]any, depth int) *Collection {
	key := w.opts.Key
	if key == "" {
		key = "data"
	}
	var content []any
	if items, ok := input[key].([]any); ok {
		content = make([]any, len(items))
		for i, item := range items {
			content[i] = w.value(item, depth+1)
		}
	}
	meta := make(map[string]any, len(collectionMetaKeys))
	for _, k := range collectionMetaKeys {
		if v, ok := input[k]; ok {
			meta[k] = v
		}
	}
	return &Collection{store: w.store, meta: meta, content: content}
}

func (w *typeifier) createRecord(data map[string]any, t string, depth int) Model {
	s := w.store
	schema := s.schemaFor(t)

	input := copyMap(data)
	if _, ok := input[KeyType]; !ok {
		input[KeyType] = t
	}
	if w.opts.ApplyDefaults && schema != nil {
		input = schema.CreateDefaults(input)
	}

	cfg := s.ModelFor(t)
	if cfg.MangleIn != nil {
		if mangled := cfg.MangleIn(input, s); mangled != nil {
			input = mangled
		}
	}

	if schema != nil {
		for _, k := range schema.TypeifyFields() {
			if v, ok := input[k]; ok && v != nil {
				input[k] = w.value(v, depth+1)
			}
		}
	}

	r := newResource(s, input)
	m := cfg.construct(r)
	r.self = m
	return m
}

// reconcile merges rec into the identity map. An existing instance for
// (t, id) absorbs rec's data and is returned in its place; otherwise rec is
// inserted under t and its base type. Dependents waiting on the record are
// notified afterwards.
func (s *Store) reconcile(t string, rec Model) Model {
	r := rec.Base()
	id := r.ID()
	baseType := NormalizeType(r.BaseType())
	if baseType == t {
		baseType = ""
	}

	var (
		existing Model
		evicted  []Model
		waiting  []missingEntry
	)
	s.mu.Lock()
	existing = s.state.cacheMap[t][id]
	if existing == nil {
		if e := s.addLocked(t, rec); e != nil {
			evicted = append(evicted, e)
		}
		if baseType != "" {
			if e := s.addLocked(baseType, rec); e != nil {
				evicted = append(evicted, e)
			}
		}
	}
	if !s.isNeverMissing(t) {
		waiting = append(waiting, s.takeMissingLocked(t, id)...)
		if baseType != "" && !s.isNeverMissing(baseType) {
			waiting = append(waiting, s.takeMissingLocked(baseType, id)...)
		}
	}
	s.mu.Unlock()

	out := rec
	if existing != nil {
		existing.Base().ReplaceWith(rec)
		out = existing
	} else {
		for _, e := range evicted {
			runRemoved(e)
		}
		runAdded(rec)
	}
	s.notify(waiting)
	return out
}

func (s *Store) schemaFor(t string) *Schema {
	if t == "" {
		return nil
	}
	m := s.GetByID(TypeSchema, t)
	if m == nil {
		return nil
	}
	if sc, ok := m.(*Schema); ok {
		return sc
	}
	return &Schema{Resource: m.Base()}
}
