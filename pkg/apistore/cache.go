package apistore

type missingEntry struct {
	dependent Notifier
	key       string
}

type cacheState struct {
	cache    map[string][]Model
	cacheMap map[string]map[string]Model
	foundAll map[string]bool
	missing  map[string]map[string][]missingEntry
}

func newCacheState() cacheState {
	return cacheState{
		cache:    make(map[string][]Model),
		cacheMap: make(map[string]map[string]Model),
		foundAll: make(map[string]bool),
		missing:  make(map[string]map[string][]missingEntry),
	}
}

func (st *cacheState) groupMap(t string) map[string]Model {
	g := st.cacheMap[t]
	if g == nil {
		g = make(map[string]Model)
		st.cacheMap[t] = g
	}
	return g
}

// GetByID returns the cached record for (type, id), or nil.
func (s *Store) GetByID(typeName, id string) Model {
	t := NormalizeType(typeName)
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.cacheMap[t][id]
}

// HasRecordFor reports whether a record for (type, id) is cached.
func (s *Store) HasRecordFor(typeName, id string) bool {
	return s.GetByID(typeName, id) != nil
}

// HasRecord reports whether this exact instance is the cached record for
// its (type, id).
func (s *Store) HasRecord(m Model) bool {
	if m == nil {
		return false
	}
	r := m.Base()
	t := NormalizeType(r.Type())
	s.mu.Lock()
	defer s.mu.Unlock()
	cached := s.state.cacheMap[t][r.ID()]
	return cached != nil && cached.Base() == r
}

// HaveAll reports whether an unfiltered listing of the type has completed.
func (s *Store) HaveAll(typeName string) bool {
	t := NormalizeType(typeName)
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.foundAll[t]
}

// All returns the cached records of a type in insertion order. The slice is
// a snapshot; the records are the live cached instances.
func (s *Store) All(typeName string) []Model {
	t := NormalizeType(typeName)
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Model(nil), s.state.cache[t]...)
}

// Add inserts m into the cache under typeName. If a different instance is
// already indexed under the same id it is evicted first, so the ordered
// sequence never holds two records for one id.
func (s *Store) Add(typeName string, m Model) {
	if m == nil {
		return
	}
	t := NormalizeType(typeName)
	s.mu.Lock()
	evicted := s.addLocked(t, m)
	s.mu.Unlock()
	if evicted != nil {
		runRemoved(evicted)
	}
	runAdded(m)
}

// addLocked requires s.mu. It returns the instance evicted to make room.
// Records without an id are only appended; the identity index skips them.
func (s *Store) addLocked(t string, m Model) Model {
	id := m.Base().ID()
	if id == "" {
		for _, item := range s.state.cache[t] {
			if item.Base() == m.Base() {
				return nil
			}
		}
		s.state.cache[t] = append(s.state.cache[t], m)
		return nil
	}
	group := s.state.groupMap(t)
	var evicted Model
	if existing := group[id]; existing != nil {
		if existing.Base() == m.Base() {
			return nil
		}
		s.removeFromSeqLocked(t, existing)
		evicted = existing
	}
	s.state.cache[t] = append(s.state.cache[t], m)
	group[id] = m
	return evicted
}

// Remove evicts m from the cache by reference.
func (s *Store) Remove(typeName string, m Model) {
	if m == nil {
		return
	}
	t := NormalizeType(typeName)
	s.mu.Lock()
	removed := s.removeLocked(t, m)
	s.mu.Unlock()
	if removed {
		runRemoved(m)
	}
}

func (s *Store) removeLocked(t string, m Model) bool {
	removed := s.removeFromSeqLocked(t, m)
	group := s.state.cacheMap[t]
	id := m.Base().ID()
	if cached, ok := group[id]; ok && cached.Base() == m.Base() {
		delete(group, id)
		removed = true
	}
	return removed
}

func (s *Store) removeFromSeqLocked(t string, m Model) bool {
	seq := s.state.cache[t]
	for i, item := range seq {
		if item.Base() == m.Base() {
			s.state.cache[t] = append(seq[:i:i], seq[i+1:]...)
			return true
		}
	}
	return false
}

// BulkAdd quickly hydrates many plain records of one type. Nested values are
// not hydrated and add hooks are not run; it exists for loading schemas.
func (s *Store) BulkAdd(typeName string, items []map[string]any) []Model {
	t := NormalizeType(typeName)
	cfg := s.ModelFor(t)
	out := make([]Model, 0, len(items))
	for _, item := range items {
		input := copyMap(item)
		if _, ok := input[KeyType]; !ok {
			input[KeyType] = t
		}
		if t == TypeSchema {
			input = mangleSchemaIn(input, s)
		}
		r := newResource(s, input)
		m := cfg.construct(r)
		r.self = m
		out = append(out, m)
	}
	s.mu.Lock()
	for _, m := range out {
		if m.Base().ID() == "" {
			continue
		}
		s.addLocked(t, m)
	}
	s.mu.Unlock()
	return out
}

// IsCacheable reports whether a fetch with opts may use and populate the
// fetch-all short-circuit: it must depaginate and carry no filter or include.
func (s *Store) IsCacheable(opts *FindOptions) bool {
	if opts == nil {
		return true
	}
	return !opts.NoDepaginate && len(opts.Filter) == 0 && len(opts.Include) == 0
}

// RegisterMissing records that dependent's field key refers to (type, id),
// which is not cached yet. The dependent is notified once when it arrives.
// Never-missing types are not tracked.
func (s *Store) RegisterMissing(typeName, id string, dependent Notifier, key string) {
	t := NormalizeType(typeName)
	if dependent == nil || s.isNeverMissing(t) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	group := s.state.missing[t]
	if group == nil {
		group = make(map[string][]missingEntry)
		s.state.missing[t] = group
	}
	group[id] = append(group[id], missingEntry{dependent: dependent, key: key})
}

// MissingCount returns the number of dependents waiting on (type, id).
func (s *Store) MissingCount(typeName, id string) int {
	t := NormalizeType(typeName)
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.state.missing[t][id])
}

// takeMissingLocked clears and returns the dependents waiting on (t, id).
func (s *Store) takeMissingLocked(t, id string) []missingEntry {
	group := s.state.missing[t]
	entries := group[id]
	if len(entries) > 0 {
		delete(group, id)
	}
	return entries
}

func (s *Store) notify(entries []missingEntry) {
	for _, e := range entries {
		e.dependent.NotifyPropertyChange(e.key)
	}
	s.metrics.missingNotified(len(entries))
}

// Reset forgets every cached record, fetch-all flag, in-flight request and
// missing-reference registration.
func (s *Store) Reset() {
	s.mu.Lock()
	s.state = newCacheState()
	s.mu.Unlock()
	s.queue.reset()
	s.logger.Debug("apistore: cache reset")
}

// ResetType forgets the cached records, fetch-all flag and missing-reference
// registrations of one type.
func (s *Store) ResetType(typeName string) {
	t := NormalizeType(typeName)
	s.mu.Lock()
	delete(s.state.cache, t)
	delete(s.state.cacheMap, t)
	delete(s.state.foundAll, t)
	delete(s.state.missing, t)
	s.mu.Unlock()
	s.queue.forgetType(t)
	s.logger.Debug("apistore: cache reset", "type", t)
}

func (s *Store) setFoundAll(t string) {
	s.mu.Lock()
	s.state.foundAll[t] = true
	s.mu.Unlock()
}

func copyMap(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
