package apistore

// Model is implemented by every hydrated record. *Resource satisfies it and
// custom record types embed *Resource to inherit the behaviour.
type Model interface {
	Base() *Resource
}

// Constructor wraps a freshly built Resource in a concrete Model.
type Constructor func(r *Resource) Model

// AddedHook is implemented by models that want to observe insertion into a
// store's cache.
type AddedHook interface {
	WasAdded()
}

// RemovedHook is implemented by models that want to observe removal from a
// store's cache.
type RemovedHook interface {
	WasRemoved()
}

// OutMangler rewrites the serialized form of a model before it is sent.
type OutMangler interface {
	MangleOut(data map[string]any) map[string]any
}

// Notifier receives change notifications for a field, for example when a
// record it references by id finally arrives in the cache.
type Notifier interface {
	NotifyPropertyChange(key string)
}

func defaultConstructor(r *Resource) Model {
	return r
}

func runAdded(m Model) {
	if h, ok := m.(AddedHook); ok {
		h.WasAdded()
	}
}

func runRemoved(m Model) {
	if h, ok := m.(RemovedHook); ok {
		h.WasRemoved()
	}
}
