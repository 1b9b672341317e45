package apistore

import (
	"net/http"
)

// Built-in type names.
const (
	TypeResource   = "resource"
	TypeSchema     = "schema"
	TypeCollection = "collection"
	TypeError      = "error"
)

// TypeConfig is the per-type configuration held by a store's type registry.
type TypeConfig struct {
	// New wraps hydrated resources of this type. Nil means *Resource.
	New Constructor
	// Headers are sent with every request made on behalf of this type.
	Headers http.Header
	// AlwaysInclude lists link names requested with every fetch of this type.
	AlwaysInclude    []string
	DefaultLimit     int
	DefaultSortBy    string
	DefaultSortOrder string
	// MangleIn may rewrite raw input before construction, including its
	// baseType.
	MangleIn func(data map[string]any, s *Store) map[string]any
	// ReservedKeys are never serialized nor cleared by ReplaceWith.
	ReservedKeys []string
}

func (c *TypeConfig) construct(r *Resource) Model {
	if c == nil || c.New == nil {
		return r
	}
	m := c.New(r)
	if m == nil {
		return r
	}
	return m
}

var fallbackConfig = &TypeConfig{New: defaultConstructor}

func builtinModels() map[string]*TypeConfig {
	return map[string]*TypeConfig{
		TypeSchema:     {New: newSchema, MangleIn: mangleSchemaIn},
		TypeResource:   {New: defaultConstructor},
		TypeCollection: {New: defaultConstructor},
		TypeError:      {New: newAPIError},
	}
}

// RegisterModel associates cfg with a type name, replacing any previous
// registration.
func (s *Store) RegisterModel(typeName string, cfg TypeConfig) {
	t := NormalizeType(typeName)
	s.modelMu.Lock()
	defer s.modelMu.Unlock()
	s.models[t] = &cfg
	delete(s.fallbacks, t)
}

// RegisterModels registers several configurations at once.
func (s *Store) RegisterModels(cfgs map[string]TypeConfig) {
	for name, cfg := range cfgs {
		s.RegisterModel(name, cfg)
	}
}

// ReplaceModel is RegisterModel returning the store for chaining.
func (s *Store) ReplaceModel(typeName string, cfg TypeConfig) *Store {
	s.RegisterModel(typeName, cfg)
	return s
}

// UnregisterModel clears the registrations for the given types.
func (s *Store) UnregisterModel(typeNames ...string) {
	s.modelMu.Lock()
	defer s.modelMu.Unlock()
	for _, name := range typeNames {
		t := NormalizeType(name)
		delete(s.models, t)
		delete(s.fallbacks, t)
	}
}

// ModelFor returns the configuration registered for a type. Unknown types
// fall back to the resource configuration; the fallback is logged once and
// remembered.
func (s *Store) ModelFor(typeName string) *TypeConfig {
	t := NormalizeType(typeName)

	s.modelMu.RLock()
	cfg, ok := s.models[t]
	if !ok {
		if fb, seen := s.fallbacks[t]; seen {
			s.modelMu.RUnlock()
			return fb
		}
	}
	s.modelMu.RUnlock()
	if ok {
		return cfg
	}

	s.modelMu.Lock()
	defer s.modelMu.Unlock()
	if cfg, ok := s.models[t]; ok {
		return cfg
	}
	if fb, seen := s.fallbacks[t]; seen {
		return fb
	}
	fb := s.models[TypeResource]
	if fb == nil {
		fb = fallbackConfig
	}
	s.logger.Info("apistore: model not found, falling back to resource model", "type", t)
	s.fallbacks[t] = fb
	return fb
}

// HasModel reports whether a configuration was explicitly registered.
func (s *Store) HasModel(typeName string) bool {
	s.modelMu.RLock()
	defer s.modelMu.RUnlock()
	_, ok := s.models[NormalizeType(typeName)]
	return ok
}
