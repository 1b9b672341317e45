package apistore

import (
	"reflect"
)

// maxDepth bounds recursion in typeify and serialization.
const maxDepth = 10

// pathTracker records the container identities on the current recursion
// path so that self-referencing input is cut instead of looping.
type pathTracker map[uintptr]struct{}

func (p pathTracker) enter(v any) (leave func(), ok bool) {
	id := identity(v)
	if id == 0 {
		return func() {}, true
	}
	if _, seen := p[id]; seen {
		return nil, false
	}
	p[id] = struct{}{}
	return func() { delete(p, id) }, true
}

func identity(v any) uintptr {
	switch v.(type) {
	case map[string]any, []any, *Resource, *Collection:
	default:
		if _, ok := v.(Model); !ok {
			return 0
		}
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Map, reflect.Pointer:
		if rv.IsNil() {
			return 0
		}
		return rv.Pointer()
	case reflect.Slice:
		if rv.Len() == 0 {
			return 0
		}
		return rv.Pointer()
	}
	return 0
}

type serializer struct {
	path pathTracker
}

func newSerializer() *serializer {
	return &serializer{path: pathTracker{}}
}

func (s *serializer) resource(r *Resource, depth int) map[string]any {
	if depth > maxDepth {
		return nil
	}
	leave, ok := s.path.enter(r)
	if !ok {
		return nil
	}
	defer leave()

	data := r.dataSnapshot()
	out := make(map[string]any, len(data))
	for k, v := range data {
		out[k] = s.value(v, depth+1)
	}
	return out
}

func (s *serializer) value(v any, depth int) any {
	if depth > maxDepth {
		return nil
	}
	switch val := v.(type) {
	case nil:
		return nil
	case *Collection:
		leave, ok := s.path.enter(val)
		if !ok {
			return nil
		}
		defer leave()
		content := val.Content()
		out := make([]any, len(content))
		for i, item := range content {
			out[i] = s.value(item, depth+1)
		}
		return out
	case Model:
		data := s.resource(val.Base(), depth)
		if data == nil {
			return nil
		}
		if m, ok := val.(OutMangler); ok {
			data = m.MangleOut(data)
		}
		return data
	case map[string]any:
		leave, ok := s.path.enter(val)
		if !ok {
			return nil
		}
		defer leave()
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = s.value(item, depth+1)
		}
		return out
	case []any:
		leave, ok := s.path.enter(val)
		if !ok {
			return nil
		}
		defer leave()
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = s.value(item, depth+1)
		}
		return out
	case []Model:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = s.value(item, depth+1)
		}
		return out
	default:
		return val
	}
}
