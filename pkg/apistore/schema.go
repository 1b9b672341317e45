package apistore

import (
	"encoding/json"
	"regexp"
	"sort"
	"strings"

	"github.com/Ratio1/apistore_sdk_go/internal/apibody"
)

// Simple field types are never hydrated; any field whose type chain contains
// one of them keeps its raw value.
var simpleFieldTypes = map[string]struct{}{
	"string": {}, "password": {}, "masked": {}, "multiline": {}, "float": {},
	"int": {}, "date": {}, "blob": {}, "boolean": {}, "enum": {},
	"reference": {}, "json": {},
}

// Nested field types wrap a subtype, e.g. array[string] or map[port].
var nestedFieldTypes = map[string]struct{}{
	"array": {}, "map": {},
}

var referencePattern = regexp.MustCompile(`^reference\[([^\]]*)\]$`)

// Field describes one entry of a schema's resourceFields.
type Field struct {
	Type         string   `json:"type"`
	Default      any      `json:"default,omitempty"`
	Create       bool     `json:"create,omitempty"`
	Update       bool     `json:"update,omitempty"`
	Required     bool     `json:"required,omitempty"`
	Nullable     bool     `json:"nullable,omitempty"`
	MinLength    *int     `json:"minLength,omitempty"`
	MaxLength    *int     `json:"maxLength,omitempty"`
	ValidChars   string   `json:"validChars,omitempty"`
	InvalidChars string   `json:"invalidChars,omitempty"`
	Options      []string `json:"options,omitempty"`
}

// Schema describes the fields and collection endpoint of one resource type.
type Schema struct {
	*Resource
}

func newSchema(r *Resource) Model {
	return &Schema{Resource: r}
}

// mangleSchemaIn keys schemas by normalized id so lookups such as
// GetByID("schema", NormalizeType("Thing")) match; the original id is kept
// under _id.
func mangleSchemaIn(data map[string]any, _ *Store) map[string]any {
	if id, ok := data[KeyID]; ok {
		data["_id"] = id
		data[KeyID] = NormalizeType(idString(id))
	}
	return data
}

// OriginalID returns the id as sent by the server, before normalization.
func (s *Schema) OriginalID() string {
	if v, ok := s.Lookup("_id"); ok {
		return idString(v)
	}
	return s.ID()
}

// CollectionURL returns the schema's collection link.
func (s *Schema) CollectionURL() string {
	return s.LinkFor(TypeCollection)
}

func (s *Schema) rawFields() map[string]map[string]any {
	raw, _ := s.Get("resourceFields").(map[string]any)
	out := make(map[string]map[string]any, len(raw))
	for name, def := range raw {
		if m, ok := def.(map[string]any); ok {
			out[name] = m
		}
	}
	return out
}

// ResourceFields decodes the field definitions.
func (s *Schema) ResourceFields() map[string]Field {
	raw := s.rawFields()
	out := make(map[string]Field, len(raw))
	for name, def := range raw {
		data, err := apibody.Encode(def)
		if err != nil {
			continue
		}
		var f Field
		if err := json.Unmarshal(data, &f); err != nil {
			continue
		}
		out[name] = f
	}
	return out
}

// FieldNames returns the sorted field names.
func (s *Schema) FieldNames() []string {
	raw := s.rawFields()
	out := make([]string, 0, len(raw))
	for name := range raw {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// TypeifyFields lists the fields whose values are hydrated when a record of
// this type is created: fields with a non-simple type chain plus includeable
// links. The schema of schemas has none.
func (s *Schema) TypeifyFields() []string {
	if s.ID() == TypeSchema {
		return nil
	}
	var out []string
	for name, f := range s.rawFields() {
		typ, _ := f["type"].(string)
		if typ == "" {
			continue
		}
		simple := false
		for _, part := range parseFieldType(typ) {
			if _, ok := simpleFieldTypes[part]; ok {
				simple = true
				break
			}
		}
		if !simple {
			out = append(out, name)
		}
	}
	if links, ok := s.Get("includeableLinks").([]any); ok {
		for _, l := range links {
			if name, ok := l.(string); ok && name != "" {
				out = append(out, name)
			}
		}
	}
	sort.Strings(out)
	return dedupeSorted(out)
}

// DefaultFor returns a field's declared default.
func (s *Schema) DefaultFor(field string) any {
	return s.rawFields()[field]["default"]
}

// IsRequired reports whether a field is required.
func (s *Schema) IsRequired(field string) bool {
	req, _ := s.rawFields()[field]["required"].(bool)
	return req
}

// CreateDefaults returns a copy of more seeded with deep copies of the
// defaults of every field marked for create. Values in more win.
func (s *Schema) CreateDefaults(more map[string]any) map[string]any {
	out := make(map[string]any)
	for name, f := range s.rawFields() {
		create, _ := f["create"].(bool)
		def, ok := f["default"]
		if !create || !ok || def == nil {
			continue
		}
		out[name] = apibody.Clone(def)
	}
	for k, v := range more {
		out[k] = v
	}
	return out
}

// OptionsFor returns the enumerated options of a field.
func (s *Schema) OptionsFor(field string) []string {
	opts, _ := s.rawFields()[field]["options"].([]any)
	out := make([]string, 0, len(opts))
	for _, o := range opts {
		if str, ok := o.(string); ok {
			out = append(out, str)
		}
	}
	return out
}

// TypesFor splits a field's type chain, e.g. "array[reference[host]]" into
// [array reference host].
func (s *Schema) TypesFor(field string) []string {
	typ, _ := s.rawFields()[field]["type"].(string)
	if typ == "" {
		return nil
	}
	return parseFieldType(typ)
}

// PrimaryTypeFor returns the outermost type of a field.
func (s *Schema) PrimaryTypeFor(field string) string {
	types := s.TypesFor(field)
	if len(types) == 0 {
		return ""
	}
	return types[0]
}

// SubTypeFor returns the type wrapped by the primary type, re-nested, e.g.
// "reference[host]" for "array[reference[host]]".
func (s *Schema) SubTypeFor(field string) string {
	types := s.TypesFor(field)
	switch {
	case len(types) < 2:
		return ""
	case len(types) == 2:
		return types[1]
	}
	out := types[len(types)-1]
	for i := len(types) - 2; i >= 1; i-- {
		out = types[i] + "[" + out + "]"
	}
	return out
}

// ReferencedTypeFor returns T for a field of type reference[T].
func (s *Schema) ReferencedTypeFor(field string) string {
	typ, _ := s.rawFields()[field]["type"].(string)
	if m := referencePattern.FindStringSubmatch(typ); m != nil {
		return m[1]
	}
	return ""
}

// IsNestedType reports whether a type name wraps a subtype.
func IsNestedType(typ string) bool {
	_, ok := nestedFieldTypes[typ]
	return ok
}

func parseFieldType(typ string) []string {
	return strings.Split(strings.ReplaceAll(typ, "]", ""), "[")
}

func dedupeSorted(in []string) []string {
	if len(in) < 2 {
		return in
	}
	out := in[:1]
	for _, v := range in[1:] {
		if v != out[len(out)-1] {
			out = append(out, v)
		}
	}
	return out
}
