// Package devseed loads seed files for the in-memory REST mock. Seeds are
// YAML; JSON files parse as well since JSON is a YAML subset.
package devseed

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Seed is the content of one seed file.
type Seed struct {
	// Types are served as REST resources: schema, collection, item routes.
	Types []TypeSeed `yaml:"types,omitempty"`
	// Routes are fixed responses matched by method and path.
	Routes []RouteSeed `yaml:"routes,omitempty"`
}

// TypeSeed describes one resource type and its initial records.
type TypeSeed struct {
	Name string `yaml:"name"`
	// Fields becomes the schema's resourceFields.
	Fields map[string]any `yaml:"fields,omitempty"`
	// BaseType is set on every record of the type.
	BaseType string           `yaml:"baseType,omitempty"`
	Records  []map[string]any `yaml:"records,omitempty"`
}

// RouteSeed is a canned response.
type RouteSeed struct {
	Method  string            `yaml:"method,omitempty"`
	Path    string            `yaml:"path"`
	Status  int               `yaml:"status,omitempty"`
	Headers map[string]string `yaml:"headers,omitempty"`
	Body    any               `yaml:"body,omitempty"`
}

// Load reads and parses a seed file.
func Load(path string) (*Seed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("devseed: read %s: %w", path, err)
	}
	seed, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("devseed: %s: %w", path, err)
	}
	return seed, nil
}

// Parse decodes seed content, rejecting unknown fields. An empty document
// yields an empty seed.
func Parse(data []byte) (*Seed, error) {
	var seed Seed
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&seed); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse seed: %w", err)
	}
	for i := range seed.Types {
		seed.Types[i].Fields = normalizeMap(seed.Types[i].Fields)
		for j, rec := range seed.Types[i].Records {
			seed.Types[i].Records[j] = normalizeMap(rec)
		}
	}
	for i := range seed.Routes {
		seed.Routes[i].Body = normalize(seed.Routes[i].Body)
	}
	if err := seed.Validate(); err != nil {
		return nil, err
	}
	return &seed, nil
}

// Validate checks names, paths and statuses and fills defaults.
func (s *Seed) Validate() error {
	seen := make(map[string]struct{}, len(s.Types))
	for _, t := range s.Types {
		name := strings.TrimSpace(t.Name)
		if name == "" {
			return fmt.Errorf("type entry missing name")
		}
		if _, dup := seen[name]; dup {
			return fmt.Errorf("type %q declared twice", name)
		}
		seen[name] = struct{}{}
	}
	for i := range s.Routes {
		r := &s.Routes[i]
		if strings.TrimSpace(r.Path) == "" {
			return fmt.Errorf("route %d missing path", i)
		}
		if r.Method == "" {
			r.Method = http.MethodGet
		}
		r.Method = strings.ToUpper(r.Method)
		if r.Status == 0 {
			r.Status = http.StatusOK
		}
		if r.Status < 100 || r.Status > 599 {
			return fmt.Errorf("route %s %s: invalid status %d", r.Method, r.Path, r.Status)
		}
	}
	return nil
}

func normalizeMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out, _ := normalize(m).(map[string]any)
	return out
}

// normalize converts YAML-decoded values into JSON-compatible ones: maps
// with non-string keys are stringified.
func normalize(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = normalize(item)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[fmt.Sprint(k)] = normalize(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = normalize(item)
		}
		return out
	default:
		return val
	}
}
