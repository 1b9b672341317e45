// Package apibody holds the JSON helpers shared by the transport and the
// store: decoding response bodies into generic values and encoding request
// bodies without HTML escaping.
package apibody

import (
	"bytes"
	"encoding/json"
	"strings"
)

// Decode parses body into the generic JSON representation (map[string]any,
// []any, string, float64, bool or nil). Empty and whitespace-only bodies
// decode to nil without error.
func Decode(body []byte) (any, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, nil
	}
	var payload any
	if err := json.Unmarshal(trimmed, &payload); err != nil {
		return nil, err
	}
	return payload, nil
}

// DecodeInto decodes body into out. An empty body is treated as JSON null.
func DecodeInto(body []byte, out any) error {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		trimmed = []byte("null")
	}
	return json.Unmarshal(trimmed, out)
}

// Encode serializes v to JSON without HTML escaping and without the trailing
// newline json.Encoder appends.
func Encode(v any) ([]byte, error) {
	buf := &bytes.Buffer{}
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// IsJSON reports whether contentType names a JSON media type, ignoring
// parameters such as charset.
func IsJSON(contentType string) bool {
	if contentType == "" {
		return false
	}
	if idx := strings.Index(contentType, ";"); idx >= 0 {
		contentType = contentType[:idx]
	}
	contentType = strings.ToLower(strings.TrimSpace(contentType))
	return contentType == "application/json" || strings.HasSuffix(contentType, "+json")
}

// Clone deep-copies a generic JSON value so callers can mutate the result
// without aliasing the source.
func Clone(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = Clone(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = Clone(item)
		}
		return out
	default:
		return val
	}
}
