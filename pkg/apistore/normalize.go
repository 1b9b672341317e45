package apistore

import (
	"strings"
	"unicode"
)

// NormalizeType returns the canonical cache key for a type name. Leading
// '#' markers and surrounding whitespace are dropped and the result is
// lowercased. The function is idempotent and maps blank input to "".
func NormalizeType(typeName string) string {
	trimmed := strings.TrimLeftFunc(typeName, func(r rune) bool {
		return r == '#' || unicode.IsSpace(r)
	})
	trimmed = strings.TrimRightFunc(trimmed, unicode.IsSpace)
	return strings.ToLower(trimmed)
}

// normalizeValue normalizes a decoded JSON value; anything but a string maps
// to the empty key.
func normalizeValue(v any) string {
	s, ok := v.(string)
	if !ok {
		return ""
	}
	return NormalizeType(s)
}
