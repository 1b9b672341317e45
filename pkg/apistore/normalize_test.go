package apistore

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeType(t *testing.T) {
	tests := []struct {
		in       string
		expected string
	}{
		{in: "User", expected: "user"},
		{in: "  CLUSTER  ", expected: "cluster"},
		{in: "#Schema", expected: "schema"},
		{in: "# # Project", expected: "project"},
		{in: "", expected: ""},
		{in: "   ", expected: ""},
		{in: "multiWord.Type", expected: "multiword.type"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := NormalizeType(tt.in)
			assert.Equal(t, tt.expected, got)
			assert.Equal(t, got, NormalizeType(got), "must be idempotent")
		})
	}
}

func TestNormalizeValue(t *testing.T) {
	assert.Equal(t, "user", normalizeValue("USER"))
	assert.Equal(t, "", normalizeValue(nil))
	assert.Equal(t, "", normalizeValue(42.0))
	assert.Equal(t, "", normalizeValue(map[string]any{}))
}
