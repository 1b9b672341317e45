package apibody

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		expected any
	}{
		{name: "empty", body: "", expected: nil},
		{name: "whitespace", body: " \n\t", expected: nil},
		{name: "null", body: "null", expected: nil},
		{name: "object", body: `{"type":"user","id":"1"}`, expected: map[string]any{"type": "user", "id": "1"}},
		{name: "array", body: `[1,"a",true]`, expected: []any{float64(1), "a", true}},
		{name: "scalar string", body: `"hello"`, expected: "hello"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decode([]byte(tt.body))
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestDecodeInvalid(t *testing.T) {
	_, err := Decode([]byte(`{"broken"`))
	require.Error(t, err)
}

func TestDecodeIntoEmptyBody(t *testing.T) {
	var out map[string]any
	require.NoError(t, DecodeInto(nil, &out))
	assert.Nil(t, out)
}

func TestEncodeDoesNotEscapeHTML(t *testing.T) {
	data, err := Encode(map[string]any{"url": "http://x/?a=1&b=<2>"})
	require.NoError(t, err)
	assert.Equal(t, `{"url":"http://x/?a=1&b=<2>"}`, string(data))
}

func TestIsJSON(t *testing.T) {
	assert.True(t, IsJSON("application/json"))
	assert.True(t, IsJSON("application/json; charset=utf-8"))
	assert.True(t, IsJSON("application/vnd.api+json"))
	assert.False(t, IsJSON("text/plain"))
	assert.False(t, IsJSON(""))
}

func TestCloneIsDeep(t *testing.T) {
	src := map[string]any{"nested": map[string]any{"list": []any{"a"}}}
	cp := Clone(src).(map[string]any)
	cp["nested"].(map[string]any)["list"].([]any)[0] = "b"
	assert.Equal(t, "a", src["nested"].(map[string]any)["list"].([]any)[0])
}
