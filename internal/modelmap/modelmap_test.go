package modelmap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nebulark/oneapi/pkg/errors"
)

var testTable = map[string]string{
	"anthropic/claude-3-opus":     "claude-3-opus-20240229",
	"anthropic/claude-3-5-sonnet": "claude-3-5-sonnet-20241022",
}

func TestToProviderModel(t *testing.T) {
	m := New("anthropic", testTable, Strict)

	native, err := m.ToProviderModel("anthropic/claude-3-opus")
	require.NoError(t, err)
	assert.Equal(t, "claude-3-opus-20240229", native)
}

func TestCleanStripsRepeatedPrefix(t *testing.T) {
	m := New("anthropic", testTable, Strict)

	tests := []struct {
		input string
		want  string
	}{
		{"anthropic/claude-3-opus", "claude-3-opus"},
		{"anthropic/anthropic/claude-3-opus", "claude-3-opus"},
		{"anthropic/anthropic/anthropic/claude-3-opus", "claude-3-opus"},
		{"claude-3-opus", "claude-3-opus"},
		{"openai/gpt-4o", "openai/gpt-4o"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, m.Clean(tt.input), "input %q", tt.input)
	}
}

func TestDoublePrefixResolvesSameEntry(t *testing.T) {
	m := New("anthropic", testTable, Strict)

	single, err := m.ToProviderModel("anthropic/claude-3-opus")
	require.NoError(t, err)
	double, err := m.ToProviderModel("anthropic/anthropic/claude-3-opus")
	require.NoError(t, err)
	assert.Equal(t, single, double)
}

func TestThinkingSuffixStrippedForLookup(t *testing.T) {
	m := New("anthropic", testTable, Strict)

	native, err := m.ToProviderModel("anthropic/claude-3-opus:thinking")
	require.NoError(t, err)
	assert.Equal(t, "claude-3-opus-20240229", native, "suffix must never reach the vendor")
}

func TestStrictMissRejected(t *testing.T) {
	m := New("anthropic", testTable, Strict)

	_, err := m.ToProviderModel("anthropic/claude-99")
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.TypeUnsupportedModel))
}

func TestPermissiveMissPassesThrough(t *testing.T) {
	m := New("openai", map[string]string{"openai/gpt-4o": "gpt-4o"}, Permissive)

	native, err := m.ToProviderModel("openai/gpt-5-preview")
	require.NoError(t, err)
	assert.Equal(t, "gpt-5-preview", native)
}

func TestToNormalizedModel(t *testing.T) {
	m := New("anthropic", testTable, Strict)

	assert.Equal(t, "anthropic/claude-3-opus", m.ToNormalizedModel("claude-3-opus-20240229"))
	assert.Equal(t, "claude-unknown", m.ToNormalizedModel("claude-unknown"))
}

func TestRoundTrip(t *testing.T) {
	m := New("anthropic", testTable, Strict)

	for normalized := range testTable {
		native, err := m.ToProviderModel(normalized)
		require.NoError(t, err)
		assert.Equal(t, normalized, m.ToNormalizedModel(native))
	}
}

func TestContains(t *testing.T) {
	m := New("anthropic", testTable, Strict)

	assert.True(t, m.Contains("anthropic/claude-3-opus"))
	assert.True(t, m.Contains("anthropic/claude-3-opus:thinking"))
	assert.False(t, m.Contains("anthropic/claude-99"))
}

func TestNormalized(t *testing.T) {
	m := New("anthropic", testTable, Strict)

	ids := m.Normalized()
	assert.Len(t, ids, len(testTable))
	assert.Contains(t, ids, "anthropic/claude-3-opus")
}
