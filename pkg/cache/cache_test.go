package cache

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func floatPtr(f float64) *float64 { return &f }

func TestKeyDeterministic(t *testing.T) {
	params := KeyParams{
		Provider:    "anthropic",
		Model:       "anthropic/claude-3-opus",
		Messages:    []byte(`[{"role":"user","content":"hi"}]`),
		Temperature: floatPtr(0.7),
		MaxTokens:   100,
	}

	assert.Equal(t, Key(params), Key(params))
	assert.True(t, strings.HasPrefix(Key(params), "chat:"))
}

func TestKeyVariesByField(t *testing.T) {
	base := KeyParams{
		Provider: "anthropic",
		Model:    "anthropic/claude-3-opus",
		Messages: []byte(`[{"role":"user","content":"hi"}]`),
	}

	variants := []KeyParams{
		{Provider: "openai", Model: base.Model, Messages: base.Messages},
		{Provider: base.Provider, Model: "anthropic/claude-3-haiku", Messages: base.Messages},
		{Provider: base.Provider, Model: base.Model, Messages: []byte(`[{"role":"user","content":"yo"}]`)},
		{Provider: base.Provider, Model: base.Model, Messages: base.Messages, Temperature: floatPtr(0.1)},
		{Provider: base.Provider, Model: base.Model, Messages: base.Messages, MaxTokens: 5},
	}
	for i, v := range variants {
		assert.NotEqual(t, Key(base), Key(v), "variant %d must produce a different key", i)
	}
}
