package providers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nebulark/oneapi/pkg/provider"
	"github.com/nebulark/oneapi/providers/mistral"
	"github.com/nebulark/oneapi/providers/openailike"
	"github.com/nebulark/oneapi/providers/openrouter"
	"github.com/nebulark/oneapi/providers/together"
)

func TestCreateBuiltins(t *testing.T) {
	for _, typ := range []string{"openai", "anthropic", "gemini", "mistral", "together", "openrouter"} {
		prov, err := Create(provider.Config{Name: typ, Type: typ, APIKey: "sk-test"})
		require.NoError(t, err, "type %s", typ)
		assert.Equal(t, typ, prov.Name())
	}
}

func TestCreateReturnsPackageTypes(t *testing.T) {
	// Config-built providers carry the same concrete type as option-built
	// ones, so callers can assert either way.
	cases := []struct {
		typ   string
		check func(provider.Provider) bool
	}{
		{"mistral", func(p provider.Provider) bool { _, ok := p.(*mistral.Provider); return ok }},
		{"together", func(p provider.Provider) bool { _, ok := p.(*together.Provider); return ok }},
		{"openrouter", func(p provider.Provider) bool { _, ok := p.(*openrouter.Provider); return ok }},
	}
	for _, tc := range cases {
		prov, err := Create(provider.Config{Name: tc.typ, Type: tc.typ, APIKey: "sk-test"})
		require.NoError(t, err, "type %s", tc.typ)
		assert.True(t, tc.check(prov), "type %s", tc.typ)
	}
}

func TestCreateUnknownType(t *testing.T) {
	_, err := Create(provider.Config{Name: "x", Type: "does-not-exist"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown provider type")
}

func TestCustomFactory(t *testing.T) {
	Register("custom-test", func(cfg provider.Config) (provider.Provider, error) {
		return openailike.New(openailike.Info{
			Name:           cfg.Name,
			DefaultBaseURL: "https://api.custom.dev/v1",
		}), nil
	})

	prov, err := Create(provider.Config{Name: "mine", Type: "custom-test"})
	require.NoError(t, err)
	assert.Equal(t, "mine", prov.Name())
}

func TestListIncludesBuiltins(t *testing.T) {
	RegisterBuiltins()
	assert.Contains(t, List(), "anthropic")
}
