// Package modelmap provides bidirectional mapping between normalized
// "<provider>/<slug>" model identifiers and vendor-native model strings.
// Tables are immutable once constructed; per-environment overrides are
// supplied at construction time rather than through package-level state.
package modelmap

import (
	"strings"

	"github.com/nebulark/oneapi/pkg/errors"
	"github.com/nebulark/oneapi/pkg/types"
)

// MissPolicy controls what a Mapper does when a normalized id has no entry
// in the table. The asymmetry across providers is deliberate and preserved:
// OpenAI-style providers pass unknown ids through to support arbitrary new
// model names, while Anthropic rejects them up front.
type MissPolicy int

const (
	// Permissive returns the cleaned input unchanged on a table miss.
	Permissive MissPolicy = iota
	// Strict returns an unsupported-model error on a table miss.
	Strict
)

// Mapper translates model ids for a single provider.
type Mapper struct {
	provider     string
	toProvider   map[string]string
	toNormalized map[string]string
	policy       MissPolicy
}

// New builds a Mapper from a normalized-id -> native-name table.
// The table is copied; later mutation of the argument has no effect.
func New(provider string, table map[string]string, policy MissPolicy) *Mapper {
	m := &Mapper{
		provider:     provider,
		toProvider:   make(map[string]string, len(table)),
		toNormalized: make(map[string]string, len(table)),
		policy:       policy,
	}
	for normalized, native := range table {
		m.toProvider[normalized] = native
		m.toNormalized[native] = normalized
	}
	return m
}

// Provider returns the provider this mapper serves.
func (m *Mapper) Provider() string {
	return m.provider
}

// Clean strips any number of repeated "<provider>/" prefixes from the id.
// Upstream callers occasionally double-prefix ids; both
// "anthropic/claude-3-opus" and "anthropic/anthropic/claude-3-opus" must
// resolve to the same entry. The thinking-mode suffix survives cleaning.
func (m *Mapper) Clean(model string) string {
	prefix := m.provider + "/"
	for strings.HasPrefix(model, prefix) {
		model = strings.TrimPrefix(model, prefix)
	}
	return model
}

// ToProviderModel maps a normalized id to the vendor-native model string.
// The thinking-mode suffix is stripped for lookup and never forwarded to the
// vendor; it only affects local validation and rate limiting.
func (m *Mapper) ToProviderModel(model string) (string, error) {
	cleaned := m.Clean(model)
	base := types.BaseModel(cleaned)

	if native, ok := m.toProvider[m.provider+"/"+base]; ok {
		return native, nil
	}
	if native, ok := m.toProvider[base]; ok {
		return native, nil
	}

	if m.policy == Strict {
		return "", errors.NewUnsupportedModelError(m.provider, model)
	}
	return base, nil
}

// ToNormalizedModel maps a vendor-native model string back to the
// normalized id. Unknown native names pass through unchanged so responses
// for new vendor models are never rejected.
func (m *Mapper) ToNormalizedModel(native string) string {
	if normalized, ok := m.toNormalized[native]; ok {
		return normalized
	}
	return native
}

// Contains reports whether the normalized id has a table entry.
func (m *Mapper) Contains(model string) bool {
	base := types.BaseModel(m.Clean(model))
	if _, ok := m.toProvider[m.provider+"/"+base]; ok {
		return true
	}
	_, ok := m.toProvider[base]
	return ok
}

// Normalized returns all normalized ids in the table.
func (m *Mapper) Normalized() []string {
	ids := make([]string, 0, len(m.toProvider))
	for id := range m.toProvider {
		ids = append(ids, id)
	}
	return ids
}
