package types //nolint:revive // package name is intentional

import (
	"fmt"
	"strings"
)

// MaxModelNameLength bounds accepted model identifiers.
const MaxModelNameLength = 256

// ValidateModelName checks that a model name is within acceptable bounds.
func ValidateModelName(model string) error {
	if len(model) > MaxModelNameLength {
		return fmt.Errorf("model is too long (max %d characters)", MaxModelNameLength)
	}
	return nil
}

// ThinkingSuffix marks model variants that run in extended-thinking mode.
// Such models get adjusted validation floors and rate-limit budgets.
const ThinkingSuffix = ":thinking"

// IsThinkingModel reports whether the model id names a thinking-mode variant.
func IsThinkingModel(model string) bool {
	return strings.HasSuffix(model, ThinkingSuffix)
}

// BaseModel strips the thinking-mode suffix, if present.
func BaseModel(model string) string {
	return strings.TrimSuffix(model, ThinkingSuffix)
}

// SplitProviderModel splits "provider/model" strings.
// Returns ("", model) when no provider prefix is present.
func SplitProviderModel(model string) (provider string, modelName string) {
	model = strings.TrimSpace(model)
	if model == "" {
		return "", ""
	}
	idx := strings.Index(model, "/")
	if idx <= 0 || idx >= len(model)-1 {
		return "", model
	}
	return model[:idx], model[idx+1:]
}

// Model represents an available model from a provider.
type Model struct {
	ID       string `json:"id"`
	Provider string `json:"provider"`
	Object   string `json:"object,omitempty"`
}
