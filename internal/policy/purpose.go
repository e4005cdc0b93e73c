package policy

import (
	"strings"

	"github.com/mnemex-labs/mnemex/internal/model"
)

// purposeMatrix is the v1 policy matrix of which purpose classes a scope
// may be read for (spec §4.1). Distinct from the v2 rule engine above:
// v1 reads are gated by a fixed scope/purpose_class matrix, not rules.
var purposeMatrix = map[model.Scope]map[model.PurposeClass]bool{
	model.ScopePreferences:  set(model.PurposeContentGeneration, model.PurposeRecommendation),
	model.ScopeConstraints:  set(model.PurposeRecommendation, model.PurposeScheduling, model.PurposeTaskExecution),
	model.ScopeCommunication: set(model.PurposeContentGeneration, model.PurposeNotificationDelivery, model.PurposeUIRendering),
	model.ScopeAccessibility: set(model.PurposeUIRendering, model.PurposeContentGeneration, model.PurposeNotificationDelivery),
	model.ScopeSchedule:     set(model.PurposeScheduling, model.PurposeTaskExecution),
	model.ScopeAttention:    set(model.PurposeNotificationDelivery, model.PurposeUIRendering),
}

func set(classes ...model.PurposeClass) map[model.PurposeClass]bool {
	m := make(map[model.PurposeClass]bool, len(classes))
	for _, c := range classes {
		m[c] = true
	}
	return m
}

// NormalizePurpose maps a free-text purpose string to its purpose_class by
// deterministic keyword matching. Falls back to content_generation when
// nothing matches, mirroring the reference behavior.
func NormalizePurpose(purpose string) model.PurposeClass {
	lower := strings.ToLower(purpose)
	switch {
	case containsAny(lower, "content", "generate", "create", "write"):
		return model.PurposeContentGeneration
	case containsAny(lower, "recommend", "suggest", "recommendation"):
		return model.PurposeRecommendation
	case containsAny(lower, "scheduling", "schedule", "calendar", "time"):
		return model.PurposeScheduling
	case containsAny(lower, "ui", "render", "display", "show"):
		return model.PurposeUIRendering
	case containsAny(lower, "notify", "notification", "alert"):
		return model.PurposeNotificationDelivery
	case containsAny(lower, "task", "execute", "action", "run"):
		return model.PurposeTaskExecution
	default:
		return model.PurposeContentGeneration
	}
}

func containsAny(s string, words ...string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}

// CheckScopePurpose reports whether purposeClass is permitted to read
// memories in scope under the fixed v1 policy matrix.
func CheckScopePurpose(scope model.Scope, purposeClass model.PurposeClass) bool {
	return purposeMatrix[scope][purposeClass]
}
