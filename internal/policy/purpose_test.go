package policy_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mnemex-labs/mnemex/internal/model"
	"github.com/mnemex-labs/mnemex/internal/policy"
)

func TestNormalizePurpose(t *testing.T) {
	cases := []struct {
		purpose string
		want    model.PurposeClass
	}{
		{"generate a birthday message", model.PurposeContentGeneration},
		{"recommend a restaurant", model.PurposeRecommendation},
		{"check the calendar for tomorrow", model.PurposeScheduling},
		{"render the settings UI", model.PurposeUIRendering},
		{"send a notification alert", model.PurposeNotificationDelivery},
		{"execute the task now", model.PurposeTaskExecution},
		{"something unrelated", model.PurposeContentGeneration},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, policy.NormalizePurpose(tc.purpose))
	}
}

func TestCheckScopePurpose(t *testing.T) {
	assert.True(t, policy.CheckScopePurpose(model.ScopePreferences, model.PurposeRecommendation))
	assert.False(t, policy.CheckScopePurpose(model.ScopePreferences, model.PurposeTaskExecution))
	assert.True(t, policy.CheckScopePurpose(model.ScopeSchedule, model.PurposeTaskExecution))
	assert.False(t, policy.CheckScopePurpose(model.Scope("bogus"), model.PurposeRecommendation))
}
