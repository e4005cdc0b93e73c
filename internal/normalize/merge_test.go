package normalize

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mnemex-labs/mnemex/internal/model"
)

func memFor(scope model.Scope, valueJSON string) model.Memory {
	return model.Memory{
		Scope:     scope,
		ValueJSON: json.RawMessage(valueJSON),
	}
}

func memForShape(scope model.Scope, shape model.ValueShape, valueJSON string) model.Memory {
	return model.Memory{
		Scope:      scope,
		ValueShape: shape,
		ValueJSON:  json.RawMessage(valueJSON),
	}
}

func TestMergeEmpty(t *testing.T) {
	result, err := Merge(model.ScopePreferences, nil)
	require.NoError(t, err)
	assert.Equal(t, MergeResult{}, result)
}

func TestMergeUnknownScope(t *testing.T) {
	_, err := Merge(model.Scope("bogus"), []model.Memory{memFor("bogus", `{}`)})
	assert.Error(t, err)
}

func TestMergePreferencesDedupesAndGrowsConfidence(t *testing.T) {
	memories := []model.Memory{
		memFor(model.ScopePreferences, `{"likes":["coffee"],"dislikes":["noise"]}`),
		memFor(model.ScopePreferences, `{"likes":["Coffee","tea"]}`),
	}
	result, err := Merge(model.ScopePreferences, memories)
	require.NoError(t, err)

	assert.Contains(t, result.SummaryText, "likes")
	assert.InDelta(t, 0.7, result.Confidence, 1e-9)

	var v map[string]any
	require.NoError(t, json.Unmarshal(result.SummaryStruct, &v))
	assert.ElementsMatch(t, []any{"coffee", "tea"}, v["likes"])
	assert.ElementsMatch(t, []any{"noise"}, v["dislikes"])
}

func TestMergeConfidenceCapsAt90Percent(t *testing.T) {
	var memories []model.Memory
	for i := 0; i < 10; i++ {
		memories = append(memories, memForShape(model.ScopeConstraints, model.ShapeRulesList, `["no pork"]`))
	}
	result, err := Merge(model.ScopeConstraints, memories)
	require.NoError(t, err)
	assert.Equal(t, 0.9, result.Confidence)
}

func TestMergeSummaryTextTruncated(t *testing.T) {
	longRule := strings.Repeat("a very long rule statement ", 20)
	result, err := Merge(model.ScopeConstraints, []model.Memory{
		memForShape(model.ScopeConstraints, model.ShapeRulesList, `["`+longRule+`"]`),
	})
	require.NoError(t, err)
	assert.LessOrEqual(t, len(result.SummaryText), summaryMaxLen)
	assert.True(t, strings.HasSuffix(result.SummaryText, "..."))
}

// TestMergeConstraintsBareArray writes through normalize.Value with the
// canonical bare-array rules_list shape (spec §7 / schemas.py's
// ["rule1","rule2","rule3"] example) rather than a {"rules": [...]} dict,
// the form mergeConstraints actually receives from a real write.
func TestMergeConstraintsBareArray(t *testing.T) {
	normalized, err := Value(json.RawMessage(`["no pork","no pork","No Shellfish"]`), model.ShapeRulesList)
	require.NoError(t, err)

	result, err := Merge(model.ScopeConstraints, []model.Memory{
		memForShape(model.ScopeConstraints, model.ShapeRulesList, string(normalized)),
	})
	require.NoError(t, err)

	var v map[string]any
	require.NoError(t, json.Unmarshal(result.SummaryStruct, &v))
	rules, ok := v["rules"].([]any)
	require.True(t, ok)
	assert.ElementsMatch(t, []any{"no pork", "No Shellfish"}, rules)
}

// TestMergeConstraintsKVMap exercises the other half of a constraints
// write: a kv_map payload (schemas.py's {"max_budget": 1000, ...} example)
// merges into the "constraints" field rather than being forced through the
// rules_list normalizer and silently dropped.
func TestMergeConstraintsKVMap(t *testing.T) {
	normalized, err := Value(json.RawMessage(`{"max_budget":1000,"preferred_vendors":["vendor1","vendor2"]}`), model.ShapeKVMap)
	require.NoError(t, err)

	result, err := Merge(model.ScopeConstraints, []model.Memory{
		memForShape(model.ScopeConstraints, model.ShapeKVMap, string(normalized)),
	})
	require.NoError(t, err)

	var v map[string]any
	require.NoError(t, json.Unmarshal(result.SummaryStruct, &v))
	constraints, ok := v["constraints"].(map[string]any)
	require.True(t, ok)
	assert.EqualValues(t, 1000, constraints["max_budget"])
}

func TestMergeScheduleDedupesWindows(t *testing.T) {
	memories := []model.Memory{
		memForShape(model.ScopeSchedule, model.ShapeScheduleWindows, `{"windows":[{"day":"mon","start":"09:00"}]}`),
		memForShape(model.ScopeSchedule, model.ShapeScheduleWindows, `{"windows":[{"day":"mon","start":"09:00"},{"day":"tue","start":"10:00"}]}`),
	}
	result, err := Merge(model.ScopeSchedule, memories)
	require.NoError(t, err)

	var v map[string]any
	require.NoError(t, json.Unmarshal(result.SummaryStruct, &v))
	windows, ok := v["windows"].([]any)
	require.True(t, ok)
	assert.Len(t, windows, 2)
}

// TestMergeScheduleBareArray exercises the canonical bare-array form a
// schedule_windows write actually normalizes to, rather than the
// {"windows": [...]} dict form.
func TestMergeScheduleBareArray(t *testing.T) {
	normalized, err := Value(json.RawMessage(`[{"day":"mon","start":"09:00"},{"day":"mon","start":"09:00"}]`), model.ShapeScheduleWindows)
	require.NoError(t, err)

	result, err := Merge(model.ScopeSchedule, []model.Memory{
		memForShape(model.ScopeSchedule, model.ShapeScheduleWindows, string(normalized)),
	})
	require.NoError(t, err)

	var v map[string]any
	require.NoError(t, json.Unmarshal(result.SummaryStruct, &v))
	windows, ok := v["windows"].([]any)
	require.True(t, ok)
	assert.Len(t, windows, 1)
}

// TestMergeScheduleTimeSlotsKey covers the time_slots key (schemas.py:81),
// the other alias a schedule_windows object may carry its window list under.
func TestMergeScheduleTimeSlotsKey(t *testing.T) {
	memories := []model.Memory{
		memForShape(model.ScopeSchedule, model.ShapeScheduleWindows, `{"time_slots":[{"day":"wed","start":"14:00"}]}`),
	}
	result, err := Merge(model.ScopeSchedule, memories)
	require.NoError(t, err)

	var v map[string]any
	require.NoError(t, json.Unmarshal(result.SummaryStruct, &v))
	windows, ok := v["windows"].([]any)
	require.True(t, ok)
	assert.Len(t, windows, 1)
}

func TestMergeAccessibilityListsEnabledFlags(t *testing.T) {
	memories := []model.Memory{
		memFor(model.ScopeAccessibility, `{"screen_reader":true,"high_contrast":false}`),
	}
	result, err := Merge(model.ScopeAccessibility, memories)
	require.NoError(t, err)
	assert.Equal(t, "screen_reader", result.SummaryText)
}
