package normalize

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mnemex-labs/mnemex/internal/model"
)

func TestValueLikesDislikes(t *testing.T) {
	raw := json.RawMessage(`{"likes":["Coffee","coffee","Tea"],"dislikes":["Noise"]}`)
	out, err := Value(raw, model.ShapeLikesDislikes)
	require.NoError(t, err)

	var v map[string]any
	require.NoError(t, json.Unmarshal(out, &v))
	assert.Equal(t, []any{"Coffee", "Tea"}, v["likes"])
	assert.Equal(t, []any{"Noise"}, v["dislikes"])
}

func TestValueRulesList(t *testing.T) {
	raw := json.RawMessage(`["no pork","no pork","vegetarian"]`)
	out, err := Value(raw, model.ShapeRulesList)
	require.NoError(t, err)

	var v []string
	require.NoError(t, json.Unmarshal(out, &v))
	assert.Equal(t, []string{"no pork", "vegetarian"}, v)
}

func TestValueBooleanFlags(t *testing.T) {
	raw := json.RawMessage(`{"DarkMode":true,"Notifications":false}`)
	out, err := Value(raw, model.ShapeBooleanFlags)
	require.NoError(t, err)

	var v map[string]any
	require.NoError(t, json.Unmarshal(out, &v))
	assert.Equal(t, true, v["darkmode"])
	assert.Equal(t, false, v["notifications"])
}

func TestValueScheduleWindowsDedup(t *testing.T) {
	raw := json.RawMessage(`[{"day":"mon","start":"09:00"},{"day":"mon","start":"09:00"},{"day":"tue","start":"10:00"}]`)
	out, err := Value(raw, model.ShapeScheduleWindows)
	require.NoError(t, err)

	var v []map[string]any
	require.NoError(t, json.Unmarshal(out, &v))
	assert.Len(t, v, 2)
}

func TestValueAttentionSettings(t *testing.T) {
	raw := json.RawMessage(`{"Topics":["Sports","sports","Politics"]}`)
	out, err := Value(raw, model.ShapeAttentionSettings)
	require.NoError(t, err)

	var v map[string]any
	require.NoError(t, json.Unmarshal(out, &v))
	assert.ElementsMatch(t, []any{"sports", "sports", "politics"}, v["topics"])
}

func TestValueKVMapLowercasesTagFields(t *testing.T) {
	raw := json.RawMessage(`{"PrimaryTag":"Urgent","Count":3}`)
	out, err := Value(raw, model.ShapeKVMap)
	require.NoError(t, err)

	var v map[string]any
	require.NoError(t, json.Unmarshal(out, &v))
	assert.Equal(t, "urgent", v["primarytag"])
	assert.Equal(t, float64(3), v["count"])
}

func TestDetectShapeLikesDislikes(t *testing.T) {
	shape, ok := DetectShape(json.RawMessage(`{"likes":["coffee","tea"],"dislikes":["milk"]}`))
	require.True(t, ok)
	assert.Equal(t, model.ShapeLikesDislikes, shape)
}

// TestDetectShapeKVMapIndependentOfScope is the regression case the
// documented preferences example ({"theme":"dark","language":"en"}) and
// constraints example ({"max_budget":1000,...}) both hit: neither carries
// likes/dislikes/windows/focus_mode keys, so both are kv_map regardless of
// which scope they're written into.
func TestDetectShapeKVMapIndependentOfScope(t *testing.T) {
	shape, ok := DetectShape(json.RawMessage(`{"theme":"dark","language":"en"}`))
	require.True(t, ok)
	assert.Equal(t, model.ShapeKVMap, shape)

	shape, ok = DetectShape(json.RawMessage(`{"max_budget":1000,"preferred_vendors":["vendor1","vendor2"]}`))
	require.True(t, ok)
	assert.Equal(t, model.ShapeKVMap, shape)
}

func TestDetectShapeRulesList(t *testing.T) {
	shape, ok := DetectShape(json.RawMessage(`["rule1","rule2","rule3"]`))
	require.True(t, ok)
	assert.Equal(t, model.ShapeRulesList, shape)
}

func TestDetectShapeScheduleWindowsFromBareArray(t *testing.T) {
	shape, ok := DetectShape(json.RawMessage(`[{"day":"mon","start":"09:00"}]`))
	require.True(t, ok)
	assert.Equal(t, model.ShapeScheduleWindows, shape)
}

func TestDetectShapeScheduleWindowsFromTimeSlotsKey(t *testing.T) {
	shape, ok := DetectShape(json.RawMessage(`{"time_slots":[{"day":"wed","start":"14:00"}]}`))
	require.True(t, ok)
	assert.Equal(t, model.ShapeScheduleWindows, shape)
}

func TestDetectShapeBooleanFlags(t *testing.T) {
	shape, ok := DetectShape(json.RawMessage(`{"dark_mode":true,"notifications":false}`))
	require.True(t, ok)
	assert.Equal(t, model.ShapeBooleanFlags, shape)
}

func TestDetectShapeAttentionSettings(t *testing.T) {
	shape, ok := DetectShape(json.RawMessage(`{"focus_mode":"deep_work"}`))
	require.True(t, ok)
	assert.Equal(t, model.ShapeAttentionSettings, shape)
}

func TestDetectShapeRejectsUnmatchedShape(t *testing.T) {
	_, ok := DetectShape(json.RawMessage(`[1,2,3]`))
	assert.False(t, ok)

	_, ok = DetectShape(json.RawMessage(`[]`))
	assert.False(t, ok)

	_, ok = DetectShape(json.RawMessage(`"just a string"`))
	assert.False(t, ok)
}
