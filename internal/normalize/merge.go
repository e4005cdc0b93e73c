package normalize

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/mnemex-labs/mnemex/internal/model"
)

// summaryMaxLen is the character budget for a merged scope's human-readable
// summary text before it is truncated with a trailing ellipsis.
const summaryMaxLen = 240

// MergeResult is the deterministic output of merging every active memory in
// one scope for one user: a short human-readable summary, the structured
// union of their values, and a confidence score that grows with corroborating
// evidence but never reaches certainty from volume alone.
type MergeResult struct {
	SummaryText   string          `json:"summary_text"`
	SummaryStruct json.RawMessage `json:"summary_struct"`
	Confidence    float64         `json:"confidence"`
}

// Merge deterministically folds every memory in memories (assumed to all
// share one user and one scope) into a single MergeResult. Returns a
// zero-value result for an empty input.
func Merge(scope model.Scope, memories []model.Memory) (MergeResult, error) {
	if len(memories) == 0 {
		return MergeResult{}, nil
	}

	var (
		result MergeResult
		err    error
	)
	switch scope {
	case model.ScopePreferences:
		result, err = mergePreferences(memories)
	case model.ScopeConstraints:
		result, err = mergeConstraints(memories)
	case model.ScopeCommunication:
		result, err = mergeCommunication(memories)
	case model.ScopeAccessibility:
		result, err = mergeAccessibility(memories)
	case model.ScopeSchedule:
		result, err = mergeSchedule(memories)
	case model.ScopeAttention:
		result, err = mergeAttention(memories)
	default:
		return MergeResult{}, fmt.Errorf("normalize: unknown scope %q", scope)
	}
	if err != nil {
		return MergeResult{}, err
	}
	result.Confidence = confidenceFor(len(memories))
	result.SummaryText = truncateSummary(result.SummaryText)
	return result, nil
}

// confidenceFor grows with corroborating memory count but caps below
// certainty: a single write is never treated as settled fact.
func confidenceFor(n int) float64 {
	c := 0.5 + float64(n)*0.1
	if c > 0.9 {
		c = 0.9
	}
	return c
}

func truncateSummary(s string) string {
	if len(s) <= summaryMaxLen {
		return s
	}
	return s[:summaryMaxLen-3] + "..."
}

func mustMarshal(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		return json.RawMessage("null")
	}
	return b
}

// decodeValues unmarshals each memory's ValueJSON into a generic map,
// skipping any that don't decode as an object.
func decodeValues(memories []model.Memory) []map[string]any {
	var out []map[string]any
	for _, m := range memories {
		var v map[string]any
		if err := json.Unmarshal(m.ValueJSON, &v); err != nil {
			continue
		}
		out = append(out, v)
	}
	return out
}

func stringsAt(m map[string]any, key string) []string {
	list, ok := m[key].([]any)
	if !ok {
		return nil
	}
	var out []string
	for _, item := range list {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func mergePreferences(memories []model.Memory) (MergeResult, error) {
	values := decodeValues(memories)
	var likes, dislikes []string
	for _, v := range values {
		likes = append(likes, stringsAt(v, "likes")...)
		dislikes = append(dislikes, stringsAt(v, "dislikes")...)
	}
	likes = dedupeFuzzy(likes)
	dislikes = dedupeFuzzy(dislikes)

	var parts []string
	if len(likes) > 0 {
		parts = append(parts, "likes "+strings.Join(likes, ", "))
	}
	if len(dislikes) > 0 {
		parts = append(parts, "dislikes "+strings.Join(dislikes, ", "))
	}

	return MergeResult{
		SummaryText: strings.Join(parts, "; "),
		SummaryStruct: mustMarshal(map[string]any{
			"likes":    orEmpty(likes),
			"dislikes": orEmpty(dislikes),
		}),
	}, nil
}

// mergeConstraints reads each memory by its own recorded shape, since a
// constraints-scope write can be either a bare rules_list array or a
// kv_map object (shape is a property of the value, not the scope).
func mergeConstraints(memories []model.Memory) (MergeResult, error) {
	var rules []string
	kvPairs := map[string]any{}
	for _, m := range memories {
		switch m.ValueShape {
		case model.ShapeRulesList:
			rules = append(rules, decodeStringList(m.ValueJSON)...)
		case model.ShapeKVMap:
			for k, val := range decodeMap(m.ValueJSON) {
				kvPairs[k] = val
			}
		}
	}
	rules = dedupeFuzzy(rules)

	var parts []string
	if len(rules) > 0 {
		parts = append(parts, "rules "+strings.Join(rules, ", "))
	}
	if len(kvPairs) > 0 {
		parts = append(parts, fmt.Sprintf("%d constraint setting(s)", len(kvPairs)))
	}

	return MergeResult{
		SummaryText: strings.Join(parts, "; "),
		SummaryStruct: mustMarshal(map[string]any{
			"rules":       orEmpty(rules),
			"constraints": kvPairs,
		}),
	}, nil
}

// decodeStringList decodes raw as a bare JSON array of strings, the
// canonical rules_list form, skipping non-string items.
func decodeStringList(raw json.RawMessage) []string {
	var list []any
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil
	}
	var out []string
	for _, item := range list {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// decodeMap decodes raw as a JSON object, returning nil if it isn't one.
func decodeMap(raw json.RawMessage) map[string]any {
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil
	}
	return m
}

// decodeWindowList decodes raw as the canonical schedule_windows form: a
// bare array of window objects, or an object carrying that array under a
// "windows" or "time_slots" key.
func decodeWindowList(raw json.RawMessage) []map[string]any {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil
	}
	switch val := v.(type) {
	case []any:
		return windowItems(val)
	case map[string]any:
		if list, ok := val["windows"].([]any); ok {
			return windowItems(list)
		}
		if list, ok := val["time_slots"].([]any); ok {
			return windowItems(list)
		}
	}
	return nil
}

func windowItems(list []any) []map[string]any {
	var out []map[string]any
	for _, item := range list {
		if m, ok := item.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out
}

func mergeCommunication(memories []model.Memory) (MergeResult, error) {
	values := decodeValues(memories)
	merged := map[string]any{}
	var parts []string
	for _, v := range values {
		for k, val := range v {
			merged[k] = val
			parts = append(parts, fmt.Sprintf("%s: %v", k, val))
		}
	}
	sort.Strings(parts)
	return MergeResult{
		SummaryText:   strings.Join(parts, "; "),
		SummaryStruct: mustMarshal(merged),
	}, nil
}

func mergeAccessibility(memories []model.Memory) (MergeResult, error) {
	values := decodeValues(memories)
	merged := map[string]any{}
	var enabled []string
	for _, v := range values {
		for k, val := range v {
			merged[k] = val
			if b, ok := val.(bool); ok && b {
				enabled = append(enabled, k)
			}
		}
	}
	enabled = dedupeFuzzy(enabled)
	return MergeResult{
		SummaryText:   strings.Join(enabled, ", "),
		SummaryStruct: mustMarshal(merged),
	}, nil
}

func mergeSchedule(memories []model.Memory) (MergeResult, error) {
	seen := map[string]bool{}
	var windows []map[string]any
	var parts []string
	for _, m := range memories {
		if m.ValueShape != model.ShapeScheduleWindows {
			continue
		}
		for _, w := range decodeWindowList(m.ValueJSON) {
			key := windowKey(w)
			if seen[key] {
				continue
			}
			seen[key] = true
			windows = append(windows, w)
			parts = append(parts, describeWindow(w))
		}
	}
	sort.Strings(parts)
	return MergeResult{
		SummaryText:   strings.Join(parts, "; "),
		SummaryStruct: mustMarshal(map[string]any{"windows": windows}),
	}, nil
}

func describeWindow(w map[string]any) string {
	keys := make([]string, 0, len(w))
	for k := range w {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var sb strings.Builder
	for i, k := range keys {
		if i > 0 {
			sb.WriteByte(' ')
		}
		fmt.Fprintf(&sb, "%s=%v", k, w[k])
	}
	return sb.String()
}

func mergeAttention(memories []model.Memory) (MergeResult, error) {
	values := decodeValues(memories)
	merged := map[string]any{}
	var tags []string
	for _, v := range values {
		for k, val := range v {
			merged[k] = val
			tags = append(tags, stringsAt(v, k)...)
		}
	}
	tags = dedupeFuzzy(tags)
	var parts []string
	for k, val := range merged {
		parts = append(parts, fmt.Sprintf("%s: %v", k, val))
	}
	sort.Strings(parts)
	return MergeResult{
		SummaryText:   strings.Join(parts, "; "),
		SummaryStruct: mustMarshal(merged),
	}, nil
}

func orEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
