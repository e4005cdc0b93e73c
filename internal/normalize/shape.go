// Package normalize implements the deterministic shape-aware normalization
// and merge logic for v1 memory values: key/array normalization on write,
// and fuzzy-deduplicated summarization across a scope on read.
package normalize

import (
	"encoding/json"
	"sort"
	"strings"

	"github.com/mnemex-labs/mnemex/internal/model"
)

// Value normalizes a raw JSON value according to its declared shape:
// array dedup/sort, key lowercasing, and tag-value lowercasing. Unknown
// shapes fall through to the kv_map rules.
func Value(raw json.RawMessage, shape model.ValueShape) (json.RawMessage, error) {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return raw, err
	}

	var normalized any
	switch shape {
	case model.ShapeLikesDislikes:
		normalized = normalizeLikesDislikes(v)
	case model.ShapeRulesList:
		normalized = normalizeRulesList(v)
	case model.ShapeScheduleWindows:
		normalized = normalizeScheduleWindows(v)
	case model.ShapeBooleanFlags:
		normalized = normalizeBooleanFlags(v)
	case model.ShapeAttentionSettings:
		normalized = normalizeAttentionSettings(v)
	default:
		normalized = normalizeKVMap(v)
	}

	return json.Marshal(normalized)
}

// DetectShape infers a value's structural shape from the payload itself,
// independent of the scope it is being written into: a preferences-scope
// write and a constraints-scope write can both legally carry a kv_map, a
// likes_dislikes object, or a rules_list array (spec §7's shape table is a
// property of the value, not the scope). Returns false if the payload
// matches none of the recognized shapes, which callers must reject.
func DetectShape(raw json.RawMessage) (model.ValueShape, bool) {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return "", false
	}

	switch val := v.(type) {
	case map[string]any:
		if _, ok := val["likes"]; ok {
			return model.ShapeLikesDislikes, true
		}
		if _, ok := val["dislikes"]; ok {
			return model.ShapeLikesDislikes, true
		}
		if allBoolValues(val) {
			return model.ShapeBooleanFlags, true
		}
		if _, ok := val["windows"]; ok {
			return model.ShapeScheduleWindows, true
		}
		if _, ok := val["time_slots"]; ok {
			return model.ShapeScheduleWindows, true
		}
		if _, ok := val["focus_mode"]; ok {
			return model.ShapeAttentionSettings, true
		}
		if _, ok := val["do_not_disturb"]; ok {
			return model.ShapeAttentionSettings, true
		}
		return model.ShapeKVMap, true
	case []any:
		if len(val) == 0 {
			return "", false
		}
		if allStringItems(val) {
			return model.ShapeRulesList, true
		}
		if allWindowItems(val) {
			return model.ShapeScheduleWindows, true
		}
		return "", false
	default:
		return "", false
	}
}

// allBoolValues reports whether every value in m is a bool. Vacuously true
// for an empty map, matching the payload-shape detector it backs.
func allBoolValues(m map[string]any) bool {
	for _, v := range m {
		if _, ok := v.(bool); !ok {
			return false
		}
	}
	return true
}

func allStringItems(items []any) bool {
	for _, item := range items {
		if _, ok := item.(string); !ok {
			return false
		}
	}
	return true
}

// allWindowItems reports whether every item is an object carrying at least
// one of the schedule-window fields (start/end/day).
func allWindowItems(items []any) bool {
	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			return false
		}
		_, hasStart := m["start"]
		_, hasEnd := m["end"]
		_, hasDay := m["day"]
		if !hasStart && !hasEnd && !hasDay {
			return false
		}
	}
	return true
}

func normalizeLikesDislikes(v any) any {
	m, ok := v.(map[string]any)
	if !ok {
		return v
	}
	result := map[string]any{}
	if likes, ok := m["likes"].([]any); ok {
		result["likes"] = dedupeSortAny(likes)
	}
	if dislikes, ok := m["dislikes"].([]any); ok {
		result["dislikes"] = dedupeSortAny(dislikes)
	}
	return result
}

func dedupeSortAny(items []any) []any {
	seen := map[string]bool{}
	var out []string
	for _, item := range items {
		s, ok := item.(string)
		if !ok {
			continue
		}
		lower := strings.ToLower(s)
		if seen[lower] {
			continue
		}
		seen[lower] = true
		out = append(out, s)
	}
	sort.Strings(out)
	result := make([]any, len(out))
	for i, s := range out {
		result[i] = s
	}
	return result
}

func normalizeRulesList(v any) any {
	list, ok := v.([]any)
	if !ok {
		return v
	}
	seen := map[string]bool{}
	var out []string
	for _, item := range list {
		s, ok := item.(string)
		if !ok {
			continue
		}
		if seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	sort.Strings(out)
	result := make([]any, len(out))
	for i, s := range out {
		result[i] = s
	}
	return result
}

func normalizeScheduleWindows(v any) any {
	list, ok := v.([]any)
	if !ok {
		return v
	}
	seen := map[string]bool{}
	var out []any
	for _, item := range list {
		m, ok := item.(map[string]any)
		if !ok {
			out = append(out, item)
			continue
		}
		key := windowKey(m)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, m)
	}
	return out
}

// windowKey builds a stable dedup key from a schedule window's sorted fields.
func windowKey(m map[string]any) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var sb strings.Builder
	for _, k := range keys {
		sb.WriteString(k)
		sb.WriteByte('=')
		b, _ := json.Marshal(m[k])
		sb.Write(b)
		sb.WriteByte(';')
	}
	return sb.String()
}

func normalizeBooleanFlags(v any) any {
	m, ok := v.(map[string]any)
	if !ok {
		return v
	}
	result := map[string]any{}
	for k, val := range m {
		result[strings.ToLower(k)] = val
	}
	return result
}

func normalizeAttentionSettings(v any) any {
	m, ok := v.(map[string]any)
	if !ok {
		return v
	}
	result := map[string]any{}
	for k, val := range m {
		key := strings.ToLower(k)
		switch tv := val.(type) {
		case string:
			result[key] = strings.ToLower(tv)
		case []any:
			lowered := make([]any, len(tv))
			for i, item := range tv {
				if s, ok := item.(string); ok {
					lowered[i] = strings.ToLower(s)
				} else {
					lowered[i] = item
				}
			}
			result[key] = lowered
		default:
			result[key] = val
		}
	}
	return result
}

func normalizeKVMap(v any) any {
	m, ok := v.(map[string]any)
	if !ok {
		return v
	}
	result := map[string]any{}
	for k, val := range m {
		key := strings.ToLower(k)
		if s, ok := val.(string); ok && strings.Contains(key, "tag") {
			result[key] = strings.ToLower(s)
		} else {
			result[key] = val
		}
	}
	return result
}
