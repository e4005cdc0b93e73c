// Package reconstruct builds a textual context summary from policy-filtered
// impacts and seeds, never regenerating sealed narrative (spec §4.5).
package reconstruct

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/mnemex-labs/mnemex/internal/model"
	"github.com/mnemex-labs/mnemex/internal/retrieval"
)

// maxCuesShown caps how many associative cues are folded into the summary.
const maxCuesShown = 10

// maxEventsReferenced caps how many event IDs are named when events are
// explicitly included; their content is never included regardless.
const maxEventsReferenced = 5

// Sources lists the memory IDs that backed a reconstruction, by kind.
type Sources struct {
	Impacts []string `json:"impacts"`
	Seeds   []string `json:"seeds"`
	Events  []string `json:"events,omitempty"`
}

// Context is the deterministic output of a reconstruction pass.
type Context struct {
	ReconstructedContext string  `json:"reconstructed_context"`
	Confidence           float64 `json:"confidence"`
	Sources              Sources `json:"sources"`
}

// Engine reconstructs context from an underlying retrieval engine's output.
type Engine struct {
	retrieval *retrieval.Engine
}

// New returns a reconstruction Engine over r.
func New(r *retrieval.Engine) *Engine {
	return &Engine{retrieval: r}
}

// Reconstruct retrieves memories for purpose and folds the allowed impacts
// and seeds into a labeled context summary. Events are referenced by count
// only, never by content, and only when includeEvents is set.
func (e *Engine) Reconstruct(ctx context.Context, tenantID string, scope model.ScopeRef, purpose model.Purpose, includeEvents bool) (Context, error) {
	result, err := e.retrieval.RetrieveForPurpose(ctx, tenantID, scope, purpose, 100)
	if err != nil {
		return Context{}, fmt.Errorf("reconstruct: retrieve: %w", err)
	}

	var parts []string
	byKind := groupByKind(result.Impacts)

	if s := joinParam(byKind[model.ConstraintAvoid], "content_class"); s != "" {
		parts = append(parts, "Avoid: "+s)
	}
	if s := joinPreferParams(byKind[model.ConstraintPrefer]); s != "" {
		parts = append(parts, "Prefer: "+s)
	}
	if s := joinParam(byKind[model.ConstraintRequire], "behavior"); s != "" {
		parts = append(parts, "Require: "+s)
	}
	if s := joinParam(byKind[model.ConstraintTone], "tone_profile"); s != "" {
		parts = append(parts, "Tone: "+s)
	}
	if s := joinParam(byKind[model.ConstraintStyle], "format"); s != "" {
		parts = append(parts, "Style: "+s)
	}
	if s := joinParam(byKind[model.ConstraintBoundary], "boundary_type"); s != "" {
		parts = append(parts, "Boundaries: "+s)
	}
	if s := joinParam(byKind[model.ConstraintSafety], "mode"); s != "" {
		parts = append(parts, "Safety: "+s)
	}

	var impactIDs []string
	for _, c := range result.Impacts {
		impactIDs = append(impactIDs, c.SourceRefs...)
	}
	impactIDs = dedupeStrings(impactIDs)

	var seedIDs []string
	var cues []string
	for _, s := range result.Seeds {
		seedIDs = append(seedIDs, s.ID)
		cues = append(cues, s.Cues...)
	}
	if len(cues) > 0 {
		if len(cues) > maxCuesShown {
			cues = cues[:maxCuesShown]
		}
		parts = append(parts, "Associative cues: "+strings.Join(cues, ", "))
	}

	var eventIDs []string
	if includeEvents {
		denied := toSet(result.DeniedIDs)
		for _, id := range result.Events {
			if denied[id] {
				continue
			}
			eventIDs = append(eventIDs, id)
			if len(eventIDs) == maxEventsReferenced {
				break
			}
		}
		if len(eventIDs) > 0 {
			parts = append(parts, fmt.Sprintf("Referenced events: %d (content not included)", len(eventIDs)))
		}
	} else {
		parts = append(parts, "Events: excluded (sealed memories not reconstructed)")
	}

	text := "No relevant context found."
	if len(parts) > 0 {
		text = strings.Join(parts, "\n")
	}

	confidence := 0.0
	if len(impactIDs) > 0 {
		confidence += 0.4
	}
	if len(seedIDs) > 0 {
		confidence += 0.2
	}
	if includeEvents && len(eventIDs) > 0 {
		confidence += 0.1
	}
	if confidence > 1.0 {
		confidence = 1.0
	}
	if len(result.Impacts) > 0 && confidence < 0.5 {
		confidence = 0.5
	}

	return Context{
		ReconstructedContext: text,
		Confidence:           confidence,
		Sources: Sources{
			Impacts: impactIDs,
			Seeds:   seedIDs,
			Events:  eventIDs,
		},
	}, nil
}

func groupByKind(constraints []model.Constraint) map[model.ConstraintKind][]model.Constraint {
	out := map[model.ConstraintKind][]model.Constraint{}
	for _, c := range constraints {
		out[c.Kind] = append(out[c.Kind], c)
	}
	return out
}

func joinParam(constraints []model.Constraint, key string) string {
	var items []string
	for _, c := range constraints {
		if v, ok := c.Params[key]; ok {
			items = append(items, fmt.Sprintf("%v", v))
		}
	}
	return strings.Join(items, ", ")
}

func joinPreferParams(constraints []model.Constraint) string {
	var items []string
	for _, c := range constraints {
		attr, hasAttr := c.Params["attribute"]
		val, hasVal := c.Params["value"]
		if hasAttr && hasVal {
			items = append(items, fmt.Sprintf("%v=%v", attr, val))
		}
	}
	return strings.Join(items, ", ")
}

func dedupeStrings(in []string) []string {
	seen := map[string]bool{}
	var out []string
	for _, s := range in {
		if seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

func toSet(in []string) map[string]bool {
	out := make(map[string]bool, len(in))
	for _, s := range in {
		out[s] = true
	}
	return out
}
