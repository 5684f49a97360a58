// Package teamsettings implements the settings resolver: a recursive
// merge of three free-form per-team JSON documents over built-in defaults,
// plus the typed views (sprint knobs, classification rules) callers need
// without re-parsing the merged tree themselves.
package teamsettings

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/strob0t/sprintsync/internal/analytics"
	"github.com/strob0t/sprintsync/internal/enrich/classify"
	"github.com/strob0t/sprintsync/internal/port/store"
)

// Document names one of the three stored config blobs.
type Document string

const (
	DocumentAnalysis Document = "analysis"
	DocumentWorkflow Document = "workflow"
	DocumentMetrics  Document = "metrics"
)

// ClassificationRule is the wire shape of one commit_classification.rules[]
// entry, per spec §9's call for a typed variant of that subtree.
type ClassificationRule struct {
	Name     string   `json:"name"`
	Category string   `json:"category"`
	Keywords []string `json:"keywords"`
	Priority int      `json:"priority"`
}

func (r ClassificationRule) toClassifyRule() classify.Rule {
	return classify.Rule{Name: r.Name, Category: r.Category, Keywords: r.Keywords, Priority: r.Priority}
}

// Resolved is the merged settings view for one team.
type Resolved struct {
	Analysis map[string]any
	Workflow map[string]any
	Metrics  map[string]any

	ClassificationRules []classify.Rule
	SprintDurationDays  int
	Sprint              analytics.Settings
}

// Resolver merges a team's stored overrides with built-in defaults.
type Resolver struct {
	store store.Store
}

// NewResolver creates a Resolver.
func NewResolver(st store.Store) *Resolver {
	return &Resolver{store: st}
}

// Resolve returns the fully merged settings view for teamID.
func (r *Resolver) Resolve(ctx context.Context, teamID string) (Resolved, error) {
	raw, err := r.store.GetTeamConfigs(ctx, teamID)
	if err != nil {
		return Resolved{}, fmt.Errorf("get team configs %s: %w", teamID, err)
	}

	analysisOverride, err := decodeDoc(raw.Analysis)
	if err != nil {
		return Resolved{}, fmt.Errorf("decode analysis config for team %s: %w", teamID, err)
	}
	workflowOverride, err := decodeDoc(raw.Workflow)
	if err != nil {
		return Resolved{}, fmt.Errorf("decode workflow config for team %s: %w", teamID, err)
	}
	metricsOverride, err := decodeDoc(raw.Metrics)
	if err != nil {
		return Resolved{}, fmt.Errorf("decode metrics config for team %s: %w", teamID, err)
	}

	analysisDoc := merge(defaultAnalysis(), analysisOverride)
	workflowDoc := merge(defaultWorkflow(), workflowOverride)
	metricsDoc := merge(defaultMetrics(), metricsOverride)

	return Resolved{
		Analysis:            analysisDoc,
		Workflow:            workflowDoc,
		Metrics:             metricsDoc,
		ClassificationRules: rulesAt(analysisDoc, "commit_classification", "rules"),
		SprintDurationDays:  intAt(analysisDoc, 14, "sprint", "duration_days"),
		Sprint: analytics.Settings{
			SignificantCommitMinLines: intAt(analysisDoc, 5, "sprint", "significant_commit_min_lines"),
			CommitWeights:             weightsAt(analysisDoc, "sprint", "commit_weights"),
			AllModeCommitLimit:        intAt(analysisDoc, 5000, "sprint", "all_mode_commit_limit"),
			AllModeMaxDays:            intAt(analysisDoc, 365, "sprint", "all_mode_max_days"),
		},
	}, nil
}

// UpdateOverride recursively merges patch into the team's stored override
// for doc (not into the resolved defaults) and persists the result. Other
// documents are left untouched.
func (r *Resolver) UpdateOverride(ctx context.Context, teamID string, doc Document, patch map[string]any) error {
	raw, err := r.store.GetTeamConfigs(ctx, teamID)
	if err != nil {
		return fmt.Errorf("get team configs %s: %w", teamID, err)
	}

	var current *json.RawMessage
	switch doc {
	case DocumentAnalysis:
		current = &raw.Analysis
	case DocumentWorkflow:
		current = &raw.Workflow
	case DocumentMetrics:
		current = &raw.Metrics
	default:
		return fmt.Errorf("unknown settings document %q", doc)
	}

	existing, err := decodeDoc(*current)
	if err != nil {
		return fmt.Errorf("decode existing %s config for team %s: %w", doc, teamID, err)
	}

	merged := merge(existing, patch)
	data, err := json.Marshal(merged)
	if err != nil {
		return fmt.Errorf("marshal %s config for team %s: %w", doc, teamID, err)
	}
	*current = data

	if err := r.store.UpdateTeamConfigs(ctx, teamID, raw); err != nil {
		return fmt.Errorf("update team configs %s: %w", teamID, err)
	}
	return nil
}

// merge implements spec §4.13's recursive merge: for every key, if both
// sides hold a mapping recurse; otherwise override wins. Never mutates
// base or override; always builds a fresh map.
func merge(base, override map[string]any) map[string]any {
	out := make(map[string]any, len(base)+len(override))
	for k, v := range base {
		out[k] = v
	}
	for k, ov := range override {
		if bv, ok := out[k]; ok {
			bm, bok := bv.(map[string]any)
			om, ook := ov.(map[string]any)
			if bok && ook {
				out[k] = merge(bm, om)
				continue
			}
		}
		out[k] = ov
	}
	return out
}

func decodeDoc(raw json.RawMessage) (map[string]any, error) {
	if len(raw) == 0 {
		return map[string]any{}, nil
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	if m == nil {
		m = map[string]any{}
	}
	return m, nil
}

func lookup(m map[string]any, path ...string) (any, bool) {
	var cur any = m
	for _, key := range path {
		mm, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		v, ok := mm[key]
		if !ok {
			return nil, false
		}
		cur = v
	}
	return cur, true
}

func intAt(m map[string]any, fallback int, path ...string) int {
	v, ok := lookup(m, path...)
	if !ok {
		return fallback
	}
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	default:
		return fallback
	}
}

func weightsAt(m map[string]any, path ...string) map[string]float64 {
	v, ok := lookup(m, path...)
	if !ok {
		return nil
	}
	raw, ok := v.(map[string]any)
	if !ok {
		return nil
	}
	out := make(map[string]float64, len(raw))
	for k, val := range raw {
		switch n := val.(type) {
		case float64:
			out[k] = n
		case int:
			out[k] = float64(n)
		}
	}
	return out
}

func rulesAt(m map[string]any, path ...string) []classify.Rule {
	v, ok := lookup(m, path...)
	if !ok {
		return nil
	}
	arr, ok := v.([]any)
	if !ok {
		return nil
	}

	out := make([]classify.Rule, 0, len(arr))
	for _, item := range arr {
		rm, ok := item.(map[string]any)
		if !ok {
			continue
		}
		var rule ClassificationRule
		if s, ok := rm["name"].(string); ok {
			rule.Name = s
		}
		if s, ok := rm["category"].(string); ok {
			rule.Category = s
		}
		switch p := rm["priority"].(type) {
		case float64:
			rule.Priority = int(p)
		case int:
			rule.Priority = p
		}
		if kws, ok := rm["keywords"].([]any); ok {
			for _, k := range kws {
				if s, ok := k.(string); ok {
					rule.Keywords = append(rule.Keywords, s)
				}
			}
		}
		out = append(out, rule.toClassifyRule())
	}
	return out
}
