package teamsettings

import "github.com/strob0t/sprintsync/internal/enrich/classify"

// DefaultClassificationRules returns the built-in ordered classification
// rule set as typed classify.Rule values, for bootstrapping an Orchestrator
// before any team override has been resolved. The Orchestrator uses this
// set only when a Run call receives no rules of its own; the Dispatcher
// resolves each team's commit_classification override and passes it to
// every Run.
func DefaultClassificationRules() []classify.Rule {
	return rulesAt(map[string]any{"rules": defaultRules()}, "rules")
}

// defaultAnalysis is the built-in analysis_config document: sprint window
// knobs and the default ordered classification rule set. Team overrides
// merge on top of this via Resolve.
func defaultAnalysis() map[string]any {
	return map[string]any{
		"sprint": map[string]any{
			"duration_days":                14,
			"significant_commit_min_lines": 5,
			"all_mode_commit_limit":        5000,
			"all_mode_max_days":            365,
			"commit_weights": map[string]any{
				"feat":     3.0,
				"fix":      2.0,
				"perf":     2.5,
				"refactor": 2.0,
				"test":     1.5,
				"docs":     0.5,
				"style":    0.5,
				"chore":    0.5,
				"revert":   0.0,
			},
		},
		"commit_classification": map[string]any{
			"rules": defaultRules(),
		},
	}
}

// defaultRules is the built-in ordered commit classification rule set,
// expressed as the same generic JSON shape a team's override would take.
func defaultRules() []any {
	rule := func(name, category string, priority int, keywords ...string) any {
		kws := make([]any, len(keywords))
		for i, k := range keywords {
			kws[i] = k
		}
		return map[string]any{
			"name":     name,
			"category": category,
			"priority": priority,
			"keywords": kws,
		}
	}
	return []any{
		rule("Revert", "revert", 99, "revert"),
		rule("Bugfix", "fix", 95, "fix", "bug", "patch"),
		rule("Feature", "feat", 90, "feat", "add", "implement"),
		rule("Performance", "perf", 85, "perf", "optimize", "speed up"),
		rule("Refactor", "refactor", 80, "refactor", "restructure"),
		rule("Test", "test", 70, "test", "spec"),
		rule("Docs", "docs", 60, "docs", "readme", "documentation"),
		rule("Style", "style", 55, "style", "lint", "format"),
		rule("Chore", "chore", 50, "chore", "build", "ci"),
	}
}

// defaultWorkflow is the built-in workflow_config document. No fixed schema
// is defined for it; it exists purely as a free-form override target.
func defaultWorkflow() map[string]any {
	return map[string]any{}
}

// defaultMetrics is the built-in metrics_config document, likewise free-form.
func defaultMetrics() map[string]any {
	return map[string]any{}
}
