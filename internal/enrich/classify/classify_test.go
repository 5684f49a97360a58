package classify_test

import (
	"testing"

	"github.com/strob0t/sprintsync/internal/enrich/classify"
)

func TestBoundaryScenarioClassifierDeterminism(t *testing.T) {
	// Literal scenario from the test suite: rule set and message fixed,
	// expecting commit_type="fix", conventional_scope="fix",
	// is_conventional=true, is_breaking_change=false.
	rules := []classify.Rule{
		{Name: "Bugfix", Category: "fix", Keywords: []string{"fix"}, Priority: 99},
		{Name: "Feature", Category: "feat", Keywords: []string{"add"}, Priority: 95},
	}
	in := classify.Input{Message: "fix: add missing null check"}

	enr := classify.Classify(in, rules)

	if enr.CommitType != "fix" {
		t.Errorf("commit_type = %q, want fix", enr.CommitType)
	}
	if enr.ConventionalScope != "fix" {
		t.Errorf("conventional_scope = %q, want fix", enr.ConventionalScope)
	}
	if !enr.IsConventional {
		t.Error("expected is_conventional = true")
	}
	if enr.IsBreakingChange {
		t.Error("expected is_breaking_change = false")
	}
}

func TestHighestPriorityWinsOnMultipleMatches(t *testing.T) {
	rules := []classify.Rule{
		{Name: "Low", Category: "chore", Keywords: []string{"update"}, Priority: 10},
		{Name: "High", Category: "feat", Keywords: []string{"update"}, Priority: 90},
	}
	enr := classify.Classify(classify.Input{Message: "update the docs"}, rules)
	if enr.CommitType != "feat" {
		t.Errorf("expected highest-priority rule to win, got %q", enr.CommitType)
	}
}

func TestTieBreaksByFirstOccurrence(t *testing.T) {
	rules := []classify.Rule{
		{Name: "First", Category: "feat", Keywords: []string{"x"}, Priority: 50},
		{Name: "Second", Category: "fix", Keywords: []string{"x"}, Priority: 50},
	}
	enr := classify.Classify(classify.Input{Message: "x happened"}, rules)
	if enr.CommitType != "feat" {
		t.Errorf("expected first rule in array to win tie, got %q", enr.CommitType)
	}
}

func TestNoMatchFallsBackToDefaultCategory(t *testing.T) {
	rules := []classify.Rule{{Name: "Feature", Category: "feat", Keywords: []string{"add"}, Priority: 50}}
	enr := classify.Classify(classify.Input{Message: "update readme wording"}, rules)
	if enr.CommitType != classify.DefaultCategory {
		t.Errorf("expected default category, got %q", enr.CommitType)
	}
	if enr.IsConventional {
		t.Error("expected is_conventional = false when commit_type is the default category")
	}
	if enr.ConventionalType != "unknown" {
		t.Errorf("expected conventional_type unknown, got %q", enr.ConventionalType)
	}
}

func TestConventionalScopeExtraction(t *testing.T) {
	enr := classify.Classify(classify.Input{Message: "api: add new endpoint"}, nil)
	if enr.ConventionalScope != "api" {
		t.Errorf("expected scope api, got %q", enr.ConventionalScope)
	}

	enr2 := classify.Classify(classify.Input{Message: "no colon prefix here"}, nil)
	if enr2.ConventionalScope != "no" {
		t.Errorf("expected scope \"no\" when message does not match ^\\w+:\\s, got %q", enr2.ConventionalScope)
	}
}

func TestBreakingChangeDetection(t *testing.T) {
	cases := []struct {
		message string
		markers []string
		want    bool
	}{
		{"!urgent: drop legacy field", nil, true},
		{"feat: BREAKING change to the API", nil, true},
		{"feat: add endpoint", []string{"incompatible"}, false},
		{"feat: incompatible change to schema", []string{"incompatible"}, true},
		{"feat: add endpoint", nil, false},
	}
	for _, tc := range cases {
		enr := classify.Classify(classify.Input{Message: tc.message, BreakingMarkers: tc.markers}, nil)
		if enr.IsBreakingChange != tc.want {
			t.Errorf("message %q: is_breaking_change = %v, want %v", tc.message, enr.IsBreakingChange, tc.want)
		}
	}
}

func TestMergeCommitDetection(t *testing.T) {
	enr := classify.Classify(classify.Input{Message: "merge", ParentSHAs: []string{"a", "b"}}, nil)
	if !enr.IsMergeCommit {
		t.Error("expected is_merge_commit = true when parents_count > 1")
	}

	enr2 := classify.Classify(classify.Input{Message: "normal commit", ParentSHAs: []string{"a"}}, nil)
	if enr2.IsMergeCommit {
		t.Error("expected is_merge_commit = false for a single parent")
	}
}

func TestPRCommitDetection(t *testing.T) {
	cases := []struct {
		message string
		want    bool
	}{
		{"Merge pull request #42 from feature/x", true},
		{"merge mr !12", true},
		{"fix #99 null pointer", true},
		{"opened a pull request for review", true},
		{"ordinary commit message", false},
	}
	for _, tc := range cases {
		enr := classify.Classify(classify.Input{Message: tc.message}, nil)
		if enr.IsPRCommit != tc.want {
			t.Errorf("message %q: is_pr_commit = %v, want %v", tc.message, enr.IsPRCommit, tc.want)
		}
	}
}

func TestRevertCommitDetection(t *testing.T) {
	cases := []struct {
		message string
		want    bool
	}{
		{"Revert \"feat: add endpoint\"", true},
		{"rollback the migration", true},
		{"fix: unrelated\n\nThis reverts commit abc123.", true},
		{"feat: add endpoint", false},
	}
	for _, tc := range cases {
		enr := classify.Classify(classify.Input{Message: tc.message}, nil)
		if enr.IsRevertCommit != tc.want {
			t.Errorf("message %q: is_revert_commit = %v, want %v", tc.message, enr.IsRevertCommit, tc.want)
		}
	}
}

func TestClassifyIsPureAndDeterministic(t *testing.T) {
	rules := []classify.Rule{{Name: "Feature", Category: "feat", Keywords: []string{"add"}, Priority: 50}}
	in := classify.Input{Message: "feat: add thing", ParentSHAs: []string{"a"}}

	first := classify.Classify(in, rules)
	second := classify.Classify(in, rules)

	if first != second {
		t.Errorf("expected identical enrichment for identical input, got %+v vs %+v", first, second)
	}
}

func TestParentsCount(t *testing.T) {
	in := classify.Input{ParentSHAs: []string{"a", "b", "c"}}
	if got := classify.ParentsCount(in); got != 3 {
		t.Errorf("expected 3, got %d", got)
	}
}
