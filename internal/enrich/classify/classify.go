// Package classify implements the deterministic, priority-ranked commit
// classifier (message + structural flags -> enrichment block).
package classify

import (
	"regexp"
	"strings"

	"github.com/strob0t/sprintsync/internal/domain/sync"
)

// DefaultCategory is returned as commit_type when no classification rule
// matches the message.
const DefaultCategory = "other"

// Rule is one ordered classification rule: the highest-priority rule whose
// keyword appears in the lowercased first line of the message wins; ties
// break by the rule's position in the slice (first occurrence wins).
type Rule struct {
	Name     string
	Category string
	Keywords []string
	Priority int
}

// Input is the subset of a commit's fields the classifier needs.
type Input struct {
	Message       string
	ParentSHAs    []string
	FilesChanged  int
	FilesKnown    bool // false when the files count is unavailable (nil in spec terms)
	BreakingMarkers []string
}

var scopeRE = regexp.MustCompile(`^(\w+):\s`)
var issueRefRE = regexp.MustCompile(`#\d+`)

// Classify runs the nine-step algorithm and returns the resulting Enrichment.
// files_changed is not part of sync.Enrichment and is not returned; the
// caller records it separately. Pure function; no side effects.
func Classify(in Input, rules []Rule) sync.Enrichment {
	firstLine := firstLineLower(in.Message)

	commitType := matchRule(firstLine, rules)

	enr := sync.Enrichment{
		CommitType:     commitType,
		IsConventional: commitType != DefaultCategory,
	}

	if enr.IsConventional {
		enr.ConventionalType = commitType
	} else {
		enr.ConventionalType = "unknown"
	}

	if m := scopeRE.FindStringSubmatch(strings.TrimSpace(in.Message)); m != nil {
		enr.ConventionalScope = m[1]
	} else {
		enr.ConventionalScope = "no"
	}

	enr.IsBreakingChange = isBreakingChange(in.Message, in.BreakingMarkers)

	parentsCount := len(in.ParentSHAs)
	enr.IsMergeCommit = parentsCount > 1

	enr.IsPRCommit = isPRCommit(firstLine, in.Message)

	enr.IsRevertCommit = isRevertCommit(firstLine, in.Message)

	return enr
}

// ParentsCount returns len(ParentSHAs): a convenience mirroring spec step 6,
// kept separate because sync.Commit stores it outside the Enrichment block.
func ParentsCount(in Input) int {
	return len(in.ParentSHAs)
}

func firstLineLower(message string) string {
	line := message
	if idx := strings.IndexByte(message, '\n'); idx >= 0 {
		line = message[:idx]
	}
	return strings.ToLower(line)
}

// matchRule tracks the rule with the highest Priority whose keyword appears
// by substring containment in firstLine; ties break by first occurrence.
func matchRule(firstLine string, rules []Rule) string {
	bestPriority := -1
	best := DefaultCategory
	for _, rule := range rules {
		for _, kw := range rule.Keywords {
			if kw == "" {
				continue
			}
			if strings.Contains(firstLine, strings.ToLower(kw)) {
				if rule.Priority > bestPriority {
					bestPriority = rule.Priority
					best = rule.Category
				}
				break
			}
		}
	}
	return best
}

func isBreakingChange(message string, markers []string) bool {
	trimmed := strings.TrimSpace(message)
	if strings.HasPrefix(trimmed, "!") {
		return true
	}
	lower := strings.ToLower(message)
	if strings.Contains(lower, "breaking") {
		return true
	}
	for _, marker := range markers {
		if marker == "" {
			continue
		}
		if strings.Contains(lower, strings.ToLower(marker)) {
			return true
		}
	}
	return false
}

func isPRCommit(firstLine, fullMessage string) bool {
	if strings.Contains(firstLine, "merge pull request") {
		return true
	}
	if strings.Contains(firstLine, "merge mr") {
		return true
	}
	if issueRefRE.MatchString(fullMessage) {
		return true
	}
	if strings.Contains(strings.ToLower(fullMessage), "pull request") {
		return true
	}
	return false
}

func isRevertCommit(firstLine, fullMessage string) bool {
	if strings.HasPrefix(firstLine, "revert") || strings.HasPrefix(firstLine, "rollback") {
		return true
	}
	return strings.Contains(strings.ToLower(fullMessage), "this reverts commit")
}
