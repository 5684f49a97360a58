// Package store defines the persistence port (repositories and the
// sync session facade) consumed by the sync orchestrator and HTTP surface.
package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/strob0t/sprintsync/internal/domain/sync"
)

// CommitDetails carries the optional fields UpdateCommitDetails may
// overwrite. A nil field is left untouched.
type CommitDetails struct {
	ContributorID *string
	Message       *string
	AuthorName    *string
	AuthorEmail   *string
	AuthoredAt    *time.Time
	CommittedAt   *time.Time
	Additions     *int
	Deletions     *int
	TotalChanges  *int
	FilesChanged  *int
	ParentsCount  *int
	Enrichment    *sync.Enrichment
}

// ProgressUpdate carries the subset of a session's progress counters and
// phase to overwrite. A nil field is left untouched.
type ProgressUpdate struct {
	CurrentPhase      *sync.Phase
	TotalCommits      *int
	ProcessedCommits  *int
	NewCommits        *int
	SprintCommitsDone *bool
	AppendError       *string
}

// TeamConfigs holds the three JSON override blobs a team may set, resolved
// by the settings resolver on top of global defaults.
type TeamConfigs struct {
	Analysis json.RawMessage
	Workflow json.RawMessage
	Metrics  json.RawMessage
}

// Store is the port interface for the sync subsystem's persistence layer.
type Store interface {
	// Repositories
	GetRepository(ctx context.Context, id string) (sync.Repository, error)
	GetOrCreateRepository(ctx context.Context, r sync.Repository) (sync.Repository, bool, error)
	ListRepositoriesByTeam(ctx context.Context, teamID string) ([]sync.Repository, error)

	// Contributors
	GetContributor(ctx context.Context, id string) (sync.Contributor, error)
	GetOrCreateContributor(ctx context.Context, c sync.Contributor) (sync.Contributor, bool, error)

	// Commits
	GetCommitByRepoAndSHA(ctx context.Context, repositoryID, sha string) (sync.Commit, error)
	GetCommitBySHA(ctx context.Context, sha string) (sync.Commit, error)
	GetOrCreateCommit(ctx context.Context, repositoryID, sha string) (sync.Commit, bool, error)
	UpdateCommitDetails(ctx context.Context, id string, d CommitDetails) error
	GetCommitsByRepository(ctx context.Context, repositoryID string, limit, offset int) ([]sync.Commit, error)
	GetCommitsByTeamDateRange(ctx context.Context, teamID string, since, until time.Time) ([]sync.Commit, error)
	ExistingSHAs(ctx context.Context, repositoryID string, shas []string) (map[string]bool, error)
	CountCommitsByRepository(ctx context.Context, repositoryID string) (int, error)

	// Commit files
	BulkCreateCommitFiles(ctx context.Context, commitID string, files []sync.CommitFile) error
	DeleteCommitFilesByCommitID(ctx context.Context, commitID string) error
	GetCommitFiles(ctx context.Context, commitID string) ([]sync.CommitFile, error)

	// Pull requests
	GetOrCreatePullRequest(ctx context.Context, p sync.PullRequest) (sync.PullRequest, bool, error)
	GetPullRequestsByRepository(ctx context.Context, repositoryID string) ([]sync.PullRequest, error)

	// Issues
	GetOrCreateIssue(ctx context.Context, i sync.Issue) (sync.Issue, bool, error)
	GetIssuesByRepository(ctx context.Context, repositoryID string) ([]sync.Issue, error)

	// Sync sessions
	CreateSession(ctx context.Context, teamID, repositoryID string) (sync.Session, error)
	GetSession(ctx context.Context, id string) (sync.Session, error)
	GetActiveSessionsByTeam(ctx context.Context, teamID string) ([]sync.Session, error)
	GetLatestSessionByTeam(ctx context.Context, teamID string) (sync.Session, error)
	MarkRunning(ctx context.Context, id string, startedAt time.Time) error
	MarkCompleted(ctx context.Context, id string, completedAt time.Time, result string, newCommits int, errs []string) error
	MarkFailed(ctx context.Context, id string, completedAt time.Time, errs []string) error
	UpdateProgress(ctx context.Context, id string, u ProgressUpdate) error

	// Team configuration
	TeamExists(ctx context.Context, teamID string) (bool, error)
	EnsureTeam(ctx context.Context, id string) error
	GetTeamConfigs(ctx context.Context, teamID string) (TeamConfigs, error)
	UpdateTeamConfigs(ctx context.Context, teamID string, c TeamConfigs) error
}
