// Package sync defines the core entities ingested and enriched by the
// synchronization subsystem: repositories, contributors, commits and their
// file changes, pull requests, issues, and sync sessions.
package sync

import "time"

// Provider identifies the hosted forge a Repository lives on.
type Provider string

const (
	ProviderGitHub    Provider = "github"
	ProviderGitLab    Provider = "gitlab"
	ProviderBitbucket Provider = "bitbucket"
	ProviderSVN       Provider = "svn"
)

// Status is the lifecycle state of a SyncSession.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Phase is the Orchestrator's current step within a running SyncSession.
type Phase string

const (
	PhaseInitializing     Phase = "initializing"
	PhaseFetchingList     Phase = "fetching_list"
	PhaseProcessingSprint Phase = "processing_sprint"
	PhaseProcessingArchive Phase = "processing_archive"
	PhaseComplete         Phase = "complete"
)

// Repository is the external project being mirrored.
type Repository struct {
	ID             string
	Provider       Provider
	ExternalID     string
	OwnerSlug      string
	RepoSlug       string
	URL            string
	DefaultBranch  string
	ProjectID      string
	TeamID         string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// FullName returns "owner/repo", the handle used on most forge wire calls.
func (r Repository) FullName() string {
	return r.OwnerSlug + "/" + r.RepoSlug
}

// Contributor is a person on the remote forge.
type Contributor struct {
	ID         string
	Provider   Provider
	ExternalID string
	Login      string
	Name       string
	Email      string
	AvatarURL  string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Enrichment is the set of derived fields computed by the classifier
// and language detector for one commit and its files.
type Enrichment struct {
	CommitType        string
	IsConventional     bool
	ConventionalType   string
	ConventionalScope  string
	IsBreakingChange   bool
	IsMergeCommit      bool
	IsPRCommit         bool
	IsRevertCommit     bool
}

// Commit is a single VCS commit attributed to exactly one Repository and at
// most one Contributor.
type Commit struct {
	ID            string
	RepositoryID  string
	ContributorID string // empty when unattributed
	SHA           string
	Message       string
	AuthorName    string
	AuthorEmail   string
	AuthoredAt    time.Time
	CommittedAt   time.Time
	Additions     int
	Deletions     int
	TotalChanges  int
	FilesChanged  int
	ParentsCount  int
	Enrichment    Enrichment
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// CommitFile is a single file changed by a Commit.
type CommitFile struct {
	ID         string
	CommitID   string
	Path       string
	Additions  int
	Deletions  int
	Changes    int
	Language   string
	Patch      string
}

// PRState mirrors GitHub's pull request / issue state values.
type PRState string

const (
	StateOpen   PRState = "open"
	StateClosed PRState = "closed"
	StateMerged PRState = "merged"
)

// PullRequest is a forge pull request, structurally parallel to Issue.
type PullRequest struct {
	ID            string
	RepositoryID  string
	ContributorID string
	Number        int
	Title         string
	State         PRState
	AuthorLogin   string
	AuthorAvatar  string
	CreatedAt     time.Time
	ClosedAt      time.Time
	MergedAt      time.Time
}

// Issue is a forge issue, structurally parallel to PullRequest.
type Issue struct {
	ID            string
	RepositoryID  string
	ContributorID string
	Number        int
	Title         string
	State         PRState
	AuthorLogin   string
	AuthorAvatar  string
	CreatedAt     time.Time
	ClosedAt      time.Time
}

// Session is one end-to-end synchronization attempt for one Repository on
// behalf of one Team. Transitions strictly forward: queued -> running ->
// {completed, failed, cancelled}. Never reused across runs.
type Session struct {
	ID                string
	TeamID            string
	RepositoryID      string
	Status            Status
	CurrentPhase      Phase
	TotalCommits      int
	ProcessedCommits  int
	NewCommits        int
	SprintCommitsDone bool
	Errors            []string
	Result            string
	StartedAt         time.Time
	CompletedAt       time.Time
	CreatedAt         time.Time
}

// Progress is the snapshot shape emitted on the progress stream and
// returned by the one-shot status endpoint.
type Progress struct {
	SessionID         string  `json:"session_id"`
	Status            Status  `json:"status"`
	Total             int     `json:"total"`
	Processed         int     `json:"processed"`
	New               int     `json:"new"`
	ProgressPercent   int     `json:"progress_percent"`
	CurrentPhase      Phase   `json:"current_phase"`
	SprintCommitsDone bool    `json:"sprint_commits_done"`
	Errors            []string `json:"errors"`
}

// Snapshot builds the Progress view of a Session, computing
// progress_percent = floor(100*processed/total), 0 when total is 0.
func (s Session) Snapshot() Progress {
	pct := 0
	if s.TotalCommits > 0 {
		pct = (100 * s.ProcessedCommits) / s.TotalCommits
	}
	errs := s.Errors
	if errs == nil {
		errs = []string{}
	}
	return Progress{
		SessionID:         s.ID,
		Status:            s.Status,
		Total:             s.TotalCommits,
		Processed:         s.ProcessedCommits,
		New:               s.NewCommits,
		ProgressPercent:   pct,
		CurrentPhase:      s.CurrentPhase,
		SprintCommitsDone: s.SprintCommitsDone,
		Errors:            errs,
	}
}

// Terminal reports whether status is one the Orchestrator will never leave.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	default:
		return false
	}
}
