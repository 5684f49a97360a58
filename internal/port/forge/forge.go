// Package forge defines the capability the synchronization subsystem needs
// from a hosted source-control provider, independent of the wire protocol
// any particular provider speaks.
package forge

import (
	"context"
	"fmt"
	"time"
)

// Commit is a single VCS commit as reported by a forge, before enrichment.
type Commit struct {
	SHA          string
	Message      string
	AuthorName   string
	AuthorEmail  string
	AuthorLogin  string
	AuthoredAt   time.Time
	CommittedAt  time.Time
	Additions    int
	Deletions    int
	TotalChanges int
	ParentSHAs   []string
	Files        []CommitFile // populated only by GetCommit
}

// CommitFile is one file changed by a Commit.
type CommitFile struct {
	Path      string
	Additions int
	Deletions int
	Changes   int
	Patch     string
}

// Contributor is a person associated with a repository on the forge.
type Contributor struct {
	ExternalID string
	Login      string
	Name       string
	Email      string
	AvatarURL  string
}

// PullRequest is a forge pull request.
type PullRequest struct {
	Number      int
	Title        string
	State        string // "open", "closed"
	MergedAt     time.Time
	AuthorLogin  string
	AuthorAvatar string
	CreatedAt    time.Time
	ClosedAt     time.Time
}

// Issue is a forge issue.
type Issue struct {
	Number       int
	Title        string
	State        string
	AuthorLogin  string
	AuthorAvatar string
	CreatedAt    time.Time
	ClosedAt     time.Time
}

// ListOptions bounds a paginated list call.
type ListOptions struct {
	Since time.Time // zero value means "no lower bound"
	Until time.Time // zero value means "no upper bound"; honored only by ListPulls
	Max   int        // 0 means "no cap"
}

// Client is the capability a forge provider must implement: list/get commits,
// contributors, pull requests, issues, plus a cheap commit-count probe. Only
// the GitHub variant is required for the reference implementation; GitLab,
// Bitbucket and SVN variants are named here so the Registry has a home for
// them.
type Client interface {
	ListCommits(ctx context.Context, owner, repo string, opts ListOptions) ([]Commit, error)
	GetCommit(ctx context.Context, owner, repo, sha string) (Commit, error)
	CountCommits(ctx context.Context, owner, repo string) (int, error)
	ListContributors(ctx context.Context, owner, repo string) ([]Contributor, error)
	ListPulls(ctx context.Context, owner, repo string, opts ListOptions) ([]PullRequest, error)
	ListIssues(ctx context.Context, owner, repo string, opts ListOptions) ([]Issue, error)
}

// Factory builds a Client authenticated with the given bearer token.
type Factory func(token string) Client

// Registry maps a provider tag (github, gitlab, bitbucket, svn) to the
// Factory that builds a Client for it. Only "github" ships with the
// reference implementation; other tags registered here but with a nil
// Factory resolve to ErrUnsupportedProvider.
type Registry struct {
	factories map[string]Factory
}

// NewRegistry creates an empty provider Registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register associates a provider tag with the Factory that builds its Client.
func (r *Registry) Register(provider string, f Factory) {
	r.factories[provider] = f
}

// Build returns a Client for provider authenticated with token.
func (r *Registry) Build(provider, token string) (Client, error) {
	f, ok := r.factories[provider]
	if !ok || f == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedProvider, provider)
	}
	return f(token), nil
}
