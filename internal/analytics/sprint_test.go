package analytics_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/strob0t/sprintsync/internal/analytics"
	"github.com/strob0t/sprintsync/internal/domain"
	domsync "github.com/strob0t/sprintsync/internal/domain/sync"
	"github.com/strob0t/sprintsync/internal/port/store"
)

// fakeStore is a minimal store.Store stand-in exercising only the reads
// sprint analytics performs: commits by team/date range, repositories,
// contributors, pull requests and issues by repository.
type fakeStore struct {
	repos        []domsync.Repository
	contributors map[string]domsync.Contributor
	commits      []domsync.Commit
	prsByRepo    map[string][]domsync.PullRequest
	issuesByRepo map[string][]domsync.Issue
}

func (f *fakeStore) GetRepository(context.Context, string) (domsync.Repository, error) {
	return domsync.Repository{}, domain.ErrNotFound
}

func (f *fakeStore) GetOrCreateRepository(context.Context, domsync.Repository) (domsync.Repository, bool, error) {
	return domsync.Repository{}, false, errors.New("not implemented")
}

func (f *fakeStore) ListRepositoriesByTeam(_ context.Context, _ string) ([]domsync.Repository, error) {
	return f.repos, nil
}

func (f *fakeStore) GetContributor(_ context.Context, id string) (domsync.Contributor, error) {
	c, ok := f.contributors[id]
	if !ok {
		return domsync.Contributor{}, domain.ErrNotFound
	}
	return c, nil
}

func (f *fakeStore) GetOrCreateContributor(context.Context, domsync.Contributor) (domsync.Contributor, bool, error) {
	return domsync.Contributor{}, false, errors.New("not implemented")
}

func (f *fakeStore) GetCommitByRepoAndSHA(context.Context, string, string) (domsync.Commit, error) {
	return domsync.Commit{}, domain.ErrNotFound
}

func (f *fakeStore) GetCommitBySHA(context.Context, string) (domsync.Commit, error) {
	return domsync.Commit{}, domain.ErrNotFound
}

func (f *fakeStore) GetOrCreateCommit(context.Context, string, string) (domsync.Commit, bool, error) {
	return domsync.Commit{}, false, errors.New("not implemented")
}

func (f *fakeStore) UpdateCommitDetails(context.Context, string, store.CommitDetails) error {
	return errors.New("not implemented")
}

func (f *fakeStore) GetCommitsByRepository(context.Context, string, int, int) ([]domsync.Commit, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeStore) GetCommitsByTeamDateRange(_ context.Context, _ string, since, until time.Time) ([]domsync.Commit, error) {
	var out []domsync.Commit
	for _, c := range f.commits {
		if !c.AuthoredAt.Before(since) && c.AuthoredAt.Before(until) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeStore) ExistingSHAs(context.Context, string, []string) (map[string]bool, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeStore) CountCommitsByRepository(context.Context, string) (int, error) {
	return 0, errors.New("not implemented")
}

func (f *fakeStore) BulkCreateCommitFiles(context.Context, string, []domsync.CommitFile) error {
	return errors.New("not implemented")
}

func (f *fakeStore) DeleteCommitFilesByCommitID(context.Context, string) error {
	return errors.New("not implemented")
}

func (f *fakeStore) GetCommitFiles(context.Context, string) ([]domsync.CommitFile, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeStore) GetOrCreatePullRequest(context.Context, domsync.PullRequest) (domsync.PullRequest, bool, error) {
	return domsync.PullRequest{}, false, errors.New("not implemented")
}

func (f *fakeStore) GetPullRequestsByRepository(_ context.Context, repositoryID string) ([]domsync.PullRequest, error) {
	return f.prsByRepo[repositoryID], nil
}

func (f *fakeStore) GetOrCreateIssue(context.Context, domsync.Issue) (domsync.Issue, bool, error) {
	return domsync.Issue{}, false, errors.New("not implemented")
}

func (f *fakeStore) GetIssuesByRepository(_ context.Context, repositoryID string) ([]domsync.Issue, error) {
	return f.issuesByRepo[repositoryID], nil
}

func (f *fakeStore) CreateSession(context.Context, string, string) (domsync.Session, error) {
	return domsync.Session{}, errors.New("not implemented")
}

func (f *fakeStore) GetSession(context.Context, string) (domsync.Session, error) {
	return domsync.Session{}, errors.New("not implemented")
}

func (f *fakeStore) GetActiveSessionsByTeam(context.Context, string) ([]domsync.Session, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeStore) GetLatestSessionByTeam(context.Context, string) (domsync.Session, error) {
	return domsync.Session{}, domain.ErrNotFound
}

func (f *fakeStore) MarkRunning(context.Context, string, time.Time) error {
	return errors.New("not implemented")
}

func (f *fakeStore) MarkCompleted(context.Context, string, time.Time, string, int, []string) error {
	return errors.New("not implemented")
}

func (f *fakeStore) MarkFailed(context.Context, string, time.Time, []string) error {
	return errors.New("not implemented")
}

func (f *fakeStore) UpdateProgress(context.Context, string, store.ProgressUpdate) error {
	return errors.New("not implemented")
}

func (f *fakeStore) TeamExists(context.Context, string) (bool, error) {
	return false, errors.New("not implemented")
}

func (f *fakeStore) EnsureTeam(context.Context, string) error {
	return errors.New("not implemented")
}

func (f *fakeStore) GetTeamConfigs(context.Context, string) (store.TeamConfigs, error) {
	return store.TeamConfigs{}, errors.New("not implemented")
}

func (f *fakeStore) UpdateTeamConfigs(context.Context, string, store.TeamConfigs) error {
	return errors.New("not implemented")
}

var _ store.Store = (*fakeStore)(nil)

func commit(id, sha, contributorID, commitType string, authoredAt time.Time, additions, deletions int) domsync.Commit {
	return domsync.Commit{
		ID:            id,
		RepositoryID:  "repo-1",
		ContributorID: contributorID,
		SHA:           sha,
		Message:       fmt.Sprintf("%s: change %s\n\nlonger body", commitType, sha),
		AuthoredAt:    authoredAt,
		Additions:     additions,
		Deletions:     deletions,
		FilesChanged:  1,
		Enrichment:    domsync.Enrichment{CommitType: commitType},
	}
}

func TestSprintStatsDQIBoundaryAllFeatCommits(t *testing.T) {
	now := time.Now().UTC()
	st := &fakeStore{
		repos: []domsync.Repository{{ID: "repo-1", TeamID: "team-1", OwnerSlug: "acme", RepoSlug: "widget"}},
		contributors: map[string]domsync.Contributor{
			"contrib-1": {ID: "contrib-1", Login: "ada", AvatarURL: "https://example.com/ada.png"},
		},
		commits: []domsync.Commit{
			commit("c1", "sha1", "contrib-1", "feat", now.Add(-24*time.Hour), 10, 2),
			commit("c2", "sha2", "contrib-1", "feat", now.Add(-48*time.Hour), 12, 1),
			commit("c3", "sha3", "contrib-1", "feat", now.Add(-72*time.Hour), 8, 0),
		},
	}

	a := analytics.New(st)
	result, err := a.SprintStats(context.Background(), "team-1", analytics.Window{Days: 14}, analytics.Settings{})
	if err != nil {
		t.Fatalf("SprintStats: %v", err)
	}
	if len(result.Contributors) != 1 {
		t.Fatalf("expected 1 contributor, got %d", len(result.Contributors))
	}
	got := result.Contributors[0]
	if got.DQI != 100.0 {
		t.Fatalf("expected DQI=100.0 for all-feat contributor, got %v", got.DQI)
	}
	if got.TotalCommits != 3 || got.SignificantCommits != 3 {
		t.Fatalf("unexpected totals: %+v", got)
	}
}

func TestSprintStatsMixedFeatAndFixLowersDQI(t *testing.T) {
	now := time.Now().UTC()
	st := &fakeStore{
		repos: []domsync.Repository{{ID: "repo-1", TeamID: "team-1"}},
		contributors: map[string]domsync.Contributor{
			"contrib-1": {ID: "contrib-1", Login: "ada"},
		},
		commits: []domsync.Commit{
			commit("c1", "sha1", "contrib-1", "feat", now.Add(-24*time.Hour), 10, 2),
			commit("c2", "sha2", "contrib-1", "fix", now.Add(-48*time.Hour), 1, 1),
		},
	}

	a := analytics.New(st)
	result, err := a.SprintStats(context.Background(), "team-1", analytics.Window{Days: 14}, analytics.Settings{})
	if err != nil {
		t.Fatalf("SprintStats: %v", err)
	}
	got := result.Contributors[0]
	if got.DQI <= 0 || got.DQI >= 100 {
		t.Fatalf("expected a DQI strictly between 0 and 100, got %v", got.DQI)
	}
}

func TestSprintStatsBucketsDailyAndTracksActiveDays(t *testing.T) {
	now := time.Date(2026, 7, 20, 12, 0, 0, 0, time.UTC)
	st := &fakeStore{
		repos: []domsync.Repository{{ID: "repo-1", TeamID: "team-1"}},
		contributors: map[string]domsync.Contributor{
			"contrib-1": {ID: "contrib-1", Login: "ada"},
		},
		commits: []domsync.Commit{
			commit("c1", "sha1", "contrib-1", "feat", now.Add(-24*time.Hour), 10, 2),
			commit("c2", "sha2", "contrib-1", "feat", now.Add(-24*time.Hour), 5, 1),
		},
	}

	a := analytics.New(st)
	result, err := a.SprintStats(context.Background(), "team-1", analytics.Window{Days: 7}, analytics.Settings{})
	if err != nil {
		t.Fatalf("SprintStats: %v", err)
	}
	if result.Summary.ActiveDays != 1 {
		t.Fatalf("expected 1 active day, got %d", result.Summary.ActiveDays)
	}
	if result.Summary.TotalCommits != 2 {
		t.Fatalf("expected 2 total commits, got %d", result.Summary.TotalCommits)
	}

	var found bool
	for _, b := range result.Buckets {
		if b.CommitCount == 2 {
			found = true
			if len(b.Commits) != 2 {
				t.Fatalf("expected 2 commit summaries in the active bucket, got %d", len(b.Commits))
			}
		}
	}
	if !found {
		t.Fatal("expected to find a bucket with 2 commits")
	}
}

func TestSprintStatsAllModeTruncatesAndMarksLimited(t *testing.T) {
	now := time.Date(2026, 7, 20, 12, 0, 0, 0, time.UTC)
	var commits []domsync.Commit
	for i := 0; i < 5002; i++ {
		commits = append(commits, commit(
			fmt.Sprintf("c%d", i), fmt.Sprintf("sha%d", i), "contrib-1", "chore",
			now.Add(-time.Duration(i)*time.Hour), 1, 0,
		))
	}
	st := &fakeStore{
		repos:        []domsync.Repository{{ID: "repo-1", TeamID: "team-1"}},
		contributors: map[string]domsync.Contributor{"contrib-1": {ID: "contrib-1", Login: "ada"}},
		commits:      commits,
	}

	a := analytics.New(st)
	result, err := a.SprintStats(context.Background(), "team-1", analytics.Window{All: true}, analytics.Settings{})
	if err != nil {
		t.Fatalf("SprintStats: %v", err)
	}
	if !result.Limited {
		t.Fatal("expected limited=true once more than 5000 commits are present")
	}
	if result.Summary.TotalCommits != 5000 {
		t.Fatalf("expected truncation to exactly 5000 commits, got %d", result.Summary.TotalCommits)
	}
}
