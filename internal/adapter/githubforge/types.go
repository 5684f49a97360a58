package githubforge

import (
	"strconv"
	"time"

	"github.com/strob0t/sprintsync/internal/port/forge"
)

// ghAuthor mirrors GitHub's embedded author/committer object, which carries
// both the raw git identity and (when linked) the forge account.
type ghAuthor struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Date  time.Time `json:"date"`
}

type ghUser struct {
	Login     string `json:"login"`
	AvatarURL string `json:"avatar_url"`
}

type ghParent struct {
	SHA string `json:"sha"`
}

type ghCommitInner struct {
	Message   string   `json:"message"`
	Author    ghAuthor `json:"author"`
	Committer ghAuthor `json:"committer"`
}

type ghStats struct {
	Additions int `json:"additions"`
	Deletions int `json:"deletions"`
	Total     int `json:"total"`
}

type ghFile struct {
	Filename  string `json:"filename"`
	Additions int    `json:"additions"`
	Deletions int    `json:"deletions"`
	Changes   int    `json:"changes"`
	Patch     string `json:"patch"`
}

// ghCommitSummary is the shape returned by GET .../commits (list endpoint):
// no stats or files.
type ghCommitSummary struct {
	SHA     string        `json:"sha"`
	Commit  ghCommitInner `json:"commit"`
	Author  *ghUser       `json:"author"`
	Parents []ghParent    `json:"parents"`
}

func (g ghCommitSummary) toCommit() forge.Commit {
	c := forge.Commit{
		SHA:         g.SHA,
		Message:     g.Commit.Message,
		AuthorName:  g.Commit.Author.Name,
		AuthorEmail: g.Commit.Author.Email,
		AuthoredAt:  g.Commit.Author.Date,
		CommittedAt: g.Commit.Committer.Date,
	}
	if g.Author != nil {
		c.AuthorLogin = g.Author.Login
	}
	for _, p := range g.Parents {
		c.ParentSHAs = append(c.ParentSHAs, p.SHA)
	}
	return c
}

// ghCommitDetail is the shape returned by GET .../commits/{sha}: stats and files.
type ghCommitDetail struct {
	SHA     string        `json:"sha"`
	Commit  ghCommitInner `json:"commit"`
	Author  *ghUser       `json:"author"`
	Parents []ghParent    `json:"parents"`
	Stats   ghStats       `json:"stats"`
	Files   []ghFile      `json:"files"`
}

func (g ghCommitDetail) toCommit() forge.Commit {
	c := ghCommitSummary{SHA: g.SHA, Commit: g.Commit, Author: g.Author, Parents: g.Parents}.toCommit()
	c.Additions = g.Stats.Additions
	c.Deletions = g.Stats.Deletions
	c.TotalChanges = g.Stats.Total
	for _, f := range g.Files {
		c.Files = append(c.Files, forge.CommitFile{
			Path:      f.Filename,
			Additions: f.Additions,
			Deletions: f.Deletions,
			Changes:   f.Changes,
			Patch:     f.Patch,
		})
	}
	return c
}

// ghContributor is the shape returned by GET .../contributors.
type ghContributor struct {
	ID        int64  `json:"id"`
	Login     string `json:"login"`
	AvatarURL string `json:"avatar_url"`
	Name      string `json:"name"`
	Email     string `json:"email"`
}

func (g ghContributor) toContributor() forge.Contributor {
	return forge.Contributor{
		ExternalID: idToString(g.ID),
		Login:      g.Login,
		Name:       g.Name,
		Email:      g.Email,
		AvatarURL:  g.AvatarURL,
	}
}

// ghPull is the shape returned by GET .../pulls.
type ghPull struct {
	Number    int       `json:"number"`
	Title     string    `json:"title"`
	State     string    `json:"state"`
	User      ghUser    `json:"user"`
	CreatedAt time.Time `json:"created_at"`
	ClosedAt  *time.Time `json:"closed_at"`
	MergedAt  *time.Time `json:"merged_at"`
}

func (g ghPull) toPullRequest() forge.PullRequest {
	pr := forge.PullRequest{
		Number:       g.Number,
		Title:        g.Title,
		State:        g.State,
		AuthorLogin:  g.User.Login,
		AuthorAvatar: g.User.AvatarURL,
		CreatedAt:    g.CreatedAt,
	}
	if g.ClosedAt != nil {
		pr.ClosedAt = *g.ClosedAt
	}
	if g.MergedAt != nil {
		pr.MergedAt = *g.MergedAt
		pr.State = "merged"
	}
	return pr
}

// ghIssue is the shape returned by GET .../issues. PullRequest is non-nil
// when this entry is actually a PR duplicated onto the issues feed.
type ghIssue struct {
	Number      int            `json:"number"`
	Title       string         `json:"title"`
	State       string         `json:"state"`
	User        ghUser         `json:"user"`
	CreatedAt   time.Time      `json:"created_at"`
	ClosedAt    *time.Time     `json:"closed_at"`
	PullRequest map[string]any `json:"pull_request,omitempty"`
}

func (g ghIssue) toIssue() forge.Issue {
	is := forge.Issue{
		Number:       g.Number,
		Title:        g.Title,
		State:        g.State,
		AuthorLogin:  g.User.Login,
		AuthorAvatar: g.User.AvatarURL,
		CreatedAt:    g.CreatedAt,
	}
	if g.ClosedAt != nil {
		is.ClosedAt = *g.ClosedAt
	}
	return is
}

func idToString(id int64) string {
	return strconv.FormatInt(id, 10)
}
