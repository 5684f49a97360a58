// Package analytics computes the sprint statistics: a daily-bucketed
// commit time series and a per-contributor ranking, over a team's
// repositories.
package analytics

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/strob0t/sprintsync/internal/domain/sync"
	"github.com/strob0t/sprintsync/internal/port/store"
)

// defaultCommitWeights mirrors config.Sprint's CommitWeights default set,
// used when a team has not overridden them via the settings resolver.
var defaultCommitWeights = map[string]float64{
	"feat":     3.0,
	"fix":      2.0,
	"perf":     2.5,
	"refactor": 2.0,
	"test":     1.5,
	"docs":     0.5,
	"style":    0.5,
	"chore":    0.5,
	"revert":   0.0,
}

const unknownWeight = 0.5

// Settings carries the team-resolved knobs sprint analytics runs under.
// The HTTP layer assembles this from config.Sprint defaults merged with
// the settings resolver's per-team overrides.
type Settings struct {
	SignificantCommitMinLines int
	CommitWeights             map[string]float64
	AllModeCommitLimit        int // default 5000
	AllModeMaxDays            int // default 365
}

func (s Settings) weight(commitType string) float64 {
	weights := s.CommitWeights
	if weights == nil {
		weights = defaultCommitWeights
	}
	if w, ok := weights[commitType]; ok {
		return w
	}
	return unknownWeight
}

func (s Settings) significantMinLines() int {
	if s.SignificantCommitMinLines > 0 {
		return s.SignificantCommitMinLines
	}
	return 5
}

func (s Settings) allModeCommitLimit() int {
	if s.AllModeCommitLimit > 0 {
		return s.AllModeCommitLimit
	}
	return 5000
}

func (s Settings) allModeMaxDays() int {
	if s.AllModeMaxDays > 0 {
		return s.AllModeMaxDays
	}
	return 365
}

// Window selects the reporting period: a fixed number of days back from
// now, or All for "the most recent 5,000 commits regardless of age".
type Window struct {
	Days int
	All  bool
}

// CommitSummary is the compact per-commit record attached to a bucket.
type CommitSummary struct {
	SHA          string `json:"sha"`
	ShortSHA     string `json:"short_sha"`
	Message      string `json:"message"`
	Type         string `json:"type"`
	AuthorLogin  string `json:"author_login"`
	AuthorAvatar string `json:"author_avatar"`
	Additions    int    `json:"additions"`
	Deletions    int    `json:"deletions"`
	FilesChanged int    `json:"files_changed"`
}

// Bucket is one calendar day's commit activity.
type Bucket struct {
	Date        string          `json:"date"`
	CommitCount int             `json:"commit_count"`
	Additions   int             `json:"additions"`
	Deletions   int             `json:"deletions"`
	Commits     []CommitSummary `json:"commits"`
}

// Contributor is one person's aggregated standing over the window.
type Contributor struct {
	Login              string         `json:"login"`
	AvatarURL          string         `json:"avatar_url"`
	TotalCommits       int            `json:"total_commits"`
	CommitsByType      map[string]int `json:"commits_by_type"`
	TotalAdditions     int            `json:"total_additions"`
	TotalDeletions     int            `json:"total_deletions"`
	SignificantCommits int            `json:"significant_commits"`
	WeightedScore      float64        `json:"weighted_score"`
	PRsOpened          int            `json:"prs_opened"`
	PRsMerged          int            `json:"prs_merged"`
	IssuesOpened       int            `json:"issues_opened"`
	DQI                float64        `json:"dqi"`
}

// Summary aggregates totals across the whole window.
type Summary struct {
	TotalCommits   int `json:"total_commits"`
	TotalAdditions int `json:"total_additions"`
	TotalDeletions int `json:"total_deletions"`
	ActiveDays     int `json:"active_days"`
}

// Result is the full sprint stats payload for one team.
type Result struct {
	TeamID       string        `json:"team_id"`
	Since        time.Time     `json:"since"`
	Until        time.Time     `json:"until"`
	Limited      bool          `json:"limited"`
	Buckets      []Bucket      `json:"buckets"`
	Contributors []Contributor `json:"contributors"`
	Summary      Summary       `json:"summary"`
}

// Analytics computes sprint statistics from the sync subsystem's store.
type Analytics struct {
	store store.Store
	now   func() time.Time
}

// New creates an Analytics.
func New(st store.Store) *Analytics {
	return &Analytics{store: st, now: time.Now}
}

// SprintStats runs the sprint-statistics procedure for teamID over window, under settings.
func (a *Analytics) SprintStats(ctx context.Context, teamID string, window Window, settings Settings) (Result, error) {
	since, until := a.resolveWindow(window)

	commits, err := a.store.GetCommitsByTeamDateRange(ctx, teamID, since, until.Add(time.Nanosecond))
	if err != nil {
		return Result{}, fmt.Errorf("fetch commits for team %s: %w", teamID, err)
	}

	limited := false
	if window.All {
		limit := settings.allModeCommitLimit()
		sort.Slice(commits, func(i, j int) bool { return commits[i].AuthoredAt.After(commits[j].AuthoredAt) })
		if len(commits) > limit {
			commits = commits[:limit]
			limited = true
		}
		if len(commits) > 0 {
			since, until = commits[len(commits)-1].AuthoredAt, commits[0].AuthoredAt
			for _, c := range commits {
				if c.AuthoredAt.Before(since) {
					since = c.AuthoredAt
				}
				if c.AuthoredAt.After(until) {
					until = c.AuthoredAt
				}
			}
		}
	}

	maxDays := 0
	if window.All {
		maxDays = settings.allModeMaxDays()
	}
	buckets, order := newBuckets(since, until, maxDays)

	repos, err := a.store.ListRepositoriesByTeam(ctx, teamID)
	if err != nil {
		return Result{}, fmt.Errorf("list repositories for team %s: %w", teamID, err)
	}

	var prs []sync.PullRequest
	var issues []sync.Issue
	for _, repo := range repos {
		repoPRs, err := a.store.GetPullRequestsByRepository(ctx, repo.ID)
		if err != nil {
			return Result{}, fmt.Errorf("fetch pull requests for repo %s: %w", repo.FullName(), err)
		}
		prs = append(prs, inRange(repoPRs, since, until, func(p sync.PullRequest) time.Time { return p.CreatedAt })...)

		repoIssues, err := a.store.GetIssuesByRepository(ctx, repo.ID)
		if err != nil {
			return Result{}, fmt.Errorf("fetch issues for repo %s: %w", repo.FullName(), err)
		}
		issues = append(issues, inRange(repoIssues, since, until, func(i sync.Issue) time.Time { return i.CreatedAt })...)
	}

	contributors := a.loadContributors(ctx, commits)

	acc := map[string]*Contributor{}
	contributorOf := func(login, avatar string) *Contributor {
		if login == "" {
			login = "unknown"
		}
		c, ok := acc[login]
		if !ok {
			c = &Contributor{Login: login, AvatarURL: avatar, CommitsByType: map[string]int{}}
			acc[login] = c
		} else if c.AvatarURL == "" {
			c.AvatarURL = avatar
		}
		return c
	}

	summary := Summary{}
	activeDays := map[string]bool{}

	for _, c := range commits {
		login, avatar := contributorLogin(contributors, c.ContributorID)
		dateKey := c.AuthoredAt.UTC().Format("2006-01-02")

		if idx, ok := order[dateKey]; ok {
			b := &buckets[idx]
			b.CommitCount++
			b.Additions += c.Additions
			b.Deletions += c.Deletions
			b.Commits = append(b.Commits, CommitSummary{
				SHA:          c.SHA,
				ShortSHA:     shortSHA(c.SHA),
				Message:      firstLine(c.Message, 120),
				Type:         c.Enrichment.CommitType,
				AuthorLogin:  login,
				AuthorAvatar: avatar,
				Additions:    c.Additions,
				Deletions:    c.Deletions,
				FilesChanged: c.FilesChanged,
			})
			activeDays[dateKey] = true
		}

		cc := contributorOf(login, avatar)
		cc.TotalCommits++
		cc.CommitsByType[c.Enrichment.CommitType]++
		cc.TotalAdditions += c.Additions
		cc.TotalDeletions += c.Deletions
		if c.Additions >= settings.significantMinLines() {
			cc.SignificantCommits++
		}
		cc.WeightedScore += float64(c.Additions) * settings.weight(c.Enrichment.CommitType)

		summary.TotalCommits++
		summary.TotalAdditions += c.Additions
		summary.TotalDeletions += c.Deletions
	}

	for _, p := range prs {
		cc := contributorOf(p.AuthorLogin, p.AuthorAvatar)
		cc.PRsOpened++
		if p.State == sync.StateMerged {
			cc.PRsMerged++
		}
	}
	for _, i := range issues {
		cc := contributorOf(i.AuthorLogin, i.AuthorAvatar)
		cc.IssuesOpened++
	}

	out := make([]Contributor, 0, len(acc))
	for _, c := range acc {
		c.DQI = developerQualityIndex(*c)
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].DQI != out[j].DQI {
			return out[i].DQI > out[j].DQI
		}
		return out[i].Login < out[j].Login
	})

	summary.ActiveDays = len(activeDays)

	return Result{
		TeamID:       teamID,
		Since:        since,
		Until:        until,
		Limited:      limited,
		Buckets:      buckets,
		Contributors: out,
		Summary:      summary,
	}, nil
}

// developerQualityIndex implements the 0-100 score from spec §4.12 step 7.
func developerQualityIndex(c Contributor) float64 {
	if c.TotalCommits == 0 {
		return 0
	}
	feat := c.CommitsByType["feat"] + c.CommitsByType["perf"] + c.CommitsByType["refactor"]
	fix := c.CommitsByType["fix"]

	functionalRatio := float64(feat) / float64(c.TotalCommits)
	bugRate := 0.0
	if feat+fix > 0 {
		bugRate = float64(fix) / float64(feat+fix)
	}
	significantRatio := float64(c.SignificantCommits) / float64(c.TotalCommits)

	dqi := (0.5*functionalRatio + 0.3*(1-bugRate) + 0.2*significantRatio) * 100
	if dqi > 100 {
		dqi = 100
	}
	return math.Round(dqi*10) / 10
}

// ContributorCommit is one commit in a per-contributor commit listing, with
// a per-commit quality_score. The aggregate Contributor view has no
// quality_score; it scores the person over the whole window with DQI.
type ContributorCommit struct {
	SHA          string    `json:"sha"`
	ShortSHA     string    `json:"short_sha"`
	Message      string    `json:"message"`
	Type         string    `json:"type"`
	AuthoredAt   time.Time `json:"authored_at"`
	Additions    int       `json:"additions"`
	Deletions    int       `json:"deletions"`
	FilesChanged int       `json:"files_changed"`
	QualityScore float64   `json:"quality_score"`
}

// ContributorCommits lists a contributor's commits over the trailing
// `days` window (0 or less means 14 days), newest first,
// paginated by limit/offset. total is the count before pagination.
func (a *Analytics) ContributorCommits(ctx context.Context, teamID, login string, days, limit, offset int, settings Settings) (items []ContributorCommit, total int, err error) {
	since, until := a.resolveWindow(Window{Days: days})

	commits, err := a.store.GetCommitsByTeamDateRange(ctx, teamID, since, until.Add(time.Nanosecond))
	if err != nil {
		return nil, 0, fmt.Errorf("fetch commits for team %s: %w", teamID, err)
	}

	contributors := a.loadContributors(ctx, commits)
	var matched []sync.Commit
	for _, c := range commits {
		l, _ := contributorLogin(contributors, c.ContributorID)
		if l == login {
			matched = append(matched, c)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].AuthoredAt.After(matched[j].AuthoredAt) })
	total = len(matched)

	if offset > len(matched) {
		offset = len(matched)
	}
	end := offset + limit
	if limit <= 0 || end > len(matched) {
		end = len(matched)
	}
	page := matched[offset:end]

	items = make([]ContributorCommit, 0, len(page))
	for _, c := range page {
		items = append(items, ContributorCommit{
			SHA:          c.SHA,
			ShortSHA:     shortSHA(c.SHA),
			Message:      firstLine(c.Message, 200),
			Type:         c.Enrichment.CommitType,
			AuthoredAt:   c.AuthoredAt,
			Additions:    c.Additions,
			Deletions:    c.Deletions,
			FilesChanged: c.FilesChanged,
			QualityScore: commitQualityScore(c, settings),
		})
	}
	return items, total, nil
}

// commitQualityScore scores a single commit 0-100: 60% from its
// classification weight relative to the heaviest known weight, 40% from
// how far its line count clears the significant-commit threshold.
func commitQualityScore(c sync.Commit, settings Settings) float64 {
	maxWeight := 0.0
	weights := settings.CommitWeights
	if weights == nil {
		weights = defaultCommitWeights
	}
	for _, w := range weights {
		if w > maxWeight {
			maxWeight = w
		}
	}
	if maxWeight == 0 {
		maxWeight = 1
	}

	weightRatio := settings.weight(c.Enrichment.CommitType) / maxWeight
	if weightRatio > 1 {
		weightRatio = 1
	}

	minLines := settings.significantMinLines()
	sizeRatio := float64(c.Additions) / float64(minLines)
	if sizeRatio > 1 {
		sizeRatio = 1
	}

	score := weightRatio*60 + sizeRatio*40
	return math.Round(score*10) / 10
}

func (a *Analytics) resolveWindow(window Window) (time.Time, time.Time) {
	until := a.now()
	if window.All {
		return time.Time{}, until
	}
	days := window.Days
	if days <= 0 {
		days = 14
	}
	return until.AddDate(0, 0, -days), until
}

func newBuckets(since, until time.Time, maxDays int) ([]Bucket, map[string]int) {
	if until.Before(since) {
		since, until = until, since
	}
	since = since.UTC()
	until = until.UTC()

	var dates []string
	for d := since.Truncate(24 * time.Hour); !d.After(until); d = d.AddDate(0, 0, 1) {
		dates = append(dates, d.Format("2006-01-02"))
		if maxDays > 0 && len(dates) >= maxDays {
			break
		}
	}
	if len(dates) == 0 {
		dates = []string{since.Format("2006-01-02")}
	}

	buckets := make([]Bucket, len(dates))
	order := make(map[string]int, len(dates))
	for i, d := range dates {
		buckets[i] = Bucket{Date: d, Commits: []CommitSummary{}}
		order[d] = i
	}
	return buckets, order
}

func (a *Analytics) loadContributors(ctx context.Context, commits []sync.Commit) map[string]sync.Contributor {
	out := make(map[string]sync.Contributor)
	for _, c := range commits {
		if c.ContributorID == "" {
			continue
		}
		if _, ok := out[c.ContributorID]; ok {
			continue
		}
		contributor, err := a.store.GetContributor(ctx, c.ContributorID)
		if err != nil {
			continue
		}
		out[c.ContributorID] = contributor
	}
	return out
}

func contributorLogin(contributors map[string]sync.Contributor, contributorID string) (login, avatar string) {
	if contributorID == "" {
		return "unknown", ""
	}
	c, ok := contributors[contributorID]
	if !ok {
		return "unknown", ""
	}
	if c.Login == "" {
		return "unknown", c.AvatarURL
	}
	return c.Login, c.AvatarURL
}

func inRange[T any](items []T, since, until time.Time, at func(T) time.Time) []T {
	out := make([]T, 0, len(items))
	for _, item := range items {
		t := at(item)
		if !t.Before(since) && t.Before(until) {
			out = append(out, item)
		}
	}
	return out
}

func shortSHA(sha string) string {
	if len(sha) <= 7 {
		return sha
	}
	return sha[:7]
}

func firstLine(message string, max int) string {
	if idx := strings.IndexByte(message, '\n'); idx >= 0 {
		message = message[:idx]
	}
	if len(message) > max {
		return message[:max]
	}
	return message
}
